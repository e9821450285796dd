// sdk.go
// ------
// The sdk.go file contains the core SessionBridge struct and its methods.
// This is the main entry point of the SDK for users.
//
// Key functionalities include:
// - Initializing the SDK with NewSessionBridge()
// - Registering providers with RegisterProvider()
// - Making requests via sdk.Request() or sdk.Do()
// - Renewing an expired session once and replaying every request that was blocked behind it
//
// Each registered provider owns one RenewalCoordinator. The SessionBridge relies on a
// RateLimiter and a RequestExecutor for transient retries underneath the renewal layer.
package sessionbridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/opengovern/session-bridge/internal/logging"
)

type provider struct {
	name        string
	adapter     ProviderAdapter
	config      *ProviderConfig
	guard       redirectGuard
	coordinator *RenewalCoordinator
}

type SessionBridge struct {
	mu          sync.Mutex
	providers   map[string]*provider
	rateLimiter *RateLimiter
	executor    *RequestExecutor
	navigator   Navigator
	metrics     *Metrics
	logger      *slog.Logger

	Debug bool // If true, log debug info to stderr
}

type Option func(*SessionBridge)

func WithLogger(logger *slog.Logger) Option {
	return func(sdk *SessionBridge) { sdk.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(sdk *SessionBridge) { sdk.metrics = m }
}

// WithNavigator sets the host that is sent to the login surface when renewal fails.
// Without one, terminal failures are only returned to callers.
func WithNavigator(nav Navigator) Option {
	return func(sdk *SessionBridge) { sdk.navigator = nav }
}

func NewSessionBridge(opts ...Option) *SessionBridge {
	sdk := &SessionBridge{
		providers:   make(map[string]*provider),
		rateLimiter: NewRateLimiter(),
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(sdk)
	}
	sdk.executor = NewRequestExecutor(sdk)
	return sdk
}

// SetDebug switches between a debug-level stderr logger and a silent one.
// Call it before registering providers.
func (sdk *SessionBridge) SetDebug(enabled bool) {
	sdk.mu.Lock()
	defer sdk.mu.Unlock()
	sdk.Debug = enabled
	if enabled {
		sdk.logger = logging.NewWithWriter(os.Stderr, slog.LevelDebug)
	} else {
		sdk.logger = logging.NewWithWriter(io.Discard, slog.LevelInfo)
	}
}

// RegisterProvider associates a ProviderAdapter with a provider name and configuration,
// replacing any previous registration under that name.
func (sdk *SessionBridge) RegisterProvider(name string, adapter ProviderAdapter, config *ProviderConfig) {
	cfg := config.withDefaults()
	p := &provider{
		name:    name,
		adapter: adapter,
		config:  cfg,
		guard:   newRedirectGuard(cfg.LoginPath, cfg.PublicPaths),
	}
	p.coordinator = NewRenewalCoordinator(name, sdk.renewFunc(p), cfg.RenewalTimeout,
		func(ctx context.Context, _ error) { sdk.redirect(ctx, p) }, sdk.logger, sdk.metrics)

	sdk.mu.Lock()
	defer sdk.mu.Unlock()
	sdk.providers[name] = p

	sdk.logger.Debug("registered provider", "provider", name, "renewal_endpoint", cfg.RenewalEndpoint, "max_retries", cfg.MaxRetries)
}

// Request sends req to the named provider. If the session has expired, the request waits
// for a single shared renewal and is replayed once. Failures are *RequestError values, or
// *RenewalError values (matching ErrSessionExpired) when the session could not be renewed.
func (sdk *SessionBridge) Request(ctx context.Context, providerName string, req *NormalizedRequest) (*NormalizedResponse, error) {
	p, err := sdk.lookup(providerName)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errors.New("nil request")
	}
	if req.ID == "" {
		cp := *req
		cp.ID = uuid.NewString()
		req = &cp
	}

	sdk.logger.Debug("requesting provider", "provider", providerName, "method", req.Method, "endpoint", req.Endpoint)
	return sdk.requestWithRenewal(ctx, p, req)
}

// Do builds a request from its parts and sends it with Request.
func (sdk *SessionBridge) Do(ctx context.Context, providerName, method, path string, body []byte, headers map[string]string) (*NormalizedResponse, error) {
	return sdk.Request(ctx, providerName, NewRequest(method, path, body, headers))
}

func (sdk *SessionBridge) requestWithRenewal(ctx context.Context, p *provider, req *NormalizedRequest) (*NormalizedResponse, error) {
	resp, err := sdk.executor.ExecuteWithRetry(ctx, p.name, req, p.adapter, p.config)
	if err == nil {
		if req.Retried() {
			sdk.metrics.observeRequest(p.name, outcomeRenewed)
		} else {
			sdk.metrics.observeRequest(p.name, outcomeSuccess)
		}
		return resp, nil
	}

	var reqErr *RequestError
	if !errors.As(err, &reqErr) || !reqErr.Unauthenticated() || p.anonymous(req) {
		sdk.metrics.observeRequest(p.name, outcomeError)
		return resp, err
	}

	// The renewal endpoint itself was rejected: never renew a renewal.
	if normalizePath(req.Endpoint) == normalizePath(p.config.RenewalEndpoint) {
		sdk.metrics.observeRequest(p.name, outcomeExpired)
		rerr := &RenewalError{Provider: p.name, Err: err}
		sdk.logger.Warn("renewal endpoint rejected session", "provider", p.name, "err", err)
		sdk.redirect(ctx, p)
		return resp, rerr
	}

	if req.Retried() {
		sdk.metrics.observeRequest(p.name, outcomeExhausted)
		sdk.logger.Debug("request still unauthenticated after renewal", "provider", p.name, "endpoint", req.Endpoint, "request_id", req.ID)
		return resp, err
	}

	if werr := p.coordinator.Await(ctx); werr != nil {
		if errors.Is(werr, ErrSessionExpired) {
			sdk.metrics.observeRequest(p.name, outcomeExpired)
		} else {
			sdk.metrics.observeRequest(p.name, outcomeError)
		}
		return nil, werr
	}
	return sdk.requestWithRenewal(ctx, p, req.AsRetry())
}

// renewFunc calls the adapter's Renewer if it has one, and the configured renewal endpoint
// otherwise. The endpoint call goes straight to the executor so it never re-enters renewal.
func (sdk *SessionBridge) renewFunc(p *provider) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if r, ok := p.adapter.(Renewer); ok {
			return r.Renew(ctx)
		}
		req := NewRequest(p.config.RenewalMethod, p.config.RenewalEndpoint, nil, nil)
		_, err := sdk.executor.ExecuteWithRetry(ctx, p.name, req, p.adapter, p.config)
		return err
	}
}

// redirect sends the navigator to the login surface unless it is already on a public one.
func (sdk *SessionBridge) redirect(ctx context.Context, p *provider) {
	if sdk.navigator == nil {
		return
	}
	location := sdk.navigator.Location()
	if !p.guard.shouldRedirect(location) {
		sdk.logger.Debug("already on a public surface, not redirecting", "provider", p.name, "location", location)
		return
	}

	sdk.metrics.observeRedirect(p.name)
	sdk.logger.Info("session expired, redirecting to login", "provider", p.name, "from", location, "to", p.config.LoginPath)
	if err := sdk.navigator.Navigate(ctx, p.config.LoginPath); err != nil {
		sdk.logger.Warn("login redirect failed", "provider", p.name, "err", err)
	}
}

func (p *provider) anonymous(req *NormalizedRequest) bool {
	path := normalizePath(req.Endpoint)
	for _, e := range p.config.AnonymousEndpoints {
		if normalizePath(e) == path {
			return true
		}
	}
	return false
}

func (sdk *SessionBridge) lookup(name string) (*provider, error) {
	sdk.mu.Lock()
	defer sdk.mu.Unlock()
	p, ok := sdk.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotRegistered, name)
	}
	return p, nil
}

// Coordinator returns the renewal coordinator of a registered provider.
func (sdk *SessionBridge) Coordinator(providerName string) (*RenewalCoordinator, error) {
	p, err := sdk.lookup(providerName)
	if err != nil {
		return nil, err
	}
	return p.coordinator, nil
}

// GetRateLimitInfo returns the current known rate limit info for a given provider.
func (sdk *SessionBridge) GetRateLimitInfo(providerName string) *NormalizedRateLimitInfo {
	return sdk.rateLimiter.GetRateLimitInfo(providerName)
}
