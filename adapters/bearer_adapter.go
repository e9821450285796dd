// bearer_adapter.go
// -----------------
// BearerAdapter attaches an OAuth2 access token to every request. The token comes from an
// oauth2.TokenSource; the adapter caches it until it expires or the API rejects it.
//
// BearerAdapter implements sessionbridge.Renewer: a renewal asks the source for a new token
// instead of calling a renewal endpoint. Use RefreshTokenSource for a source that performs a
// refresh_token grant every time it is asked.
package adapters

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	sessionbridge "github.com/opengovern/session-bridge"
)

var errNoToken = errors.New("token source returned no access token")

type BearerAdapter struct {
	BaseURL string

	client *http.Client
	source oauth2.TokenSource
	now    func() time.Time

	refreshMu sync.Mutex // serializes calls to source
	mu        sync.Mutex
	token     *oauth2.Token
}

func NewBearerAdapter(baseURL string, source oauth2.TokenSource, client *http.Client) *BearerAdapter {
	return &BearerAdapter{
		BaseURL: baseURL,
		client:  cloneClient(client),
		source:  source,
		now:     time.Now,
	}
}

func (b *BearerAdapter) ExecuteRequest(ctx context.Context, req *sessionbridge.NormalizedRequest) (*sessionbridge.NormalizedResponse, error) {
	tok, err := b.currentToken(ctx)
	if err != nil {
		return nil, err
	}
	return doHTTP(ctx, b.client, b.BaseURL, req, tok.SetAuthHeader)
}

// Renew replaces the cached token with a fresh one from the source.
func (b *BearerAdapter) Renew(ctx context.Context) error {
	b.refreshMu.Lock()
	defer b.refreshMu.Unlock()
	return b.refresh(ctx)
}

func (b *BearerAdapter) refresh(ctx context.Context) error {
	tok, err := fetchToken(ctx, b.source)
	if err != nil {
		return fmt.Errorf("refresh access token: %w", err)
	}
	b.mu.Lock()
	b.token = tok
	b.mu.Unlock()
	return nil
}

func (b *BearerAdapter) cached() *oauth2.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.token
}

// currentToken returns the cached token, fetching one first if it is missing or expired.
func (b *BearerAdapter) currentToken(ctx context.Context) (*oauth2.Token, error) {
	if tok := b.cached(); tok.Valid() {
		return tok, nil
	}

	b.refreshMu.Lock()
	defer b.refreshMu.Unlock()
	if tok := b.cached(); tok.Valid() {
		return tok, nil
	}
	if err := b.refresh(ctx); err != nil {
		return nil, err
	}
	return b.cached(), nil
}

func (b *BearerAdapter) ParseRateLimitInfo(resp *sessionbridge.NormalizedResponse) (*sessionbridge.NormalizedRateLimitInfo, error) {
	return parseRateLimitHeaders(resp.Headers, b.now()), nil
}

func (b *BearerAdapter) IsRateLimitError(resp *sessionbridge.NormalizedResponse) bool {
	return resp.StatusCode == http.StatusTooManyRequests
}

func (b *BearerAdapter) IsUnauthenticated(resp *sessionbridge.NormalizedResponse) bool {
	return resp.StatusCode == http.StatusUnauthorized
}

// fetchToken calls source.Token, giving up when ctx ends. TokenSource has no context of its own.
func fetchToken(ctx context.Context, source oauth2.TokenSource) (*oauth2.Token, error) {
	type result struct {
		tok *oauth2.Token
		err error
	}
	ch := make(chan result, 1)
	go func() {
		tok, err := source.Token()
		ch <- result{tok, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		if r.tok == nil || r.tok.AccessToken == "" {
			return nil, errNoToken
		}
		return r.tok, nil
	}
}

// refreshSource performs a refresh_token grant on every Token call and keeps the
// rotated refresh token.
type refreshSource struct {
	ctx    context.Context
	config *oauth2.Config

	mu           sync.Mutex
	refreshToken string
}

// RefreshTokenSource returns a TokenSource that always exchanges refreshToken for a new
// access token at config.Endpoint.TokenURL. ctx carries the HTTP client used for the grant
// (see oauth2.HTTPClient).
func RefreshTokenSource(ctx context.Context, config *oauth2.Config, refreshToken string) oauth2.TokenSource {
	return &refreshSource{ctx: ctx, config: config, refreshToken: refreshToken}
}

func (s *refreshSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, err := s.config.TokenSource(s.ctx, &oauth2.Token{RefreshToken: s.refreshToken}).Token()
	if err != nil {
		return nil, err
	}
	if tok.RefreshToken != "" {
		s.refreshToken = tok.RefreshToken
	}
	return tok, nil
}
