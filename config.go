// config.go
// ----------
// This file defines the ProviderConfig structure, which allows per-provider customization
// of retries, backoff, rate-limit overrides and session renewal.
//
// Renewal fields name the endpoint that refreshes the session, how long a renewal may
// take, and where the host is sent when renewal fails.
package sessionbridge

import (
	"net/http"
	"slices"
	"time"
)

const (
	DefaultRenewalEndpoint = "/auth/refresh"
	DefaultRenewalTimeout  = 10 * time.Second
	DefaultLoginPath       = "/login"
	DefaultLoginEndpoint   = "/auth/login"
)

// DefaultPublicPaths are locations that never trigger a login redirect.
var DefaultPublicPaths = []string{"/", DefaultLoginPath}

// ProviderConfig allows per-provider customization of rate limits, retries, and session renewal.
type ProviderConfig struct {
	UseProviderLimits   bool
	MaxRequestsOverride *int // Override provider max requests if set

	MaxRetries  int           // Max number of transient (429/5xx/transport) retries
	BaseBackoff time.Duration // Initial backoff duration for exponential backoff

	RenewalEndpoint string        // Path called with no body to refresh the session
	RenewalMethod   string        // Defaults to POST
	RenewalTimeout  time.Duration // Upper bound on a single renewal call

	// AnonymousEndpoints never take part in renewal; their 401s go straight to the caller.
	AnonymousEndpoints []string

	LoginPath   string   // Navigation target on terminal renewal failure
	PublicPaths []string // Locations where no redirect is issued
}

// withDefaults returns a copy with zero values replaced by defaults.
func (c *ProviderConfig) withDefaults() *ProviderConfig {
	cfg := ProviderConfig{UseProviderLimits: true, MaxRetries: 3}
	if c != nil {
		cfg = *c
		cfg.PublicPaths = slices.Clone(c.PublicPaths)
	}
	if cfg.RenewalEndpoint == "" {
		cfg.RenewalEndpoint = DefaultRenewalEndpoint
	}
	if cfg.RenewalMethod == "" {
		cfg.RenewalMethod = http.MethodPost
	}
	if cfg.RenewalTimeout <= 0 {
		cfg.RenewalTimeout = DefaultRenewalTimeout
	}
	if cfg.AnonymousEndpoints == nil {
		cfg.AnonymousEndpoints = []string{DefaultLoginEndpoint}
	} else {
		cfg.AnonymousEndpoints = slices.Clone(cfg.AnonymousEndpoints)
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = DefaultLoginPath
	}
	if cfg.PublicPaths == nil {
		cfg.PublicPaths = slices.Clone(DefaultPublicPaths)
	}
	return &cfg
}
