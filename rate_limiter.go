// rate_limiter.go
// ----------------
// This file defines the RateLimiter type, which stores the last rate limit information
// each provider reported. The RequestExecutor consults it before every attempt so that a
// provider that announced an exhausted window is not called again before its reset time.
//
// Responsibilities:
// - Storing rate limit info keyed by provider name.
// - Checking if requests can proceed based on RemainingRequests and ResetRequestsAt.
// - Calculating the delay before the next allowed request.
// - Applying ProviderConfig overrides when UseProviderLimits is false.
package sessionbridge

import (
	"sync"
	"time"
)

type RateLimiter struct {
	mu             sync.Mutex
	providerLimits map[string]*NormalizedRateLimitInfo
	now            func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		providerLimits: make(map[string]*NormalizedRateLimitInfo),
		now:            time.Now,
	}
}

// UpdateRateLimits stores info for provider, applying overrides from config
// if UseProviderLimits is false.
func (r *RateLimiter) UpdateRateLimits(provider string, info *NormalizedRateLimitInfo, config *ProviderConfig) {
	if info == nil {
		return
	}
	stored := *info
	if config != nil && !config.UseProviderLimits && config.MaxRequestsOverride != nil {
		limit := *config.MaxRequestsOverride
		stored.MaxRequests = &limit
		if stored.RemainingRequests == nil || *stored.RemainingRequests > limit {
			remaining := limit
			stored.RemainingRequests = &remaining
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.providerLimits[provider] = &stored
}

// canProceed returns false while the provider's window is exhausted and its reset is in the future.
func (r *RateLimiter) canProceed(provider string) bool {
	return r.delayBeforeNextRequest(provider) == 0
}

// delayBeforeNextRequest returns how long to wait before the provider accepts requests again.
func (r *RateLimiter) delayBeforeNextRequest(provider string) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.providerLimits[provider]
	if !ok || info.RemainingRequests == nil || *info.RemainingRequests > 0 || info.ResetRequestsAt == nil {
		return 0
	}
	nowMs := r.now().UnixMilli()
	if nowMs >= *info.ResetRequestsAt {
		return 0
	}
	return time.Duration(*info.ResetRequestsAt-nowMs) * time.Millisecond
}

// GetRateLimitInfo returns a copy of the last known info for provider, or nil.
func (r *RateLimiter) GetRateLimitInfo(provider string) *NormalizedRateLimitInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info, ok := r.providerLimits[provider]; ok {
		cp := *info
		return &cp
	}
	return nil
}
