package sessionbridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int       { return &i }
func int64Ptr(i int64) *int64 { return &i }

func TestRateLimiter_DelayUntilReset(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter()
	rl.now = func() time.Time { return now }

	assert.True(t, rl.canProceed("p"), "unknown providers proceed")

	rl.UpdateRateLimits("p", &NormalizedRateLimitInfo{
		MaxRequests:       intPtr(10),
		RemainingRequests: intPtr(0),
		ResetRequestsAt:   int64Ptr(now.Add(2 * time.Second).UnixMilli()),
	}, &ProviderConfig{UseProviderLimits: true})

	assert.False(t, rl.canProceed("p"))
	assert.Equal(t, 2*time.Second, rl.delayBeforeNextRequest("p"))
	assert.True(t, rl.canProceed("other"))

	now = now.Add(3 * time.Second)
	assert.True(t, rl.canProceed("p"))
	assert.Zero(t, rl.delayBeforeNextRequest("p"))
}

func TestRateLimiter_RemainingBudgetProceeds(t *testing.T) {
	rl := NewRateLimiter()
	rl.UpdateRateLimits("p", &NormalizedRateLimitInfo{
		RemainingRequests: intPtr(3),
		ResetRequestsAt:   int64Ptr(time.Now().Add(time.Hour).UnixMilli()),
	}, nil)
	assert.True(t, rl.canProceed("p"))
}

func TestRateLimiter_OverridesWhenNotUsingProviderLimits(t *testing.T) {
	rl := NewRateLimiter()
	info := &NormalizedRateLimitInfo{MaxRequests: intPtr(5000), RemainingRequests: intPtr(4999)}
	rl.UpdateRateLimits("p", info, &ProviderConfig{UseProviderLimits: false, MaxRequestsOverride: intPtr(100)})

	got := rl.GetRateLimitInfo("p")
	require.NotNil(t, got)
	assert.Equal(t, 100, *got.MaxRequests)
	assert.Equal(t, 100, *got.RemainingRequests)
	assert.Equal(t, 5000, *info.MaxRequests, "caller's info is not modified")
}

func TestRateLimiter_GetReturnsCopy(t *testing.T) {
	rl := NewRateLimiter()
	assert.Nil(t, rl.GetRateLimitInfo("p"))

	rl.UpdateRateLimits("p", &NormalizedRateLimitInfo{RemainingRequests: intPtr(1)}, nil)
	got := rl.GetRateLimitInfo("p")
	got.RemainingRequests = intPtr(0)
	assert.Equal(t, 1, *rl.GetRateLimitInfo("p").RemainingRequests)
}
