package sessionbridge

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, adapter ProviderAdapter, cfg *ProviderConfig) (*NormalizedResponse, error) {
	t.Helper()
	sdk := NewSessionBridge()
	return sdk.executor.ExecuteWithRetry(context.Background(), "p", NewRequest(http.MethodGet, "/thing", nil, nil), adapter, cfg.withDefaults())
}

func TestExecuteWithRetry_RetriesTransientFailures(t *testing.T) {
	for _, tc := range []struct {
		name  string
		first func() (*NormalizedResponse, error)
	}{
		{"transport error", func() (*NormalizedResponse, error) { return nil, errors.New("connection reset") }},
		{"server error", func() (*NormalizedResponse, error) { return status(http.StatusBadGateway), nil }},
		{"rate limited", func() (*NormalizedResponse, error) { return status(http.StatusTooManyRequests), nil }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			attempts := 0
			adapter := newScriptedAdapter(func(context.Context, *NormalizedRequest) (*NormalizedResponse, error) {
				attempts++
				if attempts == 1 {
					return tc.first()
				}
				return status(http.StatusOK), nil
			})
			cfg := fastConfig()
			cfg.MaxRetries = 2

			resp, err := execute(t, adapter, cfg)
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, 2, attempts)
		})
	}
}

func TestExecuteWithRetry_GivesUpAfterMaxRetries(t *testing.T) {
	adapter := newScriptedAdapter(func(context.Context, *NormalizedRequest) (*NormalizedResponse, error) {
		return status(http.StatusServiceUnavailable), nil
	})
	cfg := fastConfig()
	cfg.MaxRetries = 2

	resp, err := execute(t, adapter, cfg)
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusServiceUnavailable, reqErr.StatusCode)
	assert.Same(t, resp, reqErr.Response)
	assert.Equal(t, 3, adapter.count("/thing"))
}

func TestExecuteWithRetry_DoesNotRetryClientOrAuthErrors(t *testing.T) {
	for _, code := range []int{http.StatusNotFound, http.StatusUnauthorized, http.StatusForbidden} {
		adapter := newScriptedAdapter(func(context.Context, *NormalizedRequest) (*NormalizedResponse, error) {
			return status(code), nil
		})
		cfg := fastConfig()
		cfg.MaxRetries = 3

		_, err := execute(t, adapter, cfg)
		var reqErr *RequestError
		require.ErrorAs(t, err, &reqErr)
		assert.Equal(t, code, reqErr.StatusCode)
		assert.Equal(t, code == http.StatusUnauthorized, reqErr.Unauthenticated())
		assert.Equal(t, 1, adapter.count("/thing"), "status %d", code)
	}
}

func TestExecuteWithRetry_TransportErrorKeepsRequest(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	adapter := newScriptedAdapter(func(context.Context, *NormalizedRequest) (*NormalizedResponse, error) {
		return nil, cause
	})

	resp, err := execute(t, adapter, fastConfig())
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, cause)
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Zero(t, reqErr.StatusCode)
	assert.Equal(t, "/thing", reqErr.Request.Endpoint)
}

func TestExecuteWithRetry_HonoursContextWhileBackingOff(t *testing.T) {
	adapter := newScriptedAdapter(func(context.Context, *NormalizedRequest) (*NormalizedResponse, error) {
		return status(http.StatusInternalServerError), nil
	})
	cfg := fastConfig()
	cfg.MaxRetries = 5
	cfg.BaseBackoff = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	sdk := NewSessionBridge()
	_, err := sdk.executor.ExecuteWithRetry(ctx, "p", NewRequest(http.MethodGet, "/thing", nil, nil), adapter, cfg.withDefaults())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, adapter.count("/thing"))
}

func TestExecuteWithRetry_WaitsForRateLimitReset(t *testing.T) {
	resetIn := 30 * time.Millisecond
	attempts := 0
	adapter := newScriptedAdapter(func(context.Context, *NormalizedRequest) (*NormalizedResponse, error) {
		attempts++
		if attempts == 1 {
			return status(http.StatusTooManyRequests), nil
		}
		return status(http.StatusOK), nil
	})
	adapter.info = func(resp *NormalizedResponse) *NormalizedRateLimitInfo {
		if resp.StatusCode != http.StatusTooManyRequests {
			return nil
		}
		zero := 0
		at := time.Now().Add(resetIn).UnixMilli()
		return &NormalizedRateLimitInfo{RemainingRequests: &zero, ResetRequestsAt: &at}
	}
	cfg := fastConfig()
	cfg.MaxRetries = 1

	start := time.Now()
	_, err := execute(t, adapter, cfg)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), resetIn-5*time.Millisecond)
}

func TestCalculateBackoff(t *testing.T) {
	re := &RequestExecutor{}
	assert.Equal(t, 100*time.Millisecond, re.calculateBackoff(100*time.Millisecond, 0))
	assert.Equal(t, 400*time.Millisecond, re.calculateBackoff(100*time.Millisecond, 2))
	assert.Equal(t, maxBackoff, re.calculateBackoff(time.Second, 10))
	assert.Equal(t, maxBackoff, re.calculateBackoff(time.Second, 63))
}
