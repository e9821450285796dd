package sessionbridge

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// scriptedAdapter is a ProviderAdapter driven by a func, counting calls per endpoint.
type scriptedAdapter struct {
	handle func(ctx context.Context, req *NormalizedRequest) (*NormalizedResponse, error)
	info   func(resp *NormalizedResponse) *NormalizedRateLimitInfo

	mu    sync.Mutex
	calls map[string]int
	seen  []*NormalizedRequest
}

func newScriptedAdapter(handle func(ctx context.Context, req *NormalizedRequest) (*NormalizedResponse, error)) *scriptedAdapter {
	return &scriptedAdapter{handle: handle, calls: make(map[string]int)}
}

func (a *scriptedAdapter) ExecuteRequest(ctx context.Context, req *NormalizedRequest) (*NormalizedResponse, error) {
	a.mu.Lock()
	a.calls[req.Endpoint]++
	a.seen = append(a.seen, req)
	a.mu.Unlock()
	return a.handle(ctx, req)
}

func (a *scriptedAdapter) ParseRateLimitInfo(resp *NormalizedResponse) (*NormalizedRateLimitInfo, error) {
	if a.info == nil {
		return nil, nil
	}
	return a.info(resp), nil
}

func (a *scriptedAdapter) IsRateLimitError(resp *NormalizedResponse) bool {
	return resp.StatusCode == http.StatusTooManyRequests
}

func (a *scriptedAdapter) IsUnauthenticated(resp *NormalizedResponse) bool {
	return resp.StatusCode == http.StatusUnauthorized
}

func (a *scriptedAdapter) count(endpoint string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[endpoint]
}

func status(code int) *NormalizedResponse {
	return &NormalizedResponse{StatusCode: code, Headers: map[string]string{}}
}

func fastConfig() *ProviderConfig {
	return &ProviderConfig{
		UseProviderLimits: true,
		BaseBackoff:       time.Millisecond,
		RenewalTimeout:    time.Second,
	}
}

