package mock

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	sessionbridge "github.com/opengovern/session-bridge"
)

const (
	MockDefaultMaxRequests = 100
	MockDefaultWindowSecs  = 60
)

// HandlerFunc scripts the response of a MockAdapter.
type HandlerFunc func(ctx context.Context, req *sessionbridge.NormalizedRequest) (*sessionbridge.NormalizedResponse, error)

// MockAdapter is an in-memory ProviderAdapter. Without a Handler it answers 200.
type MockAdapter struct {
	Handler HandlerFunc

	RequestsUntilRateLimit int  // How many requests until we hit a limit
	ShouldReturn429Always  bool // If true, always return 429
	MaxRequests            int
	WindowSecs             int64

	mu       sync.Mutex
	calls    map[string]int
	requests []*sessionbridge.NormalizedRequest
	total    int
}

func NewMockAdapter(handler HandlerFunc) *MockAdapter {
	return &MockAdapter{
		Handler:     handler,
		MaxRequests: MockDefaultMaxRequests,
		WindowSecs:  MockDefaultWindowSecs,
	}
}

func (m *MockAdapter) ExecuteRequest(ctx context.Context, req *sessionbridge.NormalizedRequest) (*sessionbridge.NormalizedResponse, error) {
	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[req.Endpoint]++
	m.requests = append(m.requests, req)
	m.total++
	limited := m.ShouldReturn429Always || (m.RequestsUntilRateLimit > 0 && m.total > m.RequestsUntilRateLimit)
	handler := m.Handler
	m.mu.Unlock()

	if limited {
		return Response(http.StatusTooManyRequests, `{"error":"Rate limited"}`), nil
	}
	if handler == nil {
		return Response(http.StatusOK, `{"success":true}`), nil
	}
	return handler(ctx, req)
}

// ParseRateLimitInfo reports the remaining budget once RequestsUntilRateLimit is set.
func (m *MockAdapter) ParseRateLimitInfo(resp *sessionbridge.NormalizedResponse) (*sessionbridge.NormalizedRateLimitInfo, error) {
	if v, ok := resp.Headers["retry-after"]; ok {
		if sec, err := strconv.Atoi(v); err == nil {
			zero := 0
			at := time.Now().Add(time.Duration(sec) * time.Second).UnixMilli()
			return &sessionbridge.NormalizedRateLimitInfo{RemainingRequests: &zero, ResetRequestsAt: &at}, nil
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RequestsUntilRateLimit == 0 {
		return nil, nil
	}
	maxRequests := m.MaxRequests
	remaining := max(m.RequestsUntilRateLimit-m.total, 0)
	return &sessionbridge.NormalizedRateLimitInfo{
		MaxRequests:       &maxRequests,
		RemainingRequests: &remaining,
	}, nil
}

func (m *MockAdapter) IsRateLimitError(resp *sessionbridge.NormalizedResponse) bool {
	return resp.StatusCode == http.StatusTooManyRequests
}

func (m *MockAdapter) IsUnauthenticated(resp *sessionbridge.NormalizedResponse) bool {
	return resp.StatusCode == http.StatusUnauthorized
}

// Calls returns how many requests hit endpoint.
func (m *MockAdapter) Calls(endpoint string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[endpoint]
}

// Requests returns every request seen, in arrival order.
func (m *MockAdapter) Requests() []*sessionbridge.NormalizedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*sessionbridge.NormalizedRequest(nil), m.requests...)
}

// Response builds a NormalizedResponse with a JSON body.
func Response(status int, body string) *sessionbridge.NormalizedResponse {
	return &sessionbridge.NormalizedResponse{
		StatusCode: status,
		Headers:    map[string]string{"content-type": "application/json"},
		Data:       []byte(body),
	}
}
