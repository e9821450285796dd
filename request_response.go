package sessionbridge

import (
	"maps"

	"github.com/google/uuid"
)

// NormalizedRequest is a replayable description of an outbound call.
// Endpoint is relative to the base address the adapter was built with.
type NormalizedRequest struct {
	ID       string
	Method   string
	Endpoint string
	Headers  map[string]string
	Body     []byte

	retried bool
}

// NewRequest builds a request with a fresh ID.
func NewRequest(method, endpoint string, body []byte, headers map[string]string) *NormalizedRequest {
	return &NormalizedRequest{
		ID:       uuid.NewString(),
		Method:   method,
		Endpoint: endpoint,
		Headers:  headers,
		Body:     body,
	}
}

// Retried reports whether this request is already the replay of a request
// that failed unauthenticated.
func (r *NormalizedRequest) Retried() bool {
	return r.retried
}

// AsRetry returns a copy marked as retried. The receiver is left untouched.
func (r *NormalizedRequest) AsRetry() *NormalizedRequest {
	cp := &NormalizedRequest{
		ID:       r.ID,
		Method:   r.Method,
		Endpoint: r.Endpoint,
		Headers:  maps.Clone(r.Headers),
		retried:  true,
	}
	if r.Body != nil {
		cp.Body = append([]byte(nil), r.Body...)
	}
	return cp
}

type NormalizedResponse struct {
	StatusCode int
	Headers    map[string]string
	Data       []byte
}

type NormalizedRateLimitInfo struct {
	MaxRequests       *int
	RemainingRequests *int
	ResetRequestsAt   *int64 // unix ms
}
