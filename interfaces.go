package sessionbridge

import "context"

// ProviderAdapter defines the interface all adapters must implement.
// An adapter owns the base address and attaches credentials to every call.
type ProviderAdapter interface {
	ExecuteRequest(ctx context.Context, req *NormalizedRequest) (*NormalizedResponse, error)
	ParseRateLimitInfo(resp *NormalizedResponse) (*NormalizedRateLimitInfo, error)
	IsRateLimitError(resp *NormalizedResponse) bool

	// IsUnauthenticated classifies a response as an expired or missing session.
	// It is the sole trigger for session renewal.
	IsUnauthenticated(resp *NormalizedResponse) bool
}

// Renewer is implemented by adapters that refresh their credential without
// calling the configured renewal endpoint.
type Renewer interface {
	Renew(ctx context.Context) error
}

// Navigator is the hosting environment that is sent to the login surface
// when a session cannot be renewed.
type Navigator interface {
	Location() string
	Navigate(ctx context.Context, target string) error
}
