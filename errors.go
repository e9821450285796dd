package sessionbridge

import (
	"errors"
	"fmt"
)

var (
	ErrProviderNotRegistered = errors.New("provider not registered")

	// ErrSessionExpired matches every error produced by a failed session
	// renewal, so callers can tell it apart from ordinary status errors.
	ErrSessionExpired = errors.New("session expired")

	// ErrRenewalTimeout is reported when the renewal call outlives
	// ProviderConfig.RenewalTimeout.
	ErrRenewalTimeout = errors.New("session renewal timed out")
)

// RequestError is returned for transport failures and non-2xx responses.
// It carries the original request so the call can be replayed.
type RequestError struct {
	Request    *NormalizedRequest
	Response   *NormalizedResponse
	StatusCode int // 0 for transport errors
	Err        error

	unauthenticated bool
}

func (e *RequestError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s: %v", e.Request.Method, e.Request.Endpoint, e.Err)
	}
	msg := fmt.Sprintf("%s %s: status %d", e.Request.Method, e.Request.Endpoint, e.StatusCode)
	if e.Exhausted() {
		msg += " after session renewal"
	}
	return msg
}

func (e *RequestError) Unwrap() error { return e.Err }

// Unauthenticated reports whether the adapter classified the response as an
// expired session.
func (e *RequestError) Unauthenticated() bool { return e.unauthenticated }

// Exhausted reports an unauthenticated failure of a request that was already
// replayed once after a renewal.
func (e *RequestError) Exhausted() bool {
	return e.unauthenticated && e.Request.Retried()
}

// RenewalError is returned to every caller that waited on a renewal that
// failed, and to callers of the renewal endpoint itself.
type RenewalError struct {
	Provider string
	Err      error
}

func (e *RenewalError) Error() string {
	return fmt.Sprintf("provider %s: session renewal failed: %v", e.Provider, e.Err)
}

func (e *RenewalError) Unwrap() error { return e.Err }

func (e *RenewalError) Is(target error) bool {
	return target == ErrSessionExpired
}
