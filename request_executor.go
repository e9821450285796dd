package sessionbridge

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/opengovern/session-bridge"
	maxBackoff = 30 * time.Second
)

var errRateLimited = errors.New("rate limit exceeded and max retries reached")

// RequestExecutor handles transient retry logic, backoff, and consulting the RateLimiter.
// Unauthenticated responses are returned immediately; session renewal happens above it.
type RequestExecutor struct {
	sdk    *SessionBridge
	tracer trace.Tracer
}

func NewRequestExecutor(sdk *SessionBridge) *RequestExecutor {
	return &RequestExecutor{sdk: sdk, tracer: otel.Tracer(tracerName)}
}

// ExecuteWithRetry sends req through adapter, retrying transport errors, 429s and 5xx
// responses up to config.MaxRetries times. Any other non-2xx response is returned as a
// *RequestError alongside the response.
func (re *RequestExecutor) ExecuteWithRetry(ctx context.Context, providerName string, req *NormalizedRequest, adapter ProviderAdapter, config *ProviderConfig) (*NormalizedResponse, error) {
	log := re.sdk.logger.With("provider", providerName, "method", req.Method, "endpoint", req.Endpoint, "request_id", req.ID)
	maxRetries := config.MaxRetries
	baseBackoff := config.BaseBackoff
	if baseBackoff == 0 {
		baseBackoff = time.Second
	}

	attempts := 0
	for {
		if !re.sdk.rateLimiter.canProceed(providerName) {
			delay := re.sdk.rateLimiter.delayBeforeNextRequest(providerName)
			log.Debug("must wait before next request due to rate limit", "delay", delay)
			if err := sleepContext(ctx, delay); err != nil {
				return nil, &RequestError{Request: req, Err: err}
			}
		}

		log.Debug("sending request", "attempt", attempts+1, "retried", req.Retried())
		resp, err := re.attempt(ctx, providerName, req, adapter, attempts)
		if err != nil {
			if ctx.Err() == nil && attempts < maxRetries {
				wait := re.calculateBackoff(baseBackoff, attempts)
				log.Debug("operation error, retrying", "err", err, "wait", wait, "attempt", attempts+1, "max_retries", maxRetries)
				if serr := sleepContext(ctx, wait); serr != nil {
					return nil, &RequestError{Request: req, Err: serr}
				}
				attempts++
				continue
			}
			log.Debug("giving up after error", "err", err, "attempts", attempts+1)
			return nil, &RequestError{Request: req, Err: err}
		}

		if info, parseErr := adapter.ParseRateLimitInfo(resp); parseErr == nil && info != nil {
			re.sdk.rateLimiter.UpdateRateLimits(providerName, info, config)
		}

		switch {
		case adapter.IsUnauthenticated(resp):
			log.Debug("unauthenticated response", "status", resp.StatusCode)
			return resp, &RequestError{Request: req, Response: resp, StatusCode: resp.StatusCode, unauthenticated: true}

		case adapter.IsRateLimitError(resp):
			if attempts < maxRetries {
				wait := re.waitForRateLimit(providerName, attempts, baseBackoff)
				log.Debug("rate limited, backing off", "wait", wait)
				if serr := sleepContext(ctx, wait); serr != nil {
					return resp, &RequestError{Request: req, Response: resp, StatusCode: resp.StatusCode, Err: serr}
				}
				attempts++
				continue
			}
			log.Debug("rate limited and max retries reached, giving up")
			return resp, &RequestError{Request: req, Response: resp, StatusCode: resp.StatusCode, Err: errRateLimited}

		case resp.StatusCode >= 500 && attempts < maxRetries:
			wait := re.calculateBackoff(baseBackoff, attempts)
			log.Debug("server error, retrying", "status", resp.StatusCode, "wait", wait, "attempt", attempts+1, "max_retries", maxRetries)
			if serr := sleepContext(ctx, wait); serr != nil {
				return resp, &RequestError{Request: req, Response: resp, StatusCode: resp.StatusCode, Err: serr}
			}
			attempts++
			continue

		case resp.StatusCode >= 400:
			log.Debug("error status, not retrying", "status", resp.StatusCode)
			return resp, &RequestError{Request: req, Response: resp, StatusCode: resp.StatusCode}
		}

		log.Debug("request succeeded", "attempts", attempts+1)
		return resp, nil
	}
}

func (re *RequestExecutor) attempt(ctx context.Context, providerName string, req *NormalizedRequest, adapter ProviderAdapter, attempt int) (*NormalizedResponse, error) {
	ctx, span := re.tracer.Start(ctx, "sessionbridge.request", trace.WithAttributes(
		attribute.String("provider", providerName),
		attribute.String("http.request.method", req.Method),
		attribute.String("url.path", req.Endpoint),
		attribute.Int("attempt", attempt+1),
		attribute.Bool("retried", req.Retried()),
	))
	defer span.End()

	resp, err := adapter.ExecuteRequest(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, "error status")
	}
	return resp, nil
}

func (re *RequestExecutor) waitForRateLimit(providerName string, attempts int, baseBackoff time.Duration) time.Duration {
	if delay := re.sdk.rateLimiter.delayBeforeNextRequest(providerName); delay > 0 {
		return delay
	}
	// No reset info from the provider, fall back to exponential backoff.
	return re.calculateBackoff(baseBackoff, attempts)
}

func (re *RequestExecutor) calculateBackoff(base time.Duration, attempt int) time.Duration {
	backoff := base * (1 << attempt) // base * 2^attempt
	if backoff > maxBackoff || backoff <= 0 {
		backoff = maxBackoff
	}
	return backoff
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
