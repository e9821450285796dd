// renewal.go
// ----------
// RenewalCoordinator makes sure that at most one session renewal is in flight per provider.
//
// Every caller whose request failed unauthenticated calls Await. The first caller to arrive
// while the coordinator is idle starts the renewal; it and every later caller are queued as
// waiters and released together, in arrival order, once the renewal settles. The renewing
// flag and the queue are guarded by one mutex, and the flag is cleared in the same critical
// section that detaches the queue, so no caller can join a queue that is being drained.
package sessionbridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// waiter is a caller suspended behind an in-flight renewal.
type waiter struct {
	resolve func()
	reject  func(error)
}

// waitQueue is a FIFO of waiters. It is not synchronized; the coordinator's mutex guards it.
type waitQueue struct {
	items []waiter
}

func (q *waitQueue) enqueue(w waiter) {
	q.items = append(q.items, w)
}

func (q *waitQueue) len() int {
	return len(q.items)
}

// drain detaches every waiter in insertion order and leaves the queue empty.
func (q *waitQueue) drain() []waiter {
	items := q.items
	q.items = nil
	return items
}

// release settles each waiter exactly once, in order.
func release(waiters []waiter, err error) {
	for _, w := range waiters {
		if err != nil {
			w.reject(err)
		} else {
			w.resolve()
		}
	}
}

type RenewalCoordinator struct {
	provider  string
	renew     func(ctx context.Context) error
	timeout   time.Duration
	onFailure func(ctx context.Context, err error)

	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer

	mu       sync.Mutex
	renewing bool
	waiters  waitQueue
}

// NewRenewalCoordinator returns an idle coordinator. renew performs the actual renewal call;
// onFailure runs once per failed renewal, after every waiter has been rejected.
func NewRenewalCoordinator(provider string, renew func(ctx context.Context) error, timeout time.Duration, onFailure func(ctx context.Context, err error), logger *slog.Logger, metrics *Metrics) *RenewalCoordinator {
	if timeout <= 0 {
		timeout = DefaultRenewalTimeout
	}
	return &RenewalCoordinator{
		provider:  provider,
		renew:     renew,
		timeout:   timeout,
		onFailure: onFailure,
		logger:    logger,
		metrics:   metrics,
		tracer:    otel.Tracer(tracerName),
	}
}

// Await blocks until the current (or a newly started) renewal settles. It returns nil when
// the session was renewed and a *RenewalError otherwise. If ctx ends first, Await returns
// ctx.Err(); the renewal itself keeps running for the other waiters.
func (c *RenewalCoordinator) Await(ctx context.Context) error {
	done := make(chan error, 1)

	c.mu.Lock()
	c.waiters.enqueue(waiter{
		resolve: func() { done <- nil },
		reject:  func(err error) { done <- err },
	})
	n := c.waiters.len()
	start := !c.renewing
	c.renewing = true
	c.mu.Unlock()

	c.metrics.setWaiters(c.provider, n)
	if start {
		go c.run(context.WithoutCancel(ctx))
	} else {
		c.logger.Debug("renewal in flight, queued", "provider", c.provider, "position", n)
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Renewing reports whether a renewal call is outstanding.
func (c *RenewalCoordinator) Renewing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renewing
}

// Waiting returns the number of callers queued behind the current renewal.
func (c *RenewalCoordinator) Waiting() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waiters.len()
}

func (c *RenewalCoordinator) run(ctx context.Context) {
	ctx, span := c.tracer.Start(ctx, "sessionbridge.renew", trace.WithAttributes(
		attribute.String("provider", c.provider),
	))
	defer span.End()

	c.logger.Debug("renewing session", "provider", c.provider)
	started := time.Now()
	err := c.call(ctx)
	c.metrics.observeRenewal(c.provider, err)

	c.mu.Lock()
	waiters := c.waiters.drain()
	c.renewing = false
	c.mu.Unlock()
	c.metrics.setWaiters(c.provider, 0)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "renewal failed")
		c.logger.Warn("session renewal failed", "provider", c.provider, "err", err, "waiters", len(waiters), "elapsed", time.Since(started))
	} else {
		c.logger.Debug("session renewed", "provider", c.provider, "waiters", len(waiters), "elapsed", time.Since(started))
	}

	release(waiters, err)
	if err != nil && c.onFailure != nil {
		c.onFailure(ctx, err)
	}
}

// call runs the renewal under the coordinator timeout. Every failure, timeout included,
// comes back as a *RenewalError.
func (c *RenewalCoordinator) call(ctx context.Context) error {
	rctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.renew(rctx)
	if err == nil {
		return nil
	}
	if errors.Is(rctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %v: %w", ErrRenewalTimeout, c.timeout, err)
	}
	return &RenewalError{Provider: c.provider, Err: err}
}
