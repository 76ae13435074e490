// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/latentspace/internal/logging"
	"github.com/tomtom215/latentspace/internal/metrics"
)

// RetryPolicy is the bounded retry budget applied to every storage call.
// Before retry k (0-based) the caller sleeps Unit * Delay^(Backoff*k).
type RetryPolicy struct {
	MaxAttempts int
	Delay       float64
	Backoff     float64
	Unit        time.Duration
}

// DefaultRetryPolicy returns 3 attempts sleeping 1s then 3s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Delay:       3,
		Backoff:     1,
		Unit:        time.Second,
	}
}

// Wait returns the sleep before retry number attempt (0-based).
func (p RetryPolicy) Wait(attempt int) time.Duration {
	return time.Duration(math.Pow(p.Delay, p.Backoff*float64(attempt)) * float64(p.Unit))
}

// BreakerConfig configures the circuit breaker in front of a backend.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive transient failures
	// that opens the breaker. Zero disables the breaker.
	FailureThreshold uint32
	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration
}

// DefaultBreakerConfig returns the breaker defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 10,
		Timeout:          30 * time.Second,
	}
}

// Retrying decorates a Backend with the retry policy and a circuit breaker.
type Retrying struct {
	next    Backend
	name    string
	policy  RetryPolicy
	breaker *gobreaker.CircuitBreaker[any]
	sleep   func(ctx context.Context, d time.Duration) error
}

// RetryOption customises a Retrying decorator.
type RetryOption func(*Retrying)

// WithBreaker installs a circuit breaker in front of the backend.
func WithBreaker(cfg BreakerConfig) RetryOption {
	return func(r *Retrying) {
		if cfg.FailureThreshold == 0 {
			return
		}
		name := "storage-" + r.name
		r.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     cfg.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.FailureThreshold
			},
			IsSuccessful: func(err error) bool {
				return err == nil || !IsTransient(err)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				metrics.SetCircuitBreakerState(name, int(to))
				logging.Warn().
					Str("breaker", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("Storage circuit breaker state changed")
			},
		})
	}
}

// WithSleep replaces the backoff sleep, mainly for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) RetryOption {
	return func(r *Retrying) {
		r.sleep = fn
	}
}

// NewRetrying wraps next. name labels logs and metrics ("webdav", "s3").
func NewRetrying(next Backend, name string, policy RetryPolicy, opts ...RetryOption) *Retrying {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.Unit <= 0 {
		policy.Unit = time.Second
	}

	r := &Retrying{
		next:   next,
		name:   name,
		policy: policy,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Unwrap returns the decorated backend.
func (r *Retrying) Unwrap() Backend {
	return r.next
}

func call[T any](ctx context.Context, r *Retrying, op, p string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < r.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			wait := r.policy.Wait(attempt - 1)
			metrics.RecordStorageRetry(r.name, op)
			logging.Ctx(ctx).Warn().
				Err(lastErr).
				Str("backend", r.name).
				Str("op", op).
				Str("path", p).
				Int("attempt", attempt).
				Dur("sleep", wait).
				Msg("Retrying storage call")

			if err := r.sleep(ctx, wait); err != nil {
				return zero, err
			}
		}

		v, err := guard(r, func() (T, error) { return fn(ctx) })
		if err == nil {
			metrics.RecordStorageOperation(r.name, op, "ok")
			return v, nil
		}
		if !IsTransient(err) {
			outcome := "error"
			if errors.Is(err, ErrNotFound) {
				outcome = "not_found"
			}
			metrics.RecordStorageOperation(r.name, op, outcome)
			return zero, err
		}
		lastErr = err
	}

	metrics.RecordStorageOperation(r.name, op, "error")
	return zero, fmt.Errorf("%w: %s %q after %d attempts: %w", ErrUnavailable, op, p, r.policy.MaxAttempts, lastErr)
}

func guard[T any](r *Retrying, fn func() (T, error)) (T, error) {
	if r.breaker == nil {
		return fn()
	}

	var zero T
	v, err := r.breaker.Execute(func() (any, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return zero, ErrCircuitOpen
	}
	if err != nil {
		return zero, err
	}
	if out, ok := v.(T); ok {
		return out, nil
	}
	return zero, nil
}

type none struct{}

func (r *Retrying) do(ctx context.Context, op, p string, fn func(context.Context) error) error {
	_, err := call(ctx, r, op, p, func(ctx context.Context) (none, error) {
		return none{}, fn(ctx)
	})
	return err
}

// Connect opens the backend session if the backend needs one.
func (r *Retrying) Connect(ctx context.Context) error {
	c, ok := r.next.(Connector)
	if !ok {
		return nil
	}
	return r.do(ctx, "connect", "", c.Connect)
}

// Exists reports whether p exists; not-found is false, not an error.
func (r *Retrying) Exists(ctx context.Context, p string) (bool, error) {
	ok, err := call(ctx, r, "exists", p, func(ctx context.Context) (bool, error) {
		return r.next.Exists(ctx, p)
	})
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return ok, err
}

func (r *Retrying) List(ctx context.Context, p string, opts ListOptions) ([]Entry, error) {
	return call(ctx, r, "list", p, func(ctx context.Context) ([]Entry, error) {
		return r.next.List(ctx, p, opts)
	})
}

func (r *Retrying) Read(ctx context.Context, p string) ([]byte, error) {
	return call(ctx, r, "read", p, func(ctx context.Context) ([]byte, error) {
		return r.next.Read(ctx, p)
	})
}

func (r *Retrying) Write(ctx context.Context, p string, data []byte) error {
	return r.do(ctx, "write", p, func(ctx context.Context) error {
		return r.next.Write(ctx, p, data)
	})
}

func (r *Retrying) Mkdir(ctx context.Context, p string) error {
	return r.do(ctx, "mkdir", p, func(ctx context.Context) error {
		return r.next.Mkdir(ctx, p)
	})
}

func (r *Retrying) Copy(ctx context.Context, src, dst string) error {
	return r.do(ctx, "copy", src, func(ctx context.Context) error {
		return r.next.Copy(ctx, src, dst)
	})
}

func (r *Retrying) Delete(ctx context.Context, p string) error {
	return r.do(ctx, "delete", p, func(ctx context.Context) error {
		return r.next.Delete(ctx, p)
	})
}

func (r *Retrying) ShareLink(ctx context.Context, p string) (string, error) {
	return call(ctx, r, "share", p, func(ctx context.Context) (string, error) {
		return r.next.ShareLink(ctx, p)
	})
}

// Close closes the underlying backend. It is not retried.
func (r *Retrying) Close() error {
	return r.next.Close()
}
