// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package jobqueue

import (
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/latentspace/internal/logging"
	"github.com/tomtom215/latentspace/internal/metrics"
)

// NewCircuitBreaker returns a breaker that opens after
// cfg.FailureThreshold consecutive failures. Transitions are logged and
// exported on the circuit breaker gauge.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *gobreaker.CircuitBreaker[any] {
	trip := func(c gobreaker.Counts) bool {
		return c.ConsecutiveFailures >= cfg.FailureThreshold
	}
	changed := func(name string, from, to gobreaker.State) {
		metrics.SetCircuitBreakerState(name, int(to))
		logging.Warn().
			Str("breaker", name).
			Stringer("from", from).
			Stringer("to", to).
			Msg("Circuit breaker state changed")
	}

	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:          cfg.Name,
		MaxRequests:   cfg.MaxRequests,
		Interval:      cfg.Interval,
		Timeout:       cfg.Timeout,
		ReadyToTrip:   trip,
		OnStateChange: changed,
	})
}
