// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package api

import (
	"context"
	"time"

	"github.com/tomtom215/latentspace/internal/hierarchy"
	"github.com/tomtom215/latentspace/internal/jobqueue"
)

// StreamHealth reports whether the job stream is reachable.
// *jobqueue.StreamInitializer implements it.
type StreamHealth interface {
	IsHealthy(ctx context.Context) bool
}

// Handler contains dependencies for API handlers
//
// Handler methods are split across files:
//   - handlers_experiments.go: experiment browser
//   - handlers_results.go: reductions and clusters, job submission
//   - handlers_tasks.go: task status
//   - handlers_health.go: /status
type Handler struct {
	store     *hierarchy.Store
	queue     *jobqueue.Client
	stream    StreamHealth
	startTime time.Time

	// statusTimeout bounds the dependency checks of /status.
	statusTimeout time.Duration
}

// NewHandler creates the API handler. stream may be nil, in which case the
// queue is reported from the result of a worker inspection only.
func NewHandler(store *hierarchy.Store, queue *jobqueue.Client, stream StreamHealth) *Handler {
	return &Handler{
		store:         store,
		queue:         queue,
		stream:        stream,
		startTime:     time.Now(),
		statusTimeout: 5 * time.Second,
	}
}
