// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

// Package metrics holds the Prometheus collectors shared by the API server
// and the job workers. Everything registers on the default registry and is
// exposed on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Job Metrics
	JobsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_submitted_total",
			Help: "Total number of jobs published to the queue",
		},
		[]string{"kind", "algorithm"},
	)

	JobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_finished_total",
			Help: "Total number of jobs that reached a terminal state",
		},
		[]string{"kind", "state"},
	)

	JobComputeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "job_compute_duration_seconds",
			Help:    "Wall-clock time spent inside the compute call",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 900},
		},
		[]string{"kind", "algorithm"},
	)

	JobsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Jobs currently executing in this process",
		},
	)

	JobsReserved = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_jobs_reserved",
			Help: "Jobs received by this process and waiting for a slot",
		},
	)

	PendingScans = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jobs_pending_scans_total",
			Help: "Number of live worker inspections performed for pending counts",
		},
	)

	// Storage Metrics
	StorageOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_operations_total",
			Help: "Storage backend calls by operation and outcome",
		},
		[]string{"backend", "operation", "outcome"},
	)

	StorageRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_retries_total",
			Help: "Storage calls retried after a transient failure",
		},
		[]string{"backend", "operation"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Queue Metrics
	QueuePublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_publish_total",
			Help: "Messages published to the job stream",
		},
		[]string{"topic", "outcome"},
	)

	QueueInspections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_inspections_total",
			Help: "Worker introspection scans used for pending counts",
		},
		[]string{"outcome"},
	)

	QueueInspectWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "queue_inspect_workers",
			Help: "Workers that answered the last introspection scan",
		},
	)
)

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordJobSubmitted counts a job accepted by the queue.
func RecordJobSubmitted(kind, algorithm string) {
	JobsSubmitted.WithLabelValues(kind, algorithm).Inc()
}

// RecordJobFinished counts a terminal job state.
func RecordJobFinished(kind, state string) {
	JobsFinished.WithLabelValues(kind, state).Inc()
}

// RecordJobCompute observes the duration of one compute call.
func RecordJobCompute(kind, algorithm string, d time.Duration) {
	JobComputeDuration.WithLabelValues(kind, algorithm).Observe(d.Seconds())
}

// RecordStorageOperation records the outcome of one storage call
// (after retries). outcome is ok, not_found or error.
func RecordStorageOperation(backend, op, outcome string) {
	StorageOperations.WithLabelValues(backend, op, outcome).Inc()
}

// RecordStorageRetry records one retried storage attempt.
func RecordStorageRetry(backend, op string) {
	StorageRetries.WithLabelValues(backend, op).Inc()
}

// SetCircuitBreakerState records a breaker transition.
func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordQueuePublish records one publish attempt on the job stream.
func RecordQueuePublish(topic string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	QueuePublishes.WithLabelValues(topic, outcome).Inc()
}

// RecordQueueInspection records one introspection scan and the number of
// workers that answered it.
func RecordQueueInspection(workers int, err error) {
	if err != nil {
		QueueInspections.WithLabelValues("error").Inc()
		return
	}
	QueueInspections.WithLabelValues("ok").Inc()
	QueueInspectWorkers.Set(float64(workers))
}
