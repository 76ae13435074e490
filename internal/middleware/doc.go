// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

/*
Package middleware provides HTTP middleware shared by the API router.

Key Components:

  - RequestID: X-Request-ID propagation and logging context
  - PrometheusMetrics: request count, latency and in-flight instrumentation
  - Compression: chi compressor restricted to JSON result payloads

All middleware has the chi signature func(http.Handler) http.Handler and is
safe for concurrent use.

Usage:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.With(middleware.Compression).Get("/experiments/{eid}/reductions/{rid}", h)

The metrics middleware labels requests with the chi route pattern rather
than the raw path, so result and task ids do not create new series.
*/
package middleware
