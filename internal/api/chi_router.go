// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/latentspace/internal/gate"
	"github.com/tomtom215/latentspace/internal/hierarchy"
	"github.com/tomtom215/latentspace/internal/middleware"
)

// Router wires the handler, the tenant gate and the middleware stack.
type Router struct {
	handler *Handler
	gate    *gate.Gate
	config  *ChiMiddlewareConfig
}

// NewRouter creates a Router. A nil config uses DefaultChiMiddlewareConfig.
func NewRouter(handler *Handler, g *gate.Gate, config *ChiMiddlewareConfig) *Router {
	if config == nil {
		config = DefaultChiMiddlewareConfig()
	}
	return &Router{
		handler: handler,
		gate:    g,
		config:  config,
	}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Applied to all routes in order
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsMiddleware(router.config)) // must be global to answer OPTIONS preflight
	r.Use(rateLimitMiddleware(router.config))
	r.Use(middleware.PrometheusMetrics)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondMessage(w, http.StatusNotFound, MsgRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondMessage(w, http.StatusMethodNotAllowed, MsgNotAllowed)
	})

	h := router.handler

	r.Get("/status", h.Status)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/tasks/{task_id}", h.TaskStatus)

	r.Route("/experiments", func(r chi.Router) {
		r.Use(router.gate.Middleware)

		r.Get("/", h.ListExperiments)
		r.Route("/{eid}", func(r chi.Router) {
			r.Get("/", h.GetExperiment)
			r.Delete("/", h.DeleteExperiment)
			r.Get("/labels", h.GetLabels)
			r.Get("/images/{name}", h.ImageLink)

			r.Route("/reductions", router.resultRoutes(hierarchy.KindReduction, h.SubmitReduction))
			r.Route("/clusters", router.resultRoutes(hierarchy.KindCluster, h.SubmitCluster))
		})
	})

	return r
}

func (router *Router) resultRoutes(kind hierarchy.Kind, submit http.HandlerFunc) func(chi.Router) {
	h := router.handler
	return func(r chi.Router) {
		r.Get("/", h.ListResults(kind))
		r.Post("/", submit)
		r.Get("/pending", h.PendingCount(kind))
		r.With(middleware.Compression).Get("/{"+resultParam+"}", h.GetResult(kind))
		r.Delete("/{"+resultParam+"}", h.DeleteResult(kind))
	}
}
