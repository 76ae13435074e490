// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package app

import (
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/latentspace/internal/api"
	"github.com/tomtom215/latentspace/internal/cache"
	"github.com/tomtom215/latentspace/internal/compute"
	"github.com/tomtom215/latentspace/internal/config"
	"github.com/tomtom215/latentspace/internal/gate"
	"github.com/tomtom215/latentspace/internal/hierarchy"
	"github.com/tomtom215/latentspace/internal/jobqueue"
	"github.com/tomtom215/latentspace/internal/logging"
	"github.com/tomtom215/latentspace/internal/storage"
)

// API is the HTTP tier.
type API struct {
	Server *http.Server
	Store  *hierarchy.Store

	publisher *jobqueue.Publisher
}

// NewAPI wires the HTTP tier over backend, the queue and the task records.
func NewAPI(cfg *config.Config, backend storage.Backend, queue *Queue, results jobqueue.ResultBackend) (*API, error) {
	pubCfg := cfg.Publisher(queue.URL)
	publisher, err := jobqueue.NewPublisher(pubCfg, logging.NewWatermillLogger("job-publisher"))
	if err != nil {
		return nil, fmt.Errorf("create job publisher: %w", err)
	}
	publisher.SetCircuitBreaker(jobqueue.NewCircuitBreaker(jobqueue.DefaultCircuitBreakerConfig("job-publisher")))

	paths := hierarchy.NewPaths(cfg.Hierarchy)
	opts := []hierarchy.Option{hierarchy.WithLinkSuffix(cfg.LinkSuffix())}
	if cfg.Server.LinkCacheSize > 0 {
		opts = append(opts, hierarchy.WithLinkCache(cache.NewLRU[string](cfg.Server.LinkCacheSize, cfg.Server.LinkCacheTTL)))
	}
	store := hierarchy.NewStore(backend, paths, opts...)

	client := jobqueue.NewClient(
		publisher,
		results,
		jobqueue.NewNATSIntrospector(queue.Conn, cfg.Inspect()),
		compute.DefaultRegistry(),
	)

	mwCfg := api.DefaultChiMiddlewareConfig()
	mwCfg.CORSAllowedOrigins = cfg.Server.CORSOrigins
	mwCfg.RateLimitRequests = cfg.Server.RateLimitRequests
	mwCfg.RateLimitWindow = cfg.Server.RateLimitWindow
	mwCfg.RateLimitDisabled = cfg.Server.RateLimitDisabled
	if cfg.Server.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}

	handler := api.NewHandler(store, client, queue.Stream)
	router := api.NewRouter(handler, gate.New(backend, paths), mwCfg)

	return &API{
		Server: &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           router.SetupChi(),
			ReadTimeout:       cfg.Server.ReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      cfg.Server.WriteTimeout,
			IdleTimeout:       60 * time.Second,
		},
		Store:     store,
		publisher: publisher,
	}, nil
}

// Close waits for background sandbox copies and closes the publisher.
func (a *API) Close() {
	a.Store.Wait()
	if err := a.publisher.Close(); err != nil {
		logging.Warn().Err(err).Msg("Error closing job publisher")
	}
}
