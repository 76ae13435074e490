// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package main

import (
	"context"
	"time"

	"github.com/tomtom215/latentspace/internal/app"
	"github.com/tomtom215/latentspace/internal/config"
	"github.com/tomtom215/latentspace/internal/logging"
	"github.com/tomtom215/latentspace/internal/supervisor/services"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	settings := cfg.LoggingSettings()
	settings.Service = "server"
	logging.Init(settings)

	logging.Info().
		Str("storage", cfg.Storage.Type).
		Str("results", cfg.Results.Backend).
		Bool("nats_embedded", cfg.NATS.Embedded).
		Bool("worker_embedded", cfg.Worker.Embedded).
		Msg("Starting Latentspace server with supervisor tree")

	startCtx, cancelStart := context.WithTimeout(context.Background(), time.Minute)
	defer cancelStart()

	backend, err := app.OpenStorage(startCtx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing storage")
		}
	}()

	queue, err := app.OpenQueue(startCtx, cfg, "latentspace-server")
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize job queue")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		queue.Close(ctx)
	}()

	results, err := cfg.OpenResults(startCtx)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open task records")
	}
	defer func() {
		if err := results.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing task records")
		}
	}()

	tree, err := app.NewTree(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	if cfg.Worker.Embedded {
		w, err := app.NewWorker(cfg, backend, queue, results)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize embedded worker")
		}
		defer w.Close()
		for _, svc := range w.Services() {
			tree.AddWorkerService(svc)
		}
		logging.Info().Msg("Embedded worker added to supervisor tree")
	}

	apiTier, err := app.NewAPI(cfg, backend, queue, results)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize API")
	}
	defer apiTier.Close()

	tree.AddAPIService(services.NewHTTPServerService(apiTier.Server, services.DefaultShutdownTimeout))
	logging.Info().Str("addr", apiTier.Server.Addr).Msg("HTTP server service added")

	app.Serve(tree)
	logging.Info().Msg("Application stopped gracefully")
}
