// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

// Package main is the entry point for a Latentspace job worker. It
// consumes reduction and clustering jobs from the NATS job stream, writes
// results into the storage hierarchy and records task state in the shared
// task record backend. It reads the same configuration as the server.
package main

import (
	"context"
	"time"

	"github.com/tomtom215/latentspace/internal/app"
	"github.com/tomtom215/latentspace/internal/config"
	"github.com/tomtom215/latentspace/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	settings := cfg.LoggingSettings()
	settings.Service = "worker"
	logging.Init(settings)

	if cfg.Results.Backend != config.ResultsRedis {
		logging.Fatal().
			Str("results_backend", cfg.Results.Backend).
			Msg("A separate worker process needs RESULTS_BACKEND=redis to share task records with the server")
	}
	// A worker never hosts the broker.
	cfg.NATS.Embedded = false

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

	queue, err := app.OpenQueue(startCtx, cfg, "latentspace-worker")
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

	w, err := app.NewWorker(cfg, backend, queue, results)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize worker")
	}
	defer w.Close()
	for _, svc := range w.Services() {
		tree.AddWorkerService(svc)
	}

	logging.Info().Str("worker", w.Worker.Name()).Msg("Starting Latentspace worker")
	app.Serve(tree)
	logging.Info().Msg("Worker stopped gracefully")
}
