// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package app

import (
	"context"
	"fmt"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/latentspace/internal/compute"
	"github.com/tomtom215/latentspace/internal/config"
	"github.com/tomtom215/latentspace/internal/hierarchy"
	"github.com/tomtom215/latentspace/internal/jobqueue"
	"github.com/tomtom215/latentspace/internal/logging"
	"github.com/tomtom215/latentspace/internal/storage"
	"github.com/tomtom215/latentspace/internal/supervisor/services"
	"github.com/tomtom215/latentspace/internal/worker"
)

// Worker is the job-processing side of a process.
type Worker struct {
	Worker *worker.Worker

	queue      *Queue
	inspect    string
	subscriber *jobqueue.Subscriber
	poison     *jobqueue.Publisher
	router     *jobqueue.Router
}

// NewWorker wires the job worker behind a watermill router consuming the
// job stream. Undeliverable jobs go to the poison topic.
func NewWorker(cfg *config.Config, backend storage.Backend, queue *Queue, results jobqueue.ResultBackend) (*Worker, error) {
	w, err := worker.New(worker.Deps{
		Backend:     backend,
		Paths:       hierarchy.NewPaths(cfg.Hierarchy),
		Registry:    compute.DefaultRegistry(),
		Results:     results,
		Concurrency: cfg.Worker.Concurrency,
		Name:        cfg.Worker.Name,
	})
	if err != nil {
		return nil, err
	}

	subCfg := cfg.Subscriber(queue.URL)
	subscriber, err := jobqueue.NewSubscriber(&subCfg, logging.NewWatermillLogger("job-subscriber"))
	if err != nil {
		return nil, fmt.Errorf("create job subscriber: %w", err)
	}

	poison, err := jobqueue.NewPublisher(cfg.Publisher(queue.URL), logging.NewWatermillLogger("poison-publisher"))
	if err != nil {
		_ = subscriber.Close()
		return nil, fmt.Errorf("create poison publisher: %w", err)
	}

	routerCfg := cfg.Router()
	router, err := jobqueue.NewRouter(&routerCfg, poison.WatermillPublisher(), logging.NewWatermillLogger("job-router"))
	if err != nil {
		_ = poison.Close()
		_ = subscriber.Close()
		return nil, err
	}
	router.AddJobHandlers(subscriber.WatermillSubscriber(), w.Handle)

	logging.Info().
		Str("worker", w.Name()).
		Int("concurrency", cfg.Worker.Concurrency).
		Int("handlers", router.Handlers()).
		Msg("Job worker ready")

	return &Worker{
		Worker:     w,
		queue:      queue,
		inspect:    cfg.NATS.InspectSubject,
		subscriber: subscriber,
		poison:     poison,
		router:     router,
	}, nil
}

// Services returns the router and the introspection responder.
func (w *Worker) Services() []suture.Service {
	return []suture.Service{
		services.NewRouterService(w.router),
		services.NewServiceFunc("worker-inspect", func(ctx context.Context) error {
			return w.Worker.Serve(ctx, w.queue.Conn, w.inspect)
		}),
	}
}

// Close releases the subscriber and the poison publisher. Call it after
// the router has stopped.
func (w *Worker) Close() {
	if err := w.subscriber.Close(); err != nil {
		logging.Warn().Err(err).Msg("Error closing job subscriber")
	}
	if err := w.poison.Close(); err != nil {
		logging.Warn().Err(err).Msg("Error closing poison publisher")
	}
}
