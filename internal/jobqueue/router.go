// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package jobqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

// RouterConfig configures the worker side message router.
type RouterConfig struct {
	// CloseTimeout bounds how long Close waits for running jobs.
	CloseTimeout time.Duration

	// A handler returns an error only for envelopes it cannot run at all.
	// Failed computations are recorded and acknowledged, so they are never
	// retried here.
	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMultiplier      float64

	// PoisonQueueTopic receives envelopes that exhausted their retries.
	// Empty disables it.
	PoisonQueueTopic string
}

func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CloseTimeout:         30 * time.Second,
		RetryMaxRetries:      2,
		RetryInitialInterval: time.Second,
		RetryMaxInterval:     10 * time.Second,
		RetryMultiplier:      2.0,
		PoisonQueueTopic:     TopicPrefix + "poison",
	}
}

// Router feeds jobs from the subscriber to the worker handler.
type Router struct {
	router   *message.Router
	handlers int
}

// NewRouter builds a router whose handlers run behind, from outermost in,
// the poison queue, panic recovery and retry. A nil poison publisher
// disables the poison queue.
func NewRouter(cfg *RouterConfig, poison message.Publisher, logger watermill.LoggerAdapter) (*Router, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	if cfg == nil {
		def := DefaultRouterConfig()
		cfg = &def
	}

	r, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("create job router: %w", err)
	}

	chain, err := cfg.middleware(poison, logger)
	if err != nil {
		return nil, err
	}
	r.AddMiddleware(chain...)
	return &Router{router: r}, nil
}

func (c *RouterConfig) middleware(poison message.Publisher, logger watermill.LoggerAdapter) ([]message.HandlerMiddleware, error) {
	var chain []message.HandlerMiddleware
	if poison != nil && c.PoisonQueueTopic != "" {
		pq, err := middleware.PoisonQueue(poison, c.PoisonQueueTopic)
		if err != nil {
			return nil, fmt.Errorf("poison queue: %w", err)
		}
		chain = append(chain, pq)
	}

	chain = append(chain, middleware.Recoverer)

	if c.RetryMaxRetries > 0 {
		retry := middleware.Retry{
			MaxRetries:      c.RetryMaxRetries,
			InitialInterval: c.RetryInitialInterval,
			MaxInterval:     c.RetryMaxInterval,
			Multiplier:      c.RetryMultiplier,
			Logger:          logger,
		}
		chain = append(chain, retry.Middleware)
	}
	return chain, nil
}

// AddJobHandlers subscribes handler to the topic of every job kind.
func (r *Router) AddJobHandlers(sub message.Subscriber, handler message.NoPublishHandlerFunc) {
	for _, kind := range []Kind{KindReduction, KindCluster} {
		r.router.AddConsumerHandler("jobs_"+string(kind), Topic(kind), sub, handler)
		r.handlers++
	}
}

// Run processes jobs until ctx ends or Close is called. A watermill router
// runs only once.
func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Running is closed once the handlers are subscribed.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// Close stops the router, waiting up to CloseTimeout for running jobs.
func (r *Router) Close() error {
	return r.router.Close()
}

func (r *Router) Handlers() int {
	return r.handlers
}
