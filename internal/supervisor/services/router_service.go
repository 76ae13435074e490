// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package services

import (
	"context"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/latentspace/internal/logging"
)

// JobRouter is the lifecycle of *jobqueue.Router.
type JobRouter interface {
	Run(ctx context.Context) error
	Close() error
}

// RouterService runs the job router. Run may be called only once on a
// watermill router, so the service never asks to be restarted.
type RouterService struct {
	router JobRouter
	name   string
}

// NewRouterService wraps router.
func NewRouterService(router JobRouter) *RouterService {
	return &RouterService{router: router, name: "job-router"}
}

// Serve implements suture.Service. Run closes the router, draining in-flight
// jobs, when ctx ends. Any other return terminates the supervisor tree.
func (s *RouterService) Serve(ctx context.Context) error {
	err := s.router.Run(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	log := logging.Error()
	if err != nil {
		log = log.Err(err)
	}
	log.Msg("Job router stopped unexpectedly")
	_ = s.router.Close()
	return suture.ErrTerminateSupervisorTree
}

// String implements fmt.Stringer.
func (s *RouterService) String() string {
	return s.name
}

// ServiceFunc is a named suture.Service backed by a function.
type ServiceFunc struct {
	name string
	run  func(ctx context.Context) error
}

// NewServiceFunc returns a service that calls run on every (re)start.
func NewServiceFunc(name string, run func(ctx context.Context) error) *ServiceFunc {
	return &ServiceFunc{name: name, run: run}
}

// Serve implements suture.Service.
func (s *ServiceFunc) Serve(ctx context.Context) error {
	return s.run(ctx)
}

// String implements fmt.Stringer.
func (s *ServiceFunc) String() string {
	return s.name
}
