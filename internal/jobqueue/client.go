// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/latentspace/internal/compute"
	"github.com/tomtom215/latentspace/internal/logging"
	"github.com/tomtom215/latentspace/internal/metrics"
	"github.com/tomtom215/latentspace/internal/validation"
)

// ErrQueueUnavailable is returned when a job could not be handed to the
// broker.
var ErrQueueUnavailable = errors.New("jobqueue: queue unavailable")

// JobPublisher publishes job messages. *Publisher implements it.
type JobPublisher interface {
	Publish(ctx context.Context, topic string, msg *message.Message) error
}

// Client is the API-side view of the queue.
type Client struct {
	publisher JobPublisher
	results   ResultBackend
	inspector JobIntrospector
	registry  *compute.Registry
	now       func() time.Time
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClock overrides the submission clock.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) { c.now = now }
}

// NewClient returns a queue client. registry validates submissions before
// they are published.
func NewClient(publisher JobPublisher, results ResultBackend, inspector JobIntrospector, registry *compute.Registry, opts ...ClientOption) *Client {
	c := &Client{
		publisher: publisher,
		results:   results,
		inspector: inspector,
		registry:  registry,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Validate checks req against the compute registry.
func (c *Client) Validate(req JobRequest) error {
	var err error
	switch req.Kind {
	case KindReduction:
		_, err = c.registry.ValidateReduction(req.Algorithm, req.Components, req.Params)
	case KindCluster:
		_, err = c.registry.ValidateCluster(req.Algorithm, req.Params)
	default:
		err = &compute.ValidationError{
			Err: validation.NewRequestValidationError("kind", fmt.Sprintf("unknown job kind %q", req.Kind)),
		}
	}
	return err
}

// Submit validates req and publishes it. The returned task id identifies the
// job for Status. A job that fails validation is never published.
func (c *Client) Submit(ctx context.Context, req JobRequest) (string, error) {
	if err := c.Validate(req); err != nil {
		return "", err
	}

	job := NewJob(req, c.now())
	msg, err := job.Message()
	if err != nil {
		return "", err
	}

	if err := c.publisher.Publish(ctx, Topic(job.Kind), msg); err != nil {
		logging.CtxErr(ctx, err).
			Str("task_id", job.TaskID).
			Str("kind", string(job.Kind)).
			Msg("Failed to publish job")
		return "", fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}

	metrics.RecordJobSubmitted(string(job.Kind), job.Algorithm)
	logging.Ctx(ctx).Info().
		Str("task_id", job.TaskID).
		Str("kind", string(job.Kind)).
		Str("algorithm", job.Algorithm).
		Str("experiment_id", job.ExperimentID).
		Str("tenant_id", job.TenantID).
		Msg("Job submitted")
	return job.TaskID, nil
}

// Status reports the state of taskID. Unknown and expired tasks are pending.
func (c *Client) Status(ctx context.Context, taskID string) (TaskStatus, error) {
	rec, ok, err := c.results.Get(ctx, taskID)
	if err != nil {
		return TaskStatus{}, fmt.Errorf("task status: %w", err)
	}
	if !ok {
		return TaskStatus{TaskID: taskID, Status: StatePending}, nil
	}
	rec.TaskID = taskID
	return rec.Status(), nil
}

// PendingCount counts the jobs of kind on the experiment that workers hold,
// active or reserved. Jobs still waiting in the stream are not counted.
func (c *Client) PendingCount(ctx context.Context, kind Kind, experimentID, tenantID string) (int, error) {
	snapshots, err := c.inspector.Inspect(ctx)
	metrics.RecordQueueInspection(len(snapshots), err)
	if err != nil {
		return 0, fmt.Errorf("inspect workers: %w", err)
	}

	count := 0
	for _, snap := range snapshots {
		for _, tasks := range [][]TaskInfo{snap.Active, snap.Reserved} {
			for _, t := range tasks {
				if t.Matches(kind, experimentID, tenantID) {
					count++
				}
			}
		}
	}
	return count, nil
}

// Workers returns the number of workers that answered an inspect request.
func (c *Client) Workers(ctx context.Context) (int, error) {
	snapshots, err := c.inspector.Inspect(ctx)
	metrics.RecordQueueInspection(len(snapshots), err)
	if err != nil {
		return 0, fmt.Errorf("inspect workers: %w", err)
	}
	return len(snapshots), nil
}

// PingResults checks the result backend.
func (c *Client) PingResults(ctx context.Context) error {
	return c.results.Ping(ctx)
}
