// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

// Package worker executes reduction and clustering jobs taken from the job
// stream and commits their results to the hierarchy.
package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/latentspace/internal/compute"
	"github.com/tomtom215/latentspace/internal/hierarchy"
	"github.com/tomtom215/latentspace/internal/jobqueue"
	"github.com/tomtom215/latentspace/internal/logging"
	"github.com/tomtom215/latentspace/internal/metrics"
	"github.com/tomtom215/latentspace/internal/storage"
)

// ComputeError reports a job whose algorithm failed. It is permanent: the
// job is marked failed and never retried.
type ComputeError struct {
	Algorithm string
	Err       error
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("compute %s: %v", e.Algorithm, e.Err)
}

func (e *ComputeError) Unwrap() error {
	return e.Err
}

// Deps are the collaborators of a Worker.
type Deps struct {
	// Backend is the process-wide storage connection. The caller owns it.
	Backend  storage.Backend
	Paths    hierarchy.Paths
	Registry *compute.Registry
	Results  jobqueue.ResultBackend

	// Clock times the compute call. Defaults to time.Now.
	Clock func() time.Time
	// Concurrency is the number of jobs run at once. Defaults to 1.
	Concurrency int
	// Name identifies the worker in introspection replies. Defaults to the
	// host name and pid.
	Name string
	// NewResultID generates result directory names. Defaults to UUIDv7.
	NewResultID func() (string, error)
}

// Worker runs jobs. Handle is registered on the router for both job topics.
type Worker struct {
	store       *hierarchy.Store
	registry    *compute.Registry
	results     jobqueue.ResultBackend
	clock       func() time.Time
	name        string
	newResultID func() (string, error)

	slots   chan struct{}
	tracker *tracker
}

// New returns a Worker.
func New(deps Deps) (*Worker, error) {
	if deps.Backend == nil {
		return nil, errors.New("worker: storage backend required")
	}
	if deps.Results == nil {
		return nil, errors.New("worker: result backend required")
	}
	if deps.Registry == nil {
		deps.Registry = compute.DefaultRegistry()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Concurrency < 1 {
		deps.Concurrency = 1
	}
	if deps.Name == "" {
		deps.Name = defaultName()
	}
	if deps.NewResultID == nil {
		deps.NewResultID = newResultID
	}

	return &Worker{
		store:       hierarchy.NewStore(deps.Backend, deps.Paths),
		registry:    deps.Registry,
		results:     deps.Results,
		clock:       deps.Clock,
		name:        deps.Name,
		newResultID: deps.NewResultID,
		slots:       make(chan struct{}, deps.Concurrency),
		tracker:     newTracker(),
	}, nil
}

func defaultName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s@%d", host, os.Getpid())
}

func newResultID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Name returns the worker name.
func (w *Worker) Name() string {
	return w.name
}

// Snapshot returns the tasks the worker holds.
func (w *Worker) Snapshot() jobqueue.WorkerSnapshot {
	return w.tracker.snapshot(w.name)
}

// Serve answers introspection requests on subject until ctx is canceled.
func (w *Worker) Serve(ctx context.Context, nc *natsgo.Conn, subject string) error {
	return jobqueue.ServeInspect(ctx, nc, subject, w.Snapshot)
}

// Handle runs the job carried by msg. Jobs that fail are recorded as failed
// and acknowledged; only an undecodable envelope, or a shutdown before the
// job got a slot, returns an error.
func (w *Worker) Handle(msg *message.Message) error {
	job, err := jobqueue.DecodeJob(msg.Payload)
	if err != nil {
		logging.Error().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping undecodable job")
		return err
	}

	ctx := logging.ContextWithTaskID(msg.Context(), job.TaskID)
	ctx = logging.ContextWithTenant(ctx, job.TenantID)
	return w.Run(ctx, job)
}

// Run executes one job: reserve, wait for a slot, compute, commit, record.
func (w *Worker) Run(ctx context.Context, job jobqueue.Job) error {
	w.tracker.reserve(job.Info())
	defer w.tracker.release(job.TaskID)

	select {
	case w.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-w.slots }()

	if w.finished(ctx, job.TaskID) {
		logging.Ctx(ctx).Warn().
			Str("kind", string(job.Kind)).
			Str("experiment_id", job.ExperimentID).
			Msg("Skipping redelivered job that already finished")
		return nil
	}

	w.tracker.activate(job.TaskID, w.clock())
	w.setState(ctx, job, jobqueue.StateStarted, "", nil)

	log := logging.Ctx(ctx).With().
		Str("kind", string(job.Kind)).
		Str("algorithm", job.Algorithm).
		Str("experiment_id", job.ExperimentID).
		Logger()
	log.Info().Msg("Job started")

	// The job runs to completion once started.
	resultID, elapsed, err := w.execute(context.WithoutCancel(ctx), job)
	if err != nil {
		log.Error().Err(err).Msg("Job failed")
		w.setState(ctx, job, jobqueue.StateFailure, "", err)
		metrics.RecordJobFinished(string(job.Kind), string(jobqueue.StateFailure))
		return nil
	}

	log.Info().
		Str("result_id", resultID).
		Int("seconds_elapsed", elapsed).
		Msg("Job finished")
	w.setState(ctx, job, jobqueue.StateSuccess, resultID, nil)
	metrics.RecordJobFinished(string(job.Kind), string(jobqueue.StateSuccess))
	return nil
}

// finished reports whether the task already has a terminal record, as
// happens when JetStream redelivers a job that outlived its ack wait. A
// results backend failure counts as not finished.
func (w *Worker) finished(ctx context.Context, taskID string) bool {
	rec, ok, err := w.results.Get(ctx, taskID)
	if err != nil {
		logging.CtxErr(ctx, err).Msg("Failed to read task record before running")
		return false
	}
	return ok && rec.State.Terminal()
}

func (w *Worker) setState(ctx context.Context, job jobqueue.Job, state jobqueue.State, resultID string, cause error) {
	rec := jobqueue.TaskRecord{
		TaskID:    job.TaskID,
		State:     state,
		Name:      string(job.Kind),
		ResultID:  resultID,
		UpdatedAt: w.clock().UTC(),
	}
	if cause != nil {
		rec.Error = cause.Error()
	}
	if err := w.results.SetState(context.WithoutCancel(ctx), rec); err != nil {
		logging.CtxErr(ctx, err).Str("state", string(state)).Msg("Failed to record task state")
	}
}

// execute computes and commits the result. Nothing is written unless the
// compute call succeeded.
func (w *Worker) execute(ctx context.Context, job jobqueue.Job) (resultID string, elapsed int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ComputeError{Algorithm: job.Algorithm, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	ref, err := w.store.Resolve(ctx, job.TenantID, job.ExperimentID)
	if err != nil {
		return "", 0, err
	}
	data, err := w.store.ReadDataset(ctx, ref)
	if err != nil {
		return "", 0, err
	}

	start := w.clock()
	var files []hierarchy.File
	switch job.Kind {
	case jobqueue.KindReduction:
		files, err = w.reduce(ctx, job, data)
	case jobqueue.KindCluster:
		files, err = w.cluster(ctx, job, data)
	default:
		err = fmt.Errorf("%w: kind %q", jobqueue.ErrInvalidJob, job.Kind)
	}
	end := w.clock()
	if err != nil {
		return "", 0, err
	}
	metrics.RecordJobCompute(string(job.Kind), job.Algorithm, end.Sub(start))

	resultID, err = w.newResultID()
	if err != nil {
		return "", 0, fmt.Errorf("generate result id: %w", err)
	}

	elapsed = int(math.Round(end.Sub(start).Seconds()))
	meta := hierarchy.Metadata{
		Algorithm:      job.Algorithm,
		Params:         job.Params,
		StartDatetime:  start.UTC().Format(hierarchy.DatetimeLayout),
		EndDatetime:    end.UTC().Format(hierarchy.DatetimeLayout),
		SecondsElapsed: elapsed,
	}
	if job.Kind == jobqueue.KindReduction {
		meta.Components = job.Components
	}
	if meta.Params == nil {
		meta.Params = map[string]any{}
	}

	if ref.Demo {
		if err := w.store.EnsureDemoSandbox(ctx, ref.Tenant, ref.Experiment); err != nil {
			return "", 0, fmt.Errorf("prepare demo sandbox: %w", err)
		}
	}
	if err := w.store.WriteResult(ctx, ref, job.Kind, resultID, meta, files...); err != nil {
		return "", 0, err
	}
	return resultID, elapsed, nil
}

func (w *Worker) reduce(ctx context.Context, job jobqueue.Job, data [][]float64) ([]hierarchy.File, error) {
	components := 0
	if job.Components != nil {
		components = *job.Components
	}
	out, err := w.registry.Reduce(ctx, job.Algorithm, data, components, job.Params)
	if err != nil {
		return nil, &ComputeError{Algorithm: job.Algorithm, Err: err}
	}

	f, err := hierarchy.JSONFile(hierarchy.ReductionFile, out)
	if err != nil {
		return nil, err
	}
	return []hierarchy.File{f}, nil
}

func (w *Worker) cluster(ctx context.Context, job jobqueue.Job, data [][]float64) ([]hierarchy.File, error) {
	labels, err := w.registry.Cluster(ctx, job.Algorithm, data, job.Params)
	if err != nil {
		return nil, &ComputeError{Algorithm: job.Algorithm, Err: err}
	}

	silhouette, scores, ok, err := compute.Quality(ctx, data, labels)
	if err != nil {
		return nil, &ComputeError{Algorithm: job.Algorithm, Err: fmt.Errorf("quality metrics: %w", err)}
	}

	var scoresValue any = map[string]any{}
	if ok {
		scoresValue = scores
	}

	files := make([]hierarchy.File, 0, 3)
	for _, item := range []struct {
		name  string
		value any
	}{
		{hierarchy.ClusterFile, labels},
		{hierarchy.SilhouetteFile, silhouette},
		{hierarchy.ScoresFile, scoresValue},
	} {
		f, err := hierarchy.JSONFile(item.name, item.value)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}
