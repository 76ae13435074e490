// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package worker

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"gonum.org/v1/gonum/mat"

	"github.com/tomtom215/latentspace/internal/compute"
	"github.com/tomtom215/latentspace/internal/hierarchy"
	"github.com/tomtom215/latentspace/internal/jobqueue"
	"github.com/tomtom215/latentspace/internal/storage"
)

// stepClock advances by step on every call.
type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

type fixture struct {
	worker  *Worker
	mem     *storage.Memory
	results *jobqueue.MemoryResults
	clock   *stepClock
}

func newFixture(t *testing.T, registry *compute.Registry, concurrency int) *fixture {
	t.Helper()

	mem := storage.NewMemory()
	ctx := context.Background()

	rng := rand.New(rand.NewPCG(7, 11))
	rows := make([][]float64, 100)
	for i := range rows {
		rows[i] = make([]float64, 50)
		for j := range rows[i] {
			rows[i][j] = rng.NormFloat64()
		}
	}
	wide, _ := json.Marshal(rows)

	line := make([][]float64, 20)
	for i := range line {
		line[i] = []float64{float64(i) * 0.1, 0}
	}
	tight, _ := json.Marshal(line)

	files := map[string][]byte{
		"lse-alice/e1/metadata.json":         []byte(`{}`),
		"lse-alice/e1/embeddings.json":       wide,
		"lse-alice/line/metadata.json":       []byte(`{}`),
		"lse-alice/line/embeddings.json":     tight,
		"lse-demo/demo-line/metadata.json":   []byte(`{}`),
		"lse-demo/demo-line/embeddings.json": tight,
	}
	for p, data := range files {
		if err := mem.Write(ctx, p, data); err != nil {
			t.Fatal(err)
		}
	}

	clock := &stepClock{now: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC), step: 2600 * time.Millisecond}
	results := jobqueue.NewMemoryResults(0)
	if registry == nil {
		registry = compute.DefaultRegistry()
	}
	w, err := New(Deps{
		Backend:     mem,
		Paths:       hierarchy.NewPaths(hierarchy.DefaultConfig()),
		Registry:    registry,
		Results:     results,
		Clock:       clock.Now,
		Concurrency: concurrency,
		Name:        "test-worker",
	})
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{worker: w, mem: mem, results: results, clock: clock}
}

func (f *fixture) run(t *testing.T, req jobqueue.JobRequest) (jobqueue.Job, jobqueue.TaskRecord) {
	t.Helper()
	job := jobqueue.NewJob(req, time.Now())
	if err := f.worker.Run(context.Background(), job); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	rec, ok, err := f.results.Get(context.Background(), job.TaskID)
	if err != nil || !ok {
		t.Fatalf("No task record: %v", err)
	}
	return job, rec
}

func (f *fixture) readJSON(t *testing.T, p string, v any) {
	t.Helper()
	data, err := f.mem.Read(context.Background(), p)
	if err != nil {
		t.Fatalf("read %s: %v", p, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode %s: %v", p, err)
	}
}

func TestReductionJob(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, 1)
	_, rec := f.run(t, jobqueue.JobRequest{
		Kind: jobqueue.KindReduction, Algorithm: "pca", Components: 2,
		ExperimentID: "e1", TenantID: "alice",
	})
	if rec.State != jobqueue.StateSuccess || rec.Name != "reduction" || rec.ResultID == "" {
		t.Fatalf("Record = %+v", rec)
	}

	dir := "lse-alice/e1/reductions/" + rec.ResultID
	var reduction [][]float64
	f.readJSON(t, dir+"/reduction.json", &reduction)
	if len(reduction) != 100 || len(reduction[0]) != 2 {
		t.Errorf("Reduction is %dx%d, want 100x2", len(reduction), len(reduction[0]))
	}

	var meta hierarchy.Metadata
	f.readJSON(t, dir+"/metadata.json", &meta)
	if meta.Algorithm != "pca" || meta.Components == nil || *meta.Components != 2 {
		t.Errorf("Metadata = %+v", meta)
	}
	// 2.6s between the two compute clock reads rounds to 3.
	if meta.SecondsElapsed != 3 {
		t.Errorf("SecondsElapsed = %d, want 3", meta.SecondsElapsed)
	}
	start, err := time.Parse(hierarchy.DatetimeLayout, meta.StartDatetime)
	if err != nil {
		t.Fatal(err)
	}
	end, _ := time.Parse(hierarchy.DatetimeLayout, meta.EndDatetime)
	if !end.After(start) {
		t.Errorf("start %s, end %s", meta.StartDatetime, meta.EndDatetime)
	}

	// The stored result reads back through the hierarchy.
	store := hierarchy.NewStore(f.mem, hierarchy.NewPaths(hierarchy.DefaultConfig()))
	list, err := store.ListResults(context.Background(), "alice", "e1", hierarchy.KindReduction)
	if err != nil || len(list) != 1 || list[0].ID != rec.ResultID {
		t.Errorf("ListResults = %+v, %v", list, err)
	}
}

func TestClusterJobSingleCluster(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, 1)
	_, rec := f.run(t, jobqueue.JobRequest{
		Kind: jobqueue.KindCluster, Algorithm: "dbscan",
		Params:       map[string]any{"eps": 0.5, "min_samples": 1},
		ExperimentID: "line", TenantID: "alice",
	})
	if rec.State != jobqueue.StateSuccess {
		t.Fatalf("Record = %+v", rec)
	}

	dir := "lse-alice/line/clusters/" + rec.ResultID
	var labels []int
	f.readJSON(t, dir+"/cluster.json", &labels)
	if len(labels) != 20 {
		t.Fatalf("Labels = %v", labels)
	}
	for _, l := range labels {
		if l != 0 {
			t.Fatalf("Expected a single cluster, got %v", labels)
		}
	}

	for name, want := range map[string]string{"silhouette.json": "[]", "scores.json": "{}"} {
		data, err := f.mem.Read(context.Background(), dir+"/"+name)
		if err != nil {
			t.Fatal(err)
		}
		if strings.TrimSpace(string(data)) != want {
			t.Errorf("%s = %s, want %s", name, data, want)
		}
	}

	var meta map[string]any
	f.readJSON(t, dir+"/metadata.json", &meta)
	if _, ok := meta["components"]; ok {
		t.Error("Cluster metadata carries components")
	}
}

func TestClusterJobWithQualityScores(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, 1)
	_, rec := f.run(t, jobqueue.JobRequest{
		Kind: jobqueue.KindCluster, Algorithm: "kmeans",
		Params:       map[string]any{"n_clusters": 2},
		ExperimentID: "line", TenantID: "alice",
	})
	if rec.State != jobqueue.StateSuccess {
		t.Fatalf("Record = %+v", rec)
	}

	dir := "lse-alice/line/clusters/" + rec.ResultID
	var silhouette []float64
	f.readJSON(t, dir+"/silhouette.json", &silhouette)
	if len(silhouette) != 20 {
		t.Errorf("Silhouette has %d entries, want 20", len(silhouette))
	}
	var scores compute.Scores
	f.readJSON(t, dir+"/scores.json", &scores)
	if scores.CalinskiHarabasz <= 0 {
		t.Errorf("Scores = %+v", scores)
	}
}

func TestDemoJobWritesToSandbox(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, 1)
	_, rec := f.run(t, jobqueue.JobRequest{
		Kind: jobqueue.KindReduction, Algorithm: "truncated_svd", Components: 2,
		ExperimentID: "demo-line", TenantID: "alice",
	})
	if rec.State != jobqueue.StateSuccess {
		t.Fatalf("Record = %+v", rec)
	}
	ok, _ := f.mem.Exists(context.Background(), "lse-demo/demo-line/data-alice/reductions/"+rec.ResultID+"/metadata.json")
	if !ok {
		t.Error("Demo result not written to the tenant sandbox")
	}
	if ok, _ := f.mem.Exists(context.Background(), "lse-demo/demo-line/reductions/"+rec.ResultID); ok {
		t.Error("Demo result written to the shared tree")
	}
}

func TestFailedJobsLeaveNoResult(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     jobqueue.JobRequest
		prepare func(*storage.Memory)
	}{
		{
			name: "invalid params",
			req: jobqueue.JobRequest{
				Kind: jobqueue.KindCluster, Algorithm: "kmeans",
				Params: map[string]any{"n_clusters": 500}, ExperimentID: "line", TenantID: "alice",
			},
		},
		{
			name: "more clusters than samples",
			req: jobqueue.JobRequest{
				Kind: jobqueue.KindCluster, Algorithm: "kmeans",
				Params: map[string]any{"n_clusters": 50}, ExperimentID: "line", TenantID: "alice",
			},
		},
		{
			name: "missing experiment",
			req: jobqueue.JobRequest{
				Kind: jobqueue.KindReduction, Algorithm: "pca", Components: 2,
				ExperimentID: "gone", TenantID: "alice",
			},
		},
		{
			name: "storage failure",
			req: jobqueue.JobRequest{
				Kind: jobqueue.KindCluster, Algorithm: "dbscan",
				Params: map[string]any{"eps": 0.5, "min_samples": 1}, ExperimentID: "line", TenantID: "alice",
			},
			prepare: func(mem *storage.Memory) {
				mem.FailNext("write", errors.New("507 insufficient storage"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, nil, 1)
			if tt.prepare != nil {
				tt.prepare(f.mem)
			}
			job, rec := f.run(t, tt.req)
			if rec.State != jobqueue.StateFailure || rec.Error == "" || rec.ResultID != "" {
				t.Errorf("Record = %+v", rec)
			}

			store := hierarchy.NewStore(f.mem, hierarchy.NewPaths(hierarchy.DefaultConfig()))
			list, err := store.ListResults(context.Background(), "alice", job.ExperimentID, job.Kind)
			if err == nil && len(list) != 0 {
				t.Errorf("Failed job left a visible result: %+v", list)
			}
		})
	}
}

func TestComputeErrorsAreTyped(t *testing.T) {
	t.Parallel()

	registry := compute.NewRegistry()
	registry.RegisterClusterer("explode", func() any { return &compute.EmptyParams{} },
		compute.ClustererFunc(func(context.Context, *mat.Dense, any) ([]int, error) {
			panic("index out of range")
		}))

	f := newFixture(t, registry, 1)
	job := jobqueue.NewJob(jobqueue.JobRequest{
		Kind: jobqueue.KindCluster, Algorithm: "explode", ExperimentID: "line", TenantID: "alice",
	}, time.Now())

	_, _, err := f.worker.execute(context.Background(), job)
	var cerr *ComputeError
	if !errors.As(err, &cerr) || cerr.Algorithm != "explode" {
		t.Fatalf("Expected *ComputeError, got %v", err)
	}

	if err := f.worker.Run(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	rec, _, _ := f.results.Get(context.Background(), job.TaskID)
	if rec.State != jobqueue.StateFailure || !strings.Contains(rec.Error, "panic") {
		t.Errorf("Record = %+v", rec)
	}
}

func TestHandleRejectsBadEnvelopes(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, 1)
	err := f.worker.Handle(message.NewMessage("m1", []byte(`{"task_id":""}`)))
	if !errors.Is(err, jobqueue.ErrInvalidJob) {
		t.Errorf("Handle = %v, want ErrInvalidJob", err)
	}
}

func TestHandleRunsJob(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, 1)
	job := jobqueue.NewJob(jobqueue.JobRequest{
		Kind: jobqueue.KindReduction, Algorithm: "pca", Components: 3,
		ExperimentID: "e1", TenantID: "alice",
	}, time.Now())
	msg, err := job.Message()
	if err != nil {
		t.Fatal(err)
	}
	if err := f.worker.Handle(msg); err != nil {
		t.Fatal(err)
	}
	rec, ok, _ := f.results.Get(context.Background(), job.TaskID)
	if !ok || rec.State != jobqueue.StateSuccess {
		t.Errorf("Record = %+v", rec)
	}
}

// JetStream redelivers a job whose ack wait ran out; a copy arriving after
// the first run finished must not commit a second result.
func TestRedeliveredFinishedJobIsSkipped(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, 1)
	job, first := f.run(t, jobqueue.JobRequest{
		Kind: jobqueue.KindReduction, Algorithm: "pca", Components: 2,
		ExperimentID: "e1", TenantID: "alice",
	})
	if first.State != jobqueue.StateSuccess {
		t.Fatalf("Record = %+v", first)
	}

	if err := f.worker.Run(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	rec, _, _ := f.results.Get(context.Background(), job.TaskID)
	if rec.ResultID != first.ResultID || rec.State != jobqueue.StateSuccess {
		t.Errorf("Record after redelivery = %+v, want %+v", rec, first)
	}
	store := hierarchy.NewStore(f.mem, hierarchy.NewPaths(hierarchy.DefaultConfig()))
	list, err := store.ListResults(context.Background(), "alice", "e1", hierarchy.KindReduction)
	if err != nil || len(list) != 1 {
		t.Errorf("ListResults = %+v, %v, want one result", list, err)
	}
}

func TestSnapshotTracksReservedAndActive(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	entered := make(chan struct{}, 2)
	registry := compute.NewRegistry()
	registry.RegisterClusterer("wait", func() any { return &compute.EmptyParams{} },
		compute.ClustererFunc(func(_ context.Context, x *mat.Dense, _ any) ([]int, error) {
			entered <- struct{}{}
			<-release
			rows, _ := x.Dims()
			return make([]int, rows), nil
		}))

	f := newFixture(t, registry, 1)
	newJob := func() jobqueue.Job {
		return jobqueue.NewJob(jobqueue.JobRequest{
			Kind: jobqueue.KindCluster, Algorithm: "wait", ExperimentID: "line", TenantID: "alice",
		}, time.Now())
	}
	first, second := newJob(), newJob()

	var wg sync.WaitGroup
	for _, job := range []jobqueue.Job{first, second} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f.worker.Run(context.Background(), job); err != nil {
				t.Error(err)
			}
		}()
	}

	<-entered
	deadline := time.Now().Add(5 * time.Second)
	var snap jobqueue.WorkerSnapshot
	for time.Now().Before(deadline) {
		snap = f.worker.Snapshot()
		if len(snap.Active) == 1 && len(snap.Reserved) == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(snap.Active) != 1 || len(snap.Reserved) != 1 {
		t.Fatalf("Snapshot = %+v, want one active and one reserved", snap)
	}
	if snap.Worker != "test-worker" || snap.Active[0].TimeStart == nil {
		t.Errorf("Snapshot = %+v", snap)
	}
	if !snap.Reserved[0].Matches(jobqueue.KindCluster, "line", "alice") {
		t.Errorf("Reserved task = %+v", snap.Reserved[0])
	}

	rec, _, _ := f.results.Get(context.Background(), snap.Active[0].ID)
	if rec.State != jobqueue.StateStarted {
		t.Errorf("Active task state = %s, want started", rec.State)
	}

	close(release)
	wg.Wait()

	snap = f.worker.Snapshot()
	if len(snap.Active) != 0 || len(snap.Reserved) != 0 {
		t.Errorf("Snapshot after completion = %+v", snap)
	}
}

func TestRunGivesUpSlotWaitOnShutdown(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	registry := compute.NewRegistry()
	registry.RegisterClusterer("wait", func() any { return &compute.EmptyParams{} },
		compute.ClustererFunc(func(_ context.Context, x *mat.Dense, _ any) ([]int, error) {
			entered <- struct{}{}
			<-release
			rows, _ := x.Dims()
			return make([]int, rows), nil
		}))
	f := newFixture(t, registry, 1)

	job := func() jobqueue.Job {
		return jobqueue.NewJob(jobqueue.JobRequest{
			Kind: jobqueue.KindCluster, Algorithm: "wait", ExperimentID: "line", TenantID: "alice",
		}, time.Now())
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.worker.Run(context.Background(), job())
	}()
	<-entered

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := f.worker.Run(ctx, job()); !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}

	close(release)
	<-done
}
