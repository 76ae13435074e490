// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package jobqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/latentspace/internal/compute"
)

type fakePublisher struct {
	mu     sync.Mutex
	topics []string
	msgs   []*message.Message
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, topic string, msg *message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.msgs = append(p.msgs, msg)
	return nil
}

type fakeIntrospector struct {
	snapshots []WorkerSnapshot
	err       error
}

func (f *fakeIntrospector) Inspect(context.Context) ([]WorkerSnapshot, error) {
	return f.snapshots, f.err
}

func newTestClient(pub *fakePublisher, inspector *fakeIntrospector) (*Client, *MemoryResults) {
	results := NewMemoryResults(0)
	return NewClient(pub, results, inspector, compute.DefaultRegistry()), results
}

func TestSubmitPublishesValidJobs(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	client, _ := newTestClient(pub, &fakeIntrospector{})
	ctx := context.Background()

	taskID, err := client.Submit(ctx, JobRequest{
		Kind: KindReduction, Algorithm: "pca", Components: 2,
		ExperimentID: "e1", TenantID: "alice",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(pub.msgs) != 1 || pub.topics[0] != "jobs.reduction" {
		t.Fatalf("Published %v", pub.topics)
	}
	if pub.msgs[0].UUID != taskID {
		t.Errorf("Message UUID = %s, want task id %s", pub.msgs[0].UUID, taskID)
	}

	_, err = client.Submit(ctx, JobRequest{
		Kind: KindCluster, Algorithm: "kmeans", Params: map[string]any{"n_clusters": 3},
		ExperimentID: "e1", TenantID: "alice",
	})
	if err != nil {
		t.Fatal(err)
	}
	if pub.topics[1] != "jobs.cluster" {
		t.Errorf("Cluster topic = %s", pub.topics[1])
	}
}

func TestSubmitRejectsInvalidJobs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  JobRequest
	}{
		{"unknown algorithm", JobRequest{Kind: KindReduction, Algorithm: "magic", Components: 2}},
		{"components out of range", JobRequest{Kind: KindReduction, Algorithm: "pca", Components: 4}},
		{"params out of range", JobRequest{Kind: KindCluster, Algorithm: "kmeans", Params: map[string]any{"n_clusters": 0}}},
		{"schema only", JobRequest{Kind: KindReduction, Algorithm: "umap", Components: 2, Params: map[string]any{"neighbors": 15, "min_distance": 0.1}}},
		{"unknown kind", JobRequest{Kind: "embedding", Algorithm: "pca"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			pub := &fakePublisher{}
			client, _ := newTestClient(pub, &fakeIntrospector{})
			_, err := client.Submit(context.Background(), tt.req)

			var verr *compute.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected *compute.ValidationError, got %v", err)
			}
			if len(pub.msgs) != 0 {
				t.Error("Invalid job reached the queue")
			}
		})
	}
}

func TestSubmitPublishFailure(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{err: errors.New("nats: no responders available for request")}
	client, _ := newTestClient(pub, &fakeIntrospector{})

	_, err := client.Submit(context.Background(), JobRequest{
		Kind: KindReduction, Algorithm: "pca", Components: 2, ExperimentID: "e1", TenantID: "alice",
	})
	if !errors.Is(err, ErrQueueUnavailable) {
		t.Errorf("Expected ErrQueueUnavailable, got %v", err)
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()

	client, results := newTestClient(&fakePublisher{}, &fakeIntrospector{})
	ctx := context.Background()

	got, err := client.Status(ctx, "never-seen")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatePending || got.TaskID != "never-seen" || got.Name != "" {
		t.Errorf("Unknown task = %+v, want pending", got)
	}

	rec := TaskRecord{TaskID: "t1", State: StateSuccess, Name: "reduction", ResultID: "r1"}
	if err := results.SetState(ctx, rec); err != nil {
		t.Fatal(err)
	}
	got, err = client.Status(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StateSuccess || got.Name != "reduction" || got.ResultID != "r1" {
		t.Errorf("Status = %+v", got)
	}

	_ = results.Close()
	if _, err := client.Status(ctx, "t1"); !errors.Is(err, ErrResultsClosed) {
		t.Errorf("Expected the backend error, got %v", err)
	}
}

func TestPendingCount(t *testing.T) {
	t.Parallel()

	job := func(kind Kind, e, tenant string) TaskInfo {
		return NewJob(JobRequest{Kind: kind, ExperimentID: e, TenantID: tenant}, time.Now()).Info()
	}
	inspector := &fakeIntrospector{snapshots: []WorkerSnapshot{
		{
			Worker:   "w1",
			Active:   []TaskInfo{job(KindCluster, "e1", "alice")},
			Reserved: []TaskInfo{job(KindCluster, "e1", "alice"), job(KindReduction, "e1", "alice")},
		},
		{
			Worker:   "w2",
			Active:   []TaskInfo{job(KindCluster, "e1", "bob")},
			Reserved: []TaskInfo{job(KindCluster, "e1", "alice")},
		},
		{Worker: "idle"},
	}}
	client, _ := newTestClient(&fakePublisher{}, inspector)
	ctx := context.Background()

	tests := []struct {
		kind   Kind
		e      string
		tenant string
		want   int
	}{
		{KindCluster, "e1", "alice", 3},
		{KindReduction, "e1", "alice", 1},
		{KindCluster, "e1", "bob", 1},
		{KindCluster, "e2", "alice", 0},
	}
	for _, tt := range tests {
		got, err := client.PendingCount(ctx, tt.kind, tt.e, tt.tenant)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("PendingCount(%s, %s, %s) = %d, want %d", tt.kind, tt.e, tt.tenant, got, tt.want)
		}
	}

	workers, err := client.Workers(ctx)
	if err != nil || workers != 3 {
		t.Errorf("Workers = %d, %v", workers, err)
	}
}

func TestPendingCountWithoutWorkers(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(&fakePublisher{}, &fakeIntrospector{snapshots: []WorkerSnapshot{}})
	got, err := client.PendingCount(context.Background(), KindReduction, "e1", "alice")
	if err != nil || got != 0 {
		t.Errorf("PendingCount = %d, %v; want 0", got, err)
	}

	failing, _ := newTestClient(&fakePublisher{}, &fakeIntrospector{err: errors.New("nats: connection closed")})
	if _, err := failing.PendingCount(context.Background(), KindReduction, "e1", "alice"); err == nil {
		t.Error("Expected the introspection error")
	}
}
