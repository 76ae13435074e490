// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package jobqueue

import (
	"errors"
	"testing"
	"time"

	natsgo "github.com/nats-io/nats.go"
)

func TestNewJob(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))

	reduction := NewJob(JobRequest{
		Kind: KindReduction, Algorithm: "pca", Components: 2,
		ExperimentID: "e1", TenantID: "alice",
	}, now)
	if reduction.Components == nil || *reduction.Components != 2 {
		t.Errorf("Reduction components = %v", reduction.Components)
	}
	if reduction.Params == nil {
		t.Error("Params must default to an empty object")
	}
	if reduction.SubmittedAt.Location() != time.UTC {
		t.Errorf("SubmittedAt not in UTC: %v", reduction.SubmittedAt)
	}

	cluster := NewJob(JobRequest{Kind: KindCluster, Algorithm: "kmeans", Components: 3}, now)
	if cluster.Components != nil {
		t.Errorf("Cluster jobs carry no components, got %d", *cluster.Components)
	}
	if cluster.TaskID == reduction.TaskID {
		t.Error("Task ids must be unique")
	}
}

func TestJobMessageRoundTrip(t *testing.T) {
	t.Parallel()

	job := NewJob(JobRequest{
		Kind: KindCluster, Algorithm: "dbscan",
		Params:       map[string]any{"eps": 0.5, "min_samples": 5},
		ExperimentID: "e1", TenantID: "alice",
	}, time.Now())

	msg, err := job.Message()
	if err != nil {
		t.Fatal(err)
	}
	if msg.UUID != job.TaskID || msg.Metadata.Get(natsgo.MsgIdHdr) != job.TaskID {
		t.Errorf("Message ids = %s / %s, want %s", msg.UUID, msg.Metadata.Get(natsgo.MsgIdHdr), job.TaskID)
	}
	if msg.Metadata.Get(MetaKind) != "cluster" || msg.Metadata.Get(MetaTenant) != "alice" {
		t.Errorf("Metadata = %v", msg.Metadata)
	}

	got, err := DecodeJob(msg.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if got.TaskID != job.TaskID || got.Algorithm != "dbscan" || got.Params["min_samples"] != float64(5) {
		t.Errorf("Decoded = %+v", got)
	}
}

func TestDecodeJobRejectsBadEnvelopes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `nope`},
		{"missing task id", `{"kind":"cluster","experiment_id":"e1","tenant_id":"a"}`},
		{"unknown kind", `{"task_id":"t","kind":"embedding","experiment_id":"e1","tenant_id":"a"}`},
		{"missing tenant", `{"task_id":"t","kind":"cluster","experiment_id":"e1"}`},
		{"reduction without components", `{"task_id":"t","kind":"reduction","experiment_id":"e1","tenant_id":"a"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := DecodeJob([]byte(tt.payload)); !errors.Is(err, ErrInvalidJob) {
				t.Errorf("DecodeJob(%s) = %v, want ErrInvalidJob", tt.payload, err)
			}
		})
	}
}

func TestTaskRecordStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rec  TaskRecord
		want TaskStatus
	}{
		{
			TaskRecord{TaskID: "t", State: StateStarted, Name: "cluster"},
			TaskStatus{TaskID: "t", Status: StateStarted},
		},
		{
			TaskRecord{TaskID: "t", State: StateSuccess, Name: "cluster", ResultID: "r"},
			TaskStatus{TaskID: "t", Status: StateSuccess, Name: "cluster", ResultID: "r"},
		},
		{
			TaskRecord{TaskID: "t", State: StateFailure, Name: "reduction", Error: "boom"},
			TaskStatus{TaskID: "t", Status: StateFailure, Error: "boom"},
		},
	}
	for _, tt := range tests {
		if got := tt.rec.Status(); got != tt.want {
			t.Errorf("%s: Status() = %+v, want %+v", tt.rec.State, got, tt.want)
		}
	}

	if StateStarted.Terminal() || !StateFailure.Terminal() {
		t.Error("Terminal() is wrong")
	}
}

func TestTaskInfoMatches(t *testing.T) {
	t.Parallel()

	info := NewJob(JobRequest{Kind: KindCluster, ExperimentID: "e1", TenantID: "alice"}, time.Now()).Info()

	if !info.Matches(KindCluster, "e1", "alice") {
		t.Error("Expected a match")
	}
	for _, miss := range [][3]string{
		{"reduction", "e1", "alice"},
		{"cluster", "e2", "alice"},
		{"cluster", "e1", "bob"},
		{"cluster", "alice", "e1"},
	} {
		if info.Matches(Kind(miss[0]), miss[1], miss[2]) {
			t.Errorf("Unexpected match for %v", miss)
		}
	}
}
