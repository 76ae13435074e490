// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package jobqueue

import (
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/latentspace/internal/hierarchy"
)

// Kind is the job kind. It doubles as the task name reported by status and
// introspection.
type Kind = hierarchy.Kind

const (
	KindReduction = hierarchy.KindReduction
	KindCluster   = hierarchy.KindCluster
)

// TopicPrefix prefixes every job subject. StreamSubjects covers them all.
const (
	TopicPrefix    = "jobs."
	StreamSubjects = TopicPrefix + ">"
)

// Topic returns the subject jobs of the given kind are published on.
func Topic(kind Kind) string {
	return TopicPrefix + string(kind)
}

// State is the lifecycle state of a task.
type State string

const (
	StatePending State = "pending"
	StateStarted State = "started"
	StateSuccess State = "success"
	StateFailure State = "failure"
)

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailure
}

// Metadata keys set on every job message.
const (
	MetaKind      = "kind"
	MetaAlgorithm = "algorithm"
	MetaTenant    = "tenant_id"
)

// ErrInvalidJob is returned when a message does not carry a usable job.
var ErrInvalidJob = errors.New("jobqueue: invalid job envelope")

// JobRequest is what a caller asks the queue to run.
type JobRequest struct {
	Kind         Kind
	Algorithm    string
	Components   int
	Params       map[string]any
	ExperimentID string
	TenantID     string
}

// Job is the envelope carried on the stream.
type Job struct {
	TaskID       string         `json:"task_id"`
	Kind         Kind           `json:"kind"`
	Algorithm    string         `json:"algorithm"`
	Components   *int           `json:"components,omitempty"`
	Params       map[string]any `json:"params"`
	ExperimentID string         `json:"experiment_id"`
	TenantID     string         `json:"tenant_id"`
	SubmittedAt  time.Time      `json:"submitted_at"`
}

// NewJob builds the envelope for req with a fresh task id.
func NewJob(req JobRequest, now time.Time) Job {
	job := Job{
		TaskID:       uuid.NewString(),
		Kind:         req.Kind,
		Algorithm:    req.Algorithm,
		Params:       req.Params,
		ExperimentID: req.ExperimentID,
		TenantID:     req.TenantID,
		SubmittedAt:  now.UTC(),
	}
	if job.Params == nil {
		job.Params = map[string]any{}
	}
	if req.Kind == KindReduction {
		c := req.Components
		job.Components = &c
	}
	return job
}

// Message encodes the job as a watermill message. The message UUID is the
// task id, which JetStream also uses as the deduplication id.
func (j Job) Message() (*message.Message, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("encode job: %w", err)
	}
	msg := message.NewMessage(j.TaskID, data)
	msg.Metadata.Set(natsgo.MsgIdHdr, j.TaskID)
	msg.Metadata.Set(MetaKind, string(j.Kind))
	msg.Metadata.Set(MetaAlgorithm, j.Algorithm)
	msg.Metadata.Set(MetaTenant, j.TenantID)
	return msg, nil
}

// DecodeJob reads the envelope from a message payload.
func DecodeJob(payload []byte) (Job, error) {
	var j Job
	if err := json.Unmarshal(payload, &j); err != nil {
		return Job{}, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	if j.TaskID == "" || !j.Kind.Valid() || j.ExperimentID == "" || j.TenantID == "" {
		return Job{}, fmt.Errorf("%w: missing task id, kind, experiment or tenant", ErrInvalidJob)
	}
	if j.Kind == KindReduction && j.Components == nil {
		return Job{}, fmt.Errorf("%w: reduction without components", ErrInvalidJob)
	}
	return j, nil
}

// Info is the introspection view of the job.
func (j Job) Info() TaskInfo {
	return TaskInfo{
		ID:        j.TaskID,
		Name:      string(j.Kind),
		Args:      []string{j.ExperimentID, j.TenantID},
		Algorithm: j.Algorithm,
	}
}

// TaskInfo describes one task held by a worker. Args are the experiment id
// and the tenant id, in that order.
type TaskInfo struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Args      []string   `json:"args"`
	Algorithm string     `json:"algorithm,omitempty"`
	TimeStart *time.Time `json:"time_start,omitempty"`
}

// Matches reports whether the task is a job of kind on the given experiment
// and tenant.
func (t TaskInfo) Matches(kind Kind, experimentID, tenantID string) bool {
	return t.Name == string(kind) &&
		len(t.Args) == 2 &&
		t.Args[0] == experimentID &&
		t.Args[1] == tenantID
}

// WorkerSnapshot is one worker's answer to an introspection request.
type WorkerSnapshot struct {
	Worker   string     `json:"worker"`
	Active   []TaskInfo `json:"active"`
	Reserved []TaskInfo `json:"reserved"`
}

// TaskRecord is the state of a task as held by the result backend.
type TaskRecord struct {
	TaskID    string    `json:"task_id"`
	State     State     `json:"state"`
	Name      string    `json:"name"`
	ResultID  string    `json:"result_id,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TaskStatus is the caller-facing view of a task.
type TaskStatus struct {
	TaskID   string `json:"task_id"`
	Status   State  `json:"status"`
	Name     string `json:"name,omitempty"`
	ResultID string `json:"result_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Status projects a record onto the caller-facing view. name and result id
// are only reported once the task succeeded, the error only on failure.
func (r TaskRecord) Status() TaskStatus {
	s := TaskStatus{TaskID: r.TaskID, Status: r.State}
	switch r.State {
	case StateSuccess:
		s.Name = r.Name
		s.ResultID = r.ResultID
	case StateFailure:
		s.Error = r.Error
	}
	return s
}
