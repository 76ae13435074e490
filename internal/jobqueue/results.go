// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// ResultBackend stores task records. Records expire after the backend's
// TTL; an expired or unknown task reads as not found.
type ResultBackend interface {
	SetState(ctx context.Context, rec TaskRecord) error
	Get(ctx context.Context, taskID string) (TaskRecord, bool, error)
	Ping(ctx context.Context) error
	Close() error
}

// ErrResultsClosed is returned by a closed result backend.
var ErrResultsClosed = errors.New("jobqueue: result backend closed")

// taskKeyPrefix prefixes task record keys in shared key spaces.
const taskKeyPrefix = "lse-task-meta-"

func taskKey(taskID string) string {
	return taskKeyPrefix + taskID
}

func encodeRecord(rec TaskRecord) ([]byte, error) {
	if rec.TaskID == "" {
		return nil, fmt.Errorf("task record without task id")
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode task record: %w", err)
	}
	return data, nil
}

func decodeRecord(data []byte) (TaskRecord, error) {
	var rec TaskRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return TaskRecord{}, fmt.Errorf("decode task record: %w", err)
	}
	return rec, nil
}

// MemoryResults is an in-process ResultBackend. It backs tests and the
// single-binary development mode.
type MemoryResults struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	records map[string]memoryRecord
	closed  bool
}

type memoryRecord struct {
	data    []byte
	expires time.Time
}

// NewMemoryResults returns an empty backend. A zero ttl never expires.
func NewMemoryResults(ttl time.Duration) *MemoryResults {
	return &MemoryResults{
		ttl:     ttl,
		now:     time.Now,
		records: make(map[string]memoryRecord),
	}
}

// SetState stores rec, replacing any earlier record of the task.
func (m *MemoryResults) SetState(_ context.Context, rec TaskRecord) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrResultsClosed
	}
	r := memoryRecord{data: data}
	if m.ttl > 0 {
		r.expires = m.now().Add(m.ttl)
	}
	m.records[rec.TaskID] = r
	return nil
}

// Get returns the record of taskID.
func (m *MemoryResults) Get(_ context.Context, taskID string) (TaskRecord, bool, error) {
	m.mu.Lock()
	r, ok := m.records[taskID]
	closed := m.closed
	if ok && !r.expires.IsZero() && !m.now().Before(r.expires) {
		delete(m.records, taskID)
		ok = false
	}
	m.mu.Unlock()

	if closed {
		return TaskRecord{}, false, ErrResultsClosed
	}
	if !ok {
		return TaskRecord{}, false, nil
	}
	rec, err := decodeRecord(r.data)
	if err != nil {
		return TaskRecord{}, false, err
	}
	return rec, true, nil
}

// Ping fails once the backend is closed.
func (m *MemoryResults) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrResultsClosed
	}
	return nil
}

// Close releases the records.
func (m *MemoryResults) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.records = nil
	return nil
}
