// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package worker

import (
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/latentspace/internal/jobqueue"
)

// tracker holds the tasks a worker has received (reserved) and the tasks
// that hold a concurrency slot (active). A task is in at most one of them.
type tracker struct {
	mu       sync.Mutex
	reserved map[string]jobqueue.TaskInfo
	active   map[string]jobqueue.TaskInfo
}

func newTracker() *tracker {
	return &tracker{
		reserved: make(map[string]jobqueue.TaskInfo),
		active:   make(map[string]jobqueue.TaskInfo),
	}
}

func (t *tracker) reserve(info jobqueue.TaskInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reserved[info.ID] = info
}

func (t *tracker) activate(id string, start time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	info, ok := t.reserved[id]
	if !ok {
		return
	}
	delete(t.reserved, id)
	info.TimeStart = &start
	t.active[id] = info
}

func (t *tracker) release(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.reserved, id)
	delete(t.active, id)
}

func (t *tracker) snapshot(name string) jobqueue.WorkerSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return jobqueue.WorkerSnapshot{
		Worker:   name,
		Active:   sortedTasks(t.active),
		Reserved: sortedTasks(t.reserved),
	}
}

func sortedTasks(m map[string]jobqueue.TaskInfo) []jobqueue.TaskInfo {
	out := make([]jobqueue.TaskInfo, 0, len(m))
	for _, info := range m {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
