// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Memory is a goroutine-safe in-memory hierarchical backend. It backs the
// test suites and the single-process development mode.
type Memory struct {
	mu       sync.Mutex
	files    map[string][]byte
	dirs     map[string]struct{}
	calls    map[string]int
	failures map[string][]error
	baseURL  string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		files:    make(map[string][]byte),
		dirs:     map[string]struct{}{"": {}},
		calls:    make(map[string]int),
		failures: make(map[string][]error),
		baseURL:  "memory://share",
	}
}

// FailNext queues errors returned by the next calls of op, one per call.
func (m *Memory) FailNext(op string, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = append(m.failures[op], errs...)
}

// Calls returns how many times op has been invoked.
func (m *Memory) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// TotalCalls returns the number of calls across all operations.
func (m *Memory) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// enter records the call and pops an injected failure (must hold mu).
func (m *Memory) enter(ctx context.Context, op string) error {
	m.calls[op]++
	if err := ctx.Err(); err != nil {
		return err
	}
	if queue := m.failures[op]; len(queue) > 0 {
		m.failures[op] = queue[1:]
		return queue[0]
	}
	return nil
}

func (m *Memory) mkdirAll(p string) {
	for p != "" {
		m.dirs[p] = struct{}{}
		p = parent(p)
	}
}

func parent(p string) string {
	i := strings.LastIndex(p, "/")
	if i < 0 {
		return ""
	}
	return p[:i]
}

func baseName(p string) string {
	return p[strings.LastIndex(p, "/")+1:]
}

func under(p, root string) bool {
	return root == "" || p == root || strings.HasPrefix(p, root+"/")
}

// Exists implements Backend.
func (m *Memory) Exists(ctx context.Context, p string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "exists"); err != nil {
		return false, err
	}

	p = Clean(p)
	if _, ok := m.files[p]; ok {
		return true, nil
	}
	_, ok := m.dirs[p]
	return ok, nil
}

// List implements Backend.
func (m *Memory) List(ctx context.Context, p string, opts ListOptions) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "list"); err != nil {
		return nil, err
	}

	p = Clean(p)
	if _, ok := m.dirs[p]; !ok {
		return nil, fmt.Errorf("list %q: %w", p, ErrNotFound)
	}

	depth := opts.Depth
	if depth <= 0 {
		depth = 1
	}
	base := 0
	if p != "" {
		base = strings.Count(p, "/") + 1
	}
	within := func(q string) bool {
		if q == p || !under(q, p) {
			return false
		}
		return opts.Recursive || strings.Count(q, "/")+1-base <= depth
	}

	var entries []Entry
	for d := range m.dirs {
		if within(d) {
			entries = append(entries, Entry{Path: d, Name: baseName(d), Type: EntryDir})
		}
	}
	for f := range m.files {
		if within(f) {
			entries = append(entries, Entry{Path: f, Name: baseName(f), Type: EntryFile})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// Read implements Backend.
func (m *Memory) Read(ctx context.Context, p string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "read"); err != nil {
		return nil, err
	}

	data, ok := m.files[Clean(p)]
	if !ok {
		return nil, fmt.Errorf("read %q: %w", p, ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

// Write implements Backend. Missing parent directories are created.
func (m *Memory) Write(ctx context.Context, p string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "write"); err != nil {
		return err
	}

	p = Clean(p)
	if _, ok := m.dirs[p]; ok {
		return fmt.Errorf("write %q: is a directory", p)
	}
	m.mkdirAll(parent(p))
	m.files[p] = append([]byte(nil), data...)
	return nil
}

// Mkdir implements Backend.
func (m *Memory) Mkdir(ctx context.Context, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "mkdir"); err != nil {
		return err
	}

	p = Clean(p)
	if _, ok := m.files[p]; ok {
		return fmt.Errorf("mkdir %q: file exists", p)
	}
	m.mkdirAll(p)
	return nil
}

// Copy implements Backend.
func (m *Memory) Copy(ctx context.Context, src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "copy"); err != nil {
		return err
	}

	src, dst = Clean(src), Clean(dst)
	if data, ok := m.files[src]; ok {
		m.mkdirAll(parent(dst))
		m.files[dst] = append([]byte(nil), data...)
		return nil
	}
	if _, ok := m.dirs[src]; !ok {
		return fmt.Errorf("copy %q: %w", src, ErrNotFound)
	}

	rebase := func(q string) string { return dst + strings.TrimPrefix(q, src) }
	m.mkdirAll(dst)
	for d := range m.dirs {
		if under(d, src) && d != src {
			m.mkdirAll(rebase(d))
		}
	}
	for f, data := range m.files {
		if under(f, src) {
			m.files[rebase(f)] = append([]byte(nil), data...)
		}
	}
	return nil
}

// Delete implements Backend.
func (m *Memory) Delete(ctx context.Context, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "delete"); err != nil {
		return err
	}

	p = Clean(p)
	if _, ok := m.files[p]; ok {
		delete(m.files, p)
		return nil
	}
	if _, ok := m.dirs[p]; !ok || p == "" {
		return fmt.Errorf("delete %q: %w", p, ErrNotFound)
	}
	for d := range m.dirs {
		if under(d, p) {
			delete(m.dirs, d)
		}
	}
	for f := range m.files {
		if under(f, p) {
			delete(m.files, f)
		}
	}
	return nil
}

// ShareLink implements Backend with a deterministic fake URL.
func (m *Memory) ShareLink(ctx context.Context, p string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "share"); err != nil {
		return "", err
	}

	p = Clean(p)
	_, isFile := m.files[p]
	_, isDir := m.dirs[p]
	if !isFile && !isDir {
		return "", fmt.Errorf("share %q: %w", p, ErrNotFound)
	}
	return m.baseURL + "/" + p, nil
}

// Close implements Backend.
func (m *Memory) Close() error {
	return nil
}

// errInjected is a convenience transient error for tests.
var errInjected = errors.New("injected connection reset")

// TransientFault returns a transient error suitable for FailNext.
func TransientFault(op string) error {
	return transient(op, errInjected)
}
