// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/latentspace/internal/cache"
	"github.com/tomtom215/latentspace/internal/logging"
	"github.com/tomtom215/latentspace/internal/storage"
	"github.com/tomtom215/latentspace/internal/validation"
)

// DefaultSandboxTimeout bounds one background sandbox creation.
const DefaultSandboxTimeout = 2 * time.Minute

// Store implements the experiment and result operations over a Backend.
// It is safe for concurrent use.
type Store struct {
	backend        storage.Backend
	paths          Paths
	linkSuffix     string
	sandboxTimeout time.Duration
	// links caches share links by image path. Nil disables caching.
	links *cache.LRU[string]

	background sync.WaitGroup
}

// Option customises a Store.
type Option func(*Store)

// WithLinkSuffix appends suffix to every image share link. Hierarchical
// backends serve image previews at "<link>/preview".
func WithLinkSuffix(suffix string) Option {
	return func(s *Store) {
		s.linkSuffix = suffix
	}
}

// WithLinkCache remembers image share links in links. Entries of an
// experiment are dropped when the experiment is deleted.
func WithLinkCache(links *cache.LRU[string]) Option {
	return func(s *Store) {
		s.links = links
	}
}

// WithSandboxTimeout bounds background sandbox creation.
func WithSandboxTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.sandboxTimeout = d
		}
	}
}

// NewStore returns a Store over backend.
func NewStore(backend storage.Backend, paths Paths, opts ...Option) *Store {
	s := &Store{
		backend:        backend,
		paths:          paths,
		sandboxTimeout: DefaultSandboxTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Paths returns the path builder of the store.
func (s *Store) Paths() Paths {
	return s.paths
}

// Backend returns the underlying storage backend.
func (s *Store) Backend() storage.Backend {
	return s.backend
}

// Wait blocks until background sandbox creations have finished.
func (s *Store) Wait() {
	s.background.Wait()
}

// readOptional reads p and reports found=false when it does not exist.
func (s *Store) readOptional(ctx context.Context, p string) (data []byte, found bool, err error) {
	data, err = s.backend.Read(ctx, p)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// require returns a NotFoundError with msg when p does not exist.
func (s *Store) require(ctx context.Context, p, msg string) error {
	ok, err := s.backend.Exists(ctx, p)
	if err != nil {
		return err
	}
	if !ok {
		return notFound(msg)
	}
	return nil
}

// Resolve locates an experiment. An id carrying the demo marker resolves
// to the shared demo root when it exists there. Every other id, including
// marked ids missing from the demo root, resolves to the tenant's
// namespace. A missing experiment is a NotFoundError.
func (s *Store) Resolve(ctx context.Context, tenant, experiment string) (Ref, error) {
	if !validation.IsPathSegment(experiment) {
		return Ref{}, notFound(MsgExperimentInvalid)
	}
	if s.paths.HasDemoMarker(experiment) {
		ok, err := s.backend.Exists(ctx, s.paths.DemoDir(experiment))
		if err != nil {
			return Ref{}, err
		}
		if ok {
			return Ref{Tenant: tenant, Experiment: experiment, Demo: true}, nil
		}
	}
	if s.paths.IsDemoNamespace(tenant) {
		return Ref{}, notFound(MsgExperimentInvalid)
	}
	if err := s.require(ctx, s.paths.OwnedDir(tenant, experiment), MsgExperimentInvalid); err != nil {
		return Ref{}, err
	}
	return Ref{Tenant: tenant, Experiment: experiment}, nil
}

// CheckExperiment returns a NotFoundError unless the experiment exists.
func (s *Store) CheckExperiment(ctx context.Context, tenant, experiment string) error {
	_, err := s.Resolve(ctx, tenant, experiment)
	return err
}

// ExperimentExists reports whether the experiment directory exists.
func (s *Store) ExperimentExists(ctx context.Context, tenant, experiment string) (bool, error) {
	err := s.CheckExperiment(ctx, tenant, experiment)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// listDirs lists the immediate sub-directories of p. A missing p is empty.
func (s *Store) listDirs(ctx context.Context, p string) ([]storage.Entry, error) {
	entries, err := s.backend.List(ctx, p, storage.ListOptions{Depth: 1})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	dirs := entries[:0]
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e)
		}
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].Name < dirs[j].Name })
	return dirs, nil
}

// ListExperiments lists the demo experiments followed by the tenant's own.
// Directories without metadata.json are skipped, as are owned directories
// hidden by a demo experiment of the same id. Listing a demo experiment
// schedules creation of the tenant's sandbox in the background.
func (s *Store) ListExperiments(ctx context.Context, tenant string) ([]Experiment, error) {
	demos, err := s.listDirs(ctx, s.paths.DemoRoot())
	if err != nil {
		return nil, fmt.Errorf("list demo experiments: %w", err)
	}
	var owned []storage.Entry
	ownsNamespace := !s.paths.IsDemoNamespace(tenant)
	if ownsNamespace {
		owned, err = s.listDirs(ctx, s.paths.Namespace(tenant))
		if err != nil {
			return nil, fmt.Errorf("list experiments: %w", err)
		}
	}

	out := make([]Experiment, 0, len(demos)+len(owned))
	shadowed := make(map[string]bool, len(demos))
	for _, e := range demos {
		if !s.paths.HasDemoMarker(e.Name) {
			continue
		}
		shadowed[e.Name] = true
		if ownsNamespace {
			s.scheduleSandbox(ctx, tenant, e.Name)
		}

		exp, ok, err := s.experimentEntry(ctx, e)
		if err != nil {
			return nil, err
		}
		if ok {
			exp.Demo = true
			out = append(out, exp)
		}
	}
	for _, e := range owned {
		if shadowed[e.Name] {
			logging.Ctx(ctx).Debug().
				Str("experiment_id", e.Name).
				Msg("Skipping owned experiment hidden by a demo experiment")
			continue
		}
		exp, ok, err := s.experimentEntry(ctx, e)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, exp)
		}
	}
	return out, nil
}

func (s *Store) experimentEntry(ctx context.Context, e storage.Entry) (Experiment, bool, error) {
	data, found, err := s.readOptional(ctx, storage.Join(e.Path, MetadataFile))
	if err != nil || !found {
		return Experiment{}, false, err
	}
	if !json.Valid(data) {
		logging.Ctx(ctx).Warn().
			Str("experiment_id", e.Name).
			Msg("Skipping experiment with malformed metadata")
		return Experiment{}, false, nil
	}
	return Experiment{ID: e.Name, Metadata: json.RawMessage(data)}, true, nil
}

// GetExperiment returns the experiment's metadata document.
func (s *Store) GetExperiment(ctx context.Context, tenant, experiment string) (json.RawMessage, error) {
	ref, err := s.Resolve(ctx, tenant, experiment)
	if err != nil {
		return nil, err
	}
	data, found, err := s.readOptional(ctx, storage.Join(s.paths.ExperimentDir(ref), MetadataFile))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFound(MsgExperimentMetadata)
	}
	return json.RawMessage(data), nil
}

// DeleteExperiment deletes an owned experiment. Demo experiments are never
// deleted and the call succeeds without effect.
func (s *Store) DeleteExperiment(ctx context.Context, tenant, experiment string) error {
	ref, err := s.Resolve(ctx, tenant, experiment)
	if err != nil {
		return err
	}
	if ref.Demo {
		logging.Ctx(ctx).Debug().
			Str("experiment_id", experiment).
			Msg("Ignoring delete of demo experiment")
		return nil
	}
	dir := s.paths.ExperimentDir(ref)
	if err := s.backend.Delete(ctx, dir); err != nil {
		return err
	}
	if s.links != nil {
		s.links.RemovePrefix(dir + "/")
	}
	return nil
}

// GetLabels returns the experiment's labels manifest as stored.
func (s *Store) GetLabels(ctx context.Context, tenant, experiment string) (json.RawMessage, error) {
	ref, err := s.Resolve(ctx, tenant, experiment)
	if err != nil {
		return nil, err
	}
	data, found, err := s.readOptional(ctx, s.paths.LabelsPath(ref))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFound(MsgLabelsMissing)
	}
	return json.RawMessage(data), nil
}

// ImageLink returns a public link to one of the experiment's images.
func (s *Store) ImageLink(ctx context.Context, tenant, experiment, name string) (string, error) {
	if !validation.IsPathSegment(name) {
		return "", notFound(MsgImageMissing)
	}
	ref, err := s.Resolve(ctx, tenant, experiment)
	if errors.Is(err, ErrNotFound) {
		return "", notFound(MsgImageMissing)
	}
	if err != nil {
		return "", err
	}
	p := s.paths.ImagePath(ref, name)
	if s.links != nil {
		if link, ok := s.links.Get(p); ok {
			return link, nil
		}
	}

	link, err := s.backend.ShareLink(ctx, p)
	if errors.Is(err, storage.ErrNotFound) {
		return "", notFound(MsgImageMissing)
	}
	if err != nil {
		return "", err
	}
	link += s.linkSuffix
	if s.links != nil {
		s.links.Add(p, link)
	}
	return link, nil
}

// ReadDataset reads and parses the embeddings of a resolved experiment.
func (s *Store) ReadDataset(ctx context.Context, ref Ref) ([][]float64, error) {
	data, found, err := s.readOptional(ctx, s.paths.DatasetPath(ref))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFound(MsgEmbeddingsMissing)
	}

	var rows [][]float64
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parse %s: %w", EmbeddingsFile, err)
	}
	return rows, nil
}
