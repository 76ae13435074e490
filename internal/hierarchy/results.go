// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package hierarchy

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/latentspace/internal/logging"
	"github.com/tomtom215/latentspace/internal/storage"
	"github.com/tomtom215/latentspace/internal/validation"
)

// ListResults lists the results of kind that have committed metadata.
func (s *Store) ListResults(ctx context.Context, tenant, experiment string, kind Kind) ([]ResultSummary, error) {
	ref, err := s.Resolve(ctx, tenant, experiment)
	if err != nil {
		return nil, err
	}
	dir := s.paths.ResultsDir(ref, kind)
	if err := s.require(ctx, dir, msgCollectionInvalid(kind)); err != nil {
		return nil, err
	}

	entries, err := s.listDirs(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind.Dir(), err)
	}

	out := make([]ResultSummary, 0, len(entries))
	for _, e := range entries {
		data, found, err := s.readOptional(ctx, storage.Join(e.Path, MetadataFile))
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		var meta Metadata
		if err := json.Unmarshal(data, &meta); err != nil {
			logging.Ctx(ctx).Warn().Err(err).
				Str("experiment_id", experiment).
				Str("result_id", e.Name).
				Msg("Skipping result with malformed metadata")
			continue
		}
		out = append(out, ResultSummary{ID: e.Name, Metadata: meta})
	}
	return out, nil
}

// resultDir checks experiment, result directory, metadata and payload in
// that order and returns the resolved experiment, the result directory and
// its parsed metadata.
func (s *Store) resultDir(ctx context.Context, tenant, experiment string, kind Kind, id string) (Ref, string, Metadata, error) {
	ref, err := s.Resolve(ctx, tenant, experiment)
	if err != nil {
		return Ref{}, "", Metadata{}, err
	}
	if !validation.IsPathSegment(id) {
		return Ref{}, "", Metadata{}, notFound(msgResultInvalid(kind))
	}
	dir := s.paths.ResultDir(ref, kind, id)
	if err := s.require(ctx, dir, msgResultInvalid(kind)); err != nil {
		return Ref{}, "", Metadata{}, err
	}

	data, found, err := s.readOptional(ctx, storage.Join(dir, MetadataFile))
	if err != nil {
		return Ref{}, "", Metadata{}, err
	}
	if !found {
		return Ref{}, "", Metadata{}, notFound(msgResultMetadata(kind))
	}
	if err := s.require(ctx, storage.Join(dir, kind.PayloadFile()), msgPayloadMissing(kind)); err != nil {
		return Ref{}, "", Metadata{}, err
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Ref{}, "", Metadata{}, fmt.Errorf("parse %s: %w", MetadataFile, err)
	}
	return ref, dir, meta, nil
}

func (s *Store) readJSON(ctx context.Context, p string, v any) error {
	data, err := s.backend.Read(ctx, p)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", p, err)
	}
	return nil
}

// GetReduction assembles a reduction result with the experiment's labels.
func (s *Store) GetReduction(ctx context.Context, tenant, experiment, id string) (*Reduction, error) {
	ref, dir, meta, err := s.resultDir(ctx, tenant, experiment, KindReduction, id)
	if err != nil {
		return nil, err
	}
	labelsPath := s.paths.LabelsPath(ref)
	if err := s.require(ctx, labelsPath, msgLabelsMissing(KindReduction)); err != nil {
		return nil, err
	}

	out := &Reduction{Metadata: meta}
	if err := s.readJSON(ctx, storage.Join(dir, ReductionFile), &out.Reduction); err != nil {
		return nil, err
	}

	raw, err := s.backend.Read(ctx, labelsPath)
	if err != nil {
		return nil, err
	}
	if out.Labels, err = ParseLabels(raw); err != nil {
		return nil, err
	}
	return out, nil
}

// GetCluster assembles a cluster result. Missing quality artifacts come
// back empty rather than as errors.
func (s *Store) GetCluster(ctx context.Context, tenant, experiment, id string) (*Cluster, error) {
	_, dir, meta, err := s.resultDir(ctx, tenant, experiment, KindCluster, id)
	if err != nil {
		return nil, err
	}

	out := &Cluster{Metadata: meta, Silhouette: []float64{}}
	if err := s.readJSON(ctx, storage.Join(dir, ClusterFile), &out.Cluster); err != nil {
		return nil, err
	}

	data, found, err := s.readOptional(ctx, storage.Join(dir, SilhouetteFile))
	if err != nil {
		return nil, err
	}
	if found {
		if err := json.Unmarshal(data, &out.Silhouette); err != nil {
			return nil, fmt.Errorf("parse %s: %w", SilhouetteFile, err)
		}
		if out.Silhouette == nil {
			out.Silhouette = []float64{}
		}
	}

	data, found, err = s.readOptional(ctx, storage.Join(dir, ScoresFile))
	if err != nil {
		return nil, err
	}
	if found && !isEmptyObject(data) {
		out.Scores = &Scores{}
		if err := json.Unmarshal(data, out.Scores); err != nil {
			return nil, fmt.Errorf("parse %s: %w", ScoresFile, err)
		}
	}
	return out, nil
}

func isEmptyObject(data []byte) bool {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return true
	}
	var m map[string]json.RawMessage
	return json.Unmarshal(data, &m) == nil && len(m) == 0
}

// DeleteResult deletes one result directory.
func (s *Store) DeleteResult(ctx context.Context, tenant, experiment string, kind Kind, id string) error {
	ref, err := s.Resolve(ctx, tenant, experiment)
	if err != nil {
		return err
	}
	if !validation.IsPathSegment(id) {
		return notFound(msgResultInvalid(kind))
	}
	dir := s.paths.ResultDir(ref, kind, id)
	if err := s.require(ctx, dir, msgResultInvalid(kind)); err != nil {
		return err
	}
	return s.backend.Delete(ctx, dir)
}

// WriteResult creates the result directory, writes every payload file and
// finally metadata.json. A result only becomes visible once its metadata is
// written, so a failure part way leaves nothing listable behind.
func (s *Store) WriteResult(ctx context.Context, ref Ref, kind Kind, id string, meta Metadata, files ...File) error {
	dir := s.paths.ResultDir(ref, kind, id)
	if err := s.backend.Mkdir(ctx, dir); err != nil {
		return fmt.Errorf("create result dir: %w", err)
	}
	for _, f := range files {
		if err := s.backend.Write(ctx, storage.Join(dir, f.Name), f.Data); err != nil {
			return fmt.Errorf("write %s: %w", f.Name, err)
		}
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if err := s.backend.Write(ctx, storage.Join(dir, MetadataFile), data); err != nil {
		return fmt.Errorf("write %s: %w", MetadataFile, err)
	}
	return nil
}
