// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

// Package compute holds the dimensionality reduction and clustering
// algorithms the workers run, keyed by algorithm name.
//
// Every algorithm declares a params struct with validator tags. The registry
// decodes the free-form params map of a job into that struct and validates
// it before the job is queued, and again when the worker picks it up.
//
// Some algorithms (umap, optics, birch) are known to the registry with a
// schema but have no in-process implementation. Submissions naming them are
// rejected with "algorithm not available".
package compute

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/goccy/go-json"
	"gonum.org/v1/gonum/mat"

	"github.com/tomtom215/latentspace/internal/validation"
)

// Component bounds for reductions.
const (
	MinComponents = 2
	MaxComponents = 3
)

var (
	// ErrInvalidInput is returned when the dataset cannot be processed.
	ErrInvalidInput = errors.New("compute: invalid input")

	// ErrNotConverged is returned when an iterative method fails numerically.
	ErrNotConverged = errors.New("compute: numerical failure")
)

// ValidationError reports a rejected algorithm name, component count or
// parameter set.
type ValidationError struct {
	Algorithm string
	Err       error
}

func (e *ValidationError) Error() string {
	if e.Algorithm == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Algorithm, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(algorithm, field, msg string) *ValidationError {
	return &ValidationError{
		Algorithm: algorithm,
		Err:       validation.NewRequestValidationError(field, msg),
	}
}

// Reducer projects the rows of data onto components dimensions.
type Reducer interface {
	Reduce(ctx context.Context, data *mat.Dense, components int, params any) (*mat.Dense, error)
}

// ReducerFunc adapts a function to Reducer.
type ReducerFunc func(ctx context.Context, data *mat.Dense, components int, params any) (*mat.Dense, error)

func (f ReducerFunc) Reduce(ctx context.Context, data *mat.Dense, components int, params any) (*mat.Dense, error) {
	return f(ctx, data, components, params)
}

// Clusterer assigns an integer label to each row of data. Noise is -1.
type Clusterer interface {
	Cluster(ctx context.Context, data *mat.Dense, params any) ([]int, error)
}

// ClustererFunc adapts a function to Clusterer.
type ClustererFunc func(ctx context.Context, data *mat.Dense, params any) ([]int, error)

func (f ClustererFunc) Cluster(ctx context.Context, data *mat.Dense, params any) ([]int, error) {
	return f(ctx, data, params)
}

type reducerEntry struct {
	schema  func() any
	reducer Reducer
}

type clustererEntry struct {
	schema    func() any
	clusterer Clusterer
}

// Registry maps algorithm names to implementations and parameter schemas.
// It is safe for concurrent use once built.
type Registry struct {
	reducers   map[string]reducerEntry
	clusterers map[string]clustererEntry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		reducers:   make(map[string]reducerEntry),
		clusterers: make(map[string]clustererEntry),
	}
}

// DefaultRegistry returns a registry with every built-in algorithm.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.RegisterReducer("pca", schemaOf[EmptyParams], ReducerFunc(reducePCA))
	r.RegisterReducer("truncated_svd", schemaOf[EmptyParams], ReducerFunc(reduceTruncatedSVD))
	r.RegisterReducer("mds", schemaOf[EmptyParams], ReducerFunc(reduceMDS))
	r.RegisterReducer("tsne", schemaOf[TSNEParams], ReducerFunc(reduceTSNE))
	r.RegisterReducer("isomap", schemaOf[NeighborsParams], ReducerFunc(reduceIsomap))
	r.RegisterReducer("spectral_embedding", schemaOf[NeighborsParams], ReducerFunc(reduceSpectralEmbedding))
	r.RegisterReducer("umap", schemaOf[UMAPParams], nil)

	r.RegisterClusterer("dbscan", schemaOf[DBSCANParams], ClustererFunc(clusterDBSCAN))
	r.RegisterClusterer("affinity_propagation", schemaOf[EmptyParams], ClustererFunc(clusterAffinityPropagation))
	r.RegisterClusterer("kmeans", schemaOf[KMeansParams], ClustererFunc(clusterKMeans))
	r.RegisterClusterer("agglomerative_clustering", schemaOf[AgglomerativeParams], ClustererFunc(clusterAgglomerative))
	r.RegisterClusterer("spectral_clustering", schemaOf[KMeansParams], ClustererFunc(clusterSpectral))
	r.RegisterClusterer("gaussian_mixture", schemaOf[GaussianMixtureParams], ClustererFunc(clusterGaussianMixture))
	r.RegisterClusterer("optics", schemaOf[OPTICSParams], nil)
	r.RegisterClusterer("birch", schemaOf[KMeansParams], nil)

	return r
}

func schemaOf[T any]() any {
	return new(T)
}

// RegisterReducer adds a reduction algorithm. A nil reducer registers the
// schema only.
func (r *Registry) RegisterReducer(name string, schema func() any, reducer Reducer) {
	r.reducers[name] = reducerEntry{schema: schema, reducer: reducer}
}

// RegisterClusterer adds a clustering algorithm. A nil clusterer registers
// the schema only.
func (r *Registry) RegisterClusterer(name string, schema func() any, clusterer Clusterer) {
	r.clusterers[name] = clustererEntry{schema: schema, clusterer: clusterer}
}

// Reductions lists the runnable reduction algorithms.
func (r *Registry) Reductions() []string {
	var names []string
	for name, e := range r.reducers {
		if e.reducer != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Clusterings lists the runnable clustering algorithms.
func (r *Registry) Clusterings() []string {
	var names []string
	for name, e := range r.clusterers {
		if e.clusterer != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// decodeParams maps the free-form params onto the schema struct and runs the
// validator over it.
func decodeParams(algorithm string, schema func() any, params map[string]any) (any, error) {
	target := schema()
	if params == nil {
		params = map[string]any{}
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return nil, invalid(algorithm, "params", "params must be a JSON object")
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return nil, invalid(algorithm, "params", fmt.Sprintf("params do not match the %s schema: %v", algorithm, err))
	}
	if verr := validation.ValidateStruct(target); verr != nil {
		return nil, &ValidationError{Algorithm: algorithm, Err: verr}
	}
	return target, nil
}

// ValidateReduction checks algorithm, components and params of a reduction
// job and returns the decoded params struct.
func (r *Registry) ValidateReduction(algorithm string, components int, params map[string]any) (any, error) {
	e, ok := r.reducers[algorithm]
	if !ok {
		return nil, invalid(algorithm, "algorithm", fmt.Sprintf("unknown reduction algorithm %q", algorithm))
	}
	if e.reducer == nil {
		return nil, invalid(algorithm, "algorithm", "algorithm not available")
	}
	if components < MinComponents || components > MaxComponents {
		return nil, invalid(algorithm, "components",
			fmt.Sprintf("components must be between %d and %d", MinComponents, MaxComponents))
	}
	return decodeParams(algorithm, e.schema, params)
}

// ValidateCluster checks algorithm and params of a clustering job and
// returns the decoded params struct.
func (r *Registry) ValidateCluster(algorithm string, params map[string]any) (any, error) {
	e, ok := r.clusterers[algorithm]
	if !ok {
		return nil, invalid(algorithm, "algorithm", fmt.Sprintf("unknown clustering algorithm %q", algorithm))
	}
	if e.clusterer == nil {
		return nil, invalid(algorithm, "algorithm", "algorithm not available")
	}
	return decodeParams(algorithm, e.schema, params)
}

// Reduce validates and runs a reduction.
func (r *Registry) Reduce(ctx context.Context, algorithm string, data [][]float64, components int, params map[string]any) ([][]float64, error) {
	decoded, err := r.ValidateReduction(algorithm, components, params)
	if err != nil {
		return nil, err
	}
	x, err := ToDense(data)
	if err != nil {
		return nil, err
	}
	if components > x.RawMatrix().Cols {
		return nil, fmt.Errorf("%w: %d components requested for %d features", ErrInvalidInput, components, x.RawMatrix().Cols)
	}

	out, err := r.reducers[algorithm].reducer.Reduce(ctx, x, components, decoded)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", algorithm, err)
	}
	return FromDense(out), nil
}

// Cluster validates and runs a clustering.
func (r *Registry) Cluster(ctx context.Context, algorithm string, data [][]float64, params map[string]any) ([]int, error) {
	decoded, err := r.ValidateCluster(algorithm, params)
	if err != nil {
		return nil, err
	}
	x, err := ToDense(data)
	if err != nil {
		return nil, err
	}

	labels, err := r.clusterers[algorithm].clusterer.Cluster(ctx, x, decoded)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", algorithm, err)
	}
	return labels, nil
}
