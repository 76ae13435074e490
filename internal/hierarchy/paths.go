// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

// Package hierarchy maps tenants, experiments and results onto store paths
// and implements the listing, retrieval and deletion rules on top of a
// storage.Backend.
//
// Layout for tenant T and experiment E:
//
//	lse-T/E/{metadata,embeddings,labels}.json
//	lse-T/E/images/<name>
//	lse-T/E/reductions/<id>/{metadata,reduction}.json
//	lse-T/E/clusters/<id>/{metadata,cluster,silhouette,scores}.json
//
// Demo experiments live under a shared read-only root. An id carrying the
// demo marker that exists there is a demo experiment: its files are read
// from lse-demo/E and its results are redirected into the tenant's private
// sandbox lse-demo/E/data-T. Any other id is looked up in the tenant's
// namespace.
package hierarchy

import (
	"strings"

	"github.com/tomtom215/latentspace/internal/storage"
)

// File names inside experiment and result directories.
const (
	MetadataFile   = "metadata.json"
	EmbeddingsFile = "embeddings.json"
	LabelsFile     = "labels.json"
	ReductionFile  = "reduction.json"
	ClusterFile    = "cluster.json"
	SilhouetteFile = "silhouette.json"
	ScoresFile     = "scores.json"
	ImagesDir      = "images"
)

// Kind is the kind of a result, and of the job that produces it.
type Kind string

const (
	KindReduction Kind = "reduction"
	KindCluster   Kind = "cluster"
)

// Kinds lists every result kind.
var Kinds = []Kind{KindReduction, KindCluster}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindReduction || k == KindCluster
}

// Dir is the collection directory name: reductions or clusters.
func (k Kind) Dir() string {
	return string(k) + "s"
}

// PayloadFile is the primary result file of the kind.
func (k Kind) PayloadFile() string {
	if k == KindCluster {
		return ClusterFile
	}
	return ReductionFile
}

// title is the capitalised kind used in user-facing messages.
func (k Kind) title() string {
	if k == "" {
		return ""
	}
	return strings.ToUpper(string(k[:1])) + string(k[1:])
}

// Config holds the naming conventions of the store.
type Config struct {
	// UserPrefix prefixes a tenant id to form its namespace root.
	UserPrefix string `koanf:"user_prefix"`
	// DemoRoot is the shared root holding demo experiments.
	DemoRoot string `koanf:"demo_root"`
	// DemoMarker is the experiment id prefix of demo experiments.
	DemoMarker string `koanf:"demo_marker"`
}

// DefaultConfig returns the conventions of existing deployments.
func DefaultConfig() Config {
	return Config{
		UserPrefix: "lse-",
		DemoRoot:   "lse-demo",
		DemoMarker: "demo",
	}
}

// Paths builds store paths. The zero value is not usable; use NewPaths.
type Paths struct {
	cfg Config
}

// NewPaths returns a path builder for cfg. Empty fields take defaults.
func NewPaths(cfg Config) Paths {
	def := DefaultConfig()
	if cfg.UserPrefix == "" {
		cfg.UserPrefix = def.UserPrefix
	}
	if cfg.DemoRoot == "" {
		cfg.DemoRoot = def.DemoRoot
	}
	if cfg.DemoMarker == "" {
		cfg.DemoMarker = def.DemoMarker
	}
	cfg.DemoRoot = storage.Clean(cfg.DemoRoot)
	return Paths{cfg: cfg}
}

// Namespace is the root directory owned by tenant.
func (p Paths) Namespace(tenant string) string {
	return storage.Clean(p.cfg.UserPrefix + tenant)
}

// IsDemoNamespace reports whether tenant's namespace would be the shared
// demo root. Such a tenant owns nothing.
func (p Paths) IsDemoNamespace(tenant string) bool {
	return p.Namespace(tenant) == p.cfg.DemoRoot
}

// DemoRoot is the shared demo root.
func (p Paths) DemoRoot() string {
	return p.cfg.DemoRoot
}

// HasDemoMarker reports whether the experiment id carries the demo marker.
// Only such ids are looked up under the demo root, and they count as demo
// experiments only when they exist there.
func (p Paths) HasDemoMarker(experiment string) bool {
	return strings.HasPrefix(experiment, p.cfg.DemoMarker)
}

// Ref is an experiment resolved to the root it lives under.
type Ref struct {
	Tenant     string
	Experiment string
	// Demo is set for experiments read from the shared demo root.
	Demo bool
}

// DemoDir is the shared directory of a demo experiment.
func (p Paths) DemoDir(experiment string) string {
	return storage.Join(p.cfg.DemoRoot, experiment)
}

// OwnedDir is the directory of an experiment in the tenant's namespace.
func (p Paths) OwnedDir(tenant, experiment string) string {
	return storage.Join(p.Namespace(tenant), experiment)
}

// ExperimentDir holds the experiment's metadata, dataset, labels and images.
func (p Paths) ExperimentDir(ref Ref) string {
	if ref.Demo {
		return p.DemoDir(ref.Experiment)
	}
	return p.OwnedDir(ref.Tenant, ref.Experiment)
}

// DataDir is where the tenant's results for the experiment live: the
// experiment directory itself, or the tenant's sandbox for demo experiments.
func (p Paths) DataDir(ref Ref) string {
	if ref.Demo {
		return p.SandboxDir(ref.Tenant, ref.Experiment)
	}
	return p.ExperimentDir(ref)
}

// SandboxDir is the tenant's private copy of a demo experiment's results.
func (p Paths) SandboxDir(tenant, experiment string) string {
	return storage.Join(p.cfg.DemoRoot, experiment, "data-"+tenant)
}

// DatasetPath is the experiment's embeddings file.
func (p Paths) DatasetPath(ref Ref) string {
	return storage.Join(p.ExperimentDir(ref), EmbeddingsFile)
}

// LabelsPath is the experiment's labels manifest.
func (p Paths) LabelsPath(ref Ref) string {
	return storage.Join(p.ExperimentDir(ref), LabelsFile)
}

// ImagePath is one image of the experiment.
func (p Paths) ImagePath(ref Ref, name string) string {
	return storage.Join(p.ExperimentDir(ref), ImagesDir, name)
}

// ResultsDir is the collection directory of kind.
func (p Paths) ResultsDir(ref Ref, kind Kind) string {
	return storage.Join(p.DataDir(ref), kind.Dir())
}

// ResultDir is one result directory.
func (p Paths) ResultDir(ref Ref, kind Kind, id string) string {
	return storage.Join(p.ResultsDir(ref, kind), id)
}
