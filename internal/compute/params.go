// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package compute

// EmptyParams is the schema of algorithms without parameters.
type EmptyParams struct{}

// TSNEParams configures t-SNE.
type TSNEParams struct {
	Perplexity   int `json:"perplexity" validate:"gte=5,lte=50"`
	Iterations   int `json:"iterations" validate:"gte=250,lte=5000"`
	LearningRate int `json:"learning_rate" validate:"gte=10,lte=1000"`
}

// UMAPParams is accepted by the schema but has no in-process runner.
type UMAPParams struct {
	Neighbors   int     `json:"neighbors" validate:"gte=2,lte=200"`
	MinDistance float64 `json:"min_distance" validate:"gte=0.01,lte=0.99"`
}

// NeighborsParams configures the neighbourhood graph of isomap and
// spectral_embedding.
type NeighborsParams struct {
	Neighbors int `json:"neighbors" validate:"gte=2,lte=100"`
}

// DBSCANParams configures DBSCAN.
type DBSCANParams struct {
	Eps        float64 `json:"eps" validate:"gte=0.01,lte=1"`
	MinSamples int     `json:"min_samples" validate:"gte=1,lte=300"`
}

// KMeansParams is shared by kmeans, spectral_clustering and birch.
type KMeansParams struct {
	NClusters int `json:"n_clusters" validate:"gte=1,lte=100"`
}

// AgglomerativeParams configures Ward agglomerative clustering cut at a
// linkage distance.
type AgglomerativeParams struct {
	DistanceThreshold int `json:"distance_threshold" validate:"gte=1,lte=100"`
}

// GaussianMixtureParams configures the full-covariance mixture model.
type GaussianMixtureParams struct {
	NComponents int `json:"n_components" validate:"gte=1,lte=100"`
}

// OPTICSParams is accepted by the schema but has no in-process runner.
type OPTICSParams struct {
	MinSamples int    `json:"min_samples" validate:"gte=1,lte=300"`
	Metric     string `json:"metric" validate:"required,oneof=euclidean cosine"`
}
