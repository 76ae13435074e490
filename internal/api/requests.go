// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package api

// ReductionRequest is the body of POST /experiments/{eid}/reductions.
// Parameter ranges are checked against the algorithm's schema by the
// compute registry.
type ReductionRequest struct {
	Algorithm  string         `json:"algorithm" validate:"required"`
	Components int            `json:"components" validate:"required"`
	Params     map[string]any `json:"params"`
}

// ClusterRequest is the body of POST /experiments/{eid}/clusters.
type ClusterRequest struct {
	Algorithm string         `json:"algorithm" validate:"required"`
	Params    map[string]any `json:"params"`
}
