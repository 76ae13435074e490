// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package hierarchy

import (
	"github.com/goccy/go-json"

	"github.com/tomtom215/latentspace/internal/compute"
)

// DatetimeLayout is the UTC timestamp format of metadata files.
const DatetimeLayout = "2006-01-02 15:04:05"

// Experiment is one entry of an experiment listing. Metadata is passed
// through as written by the ingestion tooling.
type Experiment struct {
	ID       string          `json:"id"`
	Demo     bool            `json:"demo"`
	Metadata json.RawMessage `json:"metadata"`
}

// Metadata is the content of a result's metadata.json.
type Metadata struct {
	Algorithm      string         `json:"algorithm"`
	Components     *int           `json:"components,omitempty"`
	Params         map[string]any `json:"params"`
	StartDatetime  string         `json:"start_datetime"`
	EndDatetime    string         `json:"end_datetime"`
	SecondsElapsed int            `json:"seconds_elapsed"`
}

// ResultSummary is one entry of a result listing.
type ResultSummary struct {
	ID       string   `json:"id"`
	Metadata Metadata `json:"metadata"`
}

// Reduction is a reduction result with the point labels of its experiment.
type Reduction struct {
	Metadata  Metadata    `json:"metadata"`
	Reduction [][]float64 `json:"reduction"`
	Labels    []string    `json:"labels"`
}

// Scores are the summary quality scores of a cluster result.
type Scores = compute.Scores

// Cluster is a cluster result with its quality artifacts. Silhouette is
// empty and Scores nil when quality was not defined for the labels.
type Cluster struct {
	Metadata   Metadata  `json:"metadata"`
	Cluster    []int     `json:"cluster"`
	Silhouette []float64 `json:"silhouette"`
	Scores     *Scores   `json:"scores"`
}

// File is one payload file of a result.
type File struct {
	Name string
	Data []byte
}

// JSONFile marshals v into a payload file.
func JSONFile(name string, v any) (File, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return File{}, err
	}
	return File{Name: name, Data: data}, nil
}
