// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package api

import (
	"time"

	"github.com/goccy/go-json"
)

// MessageResponse is the body of every error response.
type MessageResponse struct {
	Message string `json:"message"`
}

// ExperimentResponse is the body of GET /experiments/{eid}.
type ExperimentResponse struct {
	Metadata json.RawMessage `json:"metadata"`
}

// SubmitResponse is the body of a 201 job submission.
type SubmitResponse struct {
	TaskID string `json:"task_id"`
}

// PendingResponse is the body of the pending count routes.
type PendingResponse struct {
	Count int `json:"count"`
}

// Component states reported by /status.
const (
	StatusOK          = "ok"
	StatusUnavailable = "unavailable"
	StatusNoWorkers   = "no workers"
)

// StatusResponse is the body of GET /status. Server is always ok when the
// handler runs. Scheduler reflects the workers that answered an inspect
// request.
type StatusResponse struct {
	Server    string    `json:"server"`
	Queue     string    `json:"queue"`
	Scheduler string    `json:"scheduler"`
	Results   string    `json:"results"`
	Workers   int       `json:"workers"`
	Uptime    string    `json:"uptime"`
	Timestamp time.Time `json:"timestamp"`
}
