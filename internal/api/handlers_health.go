// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package api

import (
	"context"
	"net/http"
	"time"
)

// Status handles GET /status. It answers 503 when the job stream or the
// result backend is unreachable. No running workers is reported but does not
// fail the check, since jobs wait in the stream until a worker starts.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.statusTimeout)
	defer cancel()

	resp := StatusResponse{
		Server:    StatusOK,
		Queue:     StatusOK,
		Scheduler: StatusOK,
		Results:   StatusOK,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
	}

	if h.stream != nil && !h.stream.IsHealthy(ctx) {
		resp.Queue = StatusUnavailable
	}

	workers, err := h.queue.Workers(ctx)
	switch {
	case err != nil:
		resp.Scheduler = StatusUnavailable
	case workers == 0:
		resp.Scheduler = StatusNoWorkers
	}
	resp.Workers = workers

	if err := h.queue.PingResults(ctx); err != nil {
		resp.Results = StatusUnavailable
	}

	status := http.StatusOK
	if resp.Queue != StatusOK || resp.Results != StatusOK {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, resp)
}
