// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// TaskStatus handles GET /tasks/{task_id}. Unknown ids report pending.
func (h *Handler) TaskStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.queue.Status(r.Context(), chi.URLParam(r, "task_id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}
