// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/latentspace/internal/gate"
)

// ListExperiments handles GET /experiments. Demo experiments come first.
func (h *Handler) ListExperiments(w http.ResponseWriter, r *http.Request) {
	experiments, err := h.store.ListExperiments(r.Context(), gate.Tenant(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, experiments)
}

// GetExperiment handles GET /experiments/{eid}.
func (h *Handler) GetExperiment(w http.ResponseWriter, r *http.Request) {
	meta, err := h.store.GetExperiment(r.Context(), gate.Tenant(r.Context()), chi.URLParam(r, "eid"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ExperimentResponse{Metadata: meta})
}

// DeleteExperiment handles DELETE /experiments/{eid}. Deleting a demo
// experiment is accepted and has no effect.
func (h *Handler) DeleteExperiment(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteExperiment(r.Context(), gate.Tenant(r.Context()), chi.URLParam(r, "eid")); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, true)
}

// GetLabels handles GET /experiments/{eid}/labels. The manifest is returned
// as stored.
func (h *Handler) GetLabels(w http.ResponseWriter, r *http.Request) {
	labels, err := h.store.GetLabels(r.Context(), gate.Tenant(r.Context()), chi.URLParam(r, "eid"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, labels)
}

// ImageLink handles GET /experiments/{eid}/images/{name} and returns a
// public link to the image as a JSON string.
func (h *Handler) ImageLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.store.ImageLink(r.Context(), gate.Tenant(r.Context()), chi.URLParam(r, "eid"), chi.URLParam(r, "name"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, link)
}
