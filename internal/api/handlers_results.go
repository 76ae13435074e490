// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/latentspace/internal/gate"
	"github.com/tomtom215/latentspace/internal/hierarchy"
	"github.com/tomtom215/latentspace/internal/jobqueue"
	"github.com/tomtom215/latentspace/internal/logging"
	"github.com/tomtom215/latentspace/internal/validation"
)

// resultParam is the chi URL parameter holding a result id.
const resultParam = "rid"

// ListResults returns the handler for GET /experiments/{eid}/<kind>s.
func (h *Handler) ListResults(kind hierarchy.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results, err := h.store.ListResults(r.Context(), gate.Tenant(r.Context()), chi.URLParam(r, "eid"), kind)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, results)
	}
}

// GetResult returns the handler for GET /experiments/{eid}/<kind>s/{id}.
func (h *Handler) GetResult(kind hierarchy.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tenant, experiment, id := gate.Tenant(ctx), chi.URLParam(r, "eid"), chi.URLParam(r, resultParam)

		var (
			result any
			err    error
		)
		switch kind {
		case hierarchy.KindReduction:
			result, err = h.store.GetReduction(ctx, tenant, experiment, id)
		default:
			result, err = h.store.GetCluster(ctx, tenant, experiment, id)
		}
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

// DeleteResult returns the handler for DELETE /experiments/{eid}/<kind>s/{id}.
func (h *Handler) DeleteResult(kind hierarchy.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h.store.DeleteResult(r.Context(), gate.Tenant(r.Context()), chi.URLParam(r, "eid"), kind, chi.URLParam(r, resultParam))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, true)
	}
}

// PendingCount returns the handler for GET /experiments/{eid}/<kind>s/pending.
func (h *Handler) PendingCount(kind hierarchy.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := h.queue.PendingCount(r.Context(), kind, chi.URLParam(r, "eid"), gate.Tenant(r.Context()))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, PendingResponse{Count: count})
	}
}

// SubmitReduction handles POST /experiments/{eid}/reductions.
func (h *Handler) SubmitReduction(w http.ResponseWriter, r *http.Request) {
	var body ReductionRequest
	if err := decodeBody(w, r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	if verr := validation.ValidateStruct(&body); verr != nil {
		respondError(w, r, verr)
		return
	}
	h.submit(w, r, jobqueue.JobRequest{
		Kind:       jobqueue.KindReduction,
		Algorithm:  body.Algorithm,
		Components: body.Components,
		Params:     body.Params,
	})
}

// SubmitCluster handles POST /experiments/{eid}/clusters.
func (h *Handler) SubmitCluster(w http.ResponseWriter, r *http.Request) {
	var body ClusterRequest
	if err := decodeBody(w, r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	if verr := validation.ValidateStruct(&body); verr != nil {
		respondError(w, r, verr)
		return
	}
	h.submit(w, r, jobqueue.JobRequest{
		Kind:      jobqueue.KindCluster,
		Algorithm: body.Algorithm,
		Params:    body.Params,
	})
}

// submit checks the experiment exists before queueing, so a job for a
// missing experiment is rejected with 404 instead of failing in a worker.
func (h *Handler) submit(w http.ResponseWriter, r *http.Request, req jobqueue.JobRequest) {
	ctx := r.Context()
	req.TenantID = gate.Tenant(ctx)
	req.ExperimentID = chi.URLParam(r, "eid")

	if err := h.queue.Validate(req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.store.CheckExperiment(ctx, req.TenantID, req.ExperimentID); err != nil {
		respondError(w, r, err)
		return
	}

	taskID, err := h.queue.Submit(ctx, req)
	if err != nil {
		respondError(w, r, err)
		return
	}

	logging.Ctx(ctx).Debug().
		Str("task_id", taskID).
		Str("experiment_id", req.ExperimentID).
		Msg("Accepted job submission")
	respondJSON(w, http.StatusCreated, SubmitResponse{TaskID: taskID})
}
