// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/latentspace/internal/logging"
)

// maxBodyBytes bounds job submission bodies.
const maxBodyBytes = 1 << 20

// sanitizeLogValue removes control characters from strings to prevent log injection attacks.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// respondJSON sends a JSON response with proper headers
func respondJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondMessage sends a {"message"} body.
func respondMessage(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, MessageResponse{Message: msg})
}

// respondError maps err to a status and a {"message"} body. Server-side
// failures are logged with the request context.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)

	if status >= http.StatusInternalServerError {
		logging.CtxErr(r.Context(), err).
			Str("method", r.Method).
			Str("path", sanitizeLogValue(r.URL.Path)).
			Int("status", status).
			Msg("API error")
	} else {
		logging.Ctx(r.Context()).Debug().
			Str("path", sanitizeLogValue(r.URL.Path)).
			Int("status", status).
			Str("reason", sanitizeLogValue(msg)).
			Msg("Request rejected")
	}

	respondMessage(w, status, msg)
}

// decodeBody decodes a JSON request body into v. An empty body decodes as {}.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	return nil
}
