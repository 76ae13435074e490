// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/latentspace/internal/compute"
	"github.com/tomtom215/latentspace/internal/gate"
	"github.com/tomtom215/latentspace/internal/hierarchy"
	"github.com/tomtom215/latentspace/internal/jobqueue"
	"github.com/tomtom215/latentspace/internal/storage"
	"github.com/tomtom215/latentspace/internal/validation"
)

// Messages for errors that do not carry their own client-facing text.
const (
	MsgInternal      = "Internal server error"
	MsgUnavailable   = "Service temporarily unavailable"
	MsgRouteNotFound = "Not found"
	MsgNotAllowed    = "Method not allowed"
	MsgRateLimited   = "Too many requests"
)

// ErrInvalidBody is returned for request bodies that are not valid JSON.
var ErrInvalidBody = errors.New("request body is not valid JSON")

// statusFor maps err to its HTTP status and client message.
func statusFor(err error) (int, string) {
	var (
		notFound     *hierarchy.NotFoundError
		unauthorized *gate.UnauthorizedError
		invalid      *compute.ValidationError
		badRequest   *validation.RequestValidationError
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound, notFound.Message
	case errors.As(err, &unauthorized):
		return http.StatusUnauthorized, unauthorized.Error()
	case errors.As(err, &invalid):
		return http.StatusUnprocessableEntity, invalid.Error()
	case errors.As(err, &badRequest):
		return http.StatusUnprocessableEntity, badRequest.Error()
	case errors.Is(err, ErrInvalidBody):
		return http.StatusUnprocessableEntity, ErrInvalidBody.Error()
	case errors.Is(err, storage.ErrUnavailable), errors.Is(err, jobqueue.ErrQueueUnavailable):
		return http.StatusServiceUnavailable, MsgUnavailable
	default:
		return http.StatusInternalServerError, MsgInternal
	}
}
