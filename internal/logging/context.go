// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// contextKey doubles as the log field name of the value it stores.
type contextKey string

const (
	correlationIDKey contextKey = "correlation_id"
	requestIDKey     contextKey = "request_id"
	tenantIDKey      contextKey = "tenant_id"
	taskIDKey        contextKey = "task_id"
)

// contextFields is the order in which Ctx attaches context values.
var contextFields = []contextKey{correlationIDKey, requestIDKey, tenantIDKey, taskIDKey}

func stringValue(ctx context.Context, key contextKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

// GenerateCorrelationID returns a short id for joining related log lines.
func GenerateCorrelationID() string {
	return uuid.NewString()[:8]
}

// GenerateRequestID returns a UUIDv4 request id.
func GenerateRequestID() string {
	return uuid.NewString()
}

func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

func ContextWithNewCorrelationID(ctx context.Context) context.Context {
	return ContextWithCorrelationID(ctx, GenerateCorrelationID())
}

func CorrelationIDFromContext(ctx context.Context) string {
	return stringValue(ctx, correlationIDKey)
}

func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// ContextWithTenant records the tenant a request or job acts for.
func ContextWithTenant(ctx context.Context, tenant string) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenant)
}

func TenantFromContext(ctx context.Context) string {
	return stringValue(ctx, tenantIDKey)
}

// ContextWithTaskID records the job a worker executes. The task id also
// becomes the correlation id, which joins a job's log lines to those of the
// request that submitted it.
func ContextWithTaskID(ctx context.Context, taskID string) context.Context {
	ctx = context.WithValue(ctx, taskIDKey, taskID)
	return ContextWithCorrelationID(ctx, taskID)
}

func TaskIDFromContext(ctx context.Context) string {
	return stringValue(ctx, taskIDKey)
}

// Ctx returns the global logger with the ids held by ctx attached.
//
//	logging.Ctx(ctx).Info().Msg("Job submitted")
func Ctx(ctx context.Context) *zerolog.Logger {
	l := CtxWith(ctx).Logger()
	return &l
}

// CtxWith is Ctx for callers that add fields of their own.
//
//	log := logging.CtxWith(ctx).Str("algorithm", algo).Logger()
func CtxWith(ctx context.Context) zerolog.Context {
	lc := Logger().With()
	for _, key := range contextFields {
		if v := stringValue(ctx, key); v != "" {
			lc = lc.Str(string(key), v)
		}
	}
	return lc
}

// CtxErr starts an error event carrying ctx's ids and err.
func CtxErr(ctx context.Context, err error) *zerolog.Event {
	return Ctx(ctx).Err(err)
}

// WithComponent returns a child logger tagged with component.
func WithComponent(component string) zerolog.Logger {
	return With().Str("component", component).Logger()
}
