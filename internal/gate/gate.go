// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

// Package gate resolves the tenant of a request to its namespace and
// refuses every operation on a namespace that does not exist.
package gate

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/latentspace/internal/hierarchy"
	"github.com/tomtom215/latentspace/internal/logging"
	"github.com/tomtom215/latentspace/internal/storage"
	"github.com/tomtom215/latentspace/internal/validation"
)

// Tenant headers. HeaderUserID is the one existing clients send.
const (
	HeaderUserID      = "user_id"
	HeaderUserIDAlias = "X-User-ID"
)

// ErrUnauthorized matches every *UnauthorizedError with errors.Is.
var ErrUnauthorized = errors.New("gate: unauthorized")

// UnauthorizedError reports a tenant whose namespace does not exist.
type UnauthorizedError struct {
	Tenant string
}

func (e *UnauthorizedError) Error() string {
	if e.Tenant == "" {
		return "User not authorized"
	}
	return fmt.Sprintf("User %s not authorized", e.Tenant)
}

// Is makes errors.Is(err, ErrUnauthorized) hold.
func (e *UnauthorizedError) Is(target error) bool {
	return target == ErrUnauthorized
}

// Gate checks tenant namespaces against the store.
type Gate struct {
	backend storage.Backend
	paths   hierarchy.Paths
}

// New returns a Gate over backend.
func New(backend storage.Backend, paths hierarchy.Paths) *Gate {
	return &Gate{backend: backend, paths: paths}
}

// Authorize returns the tenant's namespace, or *UnauthorizedError when the
// tenant is empty, its namespace is the demo root, or its namespace does not
// exist. Storage failures are returned unchanged.
func (g *Gate) Authorize(ctx context.Context, tenant string) (string, error) {
	if !validation.IsPathSegment(tenant) || g.paths.IsDemoNamespace(tenant) {
		return "", &UnauthorizedError{Tenant: tenant}
	}
	ns := g.paths.Namespace(tenant)
	ok, err := g.backend.Exists(ctx, ns)
	if err != nil {
		return "", fmt.Errorf("check namespace: %w", err)
	}
	if !ok {
		return "", &UnauthorizedError{Tenant: tenant}
	}
	return ns, nil
}

// TenantFromRequest reads the tenant header.
func TenantFromRequest(r *http.Request) string {
	if v := r.Header.Get(HeaderUserID); v != "" {
		return v
	}
	return r.Header.Get(HeaderUserIDAlias)
}

// Tenant returns the tenant authorised for the request context.
func Tenant(ctx context.Context) string {
	return logging.TenantFromContext(ctx)
}

// Middleware authorises every request before it reaches the wrapped
// handler. Rejected requests get 401 with a {"message"} body. Storage
// failures get 503 once retries are exhausted and 500 otherwise.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant := TenantFromRequest(r)

		_, err := g.Authorize(r.Context(), tenant)
		if err != nil {
			var unauthorized *UnauthorizedError
			if errors.As(err, &unauthorized) {
				logging.Ctx(r.Context()).Info().
					Str("tenant_id", tenant).
					Msg("Rejected request for unknown tenant")
				writeMessage(w, http.StatusUnauthorized, unauthorized.Error())
				return
			}
			logging.CtxErr(r.Context(), err).Msg("Tenant authorization failed")
			if errors.Is(err, storage.ErrUnavailable) {
				writeMessage(w, http.StatusServiceUnavailable, "Storage unavailable")
				return
			}
			writeMessage(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		ctx := logging.ContextWithTenant(r.Context(), tenant)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	data, err := json.Marshal(map[string]string{"message": msg})
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write gate response")
	}
}
