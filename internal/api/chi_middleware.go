// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/tomtom215/latentspace/internal/gate"
	"github.com/tomtom215/latentspace/internal/middleware"
)

// ChiMiddlewareConfig configures CORS and rate limiting.
type ChiMiddlewareConfig struct {
	// CORSAllowedOrigins defaults to none and must be configured explicitly.
	CORSAllowedOrigins []string

	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool
	// RateLimitKeyFunc defaults to KeyByTenantOrIP.
	RateLimitKeyFunc httprate.KeyFunc
}

// DefaultChiMiddlewareConfig returns the default configuration.
func DefaultChiMiddlewareConfig() *ChiMiddlewareConfig {
	return &ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{},
		RateLimitRequests:  600,
		RateLimitWindow:    time.Minute,
	}
}

// corsMiddleware answers preflight requests for the API methods and the
// tenant headers. Credentials are never allowed; the tenant travels in a
// header, not a cookie.
func corsMiddleware(cfg *ChiMiddlewareConfig) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{
			"Content-Type",
			gate.HeaderUserID,
			gate.HeaderUserIDAlias,
			middleware.HeaderRequestID,
		},
		ExposedHeaders: []string{middleware.HeaderRequestID},
		MaxAge:         int((24 * time.Hour).Seconds()),
	})
}

// rateLimitMiddleware limits requests per key with go-chi/httprate. Limited
// requests get 429 with a {"message"} body.
func rateLimitMiddleware(cfg *ChiMiddlewareConfig) func(http.Handler) http.Handler {
	if cfg.RateLimitDisabled || cfg.RateLimitRequests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	keyFunc := cfg.RateLimitKeyFunc
	if keyFunc == nil {
		keyFunc = KeyByTenantOrIP
	}
	return httprate.Limit(
		cfg.RateLimitRequests,
		cfg.RateLimitWindow,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			respondMessage(w, http.StatusTooManyRequests, MsgRateLimited)
		}),
	)
}

// KeyByTenantOrIP keys requests that name a tenant by that tenant, so one
// tenant behind a shared proxy cannot starve the others, and everything
// else by client IP.
func KeyByTenantOrIP(r *http.Request) (string, error) {
	if tenant := gate.TenantFromRequest(r); tenant != "" {
		return "tenant:" + tenant, nil
	}
	ip, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + ip, nil
}
