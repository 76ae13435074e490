// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package middleware

import (
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// CompressionLevel is the flate level used for result payloads.
const CompressionLevel = 5

var compressor = chimiddleware.NewCompressor(CompressionLevel, "application/json")

// Compression gzips (or deflates) JSON responses for clients that accept
// it. Reduction and cluster payloads are dense float arrays and compress
// well; other content types pass through.
func Compression(next http.Handler) http.Handler {
	return compressor.Handler(next)
}
