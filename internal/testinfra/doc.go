// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

// Package testinfra starts the external services of the integration tests
// with testcontainers-go.
//
// Everything here is behind the integration build tag:
//
//	go test -tags integration ./...
//
// # Containers
//
//   - RedisContainer: the shared task record backend.
//   - MinIOContainer: the flat object store behind the S3 storage backend.
//
// WebDAV is exercised in the regular tests against golang.org/x/net/webdav
// served by httptest, so it needs no container.
//
// Tests call SkipIfNoDocker first and are skipped when no Docker daemon is
// reachable. The first run pulls the images.
package testinfra
