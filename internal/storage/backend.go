// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

// Package storage unifies the two remote store flavours the service runs on
// behind one Backend interface:
//
//   - WebDAVBackend: a path-hierarchical store (ownCloud / Nextcloud). Real
//     directories, depth-limited listings and public share links.
//   - S3Backend: a bucket/key object store (MinIO / S3). Directories are a
//     key-prefix convention and share links are presigned URLs.
//
// Every backend returned by New is wrapped in a Retrying decorator which
// retries transient failures with exponential backoff and guards the remote
// with a circuit breaker. Not-found is reported as ErrNotFound and is never
// retried.
package storage

import (
	"context"
	"path"
	"strings"
)

// EntryType distinguishes files from directories in listings.
type EntryType string

const (
	EntryFile EntryType = "file"
	EntryDir  EntryType = "dir"
)

// Entry is one item of a listing.
type Entry struct {
	// Path is the full store path of the entry, usable with every Backend call.
	Path string `json:"path"`
	// Name is the last path segment.
	Name string    `json:"name"`
	Type EntryType `json:"type"`
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool {
	return e.Type == EntryDir
}

// ListOptions controls how deep a listing goes.
//
// Hierarchical backends honour Depth (1 = immediate children). Flat backends
// honour Recursive and fall back to Depth when Recursive is false.
type ListOptions struct {
	Depth     int
	Recursive bool
}

// Backend is the capability set the result hierarchy and the workers need
// from a remote store.
type Backend interface {
	// Exists reports whether a file or directory exists. A missing path is
	// (false, nil), never ErrNotFound.
	Exists(ctx context.Context, p string) (bool, error)
	List(ctx context.Context, p string, opts ListOptions) ([]Entry, error)
	Read(ctx context.Context, p string) ([]byte, error)
	Write(ctx context.Context, p string, data []byte) error
	// Mkdir creates a directory and any missing parents. Creating an
	// existing directory is not an error.
	Mkdir(ctx context.Context, p string) error
	// Copy copies a file or a whole directory tree.
	Copy(ctx context.Context, src, dst string) error
	// Delete removes a file or a whole directory tree.
	Delete(ctx context.Context, p string) error
	// ShareLink returns a public URL for the path, reusing an existing link
	// where the backend supports durable shares.
	ShareLink(ctx context.Context, p string) (string, error)
	Close() error
}

// Connector is implemented by backends that hold a session which must be
// opened before use.
type Connector interface {
	Connect(ctx context.Context) error
}

// Clean normalises a store path: forward slashes, no leading or trailing
// slash, no "." or ".." segments.
func Clean(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p)
	return strings.Trim(p, "/")
}

// Join joins path segments into a clean store path.
func Join(elem ...string) string {
	return Clean(path.Join(elem...))
}
