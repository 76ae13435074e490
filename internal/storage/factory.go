// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package storage

import (
	"fmt"
)

// Backend types accepted by New.
const (
	TypeWebDAV = "webdav"
	TypeS3     = "s3"
	TypeMemory = "memory"
)

// Config selects and configures a backend.
type Config struct {
	Type    string
	Retry   RetryPolicy
	Breaker BreakerConfig
	WebDAV  WebDAVConfig
	S3      S3Config
}

// New builds the configured backend wrapped in the retrying decorator.
// The caller must Connect it before use and Close it on shutdown.
func New(cfg Config) (*Retrying, error) {
	var (
		next Backend
		err  error
	)

	switch cfg.Type {
	case TypeWebDAV, "":
		next, err = NewWebDAVBackend(cfg.WebDAV, cfg.Retry)
	case TypeS3:
		next, err = NewS3Backend(cfg.S3)
	case TypeMemory:
		next = NewMemory()
	default:
		return nil, fmt.Errorf("storage: unknown backend type %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	name := cfg.Type
	if name == "" {
		name = TypeWebDAV
	}
	return NewRetrying(next, name, cfg.Retry, WithBreaker(cfg.Breaker)), nil
}
