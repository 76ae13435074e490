// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package app

import (
	"context"
	"fmt"

	"github.com/tomtom215/latentspace/internal/config"
	"github.com/tomtom215/latentspace/internal/logging"
	"github.com/tomtom215/latentspace/internal/storage"
)

// OpenStorage builds and connects the configured storage backend. The
// caller closes it after every user has stopped.
func OpenStorage(ctx context.Context, cfg *config.Config) (*storage.Retrying, error) {
	backend, err := storage.New(cfg.StorageBackend())
	if err != nil {
		return nil, fmt.Errorf("create storage backend: %w", err)
	}

	connectCtx := ctx
	if cfg.Storage.Timeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, cfg.Storage.Timeout)
		defer cancel()
	}
	if err := backend.Connect(connectCtx); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("connect storage backend: %w", err)
	}

	logging.Info().
		Str("type", cfg.Storage.Type).
		Int("retry_attempts", cfg.Storage.RetryAttempts).
		Msg("Storage backend connected")
	return backend, nil
}
