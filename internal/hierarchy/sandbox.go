// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package hierarchy

import (
	"context"
	"fmt"

	"github.com/tomtom215/latentspace/internal/logging"
	"github.com/tomtom215/latentspace/internal/storage"
	"github.com/tomtom215/latentspace/internal/validation"
)

// EnsureDemoSandbox creates the tenant's private copy of a demo experiment's
// result collections if it does not exist yet. Each collection is copied
// from the shared demo root, or created empty when the demo has none.
//
// Calls are not serialised. Concurrent callers may race on the same
// directories; a failed create is accepted when the target exists
// afterwards, so every caller converges on the same sandbox.
func (s *Store) EnsureDemoSandbox(ctx context.Context, tenant, experiment string) error {
	if !s.paths.HasDemoMarker(experiment) || !validation.IsPathSegment(experiment) {
		return fmt.Errorf("%w: %q", ErrNotDemo, experiment)
	}
	shared := s.paths.DemoDir(experiment)
	// Creating the sandbox of a missing demo would create the demo itself.
	if ok, err := s.backend.Exists(ctx, shared); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("%w: %q is not in the demo root", ErrNotDemo, experiment)
	}

	sandbox := s.paths.SandboxDir(tenant, experiment)
	if err := s.ensure(ctx, sandbox, func() error {
		return s.backend.Mkdir(ctx, sandbox)
	}); err != nil {
		return fmt.Errorf("create sandbox: %w", err)
	}

	for _, kind := range Kinds {
		src := storage.Join(shared, kind.Dir())
		dst := storage.Join(sandbox, kind.Dir())
		err := s.ensure(ctx, dst, func() error {
			ok, err := s.backend.Exists(ctx, src)
			if err != nil {
				return err
			}
			if !ok {
				return s.backend.Mkdir(ctx, dst)
			}
			return s.backend.Copy(ctx, src, dst)
		})
		if err != nil {
			return fmt.Errorf("populate sandbox %s: %w", kind.Dir(), err)
		}
	}
	return nil
}

// ensure runs create when target is missing, tolerating a concurrent
// creator that got there first.
func (s *Store) ensure(ctx context.Context, target string, create func() error) error {
	ok, err := s.backend.Exists(ctx, target)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	createErr := create()
	if createErr == nil {
		return nil
	}
	if ok, err := s.backend.Exists(ctx, target); err == nil && ok {
		logging.Ctx(ctx).Debug().Err(createErr).
			Str("path", target).
			Msg("Sandbox path created concurrently")
		return nil
	}
	return createErr
}

// scheduleSandbox runs EnsureDemoSandbox detached from the request. Errors
// are logged only.
func (s *Store) scheduleSandbox(ctx context.Context, tenant, experiment string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.sandboxTimeout)

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		defer cancel()

		if err := s.EnsureDemoSandbox(ctx, tenant, experiment); err != nil {
			logging.Ctx(ctx).Warn().Err(err).
				Str("experiment_id", experiment).
				Msg("Demo sandbox creation failed")
		}
	}()
}
