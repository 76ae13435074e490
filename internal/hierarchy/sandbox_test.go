// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package hierarchy

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/tomtom215/latentspace/internal/storage"
)

func TestEnsureDemoSandboxIsIdempotent(t *testing.T) {
	t.Parallel()

	store, mem := seedStore(t)
	ctx := context.Background()

	if err := store.EnsureDemoSandbox(ctx, "alice", "demo-mnist"); err != nil {
		t.Fatal(err)
	}
	copies, mkdirs := mem.Calls("copy"), mem.Calls("mkdir")
	if copies != 1 {
		t.Errorf("First call copies = %d, want 1 (clusters has no shared subtree)", copies)
	}

	if err := store.EnsureDemoSandbox(ctx, "alice", "demo-mnist"); err != nil {
		t.Fatal(err)
	}
	if mem.Calls("copy") != copies || mem.Calls("mkdir") != mkdirs {
		t.Errorf("Second call created again: copies %d→%d, mkdirs %d→%d",
			copies, mem.Calls("copy"), mkdirs, mem.Calls("mkdir"))
	}

	// The shared tree is never written to.
	if ok, _ := mem.Exists(ctx, "lse-demo/demo-mnist/clusters"); ok {
		t.Error("Shared demo tree was modified")
	}
}

func TestEnsureDemoSandboxConcurrent(t *testing.T) {
	t.Parallel()

	store, mem := seedStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.EnsureDemoSandbox(ctx, "alice", "demo-mnist")
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("Concurrent ensure failed: %v", err)
		}
	}

	ok, _ := mem.Exists(ctx, "lse-demo/demo-mnist/data-alice/reductions/shared/reduction.json")
	if !ok {
		t.Error("Sandbox missing the shared reduction")
	}
}

func TestEnsureDemoSandboxRejectsOwnedExperiments(t *testing.T) {
	t.Parallel()

	store, _ := seedStore(t)
	err := store.EnsureDemoSandbox(context.Background(), "alice", "e1")
	if !errors.Is(err, ErrNotDemo) {
		t.Errorf("Expected ErrNotDemo, got %v", err)
	}
}

func TestEnsureDemoSandboxPropagatesFailures(t *testing.T) {
	t.Parallel()

	store, mem := seedStore(t)
	mem.FailNext("copy", storage.TransientFault("copy"))

	err := store.EnsureDemoSandbox(context.Background(), "alice", "demo-mnist")
	if err == nil {
		t.Fatal("Expected the copy failure to propagate")
	}

	// A later call completes the sandbox.
	if err := store.EnsureDemoSandbox(context.Background(), "alice", "demo-mnist"); err != nil {
		t.Fatal(err)
	}
}

func TestParseLabels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		want    []string
		wantErr bool
	}{
		{"records", `[{"file_name":"a.png","class":1},{"file_name":"b.png","class":2}]`, []string{"a.png", "b.png"}, false},
		{"records without column", `[{"class":1}]`, []string{""}, false},
		{"split with file_name", `{"columns":["class","file_name"],"index":[0,1],"data":[[1,"a.png"],[2,"b.png"]]}`, []string{"a.png", "b.png"}, false},
		{"split first column", `{"columns":["id"],"index":[0,1],"data":[[7],[8]]}`, []string{"7", "8"}, false},
		{"empty records", `[]`, []string{}, false},
		{"scalar", `42`, nil, true},
		{"object without data", `{"columns":["a"]}`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseLabels([]byte(tt.data))
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected an error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Label %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
