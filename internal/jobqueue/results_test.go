// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package jobqueue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// exerciseBackend runs the behaviour every ResultBackend shares.
func exerciseBackend(t *testing.T, backend ResultBackend) {
	t.Helper()
	ctx := context.Background()

	if err := backend.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	if _, ok, err := backend.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = %v, %v", ok, err)
	}

	if err := backend.SetState(ctx, TaskRecord{TaskID: "t1", State: StateStarted, Name: "cluster"}); err != nil {
		t.Fatal(err)
	}
	if err := backend.SetState(ctx, TaskRecord{TaskID: "t1", State: StateSuccess, Name: "cluster", ResultID: "r1"}); err != nil {
		t.Fatal(err)
	}

	rec, ok, err := backend.Get(ctx, "t1")
	if err != nil || !ok {
		t.Fatalf("Get(t1) = %v, %v", ok, err)
	}
	if rec.State != StateSuccess || rec.ResultID != "r1" || rec.UpdatedAt.IsZero() {
		t.Errorf("Record = %+v", rec)
	}

	if err := backend.SetState(ctx, TaskRecord{State: StateStarted}); err == nil {
		t.Error("Expected an error for a record without task id")
	}

	if err := backend.Close(); err != nil {
		t.Fatal(err)
	}
	if err := backend.Ping(ctx); !errors.Is(err, ErrResultsClosed) {
		t.Errorf("Ping after close = %v", err)
	}
}

func TestMemoryResults(t *testing.T) {
	t.Parallel()
	exerciseBackend(t, NewMemoryResults(time.Minute))
}

func TestMemoryResultsExpire(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemoryResults(10 * time.Minute)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	if err := m.SetState(ctx, TaskRecord{TaskID: "t1", State: StateSuccess}); err != nil {
		t.Fatal(err)
	}
	now = now.Add(9 * time.Minute)
	if _, ok, _ := m.Get(ctx, "t1"); !ok {
		t.Fatal("Record expired early")
	}
	now = now.Add(time.Minute)
	if _, ok, _ := m.Get(ctx, "t1"); ok {
		t.Error("Record outlived its expiry")
	}
}

func TestBadgerResults(t *testing.T) {
	t.Parallel()

	backend, err := OpenBadgerResults("", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	exerciseBackend(t, backend)
}

func TestBadgerResultsSharedDB(t *testing.T) {
	t.Parallel()

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	backend := NewBadgerResultsFromDB(db, 0)
	if err := backend.SetState(context.Background(), TaskRecord{TaskID: "t1", State: StateFailure, Error: "boom"}); err != nil {
		t.Fatal(err)
	}
	if err := backend.Close(); err != nil {
		t.Fatal(err)
	}
	if db.IsClosed() {
		t.Error("Close must not close a database it does not own")
	}

	// The record carries the default expiry.
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("lse-task-meta-t1"))
		if err != nil {
			return err
		}
		if item.ExpiresAt() == 0 {
			t.Error("Record has no TTL")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
