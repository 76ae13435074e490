// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerResults keeps task records in a local BadgerDB with TTL entries. It
// serves single-node deployments where the API and the workers share one
// process.
type BadgerResults struct {
	db     *badger.DB
	ttl    time.Duration
	ownsDB bool
	mu     sync.RWMutex
	closed bool
}

// OpenBadgerResults opens (or creates) a BadgerDB at dir. An empty dir
// opens an in-memory database.
func OpenBadgerResults(dir string, ttl time.Duration) (*BadgerResults, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Suppress BadgerDB logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for task records: %w", err)
	}
	r := NewBadgerResultsFromDB(db, ttl)
	r.ownsDB = true
	return r, nil
}

// NewBadgerResultsFromDB uses an existing database; Close leaves it open.
func NewBadgerResultsFromDB(db *badger.DB, ttl time.Duration) *BadgerResults {
	if ttl <= 0 {
		ttl = DefaultResultExpiry
	}
	return &BadgerResults{db: db, ttl: ttl}
}

// SetState stores rec with the configured TTL.
func (b *BadgerResults) SetState(_ context.Context, rec TaskRecord) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrResultsClosed
	}

	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(taskKey(rec.TaskID)), data).WithTTL(b.ttl))
	})
	if err != nil {
		return fmt.Errorf("store task %s: %w", rec.TaskID, err)
	}
	return nil
}

// Get returns the record of taskID. Expired entries are not found.
func (b *BadgerResults) Get(_ context.Context, taskID string) (TaskRecord, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return TaskRecord{}, false, ErrResultsClosed
	}

	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(taskKey(taskID)))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return TaskRecord{}, false, nil
	}
	if err != nil {
		return TaskRecord{}, false, fmt.Errorf("load task %s: %w", taskID, err)
	}

	rec, err := decodeRecord(data)
	if err != nil {
		return TaskRecord{}, false, err
	}
	return rec, true, nil
}

// Ping fails once the database is closed.
func (b *BadgerResults) Ping(context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed || b.db.IsClosed() {
		return ErrResultsClosed
	}
	return nil
}

// Close closes the database when it was opened by OpenBadgerResults.
func (b *BadgerResults) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if b.ownsDB {
		return b.db.Close()
	}
	return nil
}
