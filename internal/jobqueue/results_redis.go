// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisResults keeps task records in Redis under lse-task-meta-<id>, with
// the configured expiry. It is shared by every API and worker process.
type RedisResults struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisResults connects to the Redis server at url (redis://...) and
// checks the connection.
func NewRedisResults(ctx context.Context, url string, ttl time.Duration) (*RedisResults, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	r := NewRedisResultsFromClient(redis.NewClient(opts), ttl)
	if err := r.Ping(ctx); err != nil {
		_ = r.client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return r, nil
}

// NewRedisResultsFromClient wraps an existing client.
func NewRedisResultsFromClient(client *redis.Client, ttl time.Duration) *RedisResults {
	if ttl <= 0 {
		ttl = DefaultResultExpiry
	}
	return &RedisResults{client: client, ttl: ttl}
}

// SetState stores rec and resets its expiry.
func (r *RedisResults) SetState(ctx context.Context, rec TaskRecord) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, taskKey(rec.TaskID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("store task %s: %w", rec.TaskID, err)
	}
	return nil
}

// Get returns the record of taskID.
func (r *RedisResults) Get(ctx context.Context, taskID string) (TaskRecord, bool, error) {
	data, err := r.client.Get(ctx, taskKey(taskID)).Bytes()
	if errors.Is(err, redis.Nil) {
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

// Ping checks the connection.
func (r *RedisResults) Ping(ctx context.Context) error {
	err := r.client.Ping(ctx).Err()
	if errors.Is(err, redis.ErrClosed) {
		return ErrResultsClosed
	}
	return err
}

// Close closes the client.
func (r *RedisResults) Close() error {
	return r.client.Close()
}
