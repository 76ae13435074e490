// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// DefaultRedisImage is the Redis image the task record tests run against.
const DefaultRedisImage = "redis:7-alpine"

const redisPort = "6379"

// RedisContainer is a running Redis server.
type RedisContainer struct {
	testcontainers.Container
	// URL is a redis:// URL for database 0.
	URL string
}

// NewRedisContainer starts Redis and registers its cleanup on t.
func NewRedisContainer(ctx context.Context, t *testing.T) (*RedisContainer, error) {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        DefaultRedisImage,
		ExposedPorts: []string{redisPort + "/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(redisPort+"/tcp"),
			wait.ForLog("Ready to accept connections"),
		).WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("create redis container: %w", err)
	}
	CleanupContainer(t, container)

	// The container exposes a single port.
	addr, err := container.Endpoint(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("container endpoint: %w", err)
	}
	return &RedisContainer{Container: container, URL: "redis://" + addr + "/0"}, nil
}
