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

const (
	// DefaultMinIOImage is the object store image the S3 tests run against.
	DefaultMinIOImage = "minio/minio:latest"

	// MinIO root credentials of the test container.
	MinIOAccessKey = "lse-test-access"
	MinIOSecretKey = "lse-test-secret-key"

	minioPort = "9000"
)

// MinIOContainer is a running MinIO server.
type MinIOContainer struct {
	testcontainers.Container
	// Endpoint is the http:// URL of the S3 API.
	Endpoint  string
	AccessKey string
	SecretKey string
}

// NewMinIOContainer starts MinIO and registers its cleanup on t.
func NewMinIOContainer(ctx context.Context, t *testing.T) (*MinIOContainer, error) {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        DefaultMinIOImage,
		ExposedPorts: []string{minioPort + "/tcp"},
		Cmd:          []string{"server", "/data"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     MinIOAccessKey,
			"MINIO_ROOT_PASSWORD": MinIOSecretKey,
		},
		WaitingFor: wait.ForHTTP("/minio/health/live").
			WithPort(minioPort + "/tcp").
			WithStartupTimeout(90 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio container: %w", err)
	}
	CleanupContainer(t, container)

	// The container exposes a single port.
	addr, err := container.Endpoint(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("container endpoint: %w", err)
	}
	return &MinIOContainer{
		Container: container,
		Endpoint:  "http://" + addr,
		AccessKey: MinIOAccessKey,
		SecretKey: MinIOSecretKey,
	}, nil
}
