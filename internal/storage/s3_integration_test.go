// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

//go:build integration

package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/latentspace/internal/testinfra"
)

func TestS3BackendAgainstMinIO(t *testing.T) {
	testinfra.SkipIfNoDocker(t)
	ctx := context.Background()

	minio, err := testinfra.NewMinIOContainer(ctx, t)
	if err != nil {
		t.Fatal(err)
	}

	backend, err := New(Config{
		Type:  TypeS3,
		Retry: RetryPolicy{MaxAttempts: 2, Delay: 1, Backoff: 1, Unit: 10 * time.Millisecond},
		S3: S3Config{
			Endpoint:   minio.Endpoint,
			AccessKey:  minio.AccessKey,
			SecretKey:  minio.SecretKey,
			PresignTTL: time.Hour,
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer backend.Close()
	if err := backend.Connect(ctx); err != nil {
		t.Fatal(err)
	}

	// The first path segment is the bucket.
	if err := backend.Mkdir(ctx, "lse-alice/e1/clusters"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := backend.Write(ctx, "lse-alice/e1/metadata.json", []byte(`{"name":"e1"}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := backend.Write(ctx, "lse-alice/e1/clusters/r1/cluster.json", []byte(`[0,1]`)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := backend.Read(ctx, "lse-alice/e1/metadata.json")
	if err != nil || string(data) != `{"name":"e1"}` {
		t.Fatalf("Read = %q, %v", data, err)
	}
	if _, err := backend.Read(ctx, "lse-alice/e1/missing.json"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Read(missing) = %v, want ErrNotFound", err)
	}

	entries, err := backend.List(ctx, "lse-alice/e1", ListOptions{Depth: 1})
	if err != nil {
		t.Fatal(err)
	}
	got := paths(entries)
	want := []string{"lse-alice/e1/clusters", "lse-alice/e1/metadata.json"}
	if !equalStrings(got, want) {
		t.Errorf("List = %v, want %v", got, want)
	}

	if err := backend.Copy(ctx, "lse-alice/e1", "lse-bob/e1"); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if ok, err := backend.Exists(ctx, "lse-bob/e1/clusters/r1/cluster.json"); err != nil || !ok {
		t.Errorf("Copied file missing: %v, %v", ok, err)
	}

	link, err := backend.ShareLink(ctx, "lse-alice/e1/metadata.json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(link, minio.Endpoint) || !strings.Contains(link, "X-Amz-Signature") {
		t.Errorf("ShareLink = %q", link)
	}

	if err := backend.Delete(ctx, "lse-alice/e1/clusters/r1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := backend.Exists(ctx, "lse-alice/e1/clusters/r1"); ok {
		t.Error("Deleted result still exists")
	}
	if ok, _ := backend.Exists(ctx, "lse-alice/e1/metadata.json"); !ok {
		t.Error("Delete removed a sibling")
	}
}
