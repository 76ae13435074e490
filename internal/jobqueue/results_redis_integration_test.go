// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

//go:build integration

package jobqueue

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/latentspace/internal/testinfra"
)

func TestRedisResults(t *testing.T) {
	testinfra.SkipIfNoDocker(t)
	ctx := context.Background()

	redisC, err := testinfra.NewRedisContainer(ctx, t)
	if err != nil {
		t.Fatal(err)
	}

	backend, err := NewRedisResults(ctx, redisC.URL, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	exerciseBackend(t, backend)

	// A second connection sees the records of the first.
	writer, err := NewRedisResults(ctx, redisC.URL, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	defer writer.Close()
	reader, err := NewRedisResults(ctx, redisC.URL, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	if err := writer.SetState(ctx, TaskRecord{TaskID: "shared", State: StateFailure, Name: "reduction", Error: "boom"}); err != nil {
		t.Fatal(err)
	}
	rec, ok, err := reader.Get(ctx, "shared")
	if err != nil || !ok || rec.State != StateFailure || rec.Error != "boom" {
		t.Errorf("Get(shared) = %+v, %v, %v", rec, ok, err)
	}

	client := NewClient(&fakePublisher{}, reader, nil, nil)
	status, err := client.Status(ctx, "shared")
	if err != nil || status.Status != StateFailure {
		t.Errorf("Status = %+v, %v", status, err)
	}
}

func TestRedisResultsExpire(t *testing.T) {
	testinfra.SkipIfNoDocker(t)
	ctx := context.Background()

	redisC, err := testinfra.NewRedisContainer(ctx, t)
	if err != nil {
		t.Fatal(err)
	}
	backend, err := NewRedisResults(ctx, redisC.URL, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer backend.Close()

	if err := backend.SetState(ctx, TaskRecord{TaskID: "short", State: StateSuccess}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Second)
	if _, ok, err := backend.Get(ctx, "short"); err != nil || ok {
		t.Errorf("Expired record still present: %v, %v", ok, err)
	}
}
