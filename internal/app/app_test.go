// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/latentspace/internal/config"
	"github.com/tomtom215/latentspace/internal/gate"
)

// loadEmbedded loads a single-process configuration: embedded NATS on a
// random port, in-memory storage and task records.
func loadEmbedded(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("ENVIRONMENT_FILE", "")
	t.Setenv("STORAGE_TYPE", "memory")
	t.Setenv("RESULTS_BACKEND", "memory")
	t.Setenv("WORKER_EMBEDDED", "true")
	t.Setenv("NATS_EMBEDDED", "true")
	t.Setenv("NATS_PORT", "-1")
	t.Setenv("NATS_STORE_DIR", t.TempDir())
	t.Setenv("NATS_INSPECT_TIMEOUT", "300ms")
	t.Setenv("NATS_CLOSE_TIMEOUT", "5s")
	t.Setenv("DISABLE_RATE_LIMIT", "true")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

func TestEmbeddedProcess(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping embedded NATS process in short mode")
	}

	cfg := loadEmbedded(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	backend, err := OpenStorage(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer backend.Close()
	for p, data := range map[string]string{
		"lse-alice/line/metadata.json":   `{"name":"line"}`,
		"lse-alice/line/embeddings.json": `[[0,0],[0,1],[10,10],[10,11]]`,
	} {
		if err := backend.Write(ctx, p, []byte(data)); err != nil {
			t.Fatal(err)
		}
	}

	queue, err := OpenQueue(ctx, cfg, "app-test")
	if err != nil {
		t.Fatal(err)
	}
	defer queue.Close(context.Background())
	if !strings.HasPrefix(queue.URL, "nats://") {
		t.Errorf("Queue URL = %q", queue.URL)
	}

	results, err := cfg.OpenResults(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer results.Close()

	apiTier, err := NewAPI(cfg, backend, queue, results)
	if err != nil {
		t.Fatal(err)
	}
	defer apiTier.Close()

	w, err := NewWorker(cfg, backend, queue, results)
	if err != nil {
		t.Fatal(err)
	}
	runCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	svcs := w.Services()
	for _, svc := range svcs {
		go func() {
			_ = svc.Serve(runCtx)
			done <- struct{}{}
		}()
	}
	defer func() {
		stop()
		for range svcs {
			<-done
		}
		w.Close()
	}()

	srv := httptest.NewServer(apiTier.Server.Handler)
	defer srv.Close()

	call := func(method, path, body string) (int, map[string]any) {
		t.Helper()
		req, err := http.NewRequestWithContext(ctx, method, srv.URL+path, strings.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set(gate.HeaderUserID, "alice")
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		var out map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&out)
		return resp.StatusCode, out
	}

	code, status := call(http.MethodGet, "/status", "")
	if code != http.StatusOK {
		t.Fatalf("GET /status = %d %v", code, status)
	}

	code, submitted := call(http.MethodPost, "/experiments/line/clusters", `{"algorithm":"kmeans","params":{"n_clusters":2}}`)
	if code != http.StatusCreated {
		t.Fatalf("Submit = %d %v", code, submitted)
	}
	taskID, _ := submitted["task_id"].(string)
	if taskID == "" {
		t.Fatalf("Submit returned no task id: %v", submitted)
	}

	var task map[string]any
	for {
		_, task = call(http.MethodGet, "/tasks/"+taskID, "")
		if s := task["status"]; s == "success" || s == "failure" {
			break
		}
		select {
		case <-ctx.Done():
			t.Fatalf("Task did not finish, last %v", task)
		case <-time.After(50 * time.Millisecond):
		}
	}
	if task["status"] != "success" || task["name"] != "cluster" {
		t.Fatalf("Task = %v", task)
	}

	resultID, _ := task["result_id"].(string)
	code, result := call(http.MethodGet, "/experiments/line/clusters/"+resultID, "")
	if code != http.StatusOK || result == nil {
		t.Errorf("GET result = %d %v", code, result)
	}
}
