// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/latentspace/internal/storage"
)

// setMinimalEnv points the loader at an empty directory and selects backends
// that need no external service.
func setMinimalEnv(t *testing.T) {
	t.Helper()
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv(EnvironmentFileEnvVar, "")
	t.Setenv("STORAGE_TYPE", storage.TypeMemory)
	t.Setenv("RESULTS_BACKEND", ResultsMemory)
	t.Setenv("WORKER_EMBEDDED", "true")
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestDefaultConfig verifies that defaultConfig() returns proper defaults
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Storage.Type != storage.TypeWebDAV {
		t.Errorf("Storage.Type = %q, want webdav", cfg.Storage.Type)
	}
	if cfg.Storage.RetryAttempts != 3 || cfg.Storage.RetryDelay != 3 || cfg.Storage.RetryBackoff != 1 {
		t.Errorf("Storage retry = %d/%v/%v, want 3/3/1", cfg.Storage.RetryAttempts, cfg.Storage.RetryDelay, cfg.Storage.RetryBackoff)
	}
	if cfg.WebDAV.LinkSuffix != "/preview" {
		t.Errorf("WebDAV.LinkSuffix = %q, want /preview", cfg.WebDAV.LinkSuffix)
	}
	if cfg.Results.Backend != ResultsRedis || cfg.Results.Expires != 600*time.Second {
		t.Errorf("Results = %+v", cfg.Results)
	}
	if cfg.NATS.StreamName != "LSE_JOBS" || cfg.NATS.MaxDeliver != 3 || cfg.NATS.AckWait != 30*time.Minute {
		t.Errorf("NATS = %+v", cfg.NATS)
	}
	if cfg.NATS.InspectSubject != "lse.workers.inspect" || cfg.NATS.InspectTimeout != time.Second {
		t.Errorf("NATS inspect = %q/%v", cfg.NATS.InspectSubject, cfg.NATS.InspectTimeout)
	}
	if cfg.Worker.Concurrency != 1 {
		t.Errorf("Worker.Concurrency = %d, want 1", cfg.Worker.Concurrency)
	}
	if cfg.Hierarchy.UserPrefix != "lse-" || cfg.Hierarchy.DemoRoot != "lse-demo" {
		t.Errorf("Hierarchy = %+v", cfg.Hierarchy)
	}
}

func TestLoadDefaults(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr() != "0.0.0.0:8000" {
		t.Errorf("Addr = %q", cfg.Server.Addr())
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if cfg.Storage.RetryUnit != time.Second {
		t.Errorf("RetryUnit = %v", cfg.Storage.RetryUnit)
	}
}

func TestLoadFromEnv(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("STORAGE_RETRY_DELAY", "2.5")
	t.Setenv("STORAGE_RETRY_UNIT", "10ms")
	t.Setenv("NATS_ACK_WAIT", "45m")
	t.Setenv("WORKER_CONCURRENCY", "4")
	t.Setenv("USER_PREFIX", "tenant-")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("UNRELATED_VARIABLE", "ignored")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d", cfg.Server.Port)
	}
	want := []string{"https://a.example", "https://b.example"}
	if !reflect.DeepEqual(cfg.Server.CORSOrigins, want) {
		t.Errorf("CORSOrigins = %v, want %v", cfg.Server.CORSOrigins, want)
	}
	if cfg.Storage.RetryDelay != 2.5 || cfg.Storage.RetryUnit != 10*time.Millisecond {
		t.Errorf("Retry = %v x %v", cfg.Storage.RetryDelay, cfg.Storage.RetryUnit)
	}
	if cfg.NATS.AckWait != 45*time.Minute {
		t.Errorf("AckWait = %v", cfg.NATS.AckWait)
	}
	if cfg.Worker.Concurrency != 4 {
		t.Errorf("Concurrency = %d", cfg.Worker.Concurrency)
	}
	if cfg.Hierarchy.UserPrefix != "tenant-" {
		t.Errorf("UserPrefix = %q", cfg.Hierarchy.UserPrefix)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q", cfg.Logging.Level)
	}
}

func TestLoadFromFile(t *testing.T) {
	setMinimalEnv(t)
	path := writeFile(t, "config.yaml", `
server:
  port: 8123
storage:
  retry_attempts: 5
nats:
  stream_name: CUSTOM_JOBS
  subscribers: 2
logging:
  format: console
`)
	t.Setenv(ConfigPathEnvVar, path)
	// The environment wins over the file.
	t.Setenv("NATS_SUBSCRIBERS", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8123 || cfg.Storage.RetryAttempts != 5 {
		t.Errorf("Port = %d, RetryAttempts = %d", cfg.Server.Port, cfg.Storage.RetryAttempts)
	}
	if cfg.NATS.StreamName != "CUSTOM_JOBS" || cfg.NATS.Subscribers != 3 {
		t.Errorf("NATS = %q/%d", cfg.NATS.StreamName, cfg.NATS.Subscribers)
	}
	if cfg.Logging.Format != "console" {
		t.Errorf("Format = %q", cfg.Logging.Format)
	}
	// Untouched sections keep their defaults.
	if cfg.Results.Expires != 600*time.Second {
		t.Errorf("Expires = %v", cfg.Results.Expires)
	}
}

func TestLoadInvalidFile(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(ConfigPathEnvVar, writeFile(t, "config.yaml", "server: [unterminated"))

	if _, err := Load(); err == nil {
		t.Fatal("Load accepted malformed YAML")
	}
}

func TestLoadEnvironmentFile(t *testing.T) {
	setMinimalEnv(t)

	// godotenv writes to the process environment directly.
	const key = "NATS_INSPECT_SUBJECT"
	if _, ok := os.LookupEnv(key); ok {
		t.Skipf("%s already set", key)
	}
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	t.Setenv(EnvironmentFileEnvVar, writeFile(t, "lse.env", key+"=custom.inspect\n"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.NATS.InspectSubject != "custom.inspect" {
		t.Errorf("InspectSubject = %q", cfg.NATS.InspectSubject)
	}
}

func TestLoadMissingEnvironmentFile(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvironmentFileEnvVar, filepath.Join(t.TempDir(), "absent.env"))

	if _, err := Load(); err == nil {
		t.Fatal("Load ignored a missing ENVIRONMENT_FILE")
	}
}

func TestLoadValidationFailure(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv("STORAGE_TYPE", storage.TypeWebDAV)

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "WEBDAV_URL") {
		t.Fatalf("Load error = %v, want WEBDAV_URL failure", err)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"HTTP_PORT":       "server.port",
		"webdav_url":      "webdav.url",
		"REDIS_URL":       "results.redis_url",
		"DEMO_MARKER":     "hierarchy.demo_marker",
		"LOG_CALLER":      "logging.caller",
		"PATH":            "",
		"SERVER_PORT_XYZ": "",
	}
	for in, want := range tests {
		if got := envTransformFunc(in); got != want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", in, got, want)
		}
	}
}
