// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package config

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/latentspace/internal/jobqueue"
	"github.com/tomtom215/latentspace/internal/storage"
)

// validConfig returns defaults with every external service configured.
func validConfig() *Config {
	cfg := defaultConfig()
	cfg.WebDAV.URL = "https://cloud.example.com/remote.php/dav/files/lse"
	return cfg
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults with webdav url", func(*Config) {}, ""},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, "HTTP_PORT"},
		{"rate limit zero", func(c *Config) { c.Server.RateLimitRequests = 0 }, "RATE_LIMIT_REQUESTS"},
		{"rate limit disabled skips bounds", func(c *Config) {
			c.Server.RateLimitDisabled = true
			c.Server.RateLimitRequests = 0
		}, ""},
		{"rate window too long", func(c *Config) { c.Server.RateLimitWindow = 2 * time.Hour }, "RATE_LIMIT_WINDOW"},
		{"unknown storage", func(c *Config) { c.Storage.Type = "ftp" }, "STORAGE_TYPE"},
		{"webdav url required", func(c *Config) { c.WebDAV.URL = "" }, "WEBDAV_URL is required"},
		{"webdav url scheme", func(c *Config) { c.WebDAV.URL = "ftp://cloud.example.com" }, "WEBDAV_URL is invalid"},
		{"share api invalid", func(c *Config) { c.WebDAV.ShareAPI = "cloud.example.com/ocs" }, "WEBDAV_SHARE_API"},
		{"link cache disabled", func(c *Config) { c.Server.LinkCacheSize = 0 }, ""},
		{"link cache negative", func(c *Config) { c.Server.LinkCacheSize = -1 }, "LINK_CACHE_SIZE"},
		{"link cache without ttl", func(c *Config) { c.Server.LinkCacheTTL = 0 }, "LINK_CACHE_TTL"},
		{"retry attempts zero", func(c *Config) { c.Storage.RetryAttempts = 0 }, "STORAGE_RETRY_ATTEMPTS"},
		{"retry delay below one", func(c *Config) { c.Storage.RetryDelay = 0.5 }, "STORAGE_RETRY_DELAY"},
		{"s3 without endpoint", func(c *Config) { c.Storage.Type = storage.TypeS3 }, "S3_ENDPOINT is required"},
		{"s3 bare host", func(c *Config) {
			c.Storage.Type = storage.TypeS3
			c.S3.Endpoint = "minio:9000"
		}, ""},
		{"s3 endpoint scheme", func(c *Config) {
			c.Storage.Type = storage.TypeS3
			c.S3.Endpoint = "ftp://minio:9000"
		}, "S3_ENDPOINT is invalid"},
		{"s3 half credentials", func(c *Config) {
			c.Storage.Type = storage.TypeS3
			c.S3.Endpoint = "http://minio:9000"
			c.S3.AccessKey = "key"
		}, "S3_ACCESS_KEY"},
		{"s3 presign too long", func(c *Config) {
			c.Storage.Type = storage.TypeS3
			c.S3.Endpoint = "http://minio:9000"
			c.S3.PresignTTL = 8 * 24 * time.Hour
		}, "S3_PRESIGN_TTL"},
		{"nats url scheme", func(c *Config) { c.NATS.URL = "http://localhost:4222" }, "NATS_URL"},
		{"embedded nats ignores url", func(c *Config) {
			c.NATS.Embedded = true
			c.NATS.URL = ""
		}, ""},
		{"embedded nats memory", func(c *Config) {
			c.NATS.Embedded = true
			c.NATS.MaxMemory = 1024
		}, "NATS_MAX_MEMORY"},
		{"stream name with dot", func(c *Config) { c.NATS.StreamName = "lse.jobs" }, "NATS_STREAM_NAME"},
		{"subscribers zero", func(c *Config) { c.NATS.Subscribers = 0 }, "NATS_SUBSCRIBERS"},
		{"max deliver zero", func(c *Config) { c.NATS.MaxDeliver = 0 }, "NATS_MAX_DELIVER"},
		{"redis scheme", func(c *Config) { c.Results.RedisURL = "http://localhost:6379" }, "REDIS_URL"},
		{"badger dir required", func(c *Config) {
			c.Results.Backend = ResultsBadger
			c.Results.BadgerDir = ""
		}, "BADGER_DIR"},
		{"memory results need embedded worker", func(c *Config) { c.Results.Backend = ResultsMemory }, "WORKER_EMBEDDED"},
		{"unknown results backend", func(c *Config) { c.Results.Backend = "etcd" }, "RESULTS_BACKEND"},
		{"concurrency zero", func(c *Config) { c.Worker.Concurrency = 0 }, "WORKER_CONCURRENCY"},
		{"demo root nested", func(c *Config) { c.Hierarchy.DemoRoot = "a/b" }, "DEMO_ROOT"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "LOG_LEVEL"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestStorageBackend(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Storage.RetryUnit = time.Millisecond
	cfg.Storage.BreakerThreshold = 7

	got := cfg.StorageBackend()
	if got.Type != storage.TypeWebDAV || got.WebDAV.URL != cfg.WebDAV.URL {
		t.Errorf("Backend = %+v", got)
	}
	if got.Retry.MaxAttempts != 3 || got.Retry.Unit != time.Millisecond {
		t.Errorf("Retry = %+v", got.Retry)
	}
	if got.Breaker.FailureThreshold != 7 {
		t.Errorf("Breaker = %+v", got.Breaker)
	}
	if got.WebDAV.Timeout != cfg.Storage.Timeout {
		t.Errorf("WebDAV timeout = %v", got.WebDAV.Timeout)
	}
}

func TestLinkSuffix(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	if cfg.LinkSuffix() != "/preview" {
		t.Errorf("webdav suffix = %q", cfg.LinkSuffix())
	}
	cfg.Storage.Type = storage.TypeS3
	if cfg.LinkSuffix() != "" {
		t.Errorf("s3 suffix = %q, want empty", cfg.LinkSuffix())
	}
}

func TestJobQueueConfigs(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.NATS.StreamName = "OTHER"
	cfg.NATS.MaxDeliver = 5
	cfg.NATS.PoisonTopic = "jobs.dead"

	if s := cfg.Stream(); s.Name != "OTHER" || s.Subjects[0] != jobqueue.StreamSubjects {
		t.Errorf("Stream = %+v", s)
	}
	sub := cfg.Subscriber("nats://x:4222")
	if sub.URL != "nats://x:4222" || sub.StreamName != "OTHER" || sub.MaxDeliver != 5 {
		t.Errorf("Subscriber = %+v", sub)
	}
	if r := cfg.Router(); r.PoisonQueueTopic != "jobs.dead" {
		t.Errorf("Router = %+v", r)
	}
	if i := cfg.Inspect(); i.Subject != jobqueue.DefaultInspectSubject || i.Timeout != time.Second {
		t.Errorf("Inspect = %+v", i)
	}
}

func TestOpenResults(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	cfg := validConfig()
	cfg.Results.Backend = ResultsBadger
	cfg.Results.BadgerDir = t.TempDir()
	results, err := cfg.OpenResults(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := results.Ping(ctx); err != nil {
		t.Errorf("Ping = %v", err)
	}
	_ = results.Close()

	cfg.Results.Backend = ResultsMemory
	results, err = cfg.OpenResults(ctx)
	if err != nil {
		t.Fatal(err)
	}
	_ = results.Close()

	cfg.Results.Backend = "etcd"
	if _, err := cfg.OpenResults(ctx); err == nil {
		t.Error("OpenResults accepted unknown backend")
	}
}

func TestValidateURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		schemes []string
		ok      bool
	}{
		{"https://cloud.example.com/remote.php/dav/files/lse", httpSchemes, true},
		{"http://minio:9000", httpSchemes, true},
		{"https://cloud.example.com/?token=x", httpSchemes, false},
		{"cloud.example.com", httpSchemes, false},
		{"https://", httpSchemes, false},
		{"nats://127.0.0.1:4222", natsSchemes, true},
		{"wss://nats.example.com", natsSchemes, true},
		{"http://127.0.0.1:4222", natsSchemes, false},
		{"rediss://user:pw@redis:6380/1?dial_timeout=3s", redisSchemes, true},
		{"redis://", redisSchemes, false},
	}
	for _, tt := range tests {
		if err := validateURL(tt.raw, tt.schemes...); (err == nil) != tt.ok {
			t.Errorf("validateURL(%q) = %v, want ok=%v", tt.raw, err, tt.ok)
		}
	}
}
