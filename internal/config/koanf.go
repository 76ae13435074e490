// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/latentspace/internal/hierarchy"
	"github.com/tomtom215/latentspace/internal/jobqueue"
	"github.com/tomtom215/latentspace/internal/storage"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/latentspace/config.yaml",
	"/etc/latentspace/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// EnvironmentFileEnvVar names a dotenv file loaded before .env.
const EnvironmentFileEnvVar = "ENVIRONMENT_FILE"

// DotEnvFile is loaded from the working directory when present.
const DotEnvFile = ".env"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	retry := storage.DefaultRetryPolicy()
	breaker := storage.DefaultBreakerConfig()
	subscriber := jobqueue.DefaultSubscriberConfig("")
	router := jobqueue.DefaultRouterConfig()
	server := jobqueue.DefaultServerConfig()
	stream := jobqueue.DefaultStreamConfig()

	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8000,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      2 * time.Minute, // large result payloads
			CORSOrigins:       []string{},
			RateLimitRequests: 600,
			RateLimitWindow:   time.Minute,
			LinkCacheSize:     10000,
			LinkCacheTTL:      time.Hour,
		},
		Storage: StorageConfig{
			Type:             storage.TypeWebDAV,
			RetryAttempts:    retry.MaxAttempts,
			RetryDelay:       retry.Delay,
			RetryBackoff:     retry.Backoff,
			RetryUnit:        retry.Unit,
			BreakerThreshold: breaker.FailureThreshold,
			BreakerTimeout:   breaker.Timeout,
			Timeout:          30 * time.Second,
		},
		WebDAV: WebDAVConfig{
			LinkSuffix: "/preview",
		},
		S3: S3Config{
			Region:     "us-east-1",
			UseSSL:     true,
			PresignTTL: 7 * 24 * time.Hour,
		},
		NATS: NATSConfig{
			URL:            "nats://127.0.0.1:4222",
			Embedded:       false,
			Host:           server.Host,
			Port:           server.Port,
			StoreDir:       server.StoreDir,
			MaxMemory:      server.JetStreamMaxMem,
			MaxStore:       server.JetStreamMaxStore,
			StreamName:     stream.Name,
			MaxAge:         stream.MaxAge,
			InspectSubject: jobqueue.DefaultInspectSubject,
			InspectTimeout: jobqueue.DefaultInspectTimeout,
			DurableName:    subscriber.DurableName,
			QueueGroup:     subscriber.QueueGroup,
			Subscribers:    subscriber.SubscribersCount,
			AckWait:        subscriber.AckWaitTimeout,
			MaxDeliver:     subscriber.MaxDeliver,
			PoisonTopic:    router.PoisonQueueTopic,
			CloseTimeout:   router.CloseTimeout,
		},
		Results: ResultsConfig{
			Backend:   ResultsRedis,
			RedisURL:  "redis://127.0.0.1:6379/0",
			BadgerDir: "/data/results",
			Expires:   jobqueue.DefaultResultExpiry,
		},
		Worker: WorkerConfig{
			Embedded:    false,
			Concurrency: 1,
		},
		Hierarchy: hierarchy.DefaultConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  30 * time.Second,
		},
	}
}

// Load loads configuration using koanf with layered sources:
//  1. Defaults
//  2. Config file (optional)
//  3. Environment variables, after dotenv files are applied
//
// The result is validated before it is returned.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadDotEnv applies the ENVIRONMENT_FILE and .env files to the process
// environment. godotenv never overrides a variable that is already set, so
// the real environment wins over ENVIRONMENT_FILE, which wins over .env.
func loadDotEnv() error {
	var files []string
	if named := os.Getenv(EnvironmentFileEnvVar); named != "" {
		files = append(files, named)
	}
	if _, err := os.Stat(DotEnvFile); err == nil {
		files = append(files, DotEnvFile)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", DotEnvFile, err)
	}
	if len(files) == 0 {
		return nil
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("failed to load dotenv files %v: %w", files, err)
	}
	return nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// This is necessary because env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to config paths.
var envMappings = map[string]string{
	"http_host":           "server.host",
	"http_port":           "server.port",
	"http_read_timeout":   "server.read_timeout",
	"http_write_timeout":  "server.write_timeout",
	"cors_origins":        "server.cors_origins",
	"rate_limit_requests": "server.rate_limit_requests",
	"rate_limit_window":   "server.rate_limit_window",
	"disable_rate_limit":  "server.rate_limit_disabled",
	"link_cache_size":     "server.link_cache_size",
	"link_cache_ttl":      "server.link_cache_ttl",

	"storage_type":              "storage.type",
	"storage_retry_attempts":    "storage.retry_attempts",
	"storage_retry_delay":       "storage.retry_delay",
	"storage_retry_backoff":     "storage.retry_backoff",
	"storage_retry_unit":        "storage.retry_unit",
	"storage_breaker_threshold": "storage.breaker_threshold",
	"storage_breaker_timeout":   "storage.breaker_timeout",
	"storage_timeout":           "storage.timeout",

	"webdav_url":         "webdav.url",
	"webdav_user":        "webdav.user",
	"webdav_password":    "webdav.password",
	"webdav_share_api":   "webdav.share_api",
	"webdav_link_suffix": "webdav.link_suffix",

	"s3_endpoint":    "s3.endpoint",
	"s3_region":      "s3.region",
	"s3_access_key":  "s3.access_key",
	"s3_secret_key":  "s3.secret_key",
	"s3_bucket":      "s3.bucket",
	"s3_use_ssl":     "s3.use_ssl",
	"s3_presign_ttl": "s3.presign_ttl",

	"nats_url":             "nats.url",
	"nats_embedded":        "nats.embedded",
	"nats_host":            "nats.host",
	"nats_port":            "nats.port",
	"nats_store_dir":       "nats.store_dir",
	"nats_max_memory":      "nats.max_memory",
	"nats_max_store":       "nats.max_store",
	"nats_stream_name":     "nats.stream_name",
	"nats_max_age":         "nats.max_age",
	"nats_inspect_subject": "nats.inspect_subject",
	"nats_inspect_timeout": "nats.inspect_timeout",
	"nats_durable_name":    "nats.durable_name",
	"nats_queue_group":     "nats.queue_group",
	"nats_subscribers":     "nats.subscribers",
	"nats_ack_wait":        "nats.ack_wait",
	"nats_max_deliver":     "nats.max_deliver",
	"nats_poison_topic":    "nats.poison_topic",
	"nats_close_timeout":   "nats.close_timeout",

	"results_backend": "results.backend",
	"redis_url":       "results.redis_url",
	"badger_dir":      "results.badger_dir",
	"results_expires": "results.expires",

	"worker_embedded":    "worker.embedded",
	"worker_concurrency": "worker.concurrency",
	"worker_name":        "worker.name",

	"user_prefix": "hierarchy.user_prefix",
	"demo_root":   "hierarchy.demo_root",
	"demo_marker": "hierarchy.demo_marker",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_decay":     "supervisor.failure_decay",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",
}

// envTransformFunc transforms environment variable names to koanf config
// paths. Unmapped variables return "" and are skipped, so unrelated
// environment variables never reach the config.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
