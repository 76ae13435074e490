// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package config

import (
	"net"
	"strconv"
	"time"

	"github.com/tomtom215/latentspace/internal/hierarchy"
)

// Config holds the configuration of both the API server and the workers.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Storage    StorageConfig    `koanf:"storage"`
	WebDAV     WebDAVConfig     `koanf:"webdav"`
	S3         S3Config         `koanf:"s3"`
	NATS       NATSConfig       `koanf:"nats"`
	Results    ResultsConfig    `koanf:"results"`
	Worker     WorkerConfig     `koanf:"worker"`
	Hierarchy  hierarchy.Config `koanf:"hierarchy"`
	Logging    LoggingConfig    `koanf:"logging"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host         string        `koanf:"host"`
	Port         int           `koanf:"port"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// CORSOrigins lists allowed origins. Empty allows none.
	CORSOrigins []string `koanf:"cors_origins"`

	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	// LinkCacheSize bounds the image share link cache. Zero disables it.
	LinkCacheSize int           `koanf:"link_cache_size"`
	LinkCacheTTL  time.Duration `koanf:"link_cache_ttl"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// StorageConfig selects the storage backend and its retry policy. Before
// retry k the caller sleeps RetryUnit * RetryDelay^(RetryBackoff*k).
type StorageConfig struct {
	// Type is webdav (hierarchical) or s3 (flat object store).
	Type string `koanf:"type"`

	RetryAttempts int           `koanf:"retry_attempts"`
	RetryDelay    float64       `koanf:"retry_delay"`
	RetryBackoff  float64       `koanf:"retry_backoff"`
	RetryUnit     time.Duration `koanf:"retry_unit"`

	// BreakerThreshold consecutive transient failures open the circuit
	// breaker for BreakerTimeout. Zero disables the breaker.
	BreakerThreshold uint32        `koanf:"breaker_threshold"`
	BreakerTimeout   time.Duration `koanf:"breaker_timeout"`

	// Timeout bounds a single HTTP request to the backend.
	Timeout time.Duration `koanf:"timeout"`
}

// WebDAVConfig configures the ownCloud/Nextcloud backend.
type WebDAVConfig struct {
	URL      string `koanf:"url"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	// ShareAPI is the OCS share endpoint. Derived from URL when empty.
	ShareAPI string `koanf:"share_api"`
	// LinkSuffix is appended to image share links.
	LinkSuffix string `koanf:"link_suffix"`
}

// S3Config configures the MinIO/S3 backend.
type S3Config struct {
	Endpoint  string `koanf:"endpoint"`
	Region    string `koanf:"region"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	// Bucket pins the hierarchy into one bucket. When empty every tenant
	// namespace is its own bucket.
	Bucket     string        `koanf:"bucket"`
	UseSSL     bool          `koanf:"use_ssl"`
	PresignTTL time.Duration `koanf:"presign_ttl"`
}

// NATSConfig configures the job broker.
type NATSConfig struct {
	// URL of the NATS server. Ignored by the server process when Embedded
	// is set, which then serves on Host:Port itself.
	URL      string `koanf:"url"`
	Embedded bool   `koanf:"embedded"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	StoreDir string `koanf:"store_dir"`

	MaxMemory int64 `koanf:"max_memory"`
	MaxStore  int64 `koanf:"max_store"`

	StreamName string        `koanf:"stream_name"`
	MaxAge     time.Duration `koanf:"max_age"`

	InspectSubject string        `koanf:"inspect_subject"`
	InspectTimeout time.Duration `koanf:"inspect_timeout"`

	DurableName string `koanf:"durable_name"`
	QueueGroup  string `koanf:"queue_group"`
	Subscribers int    `koanf:"subscribers"`
	// AckWait must exceed the longest job.
	AckWait      time.Duration `koanf:"ack_wait"`
	MaxDeliver   int           `koanf:"max_deliver"`
	PoisonTopic  string        `koanf:"poison_topic"`
	CloseTimeout time.Duration `koanf:"close_timeout"`
}

// ResultsConfig configures the task record backend.
type ResultsConfig struct {
	// Backend is redis (shared between processes) or badger (single node).
	Backend   string `koanf:"backend"`
	RedisURL  string `koanf:"redis_url"`
	BadgerDir string `koanf:"badger_dir"`
	// Expires is how long a task record is kept after its last update.
	Expires time.Duration `koanf:"expires"`
}

// WorkerConfig configures job execution.
type WorkerConfig struct {
	// Embedded runs a worker inside the server process.
	Embedded    bool   `koanf:"embedded"`
	Concurrency int    `koanf:"concurrency"`
	Name        string `koanf:"name"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level"`
	// Format is json or console.
	Format string `koanf:"format"`
	// Caller includes caller file and line number in logs.
	Caller bool `koanf:"caller"`
}

// SupervisorConfig tunes the suture supervisor tree.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}
