// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/latentspace/internal/storage"
)

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

var validLogFormats = map[string]bool{
	"json": true, "console": true,
}

// Limits enforced on the configuration.
const (
	natsMinMemory      = 64 * 1024 * 1024  // 64MB
	natsMinStore       = 100 * 1024 * 1024 // 100MB
	natsMaxSubscribers = 32
	maxConcurrency     = 256
	maxRetryAttempts   = 20
	minRateLimitWindow = time.Second
	maxRateLimitWindow = time.Hour
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateStorage,
		c.validateNATS,
		c.validateResults,
		c.validateWorker,
		c.validateHierarchy,
		c.validateLogging,
	}
	for _, validator := range validators {
		if err := validator(); err != nil {
			return err
		}
	}
	return nil
}

// validateServer validates server configuration
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.LinkCacheSize < 0 {
		return fmt.Errorf("LINK_CACHE_SIZE must not be negative (0 disables the cache)")
	}
	if c.Server.LinkCacheSize > 0 && c.Server.LinkCacheTTL <= 0 {
		return fmt.Errorf("LINK_CACHE_TTL must be positive when LINK_CACHE_SIZE is set")
	}
	if c.Server.RateLimitDisabled {
		return nil
	}
	if c.Server.RateLimitRequests < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1 (set DISABLE_RATE_LIMIT=true to turn it off)")
	}
	if c.Server.RateLimitWindow < minRateLimitWindow || c.Server.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between 1s and 1h")
	}
	return nil
}

// validateStorage validates the selected storage backend and the retry budget
func (c *Config) validateStorage() error {
	if c.Storage.RetryAttempts < 1 || c.Storage.RetryAttempts > maxRetryAttempts {
		return fmt.Errorf("STORAGE_RETRY_ATTEMPTS must be between 1 and %d", maxRetryAttempts)
	}
	if c.Storage.RetryDelay < 1 {
		return fmt.Errorf("STORAGE_RETRY_DELAY must be at least 1")
	}
	if c.Storage.RetryBackoff < 0 {
		return fmt.Errorf("STORAGE_RETRY_BACKOFF must not be negative")
	}
	if c.Storage.RetryUnit <= 0 {
		return fmt.Errorf("STORAGE_RETRY_UNIT must be positive")
	}

	switch c.Storage.Type {
	case storage.TypeWebDAV:
		return c.validateWebDAV()
	case storage.TypeS3:
		return c.validateS3()
	case storage.TypeMemory:
		return nil
	default:
		return fmt.Errorf("STORAGE_TYPE must be one of: %s, %s, %s", storage.TypeWebDAV, storage.TypeS3, storage.TypeMemory)
	}
}

func (c *Config) validateWebDAV() error {
	if c.WebDAV.URL == "" {
		return fmt.Errorf("WEBDAV_URL is required when STORAGE_TYPE=%s", storage.TypeWebDAV)
	}
	if err := validateURL(c.WebDAV.URL, httpSchemes...); err != nil {
		return fmt.Errorf("WEBDAV_URL is invalid: %w", err)
	}
	if c.WebDAV.ShareAPI != "" {
		if err := validateURL(c.WebDAV.ShareAPI, httpSchemes...); err != nil {
			return fmt.Errorf("WEBDAV_SHARE_API is invalid: %w", err)
		}
	}
	return nil
}

func (c *Config) validateS3() error {
	if c.S3.Endpoint == "" {
		return fmt.Errorf("S3_ENDPOINT is required when STORAGE_TYPE=%s", storage.TypeS3)
	}
	// A bare host:port is allowed; the scheme then follows S3_USE_SSL.
	if strings.Contains(c.S3.Endpoint, "://") {
		if err := validateURL(c.S3.Endpoint, httpSchemes...); err != nil {
			return fmt.Errorf("S3_ENDPOINT is invalid: %w", err)
		}
	}
	if (c.S3.AccessKey == "") != (c.S3.SecretKey == "") {
		return fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY must be set together")
	}
	if c.S3.PresignTTL <= 0 || c.S3.PresignTTL > 7*24*time.Hour {
		return fmt.Errorf("S3_PRESIGN_TTL must be between 1s and 168h")
	}
	return nil
}

// validateNATS validates the job stream connection and limits
func (c *Config) validateNATS() error {
	if !c.NATS.Embedded {
		if err := validateURL(c.NATS.URL, natsSchemes...); err != nil {
			return fmt.Errorf("NATS_URL is invalid: %w", err)
		}
	} else {
		if c.NATS.MaxMemory < natsMinMemory {
			return fmt.Errorf("NATS_MAX_MEMORY must be at least 64MB (67108864 bytes)")
		}
		if c.NATS.MaxStore < natsMinStore {
			return fmt.Errorf("NATS_MAX_STORE must be at least 100MB (104857600 bytes)")
		}
		if c.NATS.StoreDir == "" {
			return fmt.Errorf("NATS_STORE_DIR is required when NATS_EMBEDDED=true")
		}
	}

	if c.NATS.StreamName == "" || strings.ContainsAny(c.NATS.StreamName, ".*> ") {
		return fmt.Errorf("NATS_STREAM_NAME must be non-empty and contain no '.', '*', '>' or spaces")
	}
	if c.NATS.Subscribers < 1 || c.NATS.Subscribers > natsMaxSubscribers {
		return fmt.Errorf("NATS_SUBSCRIBERS must be between 1 and %d", natsMaxSubscribers)
	}
	if c.NATS.MaxDeliver < 1 {
		return fmt.Errorf("NATS_MAX_DELIVER must be at least 1")
	}
	if c.NATS.AckWait < time.Second {
		return fmt.Errorf("NATS_ACK_WAIT must be at least 1s")
	}
	if c.NATS.InspectSubject == "" {
		return fmt.Errorf("NATS_INSPECT_SUBJECT is required")
	}
	if c.NATS.InspectTimeout <= 0 {
		return fmt.Errorf("NATS_INSPECT_TIMEOUT must be positive")
	}
	return nil
}

// validateResults validates the task record backend
func (c *Config) validateResults() error {
	if c.Results.Expires <= 0 {
		return fmt.Errorf("RESULTS_EXPIRES must be positive")
	}
	switch c.Results.Backend {
	case ResultsRedis:
		if err := validateURL(c.Results.RedisURL, redisSchemes...); err != nil {
			return fmt.Errorf("REDIS_URL is invalid: %w", err)
		}
	case ResultsBadger:
		if c.Results.BadgerDir == "" {
			return fmt.Errorf("BADGER_DIR is required when RESULTS_BACKEND=%s", ResultsBadger)
		}
	case ResultsMemory:
		// Task state is only visible inside this process.
		if !c.Worker.Embedded {
			return fmt.Errorf("RESULTS_BACKEND=%s requires WORKER_EMBEDDED=true", ResultsMemory)
		}
	default:
		return fmt.Errorf("RESULTS_BACKEND must be one of: %s, %s, %s", ResultsRedis, ResultsBadger, ResultsMemory)
	}
	return nil
}

// validateWorker validates job execution settings
func (c *Config) validateWorker() error {
	if c.Worker.Concurrency < 1 || c.Worker.Concurrency > maxConcurrency {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and %d", maxConcurrency)
	}
	return nil
}

// validateHierarchy validates the namespace naming conventions
func (c *Config) validateHierarchy() error {
	if c.Hierarchy.UserPrefix == "" {
		return fmt.Errorf("USER_PREFIX must not be empty")
	}
	if c.Hierarchy.DemoRoot == "" || strings.Contains(c.Hierarchy.DemoRoot, "/") {
		return fmt.Errorf("DEMO_ROOT must be a single path segment")
	}
	if c.Hierarchy.DemoMarker == "" {
		return fmt.Errorf("DEMO_MARKER must not be empty")
	}
	return nil
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}
