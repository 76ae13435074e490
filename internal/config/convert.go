// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package config

import (
	"context"
	"fmt"

	"github.com/tomtom215/latentspace/internal/jobqueue"
	"github.com/tomtom215/latentspace/internal/logging"
	"github.com/tomtom215/latentspace/internal/storage"
)

// StorageBackend returns the storage factory configuration.
func (c *Config) StorageBackend() storage.Config {
	return storage.Config{
		Type: c.Storage.Type,
		Retry: storage.RetryPolicy{
			MaxAttempts: c.Storage.RetryAttempts,
			Delay:       c.Storage.RetryDelay,
			Backoff:     c.Storage.RetryBackoff,
			Unit:        c.Storage.RetryUnit,
		},
		Breaker: storage.BreakerConfig{
			FailureThreshold: c.Storage.BreakerThreshold,
			Timeout:          c.Storage.BreakerTimeout,
		},
		WebDAV: storage.WebDAVConfig{
			URL:      c.WebDAV.URL,
			User:     c.WebDAV.User,
			Password: c.WebDAV.Password,
			ShareAPI: c.WebDAV.ShareAPI,
			Timeout:  c.Storage.Timeout,
		},
		S3: storage.S3Config{
			Endpoint:   c.S3.Endpoint,
			Region:     c.S3.Region,
			AccessKey:  c.S3.AccessKey,
			SecretKey:  c.S3.SecretKey,
			Bucket:     c.S3.Bucket,
			UseSSL:     c.S3.UseSSL,
			PresignTTL: c.S3.PresignTTL,
		},
	}
}

// Task record backends.
const (
	ResultsRedis  = "redis"
	ResultsBadger = "badger"
	ResultsMemory = "memory"
)

// OpenResults connects the configured task record backend.
func (c *Config) OpenResults(ctx context.Context) (jobqueue.ResultBackend, error) {
	switch c.Results.Backend {
	case ResultsRedis:
		r, err := jobqueue.NewRedisResults(ctx, c.Results.RedisURL, c.Results.Expires)
		if err != nil {
			return nil, err
		}
		return r, nil
	case ResultsBadger:
		b, err := jobqueue.OpenBadgerResults(c.Results.BadgerDir, c.Results.Expires)
		if err != nil {
			return nil, err
		}
		return b, nil
	case ResultsMemory:
		return jobqueue.NewMemoryResults(c.Results.Expires), nil
	default:
		return nil, fmt.Errorf("unknown results backend %q", c.Results.Backend)
	}
}

// LinkSuffix returns the suffix appended to image share links. Only the
// hierarchical backend serves previews under the share link.
func (c *Config) LinkSuffix() string {
	if c.Storage.Type == storage.TypeWebDAV {
		return c.WebDAV.LinkSuffix
	}
	return ""
}

// EmbeddedServer returns the embedded NATS server configuration.
func (c *Config) EmbeddedServer() jobqueue.ServerConfig {
	return jobqueue.ServerConfig{
		Host:              c.NATS.Host,
		Port:              c.NATS.Port,
		StoreDir:          c.NATS.StoreDir,
		JetStreamMaxMem:   c.NATS.MaxMemory,
		JetStreamMaxStore: c.NATS.MaxStore,
	}
}

// Stream returns the job stream configuration.
func (c *Config) Stream() jobqueue.StreamConfig {
	cfg := jobqueue.DefaultStreamConfig()
	cfg.Name = c.NATS.StreamName
	cfg.MaxAge = c.NATS.MaxAge
	return cfg
}

// Publisher returns the job publisher configuration for url.
func (c *Config) Publisher(url string) jobqueue.PublisherConfig {
	return jobqueue.DefaultPublisherConfig(url)
}

// Subscriber returns the worker subscriber configuration for url.
func (c *Config) Subscriber(url string) jobqueue.SubscriberConfig {
	cfg := jobqueue.DefaultSubscriberConfig(url)
	cfg.StreamName = c.NATS.StreamName
	cfg.DurableName = c.NATS.DurableName
	cfg.QueueGroup = c.NATS.QueueGroup
	cfg.SubscribersCount = c.NATS.Subscribers
	cfg.AckWaitTimeout = c.NATS.AckWait
	cfg.MaxDeliver = c.NATS.MaxDeliver
	cfg.CloseTimeout = c.NATS.CloseTimeout
	return cfg
}

// Router returns the worker router configuration.
func (c *Config) Router() jobqueue.RouterConfig {
	cfg := jobqueue.DefaultRouterConfig()
	cfg.CloseTimeout = c.NATS.CloseTimeout
	cfg.PoisonQueueTopic = c.NATS.PoisonTopic
	return cfg
}

// Inspect returns the worker introspection configuration.
func (c *Config) Inspect() jobqueue.InspectConfig {
	return jobqueue.InspectConfig{
		Subject: c.NATS.InspectSubject,
		Timeout: c.NATS.InspectTimeout,
	}
}

// LoggingSettings returns the logging package configuration.
func (c *Config) LoggingSettings() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Logging.Level
	cfg.Format = c.Logging.Format
	cfg.Caller = c.Logging.Caller
	return cfg
}
