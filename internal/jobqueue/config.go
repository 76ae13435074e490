// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package jobqueue

import (
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// Defaults shared by the server and the workers.
const (
	DefaultStreamName     = "LSE_JOBS"
	DefaultInspectSubject = "lse.workers.inspect"
	DefaultInspectTimeout = time.Second
	DefaultDurableName    = "lse-workers"
	DefaultQueueGroup     = "workers"

	// DefaultResultExpiry matches the result expiry of the task records.
	DefaultResultExpiry = 600 * time.Second
)

// ServerConfig holds embedded NATS server configuration.
type ServerConfig struct {
	Host              string
	Port              int
	StoreDir          string
	JetStreamMaxMem   int64
	JetStreamMaxStore int64
}

// DefaultServerConfig returns defaults for the embedded NATS server.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:              "127.0.0.1",
		Port:              4222,
		StoreDir:          "/data/nats/jetstream",
		JetStreamMaxMem:   256 << 20, // 256MB
		JetStreamMaxStore: 1 << 30,   // 1GB
	}
}

// PublisherConfig holds publisher configuration.
type PublisherConfig struct {
	URL              string
	MaxReconnects    int
	ReconnectWait    time.Duration
	ReconnectBuffer  int
	EnableTrackMsgID bool // nolint:revive // ID is correct per Go conventions
}

// DefaultPublisherConfig returns defaults for the job publisher.
func DefaultPublisherConfig(url string) PublisherConfig {
	return PublisherConfig{
		URL:              url,
		MaxReconnects:    -1, // Unlimited
		ReconnectWait:    2 * time.Second,
		ReconnectBuffer:  8 * 1024 * 1024, // 8MB
		EnableTrackMsgID: true,
	}
}

// SubscriberConfig holds worker subscriber configuration.
type SubscriberConfig struct {
	URL              string
	DurableName      string
	QueueGroup       string
	SubscribersCount int
	// AckWaitTimeout must exceed the longest job, otherwise JetStream
	// redelivers a job that is still running.
	AckWaitTimeout time.Duration
	MaxDeliver     int
	MaxAckPending  int
	CloseTimeout   time.Duration
	MaxReconnects  int
	ReconnectWait  time.Duration
	// StreamName binds the subscriber to the pre-created stream.
	StreamName string
}

// DefaultSubscriberConfig returns defaults for a worker subscriber.
func DefaultSubscriberConfig(url string) SubscriberConfig {
	return SubscriberConfig{
		URL:              url,
		DurableName:      DefaultDurableName,
		QueueGroup:       DefaultQueueGroup,
		SubscribersCount: 1,
		AckWaitTimeout:   30 * time.Minute,
		MaxDeliver:       3,
		MaxAckPending:    64,
		CloseTimeout:     30 * time.Second,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
		StreamName:       DefaultStreamName,
	}
}

// StreamConfig defines the job stream.
type StreamConfig struct {
	Name            string
	Subjects        []string
	Retention       jetstream.RetentionPolicy
	MaxAge          time.Duration
	MaxBytes        int64
	MaxMsgs         int64
	DuplicateWindow time.Duration
	Replicas        int
	Storage         jetstream.StorageType
}

// DefaultStreamConfig returns the job stream configuration. Jobs are removed
// once a worker acknowledges them.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Name:            DefaultStreamName,
		Subjects:        []string{StreamSubjects},
		Retention:       jetstream.WorkQueuePolicy,
		MaxAge:          24 * time.Hour,
		MaxBytes:        256 * 1024 * 1024, // 256MB
		MaxMsgs:         -1,
		DuplicateWindow: 2 * time.Minute,
		Replicas:        1,
		Storage:         jetstream.FileStorage,
	}
}

// CircuitBreakerConfig holds circuit breaker settings.
type CircuitBreakerConfig struct {
	Name             string
	MaxRequests      uint32        // Allowed in half-open state
	Interval         time.Duration // Reset interval for counts
	Timeout          time.Duration // Time to stay open
	FailureThreshold uint32        // Failures before opening
}

// DefaultCircuitBreakerConfig returns defaults.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
	}
}

// InspectConfig configures the worker introspection scatter-gather.
type InspectConfig struct {
	Subject string
	Timeout time.Duration
}

// DefaultInspectConfig returns defaults.
func DefaultInspectConfig() InspectConfig {
	return InspectConfig{
		Subject: DefaultInspectSubject,
		Timeout: DefaultInspectTimeout,
	}
}
