// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package jobqueue

import (
	"context"
	"fmt"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/latentspace/internal/logging"
)

// reconnect describes how a connection survives broker restarts.
type reconnect struct {
	name     string
	attempts int // -1 retries forever
	wait     time.Duration
	buffer   int // 0 keeps the nats.go default
}

// options builds the connection options shared by every connection the
// package opens. Connection state changes are logged under the connection
// name.
func (r reconnect) options() []natsgo.Option {
	opts := []natsgo.Option{
		natsgo.Name(r.name),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(r.attempts),
		natsgo.ReconnectWait(r.wait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err == nil {
				return
			}
			logging.Warn().Err(err).Str("connection", r.name).Msg("NATS disconnected")
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logging.Info().
				Str("connection", r.name).
				Str("url", nc.ConnectedUrl()).
				Msg("NATS reconnected")
		}),
	}
	if r.buffer > 0 {
		opts = append(opts, natsgo.ReconnectBufSize(r.buffer))
	}
	return opts
}

// Connect opens a core NATS connection for introspection and stream
// management. It keeps reconnecting for as long as the process lives.
func Connect(url, name string) (*natsgo.Conn, error) {
	r := reconnect{name: name, attempts: -1, wait: 2 * time.Second}
	nc, err := natsgo.Connect(url, r.options()...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// EnsureStream creates or updates the job stream over nc.
func EnsureStream(ctx context.Context, nc *natsgo.Conn, cfg StreamConfig) error {
	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}
	si, err := NewStreamInitializer(js, &cfg)
	if err != nil {
		return err
	}
	if _, err := si.EnsureStream(ctx); err != nil {
		return err
	}
	logging.Info().
		Str("stream", cfg.Name).
		Strs("subjects", cfg.Subjects).
		Msg("Job stream ready")
	return nil
}
