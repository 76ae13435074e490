// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package app

import (
	"context"
	"fmt"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/latentspace/internal/config"
	"github.com/tomtom215/latentspace/internal/jobqueue"
	"github.com/tomtom215/latentspace/internal/logging"
)

// Queue is the job transport of one process.
type Queue struct {
	// URL is the NATS URL publishers and subscribers connect to.
	URL    string
	Conn   *natsgo.Conn
	Stream *jobqueue.StreamInitializer

	server *jobqueue.EmbeddedServer
}

// OpenQueue starts the embedded NATS server when configured, connects to
// NATS and makes sure the job stream exists. name identifies the
// connection in NATS monitoring.
func OpenQueue(ctx context.Context, cfg *config.Config, name string) (*Queue, error) {
	q := &Queue{URL: cfg.NATS.URL}

	if cfg.NATS.Embedded {
		srvCfg := cfg.EmbeddedServer()
		srv, err := jobqueue.NewEmbeddedServer(&srvCfg)
		if err != nil {
			return nil, err
		}
		q.server = srv
		q.URL = srv.ClientURL()
		logging.Info().Str("url", q.URL).Msg("Embedded NATS server started")
	} else {
		logging.Info().Str("url", q.URL).Msg("Using external NATS server")
	}

	nc, err := jobqueue.Connect(q.URL, name)
	if err != nil {
		q.Close(ctx)
		return nil, err
	}
	q.Conn = nc

	js, err := jetstream.New(nc)
	if err != nil {
		q.Close(ctx)
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}
	streamCfg := cfg.Stream()
	si, err := jobqueue.NewStreamInitializer(js, &streamCfg)
	if err != nil {
		q.Close(ctx)
		return nil, err
	}
	if _, err := si.EnsureStream(ctx); err != nil {
		q.Close(ctx)
		return nil, err
	}
	q.Stream = si

	logging.Info().Str("stream", streamCfg.Name).Msg("Job stream ready")
	return q, nil
}

// Close drains the connection and stops the embedded server.
func (q *Queue) Close(ctx context.Context) {
	if q.Conn != nil {
		if err := q.Conn.Drain(); err != nil {
			q.Conn.Close()
		}
	}
	if q.server != nil {
		if err := q.server.Shutdown(ctx); err != nil {
			logging.Warn().Err(err).Msg("Embedded NATS server did not stop cleanly")
		}
	}
}
