// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/latentspace/internal/logging"
)

// JobIntrospector asks every live worker for the tasks it holds.
type JobIntrospector interface {
	Inspect(ctx context.Context) ([]WorkerSnapshot, error)
}

// NATSIntrospector broadcasts an inspect request on a core NATS subject and
// gathers every reply that arrives within the timeout.
type NATSIntrospector struct {
	nc      *natsgo.Conn
	subject string
	timeout time.Duration
}

// NewNATSIntrospector returns an introspector over nc.
func NewNATSIntrospector(nc *natsgo.Conn, cfg InspectConfig) *NATSIntrospector {
	if cfg.Subject == "" {
		cfg.Subject = DefaultInspectSubject
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultInspectTimeout
	}
	return &NATSIntrospector{nc: nc, subject: cfg.Subject, timeout: cfg.Timeout}
}

// Inspect returns the snapshots of the workers that answered. No workers is
// not an error.
func (n *NATSIntrospector) Inspect(ctx context.Context) ([]WorkerSnapshot, error) {
	inbox := n.nc.NewRespInbox()
	sub, err := n.nc.SubscribeSync(inbox)
	if err != nil {
		return nil, fmt.Errorf("subscribe inspect inbox: %w", err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	if err := n.nc.PublishRequest(n.subject, inbox, nil); err != nil {
		return nil, fmt.Errorf("publish inspect request: %w", err)
	}
	if err := n.nc.Flush(); err != nil {
		return nil, fmt.Errorf("flush inspect request: %w", err)
	}

	gatherCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	snapshots := []WorkerSnapshot{}
	for {
		msg, err := sub.NextMsgWithContext(gatherCtx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return snapshots, nil
			}
			return nil, fmt.Errorf("gather inspect replies: %w", err)
		}

		var snap WorkerSnapshot
		if err := json.Unmarshal(msg.Data, &snap); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Ignoring malformed inspect reply")
			continue
		}
		snapshots = append(snapshots, snap)
	}
}

// ServeInspect answers inspect requests on subject with snapshot() until ctx
// is canceled.
func ServeInspect(ctx context.Context, nc *natsgo.Conn, subject string, snapshot func() WorkerSnapshot) error {
	if subject == "" {
		subject = DefaultInspectSubject
	}
	sub, err := nc.Subscribe(subject, func(m *natsgo.Msg) {
		data, err := json.Marshal(snapshot())
		if err != nil {
			logging.Error().Err(err).Msg("Failed to encode worker snapshot")
			return
		}
		if err := m.Respond(data); err != nil {
			logging.Warn().Err(err).Msg("Failed to answer inspect request")
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	if err := nc.Flush(); err != nil {
		return fmt.Errorf("flush inspect subscription: %w", err)
	}

	<-ctx.Done()
	return ctx.Err()
}
