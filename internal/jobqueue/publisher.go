// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/latentspace/internal/metrics"
)

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("jobqueue: publisher is closed")

// Publisher sends job envelopes to the stream, optionally behind a circuit
// breaker so a dead broker fails submissions fast.
type Publisher struct {
	pub     message.Publisher
	breaker *gobreaker.CircuitBreaker[any]

	mu     sync.RWMutex
	closed bool
}

// NewPublisher connects a JetStream publisher. With EnableTrackMsgID set,
// the Nats-Msg-Id header makes JetStream store a job published twice under
// the same task id only once.
func NewPublisher(cfg PublisherConfig, logger watermill.LoggerAdapter) (*Publisher, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	conn := reconnect{
		name:     "latentspace-publisher",
		attempts: cfg.MaxReconnects,
		wait:     cfg.ReconnectWait,
		buffer:   cfg.ReconnectBuffer,
	}
	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: conn.options(),
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			// EnsureStream owns the stream definition.
			AutoProvision: false,
			TrackMsgId:    cfg.EnableTrackMsgID,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create job publisher: %w", err)
	}
	return &Publisher{pub: pub}, nil
}

// SetCircuitBreaker guards Publish with cb. Call it before the first
// Publish.
func (p *Publisher) SetCircuitBreaker(cb *gobreaker.CircuitBreaker[any]) {
	p.breaker = cb
}

// Publish sends msg to topic. The message UUID doubles as the Nats-Msg-Id
// unless the caller set one.
func (p *Publisher) Publish(ctx context.Context, topic string, msg *message.Message) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return ErrPublisherClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if msg.Metadata.Get(natsgo.MsgIdHdr) == "" {
		msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	}
	msg.SetContext(ctx)

	send := func() (any, error) { return nil, p.pub.Publish(topic, msg) }
	var err error
	if p.breaker == nil {
		_, err = send()
	} else {
		_, err = p.breaker.Execute(send)
	}
	metrics.RecordQueuePublish(topic, err)
	return err
}

// Close releases the connection. It is safe to call more than once.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.pub.Close()
}

// WatermillPublisher exposes the publisher to the poison queue middleware.
func (p *Publisher) WatermillPublisher() message.Publisher {
	return p.pub
}
