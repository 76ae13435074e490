// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package jobqueue

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
)

// Subscriber consumes jobs from the stream. Every worker process shares one
// durable consumer per topic and one queue group, so a job is delivered to a
// single worker.
type Subscriber struct {
	sub message.Subscriber
}

// jetStreamOptions returns the consumer settings. DeliverAll makes jobs
// queued before the first worker started run as well.
func (c *SubscriberConfig) jetStreamOptions() wmNats.JetStreamConfig {
	js := wmNats.JetStreamConfig{
		AutoProvision: c.StreamName == "",
		DurablePrefix: c.DurableName,
		SubscribeOptions: []natsgo.SubOpt{
			natsgo.DeliverAll(),
			natsgo.AckWait(c.AckWaitTimeout),
			natsgo.MaxDeliver(c.MaxDeliver),
			natsgo.MaxAckPending(c.MaxAckPending),
		},
	}
	if c.StreamName != "" {
		// The stream is created up front and its name is not derivable
		// from the topic.
		js.SubscribeOptions = append(js.SubscribeOptions, natsgo.BindStream(c.StreamName))
	}
	return js
}

// NewSubscriber connects a worker subscriber. A nil logger discards
// watermill's own log output.
func NewSubscriber(cfg *SubscriberConfig, logger watermill.LoggerAdapter) (*Subscriber, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	conn := reconnect{name: "latentspace-worker", attempts: cfg.MaxReconnects, wait: cfg.ReconnectWait}
	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: cfg.SubscribersCount,
		AckWaitTimeout:   cfg.AckWaitTimeout,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      conn.options(),
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        cfg.jetStreamOptions(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create job subscriber: %w", err)
	}
	return &Subscriber{sub: sub}, nil
}

// Subscribe streams the jobs published on topic.
func (s *Subscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return s.sub.Subscribe(ctx, topic)
}

func (s *Subscriber) Close() error {
	return s.sub.Close()
}

// WatermillSubscriber exposes the subscriber to router handlers.
func (s *Subscriber) WatermillSubscriber() message.Subscriber {
	return s.sub
}
