// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

//go:build nats

package feed

import (
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"

	"github.com/alleyehq/alleye/internal/merger"
)

// Publisher forwards merger notifications to a NATS subject. Safe for
// concurrent use; Publish after Close is an error.
type Publisher struct {
	cfg       Config
	publisher message.Publisher

	mu     sync.Mutex
	closed bool
}

// NewPublisher connects to NATS and returns a feed publisher.
func NewPublisher(cfg Config, logger watermill.LoggerAdapter) (*Publisher, error) {
	cfg.applyDefaults()
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	opts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("feed disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("feed reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmnats.NewPublisher(wmnats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: opts,
		Marshaler:   &wmnats.NATSMarshaler{},
		JetStream:   wmnats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("feed: create publisher: %w", err)
	}

	return &Publisher{cfg: cfg, publisher: pub}, nil
}

// PublishNotification publishes one applied cache mutation.
func (p *Publisher) PublishNotification(n merger.Notification) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("feed: publisher closed")
	}
	p.mu.Unlock()

	data, err := json.Marshal(Event{
		Table:     n.Table,
		Op:        string(n.Op),
		Changed:   n.Changed,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("feed: marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set("table", n.Table)
	msg.Metadata.Set("op", string(n.Op))
	return p.publisher.Publish(p.cfg.Subject, msg)
}

// Close shuts the publisher down. Idempotent.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
