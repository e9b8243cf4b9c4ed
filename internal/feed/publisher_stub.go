// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

//go:build !nats

package feed

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/alleyehq/alleye/internal/merger"
)

// Publisher is a stub; build with -tags=nats for the NATS feed.
type Publisher struct{}

// NewPublisher fails in builds without the nats tag.
func NewPublisher(cfg Config, logger watermill.LoggerAdapter) (*Publisher, error) {
	return nil, fmt.Errorf("feed: not available, build with -tags=nats")
}

// PublishNotification is a stub.
func (p *Publisher) PublishNotification(n merger.Notification) error {
	return fmt.Errorf("feed: not available, build with -tags=nats")
}

// Close is a no-op.
func (p *Publisher) Close() error { return nil }
