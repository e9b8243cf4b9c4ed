// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

// Package feed publishes applied cache mutations to NATS so external
// consumers (wallboards, audit pipelines) can follow dashboard state
// without their own gateway subscription. The NATS implementation is
// build-tagged; the default build carries a stub that refuses to start.
package feed

import (
	"time"
)

// Config configures the outbound change feed.
type Config struct {
	// URL is the NATS server URL, e.g. nats://127.0.0.1:4222.
	URL string

	// Subject is the subject mutations are published to.
	Subject string

	// MaxReconnects bounds reconnection attempts. Default: 10.
	MaxReconnects int

	// ReconnectWait is the pause between reconnection attempts.
	// Default: 2s.
	ReconnectWait time.Duration
}

func (c *Config) applyDefaults() {
	if c.MaxReconnects == 0 {
		c.MaxReconnects = 10
	}
	if c.ReconnectWait <= 0 {
		c.ReconnectWait = 2 * time.Second
	}
}

// Event is the published payload for one applied cache mutation.
type Event struct {
	Table     string    `json:"table"`
	Op        string    `json:"op"`
	Changed   bool      `json:"changed"`
	Timestamp time.Time `json:"timestamp"`
}
