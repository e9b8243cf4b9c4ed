// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for values that would make the
// server misbehave at runtime. It returns the first problem found.
func (c *Config) Validate() error {
	if !c.Store.MockMode {
		if err := validateURL("store.url", c.Store.URL); err != nil {
			return err
		}
		if c.Store.APIKey == "" {
			return fmt.Errorf("config: store.api_key is required unless store.mock_mode is set")
		}
	}
	if c.Store.FeedLimit <= 0 {
		return fmt.Errorf("config: store.feed_limit must be positive, got %d", c.Store.FeedLimit)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Security.JWTSecret != "" && len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("config: security.jwt_secret must be at least 32 bytes")
	}
	if c.LRS.Enabled {
		if err := validateURL("lrs.endpoint", c.LRS.Endpoint); err != nil {
			return err
		}
		if !c.LRS.InMemory && c.LRS.QueuePath == "" {
			return fmt.Errorf("config: lrs.queue_path is required unless lrs.in_memory is set")
		}
	}
	if c.Recommend.Enabled {
		if err := validateURL("recommend.endpoint", c.Recommend.Endpoint); err != nil {
			return err
		}
	}
	if c.Feed.Enabled && c.Feed.Subject == "" {
		return fmt.Errorf("config: feed.subject is required when feed.enabled is set")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("config: logging.level %q is not a zerolog level", c.Logging.Level)
	}
	return nil
}

func validateURL(field, raw string) error {
	if raw == "" {
		return fmt.Errorf("config: %s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("config: %s: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("config: %s must be http or https, got %q", field, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("config: %s has no host", field)
	}
	return nil
}
