// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

package feed

import (
	"testing"
	"time"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{URL: "nats://127.0.0.1:4222", Subject: "alleye.cache"}
	cfg.applyDefaults()
	if cfg.MaxReconnects != 10 {
		t.Errorf("MaxReconnects = %d, want 10", cfg.MaxReconnects)
	}
	if cfg.ReconnectWait != 2*time.Second {
		t.Errorf("ReconnectWait = %v, want 2s", cfg.ReconnectWait)
	}
}

func TestConfigDefaultsKeepExplicitValues(t *testing.T) {
	cfg := Config{MaxReconnects: 3, ReconnectWait: time.Second}
	cfg.applyDefaults()
	if cfg.MaxReconnects != 3 || cfg.ReconnectWait != time.Second {
		t.Errorf("explicit values overwritten: %+v", cfg)
	}
}
