// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

// Package config loads the server configuration with layered sources:
// built-in defaults, an optional YAML file, then environment variables.
package config

import (
	"time"
)

// Config is the full server configuration.
type Config struct {
	Store     StoreConfig     `koanf:"store"`
	Server    ServerConfig    `koanf:"server"`
	Security  SecurityConfig  `koanf:"security"`
	LRS       LRSConfig       `koanf:"lrs"`
	Recommend RecommendConfig `koanf:"recommend"`
	Feed      FeedConfig      `koanf:"feed"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// StoreConfig points at the remote PostgREST-style store and its
// realtime websocket feed.
type StoreConfig struct {
	URL             string        `koanf:"url"`
	APIKey          string        `koanf:"api_key"`
	Timeout         time.Duration `koanf:"timeout"`
	RealtimeEnabled bool          `koanf:"realtime_enabled"`
	FeedLimit       int           `koanf:"feed_limit"`
	MockMode        bool          `koanf:"mock_mode"`
	RatePerSecond   float64       `koanf:"rate_per_second"`
	RateBurst       int           `koanf:"rate_burst"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// SecurityConfig covers token auth for the API.
type SecurityConfig struct {
	JWTSecret      string        `koanf:"jwt_secret"`
	SessionTimeout time.Duration `koanf:"session_timeout"`
}

// LRSConfig covers xAPI statement delivery.
type LRSConfig struct {
	Enabled       bool          `koanf:"enabled"`
	Endpoint      string        `koanf:"endpoint"`
	Username      string        `koanf:"username"`
	Password      string        `koanf:"password"`
	QueuePath     string        `koanf:"queue_path"`
	InMemory      bool          `koanf:"in_memory"`
	SendPerSecond float64       `koanf:"send_per_second"`
	RetryInterval time.Duration `koanf:"retry_interval"`
}

// RecommendConfig covers the external recommendation service.
type RecommendConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Endpoint string        `koanf:"endpoint"`
	APIKey   string        `koanf:"api_key"`
	Timeout  time.Duration `koanf:"timeout"`
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

// FeedConfig covers the optional NATS bridge that republishes cache
// notifications for other services.
type FeedConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`
	Subject string `koanf:"subject"`
}

// LoggingConfig controls zerolog output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Addr returns the host:port the HTTP server binds to.
func (c ServerConfig) Addr() string {
	return joinHostPort(c.Host, c.Port)
}

func defaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			URL:             "",
			APIKey:          "",
			Timeout:         30 * time.Second,
			RealtimeEnabled: true,
			FeedLimit:       200,
			MockMode:        false,
			RatePerSecond:   20,
			RateBurst:       40,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8484,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Security: SecurityConfig{
			JWTSecret:      "",
			SessionTimeout: 24 * time.Hour,
		},
		LRS: LRSConfig{
			Enabled:       false,
			Endpoint:      "",
			Username:      "",
			Password:      "",
			QueuePath:     "/data/lrs-queue",
			InMemory:      false,
			SendPerSecond: 5,
			RetryInterval: 5 * time.Second,
		},
		Recommend: RecommendConfig{
			Enabled:  false,
			Endpoint: "",
			APIKey:   "",
			Timeout:  20 * time.Second,
			CacheTTL: 10 * time.Minute,
		},
		Feed: FeedConfig{
			Enabled: false,
			URL:     "nats://127.0.0.1:4222",
			Subject: "alleye.cache",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}
