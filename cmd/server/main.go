// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

// Package main is the AllEye server entry point.
//
// AllEye serves the security-awareness-training dashboard API: per-login
// session caches filled lazily per view, kept fresh by the store's
// change feed, with xAPI statement delivery and AI-backed content
// recommendations on the side.
//
// Components start in this order:
//
//  1. Configuration (koanf: defaults, yaml file, ALLEYE_* environment)
//  2. Store gateway (PostgREST-style backend, or the in-memory mock)
//  3. Session manager, authorizer, recommendation client
//  4. LRS statement queue (if enabled)
//  5. NATS change-feed bridge (if enabled; requires -tags=nats)
//  6. Supervisor tree: websocket hub, session reaper, HTTP server
//
// The server shuts down gracefully on SIGINT and SIGTERM: the HTTP
// server drains in-flight requests, sessions close their realtime
// subscriptions and the LRS queue flushes to disk for the next start.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alleyehq/alleye/internal/api"
	"github.com/alleyehq/alleye/internal/auth"
	"github.com/alleyehq/alleye/internal/authz"
	"github.com/alleyehq/alleye/internal/config"
	"github.com/alleyehq/alleye/internal/feed"
	"github.com/alleyehq/alleye/internal/logging"
	"github.com/alleyehq/alleye/internal/lrs"
	"github.com/alleyehq/alleye/internal/merger"
	"github.com/alleyehq/alleye/internal/recommend"
	"github.com/alleyehq/alleye/internal/session"
	"github.com/alleyehq/alleye/internal/store"
	"github.com/alleyehq/alleye/internal/supervisor"
	"github.com/alleyehq/alleye/internal/supervisor/services"
	ws "github.com/alleyehq/alleye/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Bool("mock_store", cfg.Store.MockMode).
		Bool("realtime", cfg.Store.RealtimeEnabled).
		Str("addr", cfg.Server.Addr()).
		Msg("starting AllEye")

	gw, err := buildGateway(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize store gateway")
	}

	manager := session.NewManager(gw, cfg.Store.FeedLimit)
	defer manager.Close()

	authorizer, err := authz.New()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize authorizer")
	}

	var recommender *recommend.Client
	if cfg.Recommend.Enabled {
		recommender = recommend.NewClient(recommend.Config{
			Endpoint: cfg.Recommend.Endpoint,
			APIKey:   cfg.Recommend.APIKey,
			Timeout:  cfg.Recommend.Timeout,
			CacheTTL: cfg.Recommend.CacheTTL,
		})
		logging.Info().Str("endpoint", cfg.Recommend.Endpoint).Msg("recommendation client enabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	hub := ws.NewHub()
	tree.AddRealtimeService(services.NewHubService(hub))
	tree.AddRealtimeService(services.NewReaperService(manager, cfg.Security.SessionTimeout))

	var queue *lrs.Queue
	if cfg.LRS.Enabled {
		lrsClient, err := lrs.NewClient(lrs.ClientConfig{
			Endpoint: cfg.LRS.Endpoint,
			Username: cfg.LRS.Username,
			Password: cfg.LRS.Password,
		})
		if err != nil {
			logging.Fatal().Err(err).Msg("failed to initialize LRS client")
		}
		queue, err = lrs.OpenQueue(lrs.QueueConfig{
			Path:          cfg.LRS.QueuePath,
			InMemory:      cfg.LRS.InMemory,
			SendPerSecond: cfg.LRS.SendPerSecond,
			RetryInterval: cfg.LRS.RetryInterval,
		}, lrsClient.Send)
		if err != nil {
			logging.Fatal().Err(err).Msg("failed to open LRS queue")
		}
		tree.AddDataService(services.NewQueueService(queue))
		logging.Info().Str("endpoint", cfg.LRS.Endpoint).Msg("LRS statement queue enabled")
	}

	// Fan applied cache mutations out to websocket clients and, when
	// enabled, the NATS feed. The callback runs on each session's
	// applier goroutine and must not block, so feed publishing is
	// decoupled through a buffered channel.
	feedCh := startFeed(ctx, cfg)
	manager.SetNotify(func(n merger.Notification) {
		hub.BroadcastCacheUpdate(n)
		if feedCh != nil {
			select {
			case feedCh <- n:
			default:
			}
		}
	})

	handlers := api.NewHandlers(ctx, manager, authorizer, recommender, hub)
	handlers.SetGateway(gw)
	if queue != nil {
		handlers.SetStatementSink(queue)
	}

	devMode := cfg.Security.JWTSecret == "" && cfg.Store.MockMode
	var jwtManager *auth.JWTManager
	if cfg.Security.JWTSecret != "" {
		jwtManager, err = auth.NewJWTManager(cfg.Security)
		if err != nil {
			logging.Fatal().Err(err).Msg("failed to initialize JWT manager")
		}
	} else if !devMode {
		logging.Fatal().Msg("security.jwt_secret is required outside mock mode")
	} else {
		logging.Warn().Msg("dev mode: requests are trusted by X-User-ID header, never use in production")
	}
	authMW := auth.NewMiddleware(jwtManager, api.LookupProfile(gw), devMode)

	router := api.NewRouter(handlers, authMW, api.RouterConfig{
		CORSOrigins:     cfg.Server.CORSOrigins,
		RateLimitReqs:   cfg.Server.RateLimitReqs,
		RateLimitWindow: cfg.Server.RateLimitWindow,
	})
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPService(server, cfg.Server.ShutdownTimeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor tree error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("service failed to stop within timeout")
	}

	logging.Info().Msg("stopped")
}

// buildGateway selects the store backend: the seeded in-memory mock for
// development, or the hosted backend client, optionally without its
// realtime channel.
func buildGateway(cfg *config.Config) (store.Gateway, error) {
	if cfg.Store.MockMode {
		ms := store.NewMemStore()
		if err := seedDemoData(ms); err != nil {
			return nil, err
		}
		logging.Info().Msg("mock store seeded with demo data")
		return ms, nil
	}

	client, err := store.NewClient(store.ClientConfig{
		BaseURL:        cfg.Store.URL,
		APIKey:         cfg.Store.APIKey,
		Timeout:        cfg.Store.Timeout,
		ReadsPerSecond: cfg.Store.RatePerSecond,
		Burst:          cfg.Store.RateBurst,
	})
	if err != nil {
		return nil, err
	}
	if !cfg.Store.RealtimeEnabled {
		logging.Warn().Msg("realtime disabled: caches refresh on bulk loads only")
		return store.NoRealtime(client), nil
	}
	return client, nil
}

// startFeed opens the NATS bridge and returns its intake channel, or
// nil when the feed is disabled or unavailable in this build.
func startFeed(ctx context.Context, cfg *config.Config) chan<- merger.Notification {
	if !cfg.Feed.Enabled {
		return nil
	}
	pub, err := feed.NewPublisher(feed.Config{
		URL:     cfg.Feed.URL,
		Subject: cfg.Feed.Subject,
	}, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("feed disabled")
		return nil
	}

	ch := make(chan merger.Notification, 256)
	go func() {
		defer func() {
			if err := pub.Close(); err != nil {
				logging.Warn().Err(err).Msg("feed close")
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-ch:
				if err := pub.PublishNotification(n); err != nil {
					logging.Warn().Err(err).Str("table", n.Table).Msg("feed publish failed")
				}
			}
		}
	}()
	logging.Info().Str("subject", cfg.Feed.Subject).Msg("NATS change feed enabled")
	return ch
}
