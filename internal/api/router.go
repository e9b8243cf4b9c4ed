// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alleyehq/alleye/internal/auth"
	"github.com/alleyehq/alleye/internal/middleware"
)

// RouterConfig carries the HTTP-level knobs from the server config.
type RouterConfig struct {
	CORSOrigins     []string
	RateLimitReqs   int
	RateLimitWindow time.Duration
}

// NewRouter assembles the chi route tree. All data endpoints sit behind
// authentication; health and metrics stay open for probes and scrapes.
func NewRouter(h *Handlers, authMW *auth.Middleware, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-User-ID"},
		AllowCredentials: false,
		MaxAge:           86400,
	}))

	r.Get("/api/v1/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimitReqs > 0 {
			r.Use(httprate.Limit(cfg.RateLimitReqs, cfg.RateLimitWindow,
				httprate.WithKeyFuncs(httprate.KeyByIP)))
		}
		r.Use(middleware.PrometheusMetrics)
		r.Use(authMW.Authenticate)

		r.Get("/views", h.ListViews)
		r.Get("/views/{view}", h.GetView)
		r.Get("/stats/dashboard", h.DashboardStats)

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/completion-rate", h.AnalyticsCompletionRate)
			r.Get("/score-distribution", h.AnalyticsScoreDistribution)
			r.Get("/time-series", h.AnalyticsTimeSeries)
		})

		r.Get("/recommendations", h.Recommendations)
		r.Post("/progress", h.ReportProgress)

		r.Delete("/session", h.Logout)
		r.Post("/session/recover", h.RecoverSession)
	})

	// Websocket upgrade sits outside the rate limiter; it is a single
	// long-lived request per client.
	r.Group(func(r chi.Router) {
		r.Use(authMW.Authenticate)
		r.Get("/ws", h.WebSocket)
	})

	return r
}
