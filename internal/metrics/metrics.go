// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

// Package metrics defines the Prometheus collectors exported on /metrics.
// Collectors are registered at init time through promauto so callers only
// need to import the package and record observations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ViewLoadDuration measures lazy view loads end to end, including
	// every table fetched for that view.
	ViewLoadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "alleye_view_load_duration_seconds",
		Help:    "Lazy view load duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"view", "status"})

	// TableLoadDuration measures individual bulk table fetches.
	TableLoadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "alleye_table_load_duration_seconds",
		Help:    "Bulk table load duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"table"})

	// RealtimeEventsApplied counts realtime events that changed the cache.
	RealtimeEventsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alleye_realtime_events_applied_total",
		Help: "Realtime events applied to the cache",
	}, []string{"table", "op"})

	// RealtimeEventsDropped counts realtime events discarded before the
	// cache saw them, labelled by the drop reason.
	RealtimeEventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alleye_realtime_events_dropped_total",
		Help: "Realtime events dropped before application",
	}, []string{"table", "reason"})

	// EnrichmentFailures counts profile lookups that failed during event
	// enrichment and fell back to placeholder names.
	EnrichmentFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alleye_enrichment_failures_total",
		Help: "Failed profile lookups during event enrichment",
	}, []string{"table"})

	// WebsocketClients tracks currently connected dashboard clients.
	WebsocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "alleye_websocket_clients",
		Help: "Connected websocket clients",
	})

	// WebsocketMessagesDropped counts broadcast messages discarded because
	// a client send buffer was full.
	WebsocketMessagesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alleye_websocket_messages_dropped_total",
		Help: "Broadcast messages dropped due to slow clients",
	})

	// LRSQueueDepth tracks statements waiting in the durable xAPI queue.
	LRSQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "alleye_lrs_queue_depth",
		Help: "xAPI statements waiting for delivery",
	})

	// LRSStatementsSent counts statements accepted by the LRS.
	LRSStatementsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alleye_lrs_statements_sent_total",
		Help: "xAPI statements delivered to the LRS",
	})

	// LRSSendFailures counts delivery attempts the LRS rejected.
	LRSSendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alleye_lrs_send_failures_total",
		Help: "Failed xAPI delivery attempts",
	})

	// RecommendationRequests counts recommendation fetches by outcome:
	// cache_hit, served, skipped or error.
	RecommendationRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alleye_recommendation_requests_total",
		Help: "Recommendation fetches by outcome",
	}, []string{"outcome"})

	// SessionsActive tracks open dashboard sessions.
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "alleye_sessions_active",
		Help: "Open dashboard sessions",
	})

	// StoreRequestDuration measures remote store round trips by table.
	StoreRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "alleye_store_request_duration_seconds",
		Help:    "Remote store request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"table", "method"})

	// HTTPRequestDuration measures API handler latency.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "alleye_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "method", "status"})
)
