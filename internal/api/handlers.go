// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

// Package api serves the dashboard HTTP API. Every data endpoint reads
// from the caller's session cache; the cache is filled lazily on the
// first visit to a view and kept fresh by the realtime merger.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	gorillaws "github.com/gorilla/websocket"

	"github.com/alleyehq/alleye/internal/auth"
	"github.com/alleyehq/alleye/internal/authz"
	"github.com/alleyehq/alleye/internal/derive"
	"github.com/alleyehq/alleye/internal/loader"
	"github.com/alleyehq/alleye/internal/logging"
	"github.com/alleyehq/alleye/internal/lrs"
	"github.com/alleyehq/alleye/internal/merger"
	"github.com/alleyehq/alleye/internal/metrics"
	"github.com/alleyehq/alleye/internal/models"
	"github.com/alleyehq/alleye/internal/recommend"
	"github.com/alleyehq/alleye/internal/session"
	"github.com/alleyehq/alleye/internal/store"
	"github.com/alleyehq/alleye/internal/websocket"
)

// Handlers carries the dependencies of every endpoint.
type Handlers struct {
	// baseCtx outlives individual requests. Sessions started from a
	// request must not die with that request, so their realtime
	// subscriptions run under this context.
	baseCtx context.Context

	manager     *session.Manager
	authorizer  *authz.Authorizer
	recommender *recommend.Client
	hub         *websocket.Hub
	gw          store.Gateway
	sink        StatementSink
	upgrader    gorillaws.Upgrader
}

// StatementSink accepts fire-and-forget xAPI statements. Satisfied by
// *lrs.Queue.
type StatementSink interface {
	Submit(st lrs.Statement) error
}

// NewHandlers wires the endpoint dependencies. recommender and hub may
// be nil when those integrations are disabled.
func NewHandlers(baseCtx context.Context, manager *session.Manager, authorizer *authz.Authorizer, recommender *recommend.Client, hub *websocket.Hub) *Handlers {
	return &Handlers{
		baseCtx:     baseCtx,
		manager:     manager,
		authorizer:  authorizer,
		recommender: recommender,
		hub:         hub,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The API already authenticates the upgrade request; the
			// dashboard is served from configurable origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// SetGateway enables the progress write path. Without a gateway the
// progress endpoint answers 503.
func (h *Handlers) SetGateway(gw store.Gateway) { h.gw = gw }

// SetStatementSink wires the LRS queue. Optional; without a sink
// progress events update the store but emit no statements.
func (h *Handlers) SetStatementSink(sink StatementSink) { h.sink = sink }

// sessionFor returns the caller's live session, opening one on the
// first authenticated request after login.
func (h *Handlers) sessionFor(r *http.Request) (*session.Session, error) {
	profile, ok := auth.ProfileFromContext(r.Context())
	if !ok {
		return nil, errors.New("no authenticated profile")
	}
	if s, ok := h.manager.GetByUser(profile.ID); ok {
		s.Touch()
		return s, nil
	}
	s, err := h.manager.Open(h.baseCtx, profile)
	if err != nil {
		return nil, err
	}
	metrics.SessionsActive.Set(float64(h.manager.Len()))
	return s, nil
}

// ListViews returns the views the caller's role may open.
func (h *Handlers) ListViews(w http.ResponseWriter, r *http.Request) {
	profile, _ := auth.ProfileFromContext(r.Context())
	views, err := h.authorizer.Views(profile.Role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to resolve views")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"views": views})
}

// viewResponse is the payload of GET /views/{view}. Tables holds one
// snapshot per entity type the view renders; Failed lists types whose
// load failed this visit, keyed by table with the error text.
type viewResponse struct {
	View   string                 `json:"view"`
	Tables map[string]interface{} `json:"tables"`
	Failed map[string]string      `json:"failed,omitempty"`
}

// GetView loads a view's entity types into the session cache and
// returns their snapshots. Types that fail to load are reported in the
// response; successfully loaded types are served regardless.
func (h *Handlers) GetView(w http.ResponseWriter, r *http.Request) {
	view := chi.URLParam(r, "view")
	profile, _ := auth.ProfileFromContext(r.Context())

	allowed, err := h.authorizer.CanAccessView(profile.Role, view)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "role may not open this view")
		return
	}

	deps, err := loader.Deps(view)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown view")
		return
	}
	sess, err := h.sessionFor(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to open session")
		return
	}

	start := time.Now()
	loadErr := sess.EnsureView(r.Context(), view)

	resp := viewResponse{View: view, Tables: make(map[string]interface{}, len(deps))}
	status := "ok"
	if loadErr != nil {
		var le *loader.LoadError
		if !errors.As(loadErr, &le) {
			metrics.ViewLoadDuration.WithLabelValues(view, "error").Observe(time.Since(start).Seconds())
			writeError(w, http.StatusBadGateway, "view load failed")
			return
		}
		status = "partial"
		resp.Failed = make(map[string]string, len(le.Failed))
		for table, err := range le.Failed {
			resp.Failed[table] = err.Error()
		}
	}
	metrics.ViewLoadDuration.WithLabelValues(view, status).Observe(time.Since(start).Seconds())

	for _, table := range deps {
		if _, failed := resp.Failed[table]; failed {
			continue
		}
		resp.Tables[table] = snapshotTable(sess, table)
	}
	writeJSON(w, http.StatusOK, resp)
}

func snapshotTable(sess *session.Session, table string) interface{} {
	c := sess.Cache
	switch table {
	case store.TableProfiles:
		return c.Profiles.Snapshot()
	case store.TableOrganizations:
		return c.Organizations.Snapshot()
	case store.TableContent:
		return c.Content.Snapshot()
	case store.TablePlaylists:
		return c.Playlists.Snapshot()
	case store.TableAssignments:
		return c.Assignments.Snapshot()
	case store.TableNews:
		return c.News.Snapshot()
	case store.TableQandA:
		return c.QandA.Snapshot()
	case store.TableAnalytics:
		return c.Analytics.Snapshot()
	case store.TableCyberTraining:
		return c.CyberTraining.Snapshot()
	}
	return nil
}

// DashboardStats returns the headline numbers for the dashboard view.
func (h *Handlers) DashboardStats(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessionFor(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to open session")
		return
	}
	if err := sess.EnsureView(r.Context(), loader.ViewDashboard); err != nil {
		var le *loader.LoadError
		if !errors.As(err, &le) {
			writeError(w, http.StatusBadGateway, "stats load failed")
			return
		}
		// Partial loads still produce stats for the loaded types.
	}
	writeJSON(w, http.StatusOK, derive.Stats(sess.Cache))
}

func (h *Handlers) analyticsSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := h.sessionFor(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to open session")
		return nil, false
	}
	if err := sess.EnsureView(r.Context(), loader.ViewAnalytics); err != nil {
		var le *loader.LoadError
		if !errors.As(err, &le) {
			writeError(w, http.StatusBadGateway, "analytics load failed")
			return nil, false
		}
	}
	return sess, true
}

// AnalyticsCompletionRate returns the share of cached profiles that
// completed the given content item.
func (h *Handlers) AnalyticsCompletionRate(w http.ResponseWriter, r *http.Request) {
	contentID, err := strconv.ParseInt(r.URL.Query().Get("content_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "content_id must be an integer")
		return
	}
	sess, ok := h.analyticsSession(w, r)
	if !ok {
		return
	}
	rate := derive.CompletionRate(sess.Cache.Profiles.Snapshot(), contentID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"content_id":      contentID,
		"completion_rate": rate,
	})
}

var defaultScoreBoundaries = []float64{25, 50, 75, 90}

// AnalyticsScoreDistribution buckets quiz scores from the analytics
// feed. Boundaries default to 25,50,75,90 and can be overridden with a
// comma-separated boundaries parameter.
func (h *Handlers) AnalyticsScoreDistribution(w http.ResponseWriter, r *http.Request) {
	boundaries := defaultScoreBoundaries
	if raw := r.URL.Query().Get("boundaries"); raw != "" {
		boundaries = nil
		for _, part := range strings.Split(raw, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "boundaries must be numbers")
				return
			}
			boundaries = append(boundaries, v)
		}
	}
	sess, ok := h.analyticsSession(w, r)
	if !ok {
		return
	}
	var scores []float64
	for _, rec := range sess.Cache.Analytics.Snapshot() {
		if rec.Details.Score != nil {
			scores = append(scores, *rec.Details.Score)
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"buckets": derive.ScoreDistribution(scores, boundaries),
	})
}

// AnalyticsTimeSeries returns activity counts bucketed by day, week or
// month.
func (h *Handlers) AnalyticsTimeSeries(w http.ResponseWriter, r *http.Request) {
	var by derive.BucketBy
	switch r.URL.Query().Get("bucket") {
	case "", "day":
		by = derive.ByDay
	case "week":
		by = derive.ByWeek
	case "month":
		by = derive.ByMonth
	default:
		writeError(w, http.StatusBadRequest, "bucket must be day, week or month")
		return
	}
	sess, ok := h.analyticsSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"points": derive.TimeSeries(sess.Cache.Analytics.Snapshot(), by),
	})
}

// Recommendations returns personalized next content for the caller.
// Returns an empty list when the recommendation service is disabled or
// unavailable.
func (h *Handlers) Recommendations(w http.ResponseWriter, r *http.Request) {
	profile, _ := auth.ProfileFromContext(r.Context())
	sess, err := h.sessionFor(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to open session")
		return
	}
	if err := sess.EnsureView(r.Context(), loader.ViewLibrary); err != nil {
		var le *loader.LoadError
		if !errors.As(err, &le) {
			writeError(w, http.StatusBadGateway, "catalog load failed")
			return
		}
	}

	var recs []recommend.Recommendation
	if h.recommender != nil {
		recs = h.recommender.Fetch(r.Context(), profile.ID, profile.Progress, sess.Cache.Content.Snapshot())
	}
	if recs == nil {
		recs = []recommend.Recommendation{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"recommendations": recs})
}

// Health reports liveness and the number of open sessions.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"sessions": h.manager.Len(),
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
}

// Logout tears down the caller's session and cache.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	profile, _ := auth.ProfileFromContext(r.Context())
	if s, ok := h.manager.GetByUser(profile.ID); ok {
		h.manager.CloseSession(s.ID)
	}
	metrics.SessionsActive.Set(float64(h.manager.Len()))
	w.WriteHeader(http.StatusNoContent)
}

// RecoverSession invalidates the caller's cache after a client-detected
// feed gap; the next view visit bulk loads fresh data.
func (h *Handlers) RecoverSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessionFor(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to open session")
		return
	}
	sess.Recover()
	w.WriteHeader(http.StatusNoContent)
}

// WebSocket upgrades the connection and registers the client with the
// notification hub.
func (h *Handlers) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "realtime notifications disabled")
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	client := websocket.NewClient(h.hub, conn)
	h.hub.Register <- client
	client.Start()
}

// NotifyHub returns the merger notification callback that forwards
// cache changes to websocket clients. Wire it via merger.SetNotify on
// each session.
func (h *Handlers) NotifyHub() func(merger.Notification) {
	if h.hub == nil {
		return nil
	}
	return h.hub.BroadcastCacheUpdate
}

// LookupProfile reads one profile from the gateway. Used by the auth
// middleware to resolve token claims to a profile.
func LookupProfile(gw store.Gateway) auth.ProfileLookup {
	return func(ctx context.Context, userID string) (models.Profile, error) {
		rows, err := gw.Read(ctx, store.TableProfiles, store.Query{
			Filters: []store.Cond{store.Eq("id", userID)},
			Limit:   1,
		})
		if err != nil {
			return models.Profile{}, err
		}
		if len(rows) == 0 {
			return models.Profile{}, store.ErrNotFound
		}
		var p models.Profile
		if err := json.Unmarshal(rows[0], &p); err != nil {
			return models.Profile{}, err
		}
		return p, nil
	}
}
