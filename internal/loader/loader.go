// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

// Package loader resolves view data dependencies lazily. Each view names
// the entity types it renders; visiting a view bulk-loads only the types
// the session has not loaded yet, so repeated visits cost nothing.
package loader

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/alleyehq/alleye/internal/cache"
	"github.com/alleyehq/alleye/internal/logging"
	"github.com/alleyehq/alleye/internal/materializer"
	"github.com/alleyehq/alleye/internal/metrics"
	"github.com/alleyehq/alleye/internal/models"
	"github.com/alleyehq/alleye/internal/store"
)

// View names. Admin views cover management surfaces; Home, Library,
// Activity and Team are the member-facing dashboards.
const (
	ViewDashboard     = "Dashboard"
	ViewContent       = "Content"
	ViewPlaylists     = "Playlists"
	ViewThreatIntel   = "ThreatIntel"
	ViewOrganizations = "Organizations"
	ViewUsers         = "Users"
	ViewQA            = "QA"
	ViewAnalytics     = "Analytics"
	ViewHome          = "Home"
	ViewLibrary       = "Library"
	ViewActivity      = "Activity"
	ViewTeam          = "Team"
)

// viewDeps maps each view to the entity types it renders. Dashboard
// depends on every count-bearing type so its headline numbers always
// equal live collection lengths.
var viewDeps = map[string][]string{
	ViewDashboard: {
		store.TableProfiles, store.TableContent, store.TablePlaylists,
		store.TableNews, store.TableQandA, store.TableAnalytics,
	},
	ViewContent:       {store.TableContent},
	ViewPlaylists:     {store.TablePlaylists, store.TableContent},
	ViewThreatIntel:   {store.TableNews, store.TableProfiles},
	ViewOrganizations: {store.TableOrganizations, store.TableProfiles},
	ViewUsers:         {store.TableProfiles, store.TableOrganizations},
	ViewQA:            {store.TableQandA, store.TableProfiles},
	ViewAnalytics: {
		store.TableAnalytics, store.TableContent, store.TableProfiles,
		store.TableCyberTraining,
	},
	ViewHome: {
		store.TableContent, store.TablePlaylists, store.TableAssignments,
		store.TableNews,
	},
	ViewLibrary:  {store.TableContent, store.TablePlaylists},
	ViewActivity: {store.TableAnalytics},
	ViewTeam:     {store.TableProfiles},
}

// ErrUnknownView is returned for a view name outside the closed set.
var ErrUnknownView = fmt.Errorf("loader: unknown view")

// LoadError aggregates per-type bulk-load failures. Types that loaded
// successfully stay loaded; the failed ones remain unloaded for retry.
type LoadError struct {
	Failed map[string]error
}

func (e *LoadError) Error() string {
	tables := make([]string, 0, len(e.Failed))
	for t := range e.Failed {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return "loader: bulk load failed for " + strings.Join(tables, ", ")
}

// Config scopes the loader to a session.
type Config struct {
	// OrgID restricts content and playlist reads to rows visible to the
	// organization. Empty loads everything, which is the admin view.
	OrgID string

	// FeedLimit caps feed-style bulk reads (news, analytics). 0 means
	// no limit.
	FeedLimit int
}

// Loader issues bulk loads for view dependencies. Safe for concurrent
// use; concurrent callers needing the same type share one in-flight
// read.
type Loader struct {
	gw    store.Gateway
	cache *cache.Store
	mat   *materializer.Materializer
	cfg   Config
	sf    singleflight.Group
}

// New creates a loader over the session's gateway and cache.
func New(gw store.Gateway, c *cache.Store, mat *materializer.Materializer, cfg Config) *Loader {
	return &Loader{gw: gw, cache: c, mat: mat, cfg: cfg}
}

// Deps returns the entity types a view renders.
func Deps(view string) ([]string, error) {
	deps, ok := viewDeps[view]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownView, view)
	}
	return deps, nil
}

// EnsureLoaded loads every not-yet-loaded dependency of the view in
// parallel. Types that load are marked loaded even when siblings fail;
// failures come back aggregated in a *LoadError. A view whose types are
// all loaded returns immediately with no reads.
func (l *Loader) EnsureLoaded(ctx context.Context, view string) error {
	deps, err := Deps(view)
	if err != nil {
		return err
	}

	var pending []string
	for _, table := range deps {
		if !l.cache.Loaded(table) {
			pending = append(pending, table)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	start := time.Now()
	errs := make([]error, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	for i, table := range pending {
		i, table := i, table
		g.Go(func() error {
			errs[i] = l.loadTable(gctx, table)
			// Failures stay in errs; returning them would cancel
			// sibling loads and partial success is allowed.
			return nil
		})
	}
	g.Wait()

	failed := make(map[string]error)
	for i, table := range pending {
		if errs[i] != nil {
			failed[table] = errs[i]
		}
	}
	if len(failed) > 0 {
		return &LoadError{Failed: failed}
	}

	logging.Debug().
		Str("component", "loader").
		Str("view", view).
		Int("types", len(pending)).
		Dur("elapsed", time.Since(start)).
		Msg("view dependencies loaded")
	return nil
}

// Invalidate marks types unloaded so the next view visit re-reads them.
// Used after a change-feed gap.
func (l *Loader) Invalidate(tables ...string) {
	for _, table := range tables {
		l.cache.Reset(table)
	}
}

// loadTable bulk-loads one entity type. Concurrent callers for the same
// table share one read through singleflight; the winner's bulk load
// marks the type loaded, so followers see Loaded and skip.
func (l *Loader) loadTable(ctx context.Context, table string) error {
	_, err, _ := l.sf.Do(table, func() (any, error) {
		if l.cache.Loaded(table) {
			return nil, nil
		}
		return nil, l.bulkLoad(ctx, table)
	})
	if err != nil {
		return fmt.Errorf("loader: load %s: %w", table, err)
	}
	return nil
}

func (l *Loader) bulkLoad(ctx context.Context, table string) error {
	start := time.Now()
	records, err := l.gw.Read(ctx, table, l.queryFor(table))
	if err != nil {
		return err
	}
	if table == store.TablePlaylists {
		err = l.loadPlaylists(ctx, records)
	} else {
		err = l.cache.BulkLoadRaw(table, records)
	}
	if err == nil {
		metrics.TableLoadDuration.WithLabelValues(table).Observe(time.Since(start).Seconds())
	}
	return err
}

// loadPlaylists materializes membership before caching. Records may
// carry embedded junction rows; when the gateway cannot embed, the
// junction table is read separately and grouped by owner.
func (l *Loader) loadPlaylists(ctx context.Context, records []json.RawMessage) error {
	if err := l.mat.BulkLoadPlaylists(records); err != nil {
		return err
	}

	// Detect the no-embed case: every cached playlist came back empty.
	// Reading the junction table once fills them all in.
	empty := true
	for _, p := range l.cache.Playlists.Snapshot() {
		if len(p.ContentIDs) > 0 {
			empty = false
			break
		}
	}
	if !empty || l.cache.Playlists.Len() == 0 {
		return nil
	}
	return l.materializeFromJunctionTable(ctx)
}

func (l *Loader) materializeFromJunctionTable(ctx context.Context) error {
	rows, err := l.gw.Read(ctx, store.TablePlaylistLinks, store.Query{})
	if err != nil {
		return err
	}
	byPlaylist := make(map[int64][]int64)
	for _, raw := range rows {
		var entry models.PlaylistEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return fmt.Errorf("decode junction row: %w", err)
		}
		byPlaylist[entry.PlaylistID] = append(byPlaylist[entry.PlaylistID], entry.ContentID)
	}
	for id, contentIDs := range byPlaylist {
		l.cache.Playlists.Mutate(fmt.Sprintf("%d", id), func(p *models.Playlist) {
			p.ContentIDs = contentIDs
		})
	}
	return nil
}

// queryFor builds the bulk-read query for a table: newest-first ordering
// for feeds, organization scoping for content and playlists when the
// session is scoped.
func (l *Loader) queryFor(table string) store.Query {
	var q store.Query
	switch table {
	case store.TableNews, store.TableQandA:
		q.OrderBy, q.Descending = "created_at", true
		q.Limit = l.cfg.FeedLimit
	case store.TableAnalytics:
		q.OrderBy, q.Descending = "timestamp", true
		q.Limit = l.cfg.FeedLimit
	case store.TableCyberTraining:
		q.OrderBy, q.Descending = "completed_at", true
		q.Limit = l.cfg.FeedLimit
	case store.TableContent, store.TablePlaylists:
		q.OrderBy, q.Descending = "created_at", true
		if l.cfg.OrgID != "" {
			q.Filters = []store.Cond{store.VisibleToOrgCond(l.cfg.OrgID)}
		}
	}
	return q
}
