// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

// Package session ties one authenticated dashboard session to its cache,
// loader and realtime merger. The cache lives exactly as long as the
// session: created at login, torn down at logout.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alleyehq/alleye/internal/cache"
	"github.com/alleyehq/alleye/internal/loader"
	"github.com/alleyehq/alleye/internal/logging"
	"github.com/alleyehq/alleye/internal/materializer"
	"github.com/alleyehq/alleye/internal/merger"
	"github.com/alleyehq/alleye/internal/models"
	"github.com/alleyehq/alleye/internal/store"
)

// memberTables is the change-feed subscription set for non-admin roles:
// the entity types their views render, without the admin-only feeds.
var memberTables = []string{
	store.TableProfiles, store.TableContent, store.TablePlaylists,
	store.TablePlaylistLinks, store.TableAssignments, store.TableNews,
	store.TableQandA,
}

// Config describes a new session.
type Config struct {
	Gateway store.Gateway
	Profile models.Profile

	// FeedLimit caps feed-style bulk loads. 0 means unlimited.
	FeedLimit int
}

// Session owns every per-login component. All fields are wired by New;
// Start opens the realtime half and Close releases it.
type Session struct {
	ID      string
	Profile models.Profile

	Cache        *cache.Store
	Loader       *loader.Loader
	Merger       *merger.Merger
	Materializer *materializer.Materializer

	gw        store.Gateway
	mu        sync.Mutex
	started   bool
	lastSeen  time.Time
	closeOnce sync.Once
}

// New builds an unstarted session. Admin and CISO sessions see every
// table unscoped; Lead and User sessions are scoped to their
// organization and subscribe to the member table set.
func New(cfg Config) *Session {
	c := cache.NewStore()
	mat := materializer.New(cfg.Gateway, c)

	orgID := ""
	tables := merger.DefaultTables
	if !isAdminRole(cfg.Profile.Role) {
		orgID = cfg.Profile.OrganizationID
		tables = memberTables
	}

	return &Session{
		ID:      uuid.NewString(),
		Profile: cfg.Profile,
		Cache:   c,
		Loader: loader.New(cfg.Gateway, c, mat, loader.Config{
			OrgID:     orgID,
			FeedLimit: cfg.FeedLimit,
		}),
		Merger: merger.New(cfg.Gateway, c, mat, merger.Config{
			OrgID:  orgID,
			Tables: tables,
		}),
		Materializer: mat,
		gw:           cfg.Gateway,
		lastSeen:     time.Now(),
	}
}

// Touch records activity. The idle reaper skips recently touched
// sessions.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// LastSeen returns the time of the most recent Touch.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func isAdminRole(r models.Role) bool {
	return r == models.RoleAdmin || r == models.RoleCISO
}

// Start opens the realtime merge. Idempotent per session; a second call
// is an error.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("session %s: already started", s.ID)
	}
	if err := s.Merger.Start(ctx); err != nil {
		return fmt.Errorf("session %s: %w", s.ID, err)
	}
	s.started = true
	logging.Info().
		Str("session_id", s.ID).
		Str("user_id", s.Profile.ID).
		Str("role", string(s.Profile.Role)).
		Msg("session started")
	return nil
}

// EnsureView loads the view's dependencies and re-syncs the incremental
// counters from the loaded collections.
func (s *Session) EnsureView(ctx context.Context, view string) error {
	err := s.Loader.EnsureLoaded(ctx, view)
	s.Merger.SyncCounters()
	return err
}

// Recover handles a change-feed gap: every collection is marked
// unloaded so the next view visit re-bulk-loads instead of trusting a
// cache that may have silently missed events.
func (s *Session) Recover() {
	s.Cache.ResetAll()
	s.Merger.SyncCounters()
	logging.Warn().
		Str("session_id", s.ID).
		Msg("change feed gap, cache invalidated for reload")
}

// Close releases the realtime subscriptions. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.Merger.Close()
		logging.Info().Str("session_id", s.ID).Msg("session closed")
	})
}
