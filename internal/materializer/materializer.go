// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

// Package materializer flattens junction rows into denormalized id
// arrays on the owning entity. The store keeps playlist membership as
// playlist_content rows; the cache keeps only Playlist.ContentIDs.
package materializer

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/alleyehq/alleye/internal/cache"
	"github.com/alleyehq/alleye/internal/logging"
	"github.com/alleyehq/alleye/internal/models"
	"github.com/alleyehq/alleye/internal/store"
)

// Materializer resolves playlist membership. Bulk loads carry embedded
// junction rows that are flattened and discarded; realtime junction
// events trigger a targeted re-read of the one affected playlist's rows.
type Materializer struct {
	gateway store.Gateway
	cache   *cache.Store
}

// New creates a materializer over the given gateway and cache.
func New(gw store.Gateway, c *cache.Store) *Materializer {
	return &Materializer{gateway: gw, cache: c}
}

// MaterializeBulk flattens each playlist's embedded junction rows into
// ContentIDs and clears the embedded rows so they cannot survive as a
// second source of truth. Playlists without embedded rows get an empty,
// non-nil ContentIDs.
func MaterializeBulk(playlists []models.Playlist) []models.Playlist {
	out := make([]models.Playlist, len(playlists))
	for i, p := range playlists {
		ids := make([]int64, 0, len(p.Entries))
		for _, entry := range p.Entries {
			ids = append(ids, entry.ContentID)
		}
		p.ContentIDs = ids
		p.Entries = nil
		out[i] = p
	}
	return out
}

// BulkLoadPlaylists decodes raw playlist records, materializes their
// membership and bulk-loads the playlist collection.
func (m *Materializer) BulkLoadPlaylists(records []json.RawMessage) error {
	playlists := make([]models.Playlist, 0, len(records))
	for _, raw := range records {
		var p models.Playlist
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("materializer: decode playlist: %w", err)
		}
		playlists = append(playlists, p)
	}
	m.cache.Playlists.BulkLoad(MaterializeBulk(playlists))
	return nil
}

// ApplyJunctionEvent handles a playlist_content change. The affected
// playlist's membership is re-read from the store and recomputed in
// place; other playlists are untouched. Events for playlists the cache
// does not hold are dropped. Returns whether the cache changed.
func (m *Materializer) ApplyJunctionEvent(ctx context.Context, ev store.ChangeEvent) (bool, error) {
	playlistID, err := junctionPlaylistID(ev)
	if err != nil {
		return false, fmt.Errorf("materializer: %w", err)
	}
	return m.Rematerialize(ctx, playlistID)
}

// Rematerialize re-reads one playlist's junction rows and replaces its
// cached ContentIDs. A no-op when the playlist is not cached.
func (m *Materializer) Rematerialize(ctx context.Context, playlistID int64) (bool, error) {
	key := fmt.Sprintf("%d", playlistID)
	if _, ok := m.cache.Playlists.Get(key); !ok {
		logging.Debug().
			Str("component", "materializer").
			Int64("playlist_id", playlistID).
			Msg("junction event for uncached playlist, dropping")
		return false, nil
	}

	rows, err := m.gateway.Read(ctx, store.TablePlaylistLinks, store.Query{
		Filters: []store.Cond{store.Eq("playlist_id", playlistID)},
	})
	if err != nil {
		return false, fmt.Errorf("materializer: read junction rows for playlist %d: %w", playlistID, err)
	}

	ids := make([]int64, 0, len(rows))
	for _, raw := range rows {
		var entry models.PlaylistEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return false, fmt.Errorf("materializer: decode junction row: %w", err)
		}
		ids = append(ids, entry.ContentID)
	}

	changed := m.cache.Playlists.Mutate(key, func(p *models.Playlist) {
		p.ContentIDs = ids
		p.Entries = nil
	})
	return changed, nil
}

// junctionPlaylistID extracts the owning playlist id from a junction
// change event, preferring the new row and falling back to the old one
// for deletes.
func junctionPlaylistID(ev store.ChangeEvent) (int64, error) {
	for _, raw := range []json.RawMessage{ev.New, ev.Old} {
		if len(raw) == 0 {
			continue
		}
		var entry models.PlaylistEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return 0, fmt.Errorf("decode junction event: %w", err)
		}
		if entry.PlaylistID != 0 {
			return entry.PlaylistID, nil
		}
	}
	return 0, fmt.Errorf("junction event carries no playlist id")
}
