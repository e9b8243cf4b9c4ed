// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

package materializer

import (
	"context"
	"reflect"
	"testing"

	"github.com/goccy/go-json"

	"github.com/alleyehq/alleye/internal/cache"
	"github.com/alleyehq/alleye/internal/models"
	"github.com/alleyehq/alleye/internal/store"
)

func seedJunction(t *testing.T, ms *store.MemStore, pairs ...[2]int64) {
	t.Helper()
	rows := make([]any, 0, len(pairs))
	for _, pair := range pairs {
		rows = append(rows, models.PlaylistEntry{PlaylistID: pair[0], ContentID: pair[1]})
	}
	if err := ms.Seed(store.TablePlaylistLinks, rows...); err != nil {
		t.Fatalf("seed junction: %v", err)
	}
}

func TestMaterializeBulk(t *testing.T) {
	playlists := MaterializeBulk([]models.Playlist{
		{ID: 1, Entries: []models.PlaylistEntry{
			{PlaylistID: 1, ContentID: 10},
			{PlaylistID: 1, ContentID: 20},
		}},
		{ID: 2},
	})

	if !reflect.DeepEqual(playlists[0].ContentIDs, []int64{10, 20}) {
		t.Errorf("playlist 1 content ids = %v", playlists[0].ContentIDs)
	}
	if playlists[0].Entries != nil {
		t.Error("embedded junction rows must be discarded after materialization")
	}
	if playlists[1].ContentIDs == nil || len(playlists[1].ContentIDs) != 0 {
		t.Errorf("playlist without entries should get empty set, got %v", playlists[1].ContentIDs)
	}
}

func TestBulkLoadPlaylists(t *testing.T) {
	c := cache.NewStore()
	m := New(store.NewMemStore(), c)

	records := []json.RawMessage{
		[]byte(`{"id": 1, "name": "Onboarding", "playlist_content": [{"playlist_id": 1, "content_id": 5}]}`),
	}
	if err := m.BulkLoadPlaylists(records); err != nil {
		t.Fatalf("bulk load: %v", err)
	}

	p, ok := c.Playlists.Get("1")
	if !ok {
		t.Fatal("playlist not cached")
	}
	if !reflect.DeepEqual(p.ContentIDs, []int64{5}) {
		t.Errorf("content ids = %v, want [5]", p.ContentIDs)
	}
	if p.Entries != nil {
		t.Error("entries should be cleared before caching")
	}
}

func TestJunctionDeleteRematerializesOwnerOnly(t *testing.T) {
	ms := store.NewMemStore()
	seedJunction(t, ms, [2]int64{1, 1}, [2]int64{1, 3}, [2]int64{2, 7})

	c := cache.NewStore()
	c.Playlists.BulkLoad([]models.Playlist{
		{ID: 1, ContentIDs: []int64{1, 2, 3}},
		{ID: 2, ContentIDs: []int64{7}},
	})
	m := New(ms, c)

	// Content id 2 was already removed from the store's junction table;
	// the delete event triggers the targeted recompute.
	changed, err := m.ApplyJunctionEvent(context.Background(), store.ChangeEvent{
		Op:    store.ChangeDelete,
		Table: store.TablePlaylistLinks,
		Old:   []byte(`{"playlist_id": 1, "content_id": 2}`),
	})
	if err != nil {
		t.Fatalf("apply junction event: %v", err)
	}
	if !changed {
		t.Fatal("expected cache change")
	}

	p1, _ := c.Playlists.Get("1")
	if !reflect.DeepEqual(p1.ContentIDs, []int64{1, 3}) {
		t.Errorf("playlist 1 content ids = %v, want [1 3]", p1.ContentIDs)
	}
	p2, _ := c.Playlists.Get("2")
	if !reflect.DeepEqual(p2.ContentIDs, []int64{7}) {
		t.Errorf("playlist 2 must be untouched, got %v", p2.ContentIDs)
	}
}

func TestJunctionEventForUncachedPlaylistDropped(t *testing.T) {
	ms := store.NewMemStore()
	seedJunction(t, ms, [2]int64{9, 1})

	c := cache.NewStore()
	c.Playlists.BulkLoad([]models.Playlist{{ID: 1}})
	m := New(ms, c)

	changed, err := m.ApplyJunctionEvent(context.Background(), store.ChangeEvent{
		Op:    store.ChangeInsert,
		Table: store.TablePlaylistLinks,
		New:   []byte(`{"playlist_id": 9, "content_id": 1}`),
	})
	if err != nil {
		t.Fatalf("apply junction event: %v", err)
	}
	if changed {
		t.Error("event for uncached playlist must be dropped")
	}
}

func TestJunctionEventSequenceConverges(t *testing.T) {
	ms := store.NewMemStore()
	c := cache.NewStore()
	c.Playlists.BulkLoad([]models.Playlist{{ID: 1}})
	m := New(ms, c)

	// Drive the simulated junction table through a sequence of writes,
	// replaying each change through the materializer.
	ctx := context.Background()
	steps := []struct {
		op  store.WriteOp
		row models.PlaylistEntry
	}{
		{store.WriteInsert, models.PlaylistEntry{PlaylistID: 1, ContentID: 10}},
		{store.WriteInsert, models.PlaylistEntry{PlaylistID: 1, ContentID: 20}},
		{store.WriteInsert, models.PlaylistEntry{PlaylistID: 1, ContentID: 30}},
	}
	for _, step := range steps {
		if _, err := ms.Write(ctx, store.TablePlaylistLinks, step.op, step.row); err != nil {
			t.Fatalf("store write: %v", err)
		}
		if _, err := m.Rematerialize(ctx, 1); err != nil {
			t.Fatalf("rematerialize: %v", err)
		}
	}

	p, _ := c.Playlists.Get("1")
	if !reflect.DeepEqual(p.ContentIDs, []int64{10, 20, 30}) {
		t.Errorf("content ids = %v, want [10 20 30]", p.ContentIDs)
	}
}

func TestJunctionEventMissingPlaylistID(t *testing.T) {
	m := New(store.NewMemStore(), cache.NewStore())
	_, err := m.ApplyJunctionEvent(context.Background(), store.ChangeEvent{
		Op:    store.ChangeInsert,
		Table: store.TablePlaylistLinks,
		New:   []byte(`{"content_id": 1}`),
	})
	if err == nil {
		t.Error("expected error for junction event without playlist id")
	}
}
