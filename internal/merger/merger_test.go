// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

package merger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/alleyehq/alleye/internal/cache"
	"github.com/alleyehq/alleye/internal/materializer"
	"github.com/alleyehq/alleye/internal/models"
	"github.com/alleyehq/alleye/internal/store"
)

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

// slowProfileGateway delays profile reads until released, one release
// per pending read, so tests can control enrichment completion order.
type slowProfileGateway struct {
	store.Gateway
	mu      sync.Mutex
	gates   []chan struct{}
	waiting chan struct{}
}

func newSlowProfileGateway(inner store.Gateway) *slowProfileGateway {
	return &slowProfileGateway{Gateway: inner, waiting: make(chan struct{}, 16)}
}

func (g *slowProfileGateway) Read(ctx context.Context, table string, q store.Query) ([]json.RawMessage, error) {
	if table == store.TableProfiles {
		gate := make(chan struct{})
		g.mu.Lock()
		g.gates = append(g.gates, gate)
		g.mu.Unlock()
		g.waiting <- struct{}{}
		<-gate
	}
	return g.Gateway.Read(ctx, table, q)
}

func (g *slowProfileGateway) release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.gates) == 0 {
		return
	}
	close(g.gates[0])
	g.gates = g.gates[1:]
}

func startMerger(t *testing.T, gw store.Gateway, c *cache.Store, cfg Config) *Merger {
	t.Helper()
	m := New(gw, c, materializer.New(gw, c), cfg)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start merger: %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

func TestInsertEventGrowsCacheAndCounter(t *testing.T) {
	ms := store.NewMemStore()
	c := cache.NewStore()
	c.Content.BulkLoad([]models.Content{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}, {ID: 5}})

	m := startMerger(t, ms, c, Config{Tables: []string{store.TableContent}})
	m.SyncCounters()

	if _, err := ms.Write(context.Background(), store.TableContent, store.WriteInsert,
		models.Content{ID: 6, Title: "fresh"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	eventually(t, func() bool { return c.Content.Len() == 6 }, "insert never reached the cache")
	eventually(t, func() bool { return m.Count(store.TableContent) == 6 }, "counter never reached 6")
}

func TestDuplicateInsertIsNoOp(t *testing.T) {
	ms := store.NewMemStore()
	c := cache.NewStore()
	c.Content.BulkLoad([]models.Content{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}, {ID: 5}})

	m := startMerger(t, ms, c, Config{Tables: []string{store.TableContent}})
	m.SyncCounters()

	// Race with initial load: the event duplicates a loaded record.
	if _, err := ms.Write(context.Background(), store.TableContent, store.WriteInsert,
		models.Content{ID: 3, Title: "dup"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	// A second, genuinely new record proves the first was processed.
	if _, err := ms.Write(context.Background(), store.TableContent, store.WriteInsert,
		models.Content{ID: 6}); err != nil {
		t.Fatalf("write: %v", err)
	}

	eventually(t, func() bool { return c.Content.Len() == 6 }, "second insert never applied")
	eventually(t, func() bool { return m.Count(store.TableContent) == 6 }, "counter diverged from recount")
	if got, _ := c.Content.Get("3"); got.Title == "dup" {
		t.Error("duplicate insert must not overwrite the loaded record")
	}
}

func TestDeleteEventRemovesAndLateUpdateStaysDead(t *testing.T) {
	ms := store.NewMemStore()
	if err := ms.Seed(store.TableNews, models.NewsItem{ID: 1, Title: "breach"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	c := cache.NewStore()
	c.News.BulkLoad([]models.NewsItem{{ID: 1, Title: "breach"}})

	m := startMerger(t, ms, c, Config{Tables: []string{store.TableNews}})
	m.SyncCounters()

	if _, err := ms.Write(context.Background(), store.TableNews, store.WriteDelete,
		map[string]any{"id": 1}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	eventually(t, func() bool { return c.News.Len() == 0 }, "delete never applied")
	eventually(t, func() bool { return m.Count(store.TableNews) == 0 }, "counter diverged from recount")
}

func TestJunctionEventDelegatesToMaterializer(t *testing.T) {
	ms := store.NewMemStore()
	c := cache.NewStore()
	c.Playlists.BulkLoad([]models.Playlist{{ID: 1, ContentIDs: []int64{}}})

	startMerger(t, ms, c, Config{Tables: []string{store.TablePlaylistLinks}})

	if _, err := ms.Write(context.Background(), store.TablePlaylistLinks, store.WriteInsert,
		models.PlaylistEntry{PlaylistID: 1, ContentID: 42}); err != nil {
		t.Fatalf("write: %v", err)
	}

	eventually(t, func() bool {
		p, ok := c.Playlists.Get("1")
		return ok && len(p.ContentIDs) == 1 && p.ContentIDs[0] == 42
	}, "junction insert never materialized")
}

func TestEnrichmentSequencedPerID(t *testing.T) {
	ms := store.NewMemStore()
	if err := ms.Seed(store.TableProfiles,
		models.Profile{ID: "author-1", Name: "Ada"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	slow := newSlowProfileGateway(ms)

	c := cache.NewStore()
	c.News.BulkLoad([]models.NewsItem{{ID: 5, Title: "v0", AuthorID: "author-1"}})

	startMerger(t, slow, c, Config{Tables: []string{store.TableNews}})

	// Two updates for the same id. The first's enrichment lookup is
	// held open while the second arrives; the second must still be
	// applied last.
	ctx := context.Background()
	if _, err := ms.Write(ctx, store.TableNews, store.WriteUpdate,
		models.NewsItem{ID: 5, Title: "Alice", AuthorID: "author-1"}); err != nil {
		t.Fatalf("update A: %v", err)
	}
	<-slow.waiting // first enrichment in flight

	if _, err := ms.Write(ctx, store.TableNews, store.WriteUpdate,
		models.NewsItem{ID: 5, Title: "Alicia", AuthorID: "author-1"}); err != nil {
		t.Fatalf("update B: %v", err)
	}

	// Release the lookups. Even though B's lookup could have finished
	// first, it was queued behind A.
	slow.release()
	<-slow.waiting
	slow.release()

	eventually(t, func() bool {
		item, ok := c.News.Get("5")
		return ok && item.Title == "Alicia"
	}, "latest committed update did not win")

	item, _ := c.News.Get("5")
	if item.AuthorName != "Ada" {
		t.Errorf("author name = %q, want Ada", item.AuthorName)
	}
}

func TestEnrichmentFailureSubstitutesPlaceholder(t *testing.T) {
	ms := store.NewMemStore()
	// No profile seeded: the lookup finds nothing.
	c := cache.NewStore()
	c.QandA.BulkLoad(nil)

	startMerger(t, ms, c, Config{Tables: []string{store.TableQandA}})

	if _, err := ms.Write(context.Background(), store.TableQandA, store.WriteInsert,
		models.QAndAItem{ID: 1, UserID: "missing", Question: "is this safe?"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	eventually(t, func() bool { return c.QandA.Len() == 1 }, "insert dropped over enrichment failure")
	item, _ := c.QandA.Get("1")
	if item.UserName != models.UnknownName {
		t.Errorf("user name = %q, want %q", item.UserName, models.UnknownName)
	}
	if item.Enrichment != models.EnrichFailed {
		t.Errorf("enrichment state = %q, want failed", item.Enrichment)
	}
}

func TestVisibilityFilteringScopedSession(t *testing.T) {
	ms := store.NewMemStore()
	c := cache.NewStore()
	c.Content.BulkLoad([]models.Content{
		{ID: 1, Title: "ours", AssignedOrgIDs: []string{"org-1"}},
	})

	m := startMerger(t, ms, c, Config{
		OrgID:  "org-1",
		Tables: []string{store.TableContent},
	})
	m.SyncCounters()

	ctx := context.Background()
	// Insert scoped to another org: dropped.
	if _, err := ms.Write(ctx, store.TableContent, store.WriteInsert,
		models.Content{ID: 2, Title: "theirs", AssignedOrgIDs: []string{"org-2"}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	// Insert visible to all: applied.
	if _, err := ms.Write(ctx, store.TableContent, store.WriteInsert,
		models.Content{ID: 3, Title: "everyone"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	eventually(t, func() bool { return c.Content.Len() == 2 }, "unscoped insert never applied")
	if _, ok := c.Content.Get("2"); ok {
		t.Error("out-of-scope insert must be dropped")
	}

	// Update moving a cached row out of scope removes it.
	if _, err := ms.Write(ctx, store.TableContent, store.WriteUpdate,
		models.Content{ID: 1, Title: "ours", AssignedOrgIDs: []string{"org-9"}}); err != nil {
		t.Fatalf("update: %v", err)
	}
	eventually(t, func() bool {
		_, ok := c.Content.Get("1")
		return !ok
	}, "out-of-scope update did not remove the row")
	eventually(t, func() bool {
		return m.Count(store.TableContent) == c.Content.Len()
	}, "counter diverged from recount")
}

func TestEventsForUnloadedTypeDropped(t *testing.T) {
	ms := store.NewMemStore()
	c := cache.NewStore() // content never bulk-loaded

	startMerger(t, ms, c, Config{Tables: []string{store.TableContent, store.TableNews}})
	c.News.BulkLoad(nil)

	ctx := context.Background()
	if _, err := ms.Write(ctx, store.TableContent, store.WriteInsert,
		models.Content{ID: 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ms.Write(ctx, store.TableNews, store.WriteInsert,
		models.NewsItem{ID: 1}); err != nil {
		t.Fatalf("write: %v", err)
	}

	eventually(t, func() bool { return c.News.Len() == 1 }, "news insert never applied")
	if c.Content.Len() != 0 {
		t.Error("events for an unloaded type must be dropped")
	}
	if c.Loaded(store.TableContent) {
		t.Error("dropped events must not mark the type loaded")
	}
}

func TestCloseIdempotentAndReleasesSubscriptions(t *testing.T) {
	ms := store.NewMemStore()
	c := cache.NewStore()
	m := New(ms, c, materializer.New(ms, c), Config{Tables: []string{store.TableContent}})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	m.Close()
	m.Close() // second close must be a no-op

	// Writes after close must not panic or leak into the cache.
	c.Content.BulkLoad(nil)
	if _, err := ms.Write(context.Background(), store.TableContent, store.WriteInsert,
		models.Content{ID: 1}); err != nil {
		t.Fatalf("write after close: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if c.Content.Len() != 0 {
		t.Error("event applied after close")
	}
}
