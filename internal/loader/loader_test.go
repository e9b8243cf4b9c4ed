// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

package loader

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"

	"github.com/alleyehq/alleye/internal/cache"
	"github.com/alleyehq/alleye/internal/materializer"
	"github.com/alleyehq/alleye/internal/models"
	"github.com/alleyehq/alleye/internal/store"
)

// countingGateway wraps a Gateway and counts Read calls per table.
type countingGateway struct {
	store.Gateway
	mu    sync.Mutex
	reads map[string]int
	fail  map[string]error
}

func newCountingGateway(inner store.Gateway) *countingGateway {
	return &countingGateway{
		Gateway: inner,
		reads:   make(map[string]int),
		fail:    make(map[string]error),
	}
}

func (g *countingGateway) Read(ctx context.Context, table string, q store.Query) ([]json.RawMessage, error) {
	g.mu.Lock()
	g.reads[table]++
	err := g.fail[table]
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return g.Gateway.Read(ctx, table, q)
}

func (g *countingGateway) readCount(table string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reads[table]
}

func newFixture(t *testing.T) (*countingGateway, *cache.Store, *Loader) {
	t.Helper()
	ms := store.NewMemStore()
	if err := ms.Seed(store.TableOrganizations,
		models.Organization{ID: "org-1", Name: "Acme"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := ms.Seed(store.TableProfiles,
		models.Profile{ID: "u-1", Name: "Ada", Role: models.RoleAdmin},
		models.Profile{ID: "u-2", Name: "Bob", Role: models.RoleUser}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := ms.Seed(store.TableContent,
		models.Content{ID: 1, Title: "Phishing 101"},
		models.Content{ID: 2, Title: "Scoped", AssignedOrgIDs: []string{"org-2"}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := ms.Seed(store.TablePlaylists,
		models.Playlist{ID: 1, Name: "Onboarding"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := ms.Seed(store.TablePlaylistLinks,
		models.PlaylistEntry{PlaylistID: 1, ContentID: 1}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	gw := newCountingGateway(ms)
	c := cache.NewStore()
	l := New(gw, c, materializer.New(gw, c), Config{})
	return gw, c, l
}

func TestEnsureLoadedSecondVisitIsFree(t *testing.T) {
	gw, c, l := newFixture(t)

	if err := l.EnsureLoaded(context.Background(), ViewOrganizations); err != nil {
		t.Fatalf("first load: %v", err)
	}
	if c.Organizations.Len() != 1 || c.Profiles.Len() != 2 {
		t.Fatalf("cache counts: orgs=%d profiles=%d", c.Organizations.Len(), c.Profiles.Len())
	}
	orgReads := gw.readCount(store.TableOrganizations)
	profileReads := gw.readCount(store.TableProfiles)

	if err := l.EnsureLoaded(context.Background(), ViewOrganizations); err != nil {
		t.Fatalf("second load: %v", err)
	}
	if gw.readCount(store.TableOrganizations) != orgReads || gw.readCount(store.TableProfiles) != profileReads {
		t.Error("second visit must trigger zero reads")
	}
}

func TestEnsureLoadedSharedDependency(t *testing.T) {
	gw, _, l := newFixture(t)

	if err := l.EnsureLoaded(context.Background(), ViewUsers); err != nil {
		t.Fatalf("users: %v", err)
	}
	if err := l.EnsureLoaded(context.Background(), ViewTeam); err != nil {
		t.Fatalf("team: %v", err)
	}
	if got := gw.readCount(store.TableProfiles); got != 1 {
		t.Errorf("profiles read %d times, want 1", got)
	}
}

func TestEnsureLoadedPartialFailure(t *testing.T) {
	gw, c, l := newFixture(t)
	gw.fail[store.TableProfiles] = errors.New("backend down")

	err := l.EnsureLoaded(context.Background(), ViewOrganizations)
	if err == nil {
		t.Fatal("expected load error")
	}
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("expected *LoadError, got %T", err)
	}
	if _, ok := le.Failed[store.TableProfiles]; !ok {
		t.Errorf("expected profiles in failed set, got %v", le.Failed)
	}

	// The sibling type loaded and stays loaded; the failed one retries.
	if !c.Loaded(store.TableOrganizations) {
		t.Error("organizations should be loaded despite sibling failure")
	}
	if c.Loaded(store.TableProfiles) {
		t.Error("profiles must stay unloaded after failure")
	}

	gw.mu.Lock()
	delete(gw.fail, store.TableProfiles)
	gw.mu.Unlock()
	if err := l.EnsureLoaded(context.Background(), ViewOrganizations); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if c.Profiles.Len() != 2 {
		t.Errorf("profiles after retry = %d, want 2", c.Profiles.Len())
	}
}

func TestEnsureLoadedMaterializesPlaylists(t *testing.T) {
	_, c, l := newFixture(t)

	if err := l.EnsureLoaded(context.Background(), ViewPlaylists); err != nil {
		t.Fatalf("load: %v", err)
	}
	p, ok := c.Playlists.Get("1")
	if !ok {
		t.Fatal("playlist not cached")
	}
	if !reflect.DeepEqual(p.ContentIDs, []int64{1}) {
		t.Errorf("content ids = %v, want [1]", p.ContentIDs)
	}
}

func TestEnsureLoadedAppliesOrgScope(t *testing.T) {
	ms := store.NewMemStore()
	if err := ms.Seed(store.TableContent,
		models.Content{ID: 1, Title: "everyone"},
		models.Content{ID: 2, Title: "theirs", AssignedOrgIDs: []string{"org-2"}},
		models.Content{ID: 3, Title: "ours", AssignedOrgIDs: []string{"org-1"}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	c := cache.NewStore()
	gw := newCountingGateway(ms)
	l := New(gw, c, materializer.New(gw, c), Config{OrgID: "org-1"})

	if err := l.EnsureLoaded(context.Background(), ViewContent); err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Content.Len() != 2 {
		t.Errorf("scoped content count = %d, want 2", c.Content.Len())
	}
	if _, ok := c.Content.Get("2"); ok {
		t.Error("content scoped to another org must not load")
	}
}

func TestEnsureLoadedConcurrentCallersShareRead(t *testing.T) {
	gw, _, l := newFixture(t)

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.EnsureLoaded(context.Background(), ViewTeam); err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	if failures.Load() != 0 {
		t.Fatalf("%d concurrent loads failed", failures.Load())
	}
	if got := gw.readCount(store.TableProfiles); got != 1 {
		t.Errorf("profiles read %d times under concurrency, want 1", got)
	}
}

func TestInvalidateForcesReload(t *testing.T) {
	gw, c, l := newFixture(t)

	if err := l.EnsureLoaded(context.Background(), ViewTeam); err != nil {
		t.Fatalf("load: %v", err)
	}
	l.Invalidate(store.TableProfiles)
	if c.Loaded(store.TableProfiles) {
		t.Fatal("profiles should be unloaded after invalidate")
	}
	if err := l.EnsureLoaded(context.Background(), ViewTeam); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := gw.readCount(store.TableProfiles); got != 2 {
		t.Errorf("profiles read %d times, want 2 after invalidate", got)
	}
}

func TestUnknownView(t *testing.T) {
	_, _, l := newFixture(t)
	if err := l.EnsureLoaded(context.Background(), "Nonsense"); !errors.Is(err, ErrUnknownView) {
		t.Errorf("expected ErrUnknownView, got %v", err)
	}
}
