// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

package recommend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/alleyehq/alleye/internal/models"
)

func catalog() []models.Content {
	return []models.Content{
		{ID: 1, Title: "Phishing 101", Category: "Phishing"},
		{ID: 2, Title: "Password Hygiene", Category: "Credentials"},
		{ID: 3, Title: "Social Engineering", Category: "Phishing"},
	}
}

func recService(t *testing.T, calls *atomic.Int32, picks []pick) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(responseBody{Recommendations: picks})
	}))
}

func TestFetchMapsPicksToCatalog(t *testing.T) {
	var calls atomic.Int32
	srv := recService(t, &calls, []pick{
		{ContentID: 3, Reason: "follows your phishing track"},
		{ContentID: 99, Reason: "not in catalog"},
		{ContentID: 2, Reason: "weak area"},
	})
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL})
	recs := c.Fetch(context.Background(), "u-1",
		models.Progress{1: {Status: models.ProgressCompleted}}, catalog())

	if len(recs) != 2 {
		t.Fatalf("expected 2 recommendations, got %d", len(recs))
	}
	if recs[0].Content.ID != 3 || recs[1].Content.ID != 2 {
		t.Errorf("order = %d,%d, want 3,2", recs[0].Content.ID, recs[1].Content.ID)
	}
	if recs[0].Reason == "" {
		t.Error("reason must be carried through")
	}
}

func TestFetchCapsAtMax(t *testing.T) {
	var calls atomic.Int32
	many := make([]pick, 0, 6)
	wide := make([]models.Content, 0, 6)
	for i := int64(1); i <= 6; i++ {
		many = append(many, pick{ContentID: i, Reason: "r"})
		wide = append(wide, models.Content{ID: i})
	}
	srv := recService(t, &calls, many)
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL})
	recs := c.Fetch(context.Background(), "u-1", nil, wide)
	if len(recs) != MaxRecommendations {
		t.Errorf("expected %d recommendations, got %d", MaxRecommendations, len(recs))
	}
}

func TestFetchEmptyCatalogSkipsService(t *testing.T) {
	var calls atomic.Int32
	srv := recService(t, &calls, nil)
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL})
	if recs := c.Fetch(context.Background(), "u-1", nil, nil); len(recs) != 0 {
		t.Errorf("expected empty result, got %d", len(recs))
	}

	// A fully-completed catalog is equivalent to an empty one.
	done := models.Progress{1: {Status: models.ProgressCompleted}}
	if recs := c.Fetch(context.Background(), "u-1", done, []models.Content{{ID: 1}}); len(recs) != 0 {
		t.Errorf("expected empty result for completed catalog, got %d", len(recs))
	}
	if calls.Load() != 0 {
		t.Errorf("service called %d times, want 0", calls.Load())
	}
}

func TestFetchServiceErrorReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL})
	if recs := c.Fetch(context.Background(), "u-1", nil, catalog()); recs != nil {
		t.Errorf("expected nil on service error, got %v", recs)
	}
}

func TestFetchUsesTTLCache(t *testing.T) {
	var calls atomic.Int32
	srv := recService(t, &calls, []pick{{ContentID: 1, Reason: "r"}})
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL, CacheTTL: time.Hour})
	c.Fetch(context.Background(), "u-1", nil, catalog())
	c.Fetch(context.Background(), "u-1", nil, catalog())
	if calls.Load() != 1 {
		t.Errorf("service called %d times, want 1", calls.Load())
	}

	// A different user misses the cache.
	c.Fetch(context.Background(), "u-2", nil, catalog())
	if calls.Load() != 2 {
		t.Errorf("service called %d times, want 2", calls.Load())
	}

	// Invalidation forces a fresh call.
	c.Invalidate("u-1")
	c.Fetch(context.Background(), "u-1", nil, catalog())
	if calls.Load() != 3 {
		t.Errorf("service called %d times, want 3", calls.Load())
	}
}
