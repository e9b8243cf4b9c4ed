// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

package cache

import (
	"errors"
	"testing"

	"github.com/goccy/go-json"

	"github.com/alleyehq/alleye/internal/store"
)

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestStoreBulkLoadRawDispatch(t *testing.T) {
	s := NewStore()
	records := []json.RawMessage{
		raw(t, map[string]any{"id": 2, "title": "newest"}),
		raw(t, map[string]any{"id": 1, "title": "oldest"}),
	}
	if err := s.BulkLoadRaw(store.TableNews, records); err != nil {
		t.Fatalf("bulk load: %v", err)
	}
	if s.News.Len() != 2 {
		t.Fatalf("expected 2 news items, got %d", s.News.Len())
	}
	if !s.Loaded(store.TableNews) {
		t.Error("news should report loaded")
	}
	if s.Loaded(store.TableContent) {
		t.Error("content should not report loaded")
	}
}

func TestStoreApplyRawLifecycle(t *testing.T) {
	s := NewStore()
	if err := s.BulkLoadRaw(store.TableQandA, nil); err != nil {
		t.Fatalf("bulk load: %v", err)
	}

	changed, err := s.ApplyInsertRaw(store.TableQandA,
		raw(t, map[string]any{"id": 1, "user_id": "u-1", "question": "Is this phishing?"}))
	if err != nil || !changed {
		t.Fatalf("insert: changed=%v err=%v", changed, err)
	}

	changed, err = s.ApplyUpdateRaw(store.TableQandA,
		raw(t, map[string]any{"id": 1, "user_id": "u-1", "question": "Is this phishing?", "answer": "Yes"}))
	if err != nil || !changed {
		t.Fatalf("update: changed=%v err=%v", changed, err)
	}
	item, ok := s.QandA.Get("1")
	if !ok || item.Answer == nil || *item.Answer != "Yes" {
		t.Fatalf("expected answered item, got %+v ok=%v", item, ok)
	}

	// Delete payloads may be reduced to the primary key.
	changed, err = s.ApplyDeleteRaw(store.TableQandA, raw(t, map[string]any{"id": 1}))
	if err != nil || !changed {
		t.Fatalf("delete: changed=%v err=%v", changed, err)
	}
	if s.QandA.Len() != 0 {
		t.Errorf("expected empty collection, got %d", s.QandA.Len())
	}

	changed, err = s.ApplyUpdateRaw(store.TableQandA,
		raw(t, map[string]any{"id": 1, "question": "ghost"}))
	if err != nil {
		t.Fatalf("update after delete: %v", err)
	}
	if changed {
		t.Error("update after delete must not change the cache")
	}
}

func TestStoreStringKeys(t *testing.T) {
	s := NewStore()
	if err := s.BulkLoadRaw(store.TableProfiles, []json.RawMessage{
		raw(t, map[string]any{"id": "u-1", "name": "Ada", "role": "Admin"}),
	}); err != nil {
		t.Fatalf("bulk load: %v", err)
	}

	changed, err := s.ApplyDeleteRaw(store.TableProfiles, raw(t, map[string]any{"id": "u-1"}))
	if err != nil || !changed {
		t.Fatalf("delete: changed=%v err=%v", changed, err)
	}
}

func TestStoreUnknownTable(t *testing.T) {
	s := NewStore()
	if err := s.BulkLoadRaw("bogus", nil); !errors.Is(err, store.ErrUnknownTable) {
		t.Errorf("bulk load: expected ErrUnknownTable, got %v", err)
	}
	if _, err := s.ApplyInsertRaw("bogus", raw(t, map[string]any{"id": 1})); !errors.Is(err, store.ErrUnknownTable) {
		t.Errorf("insert: expected ErrUnknownTable, got %v", err)
	}
}

func TestStoreResetAll(t *testing.T) {
	s := NewStore()
	if err := s.BulkLoadRaw(store.TableContent, []json.RawMessage{
		raw(t, map[string]any{"id": 1, "title": "Phishing 101", "type": "Video"}),
	}); err != nil {
		t.Fatalf("bulk load: %v", err)
	}

	s.ResetAll()
	if s.Loaded(store.TableContent) || s.Content.Len() != 0 {
		t.Error("reset all should empty and unload every collection")
	}
}

func TestStoreDeleteMissingID(t *testing.T) {
	s := NewStore()
	if _, err := s.ApplyDeleteRaw(store.TableContent, raw(t, map[string]any{"title": "no id"})); err == nil {
		t.Error("expected error for delete payload without id")
	}
}
