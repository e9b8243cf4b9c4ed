// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

package cache

import (
	"reflect"
	"testing"

	"github.com/alleyehq/alleye/internal/models"
)

func newsItems(ids ...int64) []models.NewsItem {
	out := make([]models.NewsItem, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.NewsItem{ID: id})
	}
	return out
}

func collectionIDs(c *Collection[models.NewsItem]) []int64 {
	snap := c.Snapshot()
	out := make([]int64, 0, len(snap))
	for _, item := range snap {
		out = append(out, item.ID)
	}
	return out
}

func TestBulkLoadIdempotent(t *testing.T) {
	c := NewCollection[models.NewsItem](PrependNewest)
	records := newsItems(3, 2, 1)

	c.BulkLoad(records)
	first := collectionIDs(c)

	c.BulkLoad(records)
	second := collectionIDs(c)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("bulk load not idempotent: %v then %v", first, second)
	}
	if c.Len() != 3 {
		t.Errorf("expected 3 records, got %d", c.Len())
	}
}

func TestBulkLoadDeduplicates(t *testing.T) {
	c := NewCollection[models.NewsItem](PrependNewest)
	c.BulkLoad([]models.NewsItem{
		{ID: 1, Title: "first"},
		{ID: 2, Title: "other"},
		{ID: 1, Title: "second"},
	})

	if c.Len() != 2 {
		t.Fatalf("expected 2 records after dedup, got %d", c.Len())
	}
	got, ok := c.Get("1")
	if !ok {
		t.Fatal("record 1 missing")
	}
	if got.Title != "second" {
		t.Errorf("expected last write to win, got %q", got.Title)
	}
	if ids := collectionIDs(c); !reflect.DeepEqual(ids, []int64{1, 2}) {
		t.Errorf("expected first occurrence to keep its position, got %v", ids)
	}
}

func TestApplyInsertPrependsAndDedupes(t *testing.T) {
	c := NewCollection[models.NewsItem](PrependNewest)
	c.BulkLoad(newsItems(2, 1))

	if !c.ApplyInsert(models.NewsItem{ID: 3}) {
		t.Fatal("insert of new id should change the collection")
	}
	if ids := collectionIDs(c); !reflect.DeepEqual(ids, []int64{3, 2, 1}) {
		t.Errorf("expected newest first, got %v", ids)
	}

	// Duplicate insert is a no-op.
	if c.ApplyInsert(models.NewsItem{ID: 3, Title: "dup"}) {
		t.Error("duplicate insert should not change the collection")
	}
	if got, _ := c.Get("3"); got.Title != "" {
		t.Errorf("duplicate insert must not overwrite, got title %q", got.Title)
	}
	if c.Len() != 3 {
		t.Errorf("expected 3 records, got %d", c.Len())
	}
}

func TestApplyInsertAppendMode(t *testing.T) {
	c := NewCollection[models.NewsItem](Append)
	c.BulkLoad(newsItems(1, 2))

	c.ApplyInsert(models.NewsItem{ID: 3})
	if ids := collectionIDs(c); !reflect.DeepEqual(ids, []int64{1, 2, 3}) {
		t.Errorf("expected append at back, got %v", ids)
	}
}

func TestApplyUpdateInPlace(t *testing.T) {
	c := NewCollection[models.NewsItem](PrependNewest)
	c.BulkLoad([]models.NewsItem{
		{ID: 3, Title: "c"},
		{ID: 2, Title: "b"},
		{ID: 1, Title: "a"},
	})

	if !c.ApplyUpdate(models.NewsItem{ID: 2, Title: "b2"}) {
		t.Fatal("update of cached id should change the collection")
	}
	if ids := collectionIDs(c); !reflect.DeepEqual(ids, []int64{3, 2, 1}) {
		t.Errorf("update must keep position, got %v", ids)
	}
	if got, _ := c.Get("2"); got.Title != "b2" {
		t.Errorf("expected updated title, got %q", got.Title)
	}

	// Update for an id never cached is dropped, not inserted.
	if c.ApplyUpdate(models.NewsItem{ID: 9}) {
		t.Error("update of absent id should be a no-op")
	}
	if c.Len() != 3 {
		t.Errorf("expected 3 records, got %d", c.Len())
	}
}

func TestDeleteThenUpdateLeavesRecordAbsent(t *testing.T) {
	c := NewCollection[models.NewsItem](PrependNewest)
	c.BulkLoad(newsItems(2, 1))

	if !c.ApplyDelete("2") {
		t.Fatal("delete of cached id should change the collection")
	}
	if c.ApplyUpdate(models.NewsItem{ID: 2, Title: "ghost"}) {
		t.Error("update after delete must be a no-op")
	}
	if _, ok := c.Get("2"); ok {
		t.Error("record 2 should stay absent after delete then update")
	}

	// A fresh insert for the id is a new row and clears the tombstone.
	if !c.ApplyInsert(models.NewsItem{ID: 2, Title: "reborn"}) {
		t.Fatal("insert after delete should succeed")
	}
	if got, _ := c.Get("2"); got.Title != "reborn" {
		t.Errorf("expected reinserted record, got %q", got.Title)
	}
	if !c.ApplyUpdate(models.NewsItem{ID: 2, Title: "reborn2"}) {
		t.Error("update after reinsert should apply")
	}
}

func TestDeleteAbsentStillTombstones(t *testing.T) {
	c := NewCollection[models.NewsItem](PrependNewest)
	c.BulkLoad(newsItems(1))

	if c.ApplyDelete("7") {
		t.Error("delete of absent id should report no change")
	}
	if c.ApplyUpdate(models.NewsItem{ID: 7}) {
		t.Error("update after delete of absent id must be a no-op")
	}
}

func TestBulkLoadClearsTombstones(t *testing.T) {
	c := NewCollection[models.NewsItem](PrependNewest)
	c.BulkLoad(newsItems(1, 2))
	c.ApplyDelete("1")

	c.BulkLoad(newsItems(1, 2))
	if !c.ApplyUpdate(models.NewsItem{ID: 1, Title: "fresh"}) {
		t.Error("bulk load should clear tombstones")
	}
}

func TestMutateSkipsTombstoned(t *testing.T) {
	c := NewCollection[models.NewsItem](PrependNewest)
	c.BulkLoad(newsItems(1, 2))

	if !c.Mutate("1", func(n *models.NewsItem) { n.AuthorName = "Ada" }) {
		t.Fatal("mutate of cached id should apply")
	}
	if got, _ := c.Get("1"); got.AuthorName != "Ada" {
		t.Errorf("expected mutation applied, got %q", got.AuthorName)
	}

	c.ApplyDelete("2")
	if c.Mutate("2", func(n *models.NewsItem) { n.AuthorName = "x" }) {
		t.Error("mutate of deleted id must be a no-op")
	}
}

func TestResetMarksUnloaded(t *testing.T) {
	c := NewCollection[models.NewsItem](PrependNewest)
	if c.Loaded() {
		t.Error("new collection should not report loaded")
	}
	c.BulkLoad(newsItems(1))
	if !c.Loaded() {
		t.Error("collection should report loaded after bulk load")
	}
	c.Reset()
	if c.Loaded() || c.Len() != 0 {
		t.Error("reset should empty and unload the collection")
	}
}
