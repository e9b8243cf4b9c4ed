// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

package cache

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/alleyehq/alleye/internal/models"
	"github.com/alleyehq/alleye/internal/store"
)

// Store is the full set of per-type collections for one session. Feed
// collections prepend realtime inserts so the newest record is always
// first, matching the created_at-descending order of their bulk loads;
// organizations and assignments keep arrival order.
type Store struct {
	Profiles      *Collection[models.Profile]
	Organizations *Collection[models.Organization]
	Content       *Collection[models.Content]
	Playlists     *Collection[models.Playlist]
	Assignments   *Collection[models.Assignment]
	News          *Collection[models.NewsItem]
	QandA         *Collection[models.QAndAItem]
	Analytics     *Collection[models.AnalyticsRecord]
	CyberTraining *Collection[models.CyberTrainingRecord]
}

// NewStore creates an empty session cache.
func NewStore() *Store {
	return &Store{
		Profiles:      NewCollection[models.Profile](PrependNewest),
		Organizations: NewCollection[models.Organization](Append),
		Content:       NewCollection[models.Content](PrependNewest),
		Playlists:     NewCollection[models.Playlist](PrependNewest),
		Assignments:   NewCollection[models.Assignment](Append),
		News:          NewCollection[models.NewsItem](PrependNewest),
		QandA:         NewCollection[models.QAndAItem](PrependNewest),
		Analytics:     NewCollection[models.AnalyticsRecord](PrependNewest),
		CyberTraining: NewCollection[models.CyberTrainingRecord](PrependNewest),
	}
}

// ResetAll empties every collection and marks them unloaded. Used after
// a change-feed gap, when the cache can no longer claim freshness.
func (s *Store) ResetAll() {
	s.Profiles.Reset()
	s.Organizations.Reset()
	s.Content.Reset()
	s.Playlists.Reset()
	s.Assignments.Reset()
	s.News.Reset()
	s.QandA.Reset()
	s.Analytics.Reset()
	s.CyberTraining.Reset()
}

// Loaded reports whether the collection backing table has been bulk
// loaded. Unknown tables report false.
func (s *Store) Loaded(table string) bool {
	switch table {
	case store.TableProfiles:
		return s.Profiles.Loaded()
	case store.TableOrganizations:
		return s.Organizations.Loaded()
	case store.TableContent:
		return s.Content.Loaded()
	case store.TablePlaylists:
		return s.Playlists.Loaded()
	case store.TableAssignments:
		return s.Assignments.Loaded()
	case store.TableNews:
		return s.News.Loaded()
	case store.TableQandA:
		return s.QandA.Loaded()
	case store.TableAnalytics:
		return s.Analytics.Loaded()
	case store.TableCyberTraining:
		return s.CyberTraining.Loaded()
	}
	return false
}

// Reset marks one table's collection unloaded. Unknown tables are
// ignored.
func (s *Store) Reset(table string) {
	switch table {
	case store.TableProfiles:
		s.Profiles.Reset()
	case store.TableOrganizations:
		s.Organizations.Reset()
	case store.TableContent:
		s.Content.Reset()
	case store.TablePlaylists:
		s.Playlists.Reset()
	case store.TableAssignments:
		s.Assignments.Reset()
	case store.TableNews:
		s.News.Reset()
	case store.TableQandA:
		s.QandA.Reset()
	case store.TableAnalytics:
		s.Analytics.Reset()
	case store.TableCyberTraining:
		s.CyberTraining.Reset()
	}
}

// Len returns the record count of one table's collection.
func (s *Store) Len(table string) int {
	switch table {
	case store.TableProfiles:
		return s.Profiles.Len()
	case store.TableOrganizations:
		return s.Organizations.Len()
	case store.TableContent:
		return s.Content.Len()
	case store.TablePlaylists:
		return s.Playlists.Len()
	case store.TableAssignments:
		return s.Assignments.Len()
	case store.TableNews:
		return s.News.Len()
	case store.TableQandA:
		return s.QandA.Len()
	case store.TableAnalytics:
		return s.Analytics.Len()
	case store.TableCyberTraining:
		return s.CyberTraining.Len()
	}
	return 0
}

// BulkLoadRaw decodes raw store records into the table's entity type and
// bulk-loads the collection.
func (s *Store) BulkLoadRaw(table string, records []json.RawMessage) error {
	switch table {
	case store.TableProfiles:
		return bulkLoad(s.Profiles, table, records)
	case store.TableOrganizations:
		return bulkLoad(s.Organizations, table, records)
	case store.TableContent:
		return bulkLoad(s.Content, table, records)
	case store.TablePlaylists:
		return bulkLoad(s.Playlists, table, records)
	case store.TableAssignments:
		return bulkLoad(s.Assignments, table, records)
	case store.TableNews:
		return bulkLoad(s.News, table, records)
	case store.TableQandA:
		return bulkLoad(s.QandA, table, records)
	case store.TableAnalytics:
		return bulkLoad(s.Analytics, table, records)
	case store.TableCyberTraining:
		return bulkLoad(s.CyberTraining, table, records)
	}
	return fmt.Errorf("cache: %w: %s", store.ErrUnknownTable, table)
}

// ApplyInsertRaw decodes a change-feed row and inserts it into the
// table's collection. Returns whether the cache changed.
func (s *Store) ApplyInsertRaw(table string, raw json.RawMessage) (bool, error) {
	switch table {
	case store.TableProfiles:
		return applyInsert(s.Profiles, table, raw)
	case store.TableOrganizations:
		return applyInsert(s.Organizations, table, raw)
	case store.TableContent:
		return applyInsert(s.Content, table, raw)
	case store.TablePlaylists:
		return applyInsert(s.Playlists, table, raw)
	case store.TableAssignments:
		return applyInsert(s.Assignments, table, raw)
	case store.TableNews:
		return applyInsert(s.News, table, raw)
	case store.TableQandA:
		return applyInsert(s.QandA, table, raw)
	case store.TableAnalytics:
		return applyInsert(s.Analytics, table, raw)
	case store.TableCyberTraining:
		return applyInsert(s.CyberTraining, table, raw)
	}
	return false, fmt.Errorf("cache: %w: %s", store.ErrUnknownTable, table)
}

// ApplyUpdateRaw decodes a change-feed row and replaces the cached
// record with the same id. Returns whether the cache changed.
func (s *Store) ApplyUpdateRaw(table string, raw json.RawMessage) (bool, error) {
	switch table {
	case store.TableProfiles:
		return applyUpdate(s.Profiles, table, raw)
	case store.TableOrganizations:
		return applyUpdate(s.Organizations, table, raw)
	case store.TableContent:
		return applyUpdate(s.Content, table, raw)
	case store.TablePlaylists:
		return applyUpdate(s.Playlists, table, raw)
	case store.TableAssignments:
		return applyUpdate(s.Assignments, table, raw)
	case store.TableNews:
		return applyUpdate(s.News, table, raw)
	case store.TableQandA:
		return applyUpdate(s.QandA, table, raw)
	case store.TableAnalytics:
		return applyUpdate(s.Analytics, table, raw)
	case store.TableCyberTraining:
		return applyUpdate(s.CyberTraining, table, raw)
	}
	return false, fmt.Errorf("cache: %w: %s", store.ErrUnknownTable, table)
}

// ApplyDeleteRaw extracts the id from a change-feed old-row payload and
// removes the cached record. Returns whether the cache changed.
func (s *Store) ApplyDeleteRaw(table string, old json.RawMessage) (bool, error) {
	key, err := rawKey(old)
	if err != nil {
		return false, fmt.Errorf("cache: delete on %s: %w", table, err)
	}
	switch table {
	case store.TableProfiles:
		return s.Profiles.ApplyDelete(key), nil
	case store.TableOrganizations:
		return s.Organizations.ApplyDelete(key), nil
	case store.TableContent:
		return s.Content.ApplyDelete(key), nil
	case store.TablePlaylists:
		return s.Playlists.ApplyDelete(key), nil
	case store.TableAssignments:
		return s.Assignments.ApplyDelete(key), nil
	case store.TableNews:
		return s.News.ApplyDelete(key), nil
	case store.TableQandA:
		return s.QandA.ApplyDelete(key), nil
	case store.TableAnalytics:
		return s.Analytics.ApplyDelete(key), nil
	case store.TableCyberTraining:
		return s.CyberTraining.ApplyDelete(key), nil
	}
	return false, fmt.Errorf("cache: %w: %s", store.ErrUnknownTable, table)
}

func bulkLoad[T Entity](c *Collection[T], table string, records []json.RawMessage) error {
	decoded := make([]T, 0, len(records))
	for _, raw := range records {
		var rec T
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("cache: bulk load %s: %w", table, err)
		}
		decoded = append(decoded, rec)
	}
	c.BulkLoad(decoded)
	return nil
}

func applyInsert[T Entity](c *Collection[T], table string, raw json.RawMessage) (bool, error) {
	var rec T
	if err := json.Unmarshal(raw, &rec); err != nil {
		return false, fmt.Errorf("cache: insert on %s: %w", table, err)
	}
	return c.ApplyInsert(rec), nil
}

func applyUpdate[T Entity](c *Collection[T], table string, raw json.RawMessage) (bool, error) {
	var rec T
	if err := json.Unmarshal(raw, &rec); err != nil {
		return false, fmt.Errorf("cache: update on %s: %w", table, err)
	}
	return c.ApplyUpdate(rec), nil
}

// rawKey extracts the primary key from a raw row. Numeric ids render in
// their canonical integer form so they match Entity.Key.
func rawKey(raw json.RawMessage) (string, error) {
	var row struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &row); err != nil {
		return "", err
	}
	if len(row.ID) == 0 {
		return "", fmt.Errorf("row missing id")
	}
	var asString string
	if err := json.Unmarshal(row.ID, &asString); err == nil {
		return asString, nil
	}
	var asInt int64
	if err := json.Unmarshal(row.ID, &asInt); err == nil {
		return fmt.Sprintf("%d", asInt), nil
	}
	return "", fmt.Errorf("row id is neither string nor integer")
}
