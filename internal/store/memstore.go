// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/goccy/go-json"

	"github.com/alleyehq/alleye/internal/logging"
)

// subscriberBuffer is the per-subscriber channel capacity. A subscriber
// that stalls for longer than this many events loses the overflow, which
// mirrors the lossy nature of real change feeds; recovery is a re-bulk-load.
const subscriberBuffer = 256

// MemStore is a deterministic in-memory Gateway used by tests and by
// mock mode. Rows are stored decoded; reads re-marshal on the way out so
// callers cannot alias internal state.
type MemStore struct {
	mu     sync.RWMutex
	tables map[string][]map[string]any
	nextID map[string]int64
	subs   map[string][]*memSub
	closed bool
}

type memSub struct {
	table string
	ch    chan ChangeEvent
}

// NewMemStore creates an empty in-memory store with all known tables.
func NewMemStore() *MemStore {
	s := &MemStore{
		tables: make(map[string][]map[string]any),
		nextID: make(map[string]int64),
		subs:   make(map[string][]*memSub),
	}
	for _, t := range []string{
		TableProfiles, TableOrganizations, TableContent, TablePlaylists,
		TablePlaylistLinks, TableAssignments, TableNews, TableQandA,
		TableAnalytics, TableCyberTraining,
	} {
		s.tables[t] = nil
	}
	return s
}

// Seed inserts records without emitting change events. Intended for test
// fixtures and mock-mode bootstrap.
func (s *MemStore) Seed(table string, records ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.tables[table]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	for _, rec := range records {
		row, err := toRow(rec)
		if err != nil {
			return err
		}
		s.assignID(table, row)
		rows = append(rows, row)
	}
	s.tables[table] = rows
	return nil
}

// Read implements Gateway.
func (s *MemStore) Read(ctx context.Context, table string, q Query) ([]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	rows, ok := s.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	var matched []map[string]any
	for _, row := range rows {
		if matchAll(row, q.Filters) {
			matched = append(matched, row)
		}
	}

	if q.OrderBy != "" {
		col, desc := q.OrderBy, q.Descending
		sort.SliceStable(matched, func(i, j int) bool {
			less := lessValue(matched[i][col], matched[j][col])
			if desc {
				return !less && !equalValue(matched[i][col], matched[j][col])
			}
			return less
		})
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	out := make([]json.RawMessage, 0, len(matched))
	for _, row := range matched {
		raw, err := json.Marshal(row)
		if err != nil {
			return nil, fmt.Errorf("marshal row: %w", err)
		}
		out = append(out, raw)
	}
	return out, nil
}

// Write implements Gateway. Inserts assign a sequential id when the
// payload has none, matching store-assigned identifier semantics.
func (s *MemStore) Write(ctx context.Context, table string, op WriteOp, payload any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	row, err := toRow(payload)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	rows, ok := s.tables[table]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	var event ChangeEvent
	var result json.RawMessage

	switch op {
	case WriteInsert:
		s.assignID(table, row)
		s.tables[table] = append(rows, row)
		result, _ = json.Marshal(row)
		event = ChangeEvent{Op: ChangeInsert, Table: table, New: result}

	case WriteUpdate:
		key := rowKey(row)
		idx := indexOf(rows, key)
		if idx < 0 {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: %s id %s", ErrNotFound, table, key)
		}
		old, _ := json.Marshal(rows[idx])
		rows[idx] = row
		result, _ = json.Marshal(row)
		event = ChangeEvent{Op: ChangeUpdate, Table: table, New: result, Old: old}

	case WriteDelete:
		key := rowKey(row)
		idx := indexOf(rows, key)
		if idx < 0 {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: %s id %s", ErrNotFound, table, key)
		}
		old, _ := json.Marshal(rows[idx])
		s.tables[table] = append(rows[:idx], rows[idx+1:]...)
		event = ChangeEvent{Op: ChangeDelete, Table: table, Old: old}

	default:
		s.mu.Unlock()
		return nil, fmt.Errorf("store: unknown write op %q", op)
	}

	subs := make([]*memSub, len(s.subs[table]))
	copy(subs, s.subs[table])
	s.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.ch <- event:
		default:
			logging.Warn().Str("table", table).Msg("change feed subscriber full, dropping event")
		}
	}
	return result, nil
}

// Subscribe implements Gateway.
func (s *MemStore) Subscribe(ctx context.Context, table string) (<-chan ChangeEvent, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, nil, ErrClosed
	}
	if _, ok := s.tables[table]; !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	sub := &memSub{table: table, ch: make(chan ChangeEvent, subscriberBuffer)}
	s.subs[table] = append(s.subs[table], sub)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			list := s.subs[table]
			for i, candidate := range list {
				if candidate == sub {
					s.subs[table] = append(list[:i], list[i+1:]...)
					break
				}
			}
			close(sub.ch)
		})
	}
	return sub.ch, cancel, nil
}

// Close releases all subscriptions and rejects further operations.
func (s *MemStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for table, list := range s.subs {
		for _, sub := range list {
			close(sub.ch)
		}
		s.subs[table] = nil
	}
}

// Count returns the number of rows in a table. Test helper.
func (s *MemStore) Count(table string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables[table])
}

// assignID gives the row a sequential int64 id when it has none.
// Must be called with mu held.
func (s *MemStore) assignID(table string, row map[string]any) {
	if v, ok := row["id"]; ok && v != nil {
		// Advance the sequence past explicit numeric ids so later
		// inserts do not collide.
		if f, ok := v.(float64); ok && int64(f) > s.nextID[table] {
			s.nextID[table] = int64(f)
		}
		return
	}
	s.nextID[table]++
	row["id"] = float64(s.nextID[table])
}

func toRow(payload any) (map[string]any, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	var row map[string]any
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("payload is not an object: %w", err)
	}
	return row, nil
}

func indexOf(rows []map[string]any, key string) int {
	for i, row := range rows {
		if rowKey(row) == key {
			return i
		}
	}
	return -1
}

// rowKey normalizes a row's id to a string so string UUIDs and numeric
// ids share one comparison path.
func rowKey(row map[string]any) string {
	return keyString(row["id"])
}

func keyString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatInt(int64(id), 10)
	case int64:
		return strconv.FormatInt(id, 10)
	case int:
		return strconv.Itoa(id)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", id)
	}
}

// matchAll evaluates top-level conditions with AND semantics.
func matchAll(row map[string]any, conds []Cond) bool {
	for _, c := range conds {
		if !matchCond(row, c) {
			return false
		}
	}
	return true
}

func matchCond(row map[string]any, c Cond) bool {
	switch c.Op {
	case OpEq:
		return equalValue(row[c.Column], c.Value)
	case OpIn:
		for _, v := range c.Values {
			if equalValue(row[c.Column], v) {
				return true
			}
		}
		return false
	case OpIsNull:
		v, ok := row[c.Column]
		if !ok || v == nil {
			return true
		}
		// Empty arrays are equivalent to null for scope columns.
		if arr, ok := v.([]any); ok {
			return len(arr) == 0
		}
		return false
	case OpContains:
		arr, ok := row[c.Column].([]any)
		if !ok {
			return false
		}
		for _, v := range arr {
			if equalValue(v, c.Value) {
				return true
			}
		}
		return false
	case OpOr:
		for _, nested := range c.Nested {
			if matchCond(row, nested) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// equalValue compares a decoded JSON value against a filter value,
// normalizing numerics so int64 filters match float64-decoded columns.
func equalValue(a, b any) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
		return false
	}
	if as, aok := a.(string); aok {
		if bs, bok := b.(string); bok {
			return as == bs
		}
		return false
	}
	if ab, aok := a.(bool); aok {
		if bb, bok := b.(bool); bok {
			return ab == bb
		}
		return false
	}
	return a == nil && b == nil
}

func lessValue(a, b any) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af < bf
		}
	}
	if as, aok := a.(string); aok {
		if bs, bok := b.(string); bok {
			return as < bs
		}
	}
	return false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
