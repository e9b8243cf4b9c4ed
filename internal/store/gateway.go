// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

package store

import (
	"context"
	"errors"

	"github.com/goccy/go-json"
)

// Table names of the remote store. These double as the entity-type keys
// used by the cache, the loader and the merger.
const (
	TableProfiles      = "profiles"
	TableOrganizations = "organizations"
	TableContent       = "content"
	TablePlaylists     = "playlists"
	TablePlaylistLinks = "playlist_content"
	TableAssignments   = "assignments"
	TableNews          = "news"
	TableQandA         = "qanda"
	TableAnalytics     = "analytics"
	TableCyberTraining = "cyber_training_analytics"
)

// WriteOp identifies a write operation.
type WriteOp string

const (
	WriteInsert WriteOp = "insert"
	WriteUpdate WriteOp = "update"
	WriteDelete WriteOp = "delete"
)

// ChangeOp identifies a change-feed event kind.
type ChangeOp string

const (
	ChangeInsert ChangeOp = "INSERT"
	ChangeUpdate ChangeOp = "UPDATE"
	ChangeDelete ChangeOp = "DELETE"
)

// ChangeEvent is one change-feed notification. New carries the row after
// the change (insert/update); Old carries the row before it
// (update/delete, possibly reduced to the primary key by the backend).
type ChangeEvent struct {
	Op    ChangeOp
	Table string
	New   json.RawMessage
	Old   json.RawMessage
}

// Errors returned by gateway implementations.
var (
	ErrUnknownTable = errors.New("store: unknown table")
	ErrNotFound     = errors.New("store: record not found")
	ErrClosed       = errors.New("store: gateway closed")
)

// Gateway abstracts the external relational store. Implementations must
// be safe for concurrent use.
type Gateway interface {
	// Read executes a filtered query and returns raw JSON records.
	Read(ctx context.Context, table string, q Query) ([]json.RawMessage, error)

	// Write executes an insert, update or delete. For updates and
	// deletes the payload must carry the primary key. The returned
	// record is the row as stored (insert/update) or nil (delete).
	// Writes never mutate the session cache directly; confirmation
	// arrives through the change feed.
	Write(ctx context.Context, table string, op WriteOp, payload any) (json.RawMessage, error)

	// Subscribe opens a whole-table change feed. The returned cancel
	// function releases the subscription; the channel is closed when
	// the subscription ends. Events may include rows outside the
	// caller's organization scope; callers filter client-side.
	Subscribe(ctx context.Context, table string) (<-chan ChangeEvent, func(), error)
}

// Query describes a filtered, ordered, limited read.
type Query struct {
	Filters    []Cond
	OrderBy    string
	Descending bool
	Limit      int
}

// CondOp is a filter operator.
type CondOp string

const (
	OpEq       CondOp = "eq"
	OpIn       CondOp = "in"
	OpIsNull   CondOp = "is_null"
	OpContains CondOp = "contains" // array column contains value
	OpOr       CondOp = "or"       // logical OR over nested conditions
)

// Cond is one filter condition. Conditions at the top level of a Query
// combine with AND; OpOr nests alternatives, which is what the
// organization-visibility predicate needs ("scope is null OR scope
// contains my org").
type Cond struct {
	Column string
	Op     CondOp
	Value  any
	Values []any
	Nested []Cond
}

// Eq matches rows whose column equals value.
func Eq(column string, value any) Cond {
	return Cond{Column: column, Op: OpEq, Value: value}
}

// In matches rows whose column is one of values.
func In(column string, values ...any) Cond {
	return Cond{Column: column, Op: OpIn, Values: values}
}

// IsNull matches rows whose column is null. For array columns an empty
// array counts as null, which is what assignment scopes need.
func IsNull(column string) Cond {
	return Cond{Column: column, Op: OpIsNull}
}

// Contains matches rows whose array column contains value.
func Contains(column string, value any) Cond {
	return Cond{Column: column, Op: OpContains, Value: value}
}

// Or combines conditions with logical OR.
func Or(conds ...Cond) Cond {
	return Cond{Op: OpOr, Nested: conds}
}

// VisibleToOrgCond builds the standard organization-visibility filter for
// tables carrying an assigned_org_ids scope column.
func VisibleToOrgCond(orgID string) Cond {
	return Or(IsNull("assigned_org_ids"), Contains("assigned_org_ids", orgID))
}
