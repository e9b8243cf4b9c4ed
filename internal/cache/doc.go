// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

// Package cache holds the authoritative in-memory copy of every entity
// collection the current session has loaded.
//
// Each entity type is an ordered collection keyed by the record's opaque
// id. Collections guarantee at most one record per id after any sequence
// of operations, stable iteration order except for explicit
// inserts-at-front, and idempotent bulk loads. A deleted id is
// tombstoned for the session so a late-arriving update cannot resurrect
// it; a fresh insert for the id clears the tombstone.
//
// The cache performs no I/O and never blocks on the network: loaders and
// the realtime merger feed it, aggregate derivation reads snapshots of
// it.
package cache
