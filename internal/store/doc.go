// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

// Package store defines the Remote Store Gateway boundary: read queries
// with composable filters, write operations, and a per-table
// subscribe-to-changes primitive.
//
// The relational backend itself is an external collaborator. This package
// ships two implementations of the Gateway interface:
//
//   - MemStore, a deterministic in-memory store with a change feed, used
//     by tests and by mock mode, and
//   - Client, a thin PostgREST-style HTTP client with a websocket
//     realtime channel for hosted backends.
//
// Records cross the boundary as raw JSON; the loader decodes them into
// typed slices. Subscriptions are coarse-grained (whole table): callers
// filter events client-side before applying them.
package store
