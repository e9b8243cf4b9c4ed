// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

// Package merger keeps the session cache consistent with the remote
// store's change feed.
//
// One subscription per table pumps change events into per-entity-id
// queues. A queue runs enrichment (secondary lookups for denormalized
// display fields) strictly in arrival order for its id, so commit order
// is preserved per id even when lookups have uneven latency. Enriched
// events become commands on an in-process Watermill channel; a single
// applier consumes them and performs the cache mutation, bumps the
// incremental counters by the mutation's actual outcome, and notifies
// listeners. Junction-table events are delegated to the materializer
// instead of being cached.
//
// Events for rows outside the session's organization scope are filtered
// client-side before apply; the gateway's subscriptions are whole-table.
package merger
