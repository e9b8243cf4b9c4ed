// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

// Package derive computes presentation-ready statistics from cache
// snapshots.
//
// Every function here is pure: input snapshots in, numbers out, no I/O
// and no retained state. Recomputation on every render is safe. The one
// stateful type, Counter, is an incremental fast path for entity counts
// that must always agree with a full recount; the merger bumps it only
// when a cache mutation actually changed state.
package derive
