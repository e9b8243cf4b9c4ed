// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

// Package models defines the entity shapes shared by the store gateway,
// the session cache and the API surface.
//
// Identifiers are store-assigned and treated as opaque: profiles and
// organizations use string UUIDs, everything else uses int64 sequence ids.
// Fields resolved by a secondary lookup during realtime merging (author
// names, Q&A participant names) are explicit optional fields tagged with
// an enrichment state rather than ad hoc presence checks.
package models
