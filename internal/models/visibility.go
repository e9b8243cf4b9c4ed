// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

package models

// EnrichState marks whether denormalized display fields on a record have
// been resolved. Records enter the cache as EnrichPending when their
// secondary lookup has not run, and EnrichFailed when the lookup errored
// and a placeholder value was substituted.
type EnrichState string

const (
	EnrichDone    EnrichState = ""
	EnrichPending EnrichState = "pending"
	EnrichFailed  EnrichState = "failed"
)

// UnknownName is the placeholder substituted when an enrichment lookup
// fails. The primary mutation still applies; availability is favored
// over completeness of denormalized fields.
const UnknownName = "Unknown"

// VisibleToOrg is the single organization-visibility predicate used by
// every view filter and by client-side realtime event filtering.
//
// An entity with assignment scope is visible to organization orgID iff
// the scope is empty (nil and zero-length are treated identically,
// meaning "visible to all organizations") or contains orgID.
func VisibleToOrg(scope []string, orgID string) bool {
	if len(scope) == 0 {
		return true
	}
	for _, id := range scope {
		if id == orgID {
			return true
		}
	}
	return false
}

// ContentVisibleToOrg applies the visibility predicate to a content item.
func ContentVisibleToOrg(c Content, orgID string) bool {
	return VisibleToOrg(c.AssignedOrgIDs, orgID)
}

// PlaylistVisibleToOrg applies the visibility predicate to a playlist.
func PlaylistVisibleToOrg(p Playlist, orgID string) bool {
	return VisibleToOrg(p.AssignedOrgIDs, orgID)
}
