// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

package authz

import (
	"testing"

	"github.com/alleyehq/alleye/internal/loader"
	"github.com/alleyehq/alleye/internal/models"
)

func TestRoleViewAccess(t *testing.T) {
	a, err := New()
	if err != nil {
		t.Fatalf("new authorizer: %v", err)
	}

	tests := []struct {
		role models.Role
		view string
		want bool
	}{
		{models.RoleUser, loader.ViewHome, true},
		{models.RoleUser, loader.ViewLibrary, true},
		{models.RoleUser, loader.ViewTeam, false},
		{models.RoleUser, loader.ViewDashboard, false},
		{models.RoleLead, loader.ViewTeam, true},
		{models.RoleLead, loader.ViewHome, true},
		{models.RoleLead, loader.ViewAnalytics, false},
		{models.RoleCISO, loader.ViewDashboard, true},
		{models.RoleCISO, loader.ViewAnalytics, true},
		{models.RoleCISO, loader.ViewTeam, true},
		{models.RoleCISO, loader.ViewContent, false},
		{models.RoleAdmin, loader.ViewContent, true},
		{models.RoleAdmin, loader.ViewOrganizations, true},
		{models.RoleAdmin, loader.ViewHome, true},
	}
	for _, tt := range tests {
		got, err := a.CanAccessView(tt.role, tt.view)
		if err != nil {
			t.Fatalf("enforce %s/%s: %v", tt.role, tt.view, err)
		}
		if got != tt.want {
			t.Errorf("CanAccessView(%s, %s) = %v, want %v", tt.role, tt.view, got, tt.want)
		}
	}
}

func TestViewsListPerRole(t *testing.T) {
	a, err := New()
	if err != nil {
		t.Fatalf("new authorizer: %v", err)
	}

	userViews, err := a.Views(models.RoleUser)
	if err != nil {
		t.Fatalf("views: %v", err)
	}
	if len(userViews) != 5 {
		t.Errorf("user views = %v, want 5 entries", userViews)
	}

	adminViews, err := a.Views(models.RoleAdmin)
	if err != nil {
		t.Fatalf("views: %v", err)
	}
	if len(adminViews) != 12 {
		t.Errorf("admin views = %v, want all 12", adminViews)
	}
}
