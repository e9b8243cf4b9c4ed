// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

// Package authz maps dashboard roles to the views they may open, using
// a Casbin RBAC model with downward role inheritance
// (Admin > CISO > Lead > User).
package authz

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/alleyehq/alleye/internal/models"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Authorizer answers role-to-view access questions.
type Authorizer struct {
	enforcer *casbin.SyncedEnforcer
}

// New creates an authorizer from the embedded model and policy.
func New() (*Authorizer, error) {
	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("authz: load model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("authz: create enforcer: %w", err)
	}
	if err := loadPolicy(enforcer, embeddedPolicy); err != nil {
		return nil, err
	}
	return &Authorizer{enforcer: enforcer}, nil
}

func loadPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		switch parts[0] {
		case "p":
			if len(parts) >= 4 {
				if _, err := enforcer.AddPolicy(parts[1], parts[2], parts[3]); err != nil {
					return fmt.Errorf("authz: add policy %v: %w", parts[1:], err)
				}
			}
		case "g":
			if len(parts) >= 3 {
				if _, err := enforcer.AddGroupingPolicy(parts[1], parts[2]); err != nil {
					return fmt.Errorf("authz: add grouping %v: %w", parts[1:], err)
				}
			}
		}
	}
	return nil
}

// CanAccessView reports whether the role may open the view.
func (a *Authorizer) CanAccessView(role models.Role, view string) (bool, error) {
	allowed, err := a.enforcer.Enforce(string(role), view, "view")
	if err != nil {
		return false, fmt.Errorf("authz: enforce: %w", err)
	}
	return allowed, nil
}

// Views returns every view the role may open.
func (a *Authorizer) Views(role models.Role) ([]string, error) {
	perms, err := a.enforcer.GetImplicitPermissionsForUser(string(role))
	if err != nil {
		return nil, fmt.Errorf("authz: implicit permissions: %w", err)
	}
	seen := make(map[string]struct{}, len(perms))
	views := make([]string, 0, len(perms))
	for _, p := range perms {
		if len(p) < 2 {
			continue
		}
		if _, dup := seen[p[1]]; dup {
			continue
		}
		seen[p[1]] = struct{}{}
		views = append(views, p[1])
	}
	return views, nil
}
