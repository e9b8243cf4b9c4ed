// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

package services

import "context"

// Hub matches *websocket.Hub's Run method without importing the
// websocket package.
type Hub interface {
	Run(ctx context.Context) error
}

// HubService supervises the websocket hub. Hub.Run already follows the
// suture pattern, so the wrapper only contributes a name.
type HubService struct {
	hub Hub
}

// NewHubService wraps a websocket hub.
func NewHubService(hub Hub) *HubService {
	return &HubService{hub: hub}
}

// Serve implements suture.Service.
func (s *HubService) Serve(ctx context.Context) error {
	return s.hub.Run(ctx)
}

func (s *HubService) String() string { return "websocket-hub" }
