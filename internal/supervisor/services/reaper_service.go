// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

package services

import (
	"context"
	"time"

	"github.com/alleyehq/alleye/internal/logging"
	"github.com/alleyehq/alleye/internal/metrics"
)

// SessionManager is the slice of *session.Manager the reaper needs.
type SessionManager interface {
	CloseIdle(maxIdle time.Duration) int
	Len() int
}

// ReaperService periodically closes sessions with no request activity.
// Idle sessions hold cache memory and realtime subscriptions; closing
// them releases both, and the next request from that user opens a fresh
// session that re-bulk-loads.
type ReaperService struct {
	manager  SessionManager
	maxIdle  time.Duration
	interval time.Duration
}

// NewReaperService creates a session reaper. interval defaults to a
// tenth of maxIdle, floored at one minute.
func NewReaperService(manager SessionManager, maxIdle time.Duration) *ReaperService {
	interval := maxIdle / 10
	if interval < time.Minute {
		interval = time.Minute
	}
	return &ReaperService{manager: manager, maxIdle: maxIdle, interval: interval}
}

// Serve implements suture.Service.
func (s *ReaperService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := s.manager.CloseIdle(s.maxIdle); n > 0 {
				logging.Info().
					Int("closed", n).
					Dur("max_idle", s.maxIdle).
					Msg("idle sessions reaped")
			}
			metrics.SessionsActive.Set(float64(s.manager.Len()))
		}
	}
}

func (s *ReaperService) String() string { return "session-reaper" }
