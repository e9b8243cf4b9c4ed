// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

package derive

import (
	"github.com/alleyehq/alleye/internal/cache"
	"github.com/alleyehq/alleye/internal/models"
)

// DashboardStats is the headline number block of the admin dashboard.
type DashboardStats struct {
	TotalUsers     int     `json:"total_users"`
	TotalContent   int     `json:"total_content"`
	TotalPlaylists int     `json:"total_playlists"`
	TotalNews      int     `json:"total_news"`
	TotalQandA     int     `json:"total_qanda"`
	OpenQuestions  int     `json:"open_questions"`
	Completions    int     `json:"completions"`
	AvgQuizScore   float64 `json:"avg_quiz_score"`
}

// Stats recomputes the dashboard headline numbers from the cache. Counts
// are collection lengths; the incremental counters the merger maintains
// are an optimization over this recount, never a replacement.
func Stats(c *cache.Store) DashboardStats {
	events := c.Analytics.Snapshot()
	completions := 0
	for _, ev := range events {
		if ev.EventType == models.EventComplete {
			completions++
		}
	}
	open := 0
	for _, q := range c.QandA.Snapshot() {
		if q.Answer == nil {
			open++
		}
	}
	return DashboardStats{
		TotalUsers:     c.Profiles.Len(),
		TotalContent:   c.Content.Len(),
		TotalPlaylists: c.Playlists.Len(),
		TotalNews:      c.News.Len(),
		TotalQandA:     c.QandA.Len(),
		OpenQuestions:  open,
		Completions:    completions,
		AvgQuizScore:   AverageQuizScore(events),
	}
}

// Counter is an incrementally-adjusted entity count. The merger bumps it
// by the outcome of each cache mutation; Sync restores it from a
// recount after bulk loads. It is not safe for concurrent use; the
// merger's single apply loop owns it.
type Counter struct {
	n int
}

// NewCounter starts a counter at n.
func NewCounter(n int) *Counter { return &Counter{n: n} }

// Value returns the current count.
func (c *Counter) Value() int { return c.n }

// Sync resets the counter to a full recount.
func (c *Counter) Sync(n int) { c.n = n }

// Bump adjusts the counter by delta only when the corresponding cache
// mutation reported a change. A no-op insert or a dropped update must
// not move the counter, or it diverges from the recount.
func (c *Counter) Bump(changed bool, delta int) {
	if changed {
		c.n += delta
	}
}
