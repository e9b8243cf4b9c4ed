// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

package derive

import (
	"sort"
	"time"

	"github.com/alleyehq/alleye/internal/models"
)

// CompletionRate returns the fraction of profiles that completed the
// given content item, in [0, 1]. Profiles without a progress entry for
// the item count as not started. Returns 0 for an empty profile set.
func CompletionRate(profiles []models.Profile, contentID int64) float64 {
	if len(profiles) == 0 {
		return 0
	}
	completed := 0
	for _, p := range profiles {
		if entry, ok := p.Progress[contentID]; ok && entry.Status == models.ProgressCompleted {
			completed++
		}
	}
	return float64(completed) / float64(len(profiles))
}

// ScoreBucket is one histogram bucket of quiz scores.
type ScoreBucket struct {
	// Low is the inclusive lower bound; High the exclusive upper bound.
	// The final bucket's High is inclusive so a perfect score lands in
	// it rather than falling off the histogram.
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Count int     `json:"count"`
}

// ScoreDistribution buckets scores by the given ascending boundaries.
// Boundaries [0, 50, 80, 100] produce buckets [0,50), [50,80), [80,100].
// Scores outside the overall range are dropped. Fewer than two
// boundaries yield no buckets.
func ScoreDistribution(scores []float64, boundaries []float64) []ScoreBucket {
	if len(boundaries) < 2 {
		return nil
	}
	buckets := make([]ScoreBucket, len(boundaries)-1)
	for i := range buckets {
		buckets[i] = ScoreBucket{Low: boundaries[i], High: boundaries[i+1]}
	}
	last := len(buckets) - 1
	for _, score := range scores {
		for i := range buckets {
			if score >= buckets[i].Low && (score < buckets[i].High || (i == last && score == buckets[i].High)) {
				buckets[i].Count++
				break
			}
		}
	}
	return buckets
}

// BucketBy selects the time-series bucket width.
type BucketBy string

const (
	ByDay   BucketBy = "day"
	ByWeek  BucketBy = "week"
	ByMonth BucketBy = "month"
)

// TimePoint is one time-series bucket.
type TimePoint struct {
	Start time.Time `json:"start"`
	Count int       `json:"count"`
}

// TimeSeries buckets analytics events by day, week (ISO, Monday start)
// or month, in UTC. Buckets are returned in ascending order and empty
// buckets between the first and last event are filled with zero counts.
func TimeSeries(events []models.AnalyticsRecord, by BucketBy) []TimePoint {
	if len(events) == 0 {
		return nil
	}
	counts := make(map[time.Time]int)
	var min, max time.Time
	for _, ev := range events {
		start := bucketStart(ev.Timestamp.UTC(), by)
		counts[start]++
		if min.IsZero() || start.Before(min) {
			min = start
		}
		if start.After(max) {
			max = start
		}
	}

	var points []TimePoint
	for cursor := min; !cursor.After(max); cursor = nextBucket(cursor, by) {
		points = append(points, TimePoint{Start: cursor, Count: counts[cursor]})
	}
	return points
}

func bucketStart(ts time.Time, by BucketBy) time.Time {
	switch by {
	case ByWeek:
		day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
		return day.AddDate(0, 0, -offset)
	case ByMonth:
		return time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	}
}

func nextBucket(start time.Time, by BucketBy) time.Time {
	switch by {
	case ByWeek:
		return start.AddDate(0, 0, 7)
	case ByMonth:
		return start.AddDate(0, 1, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}

// AverageQuizScore returns the mean score over quiz-attempt events.
// Events without a score are skipped. Returns 0 when no scored events
// exist.
func AverageQuizScore(events []models.AnalyticsRecord) float64 {
	var sum float64
	var n int
	for _, ev := range events {
		if ev.EventType != models.EventQuizAttempt || ev.Details.Score == nil {
			continue
		}
		sum += *ev.Details.Score
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// TotalWatchTime sums reported watch time across events, in seconds.
func TotalWatchTime(events []models.AnalyticsRecord) int {
	total := 0
	for _, ev := range events {
		if ev.Details.WatchTime != nil {
			total += *ev.Details.WatchTime
		}
	}
	return total
}

// TopPerformers returns the n profiles with the highest points, ties
// broken by name for a stable leaderboard.
func TopPerformers(profiles []models.Profile, n int) []models.Profile {
	ranked := make([]models.Profile, len(profiles))
	copy(ranked, profiles)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Points != ranked[j].Points {
			return ranked[i].Points > ranked[j].Points
		}
		return ranked[i].Name < ranked[j].Name
	})
	if n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}
