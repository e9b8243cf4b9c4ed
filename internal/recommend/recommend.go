// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

// Package recommend calls the external recommendation service to rank
// training content for a user. Failures never reach the cache layer:
// any service problem degrades to an empty recommendation list.
package recommend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/alleyehq/alleye/internal/logging"
	"github.com/alleyehq/alleye/internal/metrics"
	"github.com/alleyehq/alleye/internal/models"
)

// MaxRecommendations caps the carousel size.
const MaxRecommendations = 4

// Recommendation pairs a content item with the service's reason for
// suggesting it.
type Recommendation struct {
	Content models.Content `json:"content"`
	Reason  string         `json:"reason"`
}

// Config configures the recommendation client.
type Config struct {
	// Endpoint is the recommendation service URL.
	Endpoint string

	// APIKey authenticates requests. Optional.
	APIKey string

	// Timeout bounds each request. Default: 20s.
	Timeout time.Duration

	// CacheTTL is how long a user's recommendations are reused before a
	// fresh call. Default: 10m.
	CacheTTL time.Duration

	// BreakerOpenTimeout is how long the breaker stays open after
	// tripping. Default: 1m.
	BreakerOpenTimeout time.Duration
}

type pick struct {
	ContentID int64  `json:"content_id"`
	Reason    string `json:"reason"`
}

type cachedRecs struct {
	picks   []pick
	expires time.Time
}

// Client is the recommendation service client. Safe for concurrent use.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]pick]

	mu    sync.Mutex
	cache map[string]cachedRecs
}

// NewClient creates a recommendation client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	if cfg.BreakerOpenTimeout <= 0 {
		cfg.BreakerOpenTimeout = time.Minute
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker[[]pick](gobreaker.Settings{
			Name:    "recommend",
			Timeout: cfg.BreakerOpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
		cache: make(map[string]cachedRecs),
	}
}

// Fetch returns up to MaxRecommendations content items the user has not
// completed, with reasons. An empty catalog, a service error or an open
// breaker all yield an empty list; errors are logged, never returned,
// so the caller's view renders an empty carousel instead of failing.
func (c *Client) Fetch(ctx context.Context, userID string, progress models.Progress, catalog []models.Content) []Recommendation {
	candidates := notCompleted(progress, catalog)
	if len(candidates) == 0 {
		metrics.RecommendationRequests.WithLabelValues("skipped").Inc()
		return nil
	}

	picks, ok := c.cached(userID)
	if ok {
		metrics.RecommendationRequests.WithLabelValues("cache_hit").Inc()
	} else {
		var err error
		picks, err = c.breaker.Execute(func() ([]pick, error) {
			return c.request(ctx, progress, candidates)
		})
		if err != nil {
			logging.Warn().Err(err).
				Str("user_id", userID).
				Msg("recommendation service unavailable, returning empty list")
			metrics.RecommendationRequests.WithLabelValues("error").Inc()
			return nil
		}
		metrics.RecommendationRequests.WithLabelValues("served").Inc()
		c.store(userID, picks)
	}

	byID := make(map[int64]models.Content, len(candidates))
	for _, item := range candidates {
		byID[item.ID] = item
	}

	recs := make([]Recommendation, 0, MaxRecommendations)
	for _, p := range picks {
		item, ok := byID[p.ContentID]
		if !ok {
			// The service hallucinated an id outside the catalog.
			continue
		}
		recs = append(recs, Recommendation{Content: item, Reason: p.Reason})
		if len(recs) == MaxRecommendations {
			break
		}
	}
	return recs
}

// Invalidate drops a user's cached recommendations, e.g. after a
// completion changes their progress.
func (c *Client) Invalidate(userID string) {
	c.mu.Lock()
	delete(c.cache, userID)
	c.mu.Unlock()
}

func (c *Client) cached(userID string) ([]pick, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[userID]
	if !ok || time.Now().After(entry.expires) {
		return nil, false
	}
	return entry.picks, true
}

func (c *Client) store(userID string, picks []pick) {
	c.mu.Lock()
	c.cache[userID] = cachedRecs{picks: picks, expires: time.Now().Add(c.cfg.CacheTTL)}
	c.mu.Unlock()
}

type requestBody struct {
	Completed  []completedItem `json:"completed"`
	Candidates []candidateItem `json:"candidates"`
	Limit      int             `json:"limit"`
}

type completedItem struct {
	ContentID int64    `json:"content_id"`
	Score     *float64 `json:"score,omitempty"`
}

type candidateItem struct {
	ID         int64    `json:"id"`
	Title      string   `json:"title"`
	Category   string   `json:"category,omitempty"`
	Difficulty string   `json:"difficulty,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

type responseBody struct {
	Recommendations []pick `json:"recommendations"`
}

func (c *Client) request(ctx context.Context, progress models.Progress, candidates []models.Content) ([]pick, error) {
	body := requestBody{Limit: MaxRecommendations}
	for id, entry := range progress {
		if entry.Status == models.ProgressCompleted {
			body.Completed = append(body.Completed, completedItem{ContentID: id, Score: entry.Score})
		}
	}
	for _, item := range candidates {
		body.Candidates = append(body.Candidates, candidateItem{
			ID:         item.ID,
			Title:      item.Title,
			Category:   item.Category,
			Difficulty: item.Difficulty,
			Tags:       item.Tags,
		})
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("recommend: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("recommend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("recommend: status %d: %s", resp.StatusCode, string(msg))
	}

	var decoded responseBody
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("recommend: decode response: %w", err)
	}
	return decoded.Recommendations, nil
}

// notCompleted filters the catalog to items the user has not completed.
func notCompleted(progress models.Progress, catalog []models.Content) []models.Content {
	out := make([]models.Content, 0, len(catalog))
	for _, item := range catalog {
		if entry, ok := progress[item.ID]; ok && entry.Status == models.ProgressCompleted {
			continue
		}
		out = append(out, item)
	}
	return out
}
