// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/alleyehq/alleye/internal/logging"
	"github.com/alleyehq/alleye/internal/metrics"
)

// ClientConfig configures the hosted-backend gateway client.
type ClientConfig struct {
	// BaseURL is the backend root, e.g. https://project.example.co.
	BaseURL string

	// APIKey is sent as both the apikey header and the bearer token.
	APIKey string

	// Timeout bounds each HTTP request. Default: 15s.
	Timeout time.Duration

	// ReadsPerSecond rate-limits outbound reads. 0 disables limiting.
	ReadsPerSecond float64

	// Burst is the rate limiter burst. 0 derives it from
	// ReadsPerSecond.
	Burst int

	// BreakerOpenTimeout is how long the read breaker stays open after
	// tripping. Default: 30s.
	BreakerOpenTimeout time.Duration
}

// Client is a PostgREST-style Gateway implementation. Reads are
// breaker-guarded and rate-limited; the realtime channel lives in
// realtime.go.
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]json.RawMessage]
	limiter *rate.Limiter
}

// NewClient creates a gateway client for a hosted backend.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("store: base URL required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.BreakerOpenTimeout <= 0 {
		cfg.BreakerOpenTimeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.ReadsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = int(cfg.ReadsPerSecond) + 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.ReadsPerSecond), burst)
	}

	breaker := gobreaker.NewCircuitBreaker[[]json.RawMessage](gobreaker.Settings{
		Name:    "store-read",
		Timeout: cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("component", "store").
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		limiter: limiter,
	}, nil
}

// Read implements Gateway.
func (c *Client) Read(ctx context.Context, table string, q Query) ([]json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	start := time.Now()
	records, err := c.breaker.Execute(func() ([]json.RawMessage, error) {
		return c.read(ctx, table, q)
	})
	if err == nil {
		metrics.StoreRequestDuration.WithLabelValues(table, "read").Observe(time.Since(start).Seconds())
	}
	return records, err
}

func (c *Client) read(ctx context.Context, table string, q Query) ([]json.RawMessage, error) {
	u := fmt.Sprintf("%s/rest/v1/%s?%s", strings.TrimRight(c.cfg.BaseURL, "/"), table, encodeQuery(q))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("store read %s: %w", table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("store read %s: status %d: %s", table, resp.StatusCode, string(body))
	}

	var records []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("store read %s: decode: %w", table, err)
	}
	return records, nil
}

// Write implements Gateway.
func (c *Client) Write(ctx context.Context, table string, op WriteOp, payload any) (json.RawMessage, error) {
	start := time.Now()
	record, err := c.write(ctx, table, op, payload)
	if err == nil {
		metrics.StoreRequestDuration.WithLabelValues(table, string(op)).Observe(time.Since(start).Seconds())
	}
	return record, err
}

func (c *Client) write(ctx context.Context, table string, op WriteOp, payload any) (json.RawMessage, error) {
	base := fmt.Sprintf("%s/rest/v1/%s", strings.TrimRight(c.cfg.BaseURL, "/"), table)

	var (
		method string
		target = base
		body   io.Reader
	)

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("store write %s: marshal: %w", table, err)
	}

	switch op {
	case WriteInsert:
		method = http.MethodPost
		body = bytes.NewReader(raw)
	case WriteUpdate, WriteDelete:
		var row map[string]any
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, fmt.Errorf("store write %s: payload is not an object: %w", table, err)
		}
		key := rowKey(row)
		if key == "" {
			return nil, fmt.Errorf("store write %s: payload missing id", table)
		}
		target = base + "?id=eq." + url.QueryEscape(key)
		if op == WriteUpdate {
			method = http.MethodPatch
			body = bytes.NewReader(raw)
		} else {
			method = http.MethodDelete
		}
	default:
		return nil, fmt.Errorf("store: unknown write op %q", op)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)
	req.Header.Set("Prefer", "return=representation")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("store write %s: %w", table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("store write %s: status %d: %s", table, resp.StatusCode, string(msg))
	}
	if op == WriteDelete {
		return nil, nil
	}

	// PostgREST returns an array even for single-row writes.
	var records []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("store write %s: decode: %w", table, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("apikey", c.cfg.APIKey)
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
}

// encodeQuery renders a Query as PostgREST query parameters.
func encodeQuery(q Query) string {
	params := url.Values{}
	params.Set("select", "*")

	for _, cond := range q.Filters {
		col, expr := encodeCond(cond)
		params.Add(col, expr)
	}
	if q.OrderBy != "" {
		dir := "asc"
		if q.Descending {
			dir = "desc"
		}
		params.Set("order", q.OrderBy+"."+dir)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	return params.Encode()
}

// encodeCond renders one condition as a (key, value) query pair.
func encodeCond(c Cond) (string, string) {
	switch c.Op {
	case OpEq:
		return c.Column, "eq." + literal(c.Value)
	case OpIn:
		parts := make([]string, 0, len(c.Values))
		for _, v := range c.Values {
			parts = append(parts, literal(v))
		}
		return c.Column, "in.(" + strings.Join(parts, ",") + ")"
	case OpIsNull:
		return c.Column, "is.null"
	case OpContains:
		return c.Column, "cs.{" + literal(c.Value) + "}"
	case OpOr:
		parts := make([]string, 0, len(c.Nested))
		for _, nested := range c.Nested {
			col, expr := encodeCond(nested)
			parts = append(parts, col+"."+expr)
		}
		return "or", "(" + strings.Join(parts, ",") + ")"
	default:
		return c.Column, ""
	}
}

func literal(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
