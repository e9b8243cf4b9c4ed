// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

package lrs

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
)

// apiVersion is the xAPI version header every request carries.
const apiVersion = "1.0.3"

// ClientConfig configures the LRS HTTP client.
type ClientConfig struct {
	// Endpoint is the LRS base URL, e.g. https://lrs.example.com/xapi.
	Endpoint string

	// Username and Password for HTTP basic auth.
	Username string
	Password string

	// Timeout bounds each request. Default: 15s.
	Timeout time.Duration
}

// Client talks to an xAPI LRS. Send is used by the queue; analytics
// views use QueryStatements directly.
type Client struct {
	cfg  ClientConfig
	http *http.Client
}

// NewClient creates an LRS client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("lrs: endpoint required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}, nil
}

// Send delivers one statement. Satisfies SendFunc.
func (c *Client) Send(ctx context.Context, st Statement) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("lrs: marshal statement: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.Endpoint, "/")+"/statements", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("lrs: send statement: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("lrs: send statement: status %d: %s", resp.StatusCode, string(msg))
	}
	return nil
}

// QueryParams filters a statement query. Zero values are omitted.
type QueryParams struct {
	// AgentMbox filters by actor mailbox, e.g. mailto:ada@example.com.
	AgentMbox string

	// ActivityID filters by activity IRI.
	ActivityID string

	Since time.Time
	Until time.Time
	Limit int
}

type statementResult struct {
	Statements []Statement `json:"statements"`
}

// QueryStatements returns statements newest-first.
func (c *Client) QueryStatements(ctx context.Context, p QueryParams) ([]Statement, error) {
	params := url.Values{}
	if p.AgentMbox != "" {
		agent, err := json.Marshal(Agent{ObjectType: "Agent", Mbox: p.AgentMbox})
		if err != nil {
			return nil, fmt.Errorf("lrs: marshal agent filter: %w", err)
		}
		params.Set("agent", string(agent))
	}
	if p.ActivityID != "" {
		params.Set("activity", p.ActivityID)
	}
	if !p.Since.IsZero() {
		params.Set("since", p.Since.UTC().Format(time.RFC3339))
	}
	if !p.Until.IsZero() {
		params.Set("until", p.Until.UTC().Format(time.RFC3339))
	}
	if p.Limit > 0 {
		params.Set("limit", strconv.Itoa(p.Limit))
	}

	u := strings.TrimRight(c.cfg.Endpoint, "/") + "/statements"
	if encoded := params.Encode(); encoded != "" {
		u += "?" + encoded
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lrs: query statements: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("lrs: query statements: status %d: %s", resp.StatusCode, string(msg))
	}

	var result statementResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("lrs: decode statements: %w", err)
	}
	return result.Statements, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Experience-API-Version", apiVersion)
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}
}
