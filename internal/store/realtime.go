// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/alleyehq/alleye/internal/logging"
)

// heartbeatInterval keeps the realtime socket alive. The hosted backend
// drops connections idle for more than a minute.
const heartbeatInterval = 30 * time.Second

// phoenixMessage is the wire frame of the realtime channel protocol.
type phoenixMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref"`
}

// changePayload is the postgres_changes event payload.
type changePayload struct {
	Data struct {
		Type   string          `json:"type"` // INSERT, UPDATE, DELETE
		Table  string          `json:"table"`
		Record json.RawMessage `json:"record"`
		Old    json.RawMessage `json:"old_record"`
	} `json:"data"`
}

// Subscribe implements Gateway. It opens one websocket connection per
// subscription joining the table's whole-table change topic. Events for
// rows outside the caller's organization scope are delivered as-is; the
// merger filters client-side.
func (c *Client) Subscribe(ctx context.Context, table string) (<-chan ChangeEvent, func(), error) {
	wsURL := websocketURL(c.cfg.BaseURL) + "/realtime/v1/websocket?apikey=" + c.cfg.APIKey + "&vsn=1.0.0"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("store subscribe %s: dial: %w", table, err)
	}

	topic := "realtime:public:" + table
	join := phoenixMessage{
		Topic:   topic,
		Event:   "phx_join",
		Payload: json.RawMessage(`{"config":{"postgres_changes":[{"event":"*","schema":"public","table":"` + table + `"}]}}`),
		Ref:     "1",
	}
	if err := conn.WriteJSON(join); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("store subscribe %s: join: %w", table, err)
	}

	events := make(chan ChangeEvent, subscriberBuffer)
	done := make(chan struct{})

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			conn.Close()
		})
	}

	go heartbeatLoop(conn, done)
	go func() {
		defer close(events)
		defer cancel()
		for {
			var msg phoenixMessage
			if err := conn.ReadJSON(&msg); err != nil {
				select {
				case <-done:
				default:
					logging.Warn().Err(err).Str("table", table).Msg("realtime channel closed")
				}
				return
			}
			if msg.Event != "postgres_changes" {
				continue
			}
			var payload changePayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				logging.Warn().Err(err).Str("table", table).Msg("malformed change payload, skipping")
				continue
			}
			ev := ChangeEvent{
				Op:    ChangeOp(payload.Data.Type),
				Table: table,
				New:   payload.Data.Record,
				Old:   payload.Data.Old,
			}
			select {
			case events <- ev:
			case <-done:
				return
			default:
				logging.Warn().Str("table", table).Msg("realtime subscriber full, dropping event")
			}
		}
	}()

	return events, cancel, nil
}

func heartbeatLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	ref := 2
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			hb := phoenixMessage{
				Topic:   "phoenix",
				Event:   "heartbeat",
				Payload: json.RawMessage(`{}`),
				Ref:     fmt.Sprintf("%d", ref),
			}
			ref++
			if err := conn.WriteJSON(hb); err != nil {
				return
			}
		}
	}
}

func websocketURL(base string) string {
	base = strings.TrimRight(base, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return "wss://" + base
	}
}
