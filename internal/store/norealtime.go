// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

package store

import (
	"context"
	"sync"

	"github.com/goccy/go-json"
)

// NoRealtime wraps a gateway with a silent change feed. Deployments
// without the realtime channel fall back to bulk loads only; sessions
// simply never receive events.
func NoRealtime(gw Gateway) Gateway {
	return &noRealtime{gw: gw}
}

type noRealtime struct {
	gw Gateway
}

func (n *noRealtime) Read(ctx context.Context, table string, q Query) ([]json.RawMessage, error) {
	return n.gw.Read(ctx, table, q)
}

func (n *noRealtime) Write(ctx context.Context, table string, op WriteOp, payload any) (json.RawMessage, error) {
	return n.gw.Write(ctx, table, op, payload)
}

// Subscribe returns a channel that never fires. Cancel closes it.
func (n *noRealtime) Subscribe(ctx context.Context, table string) (<-chan ChangeEvent, func(), error) {
	events := make(chan ChangeEvent)
	var once sync.Once
	cancel := func() {
		once.Do(func() { close(events) })
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return events, cancel, nil
}
