// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

package merger

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/alleyehq/alleye/internal/cache"
	"github.com/alleyehq/alleye/internal/derive"
	"github.com/alleyehq/alleye/internal/logging"
	"github.com/alleyehq/alleye/internal/materializer"
	"github.com/alleyehq/alleye/internal/metrics"
	"github.com/alleyehq/alleye/internal/models"
	"github.com/alleyehq/alleye/internal/store"
)

// DefaultTables is the full admin subscription set. Role-scoped sessions
// pass a subset.
var DefaultTables = []string{
	store.TableProfiles, store.TableOrganizations, store.TableContent,
	store.TablePlaylists, store.TablePlaylistLinks, store.TableAssignments,
	store.TableNews, store.TableQandA, store.TableAnalytics,
	store.TableCyberTraining,
}

// Config scopes the merger to a session.
type Config struct {
	// OrgID enables client-side visibility filtering for scope-carrying
	// tables. Empty disables filtering (admin session).
	OrgID string

	// Tables to subscribe to. Nil means DefaultTables.
	Tables []string
}

// Notification describes one applied cache mutation, for listeners such
// as the websocket hub.
type Notification struct {
	Table   string
	Op      store.ChangeOp
	Changed bool
}

// Merger owns the realtime half of the session: gateway subscriptions,
// per-id enrichment queues, the command channel and the single applier.
type Merger struct {
	gw     store.Gateway
	cache  *cache.Store
	mat    *materializer.Materializer
	cfg    Config
	pubsub *gochannel.GoChannel
	queues *idQueues

	countersMu sync.Mutex
	counters   map[string]*derive.Counter

	notifyMu sync.RWMutex
	notify   func(Notification)

	cancels   []func()
	pumps     sync.WaitGroup
	applier   sync.WaitGroup
	closeOnce sync.Once
	runCtx    context.Context
	runCancel context.CancelFunc
}

// New creates a merger. Call Start to begin consuming the change feed.
func New(gw store.Gateway, c *cache.Store, mat *materializer.Materializer, cfg Config) *Merger {
	if cfg.Tables == nil {
		cfg.Tables = DefaultTables
	}
	counters := make(map[string]*derive.Counter, len(cfg.Tables))
	for _, table := range cfg.Tables {
		if table == store.TablePlaylistLinks {
			continue
		}
		counters[table] = derive.NewCounter(0)
	}
	return &Merger{
		gw:       gw,
		cache:    c,
		mat:      mat,
		cfg:      cfg,
		queues:   newIDQueues(),
		counters: counters,
	}
}

// SetNotify registers a listener called after every applied command.
// The callback runs on the applier goroutine and must not block.
func (m *Merger) SetNotify(fn func(Notification)) {
	m.notifyMu.Lock()
	m.notify = fn
	m.notifyMu.Unlock()
}

// Start subscribes to every configured table and launches the applier.
// All subscriptions are released by Close on every exit path.
func (m *Merger) Start(ctx context.Context) error {
	m.runCtx, m.runCancel = context.WithCancel(ctx)
	m.pubsub = gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
	}, watermill.NopLogger{})

	commands, err := m.pubsub.Subscribe(m.runCtx, TopicCacheCommands)
	if err != nil {
		return fmt.Errorf("merger: subscribe command channel: %w", err)
	}
	m.applier.Add(1)
	go m.applyLoop(commands)

	for _, table := range m.cfg.Tables {
		events, cancel, err := m.gw.Subscribe(m.runCtx, table)
		if err != nil {
			m.Close()
			return fmt.Errorf("merger: subscribe %s: %w", table, err)
		}
		m.cancels = append(m.cancels, cancel)
		m.pumps.Add(1)
		go m.pump(table, events)
	}

	logging.Info().
		Str("component", "merger").
		Int("tables", len(m.cfg.Tables)).
		Msg("realtime merge started")
	return nil
}

// Close releases every subscription, drains the per-id queues and stops
// the applier. Idempotent.
func (m *Merger) Close() {
	m.closeOnce.Do(func() {
		for _, cancel := range m.cancels {
			cancel()
		}
		m.pumps.Wait()
		m.queues.wait()
		if m.pubsub != nil {
			if err := m.pubsub.Close(); err != nil {
				logging.Warn().Err(err).Msg("command channel close")
			}
		}
		m.applier.Wait()
		if m.runCancel != nil {
			m.runCancel()
		}
	})
}

// SyncCounters resets every incremental counter from a full recount.
// Call after bulk loads.
func (m *Merger) SyncCounters() {
	m.countersMu.Lock()
	defer m.countersMu.Unlock()
	for table, counter := range m.counters {
		counter.Sync(m.cache.Len(table))
	}
}

// Count returns the incremental count for a table, or -1 when the table
// has no counter.
func (m *Merger) Count(table string) int {
	m.countersMu.Lock()
	defer m.countersMu.Unlock()
	counter, ok := m.counters[table]
	if !ok {
		return -1
	}
	return counter.Value()
}

// pump routes one table's change feed into the per-id queues.
func (m *Merger) pump(table string, events <-chan store.ChangeEvent) {
	defer m.pumps.Done()
	for ev := range events {
		ev := ev
		if dropped := m.filterVisibility(&ev); dropped {
			continue
		}
		key := table + "/" + eventKey(ev)
		m.queues.dispatch(key, ev, func(ev store.ChangeEvent) {
			m.publish(m.enrich(m.runCtx, ev))
		})
	}
}

// filterVisibility applies the organization-scope predicate client-side.
// Invisible inserts are dropped; an update that moved a row out of scope
// becomes a delete so the row leaves the cache.
func (m *Merger) filterVisibility(ev *store.ChangeEvent) (dropped bool) {
	if m.cfg.OrgID == "" || ev.Op == store.ChangeDelete || len(ev.New) == 0 {
		return false
	}
	if ev.Table != store.TableContent && ev.Table != store.TablePlaylists {
		return false
	}

	var scoped struct {
		AssignedOrgIDs []string `json:"assigned_org_ids"`
	}
	if err := json.Unmarshal(ev.New, &scoped); err != nil {
		logging.Warn().Err(err).Str("table", ev.Table).Msg("unreadable scope, applying unfiltered")
		return false
	}
	if models.VisibleToOrg(scoped.AssignedOrgIDs, m.cfg.OrgID) {
		return false
	}
	if ev.Op == store.ChangeInsert {
		metrics.RealtimeEventsDropped.WithLabelValues(ev.Table, "out_of_scope").Inc()
		return true
	}
	// Out-of-scope update: remove the row if we hold it.
	ev.Op = store.ChangeDelete
	ev.Old, ev.New = ev.New, nil
	return false
}

func (m *Merger) publish(ev store.ChangeEvent) {
	cmd := Command{Table: ev.Table, Op: ev.Op, New: ev.New, Old: ev.Old}
	msg, err := cmd.message()
	if err != nil {
		logging.Error().Err(err).Str("table", ev.Table).Msg("encode cache command")
		return
	}
	if err := m.pubsub.Publish(TopicCacheCommands, msg); err != nil {
		logging.Warn().Err(err).Str("table", ev.Table).Msg("publish cache command")
	}
}

// applyLoop is the single consumer of the command channel. It performs
// every cache mutation, so mutations are serialized without the cache
// needing cross-table coordination.
func (m *Merger) applyLoop(commands <-chan *message.Message) {
	defer m.applier.Done()
	for msg := range commands {
		cmd, err := decodeCommand(msg)
		if err != nil {
			logging.Warn().Err(err).Msg("malformed cache command, dropping")
			msg.Ack()
			continue
		}
		m.apply(cmd)
		msg.Ack()
	}
}

func (m *Merger) apply(cmd Command) {
	if cmd.Table == store.TablePlaylistLinks {
		changed, err := m.mat.ApplyJunctionEvent(m.runCtx, store.ChangeEvent{
			Op: cmd.Op, Table: cmd.Table, New: cmd.New, Old: cmd.Old,
		})
		if err != nil {
			logging.Warn().Err(err).Msg("junction re-materialization failed")
		}
		m.emit(Notification{Table: store.TablePlaylists, Op: store.ChangeUpdate, Changed: changed})
		return
	}

	// Events for types the session has not loaded are dropped; the bulk
	// load that eventually marks them loaded reads a superset.
	if !m.cache.Loaded(cmd.Table) {
		metrics.RealtimeEventsDropped.WithLabelValues(cmd.Table, "unloaded").Inc()
		return
	}

	var changed bool
	var delta int
	var err error
	switch cmd.Op {
	case store.ChangeInsert:
		changed, err = m.cache.ApplyInsertRaw(cmd.Table, cmd.New)
		delta = +1
	case store.ChangeUpdate:
		changed, err = m.cache.ApplyUpdateRaw(cmd.Table, cmd.New)
	case store.ChangeDelete:
		changed, err = m.cache.ApplyDeleteRaw(cmd.Table, cmd.Old)
		delta = -1
	default:
		logging.Warn().Str("op", string(cmd.Op)).Msg("unknown change op, dropping")
		return
	}
	if err != nil {
		logging.Warn().Err(err).
			Str("table", cmd.Table).
			Str("op", string(cmd.Op)).
			Msg("cache mutation failed, event dropped")
		metrics.RealtimeEventsDropped.WithLabelValues(cmd.Table, "malformed").Inc()
		return
	}
	metrics.RealtimeEventsApplied.WithLabelValues(cmd.Table, string(cmd.Op)).Inc()

	m.countersMu.Lock()
	if counter, ok := m.counters[cmd.Table]; ok {
		counter.Bump(changed, delta)
	}
	m.countersMu.Unlock()

	m.emit(Notification{Table: cmd.Table, Op: cmd.Op, Changed: changed})
}

func (m *Merger) emit(n Notification) {
	m.notifyMu.RLock()
	fn := m.notify
	m.notifyMu.RUnlock()
	if fn != nil {
		fn(n)
	}
}

// eventKey extracts the entity id an event refers to, preferring the new
// row. Keyless events share one queue per table, which degrades to
// table-ordered processing rather than losing ordering entirely.
func eventKey(ev store.ChangeEvent) string {
	for _, raw := range []json.RawMessage{ev.New, ev.Old} {
		if len(raw) == 0 {
			continue
		}
		var row struct {
			ID json.RawMessage `json:"id"`
		}
		if err := json.Unmarshal(raw, &row); err != nil || len(row.ID) == 0 {
			continue
		}
		var s string
		if err := json.Unmarshal(row.ID, &s); err == nil {
			return s
		}
		var n int64
		if err := json.Unmarshal(row.ID, &n); err == nil {
			return fmt.Sprintf("%d", n)
		}
	}
	return ""
}
