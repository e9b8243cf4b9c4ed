// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

package merger

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/alleyehq/alleye/internal/logging"
	"github.com/alleyehq/alleye/internal/metrics"
	"github.com/alleyehq/alleye/internal/models"
	"github.com/alleyehq/alleye/internal/store"
)

// enrichTimeout bounds one secondary lookup.
const enrichTimeout = 10 * time.Second

// idQueues serializes event processing per entity key. Events for the
// same key queue behind the in-flight one; distinct keys run
// independently, which is the only interleaving the cache tolerates.
type idQueues struct {
	mu      sync.Mutex
	pending map[string][]store.ChangeEvent
	running map[string]bool
	wg      sync.WaitGroup
}

func newIDQueues() *idQueues {
	return &idQueues{
		pending: make(map[string][]store.ChangeEvent),
		running: make(map[string]bool),
	}
}

// dispatch enqueues ev under key and starts a drainer if none is
// running for that key.
func (q *idQueues) dispatch(key string, ev store.ChangeEvent, process func(store.ChangeEvent)) {
	q.mu.Lock()
	q.pending[key] = append(q.pending[key], ev)
	if q.running[key] {
		q.mu.Unlock()
		return
	}
	q.running[key] = true
	q.wg.Add(1)
	q.mu.Unlock()

	go func() {
		defer q.wg.Done()
		for {
			q.mu.Lock()
			list := q.pending[key]
			if len(list) == 0 {
				q.running[key] = false
				delete(q.pending, key)
				q.mu.Unlock()
				return
			}
			ev := list[0]
			q.pending[key] = list[1:]
			q.mu.Unlock()
			process(ev)
		}
	}()
}

// wait blocks until every drainer has finished. Used on close.
func (q *idQueues) wait() { q.wg.Wait() }

// enrich resolves denormalized display fields for tables that carry
// them. A failed lookup substitutes the placeholder and marks the
// record; the event is never dropped over enrichment.
func (m *Merger) enrich(ctx context.Context, ev store.ChangeEvent) store.ChangeEvent {
	if ev.Op == store.ChangeDelete || len(ev.New) == 0 {
		return ev
	}

	ctx, cancel := context.WithTimeout(ctx, enrichTimeout)
	defer cancel()

	switch ev.Table {
	case store.TableNews:
		return m.enrichNews(ctx, ev)
	case store.TableQandA:
		return m.enrichQandA(ctx, ev)
	}
	return ev
}

func (m *Merger) enrichNews(ctx context.Context, ev store.ChangeEvent) store.ChangeEvent {
	var item models.NewsItem
	if err := json.Unmarshal(ev.New, &item); err != nil {
		logging.Warn().Err(err).Msg("malformed news event, applying unenriched")
		return ev
	}
	if item.AuthorID == "" {
		return ev
	}

	profile, err := m.lookupProfile(ctx, item.AuthorID)
	if err != nil {
		logging.Warn().Err(err).
			Str("author_id", item.AuthorID).
			Msg("news author lookup failed, substituting placeholder")
		metrics.EnrichmentFailures.WithLabelValues(store.TableNews).Inc()
		item.AuthorName = models.UnknownName
		item.Enrichment = models.EnrichFailed
	} else {
		item.AuthorName = profile.Name
		item.Enrichment = models.EnrichDone
	}
	return replaceNew(ev, item)
}

func (m *Merger) enrichQandA(ctx context.Context, ev store.ChangeEvent) store.ChangeEvent {
	var item models.QAndAItem
	if err := json.Unmarshal(ev.New, &item); err != nil {
		logging.Warn().Err(err).Msg("malformed qanda event, applying unenriched")
		return ev
	}

	item.Enrichment = models.EnrichDone
	if item.UserID != "" {
		profile, err := m.lookupProfile(ctx, item.UserID)
		if err != nil {
			logging.Warn().Err(err).
				Str("user_id", item.UserID).
				Msg("qanda asker lookup failed, substituting placeholder")
			metrics.EnrichmentFailures.WithLabelValues(store.TableQandA).Inc()
			item.UserName = models.UnknownName
			item.Enrichment = models.EnrichFailed
		} else {
			item.UserName = profile.Name
			item.UserAvatarURL = profile.AvatarURL
		}
	}
	if item.AnsweredBy != "" {
		profile, err := m.lookupProfile(ctx, item.AnsweredBy)
		if err != nil {
			logging.Warn().Err(err).
				Str("admin_id", item.AnsweredBy).
				Msg("qanda admin lookup failed, substituting placeholder")
			metrics.EnrichmentFailures.WithLabelValues(store.TableQandA).Inc()
			item.AdminName = models.UnknownName
			item.Enrichment = models.EnrichFailed
		} else {
			item.AdminName = profile.Name
		}
	}
	return replaceNew(ev, item)
}

func (m *Merger) lookupProfile(ctx context.Context, id string) (models.Profile, error) {
	records, err := m.gw.Read(ctx, store.TableProfiles, store.Query{
		Filters: []store.Cond{store.Eq("id", id)},
		Limit:   1,
	})
	if err != nil {
		return models.Profile{}, err
	}
	if len(records) == 0 {
		return models.Profile{}, store.ErrNotFound
	}
	var profile models.Profile
	if err := json.Unmarshal(records[0], &profile); err != nil {
		return models.Profile{}, err
	}
	return profile, nil
}

func replaceNew(ev store.ChangeEvent, record any) store.ChangeEvent {
	raw, err := json.Marshal(record)
	if err != nil {
		logging.Warn().Err(err).Msg("re-marshal enriched record failed, applying unenriched")
		return ev
	}
	ev.New = raw
	return ev
}
