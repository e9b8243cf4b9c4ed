// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

package lrs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/alleyehq/alleye/internal/logging"
	"github.com/alleyehq/alleye/internal/metrics"
)

// ErrQueueClosed is returned by Submit after Close.
var ErrQueueClosed = errors.New("lrs: queue closed")

// keyPrefix orders queue entries; badger iterates keys
// lexicographically, so zero-padded sequence numbers give FIFO.
const keyPrefix = "stmt:"

// QueueConfig configures the durable statement queue.
type QueueConfig struct {
	// Path is the badger directory. Ignored when InMemory is set.
	Path string

	// InMemory runs badger without disk. For tests.
	InMemory bool

	// SendPerSecond rate-limits outbound statements. 0 disables.
	SendPerSecond float64

	// RetryInterval is the pause after a failed send before the same
	// statement is retried. Default: 5s.
	RetryInterval time.Duration
}

// SendFunc delivers one statement to the LRS.
type SendFunc func(ctx context.Context, st Statement) error

// Queue is a durable FIFO of pending statements. Submit persists and
// returns immediately; a background sender drains in order, retrying
// the front entry on failure so order is preserved across retries and
// restarts.
type Queue struct {
	db      *badger.DB
	seq     *badger.Sequence
	send    SendFunc
	limiter *rate.Limiter
	retry   time.Duration

	notify chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// OpenQueue opens the durable queue and starts the sender.
func OpenQueue(cfg QueueConfig, send SendFunc) (*Queue, error) {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 5 * time.Second
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("lrs: open queue store: %w", err)
	}
	seq, err := db.GetSequence([]byte("seq"), 128)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("lrs: open sequence: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.SendPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.SendPerSecond), 1)
	}

	q := &Queue{
		db:      db,
		seq:     seq,
		send:    send,
		limiter: limiter,
		retry:   cfg.RetryInterval,
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	metrics.LRSQueueDepth.Set(float64(q.Pending()))
	q.wg.Add(1)
	go q.run()
	return q, nil
}

// Submit persists the statement and returns. Delivery happens in the
// background; the caller never waits on the LRS.
func (q *Queue) Submit(st Statement) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.mu.Unlock()

	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("lrs: marshal statement: %w", err)
	}
	n, err := q.seq.Next()
	if err != nil {
		return fmt.Errorf("lrs: next sequence: %w", err)
	}
	key := []byte(fmt.Sprintf("%s%020d", keyPrefix, n))

	if err := q.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, payload)
	}); err != nil {
		return fmt.Errorf("lrs: persist statement: %w", err)
	}

	metrics.LRSQueueDepth.Inc()
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Pending returns the number of queued statements.
func (q *Queue) Pending() int {
	count := 0
	_ = q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek([]byte(keyPrefix)); it.ValidForPrefix([]byte(keyPrefix)); it.Next() {
			count++
		}
		return nil
	})
	return count
}

// Close stops the sender and closes the store. Undelivered statements
// stay persisted for the next open.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	close(q.done)
	q.wg.Wait()
	if err := q.seq.Release(); err != nil {
		logging.Warn().Err(err).Msg("release queue sequence")
	}
	return q.db.Close()
}

func (q *Queue) run() {
	defer q.wg.Done()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-q.done
		cancel()
	}()

	for {
		key, st, ok := q.front()
		if key == nil {
			select {
			case <-q.done:
				return
			case <-q.notify:
				continue
			}
		}
		if !ok {
			// Corrupt entry; drop it rather than wedging the queue.
			logging.Warn().Str("key", string(key)).Msg("unreadable queued statement, dropping")
			_ = q.db.Update(func(txn *badger.Txn) error {
				return txn.Delete(key)
			})
			metrics.LRSQueueDepth.Dec()
			continue
		}

		if q.limiter != nil {
			if err := q.limiter.Wait(ctx); err != nil {
				return
			}
		}

		if err := q.send(ctx, st); err != nil {
			logging.Warn().Err(err).
				Str("statement_id", st.ID).
				Msg("statement delivery failed, will retry")
			metrics.LRSSendFailures.Inc()
			select {
			case <-q.done:
				return
			case <-time.After(q.retry):
			}
			continue
		}
		metrics.LRSStatementsSent.Inc()

		if err := q.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(key)
		}); err != nil {
			logging.Warn().Err(err).Msg("drop delivered statement")
		}
		metrics.LRSQueueDepth.Dec()
	}
}

// front returns the oldest queued statement.
func (q *Queue) front() ([]byte, Statement, bool) {
	var key []byte
	var st Statement
	found := false

	_ = q.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		it.Seek([]byte(keyPrefix))
		if !it.ValidForPrefix([]byte(keyPrefix)) {
			return nil
		}
		item := it.Item()
		key = item.KeyCopy(nil)
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &st); err != nil {
				return err
			}
			found = true
			return nil
		})
	})
	return key, st, found
}
