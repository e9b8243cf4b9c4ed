// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alleyehq/alleye/internal/merger"
	"github.com/alleyehq/alleye/internal/models"
	"github.com/alleyehq/alleye/internal/store"
)

// Manager tracks live sessions by id and by user. One session per user;
// a second login replaces and closes the first.
type Manager struct {
	gw        store.Gateway
	feedLimit int

	mu       sync.RWMutex
	byID     map[string]*Session
	byUserID map[string]*Session
	notify   func(merger.Notification)
	closed   bool
}

// NewManager creates a session manager over one gateway.
func NewManager(gw store.Gateway, feedLimit int) *Manager {
	return &Manager{
		gw:        gw,
		feedLimit: feedLimit,
		byID:      make(map[string]*Session),
		byUserID:  make(map[string]*Session),
	}
}

// SetNotify registers a listener every new session's merger reports
// applied mutations to. Set before serving; existing sessions are not
// rewired.
func (m *Manager) SetNotify(fn func(merger.Notification)) {
	m.mu.Lock()
	m.notify = fn
	m.mu.Unlock()
}

// Open creates and starts a session for the profile. An existing
// session for the same user is closed and replaced.
func (m *Manager) Open(ctx context.Context, profile models.Profile) (*Session, error) {
	s := New(Config{Gateway: m.gw, Profile: profile, FeedLimit: m.feedLimit})
	m.mu.RLock()
	notify := m.notify
	m.mu.RUnlock()
	if notify != nil {
		s.Merger.SetNotify(notify)
	}
	if err := s.Start(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		s.Close()
		return nil, fmt.Errorf("session manager closed")
	}
	if prev, ok := m.byUserID[profile.ID]; ok {
		delete(m.byID, prev.ID)
		defer prev.Close()
	}
	m.byID[s.ID] = s
	m.byUserID[profile.ID] = s
	m.mu.Unlock()
	return s, nil
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[id]
	return s, ok
}

// GetByUser returns the user's live session.
func (m *Manager) GetByUser(userID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byUserID[userID]
	return s, ok
}

// CloseSession tears down one session.
func (m *Manager) CloseSession(id string) {
	m.mu.Lock()
	s, ok := m.byID[id]
	if ok {
		delete(m.byID, id)
		delete(m.byUserID, s.Profile.ID)
	}
	m.mu.Unlock()
	if ok {
		s.Close()
	}
}

// CloseIdle closes every session with no activity for maxIdle or
// longer and returns how many were closed.
func (m *Manager) CloseIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	m.mu.Lock()
	var idle []*Session
	for _, s := range m.byID {
		if s.LastSeen().Before(cutoff) {
			delete(m.byID, s.ID)
			delete(m.byUserID, s.Profile.ID)
			idle = append(idle, s)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.Close()
	}
	return len(idle)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

// Close tears down every session and rejects new ones.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	sessions := make([]*Session, 0, len(m.byID))
	for _, s := range m.byID {
		sessions = append(sessions, s)
	}
	m.byID = make(map[string]*Session)
	m.byUserID = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
