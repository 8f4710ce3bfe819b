package session

import (
	"context"
	"sync"
	"time"

	"github.com/m3rciful/reviewbot/core/metrics"
)

// MemoryStore keeps sessions in process memory. Sessions are lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]Session
	now      func() time.Time
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]Session), now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, userID int64) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if s, ok := m.sessions[userID]; ok {
		metrics.ObserveSession("memory", "hit")
		return clone(s), nil
	}
	metrics.ObserveSession("memory", "miss")
	return Session{UserID: userID}, nil
}

func (m *MemoryStore) Save(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s.UpdatedAt = m.now()
	m.sessions[s.UserID] = clone(s)
	metrics.ObserveSession("memory", "set")
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, userID)
	metrics.ObserveSession("memory", "del")
	return nil
}

// Len returns the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// clone copies the pointer fields so callers never share state with the map.
func clone(s Session) Session {
	if s.Draft != nil {
		d := *s.Draft
		s.Draft = &d
	}
	if s.Search != nil {
		q := *s.Search
		s.Search = &q
	}
	return s
}
