package session

import (
	"context"
	"sync"
	"time"

	"github.com/smite-tools/draft-server/internal/draft"
)

type record struct {
	state     draft.State
	updatedAt time.Time
}

// Memory is the in-process backend. Records expire a fixed TTL after their
// last write rather than when the owning room empties, since persisted
// sessions are expected to outlive any single connection.
type Memory struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]record
	now      func() time.Time
	done     chan struct{}
	once     sync.Once
}

// NewMemory builds a memory store; ttl <= 0 disables expiry. A background
// sweeper reclaims expired records until Close.
func NewMemory(ttl time.Duration) *Memory {
	m := &Memory{
		ttl:      ttl,
		sessions: make(map[string]record),
		now:      time.Now,
		done:     make(chan struct{}),
	}
	if ttl > 0 {
		go m.sweep()
	}
	return m
}

func (m *Memory) Load(_ context.Context, sessionID string) (draft.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.sessions[sessionID]
	if !ok || m.expired(rec) {
		delete(m.sessions, sessionID)
		return draft.State{}, ErrNotFound
	}
	return rec.state.Clone(), nil
}

func (m *Memory) Save(_ context.Context, sessionID string, state draft.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = record{state: state.Clone(), updatedAt: m.now()}
	return nil
}

func (m *Memory) Close() error {
	m.once.Do(func() { close(m.done) })
	return nil
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Memory) expired(rec record) bool {
	return m.ttl > 0 && m.now().Sub(rec.updatedAt) > m.ttl
}

func (m *Memory) sweep() {
	interval := m.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-t.C:
			m.mu.Lock()
			for id, rec := range m.sessions {
				if m.expired(rec) {
					delete(m.sessions, id)
				}
			}
			m.mu.Unlock()
		}
	}
}
