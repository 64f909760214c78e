package orchestrator

import (
	"fmt"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultMaxSessions = 1024

// Manager keeps the most recently used sessions. An evicted or removed session
// is closed, which cancels its lifecycle.
type Manager struct {
	deps  Deps
	cache *lru.Cache[string, *Session]
}

func NewManager(deps Deps, maxSessions int) (*Manager, error) {
	if deps.Transport == nil {
		return nil, fmt.Errorf("orchestrator: transport is required")
	}
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	deps.normalize()
	m := &Manager{deps: deps}
	cache, err := lru.NewWithEvict(maxSessions, func(id string, s *Session) {
		s.Close()
		deps.Metrics.SessionClosed()
		deps.Logger.Debug().Str("session_id", id).Msg("session closed")
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: session cache: %w", err)
	}
	m.cache = cache
	return m, nil
}

// Create registers a new idle session.
func (m *Manager) Create() *Session {
	s := NewSession(uuid.NewString(), m.deps)
	m.cache.Add(s.ID(), s)
	m.deps.Metrics.SessionOpened()
	return s
}

// Get returns the session with id and marks it recently used.
func (m *Manager) Get(id string) (*Session, bool) {
	return m.cache.Get(id)
}

// Remove closes and forgets the session with id.
func (m *Manager) Remove(id string) bool {
	return m.cache.Remove(id)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	return m.cache.Len()
}

// Close closes every session.
func (m *Manager) Close() {
	m.cache.Purge()
}
