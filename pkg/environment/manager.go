package environment

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionID is used when a caller does not name a session.
const DefaultSessionID = "default"

// Manager keys sessions by id. Each session owns its engine exclusively.
type Manager struct {
	factory EngineFactory

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(factory EngineFactory) *Manager {
	return &Manager{
		factory:  factory,
		sessions: make(map[string]*Session),
	}
}

// Session returns the session for id, creating it on first use. An empty id
// selects the default session.
func (m *Manager) Session(id string) *Session {
	if id == "" {
		id = DefaultSessionID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		s = NewSession(id, m.factory)
		m.sessions[id] = s
	}
	return s
}

// NewSession creates a session under a fresh random id.
func (m *Manager) NewSession() *Session {
	return m.Session(uuid.New().String())
}

// Close drops a session and its engine. It reports whether the session existed.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	return true
}

// IDs returns the ids of every open session, sorted.
func (m *Manager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Prune closes sessions idle for longer than ttl and returns how many were
// closed. Idle times are read without holding m.mu.
func (m *Manager) Prune(ttl time.Duration) int {
	m.mu.Lock()
	candidates := make(map[string]*Session, len(m.sessions))
	for id, s := range m.sessions {
		if id != DefaultSessionID {
			candidates[id] = s
		}
	}
	m.mu.Unlock()

	cutoff := time.Now().Add(-ttl)
	var idle []string
	for id, s := range candidates {
		if s.LastUsed().Before(cutoff) {
			idle = append(idle, id)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, id := range idle {
		// the id may have been closed and reopened in between
		if m.sessions[id] == candidates[id] {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}
