package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Manager owns open sessions and expires idle ones.
type Manager struct {
	engine      *Engine
	idleTimeout time.Duration
	sessions    map[string]*Session
	mu          sync.RWMutex
	now         func() time.Time
	onClose     func(id string)
	log         logrus.FieldLogger
}

// NewManager creates a session manager. A zero idleTimeout disables expiry.
func NewManager(engine *Engine, idleTimeout time.Duration, log logrus.FieldLogger) *Manager {
	return &Manager{
		engine:      engine,
		idleTimeout: idleTimeout,
		sessions:    make(map[string]*Session),
		now:         time.Now,
		log:         log,
	}
}

// OnClose registers fn to run after a session is closed or expires.
func (m *Manager) OnClose(fn func(id string)) {
	m.mu.Lock()
	m.onClose = fn
	m.mu.Unlock()
}

func (m *Manager) closed(s *Session) {
	s.Close()
	m.mu.RLock()
	fn := m.onClose
	m.mu.RUnlock()
	if fn != nil {
		fn(s.ID)
	}
}

// Engine returns the shared engine.
func (m *Manager) Engine() *Engine { return m.engine }

// Open starts a new session.
func (m *Manager) Open() *Session {
	s := newSession(uuid.NewString(), m.engine, m.now())

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.log.WithField("session_id", s.ID).Info("capture session opened")
	return s
}

// Get returns an open session and marks it as used.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch(m.now())
	return s, nil
}

// Close ends a session and discards its pending faces.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	m.closed(s)
	m.log.WithField("session_id", id).Info("capture session closed")
	return nil
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep closes sessions idle for longer than the idle timeout and returns how many.
func (m *Manager) Sweep() int {
	if m.idleTimeout <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.idleTimeout)

	m.mu.RLock()
	candidates := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		candidates = append(candidates, s)
	}
	m.mu.RUnlock()

	var expired []*Session
	for _, s := range candidates {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, s)
		}
	}
	if len(expired) == 0 {
		return 0
	}

	// Recheck under the write lock: a session may have been used or closed
	// since the snapshot.
	m.mu.Lock()
	n := 0
	for _, s := range expired {
		if m.sessions[s.ID] == s && s.idleSince().Before(cutoff) {
			delete(m.sessions, s.ID)
			expired[n] = s
			n++
		}
	}
	m.mu.Unlock()
	expired = expired[:n]

	for _, s := range expired {
		m.closed(s)
		m.log.WithField("session_id", s.ID).Info("capture session expired")
	}
	return len(expired)
}

// Run sweeps idle sessions until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	if m.idleTimeout <= 0 {
		return
	}
	interval := max(m.idleTimeout/2, time.Second)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// CloseAll ends every session. Used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		m.closed(s)
	}
}
