package router

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saludstaffing/applykit/pkg/core"
)

// LiveSession binds a mounted page component to the client that rendered
// it. It outlives individual connections: a client reconnecting with the
// same id resumes the same form state.
type LiveSession struct {
	// ID identifies the session. The client sends it back on join.
	ID string

	// Path is the page route the component was mounted for.
	Path string

	Component core.Component
	Params    core.Params
	Session   core.Session

	// CSRFToken must accompany every event sent over HTTP.
	CSRFToken string

	CreatedAt time.Time

	socket       *core.Socket
	lastActivity time.Time

	// events serializes event handling across transports.
	events sync.Mutex
	mu     sync.RWMutex
}

// Topic is the channel name of the session.
func (s *LiveSession) Topic() string {
	return "lv:" + s.ID
}

// UpdateActivity records activity now.
func (s *LiveSession) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
}

// LastActivity returns the last activity time.
func (s *LiveSession) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

// Socket returns the connected socket, or nil.
func (s *LiveSession) Socket() *core.Socket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.socket
}

// Attach binds a connection and returns the one it replaced.
func (s *LiveSession) Attach(socket *core.Socket) *core.Socket {
	s.mu.Lock()
	prev := s.socket
	s.socket = socket
	s.lastActivity = time.Now()
	s.mu.Unlock()

	if ss, ok := s.Component.(core.SocketSetter); ok {
		ss.SetSocket(socket)
	}
	return prev
}

// Detach unbinds socket if it is still the current one.
func (s *LiveSession) Detach(socket *core.Socket) {
	s.mu.Lock()
	current := s.socket == socket
	if current {
		s.socket = nil
	}
	s.mu.Unlock()

	if ss, ok := s.Component.(core.SocketSetter); ok && current {
		ss.SetSocket(nil)
	}
}

// SessionManager holds every live session.
type SessionManager struct {
	sessions    map[string]*LiveSession
	maxSessions int
	ttl         time.Duration
	onEvict     func(*LiveSession)
	mu          sync.RWMutex
}

// SessionManagerConfig configures the session manager.
type SessionManagerConfig struct {
	// MaxSessions caps live sessions; the least recently active is evicted.
	// Zero means unlimited.
	MaxSessions int

	// SessionTTL is how long an idle session is kept.
	SessionTTL time.Duration

	// OnEvict runs for every session removed by eviction or expiry.
	OnEvict func(*LiveSession)
}

// DefaultSessionManagerConfig returns the default configuration.
func DefaultSessionManagerConfig() SessionManagerConfig {
	return SessionManagerConfig{
		MaxSessions: 10000,
		SessionTTL:  30 * time.Minute,
	}
}

// NewSessionManager creates a session manager.
func NewSessionManager(config SessionManagerConfig) *SessionManager {
	if config.SessionTTL <= 0 {
		config.SessionTTL = DefaultSessionManagerConfig().SessionTTL
	}
	return &SessionManager{
		sessions:    make(map[string]*LiveSession),
		maxSessions: config.MaxSessions,
		ttl:         config.SessionTTL,
		onEvict:     config.OnEvict,
	}
}

// Create registers a session for a mounted component.
func (m *SessionManager) Create(path string, comp core.Component, params core.Params, session core.Session) *LiveSession {
	now := time.Now()
	s := &LiveSession{
		ID:           uuid.NewString(),
		Path:         path,
		Component:    comp,
		Params:       params,
		Session:      session,
		CreatedAt:    now,
		lastActivity: now,
	}

	var evicted *LiveSession
	m.mu.Lock()
	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		evicted = m.evictOldestLocked()
	}
	m.sessions[s.ID] = s
	m.mu.Unlock()

	if evicted != nil && m.onEvict != nil {
		m.onEvict(evicted)
	}
	return s
}

// Get obtains a session by id.
func (m *SessionManager) Get(id string) (*LiveSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove deletes a session.
func (m *SessionManager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Cleanup removes sessions idle for longer than the TTL and returns how
// many were removed. Sessions with a connected socket are kept.
func (m *SessionManager) Cleanup() int {
	now := time.Now()
	var expired []*LiveSession

	m.mu.Lock()
	for id, s := range m.sessions {
		if sock := s.Socket(); sock != nil && sock.IsConnected() {
			continue
		}
		if now.Sub(s.LastActivity()) > m.ttl {
			delete(m.sessions, id)
			expired = append(expired, s)
		}
	}
	m.mu.Unlock()

	if m.onEvict != nil {
		for _, s := range expired {
			m.onEvict(s)
		}
	}
	return len(expired)
}

// Drain removes and returns every session.
func (m *SessionManager) Drain() []*LiveSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*LiveSession, 0, len(m.sessions))
	for id, s := range m.sessions {
		out = append(out, s)
		delete(m.sessions, id)
	}
	return out
}

// evictOldestLocked removes the least recently active session.
func (m *SessionManager) evictOldestLocked() *LiveSession {
	var oldest *LiveSession
	for _, s := range m.sessions {
		if oldest == nil || s.LastActivity().Before(oldest.LastActivity()) {
			oldest = s
		}
	}
	if oldest != nil {
		delete(m.sessions, oldest.ID)
	}
	return oldest
}

// Run sweeps expired sessions every interval until ctx is done.
func (m *SessionManager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Cleanup()
		case <-ctx.Done():
			return
		}
	}
}
