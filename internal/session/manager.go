// Package session keeps one selection, coordinator and event hub per user.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/weather-alerts/internal/observability"
	"github.com/couchcryptid/weather-alerts/internal/resolver"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// ErrNotFound is returned for unknown or expired session ids.
var ErrNotFound = errors.New("session not found")

// ErrLimitReached is returned by Create when the registry is full.
var ErrLimitReached = errors.New("session limit reached")

// Factory builds a coordinator whose events go to sink.
type Factory func(sink resolver.EventSink) *resolver.Coordinator

// Session is one user's resolution context.
type Session struct {
	ID          string
	Coordinator *resolver.Coordinator
	Events      *Hub
	Created     time.Time

	lastSeen time.Time
}

// Manager is the session registry. Sessions idle longer than the timeout and
// without event subscribers are removed by Sweep.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	factory Factory
	idle    time.Duration
	max     int
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxSessions caps the number of live sessions. Zero means no cap.
func WithMaxSessions(n int) Option {
	return func(m *Manager) { m.max = n }
}

// NewManager creates an empty registry.
func NewManager(factory Factory, idle time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Manager {
	m := &Manager{
		sessions: make(map[string]*Session),
		factory:  factory,
		idle:     idle,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create starts a new session, or returns ErrLimitReached when the registry
// already holds the maximum number of sessions.
func (m *Manager) Create() (*Session, error) {
	hub := NewHub()
	now := m.clock.Now()
	s := &Session{
		ID:          uuid.NewString(),
		Coordinator: m.factory(hub),
		Events:      hub,
		Created:     now,
		lastSeen:    now,
	}

	m.mu.Lock()
	if m.max > 0 && len(m.sessions) >= m.max {
		m.mu.Unlock()
		m.logger.Warn("session limit reached", "max", m.max)
		return nil, ErrLimitReached
	}
	m.sessions[s.ID] = s
	n := len(m.sessions)
	m.mu.Unlock()

	m.metrics.ActiveSessions.Set(float64(n))
	m.logger.Debug("session created", "session", s.ID)
	return s, nil
}

// Get returns the session and marks it as used.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	s.lastSeen = m.clock.Now()
	return s, nil
}

// Delete ends a session and closes its event hub.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()

	if ok {
		s.Events.Close()
		m.metrics.ActiveSessions.Set(float64(n))
	}
	return ok
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep removes expired sessions and returns how many were removed.
func (m *Manager) Sweep() int {
	cutoff := m.clock.Now().Add(-m.idle)

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.lastSeen.Before(cutoff) && s.Events.Subscribers() == 0 {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	for _, s := range expired {
		s.Events.Close()
	}
	if len(expired) > 0 {
		m.logger.Info("sessions expired", "count", len(expired), "active", n)
	}
	m.metrics.ActiveSessions.Set(float64(n))
	return len(expired)
}

// Run sweeps every half idle period until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	interval := m.idle / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := m.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			m.Sweep()
		}
	}
}
