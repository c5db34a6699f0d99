// Package session holds live kiosk sessions and their per-session state.
package session

import (
	"log/slog"
	"sync"

	"github.com/mcoot/smartkiosk/internal/dependencies/clock"
	"github.com/mcoot/smartkiosk/internal/metrics"
	"github.com/mcoot/smartkiosk/internal/model"
)

// Registry is the concurrent-safe set of live sessions keyed by id.
// All methods are non-blocking beyond the registry lock.
type Registry struct {
	mu       sync.RWMutex
	sessions map[model.SessionID]*Session

	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(clock clock.Clock, m *metrics.Metrics, logger *slog.Logger) *Registry {
	return &Registry{
		sessions: make(map[model.SessionID]*Session),
		clock:    clock,
		metrics:  m,
		logger:   logger.With(slog.String("component", "session-registry")),
	}
}

// Register creates a session for conn. It fails with model.ErrSessionExists
// if id is already live.
func (r *Registry) Register(id model.SessionID, conn Conn) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[id]; exists {
		return nil, model.ErrSessionExists
	}
	s := newSession(id, conn, r.clock.Now(), r.logger)
	r.sessions[id] = s
	r.metrics.SetActiveSessions(len(r.sessions))

	r.logger.Info("session registered", slog.String("session_id", string(id)))
	return s, nil
}

// Replace registers conn under id, tearing down any existing session first
func (r *Registry) Replace(id model.SessionID, conn Conn) *Session {
	r.mu.Lock()
	old := r.sessions[id]
	s := newSession(id, conn, r.clock.Now(), r.logger)
	r.sessions[id] = s
	r.metrics.SetActiveSessions(len(r.sessions))
	r.mu.Unlock()

	if old != nil && old.close() {
		r.metrics.SessionTornDown(metrics.TeardownReplaced)
		r.logger.Info("session replaced", slog.String("session_id", string(id)))
	}
	return s
}

// Lookup returns the live session for id
func (r *Registry) Lookup(id model.SessionID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove tears down the session for id. It is a no-op if id is absent.
func (r *Registry) Remove(id model.SessionID) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
		r.metrics.SetActiveSessions(len(r.sessions))
	}
	r.mu.Unlock()

	if ok && s.close() {
		r.logger.Info("session removed", slog.String("session_id", string(id)))
	}
}

// Evict tears down s and removes it only if it is still the live session
// for its id, so a stale connection cannot remove its replacement.
func (r *Registry) Evict(s *Session) {
	r.mu.Lock()
	if current, ok := r.sessions[s.ID]; ok && current == s {
		delete(r.sessions, s.ID)
		r.metrics.SetActiveSessions(len(r.sessions))
	}
	r.mu.Unlock()

	if s.close() {
		r.logger.Info("session removed", slog.String("session_id", string(s.ID)))
	}
}

// Count returns the number of live sessions
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll tears down every session; used on shutdown
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[model.SessionID]*Session)
	r.metrics.SetActiveSessions(0)
	r.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}
