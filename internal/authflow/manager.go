package authflow

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"passport-id/internal/audit"
	"passport-id/internal/authflow/metrics"
	"passport-id/internal/authflow/models"
	dErrors "passport-id/pkg/domain-errors"
)

// Manager owns the live sessions of this process. Sessions are kept in
// memory only and do not survive a restart.
type Manager struct {
	gate  ClientGate
	deps  *deps
	newID func() string

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager wires a session manager.
func NewManager(gate ClientGate, scanService ScanService, cfg Config, opts ...Option) *Manager {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.AuthorizeEndpoint == "" {
		cfg.AuthorizeEndpoint = defaultAuthorizeEndpoint
	}
	m := &Manager{
		gate: gate,
		deps: &deps{
			scan:      scanService,
			cfg:       cfg,
			logger:    slog.Default(),
			newTicker: NewTimeTicker,
			now:       time.Now,
		},
		newID:    uuid.NewString,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start creates a session for the inbound authorize query. The client gate
// runs first: an unknown client gets a session in NoClient.
func (m *Manager) Start(ctx context.Context, query url.Values) *Session {
	valid := m.gate.Validate(ctx, query.Get("client_id"))
	s := newSession(m.newID(), query, m.deps, valid)

	m.mu.Lock()
	m.sessions[s.id] = s
	count := len(m.sessions)
	m.mu.Unlock()

	phase := s.Phase()
	m.deps.observe(func(mt *metrics.Metrics) {
		mt.IncrementSessionsStarted(string(phase))
		mt.SetActiveSessions(count)
	})
	s.mu.Lock()
	s.emit(ctx, audit.ActionSessionStarted, 0, "", string(phase))
	s.mu.Unlock()
	return s
}

// Get returns a live session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "session not found")
	}
	return s, nil
}

// Remove closes and forgets a session. Unknown ids are ignored.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	count := len(m.sessions)
	m.mu.Unlock()

	if ok {
		s.Close()
		m.deps.observe(func(mt *metrics.Metrics) { mt.SetActiveSessions(count) })
	}
}

// Decide applies the user's answer and forgets the session.
func (m *Manager) Decide(ctx context.Context, id string, allow bool) (string, error) {
	s, err := m.Get(id)
	if err != nil {
		return "", err
	}
	target, err := s.Decide(ctx, allow)
	if err != nil {
		return "", err
	}
	m.Remove(id)
	return target, nil
}

// CloseIdle closes sessions whose last interaction is before cutoff, and
// sessions that are already closed. It returns how many were removed.
func (m *Manager) CloseIdle(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		if s.Phase() == models.PhaseClosed || s.LastActive().Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	count := len(m.sessions)
	m.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
	m.deps.observe(func(mt *metrics.Metrics) {
		mt.IncrementSessionsReaped(len(stale))
		mt.SetActiveSessions(count)
	})
	return len(stale), nil
}

// CloseAll closes every session. Used at shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	m.deps.observe(func(mt *metrics.Metrics) { mt.SetActiveSessions(0) })
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Clients returns the current client allowlist.
func (m *Manager) Clients(ctx context.Context) ([]string, error) {
	ids, err := m.gate.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "client registry unavailable")
	}
	return ids, nil
}
