// Package authflow runs the passport authorization flow: one Session per
// browser tab walks from number entry, through waiting for the passport scan,
// to the allow/deny decision that becomes a redirect to the authorize
// endpoint.
package authflow

//go:generate mockgen -source=authflow.go -destination=mocks/mocks.go -package=mocks ScanService,AuditPublisher,ClientGate

import (
	"context"
	"log/slog"
	"time"

	"passport-id/internal/audit"
	"passport-id/internal/authflow/metrics"
	"passport-id/internal/identity"
	"passport-id/internal/scan"
)

// ScanService is the scan/lock service as seen by the flow.
type ScanService interface {
	Open(ctx context.Context, id identity.Identity) error
	Status(ctx context.Context, id identity.Identity) (scan.Status, error)
}

// AuditPublisher records flow events. Emit is called with the session lock
// held, so implementations must not block (see audit.WithAsyncBuffer).
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// ClientGate decides whether a requesting client may start a session.
type ClientGate interface {
	Validate(ctx context.Context, clientID string) bool
	List(ctx context.Context) ([]string, error)
}

// Config tunes polling and the decision redirect.
type Config struct {
	PollInterval time.Duration
	// PollTimeout bounds how long a session waits for a scan; zero disables it.
	PollTimeout       time.Duration
	AuthorizeEndpoint string
}

const (
	defaultPollInterval      = 3 * time.Second
	defaultAuthorizeEndpoint = "/api/authorize"
)

// deps is shared by every session of a Manager.
type deps struct {
	scan      ScanService
	cfg       Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
	audit     AuditPublisher
	newTicker TickerFactory
	now       func() time.Time
}

func (d *deps) observe(fn func(m *metrics.Metrics)) {
	if d.metrics != nil {
		fn(d.metrics)
	}
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used by the manager and its sessions.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.deps.logger = logger
	}
}

// WithMetrics enables prometheus instrumentation.
func WithMetrics(mtr *metrics.Metrics) Option {
	return func(m *Manager) {
		m.deps.metrics = mtr
	}
}

// WithAuditPublisher sets the sink for flow events.
func WithAuditPublisher(p AuditPublisher) Option {
	return func(m *Manager) {
		m.deps.audit = p
	}
}

// WithTickerFactory replaces the poll ticker (for testing).
func WithTickerFactory(f TickerFactory) Option {
	return func(m *Manager) {
		m.deps.newTicker = f
	}
}

// WithClock replaces the time source (for testing).
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.deps.now = now
	}
}

// WithIDGenerator replaces the session id generator (for testing).
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) {
		m.newID = gen
	}
}
