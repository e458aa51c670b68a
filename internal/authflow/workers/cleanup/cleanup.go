package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"passport-id/internal/authflow/metrics"
)

// SessionStore exposes cleanup for idle authorization sessions.
type SessionStore interface {
	CloseIdle(ctx context.Context, cutoff time.Time) (int, error)
}

// CleanupResult summarizes a cleanup run.
type CleanupResult struct {
	ClosedSessions int
}

// CleanupService periodically closes sessions nobody has touched for IdleTTL.
type CleanupService struct {
	sessions SessionStore
	idleTTL  time.Duration
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// CleanupOption configures CleanupService.
type CleanupOption func(*CleanupService)

// WithCleanupInterval overrides the cleanup interval when greater than zero.
func WithCleanupInterval(interval time.Duration) CleanupOption {
	return func(s *CleanupService) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithIdleTTL overrides how long a session may sit untouched when greater
// than zero.
func WithIdleTTL(ttl time.Duration) CleanupOption {
	return func(s *CleanupService) {
		if ttl > 0 {
			s.idleTTL = ttl
		}
	}
}

// WithCleanupLogger overrides the logger used for cleanup errors.
func WithCleanupLogger(logger *slog.Logger) CleanupOption {
	return func(s *CleanupService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCleanupMetrics records run counts and durations.
func WithCleanupMetrics(m *metrics.Metrics) CleanupOption {
	return func(s *CleanupService) {
		s.metrics = m
	}
}

// WithCleanupClock replaces the time source (for testing).
func WithCleanupClock(now func() time.Time) CleanupOption {
	return func(s *CleanupService) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a CleanupService with options applied.
func New(sessions SessionStore, opts ...CleanupOption) (*CleanupService, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	svc := &CleanupService{
		sessions: sessions,
		idleTTL:  15 * time.Minute,
		interval: time.Minute,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Start runs cleanup periodically until ctx is cancelled.
func (s *CleanupService) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.ErrorContext(ctx, "session cleanup failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce closes every session idle longer than the TTL.
func (s *CleanupService) RunOnce(ctx context.Context) (CleanupResult, error) {
	start := s.now()
	closed, err := s.sessions.CloseIdle(ctx, start.Add(-s.idleTTL))
	if s.metrics != nil {
		s.metrics.ObserveCleanupDuration(s.now().Sub(start).Seconds())
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncrementCleanupRuns("error")
		}
		return CleanupResult{}, fmt.Errorf("close idle sessions: %w", err)
	}
	if s.metrics != nil {
		s.metrics.IncrementCleanupRuns("success")
	}
	if closed > 0 {
		s.logger.InfoContext(ctx, "closed idle sessions", "count", closed)
	}
	return CleanupResult{ClosedSessions: closed}, nil
}
