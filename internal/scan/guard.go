package scan

import (
	"context"
	"errors"
	"log/slog"

	"passport-id/internal/identity"
	"passport-id/pkg/platform/circuit"
)

// ErrCircuitOpen is the underlying error of calls refused by a Guard.
var ErrCircuitOpen = errors.New("circuit open")

// Service is the scan service surface a Guard protects.
type Service interface {
	Open(ctx context.Context, id identity.Identity) error
	Status(ctx context.Context, id identity.Identity) (Status, error)
}

// Guard fails scan calls fast while the scan service keeps timing out or
// erroring. Refused calls return CategoryUnavailable, which the state
// machine already treats as a transient failure.
type Guard struct {
	next    Service
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// NewGuard wraps next with breaker.
func NewGuard(next Service, breaker *circuit.Breaker, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{next: next, breaker: breaker, logger: logger}
}

func (g *Guard) Open(ctx context.Context, id identity.Identity) error {
	if !g.breaker.Allow() {
		return newError(CategoryUnavailable, 0, "scan open refused", ErrCircuitOpen)
	}
	err := g.next.Open(ctx, id)
	g.record(ctx, err)
	return err
}

func (g *Guard) Status(ctx context.Context, id identity.Identity) (Status, error) {
	if !g.breaker.Allow() {
		return Status{}, newError(CategoryUnavailable, 0, "scan status refused", ErrCircuitOpen)
	}
	status, err := g.next.Status(ctx, id)
	g.record(ctx, err)
	return status, err
}

// record counts only upstream faults. Rejections are answers, and calls
// cancelled by their caller say nothing about the service.
func (g *Guard) record(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	var change circuit.StateChange
	switch GetCategory(err) {
	case CategoryTimeout, CategoryUnavailable:
		change = g.breaker.RecordFailure()
	case CategoryRejected, CategoryBadResponse:
		// The service answered, so it is reachable.
		change = g.breaker.RecordSuccess()
	default:
		if err == nil {
			change = g.breaker.RecordSuccess()
		}
	}
	switch {
	case change.Opened:
		g.logger.WarnContext(ctx, "scan service circuit opened", "breaker", g.breaker.Name(), "error", err)
	case change.Closed:
		g.logger.InfoContext(ctx, "scan service circuit closed", "breaker", g.breaker.Name())
	}
}
