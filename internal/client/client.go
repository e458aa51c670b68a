// Package client decides whether the client requesting authorization is one
// this service is willing to act for.
package client

import (
	"context"
	"log/slog"
	"slices"
)

// Registry supplies the current allowlist of client ids.
type Registry interface {
	ClientIDs(ctx context.Context) ([]string, error)
}

// Allowed reports whether clientID is a member of allowlist. The comparison
// is exact: no case folding or trimming. An empty id is never allowed.
func Allowed(clientID string, allowlist []string) bool {
	if clientID == "" {
		return false
	}
	return slices.Contains(allowlist, clientID)
}

// StaticRegistry serves a fixed allowlist, typically from configuration.
type StaticRegistry struct {
	ids []string
}

// NewStatic copies ids into a StaticRegistry.
func NewStatic(ids []string) *StaticRegistry {
	return &StaticRegistry{ids: slices.Clone(ids)}
}

// ClientIDs returns a copy of the configured allowlist.
func (r *StaticRegistry) ClientIDs(_ context.Context) ([]string, error) {
	return slices.Clone(r.ids), nil
}

// Gate validates client ids against a Registry.
type Gate struct {
	registry Registry
	logger   *slog.Logger
}

// NewGate constructs a Gate. logger may be nil.
func NewGate(registry Registry, logger *slog.Logger) *Gate {
	return &Gate{registry: registry, logger: logger}
}

// Validate reports whether clientID may start an authorization session.
// A registry failure is logged and treated as not valid.
func (g *Gate) Validate(ctx context.Context, clientID string) bool {
	ids, err := g.registry.ClientIDs(ctx)
	if err != nil {
		if g.logger != nil {
			g.logger.ErrorContext(ctx, "failed to load client allowlist", "error", err)
		}
		return false
	}
	return Allowed(clientID, ids)
}

// List returns the current allowlist.
func (g *Gate) List(ctx context.Context) ([]string, error) {
	return g.registry.ClientIDs(ctx)
}
