package seeder

import (
	"context"
	"fmt"
	"log/slog"

	"passport-id/internal/client/store"
)

// ClientStore registers oauth clients.
type ClientStore interface {
	Register(ctx context.Context, r store.Registration) error
}

// Seeder populates a development database with the default clients so the
// database-backed allowlist matches the static one.
type Seeder struct {
	clients ClientStore
	logger  *slog.Logger
}

// New creates a new seeder
func New(clients ClientStore, logger *slog.Logger) *Seeder {
	return &Seeder{clients: clients, logger: logger}
}

// SeedClients registers each client id. Existing rows are left untouched.
func (s *Seeder) SeedClients(ctx context.Context, clientIDs []string) error {
	s.logger.InfoContext(ctx, "seeding oauth clients", "count", len(clientIDs))

	for _, id := range clientIDs {
		err := s.clients.Register(ctx, store.Registration{
			ClientID:     id,
			Name:         id,
			RedirectURI:  "/",
			DefaultScope: "user",
			OwnerID:      1,
		})
		if err != nil {
			return fmt.Errorf("failed to seed client %s: %w", id, err)
		}
		s.logger.DebugContext(ctx, "seeded oauth client", "client_id", id)
	}
	return nil
}
