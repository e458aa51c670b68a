// Package store reads the client allowlist from the oauth_client table.
package store

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore lists registered OAuth clients from PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed client registry.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// ClientIDs returns every registered client_id in creation order.
func (s *PostgresStore) ClientIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT client_id FROM oauth_client ORDER BY created_at, client_id`)
	if err != nil {
		return nil, fmt.Errorf("list oauth clients: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan oauth client: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate oauth clients: %w", err)
	}
	return ids, nil
}

// Registration describes a client row to insert.
type Registration struct {
	ClientID     string
	Name         string
	RedirectURI  string
	DefaultScope string
	OwnerID      int
}

// Register inserts a client row, leaving an existing client_id untouched.
// Used by seeding and tests.
func (s *PostgresStore) Register(ctx context.Context, r Registration) error {
	if r.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO oauth_client (client_id, client_secret, owner_id, redirect_uri, default_scope, name)
		VALUES ($1, NULL, $2, $3, $4, $5)
		ON CONFLICT (client_id) DO NOTHING
	`, r.ClientID, r.OwnerID, r.RedirectURI, r.DefaultScope, r.Name)
	if err != nil {
		return fmt.Errorf("register oauth client: %w", err)
	}
	return nil
}
