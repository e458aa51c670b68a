package audit

import (
	"context"
	"log/slog"
)

// LogStore writes events to a structured logger. It is the default sink when
// Kafka is not configured.
type LogStore struct {
	logger *slog.Logger
}

func NewLogStore(logger *slog.Logger) *LogStore {
	return &LogStore{logger: logger}
}

func (s *LogStore) Append(ctx context.Context, event Event) error {
	s.logger.InfoContext(ctx, "audit",
		"action", event.Action,
		"session_id", event.SessionID,
		"client_id", event.ClientID,
		"identity_hash", event.IdentityHash,
		"decision", event.Decision,
		"reason", event.Reason,
		"timestamp", event.Timestamp,
	)
	return nil
}
