package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"passport-id/internal/platform/kafka/consumer"
)

// StoreHandler decodes audit records read back from Kafka and appends them
// to a Store. Records for other sessions are skipped when a session filter
// is set.
type StoreHandler struct {
	store     Store
	sessionID string
}

// NewStoreHandler returns a consumer.Handler feeding store. An empty
// sessionID accepts every record.
func NewStoreHandler(store Store, sessionID string) *StoreHandler {
	return &StoreHandler{store: store, sessionID: sessionID}
}

// Handle implements consumer.Handler. A record that does not decode is
// reported and skipped: redelivering it would fail the same way.
func (h *StoreHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	if h.sessionID != "" && string(msg.Key) != h.sessionID {
		return nil
	}
	var event Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return h.store.Append(ctx, Event{
			Timestamp: msg.Timestamp,
			SessionID: string(msg.Key),
			Action:    "undecodable",
			Reason:    fmt.Sprintf("offset %d: %v", msg.Offset, err),
		})
	}
	return h.store.Append(ctx, event)
}
