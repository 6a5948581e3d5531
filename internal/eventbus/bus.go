// Package eventbus carries committed room events from the engine to the
// synchronization layer. The in-process bus serves single-binary
// deployments and tests; the JetStream bus bridges processes.
package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope every room event travels in.
type Event struct {
	ID        string          `json:"event_id"`
	RoomID    string          `json:"room_id"`
	Type      string          `json:"event_type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEvent wraps payload in an envelope, marshalling it to JSON.
func NewEvent(roomID uuid.UUID, eventType string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:        uuid.New().String(),
		RoomID:    roomID.String(),
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   raw,
	}, nil
}

// Handler receives events for a subscription. Handlers must not block for
// long; slow consumers get dropped by the implementations.
type Handler func(Event)

// Bus publishes room events to subscribers.
type Bus interface {
	Publish(ctx context.Context, event Event) error
	// Subscribe registers a handler for one room's events and returns an
	// unsubscribe function.
	Subscribe(roomID string, fn Handler) (func(), error)
	Close() error
}
