package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event type constants for published events.
const (
	EventTypePapersRefreshed  = "papers.refreshed"
	EventTypeRefreshRequested = "papers.refresh_requested"
)

// Event is the envelope for every message published to the event bus.
type Event struct {
	EventID      string          `json:"event_id"`
	EventVersion int             `json:"event_version"`
	EventType    string          `json:"event_type"`
	Key          string          `json:"key"`
	Payload      json.RawMessage `json:"payload"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

// NewEvent creates a new event with the given type and partition key.
// The payload is JSON-serialized automatically.
func NewEvent(eventType, key string, payload interface{}) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		EventID:      uuid.New().String(),
		EventVersion: 1,
		EventType:    eventType,
		Key:          key,
		Payload:      payloadBytes,
		OccurredAt:   time.Now().UTC(),
	}, nil
}

// SourceCount reports how many records one source contributed to an aggregation.
type SourceCount struct {
	Source SourceType `json:"source"`
	Papers int        `json:"papers"`
	Error  string     `json:"error,omitempty"`
}

// PapersRefreshedPayload is the payload for papers.refreshed events, emitted
// after every aggregation.
type PapersRefreshedPayload struct {
	Query    string        `json:"query"`
	Fetched  int           `json:"fetched"`
	Inserted int           `json:"inserted"`
	Sources  []SourceCount `json:"sources"`
	Forced   bool          `json:"forced"`
}

// RefreshRequestedPayload is the payload for papers.refresh_requested events.
type RefreshRequestedPayload struct {
	Query       string `json:"query"`
	RequestedBy string `json:"requested_by,omitempty"`
}
