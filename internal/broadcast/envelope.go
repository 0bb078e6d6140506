package broadcast

import (
	"encoding/json"
	"time"
)

// Event types carried in envelopes.
const (
	EventMessage       = "message"
	EventMessageEdited = "message_edited"
	EventReaction      = "reaction"
	EventTyping        = "typing"
	EventUserOnline    = "user_online"
	EventUserOffline   = "user_offline"
)

// Envelope is the unit published on the bus. Data is pre-encoded so it crosses process
// boundaries unchanged.
type Envelope struct {
	Type   string          `json:"type"`
	Key    string          `json:"key"`
	Data   json.RawMessage `json:"data"`
	SentAt time.Time       `json:"sent_at"`
}

// NewEnvelope encodes data for key.
func NewEnvelope(eventType, key string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: eventType, Key: key, Data: raw, SentAt: time.Now().UTC()}, nil
}
