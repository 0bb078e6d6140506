package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/staffchat/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserCreated       EventType = "user_created"
	EventUserGroupsChanged EventType = "user_groups_changed"
	EventMessageAppended   EventType = "message_appended"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	ActorID   string      `json:"actor_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NewEvent stamps an event with an ID and the current time.
func NewEvent(eventType EventType, actorID string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		ActorID:   actorID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// UserCreatedPayload payload.
type UserCreatedPayload struct {
	User domain.User `json:"user"`
}

// UserGroupsChangedPayload lists only the groups whose membership actually changed.
type UserGroupsChangedPayload struct {
	UserID  string   `json:"user_id"`
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
}

// MessageAppendedPayload payload.
type MessageAppendedPayload struct {
	Message  domain.Message  `json:"message"`
	RoomName string          `json:"room_name"`
	RoomKind domain.RoomKind `json:"room_kind"`
}
