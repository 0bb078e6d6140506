package domain

import (
	"errors"
	"strings"
	"time"
)

// RoomKind enumerates chat room kinds.
type RoomKind string

const (
	RoomKindDepartment RoomKind = "department"
	RoomKindProject    RoomKind = "project"
	RoomKindGeneral    RoomKind = "general"
	RoomKindPrivate    RoomKind = "private"
)

// Valid reports whether k is a known kind.
func (k RoomKind) Valid() bool {
	switch k {
	case RoomKindDepartment, RoomKindProject, RoomKindGeneral, RoomKindPrivate:
		return true
	}
	return false
}

// UsesParticipants reports whether access for the kind is driven by the participant set.
func (k RoomKind) UsesParticipants() bool {
	return k == RoomKindPrivate || k == RoomKindProject
}

// Room is a chat room. Participants matter for private and project rooms; the auto-join
// reactor also mirrors department and general membership into it.
type Room struct {
	ID           string
	Name         string
	Kind         RoomKind
	Description  string
	Active       bool
	AutoJoin     bool
	CreatedByID  *string
	ProjectID    *string
	Participants []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasParticipant reports whether userID is in the participant set.
func (r *Room) HasParticipant(userID string) bool {
	for _, id := range r.Participants {
		if id == userID {
			return true
		}
	}
	return false
}

// BroadcastKey is the bus key for room events.
func (r *Room) BroadcastKey() string {
	return RoomBroadcastKey(r.Name)
}

// RoomBroadcastKey returns "room:{name}".
func RoomBroadcastKey(name string) string {
	return "room:" + name
}

// OnlineUsersKey is the bus key for presence events.
const OnlineUsersKey = "online_users"

// ErrEmptyRoomName is returned when canonicalization leaves nothing.
var ErrEmptyRoomName = errors.New("room name is empty after canonicalization")

// CanonicalRoomName lowercases name, replaces every character outside [a-z0-9_-] with '-',
// squeezes runs of '-' and trims leading and trailing '-'.
func CanonicalRoomName(name string) (string, error) {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(name) {
		ok := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-'
		if !ok || r == '-' {
			if !lastDash {
				b.WriteByte('-')
			}
			lastDash = true
			continue
		}
		b.WriteRune(r)
		lastDash = false
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "", ErrEmptyRoomName
	}
	return out, nil
}
