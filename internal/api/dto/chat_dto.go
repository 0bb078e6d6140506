package dto

import (
	"time"

	"github.com/spec-kit/staffchat/internal/domain"
)

// CreateRoomRequest registers a room. Members are usernames and only matter for private
// and project rooms.
type CreateRoomRequest struct {
	Name        string   `json:"name" validate:"required,max=100"`
	Kind        string   `json:"kind" validate:"required,oneof=department project general private"`
	Description string   `json:"description" validate:"max=500"`
	AutoJoin    bool     `json:"auto_join"`
	ProjectID   *string  `json:"project_id,omitempty"`
	Members     []string `json:"members" validate:"omitempty,dive,required"`
}

// UpdateRoomRequest changes room metadata.
type UpdateRoomRequest struct {
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
	AutoJoin    *bool   `json:"auto_join,omitempty"`
	Active      *bool   `json:"active,omitempty"`
}

// InviteRequest adds members by username.
type InviteRequest struct {
	Usernames []string `json:"usernames" validate:"required,min=1,dive,required"`
}

// AttachmentRequest carries an inline file. Data is base64 in JSON.
type AttachmentRequest struct {
	FileName    string `json:"file_name" validate:"required,max=255"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data" validate:"required"`
}

// SendMessageRequest posts to a room. Body may be empty when an attachment is present.
type SendMessageRequest struct {
	Body       string             `json:"body"`
	ReplyToID  *int64             `json:"reply_to_id,omitempty" validate:"omitempty,min=1"`
	Attachment *AttachmentRequest `json:"attachment,omitempty"`
}

// EditMessageRequest rewrites a message body.
type EditMessageRequest struct {
	Body string `json:"body" validate:"required"`
}

// ReactionRequest toggles one emoji.
type ReactionRequest struct {
	Emoji string `json:"emoji" validate:"required"`
}

// PreferencesRequest updates notification preferences. Omitted fields are unchanged.
type PreferencesRequest struct {
	NotifyFor    *string `json:"notify_for,omitempty" validate:"omitempty,oneof=all mentions none"`
	EmailEnabled *bool   `json:"email_notifications,omitempty"`
	PushEnabled  *bool   `json:"push_notifications,omitempty"`
	SoundEnabled *bool   `json:"sound_enabled,omitempty"`
}

// PreferencesResponse mirrors the stored preferences.
type PreferencesResponse struct {
	NotifyFor    string `json:"notify_for"`
	EmailEnabled bool   `json:"email_notifications"`
	PushEnabled  bool   `json:"push_notifications"`
	SoundEnabled bool   `json:"sound_enabled"`
}

// NewPreferencesResponse projects p.
func NewPreferencesResponse(p domain.NotificationPreference) PreferencesResponse {
	return PreferencesResponse{
		NotifyFor:    string(p.NotifyFor),
		EmailEnabled: p.EmailEnabled,
		PushEnabled:  p.PushEnabled,
		SoundEnabled: p.SoundEnabled,
	}
}

// RoomResponse is a room as listed to a user.
type RoomResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Kind         string    `json:"kind"`
	Description  string    `json:"description"`
	AutoJoin     bool      `json:"auto_join"`
	ProjectID    *string   `json:"project_id,omitempty"`
	Participants int       `json:"participants"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewRoomResponse projects r.
func NewRoomResponse(r *domain.Room) RoomResponse {
	return RoomResponse{
		ID:           r.ID,
		Name:         r.Name,
		Kind:         string(r.Kind),
		Description:  r.Description,
		AutoJoin:     r.AutoJoin,
		ProjectID:    r.ProjectID,
		Participants: len(r.Participants),
		CreatedAt:    r.CreatedAt,
	}
}
