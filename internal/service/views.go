package service

import (
	"context"
	"time"

	"github.com/spec-kit/staffchat/internal/domain"
	"github.com/spec-kit/staffchat/internal/repository"
)

// UserView is the public shape of a user inside chat payloads.
type UserView struct {
	ID         string      `json:"id"`
	Username   string      `json:"username"`
	FullName   string      `json:"full_name"`
	Role       domain.Role `json:"role"`
	EmployeeID string      `json:"employee_id,omitempty"`
}

// NewUserView projects u.
func NewUserView(u *domain.User) UserView {
	return UserView{
		ID:         u.ID,
		Username:   u.Username,
		FullName:   u.FullName(),
		Role:       u.Role,
		EmployeeID: u.EmployeeID,
	}
}

// AttachmentView describes an attachment without its bytes.
type AttachmentView struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// MessageView is a message as delivered to clients and subscribers.
type MessageView struct {
	ID         int64           `json:"id"`
	Room       string          `json:"room"`
	Author     UserView        `json:"author"`
	Body       string          `json:"body"`
	CreatedAt  time.Time       `json:"created_at"`
	Attachment *AttachmentView `json:"attachment,omitempty"`
	ReplyToID  *int64          `json:"reply_to_id,omitempty"`
	Edited     bool            `json:"edited"`
	EditedAt   *time.Time      `json:"edited_at,omitempty"`
	Mentions   []string        `json:"mentions"`
}

// userIndex resolves user IDs to users for view building.
type userIndex map[string]*domain.User

func loadUserIndex(ctx context.Context, users repository.UserRepository, msgs []domain.Message) (userIndex, error) {
	seen := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		if _, ok := seen[id]; ok || id == "" {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, m := range msgs {
		add(m.AuthorID)
		for _, id := range m.Mentions {
			add(id)
		}
	}
	idx := make(userIndex, len(ids))
	if len(ids) == 0 {
		return idx, nil
	}
	list, err := users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, storageError(err, "user")
	}
	for i := range list {
		idx[list[i].ID] = &list[i]
	}
	return idx, nil
}

func (idx userIndex) view(id string) UserView {
	if u, ok := idx[id]; ok {
		return NewUserView(u)
	}
	return UserView{ID: id}
}

func (idx userIndex) message(roomName string, m domain.Message) MessageView {
	v := MessageView{
		ID:        m.ID,
		Room:      roomName,
		Author:    idx.view(m.AuthorID),
		Body:      m.Body,
		CreatedAt: m.CreatedAt,
		ReplyToID: m.ReplyToID,
		Edited:    m.Edited,
		EditedAt:  m.EditedAt,
		Mentions:  make([]string, 0, len(m.Mentions)),
	}
	if m.HasAttachment() {
		v.Attachment = &AttachmentView{
			FileName:    m.Attachment.FileName,
			ContentType: m.Attachment.ContentType,
			Size:        m.Attachment.Size(),
		}
	}
	for _, id := range m.Mentions {
		if u, ok := idx[id]; ok {
			v.Mentions = append(v.Mentions, u.Username)
		}
	}
	return v
}
