package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/staffchat/internal/broadcast"
	"github.com/spec-kit/staffchat/internal/domain"
	"github.com/spec-kit/staffchat/internal/repository"
	"github.com/spec-kit/staffchat/pkg/util/errorutil"
)

// ToggleResult values.
const (
	ReactionAdded   = "added"
	ReactionRemoved = "removed"
)

// ReactionGroup aggregates one emoji on a message.
type ReactionGroup struct {
	Emoji      string   `json:"emoji"`
	Count      int      `json:"count"`
	Users      []string `json:"users"`
	HasReacted bool     `json:"has_reacted"`
}

// ReactionEvent is published on the room key after a toggle.
type ReactionEvent struct {
	MessageID int64           `json:"message_id"`
	User      UserView        `json:"user"`
	Emoji     string          `json:"emoji"`
	Action    string          `json:"action"`
	Summary   []ReactionGroup `json:"summary"`
}

// ReactionService toggles and summarises emoji reactions.
type ReactionService struct {
	messages  repository.MessageRepository
	reactions repository.ReactionRepository
	users     repository.UserRepository
	lookup    roomLookup
	pub       publisher
	now       func() time.Time
}

// NewReactionService builds the service. bus may be nil.
func NewReactionService(store *repository.Store, bus broadcast.Bus, logger *zap.Logger) *ReactionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReactionService{
		messages:  store.Messages,
		reactions: store.Reactions,
		users:     store.Users,
		lookup:    roomLookup{rooms: store.Rooms},
		pub:       publisher{bus: bus, logger: logger},
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Toggle adds the reaction when absent and removes it when present. It returns the action
// taken and the refreshed summary for user.
func (s *ReactionService) Toggle(ctx context.Context, user *domain.User, messageID int64, emoji string) (string, []ReactionGroup, error) {
	if !domain.ValidEmoji(emoji) {
		return "", nil, errorutil.NewInvalid(errorutil.CodeInvalidEmoji, "emoji not allowed", map[string]any{
			"emoji":   emoji,
			"allowed": domain.Emojis,
		})
	}
	room, err := s.messageRoom(ctx, user, messageID)
	if err != nil {
		return "", nil, err
	}

	added, err := s.reactions.Toggle(ctx, domain.Reaction{
		MessageID: messageID,
		UserID:    user.ID,
		Emoji:     emoji,
		CreatedAt: s.now(),
	})
	if err != nil {
		return "", nil, storageError(err, "reaction")
	}
	action := ReactionRemoved
	if added {
		action = ReactionAdded
	}

	summary, err := s.summarize(ctx, user, messageID)
	if err != nil {
		return "", nil, err
	}
	s.pub.publish(ctx, broadcast.EventReaction, room.BroadcastKey(), ReactionEvent{
		MessageID: messageID,
		User:      NewUserView(user),
		Emoji:     emoji,
		Action:    action,
		Summary:   summary,
	})
	return action, summary, nil
}

// Summary aggregates reactions on a message, with HasReacted relative to observer.
func (s *ReactionService) Summary(ctx context.Context, observer *domain.User, messageID int64) ([]ReactionGroup, error) {
	if _, err := s.messageRoom(ctx, observer, messageID); err != nil {
		return nil, err
	}
	return s.summarize(ctx, observer, messageID)
}

func (s *ReactionService) messageRoom(ctx context.Context, user *domain.User, messageID int64) (*domain.Room, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, storageError(err, "message")
	}
	return s.lookup.accessibleByID(ctx, user, msg.RoomID)
}

// summarize groups reactions by emoji in the order of the closed set.
func (s *ReactionService) summarize(ctx context.Context, observer *domain.User, messageID int64) ([]ReactionGroup, error) {
	list, err := s.reactions.ListByMessage(ctx, messageID)
	if err != nil {
		return nil, storageError(err, "reaction")
	}
	if len(list) == 0 {
		return []ReactionGroup{}, nil
	}

	ids := make([]string, 0, len(list))
	for _, r := range list {
		ids = append(ids, r.UserID)
	}
	users, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, storageError(err, "user")
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Username
	}

	groups := make(map[string]*ReactionGroup)
	for _, r := range list {
		g, ok := groups[r.Emoji]
		if !ok {
			g = &ReactionGroup{Emoji: r.Emoji, Users: []string{}}
			groups[r.Emoji] = g
		}
		g.Count++
		if name, ok := names[r.UserID]; ok {
			g.Users = append(g.Users, name)
		}
		if observer != nil && r.UserID == observer.ID {
			g.HasReacted = true
		}
	}

	out := make([]ReactionGroup, 0, len(groups))
	for _, e := range domain.Emojis {
		if g, ok := groups[e]; ok {
			sort.Strings(g.Users)
			out = append(out, *g)
		}
	}
	return out, nil
}
