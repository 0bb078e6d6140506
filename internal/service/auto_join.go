package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/staffchat/internal/access"
	"github.com/spec-kit/staffchat/internal/config"
	"github.com/spec-kit/staffchat/internal/domain"
	"github.com/spec-kit/staffchat/internal/events"
	"github.com/spec-kit/staffchat/internal/repository"
)

// AutoJoinReactor mirrors user creation and group changes into room participant sets.
// Only rooms flagged auto_join are touched. Per-room failures are logged and skipped.
type AutoJoinReactor struct {
	rooms        repository.RoomRepository
	generalRooms []string
	logger       *zap.Logger
}

// NewAutoJoinReactor builds the reactor. cfg.AutoJoinGeneralRooms restricts the general
// rooms new users join; empty means all.
func NewAutoJoinReactor(rooms repository.RoomRepository, cfg config.ChatConfig, logger *zap.Logger) *AutoJoinReactor {
	if logger == nil {
		logger = zap.NewNop()
	}
	var names []string
	for _, n := range cfg.AutoJoinGeneralRooms {
		if canonical, err := domain.CanonicalRoomName(n); err == nil {
			names = append(names, canonical)
		}
	}
	return &AutoJoinReactor{rooms: rooms, generalRooms: names, logger: logger}
}

// RegisterHandlers subscribes the reactor to user events.
func (r *AutoJoinReactor) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventUserCreated, r.handleUserCreated)
	dispatcher.Subscribe(events.EventUserGroupsChanged, r.handleGroupsChanged)
}

func (r *AutoJoinReactor) handleUserCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.UserCreatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	r.OnUserCreated(ctx, &payload.User)
	return nil
}

func (r *AutoJoinReactor) handleGroupsChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.UserGroupsChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	r.OnGroupsChanged(ctx, payload.UserID, payload.Added, payload.Removed)
	return nil
}

// OnUserCreated joins the user to auto-join general rooms and to auto-join department rooms
// matching one of the user's groups. It returns the rooms joined.
func (r *AutoJoinReactor) OnUserCreated(ctx context.Context, user *domain.User) []string {
	var joined []string

	general := domain.RoomKindGeneral
	rooms, err := r.rooms.List(ctx, repository.RoomFilter{
		Kind:         &general,
		ActiveOnly:   true,
		AutoJoinOnly: true,
		Names:        r.generalRooms,
	})
	if err != nil {
		r.logger.Warn("auto-join general rooms lookup failed", zap.String("user_id", user.ID), zap.Error(err))
	}
	for _, room := range rooms {
		if r.join(ctx, room, user.ID) {
			joined = append(joined, room.Name)
		}
	}

	if len(user.Groups) == 0 {
		return joined
	}
	for _, room := range r.departmentRooms(ctx, user.ID) {
		if access.MatchesAnyGroup(room.Name, user.Groups) && r.join(ctx, room, user.ID) {
			joined = append(joined, room.Name)
		}
	}
	return joined
}

// OnGroupsChanged joins or leaves auto-join department rooms matching the changed groups.
func (r *AutoJoinReactor) OnGroupsChanged(ctx context.Context, userID string, added, removed []string) (joined, left []string) {
	if len(added) == 0 && len(removed) == 0 {
		return nil, nil
	}
	for _, room := range r.departmentRooms(ctx, userID) {
		if access.MatchesAnyGroup(room.Name, added) && r.join(ctx, room, userID) {
			joined = append(joined, room.Name)
		}
		if access.MatchesAnyGroup(room.Name, removed) && r.leave(ctx, room, userID) {
			left = append(left, room.Name)
		}
	}
	return joined, left
}

func (r *AutoJoinReactor) departmentRooms(ctx context.Context, userID string) []domain.Room {
	kind := domain.RoomKindDepartment
	rooms, err := r.rooms.List(ctx, repository.RoomFilter{Kind: &kind, ActiveOnly: true, AutoJoinOnly: true})
	if err != nil {
		r.logger.Warn("auto-join department rooms lookup failed", zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	return rooms
}

func (r *AutoJoinReactor) join(ctx context.Context, room domain.Room, userID string) bool {
	added, err := r.rooms.AddParticipant(ctx, room.ID, userID)
	if err != nil {
		r.logger.Warn("auto-join failed", zap.String("room", room.Name), zap.String("user_id", userID), zap.Error(err))
		return false
	}
	if added {
		r.logger.Info("user auto-joined room", zap.String("room", room.Name), zap.String("user_id", userID))
	}
	return added
}

func (r *AutoJoinReactor) leave(ctx context.Context, room domain.Room, userID string) bool {
	removed, err := r.rooms.RemoveParticipant(ctx, room.ID, userID)
	if err != nil {
		r.logger.Warn("auto-leave failed", zap.String("room", room.Name), zap.String("user_id", userID), zap.Error(err))
		return false
	}
	if removed {
		r.logger.Info("user auto-left room", zap.String("room", room.Name), zap.String("user_id", userID))
	}
	return removed
}
