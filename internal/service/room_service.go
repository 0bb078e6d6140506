package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/staffchat/internal/access"
	"github.com/spec-kit/staffchat/internal/domain"
	"github.com/spec-kit/staffchat/internal/repository"
	"github.com/spec-kit/staffchat/pkg/util/errorutil"
)

// RoomService manages the room registry and its participant sets.
type RoomService struct {
	rooms    repository.RoomRepository
	users    repository.UserRepository
	messages repository.MessageRepository
	reads    repository.ReadStatusRepository
	lookup   roomLookup
	logger   *zap.Logger
}

// NewRoomService builds the service.
func NewRoomService(store *repository.Store, logger *zap.Logger) *RoomService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoomService{
		rooms:    store.Rooms,
		users:    store.Users,
		messages: store.Messages,
		reads:    store.ReadStatus,
		lookup:   roomLookup{rooms: store.Rooms},
		logger:   logger,
	}
}

// CreateRoomInput describes a new room. Members are usernames.
type CreateRoomInput struct {
	Name        string
	Kind        domain.RoomKind
	Description string
	AutoJoin    bool
	ProjectID   *string
	Members     []string
}

// UpdateRoomInput carries optional metadata changes.
type UpdateRoomInput struct {
	Description *string
	AutoJoin    *bool
	Active      *bool
}

// RoomSummary is a room as listed for one user.
type RoomSummary struct {
	Room        domain.Room
	LastMessage *MessageView
	Unread      int
}

// CreateRoom registers a room under its canonical name. Department, general and project
// rooms need the same rights as managing them; anyone may open a private room.
func (s *RoomService) CreateRoom(ctx context.Context, creator *domain.User, in CreateRoomInput) (*domain.Room, error) {
	if !in.Kind.Valid() {
		return nil, errorutil.NewValidationError("unknown room kind", map[string]any{"kind": in.Kind})
	}
	name, err := domain.CanonicalRoomName(in.Name)
	if err != nil {
		return nil, errorutil.NewValidationError(err.Error(), map[string]any{"field": "name"})
	}

	room := &domain.Room{
		Name:        name,
		Kind:        in.Kind,
		Description: strings.TrimSpace(in.Description),
		Active:      true,
		AutoJoin:    in.AutoJoin,
		CreatedByID: &creator.ID,
		ProjectID:   in.ProjectID,
	}
	if room.Kind != domain.RoomKindPrivate && !access.CanManage(creator, room) {
		return nil, errorutil.NewAccessDenied(map[string]any{"kind": room.Kind})
	}

	if room.Kind.UsesParticipants() {
		members, err := s.resolveUsernames(ctx, in.Members)
		if err != nil {
			return nil, err
		}
		room.Participants = append([]string{creator.ID}, members...)
	}

	if err := s.rooms.Create(ctx, room); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, errorutil.NewConflict("room name already taken", map[string]any{"name": name})
		}
		return nil, storageError(err, "room")
	}
	s.logger.Info("room created",
		zap.String("room", room.Name),
		zap.String("kind", string(room.Kind)),
		zap.String("created_by", creator.ID))
	return room, nil
}

// GetRoom returns an active room the user may access.
func (s *RoomService) GetRoom(ctx context.Context, user *domain.User, name string) (*domain.Room, error) {
	return s.lookup.accessible(ctx, user, name)
}

// UpdateRoom changes room metadata. Only the creator or staff may do so; they also see
// deactivated rooms here so Active can bring one back.
func (s *RoomService) UpdateRoom(ctx context.Context, user *domain.User, name string, in UpdateRoomInput) (*domain.Room, error) {
	room, err := s.lookup.byName(ctx, name)
	if err != nil {
		return nil, err
	}
	if !access.CanEdit(user, room) {
		if !room.Active {
			return nil, errorutil.NewNotFound("room", map[string]any{"room": room.Name})
		}
		return nil, errorutil.NewAccessDenied(map[string]any{"room": room.Name})
	}
	if in.Description != nil {
		room.Description = strings.TrimSpace(*in.Description)
	}
	if in.AutoJoin != nil {
		room.AutoJoin = *in.AutoJoin
	}
	if in.Active != nil {
		room.Active = *in.Active
	}
	if err := s.rooms.Update(ctx, room); err != nil {
		return nil, storageError(err, "room")
	}
	return room, nil
}

// DeactivateRoom hides a room from every listing and lookup.
func (s *RoomService) DeactivateRoom(ctx context.Context, user *domain.User, name string) error {
	inactive := false
	_, err := s.UpdateRoom(ctx, user, name, UpdateRoomInput{Active: &inactive})
	return err
}

// ListAccessibleRooms returns every active room the user may access with its latest
// message and the user's unread count, most recently active first.
func (s *RoomService) ListAccessibleRooms(ctx context.Context, user *domain.User) ([]RoomSummary, error) {
	rooms, err := s.lookup.accessibleRooms(ctx, user)
	if err != nil {
		return nil, err
	}
	ids := roomIDs(rooms)
	latest, err := s.messages.LatestByRoom(ctx, ids)
	if err != nil {
		return nil, storageError(err, "message")
	}
	unread, err := s.reads.UnreadCounts(ctx, user.ID, ids)
	if err != nil {
		return nil, storageError(err, "message")
	}

	var lastMessages []domain.Message
	for _, m := range latest {
		lastMessages = append(lastMessages, m)
	}
	idx, err := loadUserIndex(ctx, s.users, lastMessages)
	if err != nil {
		return nil, err
	}

	out := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		summary := RoomSummary{Room: room, Unread: unread[room.ID]}
		if m, ok := latest[room.ID]; ok {
			view := idx.message(room.Name, m)
			summary.LastMessage = &view
		}
		out = append(out, summary)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].LastMessage, out[j].LastMessage
		switch {
		case a != nil && b != nil:
			return a.CreatedAt.After(b.CreatedAt)
		case a != nil:
			return true
		case b != nil:
			return false
		}
		return out[i].Room.Name < out[j].Room.Name
	})
	return out, nil
}

// Members lists the participant set of an accessible room.
func (s *RoomService) Members(ctx context.Context, user *domain.User, name string) ([]UserView, error) {
	room, err := s.lookup.accessible(ctx, user, name)
	if err != nil {
		return nil, err
	}
	out := make([]UserView, 0, len(room.Participants))
	if len(room.Participants) == 0 {
		return out, nil
	}
	users, err := s.users.ListByIDs(ctx, room.Participants)
	if err != nil {
		return nil, storageError(err, "user")
	}
	for i := range users {
		out = append(out, NewUserView(&users[i]))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// InviteMembers adds users to a private or project room and returns the ones that joined.
func (s *RoomService) InviteMembers(ctx context.Context, actor *domain.User, name string, usernames []string) ([]UserView, error) {
	room, err := s.managedRoom(ctx, actor, name)
	if err != nil {
		return nil, err
	}
	users, err := s.users.ListByUsernames(ctx, usernames)
	if err != nil {
		return nil, storageError(err, "user")
	}
	if len(users) == 0 {
		return nil, errorutil.NewNotFound("user", map[string]any{"usernames": usernames})
	}
	var joined []UserView
	for i := range users {
		added, err := s.rooms.AddParticipant(ctx, room.ID, users[i].ID)
		if err != nil {
			return joined, storageError(err, "room")
		}
		if added {
			joined = append(joined, NewUserView(&users[i]))
		}
	}
	return joined, nil
}

// RemoveMember removes a user from a private or project room. Nobody removes themselves.
func (s *RoomService) RemoveMember(ctx context.Context, actor *domain.User, name, username string) error {
	room, err := s.managedRoom(ctx, actor, name)
	if err != nil {
		return err
	}
	target, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return storageError(err, "user")
	}
	if target.ID == actor.ID {
		return errorutil.NewValidationError("cannot remove yourself from a room", nil)
	}
	removed, err := s.rooms.RemoveParticipant(ctx, room.ID, target.ID)
	if err != nil {
		return storageError(err, "room")
	}
	if !removed {
		return errorutil.NewNotFound("member", map[string]any{"username": username})
	}
	return nil
}

func (s *RoomService) managedRoom(ctx context.Context, actor *domain.User, name string) (*domain.Room, error) {
	room, err := s.lookup.active(ctx, name)
	if err != nil {
		return nil, err
	}
	if !room.Kind.UsesParticipants() {
		return nil, errorutil.NewValidationError("membership is managed automatically for this room kind",
			map[string]any{"kind": room.Kind})
	}
	if !access.CanManage(actor, room) {
		return nil, errorutil.NewAccessDenied(map[string]any{"room": room.Name})
	}
	return room, nil
}

func (s *RoomService) resolveUsernames(ctx context.Context, usernames []string) ([]string, error) {
	if len(usernames) == 0 {
		return nil, nil
	}
	users, err := s.users.ListByUsernames(ctx, usernames)
	if err != nil {
		return nil, storageError(err, "user")
	}
	ids := make([]string, len(users))
	for i := range users {
		ids[i] = users[i].ID
	}
	return ids, nil
}
