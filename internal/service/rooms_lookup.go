package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/staffchat/internal/access"
	"github.com/spec-kit/staffchat/internal/broadcast"
	"github.com/spec-kit/staffchat/internal/domain"
	"github.com/spec-kit/staffchat/internal/repository"
	"github.com/spec-kit/staffchat/pkg/util/errorutil"
)

// roomLookup resolves rooms by name and applies the access oracle.
type roomLookup struct {
	rooms repository.RoomRepository
}

// byName loads a room, active or not, by any spelling of its name.
func (l roomLookup) byName(ctx context.Context, name string) (*domain.Room, error) {
	canonical, err := domain.CanonicalRoomName(name)
	if err != nil {
		return nil, errorutil.NewNotFound("room", map[string]any{"room": name})
	}
	room, err := l.rooms.GetByName(ctx, canonical)
	if err != nil {
		return nil, storageError(err, "room")
	}
	return room, nil
}

// active loads an active room by any spelling of its name.
func (l roomLookup) active(ctx context.Context, name string) (*domain.Room, error) {
	room, err := l.byName(ctx, name)
	if err != nil {
		return nil, err
	}
	if !room.Active {
		return nil, errorutil.NewNotFound("room", map[string]any{"room": room.Name})
	}
	return room, nil
}

// accessible loads an active room and checks that user may use it.
func (l roomLookup) accessible(ctx context.Context, user *domain.User, name string) (*domain.Room, error) {
	room, err := l.active(ctx, name)
	if err != nil {
		return nil, err
	}
	if !access.CanAccess(user, room) {
		return nil, errorutil.NewAccessDenied(map[string]any{"room": room.Name})
	}
	return room, nil
}

// accessibleByID is accessible for callers holding a room ID, such as a message's room.
func (l roomLookup) accessibleByID(ctx context.Context, user *domain.User, roomID string) (*domain.Room, error) {
	room, err := l.rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, storageError(err, "room")
	}
	if !room.Active {
		return nil, errorutil.NewNotFound("room", map[string]any{"room": room.Name})
	}
	if !access.CanAccess(user, room) {
		return nil, errorutil.NewAccessDenied(map[string]any{"room": room.Name})
	}
	return room, nil
}

// accessibleRooms evaluates the oracle over every active room.
func (l roomLookup) accessibleRooms(ctx context.Context, user *domain.User) ([]domain.Room, error) {
	rooms, err := l.rooms.List(ctx, repository.RoomFilter{ActiveOnly: true})
	if err != nil {
		return nil, storageError(err, "room")
	}
	return access.Accessible(user, rooms), nil
}

// publisher sends best-effort envelopes. Failures are logged and never returned.
type publisher struct {
	bus    broadcast.Bus
	logger *zap.Logger
}

func (p publisher) publish(ctx context.Context, eventType, key string, data any) {
	if p.bus == nil {
		return
	}
	env, err := broadcast.NewEnvelope(eventType, key, data)
	if err == nil {
		err = p.bus.Publish(ctx, env)
	}
	if err != nil {
		p.logger.Warn("broadcast failed",
			zap.String("type", eventType),
			zap.String("key", key),
			zap.Error(err))
	}
}

func roomIDs(rooms []domain.Room) []string {
	ids := make([]string, len(rooms))
	for i, r := range rooms {
		ids[i] = r.ID
	}
	return ids
}
