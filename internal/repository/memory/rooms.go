package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/staffchat/internal/domain"
	"github.com/spec-kit/staffchat/internal/repository"
)

type roomRepo struct {
	s *Store
}

func cloneRoom(r *domain.Room) *domain.Room {
	out := *r
	out.Participants = append([]string(nil), r.Participants...)
	return &out
}

func (r *roomRepo) Create(ctx context.Context, room *domain.Room) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.roomNames[room.Name]; exists {
		return repository.ErrDuplicate
	}
	now := time.Now().UTC()
	room.ID = uuid.NewString()
	room.CreatedAt = now
	room.UpdatedAt = now
	stored := cloneRoom(room)
	stored.Participants = dedupe(stored.Participants)
	room.Participants = append([]string(nil), stored.Participants...)
	r.s.rooms[room.ID] = stored
	r.s.roomNames[room.Name] = room.ID
	return nil
}

func (r *roomRepo) Update(ctx context.Context, room *domain.Room) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.rooms[room.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.Description = room.Description
	stored.Active = room.Active
	stored.AutoJoin = room.AutoJoin
	stored.ProjectID = room.ProjectID
	stored.UpdatedAt = time.Now().UTC()
	room.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *roomRepo) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if room, ok := r.s.rooms[id]; ok {
		return cloneRoom(room), nil
	}
	return nil, repository.ErrNotFound
}

func (r *roomRepo) GetByName(ctx context.Context, name string) (*domain.Room, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if id, ok := r.s.roomNames[name]; ok {
		return cloneRoom(r.s.rooms[id]), nil
	}
	return nil, repository.ErrNotFound
}

func (r *roomRepo) List(ctx context.Context, filter repository.RoomFilter) ([]domain.Room, error) {
	var names map[string]struct{}
	if len(filter.Names) > 0 {
		names = make(map[string]struct{}, len(filter.Names))
		for _, n := range filter.Names {
			names[n] = struct{}{}
		}
	}

	r.s.mu.RLock()
	out := make([]domain.Room, 0, len(r.s.rooms))
	for _, room := range r.s.rooms {
		if filter.Kind != nil && room.Kind != *filter.Kind {
			continue
		}
		if filter.ActiveOnly && !room.Active {
			continue
		}
		if filter.AutoJoinOnly && !room.AutoJoin {
			continue
		}
		if names != nil {
			if _, ok := names[room.Name]; !ok {
				continue
			}
		}
		out = append(out, *cloneRoom(room))
	}
	r.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *roomRepo) AddParticipant(ctx context.Context, roomID, userID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	room, ok := r.s.rooms[roomID]
	if !ok {
		return false, repository.ErrNotFound
	}
	if _, ok := r.s.users[userID]; !ok {
		return false, repository.ErrInvalidReference
	}
	if room.HasParticipant(userID) {
		return false, nil
	}
	room.Participants = append(room.Participants, userID)
	return true, nil
}

func (r *roomRepo) RemoveParticipant(ctx context.Context, roomID, userID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	room, ok := r.s.rooms[roomID]
	if !ok {
		return false, repository.ErrNotFound
	}
	for i, id := range room.Participants {
		if id == userID {
			room.Participants = append(room.Participants[:i:i], room.Participants[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if !contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
