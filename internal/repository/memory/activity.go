package memory

import (
	"context"
	"sort"
	"time"

	"github.com/spec-kit/staffchat/internal/domain"
	"github.com/spec-kit/staffchat/internal/repository"
)

type activityRepo struct {
	s *Store
}

func cloneActivity(a *domain.Activity) *domain.Activity {
	out := *a
	if a.TypingRoomID != nil {
		room := *a.TypingRoomID
		out.TypingRoomID = &room
	}
	return &out
}

func (r *activityRepo) Get(ctx context.Context, userID string) (*domain.Activity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if a, ok := r.s.activity[userID]; ok {
		return cloneActivity(a), nil
	}
	return nil, repository.ErrNotFound
}

func (r *activityRepo) Upsert(ctx context.Context, a *domain.Activity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.activity[a.UserID] = cloneActivity(a)
	return nil
}

func (r *activityRepo) collect(keep func(*domain.Activity) bool) []domain.Activity {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Activity
	for _, a := range r.s.activity {
		if keep(a) {
			out = append(out, *cloneActivity(a))
		}
	}
	return out
}

func (r *activityRepo) ListTyping(ctx context.Context, roomID string, since time.Time) ([]domain.Activity, error) {
	out := r.collect(func(a *domain.Activity) bool {
		return a.Typing && a.TypingRoomID != nil && *a.TypingRoomID == roomID && !a.LastTypingUpdate.Before(since)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].LastTypingUpdate.Before(out[j].LastTypingUpdate) })
	return out, nil
}

func (r *activityRepo) ListOnline(ctx context.Context, since time.Time) ([]domain.Activity, error) {
	out := r.collect(func(a *domain.Activity) bool {
		return a.Online && !a.LastActivity.Before(since)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivity.After(out[j].LastActivity) })
	return out, nil
}

func (r *activityRepo) MarkOffline(ctx context.Context, cutoff time.Time) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var ids []string
	for id, a := range r.s.activity {
		if a.Online && a.LastActivity.Before(cutoff) {
			a.Online = false
			a.Typing = false
			a.TypingRoomID = nil
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *activityRepo) DeleteStale(ctx context.Context, cutoff time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for id, a := range r.s.activity {
		if !a.Online && a.LastActivity.Before(cutoff) {
			delete(r.s.activity, id)
			n++
		}
	}
	return n, nil
}

type preferenceRepo struct {
	s *Store
}

func (r *preferenceRepo) Get(ctx context.Context, userID string) (*domain.NotificationPreference, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if p, ok := r.s.prefs[userID]; ok {
		out := *p
		return &out, nil
	}
	return nil, repository.ErrNotFound
}

func (r *preferenceRepo) Upsert(ctx context.Context, pref *domain.NotificationPreference) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored := *pref
	r.s.prefs[pref.UserID] = &stored
	return nil
}

type reactionRepo struct {
	s *Store
}

func (r *reactionRepo) Toggle(ctx context.Context, reaction domain.Reaction) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.messages[reaction.MessageID]; !ok {
		return false, repository.ErrInvalidReference
	}
	key := reactionKey{messageID: reaction.MessageID, userID: reaction.UserID, emoji: reaction.Emoji}
	if _, ok := r.s.reactions[key]; ok {
		delete(r.s.reactions, key)
		return false, nil
	}
	r.s.reactions[key] = reaction.CreatedAt
	return true, nil
}

func (r *reactionRepo) ListByMessage(ctx context.Context, messageID int64) ([]domain.Reaction, error) {
	r.s.mu.RLock()
	var out []domain.Reaction
	for key, at := range r.s.reactions {
		if key.messageID == messageID {
			out = append(out, domain.Reaction{MessageID: key.messageID, UserID: key.userID, Emoji: key.emoji, CreatedAt: at})
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].Emoji < out[j].Emoji
	})
	return out, nil
}
