// Package memory is a thread-safe in-process implementation of the repository interfaces.
// It backs the service when no Postgres DSN is configured and serves as the test double.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/staffchat/internal/domain"
	"github.com/spec-kit/staffchat/internal/repository"
)

type readKey struct {
	messageID int64
	userID    string
}

type reactionKey struct {
	messageID int64
	userID    string
	emoji     string
}

// Store holds every table behind one RWMutex. Employee ID allocation additionally takes a
// per-role lock so allocators for different roles never wait on each other.
type Store struct {
	mu sync.RWMutex

	users     map[string]*domain.User
	rooms     map[string]*domain.Room
	roomNames map[string]string

	messages      map[int64]*domain.Message
	roomMessages  map[string][]int64
	nextMessageID int64

	reads     map[readKey]time.Time
	reactions map[reactionKey]time.Time
	activity  map[string]*domain.Activity
	prefs     map[string]*domain.NotificationPreference

	locksMu sync.Mutex
	idLocks map[domain.Role]chan struct{}
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:        make(map[string]*domain.User),
		rooms:        make(map[string]*domain.Room),
		roomNames:    make(map[string]string),
		messages:     make(map[int64]*domain.Message),
		roomMessages: make(map[string][]int64),
		reads:        make(map[readKey]time.Time),
		reactions:    make(map[reactionKey]time.Time),
		activity:     make(map[string]*domain.Activity),
		prefs:        make(map[string]*domain.NotificationPreference),
		idLocks:      make(map[domain.Role]chan struct{}),
	}
}

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() *repository.Store {
	return &repository.Store{
		Users:       &userRepo{s: s},
		Rooms:       &roomRepo{s: s},
		Messages:    &messageRepo{s: s},
		ReadStatus:  &readStatusRepo{s: s},
		Reactions:   &reactionRepo{s: s},
		Activity:    &activityRepo{s: s},
		Preferences: &preferenceRepo{s: s},
	}
}

// roleLock acquires the allocation lock for role, honouring ctx while waiting.
func (s *Store) roleLock(ctx context.Context, role domain.Role) (func(), error) {
	s.locksMu.Lock()
	ch, ok := s.idLocks[role]
	if !ok {
		ch = make(chan struct{}, 1)
		s.idLocks[role] = ch
	}
	s.locksMu.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
