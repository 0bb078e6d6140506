package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/staffchat/internal/broadcast"
	"github.com/spec-kit/staffchat/internal/config"
	"github.com/spec-kit/staffchat/internal/domain"
	"github.com/spec-kit/staffchat/internal/events"
	"github.com/spec-kit/staffchat/internal/repository"
	"github.com/spec-kit/staffchat/internal/repository/memory"
)

type fixture struct {
	store      *repository.Store
	bus        *broadcast.LocalBus
	dispatcher events.Dispatcher
	ids        *EmployeeIDService
	identity   *IdentityService
	rooms      *RoomService
	messages   *MessageService
	reactions  *ReactionService
	presence   *PresenceService
	search     *SearchService
	autoJoin   *AutoJoinReactor
}

type fixtureOption func(*config.Config)

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	cfg := config.Config{
		Identity: config.IdentityConfig{MaxAttempts: 3, OnDemotion: config.DemotionPreserve},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	store := memory.New().Repositories()
	bus := broadcast.NewLocalBus(16, nil)
	t.Cleanup(func() { _ = bus.Close() })
	dispatcher := events.NewInMemoryDispatcher(nil)

	ids := NewEmployeeIDService(store.Users, cfg.Identity, nil, nil)
	identity := NewIdentityService(store.Users, NewRoleChangeReactor(ids, cfg.Identity.OnDemotion, nil), dispatcher, nil)
	autoJoin := NewAutoJoinReactor(store.Rooms, cfg.Chat, nil)
	autoJoin.RegisterHandlers(dispatcher)

	return &fixture{
		store:      store,
		bus:        bus,
		dispatcher: dispatcher,
		ids:        ids,
		identity:   identity,
		rooms:      NewRoomService(store, nil),
		messages:   NewMessageService(store, bus, dispatcher, nil, nil),
		reactions:  NewReactionService(store, bus, nil),
		presence:   NewPresenceService(store, bus, nil),
		search:     NewSearchService(store),
		autoJoin:   autoJoin,
	}
}

// rawUser inserts a user without running any post-write hook.
func (f *fixture) rawUser(t *testing.T, username string, role domain.Role, employeeID string) *domain.User {
	t.Helper()
	u := &domain.User{Username: username, Role: role, EmployeeID: employeeID, Active: true}
	require.NoError(t, f.store.Users.Create(context.Background(), u))
	return u
}

func (f *fixture) user(t *testing.T, username string, role domain.Role, groups ...string) *domain.User {
	t.Helper()
	u, err := f.identity.CreateUser(context.Background(), CreateUserInput{
		Username: username,
		Email:    username + "@example.com",
		Role:     role,
		Groups:   groups,
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) room(t *testing.T, name string, kind domain.RoomKind, autoJoin bool, participants ...*domain.User) *domain.Room {
	t.Helper()
	room := &domain.Room{Name: name, Kind: kind, Active: true, AutoJoin: autoJoin}
	for _, p := range participants {
		room.Participants = append(room.Participants, p.ID)
	}
	require.NoError(t, f.store.Rooms.Create(context.Background(), room))
	return room
}

// reload fetches the stored copy of u, picking up group and participant changes.
func (f *fixture) reload(t *testing.T, u *domain.User) *domain.User {
	t.Helper()
	fresh, err := f.store.Users.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	return fresh
}

// clock is a settable time source for services that take one.
type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock {
	return &clock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func receive(t *testing.T, sub *broadcast.Subscription) broadcast.Envelope {
	t.Helper()
	select {
	case env := <-sub.C():
		return env
	case <-time.After(time.Second):
		t.Fatal("no envelope received")
	}
	return broadcast.Envelope{}
}
