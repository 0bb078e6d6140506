package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/staffchat/internal/domain"
)

func (f *fixture) maintenance() *MaintenanceService {
	return NewMaintenanceService(f.store, f.identity, f.messages, f.presence, nil)
}

func TestEnsureDefaultRooms(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, "root", domain.RoleSuperAdmin)
	f.room(t, "sales-chat", domain.RoomKindDepartment, true)
	m := f.maintenance()

	planned, err := m.EnsureDefaultRooms(ctx, true)
	require.NoError(t, err)
	assert.Len(t, planned, len(DefaultDepartments))
	assert.Contains(t, planned, GeneralAnnouncementsRoom)
	assert.NotContains(t, planned, "sales-chat")
	_, err = f.store.Rooms.GetByName(ctx, GeneralAnnouncementsRoom)
	require.Error(t, err, "dry run creates nothing")

	created, err := m.EnsureDefaultRooms(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, planned, created)

	room, err := f.store.Rooms.GetByName(ctx, "customer-service-chat")
	require.NoError(t, err)
	assert.Equal(t, domain.RoomKindDepartment, room.Kind)
	assert.True(t, room.AutoJoin)
	assert.Equal(t, "Department communication for Customer Service", room.Description)
	require.NotNil(t, room.CreatedByID)
	assert.Equal(t, admin.ID, *room.CreatedByID)

	again, err := m.EnsureDefaultRooms(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestClearChatByRoomAndAge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := newClock()
	f.messages.now = c.now
	u := f.user(t, "writer", domain.RoleCustomer)
	f.room(t, "lobby", domain.RoomKindGeneral, true)
	f.room(t, "other", domain.RoomKindGeneral, true)

	for _, room := range []string{"lobby", "lobby", "other"} {
		_, err := f.messages.Append(ctx, u, AppendInput{RoomName: room, Body: "old"})
		require.NoError(t, err)
	}
	c.advance(48 * time.Hour)
	_, err := f.messages.Append(ctx, u, AppendInput{RoomName: "lobby", Body: "new"})
	require.NoError(t, err)

	m := f.maintenance()
	cutoff := c.now().Add(-24 * time.Hour)
	n, err := m.ClearChat(ctx, []string{"Lobby", "missing"}, &cutoff, true)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = m.ClearChat(ctx, []string{"lobby"}, &cutoff, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = m.ClearChat(ctx, nil, nil, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCleanupActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := newClock()
	f.presence.now = c.now
	u := f.user(t, "idle", domain.RoleCustomer)
	require.NoError(t, f.presence.MarkOnline(ctx, u.ID))

	c.advance(10 * 24 * time.Hour)
	offline, deleted, err := f.maintenance().CleanupActivity(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, offline)
	assert.Equal(t, 1, deleted)
}

func TestTitleWords(t *testing.T) {
	assert.Equal(t, "Customer Service", titleWords("customer service"))
	assert.Equal(t, "Hr", titleWords("hr"))
}
