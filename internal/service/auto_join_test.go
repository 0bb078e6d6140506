package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/staffchat/internal/config"
	"github.com/spec-kit/staffchat/internal/domain"
)

func (f *fixture) participants(t *testing.T, room *domain.Room) []string {
	t.Helper()
	fresh, err := f.store.Rooms.GetByID(context.Background(), room.ID)
	require.NoError(t, err)
	return fresh.Participants
}

func TestNewUserJoinsGeneralAndDepartmentRooms(t *testing.T) {
	f := newFixture(t)
	general := f.room(t, "general-announcements", domain.RoomKindGeneral, true)
	quiet := f.room(t, "watercooler", domain.RoomKindGeneral, false)
	sales := f.room(t, "sales-chat", domain.RoomKindDepartment, true)
	finance := f.room(t, "finance-chat", domain.RoomKindDepartment, true)
	manual := f.room(t, "sales-leads", domain.RoomKindDepartment, false)

	u, err := f.identity.CreateUser(context.Background(), CreateUserInput{
		Username:   "sam",
		Email:      "sam@example.com",
		Role:       domain.RoleSalesPerson,
		Department: "Sales",
	})
	require.NoError(t, err)
	assert.Contains(t, u.Groups, "sales")
	assert.Contains(t, u.Groups, domain.StaffGroup)

	assert.Contains(t, f.participants(t, general), u.ID)
	assert.Contains(t, f.participants(t, sales), u.ID)
	assert.NotContains(t, f.participants(t, quiet), u.ID, "auto_join is required")
	assert.NotContains(t, f.participants(t, finance), u.ID)
	assert.NotContains(t, f.participants(t, manual), u.ID)
}

func TestGeneralRoomAllowList(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Chat.AutoJoinGeneralRooms = []string{"General Announcements"} })
	announcements := f.room(t, "general-announcements", domain.RoomKindGeneral, true)
	random := f.room(t, "random", domain.RoomKindGeneral, true)

	u := f.user(t, "newbie", domain.RoleCustomer)
	assert.Contains(t, f.participants(t, announcements), u.ID)
	assert.NotContains(t, f.participants(t, random), u.ID)
}

func TestGroupChangesJoinAndLeaveDepartmentRooms(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hr := f.room(t, "hr-chat", domain.RoomKindDepartment, true)
	u := f.user(t, "pat", domain.RoleCustomer)
	assert.NotContains(t, f.participants(t, hr), u.ID)

	_, err := f.identity.AddGroups(ctx, u.ID, []string{"hr"})
	require.NoError(t, err)
	assert.Contains(t, f.participants(t, hr), u.ID)

	_, err = f.identity.RemoveGroups(ctx, u.ID, []string{"hr"})
	require.NoError(t, err)
	assert.NotContains(t, f.participants(t, hr), u.ID)
}

func TestOnGroupsChangedReportsChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.room(t, "marketing-chat", domain.RoomKindDepartment, true)
	f.room(t, "inventory-chat", domain.RoomKindDepartment, true)
	u := f.rawUser(t, "kim", domain.RoleCustomer, "")

	joined, left := f.autoJoin.OnGroupsChanged(ctx, u.ID, []string{"marketing"}, nil)
	assert.Equal(t, []string{"marketing-chat"}, joined)
	assert.Empty(t, left)

	// Joining twice is a no-op.
	joined, _ = f.autoJoin.OnGroupsChanged(ctx, u.ID, []string{"marketing"}, nil)
	assert.Empty(t, joined)

	_, left = f.autoJoin.OnGroupsChanged(ctx, u.ID, nil, []string{"marketing"})
	assert.Equal(t, []string{"marketing-chat"}, left)

	joined, left = f.autoJoin.OnGroupsChanged(ctx, u.ID, nil, nil)
	assert.Nil(t, joined)
	assert.Nil(t, left)
}

func TestSetGroupsEmitsDifference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ops := f.room(t, "operations-chat", domain.RoomKindDepartment, true)
	fin := f.room(t, "finance-chat", domain.RoomKindDepartment, true)
	u := f.user(t, "lee", domain.RoleCustomer, "finance")
	require.Contains(t, f.participants(t, fin), u.ID)

	updated, err := f.identity.SetGroups(ctx, u.ID, []string{"operations"})
	require.NoError(t, err)
	assert.Equal(t, []string{"operations"}, updated.Groups)
	assert.Contains(t, f.participants(t, ops), u.ID)
	assert.NotContains(t, f.participants(t, fin), u.ID)
}
