package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/staffchat/internal/domain"
)

func customer(id string, groups ...string) *domain.User {
	return &domain.User{ID: id, Username: id, Role: domain.RoleCustomer, Groups: groups}
}

func TestPrivateRoomRequiresParticipation(t *testing.T) {
	room := &domain.Room{Name: "deal-room", Kind: domain.RoomKindPrivate, Active: true, Participants: []string{"u1", "u2"}}

	assert.True(t, CanAccess(customer("u1"), room))
	assert.False(t, CanAccess(customer("u3"), room))
	// Staff get no implicit access to private rooms.
	assert.False(t, CanAccess(&domain.User{ID: "boss", Role: domain.RoleDirector}, room))

	assert.True(t, CanManage(customer("u2"), room))
	assert.False(t, CanManage(customer("u3"), room))
}

func TestGeneralRoomAllowsEveryone(t *testing.T) {
	room := &domain.Room{Name: "general-announcements", Kind: domain.RoomKindGeneral, Active: true}
	assert.True(t, CanAccess(customer("anyone"), room))
	assert.False(t, CanManage(customer("anyone"), room))
	assert.True(t, CanManage(&domain.User{ID: "s", Role: domain.RoleCashier}, room))
}

func TestDepartmentRoomGroupSubstring(t *testing.T) {
	room := &domain.Room{Name: "Sales", Kind: domain.RoomKindDepartment, Active: true}

	assert.True(t, CanAccess(customer("a", "inside-sales-team"), room))
	assert.True(t, CanAccess(customer("b", "SALES"), room))
	assert.False(t, CanAccess(customer("c", "sal"), room), "group must contain the room name")
	assert.False(t, CanAccess(customer("d"), room))
	assert.True(t, CanAccess(&domain.User{ID: "e", Role: domain.RoleTechnician}, room))
}

func TestProjectRoomRules(t *testing.T) {
	room := &domain.Room{Name: "Solar-Farm", Kind: domain.RoomKindProject, Active: true}

	assert.True(t, CanAccess(customer("a", "management"), room))
	assert.True(t, CanAccess(customer("b", "staff"), room))
	assert.True(t, CanAccess(customer("c", "solar-farm"), room))
	assert.False(t, CanAccess(customer("d", "solar"), room))
	assert.True(t, CanAccess(&domain.User{ID: "e", Role: domain.RoleSalesPerson}, room))

	assert.True(t, CanManage(customer("f", "project-manager"), room))
	assert.False(t, CanManage(customer("g", "solar-farm"), room))
}

func TestUnknownKindDenies(t *testing.T) {
	room := &domain.Room{Name: "x", Kind: domain.RoomKind("broadcast")}
	staff := &domain.User{ID: "s", Role: domain.RoleSuperAdmin}
	assert.False(t, CanAccess(staff, room))
	assert.False(t, CanManage(staff, room))
	assert.False(t, CanAccess(nil, room))
}

func TestCanEdit(t *testing.T) {
	creator := "u1"
	room := &domain.Room{Name: "r", Kind: domain.RoomKindPrivate, CreatedByID: &creator}
	assert.True(t, CanEdit(customer("u1"), room))
	assert.False(t, CanEdit(customer("u2"), room))
	assert.True(t, CanEdit(&domain.User{ID: "s", Role: domain.RoleManager}, room))
}

func TestMatchRoomGroupIsSymmetric(t *testing.T) {
	assert.True(t, MatchRoomGroup("sales", "sales-team"))
	assert.True(t, MatchRoomGroup("sales-chat", "sales"))
	assert.True(t, MatchRoomGroup("HR", "hr"))
	assert.False(t, MatchRoomGroup("finance", "sales"))
	assert.False(t, MatchRoomGroup("", "sales"))
	// Permissive on short names.
	assert.True(t, MatchRoomGroup("hr-chat", "h"))
	assert.True(t, MatchesAnyGroup("technical-chat", []string{"marketing", "technical"}))
}

func TestAccessibleSkipsInactive(t *testing.T) {
	rooms := []domain.Room{
		{Name: "lobby", Kind: domain.RoomKindGeneral, Active: true},
		{Name: "old", Kind: domain.RoomKindGeneral, Active: false},
		{Name: "secret", Kind: domain.RoomKindPrivate, Active: true},
	}
	got := Accessible(customer("u1"), rooms)
	assert.Len(t, got, 1)
	assert.Equal(t, "lobby", got[0].Name)
}
