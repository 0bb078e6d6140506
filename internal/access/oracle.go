// Package access decides who may read, write and manage chat rooms. Every function is pure
// over the user, the user's groups and the room's participant set.
package access

import (
	"strings"

	"github.com/spec-kit/staffchat/internal/domain"
)

// Group names with special meaning to the oracle.
const (
	GroupManagement     = "management"
	GroupStaff          = "staff"
	GroupProjectManager = "project-manager"
)

// CanAccess reports whether user may read and write room.
func CanAccess(user *domain.User, room *domain.Room) bool {
	if user == nil || room == nil {
		return false
	}
	switch room.Kind {
	case domain.RoomKindPrivate:
		return room.HasParticipant(user.ID)
	case domain.RoomKindDepartment:
		if user.IsStaff() {
			return true
		}
		name := strings.ToLower(room.Name)
		for _, g := range user.Groups {
			if strings.Contains(strings.ToLower(g), name) {
				return true
			}
		}
		return false
	case domain.RoomKindGeneral:
		return true
	case domain.RoomKindProject:
		if user.IsStaff() {
			return true
		}
		return hasAnyGroup(user, GroupManagement, GroupStaff, strings.ToLower(room.Name))
	default:
		return false
	}
}

// CanManage reports whether user may invite, remove and edit for room.
// Self-removal from private rooms is refused by the caller, not here.
func CanManage(user *domain.User, room *domain.Room) bool {
	if user == nil || room == nil {
		return false
	}
	switch room.Kind {
	case domain.RoomKindPrivate:
		return room.HasParticipant(user.ID)
	case domain.RoomKindProject:
		return user.IsStaff() || hasAnyGroup(user, GroupManagement, GroupProjectManager)
	case domain.RoomKindDepartment, domain.RoomKindGeneral:
		return user.IsStaff()
	default:
		return false
	}
}

// CanEdit reports whether user may change room metadata or deactivate it.
func CanEdit(user *domain.User, room *domain.Room) bool {
	if user == nil || room == nil {
		return false
	}
	if room.CreatedByID != nil && *room.CreatedByID == user.ID {
		return true
	}
	return user.IsStaff()
}

// MatchRoomGroup is the symmetric substring rule used by auto-join: either lowercased name
// contains the other. Short room names match broadly.
func MatchRoomGroup(roomName, groupName string) bool {
	room := strings.ToLower(roomName)
	group := strings.ToLower(groupName)
	if room == "" || group == "" {
		return false
	}
	return strings.Contains(group, room) || strings.Contains(room, group)
}

// MatchesAnyGroup applies MatchRoomGroup to each group.
func MatchesAnyGroup(roomName string, groups []string) bool {
	for _, g := range groups {
		if MatchRoomGroup(roomName, g) {
			return true
		}
	}
	return false
}

// Accessible filters rooms down to the active ones user may access.
func Accessible(user *domain.User, rooms []domain.Room) []domain.Room {
	out := make([]domain.Room, 0, len(rooms))
	for i := range rooms {
		if rooms[i].Active && CanAccess(user, &rooms[i]) {
			out = append(out, rooms[i])
		}
	}
	return out
}

func hasAnyGroup(user *domain.User, names ...string) bool {
	for _, n := range names {
		if user.HasGroup(n) {
			return true
		}
	}
	return false
}
