package domain

import (
	"strings"
	"time"
)

// User is an identity known to the chat core. Staff users carry an employee ID.
type User struct {
	ID           string
	Username     string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	Role         Role
	EmployeeID   string
	Department   string
	Groups       []string
	Active       bool

	BannedFromChat bool
	BanExpiresAt   *time.Time
	BanReason      string
	BannedByID     *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsStaff reports whether the user holds a staff role.
func (u *User) IsStaff() bool {
	return u != nil && u.Role.IsStaff()
}

// FullName joins first and last name, falling back to the username.
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// HasGroup reports an exact, case-insensitive group membership.
func (u *User) HasGroup(name string) bool {
	for _, g := range u.Groups {
		if strings.EqualFold(g, name) {
			return true
		}
	}
	return false
}

// ChatBanActive reports whether a chat ban is in force at now. A nil expiry is permanent.
func (u *User) ChatBanActive(now time.Time) bool {
	if u == nil || !u.BannedFromChat {
		return false
	}
	return u.BanExpiresAt == nil || now.Before(*u.BanExpiresAt)
}

// departmentGroups maps a department key to the chat groups it implies.
var departmentGroups = []struct {
	key    string
	groups []string
}{
	{"sales", []string{"sales"}},
	{"technical", []string{"technical", "technician"}},
	{"management", []string{"management", "director", "manager"}},
	{"finance", []string{"finance"}},
	{"hr", []string{"hr", "human resources"}},
	{"marketing", []string{"marketing"}},
	{"customer-service", []string{"customer-service", "support"}},
	{"inventory", []string{"inventory"}},
	{"operations", []string{"operations", "operational"}},
	{"projects", []string{"projects", "project-manager"}},
}

// StaffGroup is granted to every staff user.
const StaffGroup = "staff"

// DepartmentGroups derives the group names implied by a free-text department.
func DepartmentGroups(department string) []string {
	department = strings.TrimSpace(department)
	if department == "" {
		return nil
	}
	key := strings.ToLower(department)
	key = strings.ReplaceAll(key, " ", "-")
	key = strings.ReplaceAll(key, "_", "-")
	for _, entry := range departmentGroups {
		if strings.Contains(key, entry.key) {
			return append([]string(nil), entry.groups...)
		}
		for _, g := range entry.groups {
			if strings.Contains(key, g) {
				return append([]string(nil), entry.groups...)
			}
		}
	}
	return []string{strings.ReplaceAll(strings.ToLower(department), " ", "-")}
}
