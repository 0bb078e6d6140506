package dto

import "time"

// UpdateUserRequest is the staff-admin user edit. Omitted fields are unchanged.
type UpdateUserRequest struct {
	Email      *string `json:"email,omitempty" validate:"omitempty,email"`
	FirstName  *string `json:"first_name,omitempty" validate:"omitempty,max=150"`
	LastName   *string `json:"last_name,omitempty" validate:"omitempty,max=150"`
	Role       *string `json:"role,omitempty"`
	Department *string `json:"department,omitempty" validate:"omitempty,max=100"`
	Active     *bool   `json:"active,omitempty"`
}

// SetGroupsRequest replaces a user's groups.
type SetGroupsRequest struct {
	Groups []string `json:"groups" validate:"dive,required,max=150"`
}

// BanRequest bans a user from posting. A nil Until bans permanently.
type BanRequest struct {
	Reason string     `json:"reason" validate:"max=500"`
	Until  *time.Time `json:"until,omitempty"`
}
