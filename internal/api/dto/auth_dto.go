package dto

import (
	"time"

	"github.com/spec-kit/staffchat/internal/domain"
)

// RegisterRequest is the self-service sign-up payload.
type RegisterRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=150"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
}

// LoginRequest accepts a username or an email in Login.
type LoginRequest struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserResponse is the account view returned to its owner and to admins.
type UserResponse struct {
	ID             string     `json:"id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Role           string     `json:"role"`
	EmployeeID     string     `json:"employee_id,omitempty"`
	Department     string     `json:"department,omitempty"`
	Groups         []string   `json:"groups"`
	Active         bool       `json:"active"`
	BannedFromChat bool       `json:"banned_from_chat"`
	BanExpiresAt   *time.Time `json:"ban_expires_at,omitempty"`
	BanReason      string     `json:"ban_reason,omitempty"`
}

// NewUserResponse projects u.
func NewUserResponse(u *domain.User) UserResponse {
	groups := u.Groups
	if groups == nil {
		groups = []string{}
	}
	return UserResponse{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Role:           string(u.Role),
		EmployeeID:     u.EmployeeID,
		Department:     u.Department,
		Groups:         groups,
		Active:         u.Active,
		BannedFromChat: u.BannedFromChat,
		BanExpiresAt:   u.BanExpiresAt,
		BanReason:      u.BanReason,
	}
}
