package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/staffchat/internal/domain"
	apperrors "github.com/spec-kit/staffchat/pkg/util/errorutil"
)

// RequireStaff ensures the caller holds a staff role, optionally one of allowed.
func RequireStaff(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !user.IsStaff() {
			return apperrors.NewForbidden("staff role required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[user.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// RequireAuthenticated ensures a principal is present.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if CurrentUser(c) == nil {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
