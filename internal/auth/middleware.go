package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/staffchat/internal/domain"
	apperrors "github.com/spec-kit/staffchat/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	User *domain.User
}

// UserLoader resolves the user behind a token.
type UserLoader interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
}

// ActivityTracker records that a user was seen.
type ActivityTracker interface {
	MarkOnline(ctx context.Context, userID string) error
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens   *TokenManager
	users    UserLoader
	activity ActivityTracker
	logger   *zap.Logger
}

// NewAuthMiddleware constructs middleware. activity may be nil.
func NewAuthMiddleware(tokens *TokenManager, users UserLoader, activity ActivityTracker, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{tokens: tokens, users: users, activity: activity, logger: logger}
}

// Handle enforces authentication for protected routes and touches the caller's presence.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	token := bearerToken(c)
	if token == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	claims, err := m.tokens.ParseToken(token)
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	user, err := m.users.GetUser(c.UserContext(), claims.UserID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeNotFound) {
			return apperrors.NewUnauthorized("user not found")
		}
		return err
	}
	if !user.Active {
		return apperrors.NewUnauthorized("user inactive")
	}

	if m.activity != nil {
		if err := m.activity.MarkOnline(c.UserContext(), user.ID); err != nil {
			m.logger.Warn("presence update failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	c.Locals(principalKey, &Principal{User: user})
	return c.Next()
}

// bearerToken reads the Authorization header, falling back to the access_token query
// parameter for EventSource clients that cannot set headers.
func bearerToken(c *fiber.Ctx) string {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return c.Query("access_token")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok && principal.User != nil
}

// CurrentUser returns the authenticated user or nil.
func CurrentUser(c *fiber.Ctx) *domain.User {
	principal, ok := PrincipalFromContext(c)
	if !ok {
		return nil
	}
	return principal.User
}
