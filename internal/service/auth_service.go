package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/spec-kit/staffchat/internal/auth"
	"github.com/spec-kit/staffchat/internal/config"
	"github.com/spec-kit/staffchat/internal/domain"
	"github.com/spec-kit/staffchat/internal/repository"
	"github.com/spec-kit/staffchat/pkg/util/errorutil"
)

// AuthService coordinates registration and login flows.
type AuthService struct {
	users      repository.UserRepository
	identity   *IdentityService
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, users repository.UserRepository, identity *IdentityService) *AuthService {
	return &AuthService{
		users:      users,
		identity:   identity,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		bcryptCost: cfg.BcryptCost,
	}
}

// TokenManager exposes the JWT manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// RegisterInput describes a self-service registration. Self-registered users are customers.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Session is a user plus a signed access token.
type Session struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// Register creates a customer account and signs a token for it.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	if err := auth.CheckPasswordStrength(in.Password); err != nil {
		return nil, errorutil.NewValidationError(err.Error(), map[string]any{"field": "password"})
	}
	email := strings.TrimSpace(in.Email)
	if email != "" {
		if _, err := s.users.GetByEmail(ctx, email); err == nil {
			return nil, errorutil.NewConflict("email already registered", nil)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, storageError(err, "user")
		}
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, errorutil.NewInternalError(err)
	}
	user, err := s.identity.CreateUser(ctx, CreateUserInput{
		Username:     in.Username,
		Email:        email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: hash,
		Role:         domain.RoleCustomer,
	})
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// Login authenticates by username or email.
func (s *AuthService) Login(ctx context.Context, login, password string) (*Session, error) {
	login = strings.TrimSpace(login)
	var (
		user *domain.User
		err  error
	)
	if strings.Contains(login, "@") {
		user, err = s.users.GetByEmail(ctx, login)
	} else {
		user, err = s.users.GetByUsername(ctx, login)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errorutil.NewUnauthorized("invalid credentials")
	}
	if err != nil {
		return nil, storageError(err, "user")
	}
	if !user.Active {
		return nil, errorutil.NewUnauthorized("account disabled")
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, errorutil.NewUnauthorized("invalid credentials")
	}
	return s.issue(user)
}

func (s *AuthService) issue(user *domain.User) (*Session, error) {
	token, exp, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, errorutil.NewInternalError(err)
	}
	return &Session{User: user, Token: token, ExpiresAt: exp}, nil
}
