package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/staffchat/internal/config"
	"github.com/spec-kit/staffchat/internal/domain"
	"github.com/spec-kit/staffchat/pkg/util/errorutil"
)

func newAuthService(f *fixture) *AuthService {
	return NewAuthService(config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 15,
		BcryptCost:            bcrypt.MinCost,
	}, f.store.Users, f.identity)
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.room(t, "general-announcements", domain.RoomKindGeneral, true)
	svc := newAuthService(f)

	session, err := svc.Register(ctx, RegisterInput{
		Username: "newcomer",
		Email:    "newcomer@example.com",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCustomer, session.User.Role)
	assert.Empty(t, session.User.EmployeeID)
	assert.NotEmpty(t, session.Token)

	claims, err := svc.TokenManager().ParseToken(session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, claims.UserID)

	room, err := f.store.Rooms.GetByName(ctx, "general-announcements")
	require.NoError(t, err)
	assert.Contains(t, room.Participants, session.User.ID)

	byName, err := svc.Login(ctx, "newcomer", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, byName.User.ID)

	byEmail, err := svc.Login(ctx, "NEWCOMER@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, byEmail.User.ID)

	_, err = svc.Login(ctx, "newcomer", "wrong-horse")
	assert.True(t, errorutil.HasCode(err, errorutil.CodeUnauthorized))
	_, err = svc.Login(ctx, "nobody", "correct-horse")
	assert.True(t, errorutil.HasCode(err, errorutil.CodeUnauthorized))
}

func TestRegisterRejectsWeakPasswordAndDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := newAuthService(f)

	_, err := svc.Register(ctx, RegisterInput{Username: "a", Email: "a@example.com", Password: "short"})
	assert.True(t, errorutil.HasCode(err, errorutil.CodeValidation))

	_, err = svc.Register(ctx, RegisterInput{Username: "a", Email: "a@example.com", Password: "long-enough"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{Username: "b", Email: "a@example.com", Password: "long-enough"})
	assert.True(t, errorutil.HasCode(err, errorutil.CodeConflict))

	_, err = svc.Register(ctx, RegisterInput{Username: "a", Email: "other@example.com", Password: "long-enough"})
	assert.True(t, errorutil.HasCode(err, errorutil.CodeConflict))
}

func TestLoginRejectsDisabledAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := newAuthService(f)
	session, err := svc.Register(ctx, RegisterInput{Username: "gone", Email: "gone@example.com", Password: "long-enough"})
	require.NoError(t, err)

	_, err = f.identity.UpdateUser(ctx, session.User.ID, UpdateUserInput{Active: boolPtr(false)})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "gone", "long-enough")
	assert.True(t, errorutil.HasCode(err, errorutil.CodeUnauthorized))
}
