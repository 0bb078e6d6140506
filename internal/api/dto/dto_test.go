package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/staffchat/pkg/util/errorutil"
)

func TestValidateReportsJSONFieldNames(t *testing.T) {
	err := Validate(RegisterRequest{Username: "ab", Email: "not-an-email", Password: "short"})
	require.Error(t, err)

	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeValidation, domainErr.Code)
	assert.Equal(t, "must be at least 3", domainErr.Details["username"])
	assert.Equal(t, "must be a valid email", domainErr.Details["email"])
	assert.Equal(t, "must be at least 8", domainErr.Details["password"])
}

func TestValidateOptionalFields(t *testing.T) {
	assert.NoError(t, Validate(PreferencesRequest{}))

	bad := "sometimes"
	err := Validate(PreferencesRequest{NotifyFor: &bad})
	require.Error(t, err)
	assert.Equal(t, "must be one of: all mentions none", apperrors.ToDomainError(err).Details["notify_for"])

	assert.NoError(t, Validate(CreateRoomRequest{Name: "huddle", Kind: "private"}))
	assert.Error(t, Validate(CreateRoomRequest{Name: "huddle", Kind: "broadcast"}))
	assert.Error(t, Validate(InviteRequest{}))
	assert.Error(t, Validate(InviteRequest{Usernames: []string{""}}))
}
