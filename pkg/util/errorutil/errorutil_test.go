package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainErrorPassesThroughWrapped(t *testing.T) {
	base := NewAccessDenied(map[string]any{"room": "sales-chat"})
	wrapped := fmt.Errorf("send: %w", base)

	de := ToDomainError(wrapped)
	require.NotNil(t, de)
	assert.Equal(t, CodeAccessDenied, de.Code)
	assert.Equal(t, http.StatusForbidden, de.HTTPStatus)
	assert.True(t, HasCode(wrapped, CodeAccessDenied))
}

func TestToDomainErrorDefaultsToInternal(t *testing.T) {
	de := ToDomainError(errors.New("boom"))
	require.NotNil(t, de)
	assert.Equal(t, CodeInternal, de.Code)
	assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
	assert.Nil(t, ToDomainError(nil))
}

func TestTransientUnwrapsCause(t *testing.T) {
	cause := errors.New("deadlock detected")
	err := NewTransient(cause)
	assert.ErrorIs(t, err, cause)
	assert.True(t, HasCode(err, CodeTransient))
	assert.False(t, HasCode(err, CodeStorage))
	assert.Contains(t, err.Error(), "deadlock detected")
}

func TestInvalidRoleCarriesRole(t *testing.T) {
	de := ToDomainError(NewInvalidRole("wizard"))
	assert.Equal(t, CodeInvalidRole, de.Code)
	assert.Equal(t, "wizard", de.Details["role"])
}
