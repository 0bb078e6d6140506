package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestPublishRunsEveryHandlerDespiteErrors(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	d := NewInMemoryDispatcher(zap.New(core))

	var calls []string
	d.Subscribe(EventUserCreated, func(ctx context.Context, e Event) error {
		calls = append(calls, "first")
		return errors.New("room lookup failed")
	})
	d.Subscribe(EventUserCreated, func(ctx context.Context, e Event) error {
		calls = append(calls, "second")
		return nil
	})
	d.Subscribe(EventMessageAppended, func(ctx context.Context, e Event) error {
		calls = append(calls, "other")
		return nil
	})

	err := d.Publish(context.Background(), NewEvent(EventUserCreated, "u1", UserCreatedPayload{}))
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, calls)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "event handler failed", logs.All()[0].Message)
}

func TestNewEventStampsIdentity(t *testing.T) {
	a := NewEvent(EventUserGroupsChanged, "admin", UserGroupsChangedPayload{UserID: "u1", Added: []string{"sales"}})
	b := NewEvent(EventUserGroupsChanged, "admin", nil)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.Timestamp.IsZero())
}
