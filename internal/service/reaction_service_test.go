package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/staffchat/internal/broadcast"
	"github.com/spec-kit/staffchat/internal/domain"
	"github.com/spec-kit/staffchat/pkg/util/errorutil"
)

func TestToggleReaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice", domain.RoleCustomer)
	bob := f.user(t, "bob", domain.RoleCustomer)
	room := f.room(t, "lobby", domain.RoomKindGeneral, true)

	msg, err := f.messages.Append(ctx, alice, AppendInput{RoomName: "lobby", Body: "ship it"})
	require.NoError(t, err)

	sub := f.bus.Subscribe(room.BroadcastKey())
	defer sub.Close()

	action, summary, err := f.reactions.Toggle(ctx, alice, msg.ID, "👍")
	require.NoError(t, err)
	assert.Equal(t, ReactionAdded, action)
	require.Len(t, summary, 1)
	assert.Equal(t, 1, summary[0].Count)
	assert.True(t, summary[0].HasReacted)

	env := receive(t, sub)
	assert.Equal(t, broadcast.EventReaction, env.Type)
	var ev ReactionEvent
	require.NoError(t, json.Unmarshal(env.Data, &ev))
	assert.Equal(t, ReactionAdded, ev.Action)
	assert.Equal(t, msg.ID, ev.MessageID)

	_, _, err = f.reactions.Toggle(ctx, bob, msg.ID, "🎉")
	require.NoError(t, err)
	_, _, err = f.reactions.Toggle(ctx, bob, msg.ID, "👍")
	require.NoError(t, err)

	groups, err := f.reactions.Summary(ctx, alice, msg.ID)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "👍", groups[0].Emoji, "groups follow the emoji set order")
	assert.Equal(t, []string{"alice", "bob"}, groups[0].Users)
	assert.True(t, groups[0].HasReacted)
	assert.Equal(t, "🎉", groups[1].Emoji)
	assert.False(t, groups[1].HasReacted)

	action, summary, err = f.reactions.Toggle(ctx, alice, msg.ID, "👍")
	require.NoError(t, err)
	assert.Equal(t, ReactionRemoved, action)
	assert.Equal(t, 1, summary[0].Count)
	assert.False(t, summary[0].HasReacted)
}

func TestToggleRejectsUnknownEmoji(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice", domain.RoleCustomer)
	f.room(t, "lobby", domain.RoomKindGeneral, true)
	msg, err := f.messages.Append(ctx, alice, AppendInput{RoomName: "lobby", Body: "hi"})
	require.NoError(t, err)

	_, _, err = f.reactions.Toggle(ctx, alice, msg.ID, "🦄")
	assert.True(t, errorutil.HasCode(err, errorutil.CodeInvalidEmoji))

	_, _, err = f.reactions.Toggle(ctx, alice, 4242, "👍")
	assert.True(t, errorutil.HasCode(err, errorutil.CodeNotFound))
}

func TestReactionRequiresRoomAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	insider := f.user(t, "insider", domain.RoleCustomer)
	outsider := f.user(t, "outsider", domain.RoleCustomer)
	f.room(t, "secret", domain.RoomKindPrivate, false, insider)
	msg, err := f.messages.Append(ctx, insider, AppendInput{RoomName: "secret", Body: "hush"})
	require.NoError(t, err)

	_, _, err = f.reactions.Toggle(ctx, outsider, msg.ID, "👍")
	assert.True(t, errorutil.HasCode(err, errorutil.CodeAccessDenied))

	empty, err := f.reactions.Summary(ctx, insider, msg.ID)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
