package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/staffchat/internal/broadcast"
	"github.com/spec-kit/staffchat/internal/domain"
	"github.com/spec-kit/staffchat/internal/repository"
	"github.com/spec-kit/staffchat/pkg/util/errorutil"
)

func TestUnreadBookkeeping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u1 := f.user(t, "u1", domain.RoleCustomer)
	u2 := f.user(t, "u2", domain.RoleCustomer)
	f.room(t, "deal-room", domain.RoomKindPrivate, false, u1, u2)

	before1, err := f.messages.UnreadCount(ctx, u1)
	require.NoError(t, err)
	before2, err := f.messages.UnreadCount(ctx, u2)
	require.NoError(t, err)

	msg, err := f.messages.Append(ctx, u1, AppendInput{RoomName: "deal-room", Body: "hello @u2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, msg.Mentions)

	stored, err := f.store.Messages.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{u2.ID}, stored.Mentions)

	read, err := f.store.ReadStatus.IsRead(ctx, u1.ID, msg.ID)
	require.NoError(t, err)
	assert.True(t, read, "author has read their own message")

	after1, err := f.messages.UnreadCount(ctx, u1)
	require.NoError(t, err)
	after2, err := f.messages.UnreadCount(ctx, u2)
	require.NoError(t, err)
	assert.Equal(t, before1, after1)
	assert.Equal(t, before2+1, after2)

	byRoom, err := f.messages.UnreadByRoom(ctx, u2)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"deal-room": 1}, byRoom)

	fresh, err := f.messages.MarkRead(ctx, u2, msg.ID)
	require.NoError(t, err)
	assert.True(t, fresh)
	again, err := f.messages.MarkRead(ctx, u2, msg.ID)
	require.NoError(t, err)
	assert.False(t, again, "second mark_read is a no-op")

	final2, err := f.messages.UnreadCount(ctx, u2)
	require.NoError(t, err)
	assert.Equal(t, before2, final2)
}

func TestAppendValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "writer", domain.RoleCustomer)
	f.room(t, "lobby", domain.RoomKindGeneral, true)

	cases := []struct {
		name string
		in   AppendInput
		code string
	}{
		{"empty", AppendInput{RoomName: "lobby", Body: "   "}, errorutil.CodeEmptyContent},
		{"too long", AppendInput{RoomName: "lobby", Body: strings.Repeat("x", domain.MaxBodyLength+1)}, errorutil.CodeBodyTooLong},
		{"bad attachment", AppendInput{RoomName: "lobby", Attachment: &domain.Attachment{
			FileName: "tool.exe", ContentType: "application/x-msdownload", Data: []byte("MZ"),
		}}, errorutil.CodeUnsupportedAttachment},
		{"missing parent", AppendInput{RoomName: "lobby", Body: "re", ReplyToID: int64Ptr(999)}, errorutil.CodeReplyParentMissing},
		{"unknown room", AppendInput{RoomName: "nowhere", Body: "hi"}, errorutil.CodeNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.messages.Append(ctx, u, tc.in)
			require.Error(t, err)
			assert.True(t, errorutil.HasCode(err, tc.code), "got %v", err)
		})
	}

	// Length is counted in characters, not bytes.
	_, err := f.messages.Append(ctx, u, AppendInput{RoomName: "lobby", Body: strings.Repeat("é", domain.MaxBodyLength)})
	assert.NoError(t, err)
}

func int64Ptr(v int64) *int64 { return &v }

func TestAppendAttachmentOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "writer", domain.RoleCustomer)
	f.room(t, "lobby", domain.RoomKindGeneral, true)

	msg, err := f.messages.Append(ctx, u, AppendInput{RoomName: "Lobby", Attachment: &domain.Attachment{
		FileName: "plan.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.7"),
	}})
	require.NoError(t, err)
	require.NotNil(t, msg.Attachment)
	assert.Equal(t, "plan.pdf", msg.Attachment.FileName)
	assert.EqualValues(t, 8, msg.Attachment.Size)
	assert.Equal(t, "lobby", msg.Room)
}

func TestReplyMustStayInRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "writer", domain.RoleCustomer)
	f.room(t, "lobby", domain.RoomKindGeneral, true)
	f.room(t, "other", domain.RoomKindGeneral, true)

	parent, err := f.messages.Append(ctx, u, AppendInput{RoomName: "other", Body: "root"})
	require.NoError(t, err)

	_, err = f.messages.Append(ctx, u, AppendInput{RoomName: "lobby", Body: "re", ReplyToID: &parent.ID})
	assert.True(t, errorutil.HasCode(err, errorutil.CodeReplyParentMissing))

	reply, err := f.messages.Append(ctx, u, AppendInput{RoomName: "other", Body: "re", ReplyToID: &parent.ID})
	require.NoError(t, err)
	assert.Equal(t, parent.ID, *reply.ReplyToID)
}

func TestAppendDeniedOutsideRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u1 := f.user(t, "u1", domain.RoleCustomer)
	u3 := f.user(t, "u3", domain.RoleCustomer)
	f.room(t, "deal-room", domain.RoomKindPrivate, false, u1)

	_, err := f.messages.Append(ctx, u3, AppendInput{RoomName: "deal-room", Body: "let me in"})
	assert.True(t, errorutil.HasCode(err, errorutil.CodeAccessDenied))
}

func TestBannedUserCannotPost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, "admin", domain.RoleSuperAdmin)
	u := f.user(t, "loud", domain.RoleCustomer)
	f.room(t, "lobby", domain.RoomKindGeneral, true)

	until := time.Now().Add(time.Hour)
	banned, err := f.identity.BanFromChat(ctx, admin.ID, u.ID, "spam", &until)
	require.NoError(t, err)

	_, err = f.messages.Append(ctx, banned, AppendInput{RoomName: "lobby", Body: "hi"})
	assert.True(t, errorutil.HasCode(err, errorutil.CodeChatBanned))

	lifted, err := f.identity.LiftChatBan(ctx, u.ID)
	require.NoError(t, err)
	_, err = f.messages.Append(ctx, lifted, AppendInput{RoomName: "lobby", Body: "hi"})
	assert.NoError(t, err)
}

func TestAppendBroadcastsToRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "writer", domain.RoleCustomer)
	room := f.room(t, "lobby", domain.RoomKindGeneral, true)

	sub := f.bus.Subscribe(room.BroadcastKey())
	defer sub.Close()

	msg, err := f.messages.Append(ctx, u, AppendInput{RoomName: "lobby", Body: "ping"})
	require.NoError(t, err)

	env := receive(t, sub)
	assert.Equal(t, broadcast.EventMessage, env.Type)
	var got MessageView
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, msg.ID, got.ID)
	assert.Equal(t, "writer", got.Author.Username)
	assert.Equal(t, "ping", got.Body)
}

func TestEditOwnMessageOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.user(t, "author", domain.RoleCustomer)
	other := f.user(t, "other", domain.RoleCustomer)
	room := f.room(t, "lobby", domain.RoomKindGeneral, true)

	msg, err := f.messages.Append(ctx, author, AppendInput{RoomName: "lobby", Body: "draft"})
	require.NoError(t, err)

	_, err = f.messages.Edit(ctx, other, msg.ID, "hijack")
	assert.True(t, errorutil.HasCode(err, errorutil.CodeAccessDenied))

	sub := f.bus.Subscribe(room.BroadcastKey())
	defer sub.Close()

	edited, err := f.messages.Edit(ctx, author, msg.ID, "final @other")
	require.NoError(t, err)
	assert.True(t, edited.Edited)
	require.NotNil(t, edited.EditedAt)
	assert.Equal(t, []string{"other"}, edited.Mentions)

	env := receive(t, sub)
	assert.Equal(t, broadcast.EventMessageEdited, env.Type)

	_, err = f.messages.Edit(ctx, author, msg.ID, "  ")
	assert.True(t, errorutil.HasCode(err, errorutil.CodeEmptyContent))
}

func TestListPagesAndMarksRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	writer := f.user(t, "writer", domain.RoleCustomer)
	reader := f.user(t, "reader", domain.RoleCustomer)
	f.room(t, "lobby", domain.RoomKindGeneral, true)

	var ids []int64
	for i := 0; i < 5; i++ {
		m, err := f.messages.Append(ctx, writer, AppendInput{RoomName: "lobby", Body: "line"})
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}

	page, err := f.messages.List(ctx, reader, "lobby", PageRequest{Mode: PageInitial, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, ids[3], page.Messages[0].ID)
	assert.Equal(t, ids[4], page.Messages[1].ID)

	unread, err := f.messages.UnreadCount(ctx, reader)
	require.NoError(t, err)
	assert.Equal(t, 3, unread, "initial page marks its messages read")

	older, err := f.messages.List(ctx, reader, "lobby", PageRequest{Mode: PageBefore, Cursor: ids[3], Limit: 2})
	require.NoError(t, err)
	require.Len(t, older.Messages, 2)
	assert.True(t, older.HasMore)
	assert.Equal(t, ids[1], older.Messages[0].ID)

	unread, err = f.messages.UnreadCount(ctx, reader)
	require.NoError(t, err)
	assert.Equal(t, 3, unread, "scrolling back leaves read status alone")

	newer, err := f.messages.List(ctx, reader, "lobby", PageRequest{Mode: PageAfter, Cursor: ids[0], Limit: 10})
	require.NoError(t, err)
	assert.Len(t, newer.Messages, 4)
	assert.False(t, newer.HasMore)

	unread, err = f.messages.UnreadCount(ctx, reader)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	n, err := f.messages.MarkRoomRead(ctx, reader, "lobby")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.messages.List(ctx, reader, "lobby", PageRequest{Mode: "sideways"})
	assert.True(t, errorutil.HasCode(err, errorutil.CodeValidation))
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultPageLimit, clampLimit(0, DefaultPageLimit, MaxPageLimit))
	assert.Equal(t, MaxPageLimit, clampLimit(1000, DefaultPageLimit, MaxPageLimit))
	assert.Equal(t, 7, clampLimit(7, DefaultPageLimit, MaxPageLimit))
}

func TestRebuildMentionsPicksUpNewUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	writer := f.user(t, "writer", domain.RoleCustomer)
	f.room(t, "lobby", domain.RoomKindGeneral, true)

	msg, err := f.messages.Append(ctx, writer, AppendInput{RoomName: "lobby", Body: "ask @late_joiner"})
	require.NoError(t, err)
	assert.Empty(t, msg.Mentions)

	late := f.user(t, "late_joiner", domain.RoleCustomer)
	changed, err := f.messages.RebuildMentions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	stored, err := f.store.Messages.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{late.ID}, stored.Mentions)

	changed, err = f.messages.RebuildMentions(ctx)
	require.NoError(t, err)
	assert.Zero(t, changed)
}

func TestDeleteMessagesDryRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	writer := f.user(t, "writer", domain.RoleCustomer)
	room := f.room(t, "lobby", domain.RoomKindGeneral, true)
	for i := 0; i < 3; i++ {
		_, err := f.messages.Append(ctx, writer, AppendInput{RoomName: "lobby", Body: "old"})
		require.NoError(t, err)
	}

	filter := repository.MessageDeleteFilter{RoomID: &room.ID}
	n, err := f.messages.DeleteMessages(ctx, filter, true)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = f.messages.DeleteMessages(ctx, filter, false)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	page, err := f.messages.List(ctx, writer, "lobby", PageRequest{})
	require.NoError(t, err)
	assert.Empty(t, page.Messages)
}
