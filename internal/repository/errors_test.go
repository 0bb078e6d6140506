package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestTranslateClassifiesPgErrors(t *testing.T) {
	assert.NoError(t, translate(nil))
	assert.ErrorIs(t, translate(pgx.ErrNoRows), ErrNotFound)
	assert.ErrorIs(t, translate(fmt.Errorf("scan: %w", pgx.ErrNoRows)), ErrNotFound)

	for _, code := range []string{"40001", "40P01", "55P03"} {
		err := translate(&pgconn.PgError{Code: code, Message: "contention"})
		assert.True(t, IsTransient(err), code)
	}

	dup := translate(&pgconn.PgError{Code: "23505", ConstraintName: "chat_rooms_name_key"})
	assert.ErrorIs(t, dup, ErrDuplicate)
	assert.False(t, IsTransient(dup))

	other := errors.New("connection reset")
	assert.Equal(t, other, translate(other))
}

func TestLikePatternEscapesMetacharacters(t *testing.T) {
	assert.Equal(t, "%hello%", likePattern("hello"))
	assert.Equal(t, `%50\%\_off%`, likePattern("50%_off"))
}

func TestSearchClausesPerMode(t *testing.T) {
	where, args := searchClauses(MessageSearch{Mode: SearchText, RoomIDs: []string{"r1"}, Query: "foo bar"})
	assert.Contains(t, where, "m.body ILIKE $2 OR m.body ILIKE $3")
	assert.Len(t, args, 3)

	where, args = searchClauses(MessageSearch{Mode: SearchFiles, RoomIDs: []string{"r1"}, Query: "spec"})
	assert.Contains(t, where, "m.attachment_name IS NOT NULL")
	assert.Contains(t, where, "m.attachment_name ILIKE $2 OR m.body ILIKE $2")
	assert.Len(t, args, 2)

	where, _ = searchClauses(MessageSearch{Mode: SearchThreads, RoomIDs: []string{"r1"}, Query: "plan"})
	assert.Contains(t, where, "m.reply_to IS NULL AND m.body ILIKE $2")

	where, args = searchClauses(MessageSearch{Mode: SearchMentions, RoomIDs: []string{"r1"}, Query: "bo", MentionedUserID: "u9"})
	assert.Contains(t, where, "u.username ILIKE $2")
	assert.Contains(t, where, "mu.user_id = $3")
	assert.Equal(t, "u9", args[2])
}
