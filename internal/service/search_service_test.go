package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/staffchat/internal/domain"
	"github.com/spec-kit/staffchat/internal/repository"
	"github.com/spec-kit/staffchat/pkg/util/errorutil"
)

type searchFixture struct {
	*fixture
	alice, bob, eve *domain.User
}

func newSearchFixture(t *testing.T) searchFixture {
	f := newFixture(t)
	c := newClock()
	f.messages.now = func() time.Time {
		c.advance(time.Minute)
		return c.now()
	}
	alice := f.user(t, "alice", domain.RoleCustomer)
	bob := f.user(t, "bob", domain.RoleCustomer)
	eve := f.user(t, "eve", domain.RoleCustomer)
	f.room(t, "lobby", domain.RoomKindGeneral, true)
	f.room(t, "pair", domain.RoomKindPrivate, false, alice, bob)

	ctx := context.Background()
	post := func(u *domain.User, room, body string, att *domain.Attachment, reply *int64) int64 {
		m, err := f.messages.Append(ctx, u, AppendInput{RoomName: room, Body: body, Attachment: att, ReplyToID: reply})
		require.NoError(t, err)
		return m.ID
	}
	root := post(alice, "lobby", "deploy plan for friday", nil, nil)
	post(bob, "lobby", "sounds good", nil, &root)
	post(alice, "pair", "secret deploy window @bob", nil, nil)
	post(bob, "lobby", "spec attached", &domain.Attachment{FileName: "deploy.pdf", ContentType: "application/pdf", Data: []byte("x")}, nil)
	post(eve, "lobby", "hey @alice lunch?", nil, nil)

	return searchFixture{fixture: f, alice: alice, bob: bob, eve: eve}
}

func bodies(r *SearchResult) []string {
	out := make([]string, len(r.Results))
	for i, m := range r.Results {
		out[i] = m.Body
	}
	return out
}

func TestTextSearchRespectsAccess(t *testing.T) {
	f := newSearchFixture(t)
	ctx := context.Background()

	res, err := f.search.Search(ctx, f.alice, SearchQuery{Q: "deploy"})
	require.NoError(t, err)
	assert.Equal(t, []string{"secret deploy window @bob", "deploy plan for friday"}, bodies(res))
	assert.Equal(t, 2, res.Total)

	res, err = f.search.Search(ctx, f.eve, SearchQuery{Q: "deploy"})
	require.NoError(t, err)
	assert.Equal(t, []string{"deploy plan for friday"}, bodies(res), "private room stays hidden")

	_, err = f.search.Search(ctx, f.eve, SearchQuery{Q: "deploy", Room: "pair"})
	assert.True(t, errorutil.HasCode(err, errorutil.CodeAccessDenied))
}

func TestSearchModes(t *testing.T) {
	f := newSearchFixture(t)
	ctx := context.Background()

	res, err := f.search.Search(ctx, f.alice, SearchQuery{Mode: repository.SearchMentions, Q: "ali"})
	require.NoError(t, err)
	assert.Equal(t, []string{"hey @alice lunch?"}, bodies(res))

	res, err = f.search.Search(ctx, f.alice, SearchQuery{Mode: repository.SearchThreads, Q: "deploy plan"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"deploy plan for friday", "sounds good"}, bodies(res))

	res, err = f.search.Search(ctx, f.alice, SearchQuery{Mode: repository.SearchFiles, Q: "deploy"})
	require.NoError(t, err)
	assert.Equal(t, []string{"spec attached"}, bodies(res))
	require.NotNil(t, res.Results[0].Attachment)
	assert.Equal(t, "deploy.pdf", res.Results[0].Attachment.FileName)

	res, err = f.search.Search(ctx, f.bob, SearchQuery{Q: "secret", MentionedUser: "@bob"})
	require.NoError(t, err)
	assert.Len(t, res.Results, 1)

	res, err = f.search.Search(ctx, f.bob, SearchQuery{Q: "secret", MentionedUser: "nobody"})
	require.NoError(t, err)
	assert.Empty(t, res.Results)
}

func TestSearchUnknownMentionedUserMatchesNothing(t *testing.T) {
	f := newSearchFixture(t)

	res, err := f.search.Search(context.Background(), f.alice, SearchQuery{Q: "deploy", MentionedUser: "ghost"})
	require.NoError(t, err)
	assert.Empty(t, res.Results)
	assert.Equal(t, 0, res.Total)
	assert.False(t, res.HasMore)
}

func TestSearchValidationAndPaging(t *testing.T) {
	f := newSearchFixture(t)
	ctx := context.Background()

	_, err := f.search.Search(ctx, f.alice, SearchQuery{Q: "d"})
	assert.True(t, errorutil.HasCode(err, errorutil.CodeValidation))

	_, err = f.search.Search(ctx, f.alice, SearchQuery{Q: "deploy", Mode: "regex"})
	assert.True(t, errorutil.HasCode(err, errorutil.CodeValidation))

	from := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	to := from.Add(-time.Hour)
	_, err = f.search.Search(ctx, f.alice, SearchQuery{Q: "deploy", From: &from, To: &to})
	assert.True(t, errorutil.HasCode(err, errorutil.CodeValidation))

	first, err := f.search.Search(ctx, f.alice, SearchQuery{Q: "deploy", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, first.Results, 1)
	assert.True(t, first.HasMore)
	assert.Equal(t, "secret deploy window @bob", first.Results[0].Body)

	second, err := f.search.Search(ctx, f.alice, SearchQuery{Q: "deploy", Limit: 1, Page: 2})
	require.NoError(t, err)
	assert.False(t, second.HasMore)
	assert.Equal(t, "deploy plan for friday", second.Results[0].Body)

	_, err = f.search.Search(ctx, f.alice, SearchQuery{Q: "deploy", Limit: 20, Page: 922337203685477581})
	assert.True(t, errorutil.HasCode(err, errorutil.CodeValidation))

	beyond, err := f.search.Search(ctx, f.alice, SearchQuery{Q: "deploy", Limit: 20, Page: 1000})
	require.NoError(t, err)
	assert.Empty(t, beyond.Results)
	assert.Equal(t, 2, beyond.Total)
}

func TestSearchDateRange(t *testing.T) {
	f := newSearchFixture(t)
	start := newClock().now()
	// Messages were stamped one minute apart starting at start+1m.
	from := start.Add(2 * time.Minute)
	to := start.Add(4 * time.Minute)

	res, err := f.search.Search(context.Background(), f.alice, SearchQuery{Mode: repository.SearchFiles, From: &from, To: &to})
	require.NoError(t, err)
	assert.Equal(t, []string{"spec attached"}, bodies(res))
}
