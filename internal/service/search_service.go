package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spec-kit/staffchat/internal/domain"
	"github.com/spec-kit/staffchat/internal/repository"
	"github.com/spec-kit/staffchat/pkg/util/errorutil"
)

// Search paging bounds.
const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
	minTextQuery       = 2
)

// SearchQuery filters messages across the rooms a user may access.
type SearchQuery struct {
	Q             string
	Mode          repository.SearchMode
	Room          string
	MentionedUser string
	From          *time.Time
	To            *time.Time
	Page          int
	Limit         int
}

// SearchResult is one page of matches, newest first.
type SearchResult struct {
	Query   string                `json:"query"`
	Mode    repository.SearchMode `json:"mode"`
	Results []MessageView         `json:"results"`
	Total   int                   `json:"total"`
	Page    int                   `json:"page"`
	HasMore bool                  `json:"has_more"`
}

// SearchService runs message searches scoped by the access oracle.
type SearchService struct {
	users    repository.UserRepository
	messages repository.MessageRepository
	lookup   roomLookup
}

// NewSearchService builds the service.
func NewSearchService(store *repository.Store) *SearchService {
	return &SearchService{
		users:    store.Users,
		messages: store.Messages,
		lookup:   roomLookup{rooms: store.Rooms},
	}
}

// Search runs q for user.
func (s *SearchService) Search(ctx context.Context, user *domain.User, q SearchQuery) (*SearchResult, error) {
	mode := q.Mode
	if mode == "" {
		mode = repository.SearchText
	}
	switch mode {
	case repository.SearchText, repository.SearchMentions, repository.SearchThreads, repository.SearchFiles:
	default:
		return nil, errorutil.NewValidationError("unknown search mode", map[string]any{"mode": mode})
	}
	text := strings.TrimSpace(q.Q)
	if mode == repository.SearchText && utf8.RuneCountInString(text) < minTextQuery {
		return nil, errorutil.NewValidationError("search query must be at least 2 characters", map[string]any{"field": "q"})
	}
	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		return nil, errorutil.NewValidationError("date range is inverted", nil)
	}

	var rooms []domain.Room
	if q.Room != "" {
		room, err := s.lookup.accessible(ctx, user, q.Room)
		if err != nil {
			return nil, err
		}
		rooms = []domain.Room{*room}
	} else {
		var err error
		if rooms, err = s.lookup.accessibleRooms(ctx, user); err != nil {
			return nil, err
		}
	}

	page := q.Page
	if page < 1 {
		page = 1
	}
	limit := clampLimit(q.Limit, DefaultSearchLimit, MaxSearchLimit)
	if page > math.MaxInt/limit {
		return nil, errorutil.NewValidationError("page out of range", map[string]any{"page": q.Page})
	}
	result := &SearchResult{Query: text, Mode: mode, Results: []MessageView{}, Page: page}
	if len(rooms) == 0 {
		return result, nil
	}

	search := repository.MessageSearch{
		Mode:    mode,
		RoomIDs: roomIDs(rooms),
		Query:   text,
		From:    q.From,
		To:      q.To,
		Limit:   limit,
		Offset:  (page - 1) * limit,
	}
	if name := strings.TrimSpace(q.MentionedUser); name != "" {
		mentioned, err := s.users.GetByUsername(ctx, strings.TrimPrefix(name, "@"))
		switch {
		case err == nil:
			search.MentionedUserID = mentioned.ID
		case errors.Is(err, repository.ErrNotFound):
			// nobody can be mentioned under an unknown name
			return result, nil
		default:
			return nil, storageError(err, "user")
		}
	}

	msgs, total, err := s.messages.Search(ctx, search)
	if err != nil {
		return nil, storageError(err, "message")
	}
	idx, err := loadUserIndex(ctx, s.users, msgs)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(rooms))
	for _, r := range rooms {
		names[r.ID] = r.Name
	}
	for _, m := range msgs {
		result.Results = append(result.Results, idx.message(names[m.RoomID], m))
	}
	result.Total = total
	result.HasMore = search.Offset+len(msgs) < total
	return result, nil
}
