package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/staffchat/internal/broadcast"
	"github.com/spec-kit/staffchat/internal/domain"
	"github.com/spec-kit/staffchat/internal/events"
	"github.com/spec-kit/staffchat/internal/observability"
	"github.com/spec-kit/staffchat/internal/repository"
	"github.com/spec-kit/staffchat/pkg/util/errorutil"
)

// Pagination bounds for room history.
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
)

// PageMode selects the history window.
type PageMode string

const (
	PageInitial PageMode = "initial"
	PageBefore  PageMode = "before"
	PageAfter   PageMode = "after"
)

// PageRequest asks for a window of a room's log. Cursor is a message ID for before and
// after modes.
type PageRequest struct {
	Mode   PageMode
	Cursor int64
	Limit  int
}

// MessagePage is a chronological window of a room's log.
type MessagePage struct {
	Room     string        `json:"room"`
	Messages []MessageView `json:"messages"`
	HasMore  bool          `json:"has_more"`
}

// AppendInput describes a new message. Either Body or Attachment must be present.
type AppendInput struct {
	RoomName   string
	Body       string
	Attachment *domain.Attachment
	ReplyToID  *int64
}

// MessageService owns the message log, mentions and read status.
type MessageService struct {
	users      repository.UserRepository
	messages   repository.MessageRepository
	reads      repository.ReadStatusRepository
	lookup     roomLookup
	pub        publisher
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewMessageService builds the service. bus, dispatcher and metrics may be nil.
func NewMessageService(store *repository.Store, bus broadcast.Bus, dispatcher events.Dispatcher, metrics *observability.Metrics, logger *zap.Logger) *MessageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageService{
		users:      store.Users,
		messages:   store.Messages,
		reads:      store.ReadStatus,
		lookup:     roomLookup{rooms: store.Rooms},
		pub:        publisher{bus: bus, logger: logger},
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Append validates and stores a message with its mentions and the author's read status,
// then broadcasts it. Broadcast and event failures never fail the append.
func (s *MessageService) Append(ctx context.Context, author *domain.User, in AppendInput) (*MessageView, error) {
	now := s.now()
	if author.ChatBanActive(now) {
		return nil, errorutil.NewChatBanned(author.BanReason)
	}
	room, err := s.lookup.accessible(ctx, author, in.RoomName)
	if err != nil {
		return nil, err
	}

	body := strings.TrimSpace(in.Body)
	att := in.Attachment
	if att != nil && att.FileName == "" && len(att.Data) == 0 {
		att = nil
	}
	if err := checkBody(body, att != nil); err != nil {
		return nil, err
	}
	if err := CheckAttachment(att); err != nil {
		return nil, err
	}
	if in.ReplyToID != nil {
		parent, err := s.messages.GetByID(ctx, *in.ReplyToID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, storageError(err, "message")
		}
		if parent == nil || parent.RoomID != room.ID {
			return nil, replyParentMissing(*in.ReplyToID)
		}
	}

	mentions, err := s.resolveMentions(ctx, body)
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		RoomID:     room.ID,
		AuthorID:   author.ID,
		Body:       body,
		CreatedAt:  now,
		Attachment: att,
		ReplyToID:  in.ReplyToID,
		Mentions:   mentions,
	}
	if err := s.messages.Append(ctx, msg); err != nil {
		if errors.Is(err, repository.ErrInvalidReference) && in.ReplyToID != nil {
			return nil, replyParentMissing(*in.ReplyToID)
		}
		return nil, storageError(err, "message")
	}
	s.metrics.RecordMessage(string(room.Kind))

	idx, err := loadUserIndex(ctx, s.users, []domain.Message{*msg})
	if err != nil {
		s.logger.Warn("message view lookup failed", zap.Int64("message_id", msg.ID), zap.Error(err))
		idx = userIndex{author.ID: author}
	}
	view := idx.message(room.Name, *msg)

	s.pub.publish(ctx, broadcast.EventMessage, room.BroadcastKey(), view)
	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.NewEvent(events.EventMessageAppended, author.ID, events.MessageAppendedPayload{
			Message:  *msg,
			RoomName: room.Name,
			RoomKind: room.Kind,
		}))
	}
	return &view, nil
}

// Edit rewrites the body and mentions of the author's own message.
func (s *MessageService) Edit(ctx context.Context, author *domain.User, messageID int64, body string) (*MessageView, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, storageError(err, "message")
	}
	room, err := s.lookup.accessibleByID(ctx, author, msg.RoomID)
	if err != nil {
		return nil, err
	}
	if msg.AuthorID != author.ID {
		return nil, errorutil.NewAccessDenied(map[string]any{"message_id": messageID})
	}
	body = strings.TrimSpace(body)
	if err := checkBody(body, msg.HasAttachment()); err != nil {
		return nil, err
	}
	mentions, err := s.resolveMentions(ctx, body)
	if err != nil {
		return nil, err
	}

	now := s.now()
	msg.Body = body
	msg.Mentions = mentions
	msg.Edited = true
	msg.EditedAt = &now
	if err := s.messages.UpdateBody(ctx, msg); err != nil {
		return nil, storageError(err, "message")
	}

	idx, err := loadUserIndex(ctx, s.users, []domain.Message{*msg})
	if err != nil {
		return nil, err
	}
	view := idx.message(room.Name, *msg)
	s.pub.publish(ctx, broadcast.EventMessageEdited, room.BroadcastKey(), view)
	return &view, nil
}

// Get returns one message, including attachment bytes, from a room the user may access.
func (s *MessageService) Get(ctx context.Context, user *domain.User, messageID int64) (*domain.Message, *domain.Room, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, nil, storageError(err, "message")
	}
	room, err := s.lookup.accessibleByID(ctx, user, msg.RoomID)
	if err != nil {
		return nil, nil, err
	}
	return msg, room, nil
}

// List returns a window of the room's log. Initial and after windows are marked read for
// the requester, skipping their own messages.
func (s *MessageService) List(ctx context.Context, user *domain.User, roomName string, req PageRequest) (*MessagePage, error) {
	room, err := s.lookup.accessible(ctx, user, roomName)
	if err != nil {
		return nil, err
	}

	q := repository.PageQuery{Limit: clampLimit(req.Limit, DefaultPageLimit, MaxPageLimit)}
	switch req.Mode {
	case PageBefore:
		cursor := req.Cursor
		q.BeforeID = &cursor
	case PageAfter:
		cursor := req.Cursor
		q.AfterID = &cursor
	case PageInitial, "":
	default:
		return nil, errorutil.NewValidationError("unknown page mode", map[string]any{"mode": req.Mode})
	}

	msgs, hasMore, err := s.messages.Page(ctx, room.ID, q)
	if err != nil {
		return nil, storageError(err, "message")
	}

	if req.Mode != PageBefore {
		var unread []int64
		for _, m := range msgs {
			if m.AuthorID != user.ID {
				unread = append(unread, m.ID)
			}
		}
		if len(unread) > 0 {
			if _, err := s.reads.MarkRead(ctx, user.ID, unread, s.now()); err != nil {
				return nil, storageError(err, "message")
			}
		}
	}

	idx, err := loadUserIndex(ctx, s.users, msgs)
	if err != nil {
		return nil, err
	}
	page := &MessagePage{Room: room.Name, Messages: make([]MessageView, 0, len(msgs)), HasMore: hasMore}
	for _, m := range msgs {
		page.Messages = append(page.Messages, idx.message(room.Name, m))
	}
	return page, nil
}

// MarkRead records that user has seen the message. It reports whether the pair is new.
func (s *MessageService) MarkRead(ctx context.Context, user *domain.User, messageID int64) (bool, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return false, storageError(err, "message")
	}
	if _, err := s.lookup.accessibleByID(ctx, user, msg.RoomID); err != nil {
		return false, err
	}
	n, err := s.reads.MarkRead(ctx, user.ID, []int64{messageID}, s.now())
	if err != nil {
		return false, storageError(err, "message")
	}
	return n > 0, nil
}

// MarkRoomRead marks every message in the room read for user.
func (s *MessageService) MarkRoomRead(ctx context.Context, user *domain.User, roomName string) (int, error) {
	room, err := s.lookup.accessible(ctx, user, roomName)
	if err != nil {
		return 0, err
	}
	n, err := s.reads.MarkRoomRead(ctx, user.ID, room.ID, s.now())
	if err != nil {
		return 0, storageError(err, "message")
	}
	return n, nil
}

// UnreadByRoom counts unread messages per accessible room name. Rooms with nothing
// unread are omitted.
func (s *MessageService) UnreadByRoom(ctx context.Context, user *domain.User) (map[string]int, error) {
	rooms, err := s.lookup.accessibleRooms(ctx, user)
	if err != nil {
		return nil, err
	}
	counts, err := s.reads.UnreadCounts(ctx, user.ID, roomIDs(rooms))
	if err != nil {
		return nil, storageError(err, "message")
	}
	out := make(map[string]int, len(counts))
	for _, room := range rooms {
		if n := counts[room.ID]; n > 0 {
			out[room.Name] = n
		}
	}
	return out, nil
}

// UnreadCount totals unread messages across every accessible room.
func (s *MessageService) UnreadCount(ctx context.Context, user *domain.User) (int, error) {
	byRoom, err := s.UnreadByRoom(ctx, user)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, n := range byRoom {
		total += n
	}
	return total, nil
}

// DeleteMessages removes messages in bulk. Read status and reactions go with them.
func (s *MessageService) DeleteMessages(ctx context.Context, filter repository.MessageDeleteFilter, dryRun bool) (int, error) {
	if dryRun {
		n, err := s.messages.Count(ctx, filter)
		return n, storageError(err, "message")
	}
	n, err := s.messages.Delete(ctx, filter)
	if err != nil {
		return 0, storageError(err, "message")
	}
	s.logger.Info("messages deleted", zap.Int("count", n))
	return n, nil
}

// RebuildMentions re-derives the mention set of every message and returns how many changed.
func (s *MessageService) RebuildMentions(ctx context.Context) (int, error) {
	const batch = 500
	var (
		after   int64
		changed int
	)
	for {
		msgs, err := s.messages.ListAfter(ctx, after, batch)
		if err != nil {
			return changed, storageError(err, "message")
		}
		for _, m := range msgs {
			want, err := s.resolveMentions(ctx, m.Body)
			if err != nil {
				return changed, err
			}
			if !sameSet(want, m.Mentions) {
				if err := s.messages.ReplaceMentions(ctx, m.ID, want); err != nil {
					return changed, storageError(err, "message")
				}
				changed++
			}
			after = m.ID
		}
		if len(msgs) < batch {
			return changed, nil
		}
	}
}

// resolveMentions maps @names in body to the IDs of existing users.
func (s *MessageService) resolveMentions(ctx context.Context, body string) ([]string, error) {
	names := domain.ExtractMentions(body)
	if len(names) == 0 {
		return nil, nil
	}
	users, err := s.users.ListByUsernames(ctx, names)
	if err != nil {
		return nil, storageError(err, "user")
	}
	ids := make([]string, len(users))
	for i := range users {
		ids[i] = users[i].ID
	}
	return ids, nil
}

func checkBody(body string, hasAttachment bool) error {
	if body == "" && !hasAttachment {
		return errorutil.NewInvalid(errorutil.CodeEmptyContent, "message needs a body or an attachment", nil)
	}
	if n := utf8.RuneCountInString(body); n > domain.MaxBodyLength {
		return errorutil.NewInvalid(errorutil.CodeBodyTooLong, "message body too long", map[string]any{
			"length": n,
			"max":    domain.MaxBodyLength,
		})
	}
	return nil
}

func replyParentMissing(id int64) error {
	return errorutil.NewInvalid(errorutil.CodeReplyParentMissing, "reply parent not found in this room",
		map[string]any{"reply_to_id": id})
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]struct{}, len(a))
	for _, v := range a {
		seen[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := seen[v]; !ok {
			return false
		}
	}
	return true
}
