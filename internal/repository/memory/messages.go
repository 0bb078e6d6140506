package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/spec-kit/staffchat/internal/domain"
	"github.com/spec-kit/staffchat/internal/repository"
)

type messageRepo struct {
	s *Store
}

func cloneMessage(m *domain.Message, withData bool) *domain.Message {
	out := *m
	out.Mentions = append([]string(nil), m.Mentions...)
	if m.Attachment != nil {
		att := *m.Attachment
		att.SizeBytes = int64(len(m.Attachment.Data))
		if !withData {
			att.Data = nil
		}
		out.Attachment = &att
	}
	if m.ReplyToID != nil {
		id := *m.ReplyToID
		out.ReplyToID = &id
	}
	if m.EditedAt != nil {
		t := *m.EditedAt
		out.EditedAt = &t
	}
	return &out
}

func (r *messageRepo) Append(ctx context.Context, msg *domain.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.rooms[msg.RoomID]; !ok {
		return repository.ErrNotFound
	}
	if msg.ReplyToID != nil {
		parent, ok := r.s.messages[*msg.ReplyToID]
		if !ok || parent.RoomID != msg.RoomID {
			return repository.ErrInvalidReference
		}
	}

	ids := r.s.roomMessages[msg.RoomID]
	if n := len(ids); n > 0 {
		if last := r.s.messages[ids[n-1]].CreatedAt; msg.CreatedAt.Before(last) {
			msg.CreatedAt = last
		}
	}
	r.s.nextMessageID++
	msg.ID = r.s.nextMessageID
	msg.Mentions = dedupe(msg.Mentions)

	r.s.messages[msg.ID] = cloneMessage(msg, true)
	r.s.roomMessages[msg.RoomID] = append(ids, msg.ID)
	r.s.reads[readKey{messageID: msg.ID, userID: msg.AuthorID}] = msg.CreatedAt
	return nil
}

func (r *messageRepo) UpdateBody(ctx context.Context, msg *domain.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.messages[msg.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.Body = msg.Body
	stored.Edited = msg.Edited
	stored.EditedAt = msg.EditedAt
	stored.Mentions = dedupe(msg.Mentions)
	return nil
}

func (r *messageRepo) ReplaceMentions(ctx context.Context, messageID int64, userIDs []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.messages[messageID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.Mentions = dedupe(userIDs)
	return nil
}

func (r *messageRepo) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if m, ok := r.s.messages[id]; ok {
		return cloneMessage(m, true), nil
	}
	return nil, repository.ErrNotFound
}

func (r *messageRepo) Page(ctx context.Context, roomID string, q repository.PageQuery) ([]domain.Message, bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ids := r.s.roomMessages[roomID]
	var window []int64
	hasMore := false
	switch {
	case q.AfterID != nil:
		start := sort.Search(len(ids), func(i int) bool { return ids[i] > *q.AfterID })
		window = ids[start:]
		if len(window) > q.Limit {
			window = window[:q.Limit]
			hasMore = true
		}
	case q.BeforeID != nil:
		end := sort.Search(len(ids), func(i int) bool { return ids[i] >= *q.BeforeID })
		window, hasMore = tail(ids[:end], q.Limit)
	default:
		window, hasMore = tail(ids, q.Limit)
	}

	out := make([]domain.Message, len(window))
	for i, id := range window {
		out[i] = *cloneMessage(r.s.messages[id], false)
	}
	return out, hasMore, nil
}

func tail(ids []int64, limit int) ([]int64, bool) {
	if len(ids) > limit {
		return ids[len(ids)-limit:], true
	}
	return ids, false
}

func (r *messageRepo) ListAfter(ctx context.Context, afterID int64, limit int) ([]domain.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.Message
	for id := afterID + 1; id <= r.s.nextMessageID && len(out) < limit; id++ {
		if m, ok := r.s.messages[id]; ok {
			out = append(out, *cloneMessage(m, false))
		}
	}
	return out, nil
}

func (r *messageRepo) LatestByRoom(ctx context.Context, roomIDs []string) (map[string]domain.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make(map[string]domain.Message, len(roomIDs))
	for _, roomID := range roomIDs {
		ids := r.s.roomMessages[roomID]
		if len(ids) == 0 {
			continue
		}
		out[roomID] = *cloneMessage(r.s.messages[ids[len(ids)-1]], false)
	}
	return out, nil
}

func (r *messageRepo) Search(ctx context.Context, q repository.MessageSearch) ([]domain.Message, int, error) {
	r.s.mu.RLock()
	rooms := make(map[string]struct{}, len(q.RoomIDs))
	for _, id := range q.RoomIDs {
		rooms[id] = struct{}{}
	}
	query := strings.ToLower(strings.TrimSpace(q.Query))
	terms := strings.Fields(query)

	threadRoot := func(m *domain.Message) bool {
		return m.ReplyToID == nil && strings.Contains(strings.ToLower(m.Body), query)
	}

	var matched []*domain.Message
	for _, m := range r.s.messages {
		if _, ok := rooms[m.RoomID]; !ok {
			continue
		}
		switch q.Mode {
		case repository.SearchMentions:
			if !r.mentionsUsernameLike(m, query) {
				continue
			}
		case repository.SearchThreads:
			if !threadRoot(m) {
				parent, ok := r.replyParent(m)
				if !ok || !threadRoot(parent) {
					continue
				}
			}
		case repository.SearchFiles:
			if !m.HasAttachment() {
				continue
			}
			if len(terms) > 0 && !anyContains(terms, m.Body, m.Attachment.FileName) {
				continue
			}
		default:
			if len(terms) > 0 && !anyContains(terms, m.Body) {
				continue
			}
		}
		if q.MentionedUserID != "" && !contains(m.Mentions, q.MentionedUserID) {
			continue
		}
		if q.From != nil && m.CreatedAt.Before(*q.From) {
			continue
		}
		if q.To != nil && m.CreatedAt.After(*q.To) {
			continue
		}
		matched = append(matched, m)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	start := q.Offset
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	end := total
	if q.Limit > 0 && start+q.Limit < end {
		end = start + q.Limit
	}
	out := make([]domain.Message, 0, end-start)
	for _, m := range matched[start:end] {
		out = append(out, *cloneMessage(m, false))
	}
	r.s.mu.RUnlock()
	return out, total, nil
}

func (r *messageRepo) mentionsUsernameLike(m *domain.Message, query string) bool {
	for _, userID := range m.Mentions {
		if u, ok := r.s.users[userID]; ok && strings.Contains(strings.ToLower(u.Username), query) {
			return true
		}
	}
	return false
}

func (r *messageRepo) replyParent(m *domain.Message) (*domain.Message, bool) {
	if m.ReplyToID == nil {
		return nil, false
	}
	parent, ok := r.s.messages[*m.ReplyToID]
	return parent, ok
}

func anyContains(terms []string, fields ...string) bool {
	for _, field := range fields {
		lower := strings.ToLower(field)
		for _, term := range terms {
			if strings.Contains(lower, term) {
				return true
			}
		}
	}
	return false
}

func (r *messageRepo) matches(filter repository.MessageDeleteFilter, m *domain.Message) bool {
	if filter.RoomID != nil && m.RoomID != *filter.RoomID {
		return false
	}
	if filter.Before != nil && !m.CreatedAt.Before(*filter.Before) {
		return false
	}
	return true
}

func (r *messageRepo) Count(ctx context.Context, filter repository.MessageDeleteFilter) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, m := range r.s.messages {
		if r.matches(filter, m) {
			n++
		}
	}
	return n, nil
}

func (r *messageRepo) Delete(ctx context.Context, filter repository.MessageDeleteFilter) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	deleted := make(map[int64]struct{})
	for id, m := range r.s.messages {
		if r.matches(filter, m) {
			deleted[id] = struct{}{}
		}
	}
	if len(deleted) == 0 {
		return 0, nil
	}
	for id := range deleted {
		delete(r.s.messages, id)
	}
	for roomID, ids := range r.s.roomMessages {
		kept := ids[:0]
		for _, id := range ids {
			if _, gone := deleted[id]; !gone {
				kept = append(kept, id)
			}
		}
		r.s.roomMessages[roomID] = kept
	}
	for _, m := range r.s.messages {
		if m.ReplyToID != nil {
			if _, gone := deleted[*m.ReplyToID]; gone {
				m.ReplyToID = nil
			}
		}
	}
	for key := range r.s.reads {
		if _, gone := deleted[key.messageID]; gone {
			delete(r.s.reads, key)
		}
	}
	for key := range r.s.reactions {
		if _, gone := deleted[key.messageID]; gone {
			delete(r.s.reactions, key)
		}
	}
	return len(deleted), nil
}

type readStatusRepo struct {
	s *Store
}

func (r *readStatusRepo) MarkRead(ctx context.Context, userID string, messageIDs []int64, at time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for _, id := range messageIDs {
		if _, ok := r.s.messages[id]; !ok {
			continue
		}
		key := readKey{messageID: id, userID: userID}
		if _, seen := r.s.reads[key]; seen {
			continue
		}
		r.s.reads[key] = at
		n++
	}
	return n, nil
}

func (r *readStatusRepo) MarkRoomRead(ctx context.Context, userID, roomID string, at time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for _, id := range r.s.roomMessages[roomID] {
		if r.s.messages[id].AuthorID == userID {
			continue
		}
		key := readKey{messageID: id, userID: userID}
		if _, seen := r.s.reads[key]; seen {
			continue
		}
		r.s.reads[key] = at
		n++
	}
	return n, nil
}

func (r *readStatusRepo) UnreadCounts(ctx context.Context, userID string, roomIDs []string) (map[string]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	counts := make(map[string]int, len(roomIDs))
	for _, roomID := range roomIDs {
		for _, id := range r.s.roomMessages[roomID] {
			if r.s.messages[id].AuthorID == userID {
				continue
			}
			if _, seen := r.s.reads[readKey{messageID: id, userID: userID}]; !seen {
				counts[roomID]++
			}
		}
	}
	return counts, nil
}

func (r *readStatusRepo) IsRead(ctx context.Context, userID string, messageID int64) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	_, ok := r.s.reads[readKey{messageID: messageID, userID: userID}]
	return ok, nil
}
