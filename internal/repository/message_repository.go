package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/staffchat/internal/domain"
)

// PageQuery selects a window of a room's log. At most one of BeforeID and AfterID is set;
// neither means the most recent messages.
type PageQuery struct {
	BeforeID *int64
	AfterID  *int64
	Limit    int
}

// SearchMode selects how MessageSearch.Query is matched.
type SearchMode string

const (
	SearchText     SearchMode = "text"
	SearchMentions SearchMode = "mentions"
	SearchThreads  SearchMode = "threads"
	SearchFiles    SearchMode = "files"
)

// MessageSearch is a filtered query over a set of rooms. Results are newest first.
type MessageSearch struct {
	Mode            SearchMode
	RoomIDs         []string
	Query           string
	MentionedUserID string
	From            *time.Time
	To              *time.Time
	Limit           int
	Offset          int
}

// MessageDeleteFilter selects messages for bulk deletion. Nil fields match everything.
type MessageDeleteFilter struct {
	RoomID *string
	Before *time.Time
}

// MessageRepository persists room logs together with their mention sets.
type MessageRepository interface {
	// Append stores msg, its mentions and the author's read status in one transaction while
	// holding the room row lock. It assigns ID and a CreatedAt that never precedes the room's
	// latest message.
	Append(ctx context.Context, msg *domain.Message) error
	// UpdateBody rewrites body, mentions and the edit markers.
	UpdateBody(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id int64) (*domain.Message, error)
	// Page returns messages in chronological order and whether more exist beyond the window.
	Page(ctx context.Context, roomID string, q PageQuery) ([]domain.Message, bool, error)
	// ListAfter walks every room's log in id order, for maintenance jobs.
	ListAfter(ctx context.Context, afterID int64, limit int) ([]domain.Message, error)
	ReplaceMentions(ctx context.Context, messageID int64, userIDs []string) error
	LatestByRoom(ctx context.Context, roomIDs []string) (map[string]domain.Message, error)
	Search(ctx context.Context, q MessageSearch) ([]domain.Message, int, error)
	Count(ctx context.Context, filter MessageDeleteFilter) (int, error)
	// Delete removes matching messages; read status and reactions cascade.
	Delete(ctx context.Context, filter MessageDeleteFilter) (int, error)
}

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository returns a Postgres-backed implementation.
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

const messageMentions = `
        COALESCE((SELECT array_agg(mm.user_id::text ORDER BY mm.user_id) FROM message_mentions mm WHERE mm.message_id = m.id), '{}')`

// messageColumns omits attachment bytes; GetByID loads them separately.
const messageColumns = `
        m.id, m.room_id, m.author_id, m.body, m.created_at, m.attachment_name, m.attachment_type,
        COALESCE(octet_length(m.attachment_data), 0), m.reply_to, m.edited, m.edited_at,` + messageMentions

func scanMessage(row pgx.Row, extra ...any) (*domain.Message, error) {
	var (
		msg      domain.Message
		fileName *string
		fileType *string
		fileSize int64
	)
	dest := []any{
		&msg.ID,
		&msg.RoomID,
		&msg.AuthorID,
		&msg.Body,
		&msg.CreatedAt,
		&fileName,
		&fileType,
		&fileSize,
		&msg.ReplyToID,
		&msg.Edited,
		&msg.EditedAt,
		&msg.Mentions,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if fileName != nil {
		msg.Attachment = &domain.Attachment{FileName: *fileName, SizeBytes: fileSize}
		if fileType != nil {
			msg.Attachment.ContentType = *fileType
		}
	}
	return &msg, nil
}

func collectMessages(rows pgx.Rows) ([]domain.Message, error) {
	defer rows.Close()
	var out []domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, translate(err)
		}
		out = append(out, *msg)
	}
	return out, translate(rows.Err())
}

func (r *messageRepository) Append(ctx context.Context, msg *domain.Message) error {
	var (
		fileName, fileType *string
		data               []byte
	)
	if msg.Attachment != nil {
		fileName = &msg.Attachment.FileName
		fileType = &msg.Attachment.ContentType
		data = msg.Attachment.Data
	}

	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		var roomID string
		if err := tx.QueryRow(ctx, `SELECT id FROM chat_rooms WHERE id=$1 FOR UPDATE`, msg.RoomID).Scan(&roomID); err != nil {
			return err
		}
		if msg.ReplyToID != nil {
			var parentRoom string
			err := tx.QueryRow(ctx, `SELECT room_id FROM messages WHERE id=$1`, *msg.ReplyToID).Scan(&parentRoom)
			if errors.Is(err, pgx.ErrNoRows) || (err == nil && parentRoom != roomID) {
				return ErrInvalidReference
			}
			if err != nil {
				return err
			}
		}

		const insert = `
        INSERT INTO messages (room_id, author_id, body, created_at, attachment_name, attachment_type,
                              attachment_data, reply_to)
        VALUES ($1, $2, $3,
                GREATEST($4::timestamptz, COALESCE((SELECT max(created_at) FROM messages WHERE room_id=$1), $4::timestamptz)),
                $5, $6, $7, $8)
        RETURNING id, created_at`
		if err := tx.QueryRow(ctx, insert,
			msg.RoomID,
			msg.AuthorID,
			msg.Body,
			msg.CreatedAt,
			fileName,
			fileType,
			data,
			msg.ReplyToID,
		).Scan(&msg.ID, &msg.CreatedAt); err != nil {
			return err
		}

		if len(msg.Mentions) > 0 {
			if _, err := tx.Exec(ctx, `
        INSERT INTO message_mentions (message_id, user_id)
        SELECT $1, unnest($2::uuid[]) ON CONFLICT DO NOTHING`, msg.ID, msg.Mentions); err != nil {
				return err
			}
		}

		_, err := tx.Exec(ctx, `
        INSERT INTO message_read_status (message_id, user_id, read_at) VALUES ($1, $2, $3)
        ON CONFLICT DO NOTHING`, msg.ID, msg.AuthorID, msg.CreatedAt)
		return err
	})
}

func (r *messageRepository) UpdateBody(ctx context.Context, msg *domain.Message) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, `UPDATE messages SET body=$1, edited=$2, edited_at=$3 WHERE id=$4`,
			msg.Body, msg.Edited, msg.EditedAt, msg.ID)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrNotFound
		}
		return replaceMentions(ctx, tx, msg.ID, msg.Mentions)
	})
}

func (r *messageRepository) ReplaceMentions(ctx context.Context, messageID int64, userIDs []string) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		return replaceMentions(ctx, tx, messageID, userIDs)
	})
}

func replaceMentions(ctx context.Context, tx pgx.Tx, messageID int64, userIDs []string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM message_mentions WHERE message_id=$1`, messageID); err != nil {
		return err
	}
	if len(userIDs) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
        INSERT INTO message_mentions (message_id, user_id)
        SELECT $1, unnest($2::uuid[]) ON CONFLICT DO NOTHING`, messageID, userIDs)
	return err
}

func (r *messageRepository) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	var data []byte
	row := r.pool.QueryRow(ctx, "SELECT"+messageColumns+", m.attachment_data FROM messages m WHERE m.id=$1", id)
	msg, err := scanMessage(row, &data)
	if err != nil {
		return nil, translate(err)
	}
	if msg.Attachment != nil {
		msg.Attachment.Data = data
	}
	return msg, nil
}

func (r *messageRepository) Page(ctx context.Context, roomID string, q PageQuery) ([]domain.Message, bool, error) {
	args := []any{roomID, q.Limit + 1}
	query := "SELECT" + messageColumns + " FROM messages m WHERE m.room_id=$1"
	ascending := false
	switch {
	case q.AfterID != nil:
		args = append(args, *q.AfterID)
		query += " AND m.id > $3 ORDER BY m.id ASC LIMIT $2"
		ascending = true
	case q.BeforeID != nil:
		args = append(args, *q.BeforeID)
		query += " AND m.id < $3 ORDER BY m.id DESC LIMIT $2"
	default:
		query += " ORDER BY m.id DESC LIMIT $2"
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, false, translate(err)
	}
	msgs, err := collectMessages(rows)
	if err != nil {
		return nil, false, err
	}

	hasMore := len(msgs) > q.Limit
	if hasMore {
		msgs = msgs[:q.Limit]
	}
	if !ascending {
		for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
			msgs[i], msgs[j] = msgs[j], msgs[i]
		}
	}
	return msgs, hasMore, nil
}

func (r *messageRepository) ListAfter(ctx context.Context, afterID int64, limit int) ([]domain.Message, error) {
	rows, err := r.pool.Query(ctx, "SELECT"+messageColumns+" FROM messages m WHERE m.id > $1 ORDER BY m.id LIMIT $2", afterID, limit)
	if err != nil {
		return nil, translate(err)
	}
	return collectMessages(rows)
}

func (r *messageRepository) LatestByRoom(ctx context.Context, roomIDs []string) (map[string]domain.Message, error) {
	out := make(map[string]domain.Message, len(roomIDs))
	if len(roomIDs) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, "SELECT DISTINCT ON (m.room_id)"+messageColumns+`
        FROM messages m WHERE m.room_id::text = ANY($1)
        ORDER BY m.room_id, m.id DESC`, roomIDs)
	if err != nil {
		return nil, translate(err)
	}
	msgs, err := collectMessages(rows)
	if err != nil {
		return nil, err
	}
	for _, msg := range msgs {
		out[msg.RoomID] = msg
	}
	return out, nil
}

func (r *messageRepository) Search(ctx context.Context, q MessageSearch) ([]domain.Message, int, error) {
	if len(q.RoomIDs) == 0 {
		return nil, 0, nil
	}
	where, args := searchClauses(q)

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT count(*) FROM messages m WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, translate(err)
	}

	query := "SELECT" + messageColumns + " FROM messages m WHERE " + where + " ORDER BY m.created_at DESC, m.id DESC"
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, translate(err)
	}
	msgs, err := collectMessages(rows)
	return msgs, total, err
}

func searchClauses(q MessageSearch) (string, []any) {
	args := []any{q.RoomIDs}
	clauses := []string{"m.room_id::text = ANY($1)"}
	query := strings.TrimSpace(q.Query)

	anyTerm := func(columns ...string) string {
		var parts []string
		for _, term := range strings.Fields(query) {
			args = append(args, likePattern(term))
			for _, col := range columns {
				parts = append(parts, fmt.Sprintf("%s ILIKE $%d", col, len(args)))
			}
		}
		if len(parts) == 0 {
			return ""
		}
		return "(" + strings.Join(parts, " OR ") + ")"
	}

	switch q.Mode {
	case SearchMentions:
		args = append(args, likePattern(query))
		clauses = append(clauses, fmt.Sprintf(`EXISTS (
            SELECT 1 FROM message_mentions mm JOIN users u ON u.id = mm.user_id
            WHERE mm.message_id = m.id AND u.username ILIKE $%d)`, len(args)))
	case SearchThreads:
		args = append(args, likePattern(query))
		n := len(args)
		clauses = append(clauses, fmt.Sprintf(`((m.reply_to IS NULL AND m.body ILIKE $%d) OR m.reply_to IN (
            SELECT t.id FROM messages t WHERE t.reply_to IS NULL AND t.body ILIKE $%d AND t.room_id::text = ANY($1)))`, n, n))
	case SearchFiles:
		clauses = append(clauses, "m.attachment_name IS NOT NULL")
		if clause := anyTerm("m.attachment_name", "m.body"); clause != "" {
			clauses = append(clauses, clause)
		}
	default:
		if clause := anyTerm("m.body"); clause != "" {
			clauses = append(clauses, clause)
		}
	}

	if q.MentionedUserID != "" {
		args = append(args, q.MentionedUserID)
		clauses = append(clauses, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM message_mentions mu WHERE mu.message_id = m.id AND mu.user_id = $%d)", len(args)))
	}
	if q.From != nil {
		args = append(args, *q.From)
		clauses = append(clauses, fmt.Sprintf("m.created_at >= $%d", len(args)))
	}
	if q.To != nil {
		args = append(args, *q.To)
		clauses = append(clauses, fmt.Sprintf("m.created_at <= $%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

// likePattern wraps term for a contains match, escaping LIKE metacharacters.
func likePattern(term string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(term)
	return "%" + escaped + "%"
}

func deleteClauses(filter MessageDeleteFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.RoomID != nil {
		args = append(args, *filter.RoomID)
		clauses = append(clauses, fmt.Sprintf("room_id=$%d", len(args)))
	}
	if filter.Before != nil {
		args = append(args, *filter.Before)
		clauses = append(clauses, fmt.Sprintf("created_at < $%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

func (r *messageRepository) Count(ctx context.Context, filter MessageDeleteFilter) (int, error) {
	where, args := deleteClauses(filter)
	var n int
	err := r.pool.QueryRow(ctx, "SELECT count(*) FROM messages WHERE "+where, args...).Scan(&n)
	return n, translate(err)
}

func (r *messageRepository) Delete(ctx context.Context, filter MessageDeleteFilter) (int, error) {
	where, args := deleteClauses(filter)
	cmd, err := r.pool.Exec(ctx, "DELETE FROM messages WHERE "+where, args...)
	if err != nil {
		return 0, translate(err)
	}
	return int(cmd.RowsAffected()), nil
}
