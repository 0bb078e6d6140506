package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ReadStatusRepository records the first time a user observed a message.
type ReadStatusRepository interface {
	// MarkRead inserts missing (message, user) pairs and returns how many were new.
	MarkRead(ctx context.Context, userID string, messageIDs []int64, at time.Time) (int, error)
	// MarkRoomRead marks every message in the room not authored by userID.
	MarkRoomRead(ctx context.Context, userID, roomID string, at time.Time) (int, error)
	// UnreadCounts counts messages not authored by userID and not yet read, per room.
	UnreadCounts(ctx context.Context, userID string, roomIDs []string) (map[string]int, error)
	IsRead(ctx context.Context, userID string, messageID int64) (bool, error)
}

type readStatusRepository struct {
	pool *pgxpool.Pool
}

// NewReadStatusRepository returns a Postgres-backed implementation.
func NewReadStatusRepository(pool *pgxpool.Pool) ReadStatusRepository {
	return &readStatusRepository{pool: pool}
}

func (r *readStatusRepository) MarkRead(ctx context.Context, userID string, messageIDs []int64, at time.Time) (int, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}
	const query = `
        INSERT INTO message_read_status (message_id, user_id, read_at)
        SELECT unnest($1::bigint[]), $2, $3
        ON CONFLICT DO NOTHING`
	cmd, err := r.pool.Exec(ctx, query, messageIDs, userID, at)
	if err != nil {
		return 0, translate(err)
	}
	return int(cmd.RowsAffected()), nil
}

func (r *readStatusRepository) MarkRoomRead(ctx context.Context, userID, roomID string, at time.Time) (int, error) {
	const query = `
        INSERT INTO message_read_status (message_id, user_id, read_at)
        SELECT m.id, $2, $3 FROM messages m
        WHERE m.room_id=$1 AND m.author_id<>$2
        ON CONFLICT DO NOTHING`
	cmd, err := r.pool.Exec(ctx, query, roomID, userID, at)
	if err != nil {
		return 0, translate(err)
	}
	return int(cmd.RowsAffected()), nil
}

func (r *readStatusRepository) UnreadCounts(ctx context.Context, userID string, roomIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(roomIDs))
	if len(roomIDs) == 0 {
		return counts, nil
	}
	const query = `
        SELECT m.room_id::text, count(*)
        FROM messages m
        WHERE m.room_id::text = ANY($2) AND m.author_id<>$1
          AND NOT EXISTS (
              SELECT 1 FROM message_read_status rs WHERE rs.message_id = m.id AND rs.user_id = $1)
        GROUP BY m.room_id`
	rows, err := r.pool.Query(ctx, query, userID, roomIDs)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			roomID string
			n      int
		)
		if err := rows.Scan(&roomID, &n); err != nil {
			return nil, translate(err)
		}
		counts[roomID] = n
	}
	return counts, translate(rows.Err())
}

func (r *readStatusRepository) IsRead(ctx context.Context, userID string, messageID int64) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM message_read_status WHERE message_id=$1 AND user_id=$2)`,
		messageID, userID).Scan(&ok)
	return ok, translate(err)
}
