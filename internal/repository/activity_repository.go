package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/staffchat/internal/domain"
)

// ActivityRepository stores per-user presence and typing state.
type ActivityRepository interface {
	Get(ctx context.Context, userID string) (*domain.Activity, error)
	Upsert(ctx context.Context, activity *domain.Activity) error
	// ListTyping returns typing records for roomID updated at or after since.
	ListTyping(ctx context.Context, roomID string, since time.Time) ([]domain.Activity, error)
	// ListOnline returns online records active at or after since.
	ListOnline(ctx context.Context, since time.Time) ([]domain.Activity, error)
	// MarkOffline clears the online flag for records inactive before cutoff and returns
	// the affected user IDs.
	MarkOffline(ctx context.Context, cutoff time.Time) ([]string, error)
	// DeleteStale removes offline records inactive before cutoff.
	DeleteStale(ctx context.Context, cutoff time.Time) (int, error)
}

type activityRepository struct {
	pool *pgxpool.Pool
}

// NewActivityRepository returns a Postgres-backed implementation.
func NewActivityRepository(pool *pgxpool.Pool) ActivityRepository {
	return &activityRepository{pool: pool}
}

const activityColumns = `user_id, last_activity, online, typing, typing_room_id, last_typing_update`

func scanActivity(row pgx.Row) (*domain.Activity, error) {
	var a domain.Activity
	if err := row.Scan(&a.UserID, &a.LastActivity, &a.Online, &a.Typing, &a.TypingRoomID, &a.LastTypingUpdate); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *activityRepository) list(ctx context.Context, query string, args ...any) ([]domain.Activity, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	var out []domain.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, translate(err)
		}
		out = append(out, *a)
	}
	return out, translate(rows.Err())
}

func (r *activityRepository) Get(ctx context.Context, userID string) (*domain.Activity, error) {
	a, err := scanActivity(r.pool.QueryRow(ctx, "SELECT "+activityColumns+" FROM user_activity WHERE user_id=$1", userID))
	if err != nil {
		return nil, translate(err)
	}
	return a, nil
}

func (r *activityRepository) Upsert(ctx context.Context, a *domain.Activity) error {
	const query = `
        INSERT INTO user_activity (user_id, last_activity, online, typing, typing_room_id, last_typing_update)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (user_id) DO UPDATE SET
            last_activity=EXCLUDED.last_activity,
            online=EXCLUDED.online,
            typing=EXCLUDED.typing,
            typing_room_id=EXCLUDED.typing_room_id,
            last_typing_update=EXCLUDED.last_typing_update`
	_, err := r.pool.Exec(ctx, query, a.UserID, a.LastActivity, a.Online, a.Typing, a.TypingRoomID, a.LastTypingUpdate)
	return translate(err)
}

func (r *activityRepository) ListTyping(ctx context.Context, roomID string, since time.Time) ([]domain.Activity, error) {
	return r.list(ctx, "SELECT "+activityColumns+`
        FROM user_activity WHERE typing AND typing_room_id=$1 AND last_typing_update >= $2
        ORDER BY last_typing_update`, roomID, since)
}

func (r *activityRepository) ListOnline(ctx context.Context, since time.Time) ([]domain.Activity, error) {
	return r.list(ctx, "SELECT "+activityColumns+`
        FROM user_activity WHERE online AND last_activity >= $1
        ORDER BY last_activity DESC`, since)
}

func (r *activityRepository) MarkOffline(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
        UPDATE user_activity SET online=false, typing=false, typing_room_id=NULL
        WHERE online AND last_activity < $1
        RETURNING user_id::text`, cutoff)
	if err != nil {
		return nil, translate(err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	return ids, translate(err)
}

func (r *activityRepository) DeleteStale(ctx context.Context, cutoff time.Time) (int, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM user_activity WHERE NOT online AND last_activity < $1`, cutoff)
	if err != nil {
		return 0, translate(err)
	}
	return int(cmd.RowsAffected()), nil
}
