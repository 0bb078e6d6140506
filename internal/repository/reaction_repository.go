package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/staffchat/internal/domain"
)

// ReactionRepository stores unique (message, user, emoji) triples.
type ReactionRepository interface {
	// Toggle removes the triple when present, otherwise inserts it. It reports whether the
	// triple exists afterwards.
	Toggle(ctx context.Context, reaction domain.Reaction) (bool, error)
	ListByMessage(ctx context.Context, messageID int64) ([]domain.Reaction, error)
}

type reactionRepository struct {
	pool *pgxpool.Pool
}

// NewReactionRepository returns a Postgres-backed implementation.
func NewReactionRepository(pool *pgxpool.Pool) ReactionRepository {
	return &reactionRepository{pool: pool}
}

func (r *reactionRepository) Toggle(ctx context.Context, reaction domain.Reaction) (bool, error) {
	added := false
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		var emoji string
		err := tx.QueryRow(ctx, `
        DELETE FROM message_reactions WHERE message_id=$1 AND user_id=$2 AND emoji=$3
        RETURNING emoji`, reaction.MessageID, reaction.UserID, reaction.Emoji).Scan(&emoji)
		if err == nil {
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		cmd, err := tx.Exec(ctx, `
        INSERT INTO message_reactions (message_id, user_id, emoji, created_at) VALUES ($1,$2,$3,$4)
        ON CONFLICT DO NOTHING`, reaction.MessageID, reaction.UserID, reaction.Emoji, reaction.CreatedAt)
		if err != nil {
			return err
		}
		added = cmd.RowsAffected() > 0
		return nil
	})
	return added, err
}

func (r *reactionRepository) ListByMessage(ctx context.Context, messageID int64) ([]domain.Reaction, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT message_id, user_id, emoji, created_at FROM message_reactions
        WHERE message_id=$1 ORDER BY created_at, user_id`, messageID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []domain.Reaction
	for rows.Next() {
		var reaction domain.Reaction
		if err := rows.Scan(&reaction.MessageID, &reaction.UserID, &reaction.Emoji, &reaction.CreatedAt); err != nil {
			return nil, translate(err)
		}
		out = append(out, reaction)
	}
	return out, translate(rows.Err())
}
