package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/staffchat/internal/domain"
)

// PreferenceRepository stores per-user notification settings.
type PreferenceRepository interface {
	Get(ctx context.Context, userID string) (*domain.NotificationPreference, error)
	Upsert(ctx context.Context, pref *domain.NotificationPreference) error
}

type preferenceRepository struct {
	pool *pgxpool.Pool
}

// NewPreferenceRepository returns a Postgres-backed implementation.
func NewPreferenceRepository(pool *pgxpool.Pool) PreferenceRepository {
	return &preferenceRepository{pool: pool}
}

func (r *preferenceRepository) Get(ctx context.Context, userID string) (*domain.NotificationPreference, error) {
	var pref domain.NotificationPreference
	err := r.pool.QueryRow(ctx, `
        SELECT user_id, notify_for, email_enabled, push_enabled, sound_enabled
        FROM notification_preferences WHERE user_id=$1`, userID).Scan(
		&pref.UserID,
		&pref.NotifyFor,
		&pref.EmailEnabled,
		&pref.PushEnabled,
		&pref.SoundEnabled,
	)
	if err != nil {
		return nil, translate(err)
	}
	return &pref, nil
}

func (r *preferenceRepository) Upsert(ctx context.Context, pref *domain.NotificationPreference) error {
	const query = `
        INSERT INTO notification_preferences (user_id, notify_for, email_enabled, push_enabled, sound_enabled)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (user_id) DO UPDATE SET
            notify_for=EXCLUDED.notify_for,
            email_enabled=EXCLUDED.email_enabled,
            push_enabled=EXCLUDED.push_enabled,
            sound_enabled=EXCLUDED.sound_enabled,
            updated_at=NOW()`
	_, err := r.pool.Exec(ctx, query, pref.UserID, pref.NotifyFor, pref.EmailEnabled, pref.PushEnabled, pref.SoundEnabled)
	return translate(err)
}
