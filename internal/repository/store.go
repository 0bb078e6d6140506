package repository

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store bundles every repository the services depend on.
type Store struct {
	Users       UserRepository
	Rooms       RoomRepository
	Messages    MessageRepository
	ReadStatus  ReadStatusRepository
	Reactions   ReactionRepository
	Activity    ActivityRepository
	Preferences PreferenceRepository
}

// NewPostgresStore wires the Postgres implementations over one pool.
func NewPostgresStore(pool *pgxpool.Pool, lockTimeout time.Duration) *Store {
	return &Store{
		Users:       NewUserRepository(pool, lockTimeout),
		Rooms:       NewRoomRepository(pool),
		Messages:    NewMessageRepository(pool),
		ReadStatus:  NewReadStatusRepository(pool),
		Reactions:   NewReactionRepository(pool),
		Activity:    NewActivityRepository(pool),
		Preferences: NewPreferenceRepository(pool),
	}
}
