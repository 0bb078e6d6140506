package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/staffchat/internal/domain"
)

// RoomFilter narrows room listings.
type RoomFilter struct {
	Kind         *domain.RoomKind
	ActiveOnly   bool
	AutoJoinOnly bool
	Names        []string
}

// RoomRepository persists chat rooms and their participant sets.
type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	Update(ctx context.Context, room *domain.Room) error
	GetByID(ctx context.Context, id string) (*domain.Room, error)
	GetByName(ctx context.Context, name string) (*domain.Room, error)
	List(ctx context.Context, filter RoomFilter) ([]domain.Room, error)
	// AddParticipant and RemoveParticipant report whether the set changed.
	AddParticipant(ctx context.Context, roomID, userID string) (bool, error)
	RemoveParticipant(ctx context.Context, roomID, userID string) (bool, error)
}

type roomRepository struct {
	pool *pgxpool.Pool
}

// NewRoomRepository returns a Postgres-backed implementation.
func NewRoomRepository(pool *pgxpool.Pool) RoomRepository {
	return &roomRepository{pool: pool}
}

const roomColumns = `
        r.id, r.name, r.kind, r.description, r.active, r.auto_join, r.created_by, r.project_id,
        r.created_at, r.updated_at,
        COALESCE((SELECT array_agg(p.user_id::text ORDER BY p.joined_at) FROM room_participants p WHERE p.room_id = r.id), '{}')`

func scanRoom(row pgx.Row) (*domain.Room, error) {
	var room domain.Room
	if err := row.Scan(
		&room.ID,
		&room.Name,
		&room.Kind,
		&room.Description,
		&room.Active,
		&room.AutoJoin,
		&room.CreatedByID,
		&room.ProjectID,
		&room.CreatedAt,
		&room.UpdatedAt,
		&room.Participants,
	); err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *roomRepository) Create(ctx context.Context, room *domain.Room) error {
	const query = `
        INSERT INTO chat_rooms (name, kind, description, active, auto_join, created_by, project_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`

	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, query,
			room.Name,
			room.Kind,
			room.Description,
			room.Active,
			room.AutoJoin,
			room.CreatedByID,
			room.ProjectID,
		).Scan(&room.ID, &room.CreatedAt, &room.UpdatedAt); err != nil {
			return err
		}
		if len(room.Participants) == 0 {
			return nil
		}
		_, err := tx.Exec(ctx, `
        INSERT INTO room_participants (room_id, user_id)
        SELECT $1, unnest($2::uuid[]) ON CONFLICT DO NOTHING`, room.ID, room.Participants)
		return err
	})
}

func (r *roomRepository) Update(ctx context.Context, room *domain.Room) error {
	const query = `
        UPDATE chat_rooms SET description=$1, active=$2, auto_join=$3, project_id=$4, updated_at=NOW()
        WHERE id=$5
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		room.Description,
		room.Active,
		room.AutoJoin,
		room.ProjectID,
		room.ID,
	).Scan(&room.UpdatedAt)
	return translate(err)
}

func (r *roomRepository) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	return r.fetchSingle(ctx, "r.id=$1", id)
}

func (r *roomRepository) GetByName(ctx context.Context, name string) (*domain.Room, error) {
	return r.fetchSingle(ctx, "r.name=$1", name)
}

func (r *roomRepository) fetchSingle(ctx context.Context, where string, arg any) (*domain.Room, error) {
	room, err := scanRoom(r.pool.QueryRow(ctx, "SELECT"+roomColumns+" FROM chat_rooms r WHERE "+where, arg))
	if err != nil {
		return nil, translate(err)
	}
	return room, nil
}

func (r *roomRepository) List(ctx context.Context, filter RoomFilter) ([]domain.Room, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Kind != nil {
		args = append(args, *filter.Kind)
		clauses = append(clauses, fmt.Sprintf("r.kind=$%d", len(args)))
	}
	if filter.ActiveOnly {
		clauses = append(clauses, "r.active")
	}
	if filter.AutoJoinOnly {
		clauses = append(clauses, "r.auto_join")
	}
	if len(filter.Names) > 0 {
		args = append(args, filter.Names)
		clauses = append(clauses, fmt.Sprintf("r.name = ANY($%d)", len(args)))
	}

	query := "SELECT" + roomColumns + " FROM chat_rooms r WHERE " + strings.Join(clauses, " AND ") + " ORDER BY r.kind, r.name"
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var rooms []domain.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, translate(err)
		}
		rooms = append(rooms, *room)
	}
	return rooms, translate(rows.Err())
}

func (r *roomRepository) AddParticipant(ctx context.Context, roomID, userID string) (bool, error) {
	cmd, err := r.pool.Exec(ctx, `
        INSERT INTO room_participants (room_id, user_id) VALUES ($1, $2)
        ON CONFLICT DO NOTHING`, roomID, userID)
	if err != nil {
		return false, translate(err)
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *roomRepository) RemoveParticipant(ctx context.Context, roomID, userID string) (bool, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM room_participants WHERE room_id=$1 AND user_id=$2`, roomID, userID)
	if err != nil {
		return false, translate(err)
	}
	return cmd.RowsAffected() > 0, nil
}
