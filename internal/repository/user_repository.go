package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/staffchat/internal/domain"
)

// UserFilter narrows user listings.
type UserFilter struct {
	Role      *domain.Role
	StaffOnly bool
	Limit     int
	Offset    int
}

// EmployeeIDScope is handed to callers of WithEmployeeIDLock while the role lock is held.
type EmployeeIDScope interface {
	// ExistingIDs returns the locked employee IDs carrying the requested prefix.
	ExistingIDs() []string
	// AssignEmployeeID writes only the employee_id column of one user.
	AssignEmployeeID(ctx context.Context, userID, employeeID string) error
}

// UserRepository defines persistence access for identities.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	// Update writes every mutable column except employee_id and groups.
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ListByIDs(ctx context.Context, ids []string) ([]domain.User, error)
	ListByUsernames(ctx context.Context, usernames []string) ([]domain.User, error)
	List(ctx context.Context, filter UserFilter) ([]domain.User, error)
	// AddGroups and RemoveGroups return the group names that actually changed.
	AddGroups(ctx context.Context, userID string, groups []string) ([]string, error)
	RemoveGroups(ctx context.Context, userID string, groups []string) ([]string, error)
	// WithEmployeeIDLock serialises employee ID allocation for role. fn runs inside the
	// lock scope; returning an error rolls the scope back.
	WithEmployeeIDLock(ctx context.Context, role domain.Role, prefix string, fn func(EmployeeIDScope) error) error
}

type userRepository struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool, lockTimeout time.Duration) UserRepository {
	return &userRepository{pool: pool, lockTimeout: lockTimeout}
}

const userColumns = `
        u.id, u.username, u.email, u.first_name, u.last_name, u.password_hash, u.role, u.employee_id,
        u.department, u.active, u.banned_from_chat, u.ban_expires_at, u.ban_reason, u.banned_by,
        u.created_at, u.updated_at,
        COALESCE((SELECT array_agg(g.name ORDER BY g.name) FROM user_groups g WHERE g.user_id = u.id), '{}')`

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.PasswordHash,
		&user.Role,
		&user.EmployeeID,
		&user.Department,
		&user.Active,
		&user.BannedFromChat,
		&user.BanExpiresAt,
		&user.BanReason,
		&user.BannedByID,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.Groups,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func collectUsers(rows pgx.Rows) ([]domain.User, error) {
	defer rows.Close()
	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, translate(err)
		}
		users = append(users, *user)
	}
	return users, translate(rows.Err())
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (username, email, first_name, last_name, password_hash, role, employee_id,
                           department, active, banned_from_chat, ban_expires_at, ban_reason, banned_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        RETURNING id, created_at, updated_at`

	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, query,
			user.Username,
			user.Email,
			user.FirstName,
			user.LastName,
			user.PasswordHash,
			user.Role,
			user.EmployeeID,
			user.Department,
			user.Active,
			user.BannedFromChat,
			user.BanExpiresAt,
			user.BanReason,
			user.BannedByID,
		).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return err
		}
		if len(user.Groups) == 0 {
			return nil
		}
		_, err := tx.Exec(ctx, `
        INSERT INTO user_groups (user_id, name)
        SELECT $1, unnest($2::text[]) ON CONFLICT DO NOTHING`, user.ID, user.Groups)
		return err
	})
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET username=$1, email=$2, first_name=$3, last_name=$4, password_hash=$5, role=$6,
            department=$7, active=$8, banned_from_chat=$9, ban_expires_at=$10, ban_reason=$11,
            banned_by=$12, updated_at=NOW()
        WHERE id=$13
        RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query,
		user.Username,
		user.Email,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		user.Role,
		user.Department,
		user.Active,
		user.BannedFromChat,
		user.BanExpiresAt,
		user.BanReason,
		user.BannedByID,
		user.ID,
	).Scan(&user.UpdatedAt)
	return translate(err)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.fetchSingle(ctx, "u.id=$1", id)
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.fetchSingle(ctx, "u.username=$1", username)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.fetchSingle(ctx, "lower(u.email)=lower($1)", email)
}

func (r *userRepository) fetchSingle(ctx context.Context, where string, arg any) (*domain.User, error) {
	query := "SELECT" + userColumns + " FROM users u WHERE " + where
	user, err := scanUser(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, translate(err)
	}
	return user, nil
}

func (r *userRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, "SELECT"+userColumns+" FROM users u WHERE u.id::text = ANY($1) ORDER BY u.username", ids)
	if err != nil {
		return nil, translate(err)
	}
	return collectUsers(rows)
}

func (r *userRepository) ListByUsernames(ctx context.Context, usernames []string) ([]domain.User, error) {
	if len(usernames) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, "SELECT"+userColumns+" FROM users u WHERE u.username = ANY($1) ORDER BY u.username", usernames)
	if err != nil {
		return nil, translate(err)
	}
	return collectUsers(rows)
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]domain.User, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Role != nil {
		args = append(args, *filter.Role)
		clauses = append(clauses, fmt.Sprintf("u.role=$%d", len(args)))
	}
	if filter.StaffOnly {
		args = append(args, domain.RoleCustomer)
		clauses = append(clauses, fmt.Sprintf("u.role<>$%d", len(args)))
	}

	query := "SELECT" + userColumns + " FROM users u WHERE " + strings.Join(clauses, " AND ") + " ORDER BY u.created_at, u.id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	return collectUsers(rows)
}

func (r *userRepository) AddGroups(ctx context.Context, userID string, groups []string) ([]string, error) {
	if len(groups) == 0 {
		return nil, nil
	}
	const query = `
        INSERT INTO user_groups (user_id, name)
        SELECT $1, unnest($2::text[])
        ON CONFLICT DO NOTHING
        RETURNING name`
	return r.groupNames(ctx, query, userID, groups)
}

func (r *userRepository) RemoveGroups(ctx context.Context, userID string, groups []string) ([]string, error) {
	if len(groups) == 0 {
		return nil, nil
	}
	const query = `DELETE FROM user_groups WHERE user_id=$1 AND name = ANY($2) RETURNING name`
	return r.groupNames(ctx, query, userID, groups)
}

func (r *userRepository) groupNames(ctx context.Context, query, userID string, groups []string) ([]string, error) {
	rows, err := r.pool.Query(ctx, query, userID, groups)
	if err != nil {
		return nil, translate(err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	return names, translate(err)
}

func (r *userRepository) WithEmployeeIDLock(ctx context.Context, role domain.Role, prefix string, fn func(EmployeeIDScope) error) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		if r.lockTimeout > 0 {
			if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", r.lockTimeout.Milliseconds())); err != nil {
				return err
			}
		}
		// The advisory lock serialises allocators even when no row matches the prefix yet.
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "id_alloc:"+string(role)); err != nil {
			return err
		}
		rows, err := tx.Query(ctx, `
        SELECT employee_id FROM users
        WHERE role=$1 AND employee_id LIKE $2
        FOR UPDATE`, role, prefix+"%")
		if err != nil {
			return err
		}
		ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return err
		}
		return fn(&pgEmployeeIDScope{tx: tx, ids: ids})
	})
}

type pgEmployeeIDScope struct {
	tx  pgx.Tx
	ids []string
}

func (s *pgEmployeeIDScope) ExistingIDs() []string {
	return s.ids
}

func (s *pgEmployeeIDScope) AssignEmployeeID(ctx context.Context, userID, employeeID string) error {
	cmd, err := s.tx.Exec(ctx, `UPDATE users SET employee_id=$1, updated_at=NOW() WHERE id=$2`, employeeID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	if employeeID != "" {
		s.ids = append(s.ids, employeeID)
	}
	return nil
}
