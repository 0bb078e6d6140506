package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")
	// ErrInvalidReference is returned when a write points at a row that does not qualify,
	// such as a reply parent from another room.
	ErrInvalidReference = errors.New("invalid reference")
	// ErrTransient marks failures that are safe to retry: deadlocks, lock timeouts and
	// serialization failures.
	ErrTransient = errors.New("transient storage failure")
)

// Postgres SQLSTATE codes inspected by translate.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgQueryCanceled        = "57014"
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
)

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// translate maps pgx errors onto the repository sentinels, keeping the cause in the chain.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable, pgQueryCanceled:
			return fmt.Errorf("%w: %s (%s)", ErrTransient, pgErr.Message, pgErr.Code)
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
		case pgForeignKeyViolation:
			return fmt.Errorf("%w: %s", ErrInvalidReference, pgErr.ConstraintName)
		}
	}
	return err
}

// inTx runs fn inside a transaction and translates the resulting error.
func inTx(ctx context.Context, db txBeginner, fn func(pgx.Tx) error) error {
	return translate(pgx.BeginFunc(ctx, db, fn))
}

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
