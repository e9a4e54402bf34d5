package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wardsys/ward/internal/platform/apperr"
)

// Postgres SQLSTATE codes the repositories care about.
const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
)

// MapError classifies a pgx error. pgx.ErrNoRows becomes notFound (which
// should wrap apperr.ErrNotFound), constraint violations become NotFound or
// Conflict, and everything else is a store failure.
func MapError(op string, err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if notFound != nil {
			return notFound
		}
		return fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgForeignKeyViolation:
			return fmt.Errorf("%s: referenced row does not exist (%s): %w", op, pgErr.ConstraintName, apperr.ErrNotFound)
		case pgUniqueViolation:
			return fmt.Errorf("%s: duplicate value (%s): %w", op, pgErr.ConstraintName, apperr.ErrConflict)
		case pgCheckViolation:
			return fmt.Errorf("%s: constraint %s rejected the change: %w", op, pgErr.ConstraintName, apperr.ErrConflict)
		}
	}
	return apperr.Store(op, err)
}
