package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wardsys/ward/internal/platform/apperr"
)

// Transactor runs fn inside a single unit of work. Every repository call made
// with the context passed to fn shares that unit; if fn returns an error
// nothing it wrote is kept.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PoolTransactor implements Transactor on top of pgx. Nested calls join the
// outer transaction.
type PoolTransactor struct {
	pool *pgxpool.Pool
}

func NewTransactor(pool *pgxpool.Pool) *PoolTransactor {
	return &PoolTransactor{pool: pool}
}

func (t *PoolTransactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := t.begin(ctx)
	if err != nil {
		return apperr.Store("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(context.WithValue(ctx, DBTxKey, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Store("commit transaction", err)
	}
	return nil
}

func (t *PoolTransactor) begin(ctx context.Context) (pgx.Tx, error) {
	if conn := ConnFromContext(ctx); conn != nil {
		return conn.Begin(ctx)
	}
	if t.pool == nil {
		return nil, errors.New("no database connection")
	}
	return t.pool.Begin(ctx)
}
