package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// txBeginner is satisfied by *pgxpool.Pool and *pgx.Conn.
type txBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// lockingTx is used by writes that take row locks with SELECT ... FOR UPDATE.
var lockingTx = pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite}

// WithTx runs fn inside a transaction and commits when fn returns nil. Any
// error from fn rolls back and is returned unwrapped so callers can match
// sentinel errors.
func WithTx(ctx context.Context, db txBeginner, opts pgx.TxOptions, fn func(context.Context, pgx.Tx) error) error {
	if db == nil {
		return errors.New("postgres pool is nil")
	}

	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}
