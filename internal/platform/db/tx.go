package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxOptions tunes a single transaction.
type TxOptions struct {
	IsoLevel         pgx.TxIsoLevel
	LockTimeout      time.Duration
	StatementTimeout time.Duration
}

// WithTx executes fn within a transaction. The transaction defaults to
// ReadCommitted: writers serialize on explicit row and advisory locks, so each
// statement must see rows committed while it waited.
// The deferred rollback also runs while a panic unwinds.
func WithTx(ctx context.Context, pool *pgxpool.Pool, opts TxOptions, fn func(pgx.Tx) error) error {
	iso := opts.IsoLevel
	if iso == "" {
		iso = pgx.ReadCommitted
	}
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: iso})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", MapError(err, "transaction"))
	}

	defer func() {
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()

	if err := applyTimeouts(ctx, tx, opts); err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", MapError(err, "transaction"))
	}

	return nil
}

func applyTimeouts(ctx context.Context, tx pgx.Tx, opts TxOptions) error {
	if opts.LockTimeout > 0 {
		if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, millis(opts.LockTimeout)); err != nil {
			return fmt.Errorf("platform/db: set lock_timeout: %w", err)
		}
	}
	if opts.StatementTimeout > 0 {
		if _, err := tx.Exec(ctx, `SELECT set_config('statement_timeout', $1, true)`, millis(opts.StatementTimeout)); err != nil {
			return fmt.Errorf("platform/db: set statement_timeout: %w", err)
		}
	}
	return nil
}

func millis(d time.Duration) string {
	return fmt.Sprintf("%dms", d.Milliseconds())
}
