package numbering

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ledgercore/ledgercore/internal/platform/db"
	"github.com/ledgercore/ledgercore/internal/shared"
)

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds the numbering queries to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// LockSequence takes a transaction-scoped advisory lock; lock_timeout bounds the wait.
func (r *txRepository) LockSequence(ctx context.Context, tenantID uuid.UUID, kind Kind, year int) error {
	key := shared.SequenceLockKey(tenantID, string(kind), year)
	if _, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, shared.AdvisoryLockID(key)); err != nil {
		return db.MapError(err, key)
	}
	return nil
}

func (r *txRepository) ListNumbers(ctx context.Context, tenantID uuid.UUID, kind Kind, year int) ([]string, error) {
	rows, err := r.tx.Query(ctx, `SELECT number FROM document_numbers WHERE tenant_id=$1 AND kind=$2 AND year=$3`, tenantID, string(kind), year)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *txRepository) InsertNumber(ctx context.Context, tenantID uuid.UUID, kind Kind, year int, number string) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO document_numbers (tenant_id, kind, year, number) VALUES ($1,$2,$3,$4)`, tenantID, string(kind), year, number)
	if db.IsUniqueViolation(err, "uq_document_numbers") {
		return ErrNumberTaken
	}
	return err
}
