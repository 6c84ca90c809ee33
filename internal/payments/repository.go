package payments

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

// NewTxRepository binds payment queries to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (r *txRepository) InsertPayment(ctx context.Context, p Payment) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO payments (id, tenant_id, number, direction, party_id, order_type, order_id, amount, currency, method, reference, paid_at, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		p.ID, p.TenantID, p.Number, string(p.Direction), p.PartyID, p.OrderType, p.OrderID, shared.RoundMoney(p.Amount),
		p.Currency, p.Method, p.Reference, p.PaidAt, p.CreatedBy, p.CreatedAt)
	return db.MapError(err, "payments")
}

func (r *txRepository) AttachEntry(ctx context.Context, tenantID, paymentID, entryID uuid.UUID) error {
	tag, err := r.tx.Exec(ctx, `UPDATE payments SET entry_id=$3 WHERE tenant_id=$1 AND id=$2`, tenantID, paymentID, entryID)
	if err != nil {
		return db.MapError(err, "payments")
	}
	if tag.RowsAffected() == 0 {
		return shared.NewNotFound("payment", paymentID)
	}
	return nil
}

func (r *txRepository) ListByOrder(ctx context.Context, tenantID uuid.UUID, orderType string, orderID uuid.UUID) ([]Payment, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, tenant_id, number, direction, party_id, order_type, order_id, amount, currency, method, reference, paid_at, entry_id, created_by, created_at
FROM payments WHERE tenant_id=$1 AND order_type=$2 AND order_id=$3 ORDER BY paid_at, number`, tenantID, orderType, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		var (
			p         Payment
			direction string
			entryID   *uuid.UUID
		)
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Number, &direction, &p.PartyID, &p.OrderType, &p.OrderID, &p.Amount, &p.Currency,
			&p.Method, &p.Reference, &p.PaidAt, &entryID, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Direction = Direction(direction)
		if entryID != nil {
			p.EntryID = *entryID
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
