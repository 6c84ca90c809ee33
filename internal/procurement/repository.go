package procurement

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ledgercore/ledgercore/internal/platform/db"
	"github.com/ledgercore/ledgercore/internal/shared"
)

// TxRepository exposes purchase order queries inside a transaction.
type TxRepository interface {
	InsertPO(ctx context.Context, po PurchaseOrder) error
	GetPO(ctx context.Context, tenantID, poID uuid.UUID) (PurchaseOrder, error)
	GetPOForUpdate(ctx context.Context, tenantID, poID uuid.UUID) (PurchaseOrder, error)
	UpdatePO(ctx context.Context, po PurchaseOrder) error
	UpdateLineReceived(ctx context.Context, tenantID uuid.UUID, line POLine) error
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds purchase order queries to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

const poColumns = `id, tenant_id, number, supplier_id, currency, status, order_date, subtotal, discount, tax, total, received_amount, paid_amount, notes, created_by, created_at, updated_at`

func (r *txRepository) InsertPO(ctx context.Context, po PurchaseOrder) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO purchase_orders (`+poColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		po.ID, po.TenantID, po.Number, po.SupplierID, po.Currency, string(po.Status), po.OrderDate, po.Subtotal, po.Discount, po.Tax,
		po.Total, po.ReceivedAmount, po.PaidAmount, po.Notes, po.CreatedBy, po.CreatedAt, po.UpdatedAt)
	if err != nil {
		return db.MapError(err, "purchase_orders")
	}
	batch := &pgx.Batch{}
	for _, l := range po.Lines {
		batch.Queue(`INSERT INTO purchase_order_lines (id, tenant_id, order_id, line_no, item_id, quantity, unit_cost, discount_percent, tax_rate, discount_amount, net_amount, tax_amount, line_total, received_qty)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
			l.ID, po.TenantID, po.ID, l.LineNo, l.ItemID, l.Quantity, l.UnitCost, l.DiscountPercent, l.TaxRate,
			l.DiscountAmount, l.NetAmount, l.TaxAmount, l.LineTotal, l.ReceivedQty)
	}
	return r.tx.SendBatch(ctx, batch).Close()
}

func (r *txRepository) GetPO(ctx context.Context, tenantID, poID uuid.UUID) (PurchaseOrder, error) {
	return r.getPO(ctx, tenantID, poID, "")
}

func (r *txRepository) GetPOForUpdate(ctx context.Context, tenantID, poID uuid.UUID) (PurchaseOrder, error) {
	return r.getPO(ctx, tenantID, poID, " FOR UPDATE")
}

func (r *txRepository) getPO(ctx context.Context, tenantID, poID uuid.UUID, lock string) (PurchaseOrder, error) {
	var (
		po     PurchaseOrder
		status string
	)
	err := r.tx.QueryRow(ctx, `SELECT `+poColumns+` FROM purchase_orders WHERE tenant_id=$1 AND id=$2`+lock, tenantID, poID).
		Scan(&po.ID, &po.TenantID, &po.Number, &po.SupplierID, &po.Currency, &status, &po.OrderDate, &po.Subtotal, &po.Discount,
			&po.Tax, &po.Total, &po.ReceivedAmount, &po.PaidAmount, &po.Notes, &po.CreatedBy, &po.CreatedAt, &po.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, shared.NewNotFound("purchase order", poID)
	}
	if err != nil {
		return PurchaseOrder{}, db.MapError(err, "purchase_orders")
	}
	po.Status = Status(status)

	rows, err := r.tx.Query(ctx, `SELECT id, tenant_id, order_id, line_no, item_id, quantity, unit_cost, discount_percent, tax_rate, discount_amount, net_amount, tax_amount, line_total, received_qty
FROM purchase_order_lines WHERE tenant_id=$1 AND order_id=$2 ORDER BY line_no`, tenantID, poID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l POLine
		if err := rows.Scan(&l.ID, &l.TenantID, &l.OrderID, &l.LineNo, &l.ItemID, &l.Quantity, &l.UnitCost, &l.DiscountPercent, &l.TaxRate,
			&l.DiscountAmount, &l.NetAmount, &l.TaxAmount, &l.LineTotal, &l.ReceivedQty); err != nil {
			return PurchaseOrder{}, err
		}
		po.Lines = append(po.Lines, l)
	}
	return po, rows.Err()
}

func (r *txRepository) UpdatePO(ctx context.Context, po PurchaseOrder) error {
	tag, err := r.tx.Exec(ctx, `UPDATE purchase_orders SET status=$3, received_amount=$4, paid_amount=$5, updated_at=$6 WHERE tenant_id=$1 AND id=$2`,
		po.TenantID, po.ID, string(po.Status), po.ReceivedAmount, po.PaidAmount, po.UpdatedAt)
	if err != nil {
		return db.MapError(err, "purchase_orders")
	}
	if tag.RowsAffected() == 0 {
		return shared.NewNotFound("purchase order", po.ID)
	}
	return nil
}

func (r *txRepository) UpdateLineReceived(ctx context.Context, tenantID uuid.UUID, l POLine) error {
	tag, err := r.tx.Exec(ctx, `UPDATE purchase_order_lines SET received_qty=$3 WHERE tenant_id=$1 AND id=$2`, tenantID, l.ID, l.ReceivedQty)
	if err != nil {
		return db.MapError(err, "purchase_order_lines")
	}
	if tag.RowsAffected() == 0 {
		return shared.NewNotFound("purchase order line", l.ID)
	}
	return nil
}
