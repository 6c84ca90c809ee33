package sales

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ledgercore/ledgercore/internal/platform/db"
	"github.com/ledgercore/ledgercore/internal/shared"
)

// TxRepository exposes the order queries used inside a transaction.
type TxRepository interface {
	InsertOrder(ctx context.Context, order Order) error
	GetOrder(ctx context.Context, tenantID, orderID uuid.UUID) (Order, error)
	GetOrderForUpdate(ctx context.Context, tenantID, orderID uuid.UUID) (Order, error)
	UpdateOrder(ctx context.Context, order Order) error
	UpdateLineProgress(ctx context.Context, tenantID uuid.UUID, line Line) error
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds the order queries to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

const orderColumns = `id, tenant_id, number, customer_id, currency, status, order_date, subtotal, discount, tax, total, paid_amount, entry_id, notes, created_by, created_at, updated_at`

func (r *txRepository) InsertOrder(ctx context.Context, o Order) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO sales_orders (`+orderColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		o.ID, o.TenantID, o.Number, o.CustomerID, o.Currency, string(o.Status), o.OrderDate, o.Subtotal, o.Discount, o.Tax, o.Total,
		o.PaidAmount, nullUUID(o.EntryID), o.Notes, o.CreatedBy, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return db.MapError(err, "sales_orders")
	}
	batch := &pgx.Batch{}
	for _, l := range o.Lines {
		batch.Queue(`INSERT INTO sales_order_lines (id, tenant_id, order_id, line_no, item_id, quantity, unit_price, discount_percent, tax_rate, discount_amount, net_amount, tax_amount, line_total, shipped_qty, issue_cost)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
			l.ID, o.TenantID, o.ID, l.LineNo, l.ItemID, l.Quantity, l.UnitPrice, l.DiscountPercent, l.TaxRate,
			l.DiscountAmount, l.NetAmount, l.TaxAmount, l.LineTotal, l.ShippedQty, l.IssueCost)
	}
	return r.tx.SendBatch(ctx, batch).Close()
}

func (r *txRepository) GetOrder(ctx context.Context, tenantID, orderID uuid.UUID) (Order, error) {
	return r.getOrder(ctx, tenantID, orderID, "")
}

func (r *txRepository) GetOrderForUpdate(ctx context.Context, tenantID, orderID uuid.UUID) (Order, error) {
	return r.getOrder(ctx, tenantID, orderID, " FOR UPDATE")
}

func (r *txRepository) getOrder(ctx context.Context, tenantID, orderID uuid.UUID, lock string) (Order, error) {
	var (
		o       Order
		status  string
		entryID *uuid.UUID
	)
	err := r.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM sales_orders WHERE tenant_id=$1 AND id=$2`+lock, tenantID, orderID).
		Scan(&o.ID, &o.TenantID, &o.Number, &o.CustomerID, &o.Currency, &status, &o.OrderDate, &o.Subtotal, &o.Discount, &o.Tax,
			&o.Total, &o.PaidAmount, &entryID, &o.Notes, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, shared.NewNotFound("sales order", orderID)
	}
	if err != nil {
		return Order{}, db.MapError(err, "sales_orders")
	}
	o.Status = Status(status)
	if entryID != nil {
		o.EntryID = *entryID
	}

	rows, err := r.tx.Query(ctx, `SELECT id, tenant_id, order_id, line_no, item_id, quantity, unit_price, discount_percent, tax_rate, discount_amount, net_amount, tax_amount, line_total, shipped_qty, issue_cost
FROM sales_order_lines WHERE tenant_id=$1 AND order_id=$2 ORDER BY line_no`, tenantID, orderID)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.TenantID, &l.OrderID, &l.LineNo, &l.ItemID, &l.Quantity, &l.UnitPrice, &l.DiscountPercent, &l.TaxRate,
			&l.DiscountAmount, &l.NetAmount, &l.TaxAmount, &l.LineTotal, &l.ShippedQty, &l.IssueCost); err != nil {
			return Order{}, err
		}
		o.Lines = append(o.Lines, l)
	}
	return o, rows.Err()
}

func (r *txRepository) UpdateOrder(ctx context.Context, o Order) error {
	tag, err := r.tx.Exec(ctx, `UPDATE sales_orders SET status=$3, paid_amount=$4, entry_id=$5, updated_at=$6 WHERE tenant_id=$1 AND id=$2`,
		o.TenantID, o.ID, string(o.Status), o.PaidAmount, nullUUID(o.EntryID), o.UpdatedAt)
	if err != nil {
		return db.MapError(err, "sales_orders")
	}
	if tag.RowsAffected() == 0 {
		return shared.NewNotFound("sales order", o.ID)
	}
	return nil
}

func (r *txRepository) UpdateLineProgress(ctx context.Context, tenantID uuid.UUID, l Line) error {
	tag, err := r.tx.Exec(ctx, `UPDATE sales_order_lines SET shipped_qty=$3, issue_cost=$4 WHERE tenant_id=$1 AND id=$2`,
		tenantID, l.ID, l.ShippedQty, l.IssueCost)
	if err != nil {
		return db.MapError(err, "sales_order_lines")
	}
	if tag.RowsAffected() == 0 {
		return shared.NewNotFound("sales order line", l.ID)
	}
	return nil
}

func nullUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
