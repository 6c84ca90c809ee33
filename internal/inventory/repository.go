package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ledgercore/ledgercore/internal/platform/db"
	"github.com/ledgercore/ledgercore/internal/shared"
)

// TxRepository exposes transactional operations used by the mutator.
type TxRepository interface {
	GetItem(ctx context.Context, tenantID, itemID uuid.UUID) (Item, error)
	GetItemForUpdate(ctx context.Context, tenantID, itemID uuid.UUID) (Item, error)
	FindItemBySKU(ctx context.Context, tenantID uuid.UUID, sku string) (Item, bool, error)
	InsertItem(ctx context.Context, item Item) error
	UpdateItemStock(ctx context.Context, item Item) error
	ListOpenLayers(ctx context.Context, tenantID, itemID uuid.UUID) ([]CostLayer, error)
	InsertLayer(ctx context.Context, layer CostLayer) error
	UpdateLayerRemaining(ctx context.Context, tenantID, layerID uuid.UUID, remaining decimal.Decimal) error
	InsertTransaction(ctx context.Context, record Transaction) error
	ListTransactions(ctx context.Context, tenantID, itemID uuid.UUID) ([]Transaction, error)
	ListItemsBelowReorder(ctx context.Context, tenantID uuid.UUID) ([]Item, error)
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds the inventory queries to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

const itemColumns = `id, tenant_id, sku, name, unit_price, unit_cost, avg_cost, stock_qty, reorder_point, cost_method, is_active, updated_at`

func scanItem(row pgx.Row) (Item, error) {
	var i Item
	err := row.Scan(&i.ID, &i.TenantID, &i.SKU, &i.Name, &i.UnitPrice, &i.UnitCost, &i.AvgCost, &i.StockQty, &i.ReorderPoint, &i.CostMethod, &i.IsActive, &i.UpdatedAt)
	return i, err
}

func (r *txRepository) GetItem(ctx context.Context, tenantID, itemID uuid.UUID) (Item, error) {
	item, err := scanItem(r.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE tenant_id=$1 AND id=$2`, tenantID, itemID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, shared.NewNotFound("item", itemID)
	}
	return item, err
}

// GetItemForUpdate holds the row lock until the transaction ends.
func (r *txRepository) GetItemForUpdate(ctx context.Context, tenantID, itemID uuid.UUID) (Item, error) {
	item, err := scanItem(r.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, itemID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, shared.NewNotFound("item", itemID)
	}
	if err != nil {
		return Item{}, db.MapError(err, "item "+itemID.String())
	}
	return item, nil
}

func (r *txRepository) FindItemBySKU(ctx context.Context, tenantID uuid.UUID, sku string) (Item, bool, error) {
	item, err := scanItem(r.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE tenant_id=$1 AND sku=$2`, tenantID, sku))
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, false, nil
	}
	if err != nil {
		return Item{}, false, err
	}
	return item, true, nil
}

func (r *txRepository) InsertItem(ctx context.Context, i Item) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO items (id, tenant_id, sku, name, unit_price, unit_cost, avg_cost, stock_qty, reorder_point, cost_method, is_active, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`, i.ID, i.TenantID, i.SKU, i.Name, i.UnitPrice, i.UnitCost, i.AvgCost, i.StockQty, i.ReorderPoint, string(i.CostMethod), i.IsActive, i.UpdatedAt)
	if db.IsUniqueViolation(err, "uq_items_sku") {
		return shared.Invalid("sku", "%s: %s", ErrSKUTaken.Error(), i.SKU)
	}
	return err
}

func (r *txRepository) UpdateItemStock(ctx context.Context, i Item) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE items SET stock_qty=$3, avg_cost=$4, updated_at=$5 WHERE tenant_id=$1 AND id=$2`, i.TenantID, i.ID, i.StockQty, i.AvgCost, i.UpdatedAt)
	if err != nil {
		return db.MapError(err, "item "+i.ID.String())
	}
	if cmd.RowsAffected() == 0 {
		return shared.NewNotFound("item", i.ID)
	}
	return nil
}

func (r *txRepository) ListOpenLayers(ctx context.Context, tenantID, itemID uuid.UUID) ([]CostLayer, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, tenant_id, item_id, source_tx, qty, remaining, unit_cost, received_at, seq
FROM cost_layers WHERE tenant_id=$1 AND item_id=$2 AND remaining > 0 ORDER BY received_at, seq`, tenantID, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var layers []CostLayer
	for rows.Next() {
		var l CostLayer
		if err := rows.Scan(&l.ID, &l.TenantID, &l.ItemID, &l.SourceTxID, &l.Qty, &l.Remaining, &l.UnitCost, &l.ReceivedAt, &l.Seq); err != nil {
			return nil, err
		}
		layers = append(layers, l)
	}
	return layers, rows.Err()
}

func (r *txRepository) InsertLayer(ctx context.Context, l CostLayer) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO cost_layers (id, tenant_id, item_id, source_tx, qty, remaining, unit_cost, received_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`, l.ID, l.TenantID, l.ItemID, l.SourceTxID, l.Qty, l.Remaining, l.UnitCost, l.ReceivedAt)
	return err
}

func (r *txRepository) UpdateLayerRemaining(ctx context.Context, tenantID, layerID uuid.UUID, remaining decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE cost_layers SET remaining=$3 WHERE tenant_id=$1 AND id=$2`, tenantID, layerID, remaining)
	return err
}

func (r *txRepository) InsertTransaction(ctx context.Context, t Transaction) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO inventory_transactions (id, tenant_id, item_id, type, qty_delta, qty_after, unit_cost, total_cost, ref_type, ref_id, reason, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`, t.ID, t.TenantID, t.ItemID, string(t.Type), t.QtyDelta, t.QtyAfter, t.UnitCost, t.TotalCost, t.RefType, nullUUID(t.RefID), t.Reason, t.CreatedBy, t.CreatedAt)
	return err
}

func (r *txRepository) ListTransactions(ctx context.Context, tenantID, itemID uuid.UUID) ([]Transaction, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, tenant_id, item_id, type, qty_delta, qty_after, unit_cost, total_cost, ref_type, COALESCE(ref_id, '00000000-0000-0000-0000-000000000000'::uuid), reason, created_by, created_at
FROM inventory_transactions WHERE tenant_id=$1 AND item_id=$2 ORDER BY created_at, id`, tenantID, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.TenantID, &t.ItemID, &t.Type, &t.QtyDelta, &t.QtyAfter, &t.UnitCost, &t.TotalCost, &t.RefType, &t.RefID, &t.Reason, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *txRepository) ListItemsBelowReorder(ctx context.Context, tenantID uuid.UUID) ([]Item, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+itemColumns+` FROM items
WHERE tenant_id=$1 AND is_active AND reorder_point > 0 AND stock_qty <= reorder_point ORDER BY sku`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func nullUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
