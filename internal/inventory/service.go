package inventory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgercore/ledgercore/internal/shared"
)

// Mutator applies stock changes inside a caller-owned transaction.
type Mutator struct {
	now func() time.Time
}

// NewMutator constructs Mutator.
func NewMutator() *Mutator {
	return &Mutator{now: time.Now}
}

// WithNow overrides the clock for testing.
func (m *Mutator) WithNow(now func() time.Time) {
	if now != nil {
		m.now = now
	}
}

// Adjust locks the item, applies delta and appends the movement record. The
// quantity update and the record share the caller's transaction.
func (m *Mutator) Adjust(ctx context.Context, tx TxRepository, in AdjustInput) (Result, error) {
	delta := shared.RoundQuantity(in.Delta)
	if err := validateAdjust(in, delta); err != nil {
		return Result{}, err
	}
	item, err := tx.GetItemForUpdate(ctx, in.TenantID, in.ItemID)
	if err != nil {
		return Result{}, err
	}
	if !item.IsActive {
		return Result{}, shared.Invalid("item_id", "item %s is inactive", item.SKU)
	}
	newQty := shared.RoundQuantity(item.StockQty.Add(delta))
	if newQty.IsNegative() && !in.AllowNegative {
		return Result{}, &shared.InsufficientStockError{ItemID: item.ID, SKU: item.SKU, Available: item.StockQty, Requested: delta.Abs()}
	}

	at := in.At
	if at.IsZero() {
		at = m.now()
	}
	record := Transaction{
		ID:        uuid.New(),
		TenantID:  in.TenantID,
		ItemID:    item.ID,
		Type:      in.Type,
		QtyDelta:  delta,
		QtyAfter:  newQty,
		RefType:   in.RefType,
		RefID:     in.RefID,
		Reason:    in.Reason,
		CreatedBy: in.ActorID,
		CreatedAt: at,
	}

	if delta.IsPositive() {
		unitCost := in.UnitCost
		if unitCost.IsZero() && !in.ExplicitCost {
			unitCost = item.UnitCost
		}
		if err := m.receive(ctx, tx, &item, &record, delta, unitCost, at); err != nil {
			return Result{}, err
		}
	} else {
		if err := m.issue(ctx, tx, &item, &record, delta.Neg()); err != nil {
			return Result{}, err
		}
	}

	item.StockQty = newQty
	item.UpdatedAt = at
	if err := tx.UpdateItemStock(ctx, item); err != nil {
		return Result{}, err
	}
	if err := tx.InsertTransaction(ctx, record); err != nil {
		return Result{}, err
	}
	return Result{Item: item, NewQty: newQty, Transaction: record, CostAmount: record.TotalCost}, nil
}

func validateAdjust(in AdjustInput, delta decimal.Decimal) error {
	switch {
	case in.TenantID == uuid.Nil:
		return shared.Invalid("tenant_id", "required")
	case in.ItemID == uuid.Nil:
		return shared.Invalid("item_id", "required")
	case in.ActorID == uuid.Nil:
		return shared.Invalid("actor_id", "required")
	case !in.Type.Valid():
		return shared.Invalid("type", "unknown transaction type %q", in.Type)
	case delta.IsZero():
		return shared.Invalid("delta", "%s", ErrInvalidQuantity.Error())
	case in.UnitCost.IsNegative():
		return shared.Invalid("unit_cost", "%s", ErrInvalidUnitCost.Error())
	case in.AllowNegative && in.Type != TransactionTypeAdjustment:
		return shared.Invalid("allow_negative", "override only applies to adjustments")
	}
	return nil
}

// receive opens a cost layer for the part of qty that ends up on hand and
// moves the average.
func (m *Mutator) receive(ctx context.Context, tx TxRepository, item *Item, record *Transaction, qty, unitCost decimal.Decimal, at time.Time) error {
	onHand := item.StockQty.Add(qty)
	layerQty := qty
	if onHand.LessThan(qty) {
		layerQty = decimal.Max(onHand, decimal.Zero)
	}
	if layerQty.IsPositive() {
		layer := CostLayer{
			ID:         uuid.New(),
			TenantID:   item.TenantID,
			ItemID:     item.ID,
			SourceTxID: record.ID,
			Qty:        layerQty,
			Remaining:  layerQty,
			UnitCost:   shared.RoundRate(unitCost),
			ReceivedAt: at,
		}
		if err := tx.InsertLayer(ctx, layer); err != nil {
			return err
		}
	}
	item.AvgCost = movingAverage(item.StockQty, item.AvgCost, qty, unitCost)
	record.UnitCost = shared.RoundRate(unitCost)
	record.TotalCost = shared.RoundMoney(qty.Mul(unitCost))
	return nil
}

// issue consumes layers according to the item's cost method.
func (m *Mutator) issue(ctx context.Context, tx TxRepository, item *Item, record *Transaction, qty decimal.Decimal) error {
	layers, err := tx.ListOpenLayers(ctx, item.TenantID, item.ID)
	if err != nil {
		return err
	}
	fallback := item.AvgCost
	if fallback.IsZero() {
		fallback = item.UnitCost
	}
	method := item.CostMethod
	if !method.Valid() {
		method = CostMethodAverage
	}
	result := consume(method, layers, qty, fallback, fallback)
	for _, layer := range result.updated {
		if err := tx.UpdateLayerRemaining(ctx, item.TenantID, layer.ID, layer.Remaining); err != nil {
			return err
		}
	}
	record.TotalCost = result.cost
	record.UnitCost = shared.RoundRate(result.cost.Div(qty))
	return nil
}

// CreateItem registers a stocked item; SKUs are unique per tenant.
func (m *Mutator) CreateItem(ctx context.Context, tx TxRepository, in CreateItemInput) (Item, error) {
	sku := strings.TrimSpace(in.SKU)
	switch {
	case in.TenantID == uuid.Nil:
		return Item{}, shared.Invalid("tenant_id", "required")
	case sku == "":
		return Item{}, shared.Invalid("sku", "required")
	case strings.TrimSpace(in.Name) == "":
		return Item{}, shared.Invalid("name", "required")
	case in.UnitPrice.IsNegative() || in.UnitCost.IsNegative() || in.ReorderPoint.IsNegative():
		return Item{}, shared.Invalid("item", "price, cost and reorder point must be >= 0")
	}
	method := in.CostMethod
	if method == "" {
		method = CostMethodAverage
	}
	if !method.Valid() {
		return Item{}, shared.Invalid("cost_method", "unknown cost method %q", method)
	}
	if _, found, err := tx.FindItemBySKU(ctx, in.TenantID, sku); err != nil {
		return Item{}, err
	} else if found {
		return Item{}, shared.Invalid("sku", "%s already exists", sku)
	}
	item := Item{
		ID:           uuid.New(),
		TenantID:     in.TenantID,
		SKU:          sku,
		Name:         strings.TrimSpace(in.Name),
		UnitPrice:    shared.RoundMoney(in.UnitPrice),
		UnitCost:     shared.RoundMoney(in.UnitCost),
		AvgCost:      decimal.Zero,
		StockQty:     decimal.Zero,
		ReorderPoint: shared.RoundQuantity(in.ReorderPoint),
		CostMethod:   method,
		IsActive:     true,
		UpdatedAt:    m.now(),
	}
	if err := tx.InsertItem(ctx, item); err != nil {
		return Item{}, err
	}
	return item, nil
}

// StockCard lists the movements of an item in posting order.
func StockCard(ctx context.Context, tx TxRepository, tenantID, itemID uuid.UUID) ([]Transaction, error) {
	if _, err := tx.GetItem(ctx, tenantID, itemID); err != nil {
		return nil, err
	}
	return tx.ListTransactions(ctx, tenantID, itemID)
}
