package inventory

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType enumerates supported inventory movements.
type TransactionType string

const (
	TransactionTypeSale       TransactionType = "SALE"
	TransactionTypePurchase   TransactionType = "PURCHASE"
	TransactionTypeAdjustment TransactionType = "ADJUSTMENT"
	TransactionTypeTransfer   TransactionType = "TRANSFER"
	TransactionTypeReturn     TransactionType = "RETURN"
	TransactionTypeProduction TransactionType = "PRODUCTION"
)

// Valid reports whether t is a known movement type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeSale, TransactionTypePurchase, TransactionTypeAdjustment,
		TransactionTypeTransfer, TransactionTypeReturn, TransactionTypeProduction:
		return true
	}
	return false
}

// CostMethod selects how outbound quantities are valued.
type CostMethod string

const (
	CostMethodAverage CostMethod = "AVERAGE"
	CostMethodFIFO    CostMethod = "FIFO"
	CostMethodLIFO    CostMethod = "LIFO"
)

// Valid reports whether m is a known cost method.
func (m CostMethod) Valid() bool {
	return m == CostMethodAverage || m == CostMethodFIFO || m == CostMethodLIFO
}

// Item is a stocked product of a tenant.
type Item struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	SKU          string
	Name         string
	UnitPrice    decimal.Decimal
	UnitCost     decimal.Decimal
	AvgCost      decimal.Decimal
	StockQty     decimal.Decimal
	ReorderPoint decimal.Decimal
	CostMethod   CostMethod
	IsActive     bool
	UpdatedAt    time.Time
}

// BelowReorder reports whether stock is at or below the reorder point.
func (i Item) BelowReorder() bool {
	return i.ReorderPoint.IsPositive() && i.StockQty.LessThanOrEqual(i.ReorderPoint)
}

// CostLayer is the unconsumed remainder of one inbound lot.
type CostLayer struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	ItemID     uuid.UUID
	SourceTxID uuid.UUID
	Qty        decimal.Decimal
	Remaining  decimal.Decimal
	UnitCost   decimal.Decimal
	ReceivedAt time.Time
	Seq        int64
}

// Transaction is an append-only stock movement record.
type Transaction struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	ItemID    uuid.UUID
	Type      TransactionType
	QtyDelta  decimal.Decimal
	QtyAfter  decimal.Decimal
	UnitCost  decimal.Decimal
	TotalCost decimal.Decimal
	RefType   string
	RefID     uuid.UUID
	Reason    string
	CreatedBy uuid.UUID
	CreatedAt time.Time
}

// AdjustInput describes a stock mutation. UnitCost applies to inbound deltas;
// zero falls back to the item's standard cost.
type AdjustInput struct {
	TenantID      uuid.UUID
	ItemID        uuid.UUID
	Delta         decimal.Decimal
	Type          TransactionType
	RefType       string
	RefID         uuid.UUID
	Reason        string
	UnitCost      decimal.Decimal
	ActorID       uuid.UUID
	AllowNegative bool
	At            time.Time

	// ExplicitCost keeps a zero UnitCost instead of falling back to the
	// item's standard cost. Returns use it to restore stock at issue cost.
	ExplicitCost bool
}

// Result reports the outcome of Adjust.
type Result struct {
	Item        Item
	NewQty      decimal.Decimal
	Transaction Transaction
	CostAmount  decimal.Decimal
}

// CreateItemInput describes a new item.
type CreateItemInput struct {
	TenantID     uuid.UUID
	SKU          string
	Name         string
	UnitPrice    decimal.Decimal
	UnitCost     decimal.Decimal
	ReorderPoint decimal.Decimal
	CostMethod   CostMethod
}

// ErrInvalidQuantity indicates invalid qty.
var ErrInvalidQuantity = errors.New("inventory: quantity must be non zero")

// ErrInvalidUnitCost indicates invalid cost value.
var ErrInvalidUnitCost = errors.New("inventory: unit cost must be >= 0")

// ErrSKUTaken is returned by repositories when the SKU already exists for the tenant.
var ErrSKUTaken = errors.New("inventory: sku already exists")
