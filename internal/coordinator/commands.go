package coordinator

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgercore/ledgercore/internal/accounting"
	"github.com/ledgercore/ledgercore/internal/inventory"
	"github.com/ledgercore/ledgercore/internal/procurement"
	"github.com/ledgercore/ledgercore/internal/sales"
)

// Actor is the tenant and user every command carries.
type Actor struct {
	TenantID uuid.UUID `json:"tenant_id" validate:"required"`
	ActorID  uuid.UUID `json:"actor_id" validate:"required"`
}

// OrderLine is a requested sales or purchase line. A zero price falls back
// to the item's default; a nil tax rate uses the configured default.
type OrderLine struct {
	ItemID          uuid.UUID        `json:"item_id" validate:"required"`
	Quantity        decimal.Decimal  `json:"quantity" validate:"gt=0"`
	UnitPrice       decimal.Decimal  `json:"unit_price" validate:"gte=0"`
	DiscountPercent decimal.Decimal  `json:"discount_percent" validate:"gte=0,lte=100"`
	TaxRate         *decimal.Decimal `json:"tax_rate,omitempty" validate:"omitempty,gte=0,lt=1"`
}

type CreateSalesOrder struct {
	Actor
	CustomerID uuid.UUID   `json:"customer_id" validate:"required"`
	Currency   string      `json:"currency" validate:"omitempty,len=3"`
	OrderDate  time.Time   `json:"order_date"`
	Notes      string      `json:"notes"`
	Lines      []OrderLine `json:"lines" validate:"required,min=1,dive"`
}

type ConfirmSalesOrder struct {
	Actor
	OrderID uuid.UUID `json:"order_id" validate:"required"`
}

type ShipSalesOrder struct {
	Actor
	OrderID uuid.UUID        `json:"order_id" validate:"required"`
	Lines   []sales.ShipLine `json:"lines" validate:"required,min=1,dive"`
}

type RecordCustomerPayment struct {
	Actor
	OrderID   uuid.UUID       `json:"order_id" validate:"required"`
	Amount    decimal.Decimal `json:"amount" validate:"gt=0"`
	Method    string          `json:"method" validate:"required"`
	Reference string          `json:"reference"`
	PaidAt    time.Time       `json:"paid_at"`
}

type CancelSalesOrder struct {
	Actor
	OrderID uuid.UUID `json:"order_id" validate:"required"`
	Reason  string    `json:"reason"`
}

type CreatePurchaseOrder struct {
	Actor
	SupplierID uuid.UUID   `json:"supplier_id" validate:"required"`
	Currency   string      `json:"currency" validate:"omitempty,len=3"`
	OrderDate  time.Time   `json:"order_date"`
	Notes      string      `json:"notes"`
	Lines      []OrderLine `json:"lines" validate:"required,min=1,dive"`
}

type ConfirmPurchaseOrder struct {
	Actor
	OrderID uuid.UUID `json:"order_id" validate:"required"`
}

type ReceivePurchaseOrder struct {
	Actor
	OrderID    uuid.UUID                 `json:"order_id" validate:"required"`
	ReceivedAt time.Time                 `json:"received_at"`
	Lines      []procurement.ReceiveLine `json:"lines" validate:"required,min=1,dive"`
}

type PaySupplier struct {
	Actor
	OrderID   uuid.UUID       `json:"order_id" validate:"required"`
	Amount    decimal.Decimal `json:"amount" validate:"gt=0"`
	Method    string          `json:"method" validate:"required"`
	Reference string          `json:"reference"`
	PaidAt    time.Time       `json:"paid_at"`
}

type CancelPurchaseOrder struct {
	Actor
	OrderID uuid.UUID `json:"order_id" validate:"required"`
	Reason  string    `json:"reason"`
}

// AdjustStock moves stock by Delta. UnitCost values inbound deltas; zero
// uses the item's standard cost.
type AdjustStock struct {
	Actor
	ItemID   uuid.UUID       `json:"item_id" validate:"required"`
	Delta    decimal.Decimal `json:"delta" validate:"required"`
	UnitCost decimal.Decimal `json:"unit_cost" validate:"gte=0"`
	Reason   string          `json:"reason" validate:"required"`
}

type CreateItem struct {
	Actor
	SKU          string               `json:"sku" validate:"required,max=64"`
	Name         string               `json:"name" validate:"required"`
	UnitPrice    decimal.Decimal      `json:"unit_price" validate:"gte=0"`
	UnitCost     decimal.Decimal      `json:"unit_cost" validate:"gte=0"`
	ReorderPoint decimal.Decimal      `json:"reorder_point" validate:"gte=0"`
	CostMethod   inventory.CostMethod `json:"cost_method" validate:"omitempty,oneof=AVERAGE FIFO LIFO"`
}

type ManualLine struct {
	AccountID uuid.UUID       `json:"account_id" validate:"required"`
	Debit     decimal.Decimal `json:"debit" validate:"gte=0"`
	Credit    decimal.Decimal `json:"credit" validate:"gte=0"`
	Memo      string          `json:"memo"`
}

// PostManualEntry posts a hand-written entry. Reference, when set, becomes
// the source id so a retried request cannot post twice.
type PostManualEntry struct {
	Actor
	Date      time.Time    `json:"date"`
	Memo      string       `json:"memo" validate:"required"`
	Reference uuid.UUID    `json:"reference"`
	Lines     []ManualLine `json:"lines" validate:"required,min=2,dive"`
}

type ReverseEntry struct {
	Actor
	EntryID uuid.UUID `json:"entry_id" validate:"required"`
	Date    time.Time `json:"date"`
	Memo    string    `json:"memo"`
}

type CreateAccount struct {
	Actor
	Code     string                 `json:"code" validate:"required,max=32"`
	Name     string                 `json:"name" validate:"required"`
	Type     accounting.AccountType `json:"type" validate:"required,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	ParentID *uuid.UUID             `json:"parent_id,omitempty"`
}

type ChangeAccountType struct {
	Actor
	AccountID uuid.UUID              `json:"account_id" validate:"required"`
	Type      accounting.AccountType `json:"type" validate:"required,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
}

type MapAccount struct {
	Actor
	Key       string    `json:"key" validate:"required"`
	AccountID uuid.UUID `json:"account_id" validate:"required"`
}
