package procurement

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgercore/ledgercore/internal/sales"
	"github.com/ledgercore/ledgercore/internal/shared"
)

// LineInput describes one ordered item. UnitCost is resolved by the caller.
type LineInput struct {
	ItemID          uuid.UUID
	Quantity        decimal.Decimal
	UnitCost        decimal.Decimal
	DiscountPercent decimal.Decimal
	TaxRate         decimal.Decimal
}

// CreateOrderInput carries a new purchase order.
type CreateOrderInput struct {
	TenantID   uuid.UUID
	SupplierID uuid.UUID
	Currency   string
	OrderDate  time.Time
	Notes      string
	ActorID    uuid.UUID
	Lines      []LineInput
}

// NewDraftOrder prices the lines and returns a Draft purchase order.
func NewDraftOrder(in CreateOrderInput, number string, now time.Time) (PurchaseOrder, error) {
	switch {
	case in.TenantID == uuid.Nil:
		return PurchaseOrder{}, shared.Invalid("tenant_id", "required")
	case in.SupplierID == uuid.Nil:
		return PurchaseOrder{}, shared.Invalid("supplier_id", "required")
	case in.ActorID == uuid.Nil:
		return PurchaseOrder{}, shared.Invalid("actor_id", "required")
	case len(strings.TrimSpace(in.Currency)) != 3:
		return PurchaseOrder{}, shared.Invalid("currency", "must be a 3-letter code")
	case len(in.Lines) == 0:
		return PurchaseOrder{}, shared.Invalid("lines", "at least one line is required")
	}
	orderDate := in.OrderDate
	if orderDate.IsZero() {
		orderDate = now
	}
	po := PurchaseOrder{
		ID:             uuid.New(),
		TenantID:       in.TenantID,
		Number:         number,
		SupplierID:     in.SupplierID,
		Currency:       strings.ToUpper(strings.TrimSpace(in.Currency)),
		Status:         StatusDraft,
		OrderDate:      orderDate,
		ReceivedAmount: decimal.Zero,
		PaidAmount:     decimal.Zero,
		Notes:          in.Notes,
		CreatedBy:      in.ActorID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	var totals sales.LineAmounts
	for i, li := range in.Lines {
		field := fmt.Sprintf("lines[%d]", i)
		if li.ItemID == uuid.Nil {
			return PurchaseOrder{}, shared.Invalid(field+".item_id", "required")
		}
		qty := shared.RoundQuantity(li.Quantity)
		cost := shared.RoundMoney(li.UnitCost)
		if err := sales.ValidateLineTerms(field, qty, cost, li.DiscountPercent, li.TaxRate); err != nil {
			return PurchaseOrder{}, err
		}
		amounts := sales.CalculateLineTotals(qty, cost, li.DiscountPercent, li.TaxRate)
		totals = totals.Add(amounts)
		po.Lines = append(po.Lines, POLine{
			ID:              uuid.New(),
			TenantID:        in.TenantID,
			OrderID:         po.ID,
			LineNo:          i + 1,
			ItemID:          li.ItemID,
			Quantity:        qty,
			UnitCost:        cost,
			DiscountPercent: shared.RoundRate(li.DiscountPercent),
			TaxRate:         shared.RoundRate(li.TaxRate),
			DiscountAmount:  amounts.Discount,
			NetAmount:       amounts.Net,
			TaxAmount:       amounts.Tax,
			LineTotal:       amounts.Total,
			ReceivedQty:     decimal.Zero,
		})
	}
	po.Subtotal = totals.Net
	po.Discount = totals.Discount
	po.Tax = totals.Tax
	po.Total = totals.Total
	return po, nil
}
