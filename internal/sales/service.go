package sales

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgercore/ledgercore/internal/shared"
)

// LineInput describes one requested order line. UnitPrice is the resolved
// price; callers default it from the item before building.
type LineInput struct {
	ItemID          uuid.UUID
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	DiscountPercent decimal.Decimal
	TaxRate         decimal.Decimal
}

// CreateOrderInput carries everything needed to build a draft order.
type CreateOrderInput struct {
	TenantID   uuid.UUID
	CustomerID uuid.UUID
	Currency   string
	OrderDate  time.Time
	Notes      string
	ActorID    uuid.UUID
	Lines      []LineInput
}

// NewDraftOrder prices the lines and returns a Draft order numbered number.
func NewDraftOrder(in CreateOrderInput, number string, now time.Time) (Order, error) {
	switch {
	case in.TenantID == uuid.Nil:
		return Order{}, shared.Invalid("tenant_id", "required")
	case in.CustomerID == uuid.Nil:
		return Order{}, shared.Invalid("customer_id", "required")
	case in.ActorID == uuid.Nil:
		return Order{}, shared.Invalid("actor_id", "required")
	case len(strings.TrimSpace(in.Currency)) != 3:
		return Order{}, shared.Invalid("currency", "must be a 3-letter code")
	case len(in.Lines) == 0:
		return Order{}, shared.Invalid("lines", "at least one line is required")
	}
	orderDate := in.OrderDate
	if orderDate.IsZero() {
		orderDate = now
	}
	order := Order{
		ID:         uuid.New(),
		TenantID:   in.TenantID,
		Number:     number,
		CustomerID: in.CustomerID,
		Currency:   strings.ToUpper(strings.TrimSpace(in.Currency)),
		Status:     StatusDraft,
		OrderDate:  orderDate,
		PaidAmount: decimal.Zero,
		Notes:      in.Notes,
		CreatedBy:  in.ActorID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	var totals LineAmounts
	for i, li := range in.Lines {
		field := fmt.Sprintf("lines[%d]", i)
		if li.ItemID == uuid.Nil {
			return Order{}, shared.Invalid(field+".item_id", "required")
		}
		qty := shared.RoundQuantity(li.Quantity)
		price := shared.RoundMoney(li.UnitPrice)
		if err := ValidateLineTerms(field, qty, price, li.DiscountPercent, li.TaxRate); err != nil {
			return Order{}, err
		}
		amounts := CalculateLineTotals(qty, price, li.DiscountPercent, li.TaxRate)
		totals = totals.Add(amounts)
		order.Lines = append(order.Lines, Line{
			ID:              uuid.New(),
			TenantID:        in.TenantID,
			OrderID:         order.ID,
			LineNo:          i + 1,
			ItemID:          li.ItemID,
			Quantity:        qty,
			UnitPrice:       price,
			DiscountPercent: shared.RoundRate(li.DiscountPercent),
			TaxRate:         shared.RoundRate(li.TaxRate),
			DiscountAmount:  amounts.Discount,
			NetAmount:       amounts.Net,
			TaxAmount:       amounts.Tax,
			LineTotal:       amounts.Total,
			ShippedQty:      decimal.Zero,
			IssueCost:       decimal.Zero,
		})
	}
	order.Subtotal = totals.Net
	order.Discount = totals.Discount
	order.Tax = totals.Tax
	order.Total = totals.Total
	return order, nil
}
