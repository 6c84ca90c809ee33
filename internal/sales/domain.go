package sales

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgercore/ledgercore/internal/shared"
)

// Status is the sales order lifecycle state.
type Status string

const (
	StatusDraft            Status = "DRAFT"
	StatusConfirmed        Status = "CONFIRMED"
	StatusPartiallyShipped Status = "PARTIALLY_SHIPPED"
	StatusShipped          Status = "SHIPPED"
	StatusPaid             Status = "PAID"
	StatusCompleted        Status = "COMPLETED"
	StatusCancelled        Status = "CANCELLED"
)

// transitions lists the allowed next states. Labels live on Status; the
// lifecycle lives here.
var transitions = map[Status][]Status{
	StatusDraft:            {StatusConfirmed, StatusCancelled},
	StatusConfirmed:        {StatusPartiallyShipped, StatusShipped, StatusPaid, StatusCancelled},
	StatusPartiallyShipped: {StatusPartiallyShipped, StatusShipped, StatusPaid},
	StatusShipped:          {StatusCompleted},
	StatusPaid:             {StatusPaid, StatusCompleted},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ErrInvalidStatus occurs when an action violates the order workflow.
var ErrInvalidStatus = errors.New("sales: invalid status transition")

// Order is a sales order with its lines.
type Order struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	Number     string
	CustomerID uuid.UUID
	Currency   string
	Status     Status
	OrderDate  time.Time
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	Tax        decimal.Decimal
	Total      decimal.Decimal
	PaidAmount decimal.Decimal
	EntryID    uuid.UUID
	Notes      string
	CreatedBy  uuid.UUID
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Lines      []Line
}

// Line is one priced item of an order. Quantity is fixed once stock moved;
// only ShippedQty grows.
type Line struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	OrderID         uuid.UUID
	LineNo          int
	ItemID          uuid.UUID
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	DiscountPercent decimal.Decimal
	TaxRate         decimal.Decimal
	DiscountAmount  decimal.Decimal
	NetAmount       decimal.Decimal
	TaxAmount       decimal.Decimal
	LineTotal       decimal.Decimal
	ShippedQty      decimal.Decimal
	IssueCost       decimal.Decimal
}

// Amounts returns the stored money breakdown of the line.
func (l Line) Amounts() LineAmounts {
	return LineAmounts{
		Gross:    l.NetAmount.Add(l.DiscountAmount),
		Discount: l.DiscountAmount,
		Net:      l.NetAmount,
		Tax:      l.TaxAmount,
		Total:    l.LineTotal,
	}
}

// TransitionTo moves the order to next or returns ErrInvalidStatus.
func (o *Order) TransitionTo(next Status) error {
	if !CanTransition(o.Status, next) {
		return fmt.Errorf("%w: %w: %s -> %s", shared.ErrValidation, ErrInvalidStatus, o.Status, next)
	}
	o.Status = next
	return nil
}

// FullyShipped reports whether every line shipped its ordered quantity.
func (o Order) FullyShipped() bool {
	for _, l := range o.Lines {
		if l.ShippedQty.LessThan(l.Quantity) {
			return false
		}
	}
	return true
}

// NothingShipped reports whether no line shipped anything yet.
func (o Order) NothingShipped() bool {
	for _, l := range o.Lines {
		if l.ShippedQty.IsPositive() {
			return false
		}
	}
	return true
}

// Outstanding is the unpaid part of the total.
func (o Order) Outstanding() decimal.Decimal {
	return o.Total.Sub(o.PaidAmount)
}

// Cancellable reports whether the order can still be cancelled: a draft, or
// a confirmed order with nothing shipped or paid.
func (o Order) Cancellable() bool {
	switch o.Status {
	case StatusDraft:
		return true
	case StatusConfirmed:
		return o.NothingShipped() && !o.PaidAmount.IsPositive()
	}
	return false
}

// ShipLine asks to ship Qty of one order line.
type ShipLine struct {
	LineID uuid.UUID       `json:"line_id" validate:"required"`
	Qty    decimal.Decimal `json:"qty" validate:"gt=0"`
}

// Ship raises shipped counters and moves the status. Counters never exceed
// the ordered quantity.
func (o *Order) Ship(lines []ShipLine) error {
	switch o.Status {
	case StatusConfirmed, StatusPartiallyShipped, StatusPaid:
	default:
		return fmt.Errorf("%w: %w: cannot ship %s order", shared.ErrValidation, ErrInvalidStatus, o.Status)
	}
	if len(lines) == 0 {
		return shared.Invalid("lines", "at least one line is required")
	}
	index := make(map[uuid.UUID]int, len(o.Lines))
	for i, l := range o.Lines {
		index[l.ID] = i
	}
	next := append([]Line(nil), o.Lines...)
	for i, req := range lines {
		pos, ok := index[req.LineID]
		if !ok {
			return shared.Invalid(fmt.Sprintf("lines[%d].line_id", i), "line %s is not on order %s", req.LineID, o.Number)
		}
		qty := shared.RoundQuantity(req.Qty)
		if !qty.IsPositive() {
			return shared.Invalid(fmt.Sprintf("lines[%d].qty", i), "must be > 0")
		}
		shipped := next[pos].ShippedQty.Add(qty)
		if shipped.GreaterThan(next[pos].Quantity) {
			return shared.Invalid(fmt.Sprintf("lines[%d].qty", i), "shipping %s would exceed ordered %s",
				shipped.StringFixed(shared.QuantityPlaces), next[pos].Quantity.StringFixed(shared.QuantityPlaces))
		}
		next[pos].ShippedQty = shipped
	}
	o.Lines = next

	target := StatusPartiallyShipped
	if o.FullyShipped() {
		target = StatusShipped
	}
	if o.Status == StatusPaid {
		target = StatusPaid
		if o.FullyShipped() {
			target = StatusCompleted
		}
	}
	if err := o.TransitionTo(target); err != nil {
		return err
	}
	// Nothing is left to collect on a zero-value order.
	if o.Status == StatusShipped && !o.Outstanding().IsPositive() {
		return o.TransitionTo(StatusCompleted)
	}
	return nil
}

// ApplyPayment adds amount to the paid total. A fully paid order becomes Paid,
// or Completed when it has also shipped in full.
func (o *Order) ApplyPayment(amount decimal.Decimal) error {
	switch o.Status {
	case StatusConfirmed, StatusPartiallyShipped, StatusShipped:
	default:
		return fmt.Errorf("%w: %w: cannot pay %s order", shared.ErrValidation, ErrInvalidStatus, o.Status)
	}
	amount = shared.RoundMoney(amount)
	if !amount.IsPositive() {
		return shared.Invalid("amount", "must be > 0")
	}
	if amount.GreaterThan(o.Outstanding()) {
		return shared.Invalid("amount", "%s exceeds outstanding %s", amount.StringFixed(2), o.Outstanding().StringFixed(2))
	}
	o.PaidAmount = o.PaidAmount.Add(amount)
	if o.Outstanding().IsPositive() {
		return nil
	}
	if o.Status == StatusShipped {
		return o.TransitionTo(StatusCompleted)
	}
	return o.TransitionTo(StatusPaid)
}
