package procurement

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgercore/ledgercore/internal/sales"
	"github.com/ledgercore/ledgercore/internal/shared"
)

// Status is the purchase order lifecycle state.
type Status string

const (
	StatusDraft             Status = "DRAFT"
	StatusConfirmed         Status = "CONFIRMED"
	StatusPartiallyReceived Status = "PARTIALLY_RECEIVED"
	StatusReceived          Status = "RECEIVED"
	StatusPaid              Status = "PAID"
	StatusCancelled         Status = "CANCELLED"
)

var transitions = map[Status][]Status{
	StatusDraft:             {StatusConfirmed, StatusCancelled},
	StatusConfirmed:         {StatusPartiallyReceived, StatusReceived, StatusCancelled},
	StatusPartiallyReceived: {StatusPartiallyReceived, StatusReceived},
	StatusReceived:          {StatusPaid},
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

var (
	// ErrInvalidState occurs when action violates status workflow.
	ErrInvalidState = errors.New("procurement: invalid state transition")
)

// PurchaseOrder is an order placed with a supplier.
type PurchaseOrder struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	Number         string
	SupplierID     uuid.UUID
	Currency       string
	Status         Status
	OrderDate      time.Time
	Subtotal       decimal.Decimal
	Discount       decimal.Decimal
	Tax            decimal.Decimal
	Total          decimal.Decimal
	ReceivedAmount decimal.Decimal
	PaidAmount     decimal.Decimal
	Notes          string
	CreatedBy      uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Lines          []POLine
}

// POLine represents PO lines. Quantity is fixed; ReceivedQty grows.
type POLine struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	OrderID         uuid.UUID
	LineNo          int
	ItemID          uuid.UUID
	Quantity        decimal.Decimal
	UnitCost        decimal.Decimal
	DiscountPercent decimal.Decimal
	TaxRate         decimal.Decimal
	DiscountAmount  decimal.Decimal
	NetAmount       decimal.Decimal
	TaxAmount       decimal.Decimal
	LineTotal       decimal.Decimal
	ReceivedQty     decimal.Decimal
}

// TransitionTo moves the order to next or returns ErrInvalidState.
func (po *PurchaseOrder) TransitionTo(next Status) error {
	if !CanTransition(po.Status, next) {
		return fmt.Errorf("%w: %w: %s -> %s", shared.ErrValidation, ErrInvalidState, po.Status, next)
	}
	po.Status = next
	return nil
}

// FullyReceived reports whether every line received its ordered quantity.
func (po PurchaseOrder) FullyReceived() bool {
	for _, l := range po.Lines {
		if l.ReceivedQty.LessThan(l.Quantity) {
			return false
		}
	}
	return true
}

// NothingReceived reports whether no goods arrived yet.
func (po PurchaseOrder) NothingReceived() bool {
	for _, l := range po.Lines {
		if l.ReceivedQty.IsPositive() {
			return false
		}
	}
	return true
}

// Payable is the received value not yet paid.
func (po PurchaseOrder) Payable() decimal.Decimal {
	return po.ReceivedAmount.Sub(po.PaidAmount)
}

// Cancellable reports whether the order can be cancelled.
func (po PurchaseOrder) Cancellable() bool {
	return (po.Status == StatusDraft || po.Status == StatusConfirmed) && po.NothingReceived()
}

// ReceiveLine asks to receive Qty of a PO line. A zero UnitCost keeps the
// ordered cost.
type ReceiveLine struct {
	LineID   uuid.UUID       `json:"line_id" validate:"required"`
	Qty      decimal.Decimal `json:"qty" validate:"gt=0"`
	UnitCost decimal.Decimal `json:"unit_cost" validate:"gte=0"`
}

// ReceiptLine is the valued result of receiving one line.
type ReceiptLine struct {
	Line     POLine
	Qty      decimal.Decimal
	UnitCost decimal.Decimal
	Amounts  sales.LineAmounts
}

// LandedUnitCost is the per-unit inventory value after discount.
func (r ReceiptLine) LandedUnitCost() decimal.Decimal {
	return shared.RoundRate(r.Amounts.Net.Div(r.Qty))
}

// Receipt groups the lines of one goods receipt. ID is the journal source id.
type Receipt struct {
	ID     uuid.UUID
	Lines  []ReceiptLine
	Totals sales.LineAmounts
}

// Receive raises received counters, values the receipt and moves the status.
func (po *PurchaseOrder) Receive(lines []ReceiveLine) (Receipt, error) {
	if po.Status != StatusConfirmed && po.Status != StatusPartiallyReceived {
		return Receipt{}, fmt.Errorf("%w: %w: cannot receive %s order", shared.ErrValidation, ErrInvalidState, po.Status)
	}
	if len(lines) == 0 {
		return Receipt{}, shared.Invalid("lines", "at least one line is required")
	}
	index := make(map[uuid.UUID]int, len(po.Lines))
	for i, l := range po.Lines {
		index[l.ID] = i
	}
	next := append([]POLine(nil), po.Lines...)
	receipt := Receipt{ID: uuid.New()}
	for i, req := range lines {
		field := fmt.Sprintf("lines[%d]", i)
		pos, ok := index[req.LineID]
		if !ok {
			return Receipt{}, shared.Invalid(field+".line_id", "line %s is not on order %s", req.LineID, po.Number)
		}
		qty := shared.RoundQuantity(req.Qty)
		if !qty.IsPositive() {
			return Receipt{}, shared.Invalid(field+".qty", "must be > 0")
		}
		if req.UnitCost.IsNegative() {
			return Receipt{}, shared.Invalid(field+".unit_cost", "must be >= 0")
		}
		received := next[pos].ReceivedQty.Add(qty)
		if received.GreaterThan(next[pos].Quantity) {
			return Receipt{}, shared.Invalid(field+".qty", "receiving %s would exceed ordered %s",
				received.StringFixed(shared.QuantityPlaces), next[pos].Quantity.StringFixed(shared.QuantityPlaces))
		}
		next[pos].ReceivedQty = received

		cost := next[pos].UnitCost
		if req.UnitCost.IsPositive() {
			cost = shared.RoundMoney(req.UnitCost)
		}
		amounts := sales.CalculateLineTotals(qty, cost, next[pos].DiscountPercent, next[pos].TaxRate)
		receipt.Lines = append(receipt.Lines, ReceiptLine{Line: next[pos], Qty: qty, UnitCost: cost, Amounts: amounts})
		receipt.Totals = receipt.Totals.Add(amounts)
	}

	previous := po.Lines
	po.Lines = next
	target := StatusPartiallyReceived
	if po.FullyReceived() {
		target = StatusReceived
	}
	if err := po.TransitionTo(target); err != nil {
		po.Lines = previous
		return Receipt{}, err
	}
	po.ReceivedAmount = po.ReceivedAmount.Add(receipt.Totals.Total)
	return receipt, nil
}

// ApplyPayment pays part of the received value. The order becomes Paid once
// it is fully received and fully paid.
func (po *PurchaseOrder) ApplyPayment(amount decimal.Decimal) error {
	if po.Status != StatusReceived && po.Status != StatusPartiallyReceived {
		return fmt.Errorf("%w: %w: cannot pay %s order", shared.ErrValidation, ErrInvalidState, po.Status)
	}
	amount = shared.RoundMoney(amount)
	if !amount.IsPositive() {
		return shared.Invalid("amount", "must be > 0")
	}
	if amount.GreaterThan(po.Payable()) {
		return shared.Invalid("amount", "%s exceeds payable %s", amount.StringFixed(2), po.Payable().StringFixed(2))
	}
	po.PaidAmount = po.PaidAmount.Add(amount)
	if po.Status == StatusReceived && !po.Payable().IsPositive() {
		return po.TransitionTo(StatusPaid)
	}
	return nil
}
