package payments

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgercore/ledgercore/internal/shared"
)

// Direction tells whether money came in or went out.
type Direction string

const (
	DirectionInbound  Direction = "INBOUND"
	DirectionOutbound Direction = "OUTBOUND"
)

// Order types a payment can settle.
const (
	OrderTypeSales    = "SalesOrder"
	OrderTypePurchase = "PurchaseOrder"
)

// Payment is a settled amount against an order.
type Payment struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Number    string
	Direction Direction
	PartyID   uuid.UUID
	OrderType string
	OrderID   uuid.UUID
	Amount    decimal.Decimal
	Currency  string
	Method    string
	Reference string
	PaidAt    time.Time
	EntryID   uuid.UUID
	CreatedBy uuid.UUID
	CreatedAt time.Time
}

// TxRepository persists payments inside a transaction.
type TxRepository interface {
	InsertPayment(ctx context.Context, p Payment) error
	AttachEntry(ctx context.Context, tenantID, paymentID, entryID uuid.UUID) error
	ListByOrder(ctx context.Context, tenantID uuid.UUID, orderType string, orderID uuid.UUID) ([]Payment, error)
}

// Validate checks a payment before it is written.
func (p Payment) Validate() error {
	switch {
	case p.TenantID == uuid.Nil:
		return shared.Invalid("tenant_id", "required")
	case p.CreatedBy == uuid.Nil:
		return shared.Invalid("actor_id", "required")
	case p.Direction != DirectionInbound && p.Direction != DirectionOutbound:
		return shared.Invalid("direction", "unknown direction %q", p.Direction)
	case p.PartyID == uuid.Nil || p.OrderID == uuid.Nil:
		return shared.Invalid("order", "party and order are required")
	case p.OrderType != OrderTypeSales && p.OrderType != OrderTypePurchase:
		return shared.Invalid("order_type", "unknown order type %q", p.OrderType)
	case !shared.RoundMoney(p.Amount).IsPositive():
		return shared.Invalid("amount", "must be > 0")
	case len(strings.TrimSpace(p.Currency)) != 3:
		return shared.Invalid("currency", "must be a 3-letter code")
	case strings.TrimSpace(p.Number) == "":
		return shared.Invalid("number", "required")
	}
	return nil
}
