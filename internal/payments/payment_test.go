package payments

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ledgercore/ledgercore/internal/shared"
)

func TestPaymentValidate(t *testing.T) {
	valid := Payment{
		TenantID: uuid.New(), CreatedBy: uuid.New(), Direction: DirectionInbound,
		PartyID: uuid.New(), OrderID: uuid.New(), OrderType: OrderTypeSales,
		Amount: decimal.RequireFromString("35.10"), Currency: "ILS", Number: "PAY-2025-0001",
	}
	require.NoError(t, valid.Validate())

	cases := map[string]func(p *Payment){
		"direction":  func(p *Payment) { p.Direction = "SIDEWAYS" },
		"order type": func(p *Payment) { p.OrderType = "Invoice" },
		"amount":     func(p *Payment) { p.Amount = decimal.RequireFromString("0.004") },
		"currency":   func(p *Payment) { p.Currency = "" },
		"actor":      func(p *Payment) { p.CreatedBy = uuid.Nil },
		"number":     func(p *Payment) { p.Number = " " },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := valid
			mutate(&p)
			require.ErrorIs(t, p.Validate(), shared.ErrValidation)
		})
	}
}
