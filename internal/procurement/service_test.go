package procurement

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ledgercore/ledgercore/internal/shared"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func draftPO(t *testing.T) PurchaseOrder {
	t.Helper()
	po, err := NewDraftOrder(CreateOrderInput{
		TenantID: uuid.New(), SupplierID: uuid.New(), Currency: "ils", ActorID: uuid.New(),
		Lines: []LineInput{
			{ItemID: uuid.New(), Quantity: dec("10"), UnitCost: dec("4.00"), TaxRate: dec("0.17")},
			{ItemID: uuid.New(), Quantity: dec("5"), UnitCost: dec("20.00"), DiscountPercent: dec("10"), TaxRate: dec("0.17")},
		},
	}, "PO-2025-0001", time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return po
}

func TestNewDraftOrderTotals(t *testing.T) {
	po := draftPO(t)
	require.Equal(t, StatusDraft, po.Status)
	require.Equal(t, "ILS", po.Currency)
	require.Equal(t, "130.00", po.Subtotal.StringFixed(2))
	require.Equal(t, "10.00", po.Discount.StringFixed(2))
	require.Equal(t, "22.10", po.Tax.StringFixed(2))
	require.Equal(t, "152.10", po.Total.StringFixed(2))

	_, err := NewDraftOrder(CreateOrderInput{TenantID: uuid.New(), Currency: "ILS", ActorID: uuid.New(), Lines: []LineInput{{ItemID: uuid.New(), Quantity: dec("1")}}}, "PO-2025-0002", time.Now())
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestReceivePartialThenFull(t *testing.T) {
	po := draftPO(t)
	_, err := po.Receive([]ReceiveLine{{LineID: po.Lines[0].ID, Qty: dec("1")}})
	require.ErrorIs(t, err, ErrInvalidState)

	require.NoError(t, po.TransitionTo(StatusConfirmed))
	receipt, err := po.Receive([]ReceiveLine{{LineID: po.Lines[0].ID, Qty: dec("4")}})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, receipt.ID)
	require.Equal(t, StatusPartiallyReceived, po.Status)
	require.Equal(t, "16.00", receipt.Totals.Net.StringFixed(2))
	require.Equal(t, "2.72", receipt.Totals.Tax.StringFixed(2))
	require.Equal(t, "18.72", po.ReceivedAmount.StringFixed(2))
	require.False(t, po.Cancellable())

	_, err = po.Receive([]ReceiveLine{{LineID: po.Lines[0].ID, Qty: dec("7")}})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.True(t, po.Lines[0].ReceivedQty.Equal(dec("4")))

	receipt, err = po.Receive([]ReceiveLine{
		{LineID: po.Lines[0].ID, Qty: dec("6")},
		{LineID: po.Lines[1].ID, Qty: dec("5"), UnitCost: dec("22.00")},
	})
	require.NoError(t, err)
	require.Equal(t, StatusReceived, po.Status)
	require.Len(t, receipt.Lines, 2)
	require.Equal(t, "99.00", receipt.Lines[1].Amounts.Net.StringFixed(2))
	require.Equal(t, "19.800000", receipt.Lines[1].LandedUnitCost().StringFixed(6))
}

func TestApplyPaymentAgainstReceivedValue(t *testing.T) {
	po := draftPO(t)
	require.NoError(t, po.TransitionTo(StatusConfirmed))
	require.ErrorIs(t, po.ApplyPayment(dec("1")), ErrInvalidState)

	_, err := po.Receive([]ReceiveLine{{LineID: po.Lines[0].ID, Qty: dec("10")}})
	require.NoError(t, err)
	require.ErrorIs(t, po.ApplyPayment(dec("46.81")), shared.ErrValidation)
	require.NoError(t, po.ApplyPayment(dec("46.80")))
	require.Equal(t, StatusPartiallyReceived, po.Status)

	_, err = po.Receive([]ReceiveLine{{LineID: po.Lines[1].ID, Qty: dec("5")}})
	require.NoError(t, err)
	require.Equal(t, StatusReceived, po.Status)
	require.Equal(t, "105.30", po.Payable().StringFixed(2))
	require.NoError(t, po.ApplyPayment(dec("105.30")))
	require.Equal(t, StatusPaid, po.Status)
}

func TestCancellable(t *testing.T) {
	po := draftPO(t)
	require.True(t, po.Cancellable())
	require.NoError(t, po.TransitionTo(StatusConfirmed))
	require.True(t, po.Cancellable())
	require.NoError(t, po.TransitionTo(StatusCancelled))
	require.False(t, po.Cancellable())
	require.False(t, CanTransition(StatusReceived, StatusCancelled))
}
