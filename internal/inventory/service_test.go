package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ledgercore/ledgercore/internal/shared"
)

type memoryTx struct {
	items        map[uuid.UUID]Item
	layers       []CostLayer
	transactions []Transaction
	nextSeq      int64
}

func newMemoryTx() *memoryTx {
	return &memoryTx{items: make(map[uuid.UUID]Item)}
}

func (tx *memoryTx) GetItem(ctx context.Context, tenantID, itemID uuid.UUID) (Item, error) {
	item, ok := tx.items[itemID]
	if !ok || item.TenantID != tenantID {
		return Item{}, shared.NewNotFound("item", itemID)
	}
	return item, nil
}

func (tx *memoryTx) GetItemForUpdate(ctx context.Context, tenantID, itemID uuid.UUID) (Item, error) {
	return tx.GetItem(ctx, tenantID, itemID)
}

func (tx *memoryTx) FindItemBySKU(ctx context.Context, tenantID uuid.UUID, sku string) (Item, bool, error) {
	for _, item := range tx.items {
		if item.TenantID == tenantID && item.SKU == sku {
			return item, true, nil
		}
	}
	return Item{}, false, nil
}

func (tx *memoryTx) InsertItem(ctx context.Context, item Item) error {
	tx.items[item.ID] = item
	return nil
}

func (tx *memoryTx) UpdateItemStock(ctx context.Context, item Item) error {
	tx.items[item.ID] = item
	return nil
}

func (tx *memoryTx) ListOpenLayers(ctx context.Context, tenantID, itemID uuid.UUID) ([]CostLayer, error) {
	var out []CostLayer
	for _, l := range tx.layers {
		if l.TenantID == tenantID && l.ItemID == itemID && l.Remaining.IsPositive() {
			out = append(out, l)
		}
	}
	return out, nil
}

func (tx *memoryTx) InsertLayer(ctx context.Context, layer CostLayer) error {
	tx.nextSeq++
	layer.Seq = tx.nextSeq
	tx.layers = append(tx.layers, layer)
	return nil
}

func (tx *memoryTx) UpdateLayerRemaining(ctx context.Context, tenantID, layerID uuid.UUID, remaining decimal.Decimal) error {
	for i := range tx.layers {
		if tx.layers[i].ID == layerID {
			tx.layers[i].Remaining = remaining
		}
	}
	return nil
}

func (tx *memoryTx) InsertTransaction(ctx context.Context, record Transaction) error {
	tx.transactions = append(tx.transactions, record)
	return nil
}

func (tx *memoryTx) ListTransactions(ctx context.Context, tenantID, itemID uuid.UUID) ([]Transaction, error) {
	var out []Transaction
	for _, t := range tx.transactions {
		if t.TenantID == tenantID && t.ItemID == itemID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (tx *memoryTx) ListItemsBelowReorder(ctx context.Context, tenantID uuid.UUID) ([]Item, error) {
	var out []Item
	for _, item := range tx.items {
		if item.TenantID == tenantID && item.BelowReorder() {
			out = append(out, item)
		}
	}
	return out, nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type harness struct {
	tx     *memoryTx
	m      *Mutator
	tenant uuid.UUID
	actor  uuid.UUID
	clock  time.Time
}

func newHarness() *harness {
	h := &harness{tx: newMemoryTx(), m: NewMutator(), tenant: uuid.New(), actor: uuid.New(), clock: time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)}
	h.m.WithNow(func() time.Time {
		h.clock = h.clock.Add(time.Minute)
		return h.clock
	})
	return h
}

func (h *harness) item(t *testing.T, sku string, method CostMethod) Item {
	t.Helper()
	item, err := h.m.CreateItem(context.Background(), h.tx, CreateItemInput{TenantID: h.tenant, SKU: sku, Name: sku, UnitPrice: dec("10"), UnitCost: dec("4"), CostMethod: method})
	require.NoError(t, err)
	return item
}

func (h *harness) adjust(item Item, delta, cost string, typ TransactionType) (Result, error) {
	return h.m.Adjust(context.Background(), h.tx, AdjustInput{
		TenantID: h.tenant, ItemID: item.ID, Delta: dec(delta), UnitCost: dec(cost), Type: typ,
		RefType: "Test", RefID: uuid.New(), ActorID: h.actor,
	})
}

func TestAdjustScenarioKeepsStockOnFailure(t *testing.T) {
	h := newHarness()
	sku := h.item(t, "SKU-1", CostMethodAverage)
	_, err := h.adjust(sku, "10", "4", TransactionTypePurchase)
	require.NoError(t, err)

	res, err := h.adjust(sku, "-7", "0", TransactionTypeSale)
	require.NoError(t, err)
	require.True(t, res.NewQty.Equal(dec("3")))
	require.Equal(t, TransactionTypeSale, res.Transaction.Type)
	require.True(t, res.Transaction.QtyAfter.Equal(dec("3")))

	_, err = h.adjust(sku, "-5", "0", TransactionTypeSale)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	var short *shared.InsufficientStockError
	require.True(t, errors.As(err, &short))
	require.Equal(t, "SKU-1", short.SKU)
	require.True(t, short.Available.Equal(dec("3")))
	require.True(t, short.Requested.Equal(dec("5")))

	require.True(t, h.tx.items[sku.ID].StockQty.Equal(dec("3")))
	require.Len(t, h.tx.transactions, 2)
}

func TestAverageMovingCost(t *testing.T) {
	h := newHarness()
	item := h.item(t, "AVG", CostMethodAverage)

	_, err := h.adjust(item, "10", "100", TransactionTypePurchase)
	require.NoError(t, err)
	res, err := h.adjust(item, "5", "120", TransactionTypePurchase)
	require.NoError(t, err)
	require.Equal(t, "106.666667", res.Item.AvgCost.StringFixed(6))

	res, err = h.adjust(item, "-8", "0", TransactionTypeSale)
	require.NoError(t, err)
	require.True(t, res.NewQty.Equal(dec("7")))
	require.Equal(t, "853.33", res.CostAmount.StringFixed(2))
	require.Equal(t, "106.666667", res.Item.AvgCost.StringFixed(6))
}

func TestFIFOConsumesOldestLayers(t *testing.T) {
	h := newHarness()
	item := h.item(t, "FIFO", CostMethodFIFO)
	_, err := h.adjust(item, "10", "5", TransactionTypePurchase)
	require.NoError(t, err)
	_, err = h.adjust(item, "10", "7", TransactionTypePurchase)
	require.NoError(t, err)

	res, err := h.adjust(item, "-12", "0", TransactionTypeSale)
	require.NoError(t, err)
	require.Equal(t, "64.00", res.CostAmount.StringFixed(2))

	open, _ := h.tx.ListOpenLayers(context.Background(), h.tenant, item.ID)
	require.Len(t, open, 1)
	require.True(t, open[0].Remaining.Equal(dec("8")))
	require.True(t, open[0].UnitCost.Equal(dec("7")))
}

func TestLIFOConsumesNewestLayers(t *testing.T) {
	h := newHarness()
	item := h.item(t, "LIFO", CostMethodLIFO)
	_, err := h.adjust(item, "10", "5", TransactionTypePurchase)
	require.NoError(t, err)
	_, err = h.adjust(item, "10", "7", TransactionTypePurchase)
	require.NoError(t, err)

	res, err := h.adjust(item, "-12", "0", TransactionTypeSale)
	require.NoError(t, err)
	require.Equal(t, "80.00", res.CostAmount.StringFixed(2))

	open, _ := h.tx.ListOpenLayers(context.Background(), h.tenant, item.ID)
	require.Len(t, open, 1)
	require.True(t, open[0].Remaining.Equal(dec("8")))
	require.True(t, open[0].UnitCost.Equal(dec("5")))
}

func TestNegativeOverrideOnlyForAdjustments(t *testing.T) {
	h := newHarness()
	item := h.item(t, "NEG", CostMethodFIFO)

	_, err := h.m.Adjust(context.Background(), h.tx, AdjustInput{TenantID: h.tenant, ItemID: item.ID, Delta: dec("-2"), Type: TransactionTypeSale, ActorID: h.actor, AllowNegative: true})
	require.ErrorIs(t, err, shared.ErrValidation)

	res, err := h.m.Adjust(context.Background(), h.tx, AdjustInput{TenantID: h.tenant, ItemID: item.ID, Delta: dec("-2"), Type: TransactionTypeAdjustment, ActorID: h.actor, AllowNegative: true, Reason: "count"})
	require.NoError(t, err)
	require.True(t, res.NewQty.Equal(dec("-2")))
	require.Equal(t, "8.00", res.CostAmount.StringFixed(2))

	res, err = h.adjust(item, "5", "6", TransactionTypePurchase)
	require.NoError(t, err)
	require.True(t, res.NewQty.Equal(dec("3")))
	open, _ := h.tx.ListOpenLayers(context.Background(), h.tenant, item.ID)
	require.Len(t, open, 1)
	require.True(t, open[0].Remaining.Equal(dec("3")))
}

func TestAdjustValidation(t *testing.T) {
	h := newHarness()
	item := h.item(t, "VAL", CostMethodAverage)

	_, err := h.adjust(item, "0", "0", TransactionTypeAdjustment)
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = h.adjust(item, "1", "0", TransactionType("GIFT"))
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = h.adjust(item, "1", "-1", TransactionTypePurchase)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = h.m.Adjust(context.Background(), h.tx, AdjustInput{TenantID: uuid.New(), ItemID: item.ID, Delta: dec("1"), Type: TransactionTypePurchase, ActorID: h.actor})
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = h.m.Adjust(context.Background(), h.tx, AdjustInput{TenantID: h.tenant, ItemID: item.ID, Delta: dec("1"), Type: TransactionTypePurchase})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, h.tx.transactions)
}

func TestInboundDefaultsToStandardCost(t *testing.T) {
	h := newHarness()
	item := h.item(t, "STD", CostMethodAverage)
	res, err := h.adjust(item, "2.5", "0", TransactionTypeReturn)
	require.NoError(t, err)
	require.Equal(t, "10.00", res.CostAmount.StringFixed(2))
	require.Equal(t, "4.000000", res.Item.AvgCost.StringFixed(6))
}

func TestExplicitZeroCostSkipsStandardCost(t *testing.T) {
	h := newHarness()
	item := h.item(t, "FREE", CostMethodFIFO)
	res, err := h.m.Adjust(context.Background(), h.tx, AdjustInput{
		TenantID: h.tenant, ItemID: item.ID, Delta: dec("3"), Type: TransactionTypeReturn,
		RefType: "Test", RefID: uuid.New(), ActorID: h.actor, ExplicitCost: true,
	})
	require.NoError(t, err)
	require.True(t, res.CostAmount.IsZero())
	require.True(t, res.Item.AvgCost.IsZero())
	require.Len(t, h.tx.layers, 1)
	require.True(t, h.tx.layers[0].UnitCost.IsZero())
}

func TestCreateItemAndStockCard(t *testing.T) {
	h := newHarness()
	item := h.item(t, "CARD", CostMethodAverage)

	_, err := h.m.CreateItem(context.Background(), h.tx, CreateItemInput{TenantID: h.tenant, SKU: "CARD", Name: "dup"})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = h.m.CreateItem(context.Background(), h.tx, CreateItemInput{TenantID: uuid.New(), SKU: "CARD", Name: "other tenant"})
	require.NoError(t, err)
	_, err = h.m.CreateItem(context.Background(), h.tx, CreateItemInput{TenantID: h.tenant, SKU: "X", Name: "x", CostMethod: "HIFO"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = h.adjust(item, "3", "2", TransactionTypePurchase)
	require.NoError(t, err)
	_, err = h.adjust(item, "-1", "0", TransactionTypeSale)
	require.NoError(t, err)

	card, err := StockCard(context.Background(), h.tx, h.tenant, item.ID)
	require.NoError(t, err)
	require.Len(t, card, 2)
	require.True(t, card[1].QtyAfter.Equal(dec("2")))

	_, err = StockCard(context.Background(), h.tx, h.tenant, uuid.New())
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestItemBelowReorder(t *testing.T) {
	require.True(t, Item{ReorderPoint: dec("5"), StockQty: dec("5")}.BelowReorder())
	require.False(t, Item{ReorderPoint: dec("5"), StockQty: dec("6")}.BelowReorder())
	require.False(t, Item{StockQty: dec("0")}.BelowReorder())
}
