package coordinator

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ledgercore/ledgercore/internal/accounting"
	"github.com/ledgercore/ledgercore/internal/audit"
	"github.com/ledgercore/ledgercore/internal/inventory"
	"github.com/ledgercore/ledgercore/internal/shared"
)

func TestAdjustStockBooksGainAndLoss(t *testing.T) {
	h := newHarness(t, Config{})
	a := h.newItem("SKU-1", "10", "4", "0")

	up, err := h.coord.AdjustStock(h.ctx, AdjustStock{Actor: h.actor, ItemID: a.ID, Delta: dec("10"), Reason: "count"})
	require.NoError(t, err)
	require.True(t, up.NewQty.Equal(dec("10")))
	gain := h.entry(up.EntryID)
	require.Equal(t, accounting.SourceStockAdjustment, gain.SourceType)
	require.Equal(t, up.Transaction.ID, gain.SourceID)
	h.requireLine(gain, accounting.KeyInventoryAsset, "40.00", "0")
	h.requireLine(gain, accounting.KeyInventoryGain, "0", "40.00")

	down, err := h.coord.AdjustStock(h.ctx, AdjustStock{Actor: h.actor, ItemID: a.ID, Delta: dec("-7"), Reason: "damaged"})
	require.NoError(t, err)
	require.True(t, down.NewQty.Equal(dec("3")))
	loss := h.entry(down.EntryID)
	h.requireLine(loss, accounting.KeyInventoryLoss, "28.00", "0")
	h.requireLine(loss, accounting.KeyInventoryAsset, "0", "28.00")

	before := h.store.Stats()
	_, err = h.coord.AdjustStock(h.ctx, AdjustStock{Actor: h.actor, ItemID: a.ID, Delta: dec("-5"), Reason: "lost"})
	requireStep(t, err, StepMutating)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.Equal(t, before, h.store.Stats())
	require.True(t, h.item(a.ID).StockQty.Equal(dec("3")))
	require.Equal(t, "12.00", money(h.balance(accounting.KeyInventoryAsset)))
}

func TestAdjustStockNegativeOverride(t *testing.T) {
	h := newHarness(t, Config{AllowNegativeAdjustments: true})
	a := h.newItem("SKU-1", "10", "4", "2")

	res, err := h.coord.AdjustStock(h.ctx, AdjustStock{Actor: h.actor, ItemID: a.ID, Delta: dec("-5"), Reason: "recount"})
	require.NoError(t, err)
	require.True(t, res.NewQty.Equal(dec("-3")))
}

func TestAdjustStockRequiresDeltaAndReason(t *testing.T) {
	h := newHarness(t, Config{})
	a := h.newItem("SKU-1", "10", "4", "0")

	_, err := h.coord.AdjustStock(h.ctx, AdjustStock{Actor: h.actor, ItemID: a.ID})
	require.ErrorIs(t, err, shared.ErrValidation)
	requireStep(t, err, StepValidating)
}

func TestItemsBelowReorder(t *testing.T) {
	h := newHarness(t, Config{})
	low, err := h.coord.CreateItem(h.ctx, CreateItem{Actor: h.actor, SKU: "LOW", Name: "Low", UnitCost: dec("1"), ReorderPoint: dec("5")})
	require.NoError(t, err)
	_, err = h.coord.AdjustStock(h.ctx, AdjustStock{Actor: h.actor, ItemID: low.ID, Delta: dec("3"), Reason: "opening"})
	require.NoError(t, err)
	h.newItem("OK", "1", "1", "50")

	items, err := h.coord.ItemsBelowReorder(h.ctx, h.actor.TenantID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "LOW", items[0].SKU)
}

func TestCreateItemRejectsUnknownCostMethod(t *testing.T) {
	h := newHarness(t, Config{})
	_, err := h.coord.CreateItem(h.ctx, CreateItem{Actor: h.actor, SKU: "X", Name: "X", CostMethod: inventory.CostMethod("HIFO")})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestChangeAccountTypeOnlyBeforePostings(t *testing.T) {
	h := newHarness(t, Config{})
	spare, err := h.coord.CreateAccount(h.ctx, CreateAccount{Actor: h.actor, Code: "9100", Name: "Suspense", Type: accounting.AccountTypeAsset})
	require.NoError(t, err)

	retyped, err := h.coord.ChangeAccountType(h.ctx, ChangeAccountType{Actor: h.actor, AccountID: spare.ID, Type: accounting.AccountTypeLiability})
	require.NoError(t, err)
	require.Equal(t, accounting.AccountTypeLiability, retyped.Type)
	require.Len(t, h.auditTrail(entityAccount, spare.ID), 2)

	_, err = h.coord.PostManualEntry(h.ctx, PostManualEntry{
		Actor: h.actor,
		Memo:  "Suspense clearing",
		Lines: []ManualLine{
			{AccountID: h.accounts[accounting.KeyCashBank], Debit: dec("5")},
			{AccountID: spare.ID, Credit: dec("5")},
		},
	})
	require.NoError(t, err)

	_, err = h.coord.ChangeAccountType(h.ctx, ChangeAccountType{Actor: h.actor, AccountID: spare.ID, Type: accounting.AccountTypeEquity})
	requireStep(t, err, StepMutating)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestManualEntryPostsOnceAndReversesOnce(t *testing.T) {
	h := newHarness(t, Config{})
	ref := uuid.New()
	cmd := PostManualEntry{
		Actor:     h.actor,
		Memo:      "Owner capital",
		Reference: ref,
		Lines: []ManualLine{
			{AccountID: h.accounts[accounting.KeyCashBank], Debit: dec("100")},
			{AccountID: h.accounts[accounting.KeySalesRevenue], Credit: dec("100")},
		},
	}
	entry, err := h.coord.PostManualEntry(h.ctx, cmd)
	require.NoError(t, err)
	require.Equal(t, "JE-2025-0001", entry.Number)
	require.True(t, entry.Posted)

	_, err = h.coord.PostManualEntry(h.ctx, cmd)
	requireStep(t, err, StepPosting)
	require.ErrorIs(t, err, shared.ErrDuplicatePosting)

	unbalanced := cmd
	unbalanced.Reference = uuid.Nil
	unbalanced.Lines = []ManualLine{
		{AccountID: h.accounts[accounting.KeyCashBank], Debit: dec("100")},
		{AccountID: h.accounts[accounting.KeySalesRevenue], Credit: dec("90")},
	}
	_, err = h.coord.PostManualEntry(h.ctx, unbalanced)
	require.ErrorIs(t, err, shared.ErrUnbalancedEntry)

	reversal, err := h.coord.ReverseEntry(h.ctx, ReverseEntry{Actor: h.actor, EntryID: entry.ID})
	require.NoError(t, err)
	require.Equal(t, "JE-2025-0002", reversal.Number)
	h.requireLine(h.entry(reversal.ID), accounting.KeyCashBank, "0", "100.00")

	_, err = h.coord.ReverseEntry(h.ctx, ReverseEntry{Actor: h.actor, EntryID: entry.ID})
	require.ErrorIs(t, err, shared.ErrDuplicatePosting)

	tb, err := h.coord.TrialBalance(h.ctx, h.actor.TenantID, clock)
	require.NoError(t, err)
	require.True(t, tb.Balanced())
	issues, err := h.coord.CheckIntegrity(h.ctx, h.actor.TenantID)
	require.NoError(t, err)
	require.Empty(t, issues)
}

func TestScanReorderWarnsPerItem(t *testing.T) {
	h := newHarness(t, Config{})
	low, err := h.coord.CreateItem(h.ctx, CreateItem{Actor: h.actor, SKU: "LOW", Name: "Low", UnitCost: dec("1"), ReorderPoint: dec("5")})
	require.NoError(t, err)

	items, err := h.coord.ScanReorder(h.ctx, h.actor)
	require.NoError(t, err)
	require.Len(t, items, 1)
	trail := h.auditTrail(entityItem, low.ID)
	last := trail[len(trail)-1]
	require.Equal(t, "stock.below_reorder", last.Action)
	require.Equal(t, audit.SeverityWarning, last.Severity)
}

func TestAuditTimelineListsNewestFirst(t *testing.T) {
	h := newHarness(t, Config{})
	widget := h.newItem("SKU-1", "10", "4", "5")
	h.newItem("SKU-2", "10", "4", "0")

	page, err := h.coord.AuditTimeline(h.ctx, h.actor.TenantID, audit.TimelineFilters{EntityType: entityItem, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page.Entries, 2)
	require.True(t, page.Paging.HasNext)
	require.Equal(t, "item.created", page.Entries[0].Action)
	require.Equal(t, "stock.adjusted", page.Entries[1].Action)
	require.Equal(t, widget.ID.String(), page.Entries[1].EntityID)

	adjusted, err := h.coord.AuditTimeline(h.ctx, h.actor.TenantID, audit.TimelineFilters{Action: "stock.adjusted"})
	require.NoError(t, err)
	require.Len(t, adjusted.Entries, 1)

	_, err = h.coord.AuditTimeline(h.ctx, h.actor.TenantID, audit.TimelineFilters{Severity: "LOUD"})
	requireStep(t, err, StepValidating)
}
