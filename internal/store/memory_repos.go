package store

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgercore/ledgercore/internal/accounting"
	"github.com/ledgercore/ledgercore/internal/audit"
	"github.com/ledgercore/ledgercore/internal/inventory"
	"github.com/ledgercore/ledgercore/internal/numbering"
	"github.com/ledgercore/ledgercore/internal/payments"
	"github.com/ledgercore/ledgercore/internal/procurement"
	"github.com/ledgercore/ledgercore/internal/sales"
	"github.com/ledgercore/ledgercore/internal/shared"
)

// numbering

func (tx *memoryTx) LockSequence(ctx context.Context, tenantID uuid.UUID, kind numbering.Kind, year int) error {
	return nil
}

func (tx *memoryTx) ListNumbers(ctx context.Context, tenantID uuid.UUID, kind numbering.Kind, year int) ([]string, error) {
	var out []string
	for _, row := range tx.state.numbers {
		if row.tenantID == tenantID && row.kind == kind && row.year == year {
			out = append(out, row.number)
		}
	}
	return out, nil
}

func (tx *memoryTx) InsertNumber(ctx context.Context, tenantID uuid.UUID, kind numbering.Kind, year int, number string) error {
	if err := tx.store.checkFault("numbering.InsertNumber"); err != nil {
		return err
	}
	for _, row := range tx.state.numbers {
		if row.tenantID == tenantID && row.kind == kind && row.number == number {
			return numbering.ErrNumberTaken
		}
	}
	tx.state.numbers = append(tx.state.numbers, numberRow{tenantID: tenantID, kind: kind, year: year, number: number})
	return nil
}

// accounting

func (tx *memoryTx) GetAccount(ctx context.Context, tenantID, accountID uuid.UUID) (accounting.Account, error) {
	a, ok := tx.state.accounts[accountID]
	if !ok || a.TenantID != tenantID {
		return accounting.Account{}, shared.NewNotFound("account", accountID)
	}
	return a, nil
}

func (tx *memoryTx) FindAccountByCode(ctx context.Context, tenantID uuid.UUID, code string) (accounting.Account, bool, error) {
	for _, a := range tx.state.accounts {
		if a.TenantID == tenantID && a.Code == code {
			return a, true, nil
		}
	}
	return accounting.Account{}, false, nil
}

func (tx *memoryTx) InsertAccount(ctx context.Context, a accounting.Account) error {
	if err := tx.store.checkFault("accounting.InsertAccount"); err != nil {
		return err
	}
	if _, found, _ := tx.FindAccountByCode(ctx, a.TenantID, a.Code); found {
		return shared.Invalid("code", "account code %s already exists", a.Code)
	}
	tx.state.accounts[a.ID] = a
	return nil
}

func (tx *memoryTx) UpdateAccountType(ctx context.Context, tenantID, accountID uuid.UUID, t accounting.AccountType) error {
	a, err := tx.GetAccount(ctx, tenantID, accountID)
	if err != nil {
		return err
	}
	a.Type = t
	tx.state.accounts[a.ID] = a
	return nil
}

func (tx *memoryTx) AccountHasLines(ctx context.Context, tenantID, accountID uuid.UUID) (bool, error) {
	for _, e := range tx.state.entries {
		if e.TenantID != tenantID {
			continue
		}
		for _, l := range e.Lines {
			if l.AccountID == accountID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (tx *memoryTx) ResolveMapping(ctx context.Context, tenantID uuid.UUID, key string) (uuid.UUID, error) {
	id, ok := tx.state.mappings[mappingKey{tenantID: tenantID, key: key}]
	if !ok {
		return uuid.Nil, accounting.ErrMappingNotFound
	}
	return id, nil
}

func (tx *memoryTx) UpsertMapping(ctx context.Context, tenantID uuid.UUID, key string, accountID uuid.UUID) error {
	tx.state.mappings[mappingKey{tenantID: tenantID, key: key}] = accountID
	return nil
}

func (tx *memoryTx) FindEntryBySource(ctx context.Context, tenantID uuid.UUID, sourceType string, sourceID uuid.UUID) (accounting.JournalEntry, bool, error) {
	for _, e := range tx.state.entries {
		if e.TenantID == tenantID && e.SourceType == sourceType && e.SourceID == sourceID {
			return e, true, nil
		}
	}
	return accounting.JournalEntry{}, false, nil
}

func (tx *memoryTx) InsertJournalEntry(ctx context.Context, e accounting.JournalEntry) error {
	if err := tx.store.checkFault("accounting.InsertJournalEntry"); err != nil {
		return err
	}
	if _, found, _ := tx.FindEntryBySource(ctx, e.TenantID, e.SourceType, e.SourceID); found {
		return accounting.ErrSourceConflict
	}
	e.Posted = false
	e.Lines = nil
	tx.state.entries[e.ID] = e
	return nil
}

func (tx *memoryTx) InsertJournalLines(ctx context.Context, tenantID, entryID uuid.UUID, lines []accounting.JournalLine) error {
	if err := tx.store.checkFault("accounting.InsertJournalLines"); err != nil {
		return err
	}
	e, ok := tx.state.entries[entryID]
	if !ok || e.TenantID != tenantID {
		return shared.NewNotFound("journal entry", entryID)
	}
	for _, l := range lines {
		l.EntryID = entryID
		e.Lines = append(e.Lines, l)
	}
	tx.state.entries[entryID] = e
	return nil
}

func (tx *memoryTx) MarkPosted(ctx context.Context, tenantID, entryID uuid.UUID) error {
	e, ok := tx.state.entries[entryID]
	if !ok || e.TenantID != tenantID {
		return shared.NewNotFound("journal entry", entryID)
	}
	e.Posted = true
	tx.state.entries[entryID] = e
	return nil
}

func (tx *memoryTx) GetJournalEntry(ctx context.Context, tenantID, entryID uuid.UUID) (accounting.JournalEntry, error) {
	e, ok := tx.state.entries[entryID]
	if !ok || e.TenantID != tenantID {
		return accounting.JournalEntry{}, shared.NewNotFound("journal entry", entryID)
	}
	e.Lines = append([]accounting.JournalLine(nil), e.Lines...)
	return e, nil
}

func (tx *memoryTx) MarkReversed(ctx context.Context, tenantID, entryID, reversalID uuid.UUID) error {
	e, ok := tx.state.entries[entryID]
	if !ok || e.TenantID != tenantID {
		return shared.NewNotFound("journal entry", entryID)
	}
	if e.ReversedBy != nil {
		return &shared.DuplicatePostingError{SourceType: accounting.SourceReversal, SourceID: entryID}
	}
	id := reversalID
	e.ReversedBy = &id
	tx.state.entries[entryID] = e
	return nil
}

func (tx *memoryTx) AccountTotals(ctx context.Context, tenantID uuid.UUID, asOf time.Time) ([]accounting.AccountBalance, error) {
	totals := make(map[uuid.UUID]*accounting.AccountBalance)
	for _, e := range tx.state.entries {
		if e.TenantID != tenantID || !e.Posted || e.Date.After(asOf) {
			continue
		}
		for _, l := range e.Lines {
			b, ok := totals[l.AccountID]
			if !ok {
				a := tx.state.accounts[l.AccountID]
				b = &accounting.AccountBalance{AccountID: a.ID, Code: a.Code, Name: a.Name, Type: a.Type, Debit: decimal.Zero, Credit: decimal.Zero}
				totals[l.AccountID] = b
			}
			b.Debit = b.Debit.Add(l.Debit)
			b.Credit = b.Credit.Add(l.Credit)
		}
	}
	out := make([]accounting.AccountBalance, 0, len(totals))
	for _, b := range totals {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (tx *memoryTx) ListEntryTotals(ctx context.Context, tenantID uuid.UUID) ([]accounting.EntryTotals, error) {
	var out []accounting.EntryTotals
	for _, e := range tx.state.entries {
		if e.TenantID != tenantID || !e.Posted {
			continue
		}
		debit, credit := e.Totals()
		out = append(out, accounting.EntryTotals{EntryID: e.ID, Number: e.Number, Debit: debit, Credit: credit, Lines: len(e.Lines)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// inventory

func (tx *memoryTx) GetItem(ctx context.Context, tenantID, itemID uuid.UUID) (inventory.Item, error) {
	item, ok := tx.state.items[itemID]
	if !ok || item.TenantID != tenantID {
		return inventory.Item{}, shared.NewNotFound("item", itemID)
	}
	return item, nil
}

func (tx *memoryTx) GetItemForUpdate(ctx context.Context, tenantID, itemID uuid.UUID) (inventory.Item, error) {
	return tx.GetItem(ctx, tenantID, itemID)
}

func (tx *memoryTx) FindItemBySKU(ctx context.Context, tenantID uuid.UUID, sku string) (inventory.Item, bool, error) {
	for _, item := range tx.state.items {
		if item.TenantID == tenantID && item.SKU == sku {
			return item, true, nil
		}
	}
	return inventory.Item{}, false, nil
}

func (tx *memoryTx) InsertItem(ctx context.Context, item inventory.Item) error {
	if err := tx.store.checkFault("inventory.InsertItem"); err != nil {
		return err
	}
	if _, found, _ := tx.FindItemBySKU(ctx, item.TenantID, item.SKU); found {
		return shared.Invalid("sku", "%s", inventory.ErrSKUTaken.Error())
	}
	tx.state.items[item.ID] = item
	return nil
}

func (tx *memoryTx) UpdateItemStock(ctx context.Context, item inventory.Item) error {
	if err := tx.store.checkFault("inventory.UpdateItemStock"); err != nil {
		return err
	}
	if _, err := tx.GetItem(ctx, item.TenantID, item.ID); err != nil {
		return err
	}
	tx.state.items[item.ID] = item
	return nil
}

func (tx *memoryTx) ListOpenLayers(ctx context.Context, tenantID, itemID uuid.UUID) ([]inventory.CostLayer, error) {
	var out []inventory.CostLayer
	for _, l := range tx.state.layers {
		if l.TenantID == tenantID && l.ItemID == itemID && l.Remaining.IsPositive() {
			out = append(out, l)
		}
	}
	return out, nil
}

func (tx *memoryTx) InsertLayer(ctx context.Context, layer inventory.CostLayer) error {
	if err := tx.store.checkFault("inventory.InsertLayer"); err != nil {
		return err
	}
	tx.state.layerSeq++
	layer.Seq = tx.state.layerSeq
	tx.state.layers = append(tx.state.layers, layer)
	return nil
}

func (tx *memoryTx) UpdateLayerRemaining(ctx context.Context, tenantID, layerID uuid.UUID, remaining decimal.Decimal) error {
	for i := range tx.state.layers {
		if tx.state.layers[i].ID == layerID && tx.state.layers[i].TenantID == tenantID {
			tx.state.layers[i].Remaining = remaining
			return nil
		}
	}
	return shared.NewNotFound("cost layer", layerID)
}

func (tx *memoryTx) InsertTransaction(ctx context.Context, record inventory.Transaction) error {
	if err := tx.store.checkFault("inventory.InsertTransaction"); err != nil {
		return err
	}
	tx.state.stockTx = append(tx.state.stockTx, record)
	return nil
}

func (tx *memoryTx) ListTransactions(ctx context.Context, tenantID, itemID uuid.UUID) ([]inventory.Transaction, error) {
	var out []inventory.Transaction
	for _, t := range tx.state.stockTx {
		if t.TenantID == tenantID && t.ItemID == itemID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (tx *memoryTx) ListItemsBelowReorder(ctx context.Context, tenantID uuid.UUID) ([]inventory.Item, error) {
	var out []inventory.Item
	for _, item := range tx.state.items {
		if item.TenantID == tenantID && item.IsActive && item.BelowReorder() {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

// sales

func (tx *memoryTx) InsertOrder(ctx context.Context, order sales.Order) error {
	if err := tx.store.checkFault("sales.InsertOrder"); err != nil {
		return err
	}
	order.Lines = append([]sales.Line(nil), order.Lines...)
	tx.state.orders[order.ID] = order
	return nil
}

func (tx *memoryTx) GetOrder(ctx context.Context, tenantID, orderID uuid.UUID) (sales.Order, error) {
	o, ok := tx.state.orders[orderID]
	if !ok || o.TenantID != tenantID {
		return sales.Order{}, shared.NewNotFound("sales order", orderID)
	}
	o.Lines = append([]sales.Line(nil), o.Lines...)
	return o, nil
}

func (tx *memoryTx) GetOrderForUpdate(ctx context.Context, tenantID, orderID uuid.UUID) (sales.Order, error) {
	return tx.GetOrder(ctx, tenantID, orderID)
}

func (tx *memoryTx) UpdateOrder(ctx context.Context, order sales.Order) error {
	if err := tx.store.checkFault("sales.UpdateOrder"); err != nil {
		return err
	}
	stored, err := tx.GetOrder(ctx, order.TenantID, order.ID)
	if err != nil {
		return err
	}
	stored.Status = order.Status
	stored.PaidAmount = order.PaidAmount
	stored.EntryID = order.EntryID
	stored.UpdatedAt = order.UpdatedAt
	tx.state.orders[order.ID] = stored
	return nil
}

func (tx *memoryTx) UpdateLineProgress(ctx context.Context, tenantID uuid.UUID, line sales.Line) error {
	if err := tx.store.checkFault("sales.UpdateLineProgress"); err != nil {
		return err
	}
	o, ok := tx.state.orders[line.OrderID]
	if ok && o.TenantID == tenantID {
		for i := range o.Lines {
			if o.Lines[i].ID == line.ID {
				o.Lines[i].ShippedQty = line.ShippedQty
				o.Lines[i].IssueCost = line.IssueCost
				return nil
			}
		}
	}
	return shared.NewNotFound("sales order line", line.ID)
}

// procurement

func (tx *memoryTx) InsertPO(ctx context.Context, po procurement.PurchaseOrder) error {
	if err := tx.store.checkFault("procurement.InsertPO"); err != nil {
		return err
	}
	po.Lines = append([]procurement.POLine(nil), po.Lines...)
	tx.state.pos[po.ID] = po
	return nil
}

func (tx *memoryTx) GetPO(ctx context.Context, tenantID, poID uuid.UUID) (procurement.PurchaseOrder, error) {
	po, ok := tx.state.pos[poID]
	if !ok || po.TenantID != tenantID {
		return procurement.PurchaseOrder{}, shared.NewNotFound("purchase order", poID)
	}
	po.Lines = append([]procurement.POLine(nil), po.Lines...)
	return po, nil
}

func (tx *memoryTx) GetPOForUpdate(ctx context.Context, tenantID, poID uuid.UUID) (procurement.PurchaseOrder, error) {
	return tx.GetPO(ctx, tenantID, poID)
}

func (tx *memoryTx) UpdatePO(ctx context.Context, po procurement.PurchaseOrder) error {
	if err := tx.store.checkFault("procurement.UpdatePO"); err != nil {
		return err
	}
	stored, err := tx.GetPO(ctx, po.TenantID, po.ID)
	if err != nil {
		return err
	}
	stored.Status = po.Status
	stored.ReceivedAmount = po.ReceivedAmount
	stored.PaidAmount = po.PaidAmount
	stored.UpdatedAt = po.UpdatedAt
	tx.state.pos[po.ID] = stored
	return nil
}

func (tx *memoryTx) UpdateLineReceived(ctx context.Context, tenantID uuid.UUID, line procurement.POLine) error {
	if err := tx.store.checkFault("procurement.UpdateLineReceived"); err != nil {
		return err
	}
	po, ok := tx.state.pos[line.OrderID]
	if ok && po.TenantID == tenantID {
		for i := range po.Lines {
			if po.Lines[i].ID == line.ID {
				po.Lines[i].ReceivedQty = line.ReceivedQty
				return nil
			}
		}
	}
	return shared.NewNotFound("purchase order line", line.ID)
}

// payments

func (tx *memoryTx) InsertPayment(ctx context.Context, p payments.Payment) error {
	if err := tx.store.checkFault("payments.InsertPayment"); err != nil {
		return err
	}
	for _, existing := range tx.state.payments {
		if existing.TenantID == p.TenantID && existing.Number == p.Number {
			return &shared.ConcurrencyConflictError{Resource: "payments", Reason: "unique constraint uq_payments_number"}
		}
	}
	p.Amount = shared.RoundMoney(p.Amount)
	tx.state.payments = append(tx.state.payments, p)
	return nil
}

func (tx *memoryTx) AttachEntry(ctx context.Context, tenantID, paymentID, entryID uuid.UUID) error {
	for i := range tx.state.payments {
		if tx.state.payments[i].ID == paymentID && tx.state.payments[i].TenantID == tenantID {
			tx.state.payments[i].EntryID = entryID
			return nil
		}
	}
	return shared.NewNotFound("payment", paymentID)
}

func (tx *memoryTx) ListByOrder(ctx context.Context, tenantID uuid.UUID, orderType string, orderID uuid.UUID) ([]payments.Payment, error) {
	var out []payments.Payment
	for _, p := range tx.state.payments {
		if p.TenantID == tenantID && p.OrderType == orderType && p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out, nil
}

// audit

func (tx *memoryTx) InsertEntry(ctx context.Context, entry audit.Entry) error {
	if err := tx.store.checkFault("audit.InsertEntry"); err != nil {
		return err
	}
	tx.state.audit = append(tx.state.audit, entry)
	return nil
}

func (tx *memoryTx) ListTimeline(ctx context.Context, tenantID uuid.UUID, q audit.TimelineQuery) ([]audit.Entry, error) {
	var out []audit.Entry
	for i := len(tx.state.audit) - 1; i >= 0; i-- {
		if e := tx.state.audit[i]; e.TenantID == tenantID && q.Matches(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	if q.Offset >= len(out) {
		return nil, nil
	}
	out = out[q.Offset:]
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (tx *memoryTx) ListEntries(ctx context.Context, tenantID uuid.UUID, entityType, entityID string) ([]audit.Entry, error) {
	var out []audit.Entry
	for _, e := range tx.state.audit {
		if e.TenantID == tenantID && e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}
