package coordinator

import (
	"context"

	"github.com/google/uuid"

	"github.com/ledgercore/ledgercore/internal/accounting"
	"github.com/ledgercore/ledgercore/internal/audit"
	"github.com/ledgercore/ledgercore/internal/inventory"
	"github.com/ledgercore/ledgercore/internal/store"
)

const entityItem = "Item"

// StockAdjustment is the outcome of AdjustStock. EntryID is nil when the
// movement had no value to post.
type StockAdjustment struct {
	inventory.Result
	EntryID uuid.UUID
}

// AdjustStock corrects on-hand quantity and books the value difference as
// inventory gain or loss.
func (c *Coordinator) AdjustStock(ctx context.Context, cmd AdjustStock) (StockAdjustment, error) {
	var out StockAdjustment
	err := c.execute(ctx, "AdjustStock", func(r *run) error {
		if err := r.begin(cmd, cmd.Actor); err != nil {
			return err
		}
		if _, err := r.activeItem(cmd.TenantID, cmd.ItemID, "item_id"); err != nil {
			return err
		}

		if err := r.enter(StepMutating); err != nil {
			return err
		}
		res, err := c.mutator.Adjust(r.ctx, r.scope.Stock, inventory.AdjustInput{
			TenantID:      cmd.TenantID,
			ItemID:        cmd.ItemID,
			Delta:         cmd.Delta,
			Type:          inventory.TransactionTypeAdjustment,
			RefType:       accounting.SourceStockAdjustment,
			Reason:        cmd.Reason,
			UnitCost:      cmd.UnitCost,
			ActorID:       cmd.ActorID,
			AllowNegative: c.cfg.AllowNegativeAdjustments,
			At:            c.now(),
		})
		if err != nil {
			return err
		}
		out.Result = res

		value := res.CostAmount
		if cmd.Delta.IsNegative() {
			value = value.Neg()
		}
		lines, err := accounting.NewRules(r.scope.Ledger, cmd.TenantID).StockAdjustment(r.ctx, value)
		if err != nil {
			return err
		}
		detail := map[string]any{
			"sku":    res.Item.SKU,
			"delta":  quantity(cmd.Delta),
			"after":  quantity(res.NewQty),
			"value":  money(value),
			"reason": cmd.Reason,
		}
		if len(lines) > 0 {
			if err := r.enter(StepPosting); err != nil {
				return err
			}
			entry, err := c.poster.Post(r.ctx, r.scope.Ledger, r.scope.Sequences, accounting.PostingInput{
				TenantID:   cmd.TenantID,
				SourceType: accounting.SourceStockAdjustment,
				SourceID:   res.Transaction.ID,
				Date:       res.Transaction.CreatedAt,
				Memo:       "Stock adjustment " + res.Item.SKU + ": " + cmd.Reason,
				ActorID:    cmd.ActorID,
				Lines:      lines,
			})
			if err != nil {
				return err
			}
			out.EntryID = entry.ID
			detail["entry"] = entry.Number
		}
		return r.record(auditEntry(cmd.Actor, "stock.adjusted", entityItem, cmd.ItemID, detail))
	})
	if err != nil {
		return StockAdjustment{}, err
	}
	return out, nil
}

// CreateItem registers a stocked item.
func (c *Coordinator) CreateItem(ctx context.Context, cmd CreateItem) (inventory.Item, error) {
	var item inventory.Item
	err := c.execute(ctx, "CreateItem", func(r *run) error {
		if err := r.begin(cmd, cmd.Actor); err != nil {
			return err
		}
		if err := r.enter(StepMutating); err != nil {
			return err
		}
		created, err := c.mutator.CreateItem(r.ctx, r.scope.Stock, inventory.CreateItemInput{
			TenantID:     cmd.TenantID,
			SKU:          cmd.SKU,
			Name:         cmd.Name,
			UnitPrice:    cmd.UnitPrice,
			UnitCost:     cmd.UnitCost,
			ReorderPoint: cmd.ReorderPoint,
			CostMethod:   cmd.CostMethod,
		})
		if err != nil {
			return err
		}
		item = created
		return r.record(auditEntry(cmd.Actor, "item.created", entityItem, item.ID, map[string]any{
			"sku":         item.SKU,
			"cost_method": string(item.CostMethod),
		}))
	})
	if err != nil {
		return inventory.Item{}, err
	}
	return item, nil
}

// ItemsBelowReorder lists active items at or below their reorder point.
func (c *Coordinator) ItemsBelowReorder(ctx context.Context, tenantID uuid.UUID) ([]inventory.Item, error) {
	var items []inventory.Item
	err := c.read(ctx, "ItemsBelowReorder", func(ctx context.Context, scope store.Scope) error {
		var err error
		items, err = scope.Stock.ListItemsBelowReorder(ctx, tenantID)
		return err
	})
	return items, err
}

// StockCard lists the movements of one item.
func (c *Coordinator) StockCard(ctx context.Context, tenantID, itemID uuid.UUID) ([]inventory.Transaction, error) {
	var card []inventory.Transaction
	err := c.read(ctx, "StockCard", func(ctx context.Context, scope store.Scope) error {
		var err error
		card, err = inventory.StockCard(ctx, scope.Stock, tenantID, itemID)
		return err
	})
	return card, err
}

// ScanReorder lists items at or below their reorder point and leaves a
// warning in the audit trail for each.
func (c *Coordinator) ScanReorder(ctx context.Context, actor Actor) ([]inventory.Item, error) {
	var items []inventory.Item
	err := c.execute(ctx, "ScanReorder", func(r *run) error {
		if err := r.begin(actor, actor); err != nil {
			return err
		}
		low, err := r.scope.Stock.ListItemsBelowReorder(r.ctx, actor.TenantID)
		if err != nil {
			return err
		}
		for _, item := range low {
			entry := auditEntry(actor, "stock.below_reorder", entityItem, item.ID, map[string]any{
				"sku":           item.SKU,
				"on_hand":       quantity(item.StockQty),
				"reorder_point": quantity(item.ReorderPoint),
			})
			entry.Severity = audit.SeverityWarning
			if err := r.record(entry); err != nil {
				return err
			}
		}
		items = low
		return nil
	})
	return items, err
}
