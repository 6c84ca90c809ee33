package coordinator

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ledgercore/ledgercore/internal/accounting"
	"github.com/ledgercore/ledgercore/internal/audit"
	"github.com/ledgercore/ledgercore/internal/inventory"
	"github.com/ledgercore/ledgercore/internal/numbering"
	"github.com/ledgercore/ledgercore/internal/payments"
	"github.com/ledgercore/ledgercore/internal/procurement"
	"github.com/ledgercore/ledgercore/internal/shared"
)

const entityPurchaseOrder = "PurchaseOrder"

// GoodsReceipt is the outcome of receiving against a purchase order.
type GoodsReceipt struct {
	Order   procurement.PurchaseOrder
	Receipt procurement.Receipt
	EntryID uuid.UUID
}

// CreatePurchaseOrder stores a numbered Draft purchase order.
func (c *Coordinator) CreatePurchaseOrder(ctx context.Context, cmd CreatePurchaseOrder) (procurement.PurchaseOrder, error) {
	var po procurement.PurchaseOrder
	err := c.execute(ctx, "CreatePurchaseOrder", func(r *run) error {
		if err := r.begin(cmd, cmd.Actor); err != nil {
			return err
		}
		found, err := c.directory.SupplierExists(r.ctx, cmd.TenantID, cmd.SupplierID)
		if err != nil {
			return err
		}
		if !found {
			return shared.NewNotFound("supplier", cmd.SupplierID)
		}
		currency, err := r.currency(cmd.TenantID, cmd.Currency)
		if err != nil {
			return err
		}
		lines, err := r.purchaseLines(cmd.TenantID, cmd.Lines)
		if err != nil {
			return err
		}
		draft, err := procurement.NewDraftOrder(procurement.CreateOrderInput{
			TenantID:   cmd.TenantID,
			SupplierID: cmd.SupplierID,
			Currency:   currency,
			OrderDate:  cmd.OrderDate,
			Notes:      cmd.Notes,
			ActorID:    cmd.ActorID,
			Lines:      lines,
		}, "", c.now())
		if err != nil {
			return err
		}

		if err := r.enter(StepNumbering); err != nil {
			return err
		}
		if draft.Number, err = c.numbers.Next(r.ctx, r.scope.Sequences, cmd.TenantID, numbering.KindPurchaseOrder); err != nil {
			return err
		}

		if err := r.enter(StepMutating); err != nil {
			return err
		}
		if err := r.scope.Purchases.InsertPO(r.ctx, draft); err != nil {
			return err
		}
		po = draft
		return r.record(auditEntry(cmd.Actor, "purchase_order.created", entityPurchaseOrder, po.ID, map[string]any{
			"number": po.Number,
			"total":  money(po.Total),
			"lines":  len(po.Lines),
		}))
	})
	if err != nil {
		return procurement.PurchaseOrder{}, err
	}
	return po, nil
}

// ConfirmPurchaseOrder commits a Draft order to the supplier.
func (c *Coordinator) ConfirmPurchaseOrder(ctx context.Context, cmd ConfirmPurchaseOrder) (procurement.PurchaseOrder, error) {
	return c.movePurchaseOrder(ctx, "ConfirmPurchaseOrder", cmd.Actor, cmd, cmd.OrderID, "purchase_order.confirmed", "",
		func(po *procurement.PurchaseOrder) error {
			return po.TransitionTo(procurement.StatusConfirmed)
		})
}

// CancelPurchaseOrder cancels an order that has received nothing.
func (c *Coordinator) CancelPurchaseOrder(ctx context.Context, cmd CancelPurchaseOrder) (procurement.PurchaseOrder, error) {
	return c.movePurchaseOrder(ctx, "CancelPurchaseOrder", cmd.Actor, cmd, cmd.OrderID, "purchase_order.cancelled", cmd.Reason,
		func(po *procurement.PurchaseOrder) error {
			if !po.Cancellable() {
				return fmt.Errorf("%w: %w: order %s is %s and cannot be cancelled",
					shared.ErrValidation, procurement.ErrInvalidState, po.Number, po.Status)
			}
			return po.TransitionTo(procurement.StatusCancelled)
		})
}

// movePurchaseOrder runs a status-only change.
func (c *Coordinator) movePurchaseOrder(ctx context.Context, op string, actor Actor, cmd any, orderID uuid.UUID, action, reason string, move func(*procurement.PurchaseOrder) error) (procurement.PurchaseOrder, error) {
	var po procurement.PurchaseOrder
	err := c.execute(ctx, op, func(r *run) error {
		if err := r.begin(cmd, actor); err != nil {
			return err
		}
		o, err := r.scope.Purchases.GetPOForUpdate(r.ctx, actor.TenantID, orderID)
		if err != nil {
			return err
		}
		if err := move(&o); err != nil {
			return err
		}

		if err := r.enter(StepMutating); err != nil {
			return err
		}
		o.UpdatedAt = c.now()
		if err := r.scope.Purchases.UpdatePO(r.ctx, o); err != nil {
			return err
		}
		po = o
		entry := auditEntry(actor, action, entityPurchaseOrder, o.ID, map[string]any{"number": o.Number, "status": string(o.Status)})
		if reason != "" {
			entry.Detail["reason"] = reason
		}
		if o.Status == procurement.StatusCancelled {
			entry.Severity = audit.SeverityWarning
		}
		return r.record(entry)
	})
	if err != nil {
		return procurement.PurchaseOrder{}, err
	}
	return po, nil
}

// ReceivePurchaseOrder books received goods into stock at their landed cost
// and posts the receipt against payable. The receipt id is the entry source.
func (c *Coordinator) ReceivePurchaseOrder(ctx context.Context, cmd ReceivePurchaseOrder) (GoodsReceipt, error) {
	var out GoodsReceipt
	err := c.execute(ctx, "ReceivePurchaseOrder", func(r *run) error {
		if err := r.begin(cmd, cmd.Actor); err != nil {
			return err
		}
		po, err := r.scope.Purchases.GetPOForUpdate(r.ctx, cmd.TenantID, cmd.OrderID)
		if err != nil {
			return err
		}
		receipt, err := po.Receive(cmd.Lines)
		if err != nil {
			return err
		}

		if err := r.enter(StepMutating); err != nil {
			return err
		}
		now := c.now()
		at := cmd.ReceivedAt
		if at.IsZero() {
			at = now
		}
		for _, rl := range receipt.Lines {
			_, err := c.mutator.Adjust(r.ctx, r.scope.Stock, inventory.AdjustInput{
				TenantID: cmd.TenantID,
				ItemID:   rl.Line.ItemID,
				Delta:    rl.Qty,
				Type:     inventory.TransactionTypePurchase,
				RefType:  accounting.SourceGoodsReceipt,
				RefID:    receipt.ID,
				Reason:   fmt.Sprintf("Receipt for %s line %d", po.Number, rl.Line.LineNo),
				UnitCost: rl.LandedUnitCost(),
				ActorID:  cmd.ActorID,
				At:       at,
			})
			if err != nil {
				return err
			}
			if err := r.scope.Purchases.UpdateLineReceived(r.ctx, cmd.TenantID, rl.Line); err != nil {
				return err
			}
		}
		po.UpdatedAt = now
		if err := r.scope.Purchases.UpdatePO(r.ctx, po); err != nil {
			return err
		}

		detail := map[string]any{
			"number":  po.Number,
			"receipt": receipt.ID.String(),
			"total":   money(receipt.Totals.Total),
			"status":  string(po.Status),
		}
		out = GoodsReceipt{Order: po, Receipt: receipt}
		if receipt.Totals.Total.IsPositive() {
			if err := r.enter(StepPosting); err != nil {
				return err
			}
			lines, err := accounting.NewRules(r.scope.Ledger, cmd.TenantID).GoodsReceipt(r.ctx, receipt.Totals.Net, receipt.Totals.Tax)
			if err != nil {
				return err
			}
			entry, err := c.poster.Post(r.ctx, r.scope.Ledger, r.scope.Sequences, accounting.PostingInput{
				TenantID:   cmd.TenantID,
				SourceType: accounting.SourceGoodsReceipt,
				SourceID:   receipt.ID,
				Date:       at,
				Memo:       "Goods receipt for " + po.Number,
				ActorID:    cmd.ActorID,
				Lines:      lines,
			})
			if err != nil {
				return err
			}
			out.EntryID = entry.ID
			detail["entry"] = entry.Number
		}
		return r.record(auditEntry(cmd.Actor, "purchase_order.received", entityPurchaseOrder, po.ID, detail))
	})
	if err != nil {
		return GoodsReceipt{}, err
	}
	return out, nil
}

// PaySupplier stores an outbound payment against received value and settles
// payable from bank.
func (c *Coordinator) PaySupplier(ctx context.Context, cmd PaySupplier) (payments.Payment, error) {
	var payment payments.Payment
	err := c.execute(ctx, "PaySupplier", func(r *run) error {
		if err := r.begin(cmd, cmd.Actor); err != nil {
			return err
		}
		po, err := r.scope.Purchases.GetPOForUpdate(r.ctx, cmd.TenantID, cmd.OrderID)
		if err != nil {
			return err
		}
		if err := po.ApplyPayment(cmd.Amount); err != nil {
			return err
		}
		now := c.now()
		p := payments.Payment{
			ID:        uuid.New(),
			TenantID:  cmd.TenantID,
			Direction: payments.DirectionOutbound,
			PartyID:   po.SupplierID,
			OrderType: payments.OrderTypePurchase,
			OrderID:   po.ID,
			Amount:    shared.RoundMoney(cmd.Amount),
			Currency:  po.Currency,
			Method:    cmd.Method,
			Reference: cmd.Reference,
			PaidAt:    cmd.PaidAt,
			CreatedBy: cmd.ActorID,
			CreatedAt: now,
		}
		if p.PaidAt.IsZero() {
			p.PaidAt = now
		}
		if err := p.Validate(); err != nil {
			return err
		}

		if err := r.enter(StepNumbering); err != nil {
			return err
		}
		if p.Number, err = c.numbers.Next(r.ctx, r.scope.Sequences, cmd.TenantID, numbering.KindPayment); err != nil {
			return err
		}

		if err := r.enter(StepMutating); err != nil {
			return err
		}
		if err := r.scope.Payments.InsertPayment(r.ctx, p); err != nil {
			return err
		}
		po.UpdatedAt = now
		if err := r.scope.Purchases.UpdatePO(r.ctx, po); err != nil {
			return err
		}

		if err := r.enter(StepPosting); err != nil {
			return err
		}
		lines, err := accounting.NewRules(r.scope.Ledger, cmd.TenantID).SupplierPayment(r.ctx, p.Amount)
		if err != nil {
			return err
		}
		entry, err := c.poster.Post(r.ctx, r.scope.Ledger, r.scope.Sequences, accounting.PostingInput{
			TenantID:   cmd.TenantID,
			SourceType: accounting.SourcePayment,
			SourceID:   p.ID,
			Date:       p.PaidAt,
			Memo:       fmt.Sprintf("Payment %s for %s", p.Number, po.Number),
			ActorID:    cmd.ActorID,
			Lines:      lines,
		})
		if err != nil {
			return err
		}
		if err := r.scope.Payments.AttachEntry(r.ctx, cmd.TenantID, p.ID, entry.ID); err != nil {
			return err
		}
		p.EntryID = entry.ID
		payment = p
		return r.record(auditEntry(cmd.Actor, "purchase_order.paid", entityPurchaseOrder, po.ID, map[string]any{
			"number":  po.Number,
			"payment": p.Number,
			"amount":  money(p.Amount),
			"status":  string(po.Status),
		}))
	})
	if err != nil {
		return payments.Payment{}, err
	}
	return payment, nil
}
