package coordinator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgercore/ledgercore/internal/accounting"
	"github.com/ledgercore/ledgercore/internal/audit"
	"github.com/ledgercore/ledgercore/internal/inventory"
	"github.com/ledgercore/ledgercore/internal/numbering"
	"github.com/ledgercore/ledgercore/internal/payments"
	"github.com/ledgercore/ledgercore/internal/sales"
	"github.com/ledgercore/ledgercore/internal/shared"
)

const entitySalesOrder = "SalesOrder"

// CreateSalesOrder prices the lines and stores a numbered Draft order.
func (c *Coordinator) CreateSalesOrder(ctx context.Context, cmd CreateSalesOrder) (sales.Order, error) {
	var order sales.Order
	err := c.execute(ctx, "CreateSalesOrder", func(r *run) error {
		if err := r.begin(cmd, cmd.Actor); err != nil {
			return err
		}
		found, err := c.directory.CustomerExists(r.ctx, cmd.TenantID, cmd.CustomerID)
		if err != nil {
			return err
		}
		if !found {
			return shared.NewNotFound("customer", cmd.CustomerID)
		}
		currency, err := r.currency(cmd.TenantID, cmd.Currency)
		if err != nil {
			return err
		}
		lines, err := r.salesLines(cmd.TenantID, cmd.Lines)
		if err != nil {
			return err
		}
		draft, err := sales.NewDraftOrder(sales.CreateOrderInput{
			TenantID:   cmd.TenantID,
			CustomerID: cmd.CustomerID,
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
		if draft.Number, err = c.numbers.Next(r.ctx, r.scope.Sequences, cmd.TenantID, numbering.KindSalesOrder); err != nil {
			return err
		}

		if err := r.enter(StepMutating); err != nil {
			return err
		}
		if err := r.scope.Sales.InsertOrder(r.ctx, draft); err != nil {
			return err
		}
		order = draft
		return r.record(auditEntry(cmd.Actor, "sales_order.created", entitySalesOrder, order.ID, map[string]any{
			"number": order.Number,
			"total":  money(order.Total),
			"lines":  len(order.Lines),
		}))
	})
	if err != nil {
		return sales.Order{}, err
	}
	return order, nil
}

// ConfirmSalesOrder issues stock for every line and posts the sale entry.
// Stock is checked for all lines before anything moves.
func (c *Coordinator) ConfirmSalesOrder(ctx context.Context, cmd ConfirmSalesOrder) (sales.Order, error) {
	var order sales.Order
	err := c.execute(ctx, "ConfirmSalesOrder", func(r *run) error {
		if err := r.begin(cmd, cmd.Actor); err != nil {
			return err
		}
		o, err := r.scope.Sales.GetOrderForUpdate(r.ctx, cmd.TenantID, cmd.OrderID)
		if err != nil {
			return err
		}
		if err := o.TransitionTo(sales.StatusConfirmed); err != nil {
			return err
		}
		if err := r.checkStock(o); err != nil {
			return err
		}

		if err := r.enter(StepMutating); err != nil {
			return err
		}
		now := c.now()
		cost := decimal.Zero
		for i := range o.Lines {
			line := &o.Lines[i]
			res, err := c.mutator.Adjust(r.ctx, r.scope.Stock, inventory.AdjustInput{
				TenantID: cmd.TenantID,
				ItemID:   line.ItemID,
				Delta:    line.Quantity.Neg(),
				Type:     inventory.TransactionTypeSale,
				RefType:  accounting.SourceSalesOrder,
				RefID:    o.ID,
				Reason:   fmt.Sprintf("Sales order %s line %d", o.Number, line.LineNo),
				ActorID:  cmd.ActorID,
				At:       now,
			})
			if err != nil {
				return err
			}
			line.IssueCost = res.CostAmount
			cost = cost.Add(res.CostAmount)
			if err := r.scope.Sales.UpdateLineProgress(r.ctx, cmd.TenantID, *line); err != nil {
				return err
			}
		}

		if err := r.enter(StepPosting); err != nil {
			return err
		}
		lines, err := accounting.NewRules(r.scope.Ledger, cmd.TenantID).Sale(r.ctx, accounting.SaleAmounts{
			Net:   o.Subtotal,
			Tax:   o.Tax,
			Total: o.Total,
			Cost:  shared.RoundMoney(cost),
		}, c.cfg.PostCostOfSales)
		if err != nil {
			return err
		}
		detail := map[string]any{
			"number":     o.Number,
			"total":      money(o.Total),
			"issue_cost": money(cost),
		}
		if len(lines) > 0 {
			entry, err := c.poster.Post(r.ctx, r.scope.Ledger, r.scope.Sequences, accounting.PostingInput{
				TenantID:   cmd.TenantID,
				SourceType: accounting.SourceSalesOrder,
				SourceID:   o.ID,
				Date:       now,
				Memo:       "Sales order " + o.Number,
				ActorID:    cmd.ActorID,
				Lines:      lines,
			})
			if err != nil {
				return err
			}
			o.EntryID = entry.ID
			detail["entry"] = entry.Number
		}
		o.UpdatedAt = now
		if err := r.scope.Sales.UpdateOrder(r.ctx, o); err != nil {
			return err
		}
		order = o
		return r.record(auditEntry(cmd.Actor, "sales_order.confirmed", entitySalesOrder, o.ID, detail))
	})
	if err != nil {
		return sales.Order{}, err
	}
	return order, nil
}

// checkStock verifies every item of the order has enough stock, summing
// lines that repeat an item.
func (r *run) checkStock(o sales.Order) error {
	need := make(map[uuid.UUID]decimal.Decimal, len(o.Lines))
	var items []uuid.UUID
	for _, l := range o.Lines {
		if _, seen := need[l.ItemID]; !seen {
			items = append(items, l.ItemID)
		}
		need[l.ItemID] = need[l.ItemID].Add(l.Quantity)
	}
	for _, id := range items {
		item, err := r.scope.Stock.GetItemForUpdate(r.ctx, o.TenantID, id)
		if err != nil {
			return err
		}
		if item.StockQty.LessThan(need[id]) {
			return &shared.InsufficientStockError{ItemID: id, SKU: item.SKU, Available: item.StockQty, Requested: need[id]}
		}
	}
	return nil
}

// ShipSalesOrder raises shipped counters of a confirmed order.
func (c *Coordinator) ShipSalesOrder(ctx context.Context, cmd ShipSalesOrder) (sales.Order, error) {
	var order sales.Order
	err := c.execute(ctx, "ShipSalesOrder", func(r *run) error {
		if err := r.begin(cmd, cmd.Actor); err != nil {
			return err
		}
		o, err := r.scope.Sales.GetOrderForUpdate(r.ctx, cmd.TenantID, cmd.OrderID)
		if err != nil {
			return err
		}
		before := make(map[uuid.UUID]decimal.Decimal, len(o.Lines))
		for _, l := range o.Lines {
			before[l.ID] = l.ShippedQty
		}
		if err := o.Ship(cmd.Lines); err != nil {
			return err
		}

		if err := r.enter(StepMutating); err != nil {
			return err
		}
		for _, l := range o.Lines {
			if l.ShippedQty.Equal(before[l.ID]) {
				continue
			}
			if err := r.scope.Sales.UpdateLineProgress(r.ctx, cmd.TenantID, l); err != nil {
				return err
			}
		}
		o.UpdatedAt = c.now()
		if err := r.scope.Sales.UpdateOrder(r.ctx, o); err != nil {
			return err
		}
		order = o
		return r.record(auditEntry(cmd.Actor, "sales_order.shipped", entitySalesOrder, o.ID, map[string]any{
			"number": o.Number,
			"status": string(o.Status),
			"lines":  len(cmd.Lines),
		}))
	})
	if err != nil {
		return sales.Order{}, err
	}
	return order, nil
}

// RecordCustomerPayment stores an inbound payment and moves it from
// receivable to bank.
func (c *Coordinator) RecordCustomerPayment(ctx context.Context, cmd RecordCustomerPayment) (payments.Payment, error) {
	var payment payments.Payment
	err := c.execute(ctx, "RecordCustomerPayment", func(r *run) error {
		if err := r.begin(cmd, cmd.Actor); err != nil {
			return err
		}
		o, err := r.scope.Sales.GetOrderForUpdate(r.ctx, cmd.TenantID, cmd.OrderID)
		if err != nil {
			return err
		}
		if err := o.ApplyPayment(cmd.Amount); err != nil {
			return err
		}
		now := c.now()
		p := payments.Payment{
			ID:        uuid.New(),
			TenantID:  cmd.TenantID,
			Direction: payments.DirectionInbound,
			PartyID:   o.CustomerID,
			OrderType: payments.OrderTypeSales,
			OrderID:   o.ID,
			Amount:    shared.RoundMoney(cmd.Amount),
			Currency:  o.Currency,
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
		o.UpdatedAt = now
		if err := r.scope.Sales.UpdateOrder(r.ctx, o); err != nil {
			return err
		}

		if err := r.enter(StepPosting); err != nil {
			return err
		}
		lines, err := accounting.NewRules(r.scope.Ledger, cmd.TenantID).CustomerPayment(r.ctx, p.Amount)
		if err != nil {
			return err
		}
		entry, err := c.poster.Post(r.ctx, r.scope.Ledger, r.scope.Sequences, accounting.PostingInput{
			TenantID:   cmd.TenantID,
			SourceType: accounting.SourcePayment,
			SourceID:   p.ID,
			Date:       p.PaidAt,
			Memo:       fmt.Sprintf("Payment %s for %s", p.Number, o.Number),
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
		return r.record(auditEntry(cmd.Actor, "sales_order.paid", entitySalesOrder, o.ID, map[string]any{
			"number":  o.Number,
			"payment": p.Number,
			"amount":  money(p.Amount),
			"status":  string(o.Status),
		}))
	})
	if err != nil {
		return payments.Payment{}, err
	}
	return payment, nil
}

// CancelSalesOrder cancels a Draft order, or a Confirmed one with nothing
// shipped or paid. Issued stock returns at its issue cost and the sale
// entry is reversed.
func (c *Coordinator) CancelSalesOrder(ctx context.Context, cmd CancelSalesOrder) (sales.Order, error) {
	var order sales.Order
	err := c.execute(ctx, "CancelSalesOrder", func(r *run) error {
		if err := r.begin(cmd, cmd.Actor); err != nil {
			return err
		}
		o, err := r.scope.Sales.GetOrderForUpdate(r.ctx, cmd.TenantID, cmd.OrderID)
		if err != nil {
			return err
		}
		if !o.Cancellable() {
			return fmt.Errorf("%w: %w: order %s is %s and cannot be cancelled",
				shared.ErrValidation, sales.ErrInvalidStatus, o.Number, o.Status)
		}
		wasConfirmed := o.Status == sales.StatusConfirmed
		if err := o.TransitionTo(sales.StatusCancelled); err != nil {
			return err
		}

		if err := r.enter(StepMutating); err != nil {
			return err
		}
		now := c.now()
		if wasConfirmed {
			for _, l := range o.Lines {
				_, err := c.mutator.Adjust(r.ctx, r.scope.Stock, inventory.AdjustInput{
					TenantID:     cmd.TenantID,
					ItemID:       l.ItemID,
					Delta:        l.Quantity,
					Type:         inventory.TransactionTypeReturn,
					RefType:      accounting.SourceSalesOrder,
					RefID:        o.ID,
					Reason:       fmt.Sprintf("Cancellation of %s line %d", o.Number, l.LineNo),
					UnitCost:     shared.RoundRate(l.IssueCost.Div(l.Quantity)),
					ExplicitCost: true,
					ActorID:      cmd.ActorID,
					At:           now,
				})
				if err != nil {
					return err
				}
			}
		}

		detail := map[string]any{"number": o.Number, "reason": cmd.Reason}
		if o.EntryID != uuid.Nil {
			if err := r.enter(StepPosting); err != nil {
				return err
			}
			reversal, err := c.poster.Reverse(r.ctx, r.scope.Ledger, r.scope.Sequences, accounting.ReverseInput{
				TenantID: cmd.TenantID,
				EntryID:  o.EntryID,
				ActorID:  cmd.ActorID,
				Date:     now,
				Memo:     "Cancellation of " + o.Number,
			})
			if err != nil {
				return err
			}
			detail["reversal"] = reversal.Number
		}
		o.UpdatedAt = now
		if err := r.scope.Sales.UpdateOrder(r.ctx, o); err != nil {
			return err
		}
		order = o
		entry := auditEntry(cmd.Actor, "sales_order.cancelled", entitySalesOrder, o.ID, detail)
		entry.Severity = audit.SeverityWarning
		return r.record(entry)
	})
	if err != nil {
		return sales.Order{}, err
	}
	return order, nil
}
