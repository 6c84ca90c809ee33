package coordinator

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgercore/ledgercore/internal/audit"
	"github.com/ledgercore/ledgercore/internal/inventory"
	"github.com/ledgercore/ledgercore/internal/procurement"
	"github.com/ledgercore/ledgercore/internal/sales"
	"github.com/ledgercore/ledgercore/internal/shared"
)

// begin validates cmd and the tenant it names.
func (r *run) begin(cmd any, actor Actor) error {
	if err := r.c.check(cmd); err != nil {
		return err
	}
	ok, err := r.c.directory.TenantExists(r.ctx, actor.TenantID)
	if err != nil {
		return err
	}
	if !ok {
		return shared.NewNotFound("tenant", actor.TenantID)
	}
	return nil
}

func (r *run) currency(tenantID uuid.UUID, given string) (string, error) {
	if strings.TrimSpace(given) != "" {
		return given, nil
	}
	return r.c.directory.DefaultCurrency(r.ctx, tenantID)
}

func (c *Coordinator) taxRate(rate *decimal.Decimal) decimal.Decimal {
	if rate == nil {
		return c.cfg.DefaultTaxRate
	}
	return *rate
}

// activeItem loads an item that can still be traded.
func (r *run) activeItem(tenantID, itemID uuid.UUID, field string) (inventory.Item, error) {
	item, err := r.scope.Stock.GetItem(r.ctx, tenantID, itemID)
	if err != nil {
		return inventory.Item{}, err
	}
	if !item.IsActive {
		return inventory.Item{}, shared.Invalid(field, "item %s is inactive", item.SKU)
	}
	return item, nil
}

func (r *run) salesLines(tenantID uuid.UUID, lines []OrderLine) ([]sales.LineInput, error) {
	out := make([]sales.LineInput, 0, len(lines))
	for i, l := range lines {
		if _, err := r.activeItem(tenantID, l.ItemID, fmt.Sprintf("lines[%d].item_id", i)); err != nil {
			return nil, err
		}
		price := l.UnitPrice
		if price.IsZero() {
			var err error
			if price, err = r.c.directory.ItemUnitPrice(r.ctx, tenantID, l.ItemID); err != nil {
				return nil, err
			}
		}
		out = append(out, sales.LineInput{
			ItemID:          l.ItemID,
			Quantity:        l.Quantity,
			UnitPrice:       price,
			DiscountPercent: l.DiscountPercent,
			TaxRate:         r.c.taxRate(l.TaxRate),
		})
	}
	return out, nil
}

func (r *run) purchaseLines(tenantID uuid.UUID, lines []OrderLine) ([]procurement.LineInput, error) {
	out := make([]procurement.LineInput, 0, len(lines))
	for i, l := range lines {
		if _, err := r.activeItem(tenantID, l.ItemID, fmt.Sprintf("lines[%d].item_id", i)); err != nil {
			return nil, err
		}
		cost := l.UnitPrice
		if cost.IsZero() {
			var err error
			if cost, err = r.c.directory.ItemUnitCost(r.ctx, tenantID, l.ItemID); err != nil {
				return nil, err
			}
		}
		out = append(out, procurement.LineInput{
			ItemID:          l.ItemID,
			Quantity:        l.Quantity,
			UnitCost:        cost,
			DiscountPercent: l.DiscountPercent,
			TaxRate:         r.c.taxRate(l.TaxRate),
		})
	}
	return out, nil
}

// auditEntry fills the common fields of an audit record.
func auditEntry(actor Actor, action, entityType string, entityID uuid.UUID, detail map[string]any) audit.Entry {
	return audit.Entry{
		TenantID:   actor.TenantID,
		ActorID:    actor.ActorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID.String(),
		Detail:     detail,
		Severity:   audit.SeverityInfo,
	}
}

func money(d decimal.Decimal) string {
	return d.StringFixed(shared.MoneyPlaces)
}

func quantity(d decimal.Decimal) string {
	return d.StringFixed(shared.QuantityPlaces)
}
