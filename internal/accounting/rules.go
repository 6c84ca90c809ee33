package accounting

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgercore/ledgercore/internal/shared"
)

// Account mapping keys used by the posting rules.
const (
	KeySalesReceivable   = "sales.receivable"
	KeySalesRevenue      = "sales.revenue"
	KeySalesTax          = "sales.tax"
	KeyPurchaseInventory = "purchase.inventory"
	KeyPurchaseTax       = "purchase.tax"
	KeyPurchasePayable   = "purchase.payable"
	KeyCashBank          = "cash.bank"
	KeyInventoryAsset    = "inventory.asset"
	KeyInventoryGain     = "inventory.gain"
	KeyInventoryLoss     = "inventory.loss"
	KeyCostOfSales       = "cogs.expense"
)

// MappingKeys lists every key a tenant needs mapped before posting.
var MappingKeys = []string{
	KeySalesReceivable, KeySalesRevenue, KeySalesTax,
	KeyPurchaseInventory, KeyPurchaseTax, KeyPurchasePayable,
	KeyCashBank, KeyInventoryAsset, KeyInventoryGain, KeyInventoryLoss, KeyCostOfSales,
}

func knownMappingKey(key string) bool {
	for _, k := range MappingKeys {
		if k == key {
			return true
		}
	}
	return false
}

// MappingResolver resolves mapping keys to accounts.
type MappingResolver interface {
	ResolveMapping(ctx context.Context, tenantID uuid.UUID, key string) (uuid.UUID, error)
}

// Rules turns business events into posting lines using the tenant's mappings.
type Rules struct {
	resolver MappingResolver
	tenantID uuid.UUID
}

// NewRules binds the rules to a tenant.
func NewRules(resolver MappingResolver, tenantID uuid.UUID) *Rules {
	return &Rules{resolver: resolver, tenantID: tenantID}
}

func (r *Rules) account(ctx context.Context, key string) (uuid.UUID, error) {
	id, err := r.resolver.ResolveMapping(ctx, r.tenantID, key)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s", err, key)
	}
	return id, nil
}

// SaleAmounts carries the aggregated effect of a confirmed sales order.
type SaleAmounts struct {
	Net   decimal.Decimal
	Tax   decimal.Decimal
	Total decimal.Decimal
	Cost  decimal.Decimal
}

// Sale debits receivable for the total and credits revenue and output tax.
// When withCost is set the cost of goods sold is moved out of inventory in
// the same entry. Zero amounts produce no lines, so a sale with no value and
// no posted cost yields nil.
func (r *Rules) Sale(ctx context.Context, amounts SaleAmounts, withCost bool) ([]PostingLine, error) {
	var lines []PostingLine
	if shared.RoundMoney(amounts.Total).IsPositive() {
		receivable, err := r.account(ctx, KeySalesReceivable)
		if err != nil {
			return nil, err
		}
		lines = append(lines, Debit(receivable, amounts.Total, "Accounts receivable"))
	}
	if shared.RoundMoney(amounts.Net).IsPositive() {
		revenue, err := r.account(ctx, KeySalesRevenue)
		if err != nil {
			return nil, err
		}
		lines = append(lines, Credit(revenue, amounts.Net, "Sales revenue"))
	}
	if shared.RoundMoney(amounts.Tax).IsPositive() {
		tax, err := r.account(ctx, KeySalesTax)
		if err != nil {
			return nil, err
		}
		lines = append(lines, Credit(tax, amounts.Tax, "Output VAT"))
	}
	if withCost && shared.RoundMoney(amounts.Cost).IsPositive() {
		cogs, err := r.account(ctx, KeyCostOfSales)
		if err != nil {
			return nil, err
		}
		inventory, err := r.account(ctx, KeyInventoryAsset)
		if err != nil {
			return nil, err
		}
		lines = append(lines,
			Debit(cogs, amounts.Cost, "Cost of goods sold"),
			Credit(inventory, amounts.Cost, "Inventory issued"),
		)
	}
	return lines, nil
}

// GoodsReceipt debits inventory and input tax against payable.
func (r *Rules) GoodsReceipt(ctx context.Context, net, tax decimal.Decimal) ([]PostingLine, error) {
	inventory, err := r.account(ctx, KeyPurchaseInventory)
	if err != nil {
		return nil, err
	}
	payable, err := r.account(ctx, KeyPurchasePayable)
	if err != nil {
		return nil, err
	}
	lines := []PostingLine{Debit(inventory, net, "Inventory received")}
	if shared.RoundMoney(tax).IsPositive() {
		input, err := r.account(ctx, KeyPurchaseTax)
		if err != nil {
			return nil, err
		}
		lines = append(lines, Debit(input, tax, "Input VAT"))
	}
	return append(lines, Credit(payable, shared.SumMoney(net, tax), "Accounts payable")), nil
}

// CustomerPayment moves a receipt from receivable to bank.
func (r *Rules) CustomerPayment(ctx context.Context, amount decimal.Decimal) ([]PostingLine, error) {
	bank, err := r.account(ctx, KeyCashBank)
	if err != nil {
		return nil, err
	}
	receivable, err := r.account(ctx, KeySalesReceivable)
	if err != nil {
		return nil, err
	}
	return []PostingLine{
		Debit(bank, amount, "Customer payment"),
		Credit(receivable, amount, "Accounts receivable"),
	}, nil
}

// SupplierPayment settles payable from bank.
func (r *Rules) SupplierPayment(ctx context.Context, amount decimal.Decimal) ([]PostingLine, error) {
	payable, err := r.account(ctx, KeyPurchasePayable)
	if err != nil {
		return nil, err
	}
	bank, err := r.account(ctx, KeyCashBank)
	if err != nil {
		return nil, err
	}
	return []PostingLine{
		Debit(payable, amount, "Accounts payable"),
		Credit(bank, amount, "Supplier payment"),
	}, nil
}

// StockAdjustment books a positive value as gain and a negative one as loss.
// A zero value yields no lines.
func (r *Rules) StockAdjustment(ctx context.Context, value decimal.Decimal) ([]PostingLine, error) {
	value = shared.RoundMoney(value)
	if value.IsZero() {
		return nil, nil
	}
	inventory, err := r.account(ctx, KeyInventoryAsset)
	if err != nil {
		return nil, err
	}
	if value.IsPositive() {
		gain, err := r.account(ctx, KeyInventoryGain)
		if err != nil {
			return nil, err
		}
		return []PostingLine{
			Debit(inventory, value, "Inventory adjustment"),
			Credit(gain, value, "Inventory gain"),
		}, nil
	}
	loss, err := r.account(ctx, KeyInventoryLoss)
	if err != nil {
		return nil, err
	}
	return []PostingLine{
		Debit(loss, value.Neg(), "Inventory loss"),
		Credit(inventory, value.Neg(), "Inventory adjustment"),
	}, nil
}
