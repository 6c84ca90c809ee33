package sales

import (
	"github.com/shopspring/decimal"

	"github.com/ledgercore/ledgercore/internal/shared"
)

var hundred = decimal.NewFromInt(100)

// LineAmounts is the money breakdown of one order line.
type LineAmounts struct {
	Gross    decimal.Decimal
	Discount decimal.Decimal
	Net      decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// CalculateLineTotals prices one line. discountPercent is 0..100, taxRate a
// fraction (0.17). Every amount is rounded to cents on the line.
func CalculateLineTotals(quantity, unitPrice, discountPercent, taxRate decimal.Decimal) LineAmounts {
	gross := shared.RoundMoney(quantity.Mul(unitPrice))
	discount := shared.RoundMoney(gross.Mul(discountPercent).Div(hundred))
	net := gross.Sub(discount)
	tax := shared.RoundMoney(net.Mul(taxRate))
	return LineAmounts{Gross: gross, Discount: discount, Net: net, Tax: tax, Total: net.Add(tax)}
}

// Add sums two breakdowns.
func (a LineAmounts) Add(b LineAmounts) LineAmounts {
	return LineAmounts{
		Gross:    a.Gross.Add(b.Gross),
		Discount: a.Discount.Add(b.Discount),
		Net:      a.Net.Add(b.Net),
		Tax:      a.Tax.Add(b.Tax),
		Total:    a.Total.Add(b.Total),
	}
}

// ValidateLineTerms checks the shared line inputs of sales and purchase lines.
func ValidateLineTerms(field string, quantity, price, discountPercent, taxRate decimal.Decimal) error {
	switch {
	case !quantity.IsPositive():
		return shared.Invalid(field+".quantity", "must be > 0")
	case price.IsNegative():
		return shared.Invalid(field+".price", "must be >= 0")
	case discountPercent.IsNegative() || discountPercent.GreaterThan(hundred):
		return shared.Invalid(field+".discount_percent", "must be within 0..100")
	case taxRate.IsNegative() || taxRate.GreaterThanOrEqual(decimal.NewFromInt(1)):
		return shared.Invalid(field+".tax_rate", "must be within [0, 1)")
	}
	return nil
}
