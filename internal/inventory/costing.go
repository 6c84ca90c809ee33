package inventory

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ledgercore/ledgercore/internal/shared"
)

// consumption is the effect of issuing stock against open layers.
type consumption struct {
	updated []CostLayer
	cost    decimal.Decimal
}

// orderLayers sorts open layers in consumption order for the method. Average
// consumes oldest first so the layers keep matching the on-hand quantity.
func orderLayers(method CostMethod, layers []CostLayer) []CostLayer {
	out := append([]CostLayer(nil), layers...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.ReceivedAt.Equal(b.ReceivedAt) {
			if method == CostMethodLIFO {
				return a.ReceivedAt.After(b.ReceivedAt)
			}
			return a.ReceivedAt.Before(b.ReceivedAt)
		}
		if method == CostMethodLIFO {
			return a.Seq > b.Seq
		}
		return a.Seq < b.Seq
	})
	return out
}

// consume issues qty against layers. Quantity beyond the open layers is valued
// at fallbackCost; that only happens when negative stock is allowed.
func consume(method CostMethod, layers []CostLayer, qty, avgCost, fallbackCost decimal.Decimal) consumption {
	remaining := qty
	layerCost := decimal.Zero
	var updated []CostLayer
	for _, layer := range orderLayers(method, layers) {
		if !remaining.IsPositive() {
			break
		}
		if !layer.Remaining.IsPositive() {
			continue
		}
		take := decimal.Min(layer.Remaining, remaining)
		layer.Remaining = shared.RoundQuantity(layer.Remaining.Sub(take))
		remaining = remaining.Sub(take)
		layerCost = layerCost.Add(take.Mul(layer.UnitCost))
		updated = append(updated, layer)
	}
	if method == CostMethodAverage {
		return consumption{updated: updated, cost: shared.RoundMoney(qty.Mul(avgCost))}
	}
	if remaining.IsPositive() {
		layerCost = layerCost.Add(remaining.Mul(fallbackCost))
	}
	return consumption{updated: updated, cost: shared.RoundMoney(layerCost)}
}

// movingAverage returns the average unit cost after receiving qty at unitCost.
func movingAverage(onHand, avgCost, qty, unitCost decimal.Decimal) decimal.Decimal {
	newQty := onHand.Add(qty)
	if !onHand.IsPositive() || !newQty.IsPositive() {
		return shared.RoundRate(unitCost)
	}
	total := onHand.Mul(avgCost).Add(qty.Mul(unitCost))
	return shared.RoundRate(total.Div(newQty))
}
