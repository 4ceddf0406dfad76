package execution

import (
	"github.com/shopspring/decimal"

	"gem_exchange/internal/domain"
)

// BalanceDelta describes one signed balance mutation produced by a fill
// settlement. Deltas of a single fill are applied atomically by the
// caller.
type BalanceDelta struct {
	Symbol    string
	Total     decimal.Decimal
	Available decimal.Decimal
	Reserved  decimal.Decimal
}

// Fill pairs a crossed order with the wallet deltas of its settlement.
// The embedded order copy already carries the Filled status.
type Fill struct {
	Order  domain.Order
	Deltas []BalanceDelta
}

// Reconcile determines which of the given open orders cross the new
// price and computes the resulting wallet deltas. Orders are evaluated
// independently, in list order: this is not an order book, so there is
// no time priority and no partial fill. An order fills completely and
// atomically at its original limit price (no price improvement).
//
// The input must already be filtered to Open orders of the priced pair;
// terminal orders are never reconsidered.
func Reconcile(price decimal.Decimal, open []domain.Order) []Fill {
	var fills []Fill
	for _, o := range open {
		if !o.IsOpen() || !o.Crosses(price) {
			continue
		}
		filled := o
		filled.Status = domain.OrderStatusFilled
		filled.FillPercent = 100
		fills = append(fills, Fill{
			Order:  filled,
			Deltas: settlementDeltas(filled),
		})
	}
	return fills
}

// settlementDeltas reverses exactly the reservation made at placement,
// at the order's limit price. Buy: the reserved quote cost leaves the
// wallet and the base amount arrives; Sell is symmetric.
func settlementDeltas(o domain.Order) []BalanceDelta {
	base, quote, ok := domain.SplitPair(o.Pair)
	if !ok {
		// Orders are validated at placement; an unsplittable pair here
		// is a programming error.
		panic("RECONCILE_BAD_PAIR: " + o.Pair)
	}

	cost := o.Cost()
	if o.Side == domain.SideBuy {
		return []BalanceDelta{
			{Symbol: quote, Total: cost.Neg(), Reserved: cost.Neg()},
			{Symbol: base, Total: o.Amount, Available: o.Amount},
		}
	}
	return []BalanceDelta{
		{Symbol: base, Total: o.Amount.Neg(), Reserved: o.Amount.Neg()},
		{Symbol: quote, Total: cost, Available: cost},
	}
}
