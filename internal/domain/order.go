package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order represents a user-created trading order.
// Monetary values are decimal to keep wallet math exact.
type Order struct {
	ID          string          `json:"id"`
	Pair        string          `json:"pair"`        // e.g., "BTC/USDT"
	Type        string          `json:"type"`        // "Limit", "Market"
	Side        string          `json:"side"`        // "Buy", "Sell"
	LimitPrice  decimal.Decimal `json:"limit_price"` // For Market orders: last known price at placement
	Amount      decimal.Decimal `json:"amount"`      // Base asset quantity
	FillPercent int             `json:"fill_percent"`
	Status      string          `json:"status"` // "Open", "Filled", "Canceled"
	CreatedAt   time.Time       `json:"created_at"`
}

const (
	SideBuy  = "Buy"
	SideSell = "Sell"

	OrderTypeLimit  = "Limit"
	OrderTypeMarket = "Market"

	OrderStatusOpen     = "Open"
	OrderStatusFilled   = "Filled"
	OrderStatusCanceled = "Canceled"
)

// IsOpen checks if the order is still resting. Filled and Canceled are
// terminal: once non-Open an order is never mutated again.
func (o *Order) IsOpen() bool {
	return o.Status == OrderStatusOpen
}

// Cost returns the quote-asset value locked by the order
// (limit price * amount).
func (o *Order) Cost() decimal.Decimal {
	return o.LimitPrice.Mul(o.Amount)
}

// Crosses reports whether the order would fill at the given price:
// a Buy fills when the price drops to or below its limit, a Sell fills
// when the price rises to or above it.
func (o *Order) Crosses(price decimal.Decimal) bool {
	switch o.Side {
	case SideBuy:
		return price.LessThanOrEqual(o.LimitPrice)
	case SideSell:
		return price.GreaterThanOrEqual(o.LimitPrice)
	default:
		return false
	}
}
