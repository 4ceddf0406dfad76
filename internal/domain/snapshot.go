package domain

import "time"

// ChartPoint is one sample of the bounded per-pair price history.
type ChartPoint struct {
	Time  time.Time `json:"time"`
	Price float64   `json:"price"`
}

// MarketSummary is the per-pair row of the market list. Values are kept
// numeric; any display formatting (signs, thousand separators) belongs
// to the UI boundary.
type MarketSummary struct {
	Pair         string  `json:"pair"`
	Price        float64 `json:"price"`
	ChangePct    float64 `json:"change_pct"` // (current - opening) / opening * 100
	OpeningPrice float64 `json:"opening_price"`
}

// IsPositive reports whether the session change is non-negative.
func (m MarketSummary) IsPositive() bool {
	return m.ChangePct >= 0
}

// BookLevel is one synthetic order book level. Levels are regenerated
// from scratch every tick and do not represent resting liquidity.
type BookLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
	Total float64 `json:"total"`
}

// TradePrint is one synthetic trade tape entry.
type TradePrint struct {
	Price float64   `json:"price"`
	Size  float64   `json:"size"`
	Time  time.Time `json:"time"`
	Side  string    `json:"side"` // SideBuy or SideSell
}

// ActivePairDetail is the detailed view generated for the designated
// active pair: ladders, tape, chart series and window high/low.
type ActivePairDetail struct {
	Pair      string       `json:"pair"`
	Price     float64      `json:"price"`
	ChangePct float64      `json:"change_pct"`
	High      float64      `json:"high"` // Max over the current history window
	Low       float64      `json:"low"`  // Min over the current history window
	Volume    float64      `json:"volume"`
	ChartData []ChartPoint `json:"chart_data"`
	Bids      []BookLevel  `json:"bids"`
	Asks      []BookLevel  `json:"asks"`
	Trades    []TradePrint `json:"trades"`
}

// MarketSnapshot is the complete derived market view produced by one
// tick. It is immutable once emitted; subscribers hold read-only copies.
type MarketSnapshot struct {
	Markets []MarketSummary   `json:"markets"`
	Active  *ActivePairDetail `json:"active,omitempty"`
}
