package domain

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Balance represents a single asset's wallet entry with invariant
// checking. Total = Available + Reserved must hold at all times.
type Balance struct {
	Asset     string          `json:"asset"`  // Full name (e.g., "Bitcoin")
	Symbol    string          `json:"symbol"` // e.g., "BTC"
	Total     decimal.Decimal `json:"total"`
	Available decimal.Decimal `json:"available"`
	Reserved  decimal.Decimal `json:"reserved"` // Earmarked against open orders
}

// Credit adds funds to the balance (total and available).
func (b *Balance) Credit(amount decimal.Decimal) {
	b.Total = b.Total.Add(amount)
	b.Available = b.Available.Add(amount)
}

// Debit removes available funds. Returns InsufficientFundsError if the
// available balance does not cover the amount.
func (b *Balance) Debit(amount decimal.Decimal) error {
	if b.Available.LessThan(amount) {
		return &InsufficientFundsError{Symbol: b.Symbol, Need: amount, Have: b.Available}
	}
	b.Total = b.Total.Sub(amount)
	b.Available = b.Available.Sub(amount)
	return nil
}

// Reserve locks available funds against an open order.
func (b *Balance) Reserve(amount decimal.Decimal) error {
	if b.Available.LessThan(amount) {
		return &InsufficientFundsError{Symbol: b.Symbol, Need: amount, Have: b.Available}
	}
	b.Available = b.Available.Sub(amount)
	b.Reserved = b.Reserved.Add(amount)
	return nil
}

// Release returns reserved funds to available (order cancellation).
// Panics if the release exceeds the reservation: the caller only ever
// releases what it previously reserved, so this is a programming error.
func (b *Balance) Release(amount decimal.Decimal) {
	if b.Reserved.LessThan(amount) {
		panic(fmt.Sprintf("WALLET_RELEASE_EXCEEDS_RESERVED: %s release %s, reserved %s",
			b.Symbol, amount, b.Reserved))
	}
	b.Reserved = b.Reserved.Sub(amount)
	b.Available = b.Available.Add(amount)
}

// SettleReserved consumes reserved funds on a fill: the amount leaves
// the wallet entirely. Panics if it exceeds the reservation.
func (b *Balance) SettleReserved(amount decimal.Decimal) {
	if b.Reserved.LessThan(amount) {
		panic(fmt.Sprintf("WALLET_SETTLE_EXCEEDS_RESERVED: %s settle %s, reserved %s",
			b.Symbol, amount, b.Reserved))
	}
	b.Reserved = b.Reserved.Sub(amount)
	b.Total = b.Total.Sub(amount)
}

// VerifyInvariant checks that the balance satisfies its invariants.
// Call after any state change; a violation is a programming error.
func (b *Balance) VerifyInvariant() {
	if b.Available.IsNegative() {
		panic(fmt.Sprintf("WALLET_INVARIANT_NEGATIVE_AVAILABLE: %s = %s", b.Symbol, b.Available))
	}
	if b.Reserved.IsNegative() {
		panic(fmt.Sprintf("WALLET_INVARIANT_NEGATIVE_RESERVED: %s = %s", b.Symbol, b.Reserved))
	}
	if !b.Total.Equal(b.Available.Add(b.Reserved)) {
		panic(fmt.Sprintf("WALLET_INVARIANT_TOTAL_MISMATCH: %s total=%s available=%s reserved=%s",
			b.Symbol, b.Total, b.Available, b.Reserved))
	}
}

// Wallet manages per-asset balances with invariant checking.
type Wallet struct {
	balances map[string]*Balance
}

// NewWallet creates an empty wallet.
func NewWallet() *Wallet {
	return &Wallet{balances: make(map[string]*Balance)}
}

// Get returns the balance for a symbol, creating a zero entry if absent.
func (w *Wallet) Get(symbol string) *Balance {
	b, ok := w.balances[symbol]
	if !ok {
		b = &Balance{Symbol: symbol}
		w.balances[symbol] = b
	}
	return b
}

// VerifyAll checks invariants on all balances.
func (w *Wallet) VerifyAll() {
	for _, b := range w.balances {
		b.VerifyInvariant()
	}
}

// Snapshot returns a copy of all balances sorted by symbol.
func (w *Wallet) Snapshot() []Balance {
	result := make([]Balance, 0, len(w.balances))
	for _, b := range w.balances {
		result = append(result, *b)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol < result[j].Symbol
	})
	return result
}

// TotalEquity computes the total portfolio value in the quote currency.
// prices maps base symbol -> current price; assets without a price are
// skipped (conservative).
func (w *Wallet) TotalEquity(prices map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for symbol, b := range w.balances {
		price, ok := prices[symbol]
		if !ok {
			continue
		}
		total = total.Add(b.Total.Mul(price))
	}
	return total
}
