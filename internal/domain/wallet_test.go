package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestBalance_ReserveRelease_RoundTrip(t *testing.T) {
	b := &Balance{Symbol: "USDT"}
	b.Credit(d("10000"))

	if err := b.Reserve(d("6700")); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if !b.Available.Equal(d("3300")) {
		t.Errorf("Expected available 3300, got %s", b.Available)
	}
	if !b.Reserved.Equal(d("6700")) {
		t.Errorf("Expected reserved 6700, got %s", b.Reserved)
	}
	b.VerifyInvariant()

	// Releasing the exact reservation restores the starting state
	b.Release(d("6700"))
	if !b.Available.Equal(d("10000")) || !b.Reserved.IsZero() {
		t.Errorf("Round trip failed: available=%s reserved=%s", b.Available, b.Reserved)
	}
	b.VerifyInvariant()
}

func TestBalance_Reserve_Insufficient(t *testing.T) {
	b := &Balance{Symbol: "BTC"}
	b.Credit(d("0.1"))

	err := b.Reserve(d("0.5"))
	if err == nil {
		t.Fatal("Expected error for insufficient balance, got nil")
	}
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("Expected ErrInsufficientFunds, got %v", err)
	}

	var ife *InsufficientFundsError
	if !errors.As(err, &ife) {
		t.Fatalf("Expected InsufficientFundsError, got %T", err)
	}
	if ife.Symbol != "BTC" {
		t.Errorf("Expected symbol BTC, got %s", ife.Symbol)
	}
	if !ife.Need.Equal(d("0.5")) || !ife.Have.Equal(d("0.1")) {
		t.Errorf("Expected need 0.5 have 0.1, got need %s have %s", ife.Need, ife.Have)
	}
}

func TestBalance_SettleReserved(t *testing.T) {
	b := &Balance{Symbol: "USDT"}
	b.Credit(d("10000"))
	if err := b.Reserve(d("6700")); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	b.SettleReserved(d("6700"))
	if !b.Total.Equal(d("3300")) {
		t.Errorf("Expected total 3300, got %s", b.Total)
	}
	if !b.Reserved.IsZero() {
		t.Errorf("Expected reserved 0, got %s", b.Reserved)
	}
	b.VerifyInvariant()
}

func TestBalance_SettleExceedsReserved_Panics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic when settling more than reserved")
		}
	}()

	b := &Balance{Symbol: "USDT"}
	b.Credit(d("100"))
	b.SettleReserved(d("1"))
}

func TestBalance_VerifyInvariant_Mismatch(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic on total mismatch")
		}
	}()

	b := &Balance{Symbol: "BTC", Total: d("2"), Available: d("0.5"), Reserved: d("1")}
	b.VerifyInvariant()
}

func TestWallet_GetCreatesZeroEntry(t *testing.T) {
	w := NewWallet()

	b := w.Get("ADA")
	if b.Symbol != "ADA" {
		t.Errorf("Expected symbol ADA, got %s", b.Symbol)
	}
	if !b.Total.IsZero() {
		t.Errorf("Expected zero total, got %s", b.Total)
	}

	// Same entry on repeated Get
	b.Credit(d("5"))
	if !w.Get("ADA").Total.Equal(d("5")) {
		t.Error("Get should return the same entry")
	}
}

func TestWallet_Snapshot_Sorted(t *testing.T) {
	w := NewWallet()
	w.Get("XRP").Credit(d("1"))
	w.Get("BTC").Credit(d("1"))
	w.Get("ETH").Credit(d("1"))

	snap := w.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(snap))
	}
	if snap[0].Symbol != "BTC" || snap[1].Symbol != "ETH" || snap[2].Symbol != "XRP" {
		t.Errorf("Not sorted: %s, %s, %s", snap[0].Symbol, snap[1].Symbol, snap[2].Symbol)
	}
}

func TestWallet_TotalEquity(t *testing.T) {
	w := NewWallet()
	w.Get("BTC").Credit(d("0.5"))
	w.Get("USDT").Credit(d("1000"))
	w.Get("MYSTERY").Credit(d("42")) // no price: skipped

	prices := map[string]decimal.Decimal{
		"BTC":  d("50000"),
		"USDT": d("1"),
	}

	equity := w.TotalEquity(prices)
	if !equity.Equal(d("26000")) {
		t.Errorf("Expected equity 26000, got %s", equity)
	}
}
