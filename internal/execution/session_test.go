package execution

import (
	"errors"
	"testing"

	"gem_exchange/internal/domain"
)

func newTestSession(t *testing.T) (*Session, *[]domain.Notification) {
	t.Helper()

	wallet := domain.NewWallet()
	wallet.Get("USDT").Credit(d("15000"))
	wallet.Get("BTC").Credit(d("0.75"))

	var notes []domain.Notification
	s := NewSession(wallet, func(n domain.Notification) {
		notes = append(notes, n)
	})
	return s, &notes
}

func tick(price float64) domain.MarketSnapshot {
	return domain.MarketSnapshot{
		Markets: []domain.MarketSummary{
			{Pair: "BTC/USDT", Price: price, OpeningPrice: 68000.50},
		},
		Active: &domain.ActivePairDetail{Pair: "BTC/USDT", Price: price},
	}
}

func TestSession_LimitBuy_ReservesAndFills(t *testing.T) {
	s, _ := newTestSession(t)
	s.ApplyTick(tick(68000))

	order, err := s.PlaceOrder(OrderRequest{
		Pair: "BTC/USDT", Type: domain.OrderTypeLimit, Side: domain.SideBuy,
		Amount: d("0.1"), LimitPrice: d("67000"),
	})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	if order.Status != domain.OrderStatusOpen {
		t.Errorf("Limit order should rest Open, got %s", order.Status)
	}

	// Reservation is visible immediately
	usdt := findBalance(t, s, "USDT")
	if !usdt.Reserved.Equal(d("6700")) || !usdt.Available.Equal(d("8300")) {
		t.Errorf("USDT after placement: reserved=%s available=%s", usdt.Reserved, usdt.Available)
	}

	// Price above the limit: the order keeps resting
	s.ApplyTick(tick(67500))
	got, _ := s.Order(order.ID)
	if !got.IsOpen() {
		t.Fatal("Order filled above its limit")
	}

	// Price through the limit: full fill at the original limit price
	s.ApplyTick(tick(66900))
	got, _ = s.Order(order.ID)
	if got.Status != domain.OrderStatusFilled || got.FillPercent != 100 {
		t.Fatalf("Expected Filled/100%%, got %s/%d%%", got.Status, got.FillPercent)
	}

	usdt = findBalance(t, s, "USDT")
	btc := findBalance(t, s, "BTC")
	if !usdt.Total.Equal(d("8300")) || !usdt.Reserved.IsZero() {
		t.Errorf("USDT after fill: total=%s reserved=%s", usdt.Total, usdt.Reserved)
	}
	if !btc.Total.Equal(d("0.85")) || !btc.Available.Equal(d("0.85")) {
		t.Errorf("BTC after fill: total=%s available=%s", btc.Total, btc.Available)
	}
}

func TestSession_LimitSell_FillCreditsQuote(t *testing.T) {
	s, _ := newTestSession(t)
	s.ApplyTick(tick(68000))

	order, err := s.PlaceOrder(OrderRequest{
		Pair: "BTC/USDT", Type: domain.OrderTypeLimit, Side: domain.SideSell,
		Amount: d("0.5"), LimitPrice: d("69000"),
	})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}

	btc := findBalance(t, s, "BTC")
	if !btc.Reserved.Equal(d("0.5")) || !btc.Available.Equal(d("0.25")) {
		t.Errorf("BTC after placement: reserved=%s available=%s", btc.Reserved, btc.Available)
	}

	s.ApplyTick(tick(69050))
	got, _ := s.Order(order.ID)
	if got.Status != domain.OrderStatusFilled {
		t.Fatalf("Expected fill, got %s", got.Status)
	}

	btc = findBalance(t, s, "BTC")
	usdt := findBalance(t, s, "USDT")
	if !btc.Total.Equal(d("0.25")) || !btc.Reserved.IsZero() {
		t.Errorf("BTC after fill: total=%s reserved=%s", btc.Total, btc.Reserved)
	}
	// Settled at the limit price 69000, not the tick price
	if !usdt.Total.Equal(d("49500")) {
		t.Errorf("USDT after fill: total=%s, want 49500", usdt.Total)
	}
}

func TestSession_MarketOrder_SettlesImmediately(t *testing.T) {
	s, _ := newTestSession(t)
	s.ApplyTick(tick(68000))

	order, err := s.PlaceOrder(OrderRequest{
		Pair: "BTC/USDT", Type: domain.OrderTypeMarket, Side: domain.SideBuy,
		Amount: d("0.1"),
	})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}

	got, _ := s.Order(order.ID)
	if got.Status != domain.OrderStatusFilled {
		t.Fatalf("Market order must settle immediately, got %s", got.Status)
	}
	if !got.LimitPrice.Equal(d("68000")) {
		t.Errorf("Market order should execute at the last known price, got %s", got.LimitPrice)
	}

	usdt := findBalance(t, s, "USDT")
	btc := findBalance(t, s, "BTC")
	if !usdt.Total.Equal(d("8200")) || !usdt.Reserved.IsZero() {
		t.Errorf("USDT: total=%s reserved=%s", usdt.Total, usdt.Reserved)
	}
	if !btc.Total.Equal(d("0.85")) {
		t.Errorf("BTC: total=%s", btc.Total)
	}
}

func TestSession_MarketSell_NoOpenState(t *testing.T) {
	s, _ := newTestSession(t)
	s.ApplyTick(tick(68000))

	order, err := s.PlaceOrder(OrderRequest{
		Pair: "BTC/USDT", Type: domain.OrderTypeMarket, Side: domain.SideSell,
		Amount: d("0.05"),
	})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	if order.Status != domain.OrderStatusFilled {
		t.Fatalf("Market sell must never expose an Open state, got %s", order.Status)
	}

	btc := findBalance(t, s, "BTC")
	usdt := findBalance(t, s, "USDT")
	if !btc.Total.Equal(d("0.7")) || !btc.Reserved.IsZero() {
		t.Errorf("BTC: total=%s reserved=%s", btc.Total, btc.Reserved)
	}
	// 0.05 * 68000
	if !usdt.Total.Equal(d("18400")) {
		t.Errorf("USDT: total=%s, want 18400", usdt.Total)
	}
}

func TestSession_MarketOrder_NoPrice(t *testing.T) {
	s, _ := newTestSession(t)

	_, err := s.PlaceOrder(OrderRequest{
		Pair: "BTC/USDT", Type: domain.OrderTypeMarket, Side: domain.SideBuy,
		Amount: d("0.1"),
	})
	if !errors.Is(err, domain.ErrNoPrice) {
		t.Errorf("Expected ErrNoPrice before the first tick, got %v", err)
	}
}

func TestSession_Cancel_RestoresReservation(t *testing.T) {
	s, _ := newTestSession(t)
	s.ApplyTick(tick(68000))

	order, err := s.PlaceOrder(OrderRequest{
		Pair: "BTC/USDT", Type: domain.OrderTypeLimit, Side: domain.SideBuy,
		Amount: d("0.1"), LimitPrice: d("67000"),
	})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}

	if err := s.CancelOrder(order.ID); err != nil {
		t.Fatalf("CancelOrder failed: %v", err)
	}

	// Wallet is byte-for-byte back at the pre-order state
	usdt := findBalance(t, s, "USDT")
	if !usdt.Total.Equal(d("15000")) || !usdt.Available.Equal(d("15000")) || !usdt.Reserved.IsZero() {
		t.Errorf("Cancel did not restore the wallet: %+v", usdt)
	}

	got, _ := s.Order(order.ID)
	if got.Status != domain.OrderStatusCanceled {
		t.Errorf("Expected Canceled, got %s", got.Status)
	}

	// Canceling again is an error, and a later tick must not fill it
	if err := s.CancelOrder(order.ID); !errors.Is(err, domain.ErrOrderNotOpen) {
		t.Errorf("Expected ErrOrderNotOpen on double cancel, got %v", err)
	}
	s.ApplyTick(tick(60000))
	got, _ = s.Order(order.ID)
	if got.Status != domain.OrderStatusCanceled {
		t.Errorf("Canceled order mutated by a tick: %s", got.Status)
	}
}

func TestSession_Cancel_UnknownOrder(t *testing.T) {
	s, _ := newTestSession(t)
	if err := s.CancelOrder("nope"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("Expected ErrOrderNotFound, got %v", err)
	}
}

func TestSession_InsufficientFunds(t *testing.T) {
	s, notes := newTestSession(t)
	s.ApplyTick(tick(68000))

	_, err := s.PlaceOrder(OrderRequest{
		Pair: "BTC/USDT", Type: domain.OrderTypeLimit, Side: domain.SideBuy,
		Amount: d("1"), LimitPrice: d("67000"), // needs 67000, has 15000
	})
	if !IsInsufficientFunds(err) {
		t.Fatalf("Expected insufficient funds, got %v", err)
	}

	// No order created, wallet untouched, user notified
	if len(s.Orders()) != 0 {
		t.Error("Rejected order must not be recorded")
	}
	usdt := findBalance(t, s, "USDT")
	if !usdt.Available.Equal(d("15000")) || !usdt.Reserved.IsZero() {
		t.Errorf("Wallet mutated by rejected order: %+v", usdt)
	}
	if len(*notes) == 0 || (*notes)[len(*notes)-1].Kind != domain.NotifyError {
		t.Error("Expected an error notification for the rejection")
	}
}

func TestSession_InvalidParameters(t *testing.T) {
	s, _ := newTestSession(t)
	s.ApplyTick(tick(68000))

	cases := []OrderRequest{
		{Pair: "BTCUSDT", Type: domain.OrderTypeLimit, Side: domain.SideBuy, Amount: d("1"), LimitPrice: d("1")},
		{Pair: "BTC/USDT", Type: domain.OrderTypeLimit, Side: "Hold", Amount: d("1"), LimitPrice: d("1")},
		{Pair: "BTC/USDT", Type: domain.OrderTypeLimit, Side: domain.SideBuy, Amount: d("0"), LimitPrice: d("1")},
		{Pair: "BTC/USDT", Type: domain.OrderTypeLimit, Side: domain.SideBuy, Amount: d("-1"), LimitPrice: d("1")},
		{Pair: "BTC/USDT", Type: domain.OrderTypeLimit, Side: domain.SideBuy, Amount: d("1"), LimitPrice: d("0")},
		{Pair: "BTC/USDT", Type: "Stop", Side: domain.SideBuy, Amount: d("1"), LimitPrice: d("1")},
	}

	for i, req := range cases {
		if _, err := s.PlaceOrder(req); err == nil {
			t.Errorf("case %d: expected rejection for %+v", i, req)
		}
	}
	if len(s.Orders()) != 0 {
		t.Error("Invalid requests must not create orders")
	}
}

func TestSession_NoDoubleFill(t *testing.T) {
	s, _ := newTestSession(t)
	s.ApplyTick(tick(68000))

	order, _ := s.PlaceOrder(OrderRequest{
		Pair: "BTC/USDT", Type: domain.OrderTypeLimit, Side: domain.SideBuy,
		Amount: d("0.1"), LimitPrice: d("67000"),
	})

	// Two consecutive crossing ticks: exactly one settlement
	s.ApplyTick(tick(66000))
	s.ApplyTick(tick(65000))

	got, _ := s.Order(order.ID)
	if got.Status != domain.OrderStatusFilled {
		t.Fatalf("Expected fill, got %s", got.Status)
	}
	btc := findBalance(t, s, "BTC")
	if !btc.Total.Equal(d("0.85")) {
		t.Errorf("Double settlement detected: BTC total %s, want 0.85", btc.Total)
	}
}

func TestSession_DepositWithdraw(t *testing.T) {
	s, _ := newTestSession(t)

	if err := s.Deposit("USDT", d("500")); err != nil {
		t.Fatalf("Deposit failed: %v", err)
	}
	if err := s.Withdraw("USDT", d("200")); err != nil {
		t.Fatalf("Withdraw failed: %v", err)
	}
	usdt := findBalance(t, s, "USDT")
	if !usdt.Total.Equal(d("15300")) {
		t.Errorf("Expected 15300 after deposit/withdraw, got %s", usdt.Total)
	}

	if err := s.Withdraw("USDT", d("999999")); !IsInsufficientFunds(err) {
		t.Errorf("Expected insufficient funds, got %v", err)
	}
	if err := s.Deposit("USDT", d("-5")); err == nil {
		t.Error("Negative deposit must be rejected")
	}

	txs := s.Transactions()
	if len(txs) != 2 {
		t.Fatalf("Expected 2 transactions, got %d", len(txs))
	}
	// Newest first
	if txs[0].Type != domain.TxWithdraw || txs[1].Type != domain.TxDeposit {
		t.Errorf("Transaction order wrong: %s, %s", txs[0].Type, txs[1].Type)
	}
}

func TestSession_Alerts(t *testing.T) {
	s, notes := newTestSession(t)
	s.ApplyTick(tick(68000))

	if _, err := s.AddAlert("BTC/USDT", d("69000"), false); err != nil {
		t.Fatalf("AddAlert failed: %v", err)
	}
	before := len(*notes)

	s.ApplyTick(tick(68500)) // below target: silent
	if len(*notes) != before {
		t.Error("Alert fired below target")
	}

	s.ApplyTick(tick(69100)) // crossed
	if len(*notes) != before+1 {
		t.Fatalf("Expected 1 alert notification, got %d new", len(*notes)-before)
	}

	s.ApplyTick(tick(69200)) // one-shot: stays quiet
	if len(*notes) != before+1 {
		t.Error("One-shot alert fired twice")
	}
}

func TestSession_OrdersNewestFirst(t *testing.T) {
	s, _ := newTestSession(t)
	s.ApplyTick(tick(68000))

	first, _ := s.PlaceOrder(OrderRequest{
		Pair: "BTC/USDT", Type: domain.OrderTypeLimit, Side: domain.SideBuy,
		Amount: d("0.01"), LimitPrice: d("60000"),
	})
	second, _ := s.PlaceOrder(OrderRequest{
		Pair: "BTC/USDT", Type: domain.OrderTypeLimit, Side: domain.SideBuy,
		Amount: d("0.01"), LimitPrice: d("61000"),
	})

	orders := s.Orders()
	if len(orders) != 2 || orders[0].ID != second.ID || orders[1].ID != first.ID {
		t.Error("Orders should list newest first")
	}
	open := s.OpenOrders()
	if len(open) != 2 {
		t.Errorf("Expected 2 open orders, got %d", len(open))
	}
}

func TestSession_TotalEquity(t *testing.T) {
	s, _ := newTestSession(t)
	s.ApplyTick(tick(68000))

	// 0.75 BTC * 68000 + 15000 USDT * 1
	want := d("66000")
	if got := s.TotalEquity("USDT"); !got.Equal(want) {
		t.Errorf("Equity = %s, want %s", got, want)
	}
}

func findBalance(t *testing.T, s *Session, symbol string) domain.Balance {
	t.Helper()
	for _, b := range s.Balances() {
		if b.Symbol == symbol {
			return b
		}
	}
	t.Fatalf("No balance for %s", symbol)
	return domain.Balance{}
}
