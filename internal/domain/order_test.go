package domain

import "testing"

func TestOrder_Crosses(t *testing.T) {
	tests := []struct {
		name  string
		side  string
		limit string
		price string
		want  bool
	}{
		{"buy fills below limit", SideBuy, "68000", "67500", true},
		{"buy fills at limit", SideBuy, "68000", "68000", true},
		{"buy rests above limit", SideBuy, "68000", "68001", false},
		{"sell fills above limit", SideSell, "68000", "68500", true},
		{"sell fills at limit", SideSell, "68000", "68000", true},
		{"sell rests below limit", SideSell, "68000", "67999", false},
		{"unknown side never fills", "Short", "68000", "1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &Order{Side: tt.side, LimitPrice: d(tt.limit)}
			if got := o.Crosses(d(tt.price)); got != tt.want {
				t.Errorf("Crosses(%s) = %v, want %v", tt.price, got, tt.want)
			}
		})
	}
}

func TestOrder_Cost(t *testing.T) {
	o := &Order{LimitPrice: d("67000"), Amount: d("0.1")}
	if !o.Cost().Equal(d("6700")) {
		t.Errorf("Expected cost 6700, got %s", o.Cost())
	}
}

func TestOrder_IsOpen(t *testing.T) {
	o := &Order{Status: OrderStatusOpen}
	if !o.IsOpen() {
		t.Error("Open order should report open")
	}
	o.Status = OrderStatusFilled
	if o.IsOpen() {
		t.Error("Filled order should not report open")
	}
	o.Status = OrderStatusCanceled
	if o.IsOpen() {
		t.Error("Canceled order should not report open")
	}
}

func TestSplitPair(t *testing.T) {
	base, quote, ok := SplitPair("BTC/USDT")
	if !ok || base != "BTC" || quote != "USDT" {
		t.Errorf("SplitPair(BTC/USDT) = %s, %s, %v", base, quote, ok)
	}

	if _, _, ok := SplitPair("BTCUSDT"); ok {
		t.Error("Expected failure for pair without separator")
	}
	if _, _, ok := SplitPair("/USDT"); ok {
		t.Error("Expected failure for empty base")
	}
	if _, _, ok := SplitPair("BTC/"); ok {
		t.Error("Expected failure for empty quote")
	}
}
