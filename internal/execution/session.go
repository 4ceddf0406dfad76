package execution

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gem_exchange/internal/domain"
	"gem_exchange/internal/infra"
)

// OrderRequest carries the user's order parameters into the session.
type OrderRequest struct {
	Pair       string          `json:"pair"`
	Type       string          `json:"type"`
	Side       string          `json:"side"`
	Amount     decimal.Decimal `json:"amount"`
	LimitPrice decimal.Decimal `json:"limit_price"`
}

// NotifyFunc receives user-visible notifications (fills, rejections,
// cancellations, alerts).
type NotifyFunc func(domain.Notification)

// Session is the hosting layer of the simulation: it owns the wallet,
// the order list, the transaction log and the price alerts, and it is
// the only component that applies state transitions proposed by
// reconciliation. A single mutex serializes all mutations, so ticks and
// user actions never interleave.
type Session struct {
	mu     sync.Mutex
	wallet *domain.Wallet
	orders []*domain.Order
	byID   map[string]*domain.Order
	txs    []domain.Transaction
	alerts []*domain.AlertConfig

	// Last known price per pair display name, updated each tick.
	prices map[string]decimal.Decimal

	notify NotifyFunc
}

// NewSession creates a session over the given wallet. notify may be nil.
func NewSession(wallet *domain.Wallet, notify NotifyFunc) *Session {
	return &Session{
		wallet: wallet,
		byID:   make(map[string]*domain.Order),
		prices: make(map[string]decimal.Decimal),
		notify: notify,
	}
}

// PlaceOrder validates the request, reserves the required funds and
// creates the order. Limit orders rest Open until a tick crosses their
// limit; Market orders settle immediately at the last known price and
// never expose an Open state.
func (s *Session) PlaceOrder(req OrderRequest) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	base, quote, ok := domain.SplitPair(req.Pair)
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: %q", domain.ErrUnknownPair, req.Pair)
	}
	if req.Side != domain.SideBuy && req.Side != domain.SideSell {
		return domain.Order{}, fmt.Errorf("%w: side %q", domain.ErrInvalidOrderParameters, req.Side)
	}
	if !req.Amount.IsPositive() {
		return domain.Order{}, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidOrderParameters)
	}

	var price decimal.Decimal
	switch req.Type {
	case domain.OrderTypeLimit:
		if !req.LimitPrice.IsPositive() {
			return domain.Order{}, fmt.Errorf("%w: limit price must be positive", domain.ErrInvalidOrderParameters)
		}
		price = req.LimitPrice
	case domain.OrderTypeMarket:
		last, ok := s.prices[req.Pair]
		if !ok {
			return domain.Order{}, fmt.Errorf("%w for %s", domain.ErrNoPrice, req.Pair)
		}
		price = last
	default:
		return domain.Order{}, fmt.Errorf("%w: type %q", domain.ErrInvalidOrderParameters, req.Type)
	}

	// Up-front reservation: quote cost for a Buy, base amount for a Sell.
	var err error
	if req.Side == domain.SideBuy {
		err = s.wallet.Get(quote).Reserve(price.Mul(req.Amount))
	} else {
		err = s.wallet.Get(base).Reserve(req.Amount)
	}
	if err != nil {
		s.push(domain.NotifyError, err.Error())
		return domain.Order{}, err
	}

	order := &domain.Order{
		ID:         uuid.NewString(),
		Pair:       req.Pair,
		Type:       req.Type,
		Side:       req.Side,
		LimitPrice: price,
		Amount:     req.Amount,
		Status:     domain.OrderStatusOpen,
		CreatedAt:  time.Now(),
	}
	s.orders = append(s.orders, order)
	s.byID[order.ID] = order

	s.push(domain.NotifySuccess, fmt.Sprintf("%s %s order placed for %s %s.",
		order.Type, order.Side, order.Amount, base))
	infra.GlobalMetrics.RecordOrderPlaced()

	if order.Type == domain.OrderTypeMarket {
		// Immediate settlement: reuses the limit-fill math, so the
		// reservation above is reversed in the same call.
		s.applyFill(Fill{Order: func() domain.Order {
			o := *order
			o.Status = domain.OrderStatusFilled
			o.FillPercent = 100
			return o
		}(), Deltas: settlementDeltas(*order)})
	}

	s.wallet.VerifyAll()
	return *order, nil
}

// CancelOrder reverses the original reservation of an Open order and
// marks it Canceled. Canceling a non-Open order is an error.
func (s *Session) CancelOrder(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	if !order.IsOpen() {
		return fmt.Errorf("%w: %s is %s", domain.ErrOrderNotOpen, id, order.Status)
	}

	base, quote, _ := domain.SplitPair(order.Pair)
	if order.Side == domain.SideBuy {
		s.wallet.Get(quote).Release(order.Cost())
	} else {
		s.wallet.Get(base).Release(order.Amount)
	}
	order.Status = domain.OrderStatusCanceled

	s.push(domain.NotifyInfo, fmt.Sprintf("Order #%s canceled.", shortID(id)))
	infra.GlobalMetrics.RecordOrderCanceled()
	s.wallet.VerifyAll()
	return nil
}

// ApplyTick consumes one market snapshot: records last known prices,
// reconciles the active pair's resting orders against the new price and
// applies the resulting fills atomically, one notification per fill.
func (s *Session) ApplyTick(snap domain.MarketSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range snap.Markets {
		s.prices[m.Pair] = decimal.NewFromFloat(m.Price)
	}
	if snap.Active == nil {
		return
	}

	price := decimal.NewFromFloat(snap.Active.Price)
	var open []domain.Order
	for _, o := range s.orders {
		if o.IsOpen() && o.Pair == snap.Active.Pair {
			open = append(open, *o)
		}
	}

	for _, fill := range Reconcile(price, open) {
		s.applyFill(fill)
	}
	s.wallet.VerifyAll()
	s.checkAlerts()
}

// applyFill applies one fill's deltas, flips the stored order to Filled
// and records the trade. Caller holds the lock.
func (s *Session) applyFill(fill Fill) {
	for _, d := range fill.Deltas {
		b := s.wallet.Get(d.Symbol)
		b.Total = b.Total.Add(d.Total)
		b.Available = b.Available.Add(d.Available)
		b.Reserved = b.Reserved.Add(d.Reserved)
		b.VerifyInvariant()
	}

	if stored, ok := s.byID[fill.Order.ID]; ok {
		stored.Status = domain.OrderStatusFilled
		stored.FillPercent = 100
	}

	base, _, _ := domain.SplitPair(fill.Order.Pair)
	s.push(domain.NotifySuccess, fmt.Sprintf("%s %s order for %s %s filled at $%s.",
		fill.Order.Type, fill.Order.Side, fill.Order.Amount, base, fill.Order.LimitPrice))
	s.recordTx(domain.TxTrade, base, fill.Order.Amount,
		fmt.Sprintf("%s %s @ $%s", fill.Order.Type, fill.Order.Side, fill.Order.LimitPrice))
	infra.GlobalMetrics.RecordOrderFilled()

	slog.Info("Order filled",
		slog.String("id", fill.Order.ID),
		slog.String("pair", fill.Order.Pair),
		slog.String("side", fill.Order.Side),
		slog.String("price", fill.Order.LimitPrice.String()),
		slog.String("amount", fill.Order.Amount.String()))
}

// Deposit credits funds to the wallet and logs the transaction.
func (s *Session) Deposit(symbol string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: deposit amount must be positive", domain.ErrInvalidOrderParameters)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.wallet.Get(symbol).Credit(amount)
	s.recordTx(domain.TxDeposit, symbol, amount, "Deposit")
	s.wallet.VerifyAll()
	return nil
}

// Withdraw debits available funds and logs the transaction.
func (s *Session) Withdraw(symbol string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: withdrawal amount must be positive", domain.ErrInvalidOrderParameters)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.wallet.Get(symbol).Debit(amount); err != nil {
		s.push(domain.NotifyError, err.Error())
		return err
	}
	s.recordTx(domain.TxWithdraw, symbol, amount, "Withdrawal")
	s.wallet.VerifyAll()
	return nil
}

// AddAlert registers a price alert for a pair. Direction is derived
// from the current price at registration time.
func (s *Session) AddAlert(pair string, target decimal.Decimal, persistent bool) (*domain.AlertConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.prices[pair]
	if !ok {
		return nil, fmt.Errorf("%w for %s", domain.ErrNoPrice, pair)
	}
	alert := domain.NewAlertConfig(pair, target, current, persistent)
	s.alerts = append(s.alerts, alert)
	return alert, nil
}

// checkAlerts fires notifications for triggered alerts. One-shot alerts
// deactivate after firing. Caller holds the lock.
func (s *Session) checkAlerts() {
	for _, a := range s.alerts {
		price, ok := s.prices[a.Pair]
		if !ok || !a.CheckCondition(price) {
			continue
		}
		s.push(domain.NotifyInfo, fmt.Sprintf("Price alert: %s crossed %s (now %s).",
			a.Pair, a.TargetPrice, price))
		if !a.IsPersistent {
			a.SetActive(false)
		}
	}
}

// Orders returns all orders, newest first.
func (s *Session) Orders() []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]domain.Order, 0, len(s.orders))
	for i := len(s.orders) - 1; i >= 0; i-- {
		result = append(result, *s.orders[i])
	}
	return result
}

// OpenOrders returns the resting orders, newest first.
func (s *Session) OpenOrders() []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []domain.Order
	for i := len(s.orders) - 1; i >= 0; i-- {
		if s.orders[i].IsOpen() {
			result = append(result, *s.orders[i])
		}
	}
	return result
}

// Order returns one order by ID.
func (s *Session) Order(id string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.byID[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	return *order, nil
}

// Balances returns a sorted copy of all wallet entries.
func (s *Session) Balances() []domain.Balance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wallet.Snapshot()
}

// Transactions returns the activity log, newest first.
func (s *Session) Transactions() []domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]domain.Transaction, len(s.txs))
	copy(result, s.txs)
	return result
}

// LastPrice returns the last known price for a pair.
func (s *Session) LastPrice(pair string) (decimal.Decimal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.prices[pair]
	return p, ok
}

// TotalEquity estimates the portfolio value in the quote currency using
// the last known prices. The quote asset itself values at 1.
func (s *Session) TotalEquity(quoteSymbol string) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	assetPrices := make(map[string]decimal.Decimal, len(s.prices)+1)
	for pair, price := range s.prices {
		if base, _, ok := domain.SplitPair(pair); ok {
			assetPrices[base] = price
		}
	}
	assetPrices[quoteSymbol] = decimal.NewFromInt(1)
	return s.wallet.TotalEquity(assetPrices)
}

// recordTx prepends a completed transaction. Caller holds the lock.
func (s *Session) recordTx(txType, asset string, amount decimal.Decimal, details string) {
	s.txs = append([]domain.Transaction{{
		ID:      uuid.NewString(),
		Type:    txType,
		Status:  "Completed",
		Asset:   asset,
		Amount:  amount,
		Details: details,
		Date:    time.Now(),
	}}, s.txs...)
}

// push emits a notification if a sink is attached. Caller holds the lock.
func (s *Session) push(kind, message string) {
	if s.notify == nil {
		return
	}
	s.notify(domain.Notification{
		ID:      uuid.NewString(),
		Kind:    kind,
		Message: message,
		Time:    time.Now(),
	})
}

func shortID(id string) string {
	if len(id) <= 4 {
		return id
	}
	return id[len(id)-4:]
}

// IsInsufficientFunds reports whether err is a funds rejection.
func IsInsufficientFunds(err error) bool {
	return errors.Is(err, domain.ErrInsufficientFunds)
}
