package market

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"gem_exchange/internal/domain"
)

// Placeholder 24h volume for the active pair. The simulation has no real
// volume aggregation; the original feed reported a constant here too.
const staticVolume = 2345.67

// GeneratorConfig tunes snapshot generation. Zero fields fall back to
// the defaults of the original feed.
type GeneratorConfig struct {
	Interval    time.Duration // Tick period (default 2s)
	ActivePair  string        // Pair that gets the detailed view
	DepthLevels int           // Order book levels per side (default 20)
	TradePrints int           // Trade tape entries per tick (default 30)
	DepthStep   float64       // Max random spacing between book levels (default 2.0)
	TradeJitter float64       // Trade print spread around the price (default 2.5)
}

func (c *GeneratorConfig) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = 2 * time.Second
	}
	if c.DepthLevels <= 0 {
		c.DepthLevels = 20
	}
	if c.TradePrints <= 0 {
		c.TradePrints = 30
	}
	if c.DepthStep <= 0 {
		c.DepthStep = 2.0
	}
	if c.TradeJitter <= 0 {
		c.TradeJitter = 2.5
	}
}

// SnapshotFunc receives one immutable MarketSnapshot per tick.
type SnapshotFunc func(domain.MarketSnapshot)

// Generator produces one MarketSnapshot per period: it advances every
// pair's price, then derives the market list and the active pair's
// detailed view. Start returns after emitting the first snapshot, so a
// fresh subscriber never waits a full period for data.
type Generator struct {
	store      *Store
	cfg        GeneratorConfig
	rng        *rand.Rand
	onSnapshot SnapshotFunc

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewGenerator creates a generator over the store. The random source is
// injected so ticks are reproducible in tests.
func NewGenerator(store *Store, cfg GeneratorConfig, rng *rand.Rand, onSnapshot SnapshotFunc) *Generator {
	cfg.applyDefaults()
	return &Generator{
		store:      store,
		cfg:        cfg,
		rng:        rng,
		onSnapshot: onSnapshot,
	}
}

// Start begins the periodic schedule: one snapshot immediately, then one
// per period until Stop or context cancellation. Calling Start on a
// running generator is a no-op.
func (g *Generator) Start(ctx context.Context) {
	g.mu.Lock()
	if g.cancel != nil {
		g.mu.Unlock()
		return
	}
	ctx, g.cancel = context.WithCancel(ctx)
	g.mu.Unlock()

	// First snapshot before the first period elapses
	g.emit()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()

		ticker := time.NewTicker(g.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("Market generator stopped")
				return
			case <-ticker.C:
				g.emit()
			}
		}
	}()
}

// Stop halts the periodic schedule and waits for the loop to exit.
// Idempotent; after Stop no further snapshots are emitted.
func (g *Generator) Stop() {
	g.mu.Lock()
	cancel := g.cancel
	g.cancel = nil
	g.mu.Unlock()

	if cancel != nil {
		cancel()
		g.wg.Wait()
	}
}

// emit runs one tick and delivers the snapshot. A panic inside a tick
// loses only that tick: the previous snapshot remains the last known
// state and the schedule keeps running.
func (g *Generator) emit() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Tick failed, keeping previous snapshot", slog.Any("panic", r))
		}
	}()

	snap := g.Tick()
	if g.onSnapshot != nil {
		g.onSnapshot(snap)
	}
}

// Tick advances the simulation by one step and derives a full snapshot.
func (g *Generator) Tick() domain.MarketSnapshot {
	g.store.Advance()

	snap := domain.MarketSnapshot{Markets: g.store.Summaries()}
	if g.cfg.ActivePair != "" {
		if state, ok := g.store.State(g.cfg.ActivePair); ok {
			snap.Active = g.buildDetail(state)
		}
	}
	return snap
}

// buildDetail derives the active pair view: window high/low, synthetic
// bid/ask ladders and trade tape. Ladders are regenerated fresh each
// tick; they never carry over resting liquidity.
func (g *Generator) buildDetail(state PairState) *domain.ActivePairDetail {
	price := state.CurrentPrice
	change := (price - state.OpeningPrice) / state.OpeningPrice * 100

	high, low := price, price
	for _, pt := range state.History {
		if pt.Price > high {
			high = pt.Price
		}
		if pt.Price < low {
			low = pt.Price
		}
	}

	bids := make([]domain.BookLevel, g.cfg.DepthLevels)
	asks := make([]domain.BookLevel, g.cfg.DepthLevels)
	for i := 0; i < g.cfg.DepthLevels; i++ {
		offset := float64(i+1) * g.rng.Float64() * g.cfg.DepthStep
		bids[i] = g.bookLevel(price - offset)
		offset = float64(i+1) * g.rng.Float64() * g.cfg.DepthStep
		asks[i] = g.bookLevel(price + offset)
	}

	now := time.Now()
	trades := make([]domain.TradePrint, g.cfg.TradePrints)
	for i := range trades {
		side := domain.SideBuy
		if g.rng.Float64() > 0.5 {
			side = domain.SideSell
		}
		trades[i] = domain.TradePrint{
			Price: price + (g.rng.Float64()-0.5)*2*g.cfg.TradeJitter,
			Size:  g.rng.Float64() * 0.1,
			Time:  now,
			Side:  side,
		}
	}

	return &domain.ActivePairDetail{
		Pair:      state.Pair.DisplayName,
		Price:     price,
		ChangePct: change,
		High:      high,
		Low:       low,
		Volume:    staticVolume,
		ChartData: state.History,
		Bids:      bids,
		Asks:      asks,
		Trades:    trades,
	}
}

func (g *Generator) bookLevel(price float64) domain.BookLevel {
	return domain.BookLevel{
		Price: price,
		Size:  g.rng.Float64() * 0.5,
		Total: price * (g.rng.Float64() * 0.5),
	}
}
