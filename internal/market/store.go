package market

import (
	"math/rand"
	"sync"
	"time"

	"gem_exchange/internal/domain"
)

// warmupStep bounds the per-step factor of the initial seeding walk:
// each step multiplies the price by 1 + U(-warmupStep, +warmupStep).
const warmupStep = 0.0005

// Tick fluctuation: the price is multiplied by 1 + U(tickDriftLow, tickDriftHigh)
// every tick. The range is intentionally asymmetric, giving the walk a
// slight upward bias. Both resulting factors stay strictly positive, so
// the price can never reach zero or go negative; no explicit floor is
// needed.
const (
	tickDriftLow  = -0.0098
	tickDriftHigh = 0.0102
)

// PairState holds the mutable simulation state of a single pair:
// current price, session opening price and the bounded history window.
type PairState struct {
	Pair         domain.TrackedPair
	CurrentPrice float64
	OpeningPrice float64
	History      []domain.ChartPoint
}

// Store maintains the authoritative per-pair price state. It is the
// only writer of PairState; readers get copies.
type Store struct {
	mu     sync.RWMutex
	pairs  []domain.TrackedPair
	states map[string]*PairState // keyed by pair display name
	rng    *rand.Rand
	window int
	step   time.Duration // history sample spacing (the tick period)
	now    func() time.Time
}

// NewStore seeds a store for the given pairs. Each pair starts from its
// base price and performs a window-length randomized warm-up walk, so a
// fresh chart is fully populated before the first tick. The opening
// price stays anchored at the base price.
func NewStore(pairs []domain.TrackedPair, window int, step time.Duration, rng *rand.Rand) *Store {
	s := &Store{
		pairs:  pairs,
		states: make(map[string]*PairState, len(pairs)),
		rng:    rng,
		window: window,
		step:   step,
		now:    time.Now,
	}

	for _, p := range pairs {
		state := &PairState{
			Pair:         p,
			OpeningPrice: p.BasePrice,
			History:      make([]domain.ChartPoint, 0, window),
		}
		price := p.BasePrice
		start := s.now()
		for i := 0; i < window; i++ {
			price *= 1 + (s.rng.Float64()-0.5)*2*warmupStep
			state.History = append(state.History, domain.ChartPoint{
				Time:  start.Add(-time.Duration(window-i) * step),
				Price: price,
			})
		}
		state.CurrentPrice = price
		s.states[p.DisplayName] = state
	}

	return s
}

// Advance perturbs every pair's price by one tick and rolls the history
// window forward. After warm-up the window length is constant: one
// sample appended, the oldest evicted.
func (s *Store) Advance() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, p := range s.pairs {
		state := s.states[p.DisplayName]
		factor := 1 + tickDriftLow + s.rng.Float64()*(tickDriftHigh-tickDriftLow)
		state.CurrentPrice *= factor

		state.History = append(state.History, domain.ChartPoint{
			Time:  now,
			Price: state.CurrentPrice,
		})
		if len(state.History) > s.window {
			state.History = state.History[1:]
		}
	}
}

// Pairs returns the tracked pairs in declaration order.
func (s *Store) Pairs() []domain.TrackedPair {
	return s.pairs
}

// State returns a copy of the state for a pair (external read).
func (s *Store) State(pair string) (PairState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[pair]
	if !ok {
		return PairState{}, false
	}
	out := *state
	out.History = make([]domain.ChartPoint, len(state.History))
	copy(out.History, state.History)
	return out, true
}

// Price returns the current price for a pair.
func (s *Store) Price(pair string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[pair]
	if !ok {
		return 0, false
	}
	return state.CurrentPrice, true
}

// Summaries builds the market list rows for all pairs, in declaration
// order. Values stay numeric; formatting is a UI concern.
func (s *Store) Summaries() []domain.MarketSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.MarketSummary, 0, len(s.pairs))
	for _, p := range s.pairs {
		state := s.states[p.DisplayName]
		change := (state.CurrentPrice - state.OpeningPrice) / state.OpeningPrice * 100
		result = append(result, domain.MarketSummary{
			Pair:         p.DisplayName,
			Price:        state.CurrentPrice,
			ChangePct:    change,
			OpeningPrice: state.OpeningPrice,
		})
	}
	return result
}
