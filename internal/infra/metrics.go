package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	ticksGenerated atomic.Uint64
	ordersPlaced   atomic.Uint64
	ordersFilled   atomic.Uint64
	ordersCanceled atomic.Uint64
	aiRequests     atomic.Uint64
	errorsTotal    atomic.Uint64

	// Gauges
	feedSubscribers atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordTick records one completed market tick.
func (m *Metrics) RecordTick() {
	m.ticksGenerated.Add(1)
}

// RecordOrderPlaced records an accepted order.
func (m *Metrics) RecordOrderPlaced() {
	m.ordersPlaced.Add(1)
}

// RecordOrderFilled records a filled order.
func (m *Metrics) RecordOrderFilled() {
	m.ordersFilled.Add(1)
}

// RecordOrderCanceled records a canceled order.
func (m *Metrics) RecordOrderCanceled() {
	m.ordersCanceled.Add(1)
}

// RecordAIRequest records one AI collaborator call.
func (m *Metrics) RecordAIRequest() {
	m.aiRequests.Add(1)
}

// RecordError records an error occurrence.
func (m *Metrics) RecordError() {
	m.errorsTotal.Add(1)
}

// IncrementSubscribers increments the feed subscriber gauge.
func (m *Metrics) IncrementSubscribers() {
	m.feedSubscribers.Add(1)
}

// DecrementSubscribers decrements the feed subscriber gauge.
func (m *Metrics) DecrementSubscribers() {
	m.feedSubscribers.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	TicksGenerated  uint64    `json:"ticks_generated"`
	OrdersPlaced    uint64    `json:"orders_placed"`
	OrdersFilled    uint64    `json:"orders_filled"`
	OrdersCanceled  uint64    `json:"orders_canceled"`
	AIRequests      uint64    `json:"ai_requests"`
	ErrorsTotal     uint64    `json:"errors_total"`
	FeedSubscribers int32     `json:"feed_subscribers"`
	Timestamp       time.Time `json:"timestamp"`
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		TicksGenerated:  m.ticksGenerated.Load(),
		OrdersPlaced:    m.ordersPlaced.Load(),
		OrdersFilled:    m.ordersFilled.Load(),
		OrdersCanceled:  m.ordersCanceled.Load(),
		AIRequests:      m.aiRequests.Load(),
		ErrorsTotal:     m.errorsTotal.Load(),
		FeedSubscribers: m.feedSubscribers.Load(),
		Timestamp:       time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.ticksGenerated.Store(0)
	m.ordersPlaced.Store(0)
	m.ordersFilled.Store(0)
	m.ordersCanceled.Store(0)
	m.aiRequests.Store(0)
	m.errorsTotal.Store(0)
	m.feedSubscribers.Store(0)
}
