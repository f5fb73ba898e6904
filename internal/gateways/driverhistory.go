package gateways

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"
)

// ErrDriverHistoryOutage is returned while an injected driver-history outage is active.
var ErrDriverHistoryOutage = errors.New("driver history outage")

// Unknown drivers default to a good record, not an error.
const driverDefaultScore = 5.0

// MemoryDriverHistory is a seeded DriverHistory stub.
type MemoryDriverHistory struct {
	mu     sync.RWMutex
	scores map[string]float64

	rng        *rand.Rand
	minLatency time.Duration
	maxLatency time.Duration
	outage     outage
}

// DriverHistoryOption configures a MemoryDriverHistory.
type DriverHistoryOption func(*MemoryDriverHistory)

// WithDriverScores seeds known driver scores.
func WithDriverScores(scores map[string]float64) DriverHistoryOption {
	return func(h *MemoryDriverHistory) {
		for id, score := range scores {
			h.scores[id] = score
		}
	}
}

// WithDriverHistoryLatency simulates lookup latency in [min,max).
func WithDriverHistoryLatency(min, max time.Duration) DriverHistoryOption {
	return func(h *MemoryDriverHistory) {
		if min >= 0 && max > min {
			h.minLatency = min
			h.maxLatency = max
			h.rng = rand.New(rand.NewSource(5)) //nolint:gosec // simulated latency only
		}
	}
}

// WithDriverHistoryOutage makes the next n Lookup calls fail.
func WithDriverHistoryOutage(n int) DriverHistoryOption {
	return func(h *MemoryDriverHistory) {
		h.outage.set(n)
	}
}

// NewMemoryDriverHistory creates an empty driver history store.
func NewMemoryDriverHistory(opts ...DriverHistoryOption) *MemoryDriverHistory {
	h := &MemoryDriverHistory{scores: make(map[string]float64)}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Lookup returns the driver's historical risk score, or the default for an
// unknown driver.
func (h *MemoryDriverHistory) Lookup(ctx context.Context, driverID string) (float64, error) {
	if err := simulateLatency(ctx, h.rng, h.minLatency, h.maxLatency); err != nil {
		return 0, err
	}
	if h.outage.trip() {
		return 0, ErrDriverHistoryOutage
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if score, ok := h.scores[driverID]; ok {
		return score, nil
	}
	return driverDefaultScore, nil
}

// SetScore records a driver score. Test hook.
func (h *MemoryDriverHistory) SetScore(driverID string, score float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.scores[driverID] = score
}

// FailNext makes the next n Lookup calls fail. Test hook.
func (h *MemoryDriverHistory) FailNext(n int) {
	h.outage.set(n)
}
