package marketdata

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"optionpricer/internal/core"
)

// SimulatedSource decorates a base core.PriceSource for test mode. It
// perturbs OK prices within +-10% and synthesizes a strictly monotone
// per-ticker timestamp, using the base source's timestamp only when it
// moves past the last one emitted. ERROR samples pass through unchanged.
type SimulatedSource struct {
	base core.PriceSource

	mu      sync.Mutex
	lastTS  map[string]int64
	nowFunc func() int64
	rng     *rand.Rand
	rngMu   sync.Mutex
}

// NewSimulatedSource wraps base. nowFunc defaults to the wall-clock epoch
// second and is overridable for deterministic tests.
func NewSimulatedSource(base core.PriceSource) *SimulatedSource {
	return &SimulatedSource{
		base:    base,
		lastTS:  make(map[string]int64),
		nowFunc: func() int64 { return time.Now().Unix() },
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Fetch implements core.PriceSource.
func (s *SimulatedSource) Fetch(ctx context.Context, ticker string) (core.PriceSample, error) {
	sample, err := s.base.Fetch(ctx, ticker)
	if err != nil {
		return sample, err
	}
	if sample.Status != core.StatusOK {
		return sample, nil
	}

	delta := s.randDelta()
	sample.Price = sample.Price * (1 + delta)
	if sample.Price < 0 {
		sample.Price = 0
	}

	sample.Timestamp = s.nextTimestamp(ticker, sample.Timestamp)
	return sample, nil
}

// randDelta draws a perturbation uniformly from [-0.10, 0.10]. The
// generator is not concurrency-safe, so access is serialized.
func (s *SimulatedSource) randDelta() float64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return -0.10 + s.rng.Float64()*0.20
}

// nextTimestamp synthesizes a strictly increasing per-ticker timestamp. If
// baseTS is greater than the last emitted value it is used directly;
// otherwise the last value is bumped by one second. A ticker seen for the
// first time with no positive base timestamp falls back to wall-clock.
func (s *SimulatedSource) nextTimestamp(ticker string, baseTS int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	last, seen := s.lastTS[ticker]

	var next int64
	switch {
	case baseTS > last:
		next = baseTS
	case !seen && baseTS <= 0:
		next = s.nowFunc()
	default:
		next = last + 1
	}

	s.lastTS[ticker] = next
	return next
}
