package marketdata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionpricer/internal/core"
)

type stubSource struct {
	samples map[string][]core.PriceSample
	calls   map[string]int
}

func (s *stubSource) Fetch(ctx context.Context, ticker string) (core.PriceSample, error) {
	seq := s.samples[ticker]
	i := s.calls[ticker]
	if i >= len(seq) {
		i = len(seq) - 1
	}
	s.calls[ticker]++
	return seq[i], nil
}

func TestSimulatedSource_PerturbsWithinTenPercent(t *testing.T) {
	base := &stubSource{
		samples: map[string][]core.PriceSample{
			"AAA": {{Timestamp: 1000, Ticker: "AAA", Price: 100, Status: core.StatusOK}},
		},
		calls: map[string]int{},
	}
	sim := NewSimulatedSource(base)

	for i := 0; i < 200; i++ {
		s, err := sim.Fetch(context.Background(), "AAA")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, s.Price, 90.0)
		assert.LessOrEqual(t, s.Price, 110.0)
	}
}

func TestSimulatedSource_MonotoneTimestampsOnStaleBase(t *testing.T) {
	base := &stubSource{
		samples: map[string][]core.PriceSample{
			"AAA": {
				{Timestamp: 1000, Ticker: "AAA", Price: 100, Status: core.StatusOK},
				{Timestamp: 1000, Ticker: "AAA", Price: 100, Status: core.StatusOK},
				{Timestamp: 1000, Ticker: "AAA", Price: 100, Status: core.StatusOK},
			},
		},
		calls: map[string]int{},
	}
	sim := NewSimulatedSource(base)

	var last int64
	for i := 0; i < 3; i++ {
		s, err := sim.Fetch(context.Background(), "AAA")
		require.NoError(t, err)
		assert.Greater(t, s.Timestamp, last)
		last = s.Timestamp
	}
}

func TestSimulatedSource_FirstObservationWithNoBaseTSUsesWallClock(t *testing.T) {
	base := &stubSource{
		samples: map[string][]core.PriceSample{
			"AAA": {{Timestamp: -1, Ticker: "AAA", Price: 100, Status: core.StatusOK}},
		},
		calls: map[string]int{},
	}
	sim := NewSimulatedSource(base)
	sim.nowFunc = func() int64 { return 42 }

	s, err := sim.Fetch(context.Background(), "AAA")
	require.NoError(t, err)
	assert.Equal(t, int64(42), s.Timestamp)
}

func TestSimulatedSource_PassesErrorThrough(t *testing.T) {
	base := &stubSource{
		samples: map[string][]core.PriceSample{
			"ERR": {{Timestamp: -1, Ticker: "ERR", Status: core.StatusError, Error: "boom"}},
		},
		calls: map[string]int{},
	}
	sim := NewSimulatedSource(base)

	s, err := sim.Fetch(context.Background(), "ERR")
	require.NoError(t, err)
	assert.Equal(t, core.StatusError, s.Status)
	assert.Equal(t, "boom", s.Error)
}
