package bsm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCall_ATMBenchmark(t *testing.T) {
	got := Call(100, 100, 0.05, 0, 0.2, 1)
	assert.InDelta(t, 10.45, got, 0.1)
}

func TestCall_DeepITM(t *testing.T) {
	got := Call(150, 100, 0.05, 0, 0.2, 1.0)
	lowerBound := 150 - 100*math.Exp(-0.05)
	assert.Greater(t, got, lowerBound)
	assert.InDelta(t, lowerBound, got, 5)
}

func TestCall_ShortMaturity(t *testing.T) {
	got := Call(100, 100, 0.01, 0, 0.05, 1.0/252)
	assert.Greater(t, got, 0.0)
	assert.Less(t, got, 2.0)
}

func TestCall_DomainGuard(t *testing.T) {
	assert.Equal(t, 0.0, Call(0, 100, 0.05, 0, 0.2, 1))
	assert.Equal(t, 0.0, Call(100, 0, 0.05, 0, 0.2, 1))
	assert.Equal(t, 0.0, Call(100, 100, 0.05, 0, 0, 1))
	assert.Equal(t, 0.0, Call(100, 100, 0.05, 0, 0.2, 0))
	assert.Equal(t, 0.0, Call(-5, 100, 0.05, 0, 0.2, 1))
}

func TestCall_NoArbitrageLowerBound(t *testing.T) {
	cases := []struct {
		s, k, r, q, sigma, t float64
	}{
		{100, 100, 0.05, 0, 0.2, 1},
		{150, 100, 0.05, 0, 0.2, 1},
		{80, 100, 0.03, 0.01, 0.3, 0.5},
		{100, 100, 0.01, 0, 0.05, 1.0 / 252},
	}
	for _, c := range cases {
		got := Call(c.s, c.k, c.r, c.q, c.sigma, c.t)
		lower := math.Max(0, c.s*math.Exp(-c.q*c.t)-c.k*math.Exp(-c.r*c.t))
		assert.GreaterOrEqual(t, got, lower-1e-9)
	}
}

func TestNormalCDF(t *testing.T) {
	assert.InDelta(t, 0.5, NormalCDF(0), 1e-9)
	assert.InDelta(t, 1.0, NormalCDF(10), 1e-6)
	assert.InDelta(t, 0.0, NormalCDF(-10), 1e-6)
}
