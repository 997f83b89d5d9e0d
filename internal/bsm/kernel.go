// Package bsm implements the Black-Scholes European call pricing kernel.
package bsm

import "math"

// NormalCDF is the standard normal cumulative distribution function.
func NormalCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

// Call prices a European call under Black-Scholes with spot S, strike K,
// risk-free rate r, continuous dividend yield q, volatility sigma, and
// maturity T in years. Returns 0 for any non-positive S, K, sigma, or T
// rather than failing; the domain guard is total.
func Call(s, k, r, q, sigma, t float64) float64 {
	if s <= 0 || k <= 0 || sigma <= 0 || t <= 0 {
		return 0
	}

	sqrtT := math.Sqrt(t)
	d1 := (math.Log(s/k) + (r-q+0.5*sigma*sigma)*t) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT

	return s*math.Exp(-q*t)*NormalCDF(d1) - k*math.Exp(-r*t)*NormalCDF(d2)
}
