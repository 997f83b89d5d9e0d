// Package pricing implements Stage B: the ingest dispatcher, the decode +
// join + Black-Scholes worker pool, the parameter-set reloader, and the
// single-threaded persist writer.
package pricing

import (
	"sync"

	"optionpricer/internal/core"
)

// ParamsMap holds the current ticker -> BsmParams snapshot, replaced
// wholesale by the config reloader. Readers take the lock only long enough
// to copy the single entry they need.
type ParamsMap struct {
	mu     sync.RWMutex
	params map[string]core.BsmParams
}

// NewParamsMap builds an empty ParamsMap.
func NewParamsMap() *ParamsMap {
	return &ParamsMap{params: make(map[string]core.BsmParams)}
}

// Lookup returns the BsmParams configured for ticker, if any.
func (p *ParamsMap) Lookup(ticker string) (core.BsmParams, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.params[ticker]
	return v, ok
}

// Replace atomically swaps the entire snapshot.
func (p *ParamsMap) Replace(next map[string]core.BsmParams) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.params = next
}

// Len reports the number of configured tickers, for telemetry/tests.
func (p *ParamsMap) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.params)
}
