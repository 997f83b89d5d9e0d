package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"optionpricer/internal/core"
)

// TickerLoader reads the names of tickers that have pricing configured
// (i.e. have a corresponding bsm_params row) from the relational store.
type TickerLoader struct {
	pool *pgxpool.Pool
}

// NewTickerLoader builds a TickerLoader against pool.
func NewTickerLoader(pool *pgxpool.Pool) *TickerLoader {
	return &TickerLoader{pool: pool}
}

// LoadTickers implements core.TickerLoader.
func (l *TickerLoader) LoadTickers(ctx context.Context) ([]string, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT DISTINCT t.name
		FROM ticker t
		JOIN bsm_params p ON p.ticker_id = t.id
	`)
	if err != nil {
		return nil, fmt.Errorf("storage: load tickers: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("storage: scan ticker row: %w", err)
		}
		tickers = append(tickers, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate ticker rows: %w", err)
	}

	return tickers, nil
}

// ParamsLoader reads the current per-ticker Black-Scholes parameter set.
type ParamsLoader struct {
	pool *pgxpool.Pool
}

// NewParamsLoader builds a ParamsLoader against pool.
func NewParamsLoader(pool *pgxpool.Pool) *ParamsLoader {
	return &ParamsLoader{pool: pool}
}

// LoadParams implements core.ParamsLoader, joining ticker and bsm_params
// rows into one BsmParams entry per ticker name.
func (l *ParamsLoader) LoadParams(ctx context.Context) (map[string]core.BsmParams, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT t.name, p.strike, p.rate, p.dividend_yield, p.volatility,
		       p.maturity_years, t.id, p.id
		FROM ticker t
		JOIN bsm_params p ON p.ticker_id = t.id
	`)
	if err != nil {
		return nil, fmt.Errorf("storage: load params: %w", err)
	}
	defer rows.Close()

	params := make(map[string]core.BsmParams)
	for rows.Next() {
		var name string
		var p core.BsmParams
		if err := rows.Scan(&name, &p.Strike, &p.Rate, &p.DividendYield,
			&p.Volatility, &p.MaturityYears, &p.TickerID, &p.ConfID); err != nil {
			return nil, fmt.Errorf("storage: scan params row: %w", err)
		}
		params[name] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate params rows: %w", err)
	}

	return params, nil
}
