package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"optionpricer/internal/core"
)

// PersistSink writes one ticker_price row per OK OptionQuote. It connects
// lazily on first use and reconnects on the next write after a failure,
// matching PostgresWriter::ensure_connected in the source this replaces;
// a failed write is logged and dropped, never torn down into the caller.
type PersistSink struct {
	dsn    string
	logger core.ILogger

	mu   sync.Mutex
	pool *pgxpool.Pool
}

// NewPersistSink builds a PersistSink against dsn. The pool is created on
// the first Write call, not here.
func NewPersistSink(dsn string, logger core.ILogger) *PersistSink {
	return &PersistSink{
		dsn:    dsn,
		logger: logger.WithField("component", "persist_sink"),
	}
}

// Write implements core.PersistSink. Quotes with Status != OK are a no-op
// returning nil, matching the spec ("no row written" for errors).
func (s *PersistSink) Write(ctx context.Context, quote core.OptionQuote) error {
	if quote.Status != core.StatusOK {
		return nil
	}

	pool, err := s.ensureConnected(ctx)
	if err != nil {
		s.logger.Error("persist sink not connected", "error", err)
		return fmt.Errorf("storage: ensure connected: %w", err)
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO ticker_price (ts_exchange, ticker_id, conf_id, option_price, calculated_price)
		VALUES (to_timestamp($1), $2, $3, $4, $4)
	`, quote.Timestamp, quote.TickerID, quote.ConfID, quote.OptionPrice)
	if err != nil {
		s.logger.Error("insert into ticker_price failed", "ticker", quote.Ticker, "error", err)
		s.invalidate()
		return fmt.Errorf("storage: insert ticker_price: %w", err)
	}

	return nil
}

// Close releases the underlying pool, if one was ever opened.
func (s *PersistSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
}

func (s *PersistSink) ensureConnected(ctx context.Context) (*pgxpool.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pool != nil {
		return s.pool, nil
	}

	pool, err := NewPool(ctx, s.dsn, s.logger)
	if err != nil {
		return nil, err
	}
	s.pool = pool
	return pool, nil
}

func (s *PersistSink) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
}
