// Package storage implements the relational-store collaborators: the
// Ticker and Parameter Loaders (read snapshots) and the Persist Sink
// (writes computed option quotes), all backed by a pgx connection pool.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"optionpricer/internal/core"
	"optionpricer/pkg/retry"
)

// NewPool builds a pooled pgx connection against dsn, following the
// connection-pool tuning in this codebase's other database integrations.
// The initial connect-and-ping is retried with backoff, since both
// binaries dial the database before anything else and a freshly started
// Postgres instance may not be accepting connections yet.
func NewPool(ctx context.Context, dsn string, logger core.ILogger) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: parse dsn: %w", err)
	}

	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = time.Minute
	cfg.ConnConfig.ConnectTimeout = 5 * time.Second

	var pool *pgxpool.Pool
	attempt := 0
	err = retry.Do(ctx, retry.DefaultPolicy, retry.AlwaysTransient, func() error {
		attempt++
		p, connErr := pgxpool.NewWithConfig(ctx, cfg)
		if connErr != nil {
			logger.Warn("database pool creation failed, retrying", "attempt", attempt, "error", connErr)
			return connErr
		}

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if pingErr := p.Ping(pingCtx); pingErr != nil {
			p.Close()
			logger.Warn("database ping failed, retrying", "attempt", attempt, "error", pingErr)
			return pingErr
		}

		pool = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: connect after %d attempt(s): %w", attempt, err)
	}

	return pool, nil
}
