package storage

import (
	"context"

	"optionpricer/internal/core"
)

// MultiSink fans an OptionQuote write out to one primary sink and zero or
// more secondary sinks, isolating a secondary's failure from the
// pipeline's reported write outcome: a down InfluxDB must never turn into
// a dropped Postgres row.
type MultiSink struct {
	primary   core.PersistSink
	secondary []core.PersistSink
	logger    core.ILogger
}

// NewMultiSink wraps primary with any number of secondary sinks.
func NewMultiSink(primary core.PersistSink, logger core.ILogger, secondary ...core.PersistSink) *MultiSink {
	return &MultiSink{
		primary:   primary,
		secondary: secondary,
		logger:    logger.WithField("component", "multi_sink"),
	}
}

// Write implements core.PersistSink. Secondary sinks are written first and
// their errors only logged; the primary's error is the one returned to
// the caller.
func (m *MultiSink) Write(ctx context.Context, quote core.OptionQuote) error {
	for _, sink := range m.secondary {
		if err := sink.Write(ctx, quote); err != nil {
			m.logger.Warn("secondary sink write failed", "ticker", quote.Ticker, "error", err)
		}
	}

	return m.primary.Write(ctx, quote)
}
