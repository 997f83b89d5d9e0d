package core

import "context"

// ILogger defines the structured logging interface used across both
// services; the zap-backed implementation lives in pkg/logging.
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}

// PriceSource abstracts the upstream quote fetch. Implementations must
// populate a strictly positive Timestamp on success; any upstream I/O or
// parse failure is surfaced as status=ERROR rather than a Go error, so
// callers never need special-case handling on the error return beyond
// normalizing it into the same shape.
type PriceSource interface {
	Fetch(ctx context.Context, ticker string) (PriceSample, error)
}

// TickerLoader reads the currently-priced ticker set from the relational
// store. Failure leaves the previous snapshot authoritative; callers retry
// on the next reload tick.
type TickerLoader interface {
	LoadTickers(ctx context.Context) ([]string, error)
}

// ParamsLoader reads the per-ticker Black-Scholes parameter set.
type ParamsLoader interface {
	LoadParams(ctx context.Context) (map[string]BsmParams, error)
}

// PersistSink writes one OptionQuote per OK pricing result to the
// relational store. A single failed write must not tear down the pipeline.
type PersistSink interface {
	Write(ctx context.Context, quote OptionQuote) error
}

// IHealthMonitor defines the interface for health monitoring, reused as-is
// by both service binaries.
type IHealthMonitor interface {
	Register(component string, check func() error)
	GetStatus() map[string]string
	IsHealthy() bool
}
