package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names exposed over the Prometheus /metrics endpoint.
const (
	MetricTicksFetchedTotal    = "pricing_ticks_fetched_total"
	MetricTicksEmittedTotal    = "pricing_ticks_emitted_total"
	MetricTicksSuppressedTotal = "pricing_ticks_suppressed_total"
	MetricJoinMissesTotal      = "pricing_join_misses_total"
	MetricQuotesPersistedTotal = "pricing_quotes_persisted_total"
	MetricPersistFailuresTotal = "pricing_persist_failures_total"
	MetricQueueDepth           = "pricing_queue_depth"
	MetricFetchLatency         = "pricing_fetch_latency_ms"
	MetricPriceLatency         = "pricing_price_latency_ms"
)

// MetricsHolder holds the initialized OTel instruments shared by both
// stages of the pipeline.
type MetricsHolder struct {
	TicksFetchedTotal    metric.Int64Counter
	TicksEmittedTotal    metric.Int64Counter
	TicksSuppressedTotal metric.Int64Counter
	JoinMissesTotal      metric.Int64Counter
	QuotesPersistedTotal metric.Int64Counter
	PersistFailuresTotal metric.Int64Counter
	QueueDepth           metric.Int64ObservableGauge
	FetchLatency         metric.Float64Histogram
	PriceLatency         metric.Float64Histogram

	mu         sync.RWMutex
	queueDepth map[string]int64
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// GetGlobalMetrics returns the process-wide metrics holder singleton.
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = &MetricsHolder{
			queueDepth: make(map[string]int64),
		}
	})
	return globalMetrics
}

// InitMetrics registers all instruments against meter. Safe to call once
// per process; Setup calls it for the caller.
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	var err error

	m.TicksFetchedTotal, err = meter.Int64Counter(MetricTicksFetchedTotal, metric.WithDescription("Total price samples fetched from the upstream source"))
	if err != nil {
		return err
	}
	m.TicksEmittedTotal, err = meter.Int64Counter(MetricTicksEmittedTotal, metric.WithDescription("Total price samples written to the pipe"))
	if err != nil {
		return err
	}
	m.TicksSuppressedTotal, err = meter.Int64Counter(MetricTicksSuppressedTotal, metric.WithDescription("Total duplicate samples suppressed before emission"))
	if err != nil {
		return err
	}
	m.JoinMissesTotal, err = meter.Int64Counter(MetricJoinMissesTotal, metric.WithDescription("Total samples for which no pricing parameters were found"))
	if err != nil {
		return err
	}
	m.QuotesPersistedTotal, err = meter.Int64Counter(MetricQuotesPersistedTotal, metric.WithDescription("Total option quotes persisted to the store"))
	if err != nil {
		return err
	}
	m.PersistFailuresTotal, err = meter.Int64Counter(MetricPersistFailuresTotal, metric.WithDescription("Total failed persist attempts"))
	if err != nil {
		return err
	}
	m.FetchLatency, err = meter.Float64Histogram(MetricFetchLatency, metric.WithDescription("Upstream source fetch latency"), metric.WithUnit("ms"))
	if err != nil {
		return err
	}
	m.PriceLatency, err = meter.Float64Histogram(MetricPriceLatency, metric.WithDescription("Black-Scholes kernel evaluation time per priced quote"), metric.WithUnit("ms"))
	if err != nil {
		return err
	}

	m.QueueDepth, err = meter.Int64ObservableGauge(MetricQueueDepth, metric.WithDescription("Number of items currently buffered in an internal queue"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for name, depth := range m.queueDepth {
				obs.Observe(depth, metric.WithAttributes(attribute.String("queue", name)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	return nil
}

// SetQueueDepth records the current depth of a named internal queue, read by
// the QueueDepth observable gauge's callback.
func (m *MetricsHolder) SetQueueDepth(name string, depth int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queueDepth[name] = depth
}

// The Inc* / Record* helpers below are nil-safe: InitMetrics is only called
// once telemetry.Setup runs, but pipeline components (and their unit tests)
// may exercise the counters before or without that happening.

func (m *MetricsHolder) IncTicksFetched(ctx context.Context) {
	if m.TicksFetchedTotal != nil {
		m.TicksFetchedTotal.Add(ctx, 1)
	}
}

func (m *MetricsHolder) IncTicksEmitted(ctx context.Context) {
	if m.TicksEmittedTotal != nil {
		m.TicksEmittedTotal.Add(ctx, 1)
	}
}

func (m *MetricsHolder) IncTicksSuppressed(ctx context.Context) {
	if m.TicksSuppressedTotal != nil {
		m.TicksSuppressedTotal.Add(ctx, 1)
	}
}

func (m *MetricsHolder) IncJoinMisses(ctx context.Context) {
	if m.JoinMissesTotal != nil {
		m.JoinMissesTotal.Add(ctx, 1)
	}
}

func (m *MetricsHolder) IncQuotesPersisted(ctx context.Context) {
	if m.QuotesPersistedTotal != nil {
		m.QuotesPersistedTotal.Add(ctx, 1)
	}
}

func (m *MetricsHolder) IncPersistFailures(ctx context.Context) {
	if m.PersistFailuresTotal != nil {
		m.PersistFailuresTotal.Add(ctx, 1)
	}
}

func (m *MetricsHolder) RecordPriceLatency(ctx context.Context, ms float64) {
	if m.PriceLatency != nil {
		m.PriceLatency.Record(ctx, ms)
	}
}

func (m *MetricsHolder) RecordFetchLatency(ctx context.Context, ms float64) {
	if m.FetchLatency != nil {
		m.FetchLatency.Record(ctx, ms)
	}
}
