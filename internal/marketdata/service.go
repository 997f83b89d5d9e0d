package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"optionpricer/internal/core"
	"optionpricer/internal/queue"
	"optionpricer/internal/telemetry"
)

// DefaultPollInterval is the per-ticker poll cadence (spec.md S6).
const DefaultPollInterval = 500 * time.Millisecond

// DefaultTickerReloadInterval is how often the ticker-set reloader checks
// the Ticker Loader for newly configured tickers.
const DefaultTickerReloadInterval = 5 * time.Second

// Service implements Stage A: one polling goroutine per ticker, a
// strictly-monotone-per-ticker dedup rule, and a background reloader that
// discovers newly configured tickers. It publishes deduplicated
// PriceSamples onto Out.
type Service struct {
	source       core.PriceSource
	tickerLoader core.TickerLoader
	out          *queue.Channel[core.PriceSample]
	logger       core.ILogger

	pollInterval   time.Duration
	reloadInterval time.Duration

	mu      sync.Mutex
	known   map[string]struct{}
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewService builds a Stage A market-data service. initialTickers seeds the
// known ticker set; out is the downstream queue PriceSamples are published
// to. tickerLoader may be nil, in which case the ticker set never grows
// beyond initialTickers and AddTickers calls.
func NewService(source core.PriceSource, tickerLoader core.TickerLoader, out *queue.Channel[core.PriceSample], logger core.ILogger, initialTickers []string) *Service {
	known := make(map[string]struct{}, len(initialTickers))
	for _, t := range initialTickers {
		known[t] = struct{}{}
	}

	return &Service{
		source:         source,
		tickerLoader:   tickerLoader,
		out:            out,
		logger:         logger.WithField("component", "marketdata_service"),
		pollInterval:   DefaultPollInterval,
		reloadInterval: DefaultTickerReloadInterval,
		known:          known,
	}
}

// WithIntervals overrides the poll and reload cadence; main sets them from
// config, and tests shorten them.
func (s *Service) WithIntervals(poll, reload time.Duration) *Service {
	s.pollInterval = poll
	s.reloadInterval = reload
	return s
}

// Start spawns a worker for every currently known ticker plus the
// ticker-set reloader. Start is not safe to call again after Stop.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	tickers := make([]string, 0, len(s.known))
	for t := range s.known {
		tickers = append(tickers, t)
	}
	s.mu.Unlock()

	for _, t := range tickers {
		s.spawnWorker(ctx, t)
	}

	if s.tickerLoader != nil {
		s.wg.Add(1)
		go s.reloadLoop(ctx)
	}
}

// AddTickers registers every ticker not already known. If the service is
// running, a worker is spawned immediately for each newly added ticker.
// Already-known tickers are ignored. Safe for concurrent use, including
// concurrent Stop.
func (s *Service) AddTickers(ctx context.Context, tickers []string) {
	// Workers are spawned under the lock so that a concurrent Stop either
	// sees them in its wg.Wait or has already cleared running.
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tickers {
		if _, ok := s.known[t]; ok {
			continue
		}
		s.known[t] = struct{}{}
		if s.running {
			s.spawnWorker(ctx, t)
		}
	}
}

// Stop clears the running flag, joins every worker and the reloader, then
// closes the output queue. Idempotent.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.out.Close()
}

func (s *Service) spawnWorker(ctx context.Context, ticker string) {
	s.wg.Add(1)
	go s.pollLoop(ctx, ticker)
}

// pollLoop is the per-ticker worker: fetch, decide emission, sleep, repeat
// until the shared stop channel closes.
func (s *Service) pollLoop(ctx context.Context, ticker string) {
	defer s.wg.Done()

	lastTS := int64(-1)
	stopCh := s.stopCh

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		sample := s.fetchSample(ctx, ticker)
		telemetry.GetGlobalMetrics().IncTicksFetched(ctx)

		switch {
		case sample.Status == core.StatusOK && sample.Timestamp > lastTS:
			lastTS = sample.Timestamp
			s.emit(ctx, sample)
		case sample.Status == core.StatusOK:
			telemetry.GetGlobalMetrics().IncTicksSuppressed(ctx)
		default:
			s.emit(ctx, sample)
		}

		select {
		case <-stopCh:
			return
		case <-time.After(s.pollInterval):
		}
	}
}

// fetchSample calls the Source and normalizes any error into an ERROR
// sample, since no worker goroutine may propagate a panic-free error up
// and terminate the process.
func (s *Service) fetchSample(ctx context.Context, ticker string) (sample core.PriceSample) {
	defer func() {
		if r := recover(); r != nil {
			sample = core.PriceSample{
				Timestamp: -1,
				Ticker:    ticker,
				Status:    core.StatusError,
				Error:     fmt.Sprintf("source panicked: %v", r),
			}
		}
	}()

	result, err := s.source.Fetch(ctx, ticker)
	if err != nil {
		return core.PriceSample{
			Timestamp: -1,
			Ticker:    ticker,
			Status:    core.StatusError,
			Error:     err.Error(),
		}
	}
	return result
}

func (s *Service) emit(ctx context.Context, sample core.PriceSample) {
	s.out.Write(sample)
	telemetry.GetGlobalMetrics().IncTicksEmitted(ctx)
	telemetry.GetGlobalMetrics().SetQueueDepth("marketdata_out", int64(s.out.Len()))
}

// reloadLoop periodically calls the Ticker Loader and adds any
// newly-discovered tickers. A failed load leaves the known set untouched;
// the next tick retries.
func (s *Service) reloadLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.reloadInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			loaded, err := s.tickerLoader.LoadTickers(ctx)
			if err != nil {
				s.logger.Warn("ticker reload failed, retaining previous snapshot", "error", err)
				continue
			}
			s.AddTickers(ctx, loaded)
		}
	}
}
