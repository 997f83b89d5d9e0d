package pricing

import (
	"context"
	"runtime"
	"sync"
	"time"

	"optionpricer/internal/bsm"
	"optionpricer/internal/codec"
	"optionpricer/internal/core"
	"optionpricer/internal/queue"
	"optionpricer/internal/telemetry"
	"optionpricer/pkg/concurrency"
)

// DefaultParamsReloadInterval is how often the config reloader re-queries
// the Parameter Loader for an updated ParamsMap.
const DefaultParamsReloadInterval = 5 * time.Second

// Service implements Stage B. Four thread kinds run concurrently: a single
// ingest dispatcher, a fixed worker pool (decode + join + price), a single
// config reloader, and a single persist writer.
type Service struct {
	in     *queue.Channel[string]
	out    *queue.Channel[core.OptionQuote]
	params *ParamsMap

	paramsLoader core.ParamsLoader
	sink         core.PersistSink
	logger       core.ILogger

	numWorkers     int
	reloadInterval time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	pool    *concurrency.WorkerPool
}

// NewService builds a Stage B pricing service reading lines from in and
// publishing computed OptionQuotes to out. numWorkers <= 0 defaults to
// runtime.NumCPU(). paramsLoader may be nil to disable the reloader
// (tests can seed the ParamsMap directly via Params()).
func NewService(in *queue.Channel[string], out *queue.Channel[core.OptionQuote], paramsLoader core.ParamsLoader, sink core.PersistSink, logger core.ILogger, numWorkers int) *Service {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	return &Service{
		in:             in,
		out:            out,
		params:         NewParamsMap(),
		paramsLoader:   paramsLoader,
		sink:           sink,
		logger:         logger.WithField("component", "pricing_service"),
		numWorkers:     numWorkers,
		reloadInterval: DefaultParamsReloadInterval,
	}
}

// Params exposes the live ParamsMap so tests and the bootstrap code can
// seed it directly, bypassing the reloader.
func (s *Service) Params() *ParamsMap {
	return s.params
}

// WithReloadInterval overrides the config reload cadence; main sets it
// from config, and tests may shorten it.
func (s *Service) WithReloadInterval(d time.Duration) *Service {
	s.reloadInterval = d
	return s
}

// Start spawns the dispatcher, worker pool, writer, and (if a loader was
// given) the config reloader.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.pool = concurrency.NewWorkerPool(concurrency.PoolConfig{
		Name:        "pricing_workers",
		MaxWorkers:  s.numWorkers,
		MaxCapacity: 10000,
	}, s.logger)
	s.mu.Unlock()

	s.wg.Add(1)
	go s.writeLoop(ctx)

	s.wg.Add(1)
	go s.dispatchLoop(ctx)

	if s.paramsLoader != nil {
		s.wg.Add(1)
		go s.reloadLoop(ctx)
	}
}

// Stop drains the pipeline in order: closing the inbound queue unblocks
// the dispatcher; once it exits, no further tasks are submitted and the
// worker pool is joined; the output queue is then closed, which lets the
// writer finish; finally the reloader is joined. Idempotent.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.in.Close()
	s.wg.Wait()
}

// dispatchLoop reads raw lines from the inbound queue and submits one
// pricing task per line to the worker pool, which decodes it. Per-ticker FIFO from the
// producer is preserved up to this fan-out point only.
func (s *Service) dispatchLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		line, ok := s.in.Read()
		if !ok {
			break
		}
		telemetry.GetGlobalMetrics().SetQueueDepth("pricing_in", int64(s.in.Len()))

		l := line
		_ = s.pool.Submit(func() {
			s.processLine(ctx, l)
		})
	}

	// No more lines will be submitted; join every worker before letting the
	// writer see a closed output queue, so no in-flight quote is lost.
	s.pool.Stop()
	s.logger.Info("pricing worker pool stopped", "stats", s.pool.Stats())
	s.out.Close()
}

// processLine is run inside a worker. It never blocks while holding the
// ParamsMap lock, and never lets a decode or pricing failure escape the
// goroutine.
func (s *Service) processLine(ctx context.Context, line string) {
	sample, err := codec.Decode(line)
	if err != nil {
		return
	}

	quote := core.OptionQuote{
		Timestamp:       sample.Timestamp,
		Ticker:          sample.Ticker,
		UnderlyingPrice: sample.Price,
	}

	if sample.Status != core.StatusOK {
		quote.Status = core.StatusError
		quote.Error = sample.Error
		if quote.Error == "" {
			quote.Error = "Upstream price error"
		}
		s.out.Write(quote)
		return
	}

	params, found := s.params.Lookup(sample.Ticker)
	if !found {
		telemetry.GetGlobalMetrics().IncJoinMisses(ctx)
		return
	}

	start := time.Now()
	price := bsm.Call(sample.Price, params.Strike, params.Rate, params.DividendYield, params.Volatility, params.MaturityYears)
	telemetry.GetGlobalMetrics().RecordPriceLatency(ctx, float64(time.Since(start).Microseconds())/1000)

	quote.Status = core.StatusOK
	quote.OptionPrice = price
	quote.TickerID = params.TickerID
	quote.ConfID = params.ConfID

	s.out.Write(quote)
}

// writeLoop is the single writer thread: it hands each OptionQuote to the
// Persist Sink in FIFO order, imposing the single total persistence order
// the spec requires regardless of worker fan-out reordering.
func (s *Service) writeLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		quote, ok := s.out.Read()
		if !ok {
			return
		}

		if err := s.sink.Write(ctx, quote); err != nil {
			s.logger.Error("persist write failed", "ticker", quote.Ticker, "error", err)
			telemetry.GetGlobalMetrics().IncPersistFailures(ctx)
			continue
		}
		if quote.Status == core.StatusOK {
			telemetry.GetGlobalMetrics().IncQuotesPersisted(ctx)
		}
	}
}

// reloadLoop periodically calls the Parameter Loader and swaps the
// ParamsMap wholesale. A failed load retains the previous snapshot.
func (s *Service) reloadLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.reloadInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			loaded, err := s.paramsLoader.LoadParams(ctx)
			if err != nil {
				s.logger.Warn("params reload failed, retaining previous snapshot", "error", err)
				continue
			}
			s.params.Replace(loaded)
		}
	}
}
