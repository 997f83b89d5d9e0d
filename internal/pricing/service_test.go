package pricing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionpricer/internal/codec"
	"optionpricer/internal/core"
	"optionpricer/internal/queue"
	"optionpricer/pkg/logging"
)

func testLogger() core.ILogger {
	l, _ := logging.NewZapLogger("ERROR")
	return l
}

type recordingSink struct {
	mu     sync.Mutex
	quotes []core.OptionQuote
}

func (r *recordingSink) Write(ctx context.Context, q core.OptionQuote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quotes = append(r.quotes, q)
	return nil
}

func (r *recordingSink) snapshot() []core.OptionQuote {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.OptionQuote, len(r.quotes))
	copy(out, r.quotes)
	return out
}

func newTestService(sink core.PersistSink) (*Service, *queue.Channel[string], *queue.Channel[core.OptionQuote]) {
	in := queue.NewChannel[string](100)
	out := queue.NewChannel[core.OptionQuote](100)
	svc := NewService(in, out, nil, sink, testLogger(), 2)
	return svc, in, out
}

func TestPricingService_WithParams(t *testing.T) {
	sink := &recordingSink{}
	svc, in, _ := newTestService(sink)
	svc.Params().Replace(map[string]core.BsmParams{
		"SBER": {Strike: 100, Rate: 0.05, DividendYield: 0, Volatility: 0.2, MaturityYears: 1, TickerID: 1, ConfID: 2},
	})

	svc.Start(context.Background())

	line := codec.Encode(core.PriceSample{Timestamp: 1700000000, Ticker: "SBER", Price: 100, Status: core.StatusOK})
	in.Write(line)

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	svc.Stop()

	got := sink.snapshot()[0]
	assert.Equal(t, core.StatusOK, got.Status)
	assert.Equal(t, 100.0, got.UnderlyingPrice)
	assert.GreaterOrEqual(t, got.OptionPrice, 10.35)
	assert.LessOrEqual(t, got.OptionPrice, 10.55)
	assert.Equal(t, int64(1), got.TickerID)
	assert.Equal(t, int64(2), got.ConfID)
}

func TestPricingService_ErrorPassthrough(t *testing.T) {
	sink := &recordingSink{}
	svc, in, _ := newTestService(sink)
	svc.Start(context.Background())

	line := codec.Encode(core.PriceSample{Timestamp: -1, Ticker: "ERR", Status: core.StatusError, Error: "upstream timeout"})
	in.Write(line)

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	svc.Stop()

	got := sink.snapshot()[0]
	assert.Equal(t, core.StatusError, got.Status)
	assert.Equal(t, "ERR", got.Ticker)
	assert.Equal(t, "upstream timeout", got.Error)
}

func TestPricingService_MissingParamsDroppedSilently(t *testing.T) {
	sink := &recordingSink{}
	svc, in, _ := newTestService(sink)
	svc.Start(context.Background())

	line := codec.Encode(core.PriceSample{Timestamp: 1700000000, Ticker: "UNKNOWN", Price: 50, Status: core.StatusOK})
	in.Write(line)

	time.Sleep(50 * time.Millisecond)
	svc.Stop()

	assert.Empty(t, sink.snapshot())
}

func TestPricingService_DecodeFailureDroppedSilently(t *testing.T) {
	sink := &recordingSink{}
	svc, in, _ := newTestService(sink)
	svc.Start(context.Background())

	in.Write(`not a valid line`)

	time.Sleep(50 * time.Millisecond)
	svc.Stop()

	assert.Empty(t, sink.snapshot())
}

func TestPricingService_StopJoinsAllThreadsAndClosesQueues(t *testing.T) {
	sink := &recordingSink{}
	svc, in, out := newTestService(sink)
	svc.Start(context.Background())

	svc.Stop()
	svc.Stop() // idempotent

	_, ok := in.Read()
	assert.False(t, ok)
	_, ok = out.Read()
	assert.False(t, ok)
}
