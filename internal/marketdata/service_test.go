package marketdata

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionpricer/internal/core"
	"optionpricer/internal/queue"
	"optionpricer/pkg/logging"
)

func testLogger() core.ILogger {
	l, _ := logging.NewZapLogger("ERROR")
	return l
}

// monotoneSource hands out a strictly increasing timestamp per ticker on
// every call, simulating a live upstream feed.
type monotoneSource struct {
	mu   sync.Mutex
	next map[string]int64
}

func newMonotoneSource() *monotoneSource {
	return &monotoneSource{next: make(map[string]int64)}
}

func (m *monotoneSource) Fetch(ctx context.Context, ticker string) (core.PriceSample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next[ticker]++
	return core.PriceSample{
		Timestamp: m.next[ticker],
		Ticker:    ticker,
		Price:     100,
		Status:    core.StatusOK,
	}, nil
}

// alwaysErrorSource fails every fetch.
type alwaysErrorSource struct{ calls int32 }

func (s *alwaysErrorSource) Fetch(ctx context.Context, ticker string) (core.PriceSample, error) {
	atomic.AddInt32(&s.calls, 1)
	return core.PriceSample{}, fmt.Errorf("upstream unreachable")
}

func TestService_PerTickerFanOut(t *testing.T) {
	out := queue.NewChannel[core.PriceSample](100)
	svc := NewService(newMonotoneSource(), nil, out, testLogger(), []string{"AAA", "BBB", "CCC"}).
		WithIntervals(5*time.Millisecond, time.Hour)

	ctx := context.Background()
	svc.Start(ctx)
	defer svc.Stop()

	seen := map[string]bool{}
	for i := 0; i < 30; i++ {
		sample, ok := out.Read()
		require.True(t, ok)
		seen[sample.Ticker] = true
		if sample.Status == core.StatusOK {
			assert.GreaterOrEqual(t, sample.Price, 0.0)
		}
	}
	assert.True(t, seen["AAA"])
	assert.True(t, seen["BBB"])
	assert.True(t, seen["CCC"])
}

func TestService_ErrorPropagation(t *testing.T) {
	out := queue.NewChannel[core.PriceSample](10)
	svc := NewService(&alwaysErrorSource{}, nil, out, testLogger(), []string{"ERR_TICK"}).
		WithIntervals(5*time.Millisecond, time.Hour)

	ctx := context.Background()
	svc.Start(ctx)
	defer svc.Stop()

	sample, ok := out.Read()
	require.True(t, ok)
	assert.Equal(t, "ERR_TICK", sample.Ticker)
	assert.Equal(t, core.StatusError, sample.Status)
	assert.NotEmpty(t, sample.Error)
}

func TestService_DynamicAddition(t *testing.T) {
	out := queue.NewChannel[core.PriceSample](100)
	svc := NewService(newMonotoneSource(), nil, out, testLogger(), []string{"AAA"}).
		WithIntervals(5*time.Millisecond, time.Hour)

	ctx := context.Background()
	svc.Start(ctx)
	defer svc.Stop()

	time.Sleep(50 * time.Millisecond)
	svc.AddTickers(ctx, []string{"BBB"})

	deadline := time.After(500 * time.Millisecond)
	for {
		select {
		case <-deadline:
			t.Fatal("BBB never emitted an OK sample")
		default:
		}
		sample, ok := out.Read()
		require.True(t, ok)
		if sample.Ticker == "BBB" && sample.Status == core.StatusOK {
			return
		}
	}
}

func TestService_StopIsIdempotentAndClosesQueue(t *testing.T) {
	out := queue.NewChannel[core.PriceSample](10)
	svc := NewService(newMonotoneSource(), nil, out, testLogger(), []string{"AAA"}).
		WithIntervals(5*time.Millisecond, time.Hour)

	svc.Start(context.Background())
	svc.Stop()
	svc.Stop()

	for {
		_, ok := out.Read()
		if !ok {
			return
		}
	}
}

func TestService_AddTickersIsIdempotentOnKnownTicker(t *testing.T) {
	out := queue.NewChannel[core.PriceSample](100)
	src := &alwaysErrorSource{}
	svc := NewService(src, nil, out, testLogger(), []string{"AAA"}).
		WithIntervals(5*time.Millisecond, time.Hour)

	ctx := context.Background()
	svc.Start(ctx)
	svc.AddTickers(ctx, []string{"AAA"})
	time.Sleep(30 * time.Millisecond)
	svc.Stop()

	assert.Equal(t, 1, len(svc.known))
}
