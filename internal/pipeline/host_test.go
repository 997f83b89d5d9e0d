package pipeline

import (
	"os"
	"testing"

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

func TestProducerConsumer_RoundTrip(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)

	out := queue.NewChannel[core.PriceSample](10)
	in := queue.NewChannel[string](10)

	out.Write(core.PriceSample{Timestamp: 1700000000, Ticker: "AAA", Price: 10, Status: core.StatusOK})
	out.Write(core.PriceSample{Timestamp: -1, Ticker: "ERR", Status: core.StatusError, Error: "boom"})
	out.Close()

	done := make(chan struct{})
	go func() {
		RunConsumer(r, in, testLogger())
		close(done)
	}()

	err = RunProducer(out, w, testLogger())
	require.NoError(t, err)
	w.Close()
	<-done

	line1, ok := in.Read()
	require.True(t, ok)
	assert.Contains(t, line1, `"ticker":"AAA"`)

	line2, ok := in.Read()
	require.True(t, ok)
	assert.Contains(t, line2, `"ticker":"ERR"`)

	_, ok = in.Read()
	assert.False(t, ok)
}
