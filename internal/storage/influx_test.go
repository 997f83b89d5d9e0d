package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"optionpricer/internal/core"
	"optionpricer/pkg/logging"
)

func TestInfluxSinkFromEnv_UnconfiguredWithoutEnv(t *testing.T) {
	for _, key := range []string{"INFLUX_URL", "INFLUX_ORG", "INFLUX_BUCKET", "INFLUX_TOKEN"} {
		os.Unsetenv(key)
	}

	logger, err := logging.NewZapLogger("ERROR")
	assert.NoError(t, err)

	sink := NewInfluxSinkFromEnv(logger)
	assert.False(t, sink.Configured())

	assert.NoError(t, sink.Write(context.Background(), core.OptionQuote{Ticker: "AAA", Status: core.StatusOK}))
}

func TestInfluxSinkFromEnv_ConfiguredWithEnv(t *testing.T) {
	t.Setenv("INFLUX_URL", "http://localhost:8086")
	t.Setenv("INFLUX_ORG", "myorg")
	t.Setenv("INFLUX_BUCKET", "mybucket")
	t.Setenv("INFLUX_TOKEN", "secret-token")

	logger, err := logging.NewZapLogger("ERROR")
	assert.NoError(t, err)

	sink := NewInfluxSinkFromEnv(logger)
	assert.True(t, sink.Configured())
}

func TestInfluxSink_BuildLineProtocol(t *testing.T) {
	logger, err := logging.NewZapLogger("ERROR")
	assert.NoError(t, err)

	sink := &InfluxSink{measurement: "options", logger: logger}

	line := sink.buildLineProtocol(core.OptionQuote{
		Timestamp:       1700000000,
		Ticker:          "AAPL",
		Status:          core.StatusOK,
		UnderlyingPrice: 150.25,
		OptionPrice:     3.42,
	})

	assert.Equal(t, `options,ticker=AAPL underlying_price=150.25,option_price=3.42,status="OK",error="" 1700000000`, line)
}

func TestInfluxSink_BuildLineProtocol_EscapesQuotesInError(t *testing.T) {
	logger, err := logging.NewZapLogger("ERROR")
	assert.NoError(t, err)

	sink := &InfluxSink{measurement: "options", logger: logger}

	line := sink.buildLineProtocol(core.OptionQuote{
		Ticker: "AAPL",
		Status: core.StatusError,
		Error:  `upstream said "bad request"`,
	})

	assert.Contains(t, line, `error="upstream said 'bad request'"`)
}
