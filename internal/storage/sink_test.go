package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"optionpricer/internal/core"
	"optionpricer/pkg/logging"
)

func TestPersistSink_NonOKQuoteIsNoop(t *testing.T) {
	logger, err := logging.NewZapLogger("ERROR")
	assert.NoError(t, err)

	sink := NewPersistSink("", logger)
	err = sink.Write(context.Background(), core.OptionQuote{
		Status: core.StatusError,
		Ticker: "AAA",
	})
	assert.NoError(t, err)
}
