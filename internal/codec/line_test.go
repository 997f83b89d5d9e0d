package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionpricer/internal/core"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	samples := []core.PriceSample{
		{Timestamp: 1700000000, Ticker: "SBER", Price: 123.45, Status: core.StatusOK, Error: ""},
		{Timestamp: -1, Ticker: "ERR_TICK", Price: 0, Status: core.StatusError, Error: "upstream timeout"},
	}

	for _, s := range samples {
		line := Encode(s)
		got, err := Decode(line)
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestDecode_MissingTickerIsRejected(t *testing.T) {
	_, err := Decode(`{"timestamp":1,"price":1.0,"status":"OK","error":""}`)
	assert.Error(t, err)
}

func TestDecode_MissingNumericFieldsDefaultToZero(t *testing.T) {
	s, err := Decode(`{"ticker":"AAA","status":"OK","error":""}`)
	require.NoError(t, err)
	assert.Equal(t, int64(0), s.Timestamp)
	assert.Equal(t, 0.0, s.Price)
}

func TestDecode_MissingStatusDefaultsToError(t *testing.T) {
	s, err := Decode(`{"timestamp":1,"ticker":"AAA","price":1.0,"error":""}`)
	require.NoError(t, err)
	assert.Equal(t, core.StatusError, s.Status)
}

func TestDecode_ToleratesDifferentKeyOrder(t *testing.T) {
	s, err := Decode(`{"ticker":"AAA","price":99.5,"timestamp":42,"error":"","status":"OK"}`)
	require.NoError(t, err)
	assert.Equal(t, "AAA", s.Ticker)
	assert.Equal(t, 99.5, s.Price)
	assert.Equal(t, int64(42), s.Timestamp)
}
