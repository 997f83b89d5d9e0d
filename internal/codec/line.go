// Package codec implements the canonical line representation of a
// PriceSample carried over the named-pipe between the two services.
package codec

import (
	"fmt"
	"strconv"
	"strings"

	"optionpricer/internal/core"
)

// Encode serializes s as a single line: a flat pseudo-JSON object with keys
// in the fixed order timestamp, ticker, price, status, error, terminated by
// a caller-appended newline. No escaping is performed on string fields;
// tickers or diagnostics containing `"` or `,` will corrupt the stream.
// This is a known, deliberate limitation of the wire format, not a bug.
func Encode(s core.PriceSample) string {
	return fmt.Sprintf(
		`{"timestamp":%d,"ticker":"%s","price":%s,"status":"%s","error":"%s"}`,
		s.Timestamp, s.Ticker, formatFloat(s.Price), s.Status, s.Error,
	)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Decode parses one encoded line back into a PriceSample. The decoder is
// tolerant: it locates each key by substring scan rather than parsing JSON,
// and reads the value up to the next delimiter. A missing ticker is the
// only hard rejection; missing numeric fields default to 0 and a missing
// status defaults to ERROR.
func Decode(line string) (core.PriceSample, error) {
	var s core.PriceSample

	ticker, ok := findStringField(line, "ticker")
	if !ok || ticker == "" {
		return s, fmt.Errorf("codec: line missing ticker field")
	}
	s.Ticker = ticker

	if ts, ok := findNumericField(line, "timestamp"); ok {
		if v, err := strconv.ParseInt(strings.TrimSpace(ts), 10, 64); err == nil {
			s.Timestamp = v
		}
	}

	if p, ok := findNumericField(line, "price"); ok {
		if v, err := strconv.ParseFloat(strings.TrimSpace(p), 64); err == nil {
			s.Price = v
		}
	}

	if status, ok := findStringField(line, "status"); ok && status != "" {
		s.Status = core.SampleStatus(status)
	} else {
		s.Status = core.StatusError
	}

	if errMsg, ok := findStringField(line, "error"); ok {
		s.Error = errMsg
	}

	return s, nil
}

// findStringField locates `"key":"value"` and returns value.
func findStringField(line, key string) (string, bool) {
	marker := `"` + key + `":"`
	idx := strings.Index(line, marker)
	if idx < 0 {
		return "", false
	}
	start := idx + len(marker)
	end := strings.Index(line[start:], `"`)
	if end < 0 {
		return "", false
	}
	return line[start : start+end], true
}

// findNumericField locates `"key":value` and returns the raw digits up to
// the next comma or closing brace.
func findNumericField(line, key string) (string, bool) {
	marker := `"` + key + `":`
	idx := strings.Index(line, marker)
	if idx < 0 {
		return "", false
	}
	start := idx + len(marker)
	rest := line[start:]
	end := strings.IndexAny(rest, ",}")
	if end < 0 {
		end = len(rest)
	}
	return rest[:end], true
}
