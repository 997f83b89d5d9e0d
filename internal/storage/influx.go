package storage

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"optionpricer/internal/core"
	pricerhttp "optionpricer/pkg/http"
)

// InfluxSink mirrors a computed OptionQuote into InfluxDB as a line-protocol
// write, a secondary time-series export alongside the relational Persist
// Sink for dashboards that want to chart option prices over time rather
// than query the latest row. Configuration is env-var only, matching how
// the rest of this codebase's optional integrations are toggled.
type InfluxSink struct {
	client      *pricerhttp.Client
	org         string
	bucket      string
	token       string
	measurement string
	configured  bool
	logger      core.ILogger
}

// NewInfluxSinkFromEnv builds an InfluxSink from INFLUX_URL, INFLUX_ORG,
// INFLUX_BUCKET, and INFLUX_TOKEN. INFLUX_MEASUREMENT defaults to
// "options". If any of the four required variables is unset, the returned
// sink's Configured method reports false and Write is a no-op; writes are
// never fatal to Stage B.
func NewInfluxSinkFromEnv(logger core.ILogger) *InfluxSink {
	url := os.Getenv("INFLUX_URL")
	org := os.Getenv("INFLUX_ORG")
	bucket := os.Getenv("INFLUX_BUCKET")
	token := os.Getenv("INFLUX_TOKEN")
	measurement := os.Getenv("INFLUX_MEASUREMENT")
	if measurement == "" {
		measurement = "options"
	}

	sink := &InfluxSink{
		org:         org,
		bucket:      bucket,
		token:       token,
		measurement: measurement,
		logger:      logger.WithField("component", "influx_sink"),
	}

	if url == "" || org == "" || bucket == "" || token == "" {
		return sink
	}

	sink.client = pricerhttp.NewClient(url, 5*time.Second, nil)
	sink.configured = true
	return sink
}

// Configured reports whether every required env var was present at
// construction time.
func (s *InfluxSink) Configured() bool {
	return s.configured
}

// Write implements core.PersistSink. A no-op when the sink isn't
// configured; otherwise POSTs a single line-protocol point. Any failure
// is logged and returned; MultiSink, which wraps this sink as a
// secondary, only logs that error and does not pass it on.
func (s *InfluxSink) Write(ctx context.Context, quote core.OptionQuote) error {
	if !s.configured {
		return nil
	}

	line := s.buildLineProtocol(quote)

	path := fmt.Sprintf("/api/v2/write?org=%s&bucket=%s&precision=s", s.org, s.bucket)
	headers := map[string]string{
		"Content-Type":  "text/plain; charset=utf-8",
		"Authorization": "Token " + s.token,
	}

	if _, err := s.client.Post(ctx, path, []byte(line), headers); err != nil {
		s.logger.Warn("influx write failed", "ticker", quote.Ticker, "error", err)
		return fmt.Errorf("storage: influx write: %w", err)
	}

	return nil
}

// buildLineProtocol renders quote as a single InfluxDB line-protocol
// point: <measurement>,ticker=<t> underlying_price=<f>,option_price=<f>,
// status="<s>",error="<e>" [timestamp]. Quotes inside error are replaced
// with single quotes so they never break the field's own quoting.
func (s *InfluxSink) buildLineProtocol(quote core.OptionQuote) string {
	escapedErr := strings.ReplaceAll(quote.Error, `"`, "'")

	var b strings.Builder
	b.WriteString(s.measurement)
	b.WriteString(",ticker=")
	b.WriteString(quote.Ticker)
	b.WriteString(" underlying_price=")
	b.WriteString(strconv.FormatFloat(quote.UnderlyingPrice, 'f', -1, 64))
	b.WriteString(",option_price=")
	b.WriteString(strconv.FormatFloat(quote.OptionPrice, 'f', -1, 64))
	b.WriteString(`,status="`)
	b.WriteString(string(quote.Status))
	b.WriteString(`",error="`)
	b.WriteString(escapedErr)
	b.WriteString(`"`)

	if quote.Timestamp > 0 {
		b.WriteString(" ")
		b.WriteString(strconv.FormatInt(quote.Timestamp, 10))
	}

	return b.String()
}
