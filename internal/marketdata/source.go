// Package marketdata implements Stage A: per-ticker polling, deduplication,
// and the upstream quote Source.
package marketdata

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"optionpricer/internal/core"
	apphttp "optionpricer/pkg/http"
)

// HTTPSource fetches the last traded price for a ticker from the MOEX ISS
// JSON API, scanning the response body by substring rather than parsing
// full JSON, mirroring the upstream client this service replaces.
type HTTPSource struct {
	client *apphttp.Client
}

// NewHTTPSource builds a Source against the MOEX ISS endpoint.
func NewHTTPSource(timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		client: apphttp.NewClient("https://iss.moex.com", timeout, nil),
	}
}

// Fetch implements core.PriceSource. It never returns a non-nil error for
// an otherwise well-formed request; failures are folded into the returned
// PriceSample's ERROR status, matching the decorator contract that
// downstream callers only branch on Status.
func (s *HTTPSource) Fetch(ctx context.Context, ticker string) (core.PriceSample, error) {
	body, err := s.fetchBody(ctx, ticker)
	if err != nil {
		return core.PriceSample{
			Timestamp: -1,
			Ticker:    ticker,
			Status:    core.StatusError,
			Error:     fmt.Sprintf("moex fetch failed: %v", err),
		}, nil
	}

	price, systime, err := parseLastAndSysTime(body)
	if err != nil {
		return core.PriceSample{
			Timestamp: -1,
			Ticker:    ticker,
			Status:    core.StatusError,
			Error:     fmt.Sprintf("moex response unparsable: %v", err),
		}, nil
	}

	ts, err := parseSysTime(systime)
	if err != nil {
		return core.PriceSample{
			Timestamp: -1,
			Ticker:    ticker,
			Status:    core.StatusError,
			Error:     fmt.Sprintf("moex systime unparsable: %v", err),
		}, nil
	}

	return core.PriceSample{
		Timestamp: ts,
		Ticker:    ticker,
		Price:     price,
		Status:    core.StatusOK,
	}, nil
}

func (s *HTTPSource) fetchBody(ctx context.Context, ticker string) ([]byte, error) {
	path := fmt.Sprintf("/iss/engines/stock/markets/shares/boards/tqbr/securities/%s.json", strings.ToLower(ticker))
	return s.client.Get(ctx, path, map[string]string{"iss.meta": "off"})
}

// parseLastAndSysTime locates the LAST and SYSTIME columns inside the
// marketdata block's single data row, by substring scan rather than a full
// JSON parse.
func parseLastAndSysTime(body []byte) (price float64, systime string, err error) {
	text := string(body)

	lastIdx, err := findColumnIndex(text, `"LAST"`)
	if err != nil {
		return 0, "", err
	}
	sysIdx, err := findColumnIndex(text, `"SYSTIME"`)
	if err != nil {
		return 0, "", err
	}

	row, err := findFirstDataRow(text)
	if err != nil {
		return 0, "", err
	}

	tokens := splitRow(row)
	if lastIdx >= len(tokens) || sysIdx >= len(tokens) {
		return 0, "", fmt.Errorf("marketdata row shorter than expected columns")
	}

	lastToken := tokens[lastIdx]
	if lastToken == "" || lastToken == "null" {
		return 0, "", fmt.Errorf("LAST price value not found")
	}
	price, err = strconv.ParseFloat(lastToken, 64)
	if err != nil {
		return 0, "", fmt.Errorf("LAST price unparsable: %w", err)
	}

	sysToken := strings.Trim(tokens[sysIdx], `"`)
	if sysToken == "" || sysToken == "null" {
		return 0, "", fmt.Errorf("SYSTIME is missing")
	}

	return price, sysToken, nil
}

func findColumnIndex(body, columnName string) (int, error) {
	pos := strings.Index(body, `"marketdata"`)
	if pos < 0 {
		return 0, fmt.Errorf("marketdata section not found")
	}
	columnsPos := strings.Index(body[pos:], `"columns"`)
	if columnsPos < 0 {
		return 0, fmt.Errorf("columns not found")
	}
	columnsPos += pos

	open := strings.Index(body[columnsPos:], "[")
	if open < 0 {
		return 0, fmt.Errorf("columns array malformed")
	}
	open += columnsPos
	close := strings.Index(body[open:], "]")
	if close < 0 {
		return 0, fmt.Errorf("columns array malformed")
	}
	close += open

	for i, tok := range splitRow(body[open+1 : close]) {
		if tok == columnName {
			return i, nil
		}
	}
	return 0, fmt.Errorf("column %s not found", columnName)
}

func findFirstDataRow(body string) (string, error) {
	pos := strings.Index(body, `"marketdata"`)
	if pos < 0 {
		return "", fmt.Errorf("marketdata section not found")
	}
	dataPos := strings.Index(body[pos:], `"data"`)
	if dataPos < 0 {
		return "", fmt.Errorf("data not found")
	}
	dataPos += pos

	outerOpen := strings.Index(body[dataPos:], "[")
	if outerOpen < 0 {
		return "", fmt.Errorf("data array malformed")
	}
	outerOpen += dataPos

	innerOpen := strings.Index(body[outerOpen+1:], "[")
	if innerOpen < 0 {
		return "", fmt.Errorf("data row malformed")
	}
	innerOpen += outerOpen + 1
	innerClose := strings.Index(body[innerOpen+1:], "]")
	if innerClose < 0 {
		return "", fmt.Errorf("data row malformed")
	}
	innerClose += innerOpen + 1

	return body[innerOpen+1 : innerClose], nil
}

func splitRow(row string) []string {
	parts := strings.Split(row, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// parseSysTime converts a "YYYY-MM-DD HH:MM:SS" SYSTIME value (assumed UTC)
// to epoch seconds.
func parseSysTime(systime string) (int64, error) {
	t, err := time.Parse("2006-01-02 15:04:05", systime)
	if err != nil {
		return 0, fmt.Errorf("SYSTIME has unexpected format: %w", err)
	}
	return t.UTC().Unix(), nil
}
