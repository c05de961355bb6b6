package provider

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-research/internal/types"
)

// StooqClient downloads daily history as CSV from stooq.
type StooqClient struct {
	client  *resty.Client
	timeout time.Duration
}

// NewStooqClient creates a stooq client.
func NewStooqClient(config StooqConfig) (*StooqClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	timeout := timeoutOrDefault(config.Timeout)

	return &StooqClient{
		client:  resty.New().SetBaseURL(strings.TrimRight(config.BaseURL, "/")).SetTimeout(timeout),
		timeout: timeout,
	}, nil
}

// Name implements Provider.
func (c *StooqClient) Name() ProviderType {
	return ProviderStooq
}

// Fetch implements Provider.
func (c *StooqClient) Fetch(ctx context.Context, symbol string) (types.PriceSeries, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"s": symbol, "i": "d"}).
		Get("/q/d/l/")
	if err != nil {
		return types.PriceSeries{}, transportError(ProviderStooq, symbol, err)
	}

	if resp.IsError() {
		return types.PriceSeries{}, transportError(ProviderStooq, symbol, fmt.Errorf("unexpected status %d", resp.StatusCode()))
	}

	series, err := parseStooqCSV(resp.Body())
	if err != nil {
		return types.PriceSeries{}, unavailableError(ProviderStooq, symbol, err.Error())
	}

	if series.IsEmpty() {
		return types.PriceSeries{}, unavailableError(ProviderStooq, symbol, "no rows with a close price")
	}

	return series, nil
}

var stooqColumns = map[string]types.Field{
	"open":   types.FieldOpen,
	"high":   types.FieldHigh,
	"low":    types.FieldLow,
	"close":  types.FieldClose,
	"volume": types.FieldVolume,
}

// parseStooqCSV reads a Date,Open,High,Low,Close,Volume document. Every column is required.
// Unparseable numbers become NaN and rows without a valid date or close are dropped.
func parseStooqCSV(body []byte) (types.PriceSeries, error) {
	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return types.PriceSeries{}, fmt.Errorf("failed to read header: %w", err)
	}

	dateIdx := -1
	fieldIdx := make(map[types.Field]int)

	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "date" {
			dateIdx = i

			continue
		}

		if f, ok := stooqColumns[key]; ok {
			fieldIdx[f] = i
		}
	}

	if dateIdx < 0 {
		return types.PriceSeries{}, fmt.Errorf("missing Date column in %q", strings.Join(header, ","))
	}

	var missing []string

	for _, f := range types.OHLCVFields {
		if _, ok := fieldIdx[f]; !ok {
			missing = append(missing, string(f))
		}
	}

	// stooq leaves out Volume for indices and currencies
	if len(missing) > 0 {
		return types.PriceSeries{}, fmt.Errorf("missing %s column in %q", strings.Join(missing, ", "), strings.Join(header, ","))
	}

	fields := append([]types.Field(nil), types.OHLCVFields...)

	var bars []types.PriceBar

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}

		if err != nil {
			return types.PriceSeries{}, fmt.Errorf("failed to read row: %w", err)
		}

		if dateIdx >= len(record) {
			continue
		}

		date, err := time.Parse(time.DateOnly, strings.TrimSpace(record[dateIdx]))
		if err != nil {
			continue
		}

		value := func(f types.Field) float64 {
			idx, ok := fieldIdx[f]
			if !ok || idx >= len(record) {
				return math.NaN()
			}

			return parseNumber(record[idx])
		}

		bars = append(bars, types.PriceBar{
			Date:          date,
			Open:          value(types.FieldOpen),
			High:          value(types.FieldHigh),
			Low:           value(types.FieldLow),
			Close:         value(types.FieldClose),
			Volume:        value(types.FieldVolume),
			AdjustedClose: optional.None[float64](),
		})
	}

	return types.NewPriceSeries(fields, bars), nil
}

func parseNumber(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}

	return v
}
