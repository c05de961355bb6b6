package provider

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-resty/resty/v2"
	"github.com/moznion/go-optional"
	"github.com/tidwall/gjson"

	"github.com/rxtech-lab/argo-research/internal/types"
)

const defaultYahooUserAgent = "Mozilla/5.0 (X11; Linux x86_64) argo-research"

// YahooClient downloads daily history, including adjusted closes, from the Yahoo Finance chart API.
type YahooClient struct {
	client  *resty.Client
	timeout time.Duration
	now     func() time.Time
}

// NewYahooClient creates a Yahoo Finance client.
func NewYahooClient(config YahooConfig) (*YahooClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = defaultYahooUserAgent
	}

	timeout := timeoutOrDefault(config.Timeout)

	return &YahooClient{
		client: resty.New().
			SetBaseURL(strings.TrimRight(config.BaseURL, "/")).
			SetTimeout(timeout).
			SetHeader("User-Agent", userAgent),
		timeout: timeout,
		now:     time.Now,
	}, nil
}

// Name implements Provider.
func (c *YahooClient) Name() ProviderType {
	return ProviderYahoo
}

// Fetch implements Provider.
func (c *YahooClient) Fetch(ctx context.Context, symbol string) (types.PriceSeries, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"period1":              "0",
			"period2":              strconv.FormatInt(c.now().Unix(), 10),
			"interval":             "1d",
			"events":               "history",
			"includeAdjustedClose": "true",
		}).
		Get("/v8/finance/chart/" + url.PathEscape(symbol))
	if err != nil {
		return types.PriceSeries{}, transportError(ProviderYahoo, symbol, err)
	}

	body := resp.Body()

	// Unknown symbols come back as 404 with a chart error payload.
	if resp.StatusCode() == http.StatusNotFound {
		return types.PriceSeries{}, unavailableError(ProviderYahoo, symbol, chartErrorDescription(body))
	}

	if resp.IsError() {
		return types.PriceSeries{}, transportError(ProviderYahoo, symbol, fmt.Errorf("unexpected status %d", resp.StatusCode()))
	}

	if !gjson.ValidBytes(body) {
		return types.PriceSeries{}, unavailableError(ProviderYahoo, symbol, "response is not JSON")
	}

	if chartErr := gjson.GetBytes(body, "chart.error"); chartErr.Exists() && chartErr.Type != gjson.Null {
		return types.PriceSeries{}, unavailableError(ProviderYahoo, symbol, chartErrorDescription(body))
	}

	series := parseYahooChart(gjson.GetBytes(body, "chart.result.0"))
	if series.IsEmpty() {
		return types.PriceSeries{}, unavailableError(ProviderYahoo, symbol, "no rows with a close price")
	}

	return series, nil
}

func chartErrorDescription(body []byte) string {
	desc := gjson.GetBytes(body, "chart.error.description").String()
	if desc == "" {
		return "no data found"
	}

	return desc
}

// parseYahooChart converts one chart result into a series. Timestamps are mapped to the
// calendar date of the exchange time zone.
func parseYahooChart(result gjson.Result) types.PriceSeries {
	loc := time.UTC
	if tz := result.Get("meta.exchangeTimezoneName").String(); tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}

	timestamps := result.Get("timestamp").Array()
	quote := result.Get("indicators.quote.0")
	adjclose := result.Get("indicators.adjclose.0.adjclose")

	column := func(name string) []gjson.Result {
		return quote.Get(name).Array()
	}

	opens, highs, lows, closes, volumes := column("open"), column("high"), column("low"), column("close"), column("volume")
	adjs := adjclose.Array()

	fields := []types.Field{types.FieldOpen, types.FieldHigh, types.FieldLow, types.FieldClose, types.FieldVolume}
	if adjclose.Exists() {
		fields = append(fields, types.FieldAdjustedClose)
	}

	bars := make([]types.PriceBar, 0, len(timestamps))

	for i, ts := range timestamps {
		bar := types.PriceBar{
			Date:          time.Unix(ts.Int(), 0).In(loc),
			Open:          numberAt(opens, i),
			High:          numberAt(highs, i),
			Low:           numberAt(lows, i),
			Close:         numberAt(closes, i),
			Volume:        numberAt(volumes, i),
			AdjustedClose: optional.None[float64](),
		}

		if adj := numberAt(adjs, i); !math.IsNaN(adj) {
			bar.AdjustedClose = optional.Some(adj)
		}

		bars = append(bars, bar)
	}

	return types.NewPriceSeries(fields, bars)
}

func numberAt(values []gjson.Result, i int) float64 {
	if i >= len(values) || values[i].Type != gjson.Number {
		return math.NaN()
	}

	return values[i].Float()
}
