package provider

import (
	"context"
	"errors"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-research/internal/types"
)

const (
	binanceDailyInterval = "1d"
	// binancePageSize is the largest page the klines endpoint serves.
	binancePageSize = 1000
	// binanceInvalidSymbol is the API error code for an unknown trading pair.
	binanceInvalidSymbol = -1121
)

// binanceDefaultSince predates the first Binance listing.
var binanceDefaultSince = time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)

// BinanceKlinesService is the subset of the binance klines service used by BinanceClient.
type BinanceKlinesService interface {
	Symbol(symbol string) BinanceKlinesService
	Interval(interval string) BinanceKlinesService
	StartTime(startTime int64) BinanceKlinesService
	EndTime(endTime int64) BinanceKlinesService
	Limit(limit int) BinanceKlinesService
	Do(ctx context.Context, opts ...binance.RequestOption) ([]*binance.Kline, error)
}

// BinanceAPIClient is the subset of the binance client used by BinanceClient.
type BinanceAPIClient interface {
	NewKlinesService() BinanceKlinesService
}

type binanceRESTClient struct {
	client *binance.Client
}

func (c *binanceRESTClient) NewKlinesService() BinanceKlinesService {
	return &binanceKlines{service: c.client.NewKlinesService()}
}

type binanceKlines struct {
	service *binance.KlinesService
}

func (k *binanceKlines) Symbol(symbol string) BinanceKlinesService {
	k.service.Symbol(symbol)

	return k
}

func (k *binanceKlines) Interval(interval string) BinanceKlinesService {
	k.service.Interval(interval)

	return k
}

func (k *binanceKlines) StartTime(startTime int64) BinanceKlinesService {
	k.service.StartTime(startTime)

	return k
}

func (k *binanceKlines) EndTime(endTime int64) BinanceKlinesService {
	k.service.EndTime(endTime)

	return k
}

func (k *binanceKlines) Limit(limit int) BinanceKlinesService {
	k.service.Limit(limit)

	return k
}

func (k *binanceKlines) Do(ctx context.Context, opts ...binance.RequestOption) ([]*binance.Kline, error) {
	return k.service.Do(ctx, opts...)
}

// BinanceClient downloads daily klines from Binance spot markets.
type BinanceClient struct {
	apiClient BinanceAPIClient
	timeout   time.Duration
	since     time.Time
	now       func() time.Time
}

// NewBinanceClient creates a Binance client. Public market data needs no credentials.
func NewBinanceClient(config BinanceConfig) (*BinanceClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client := NewBinanceClientWithAPI(&binanceRESTClient{client: binance.NewClient("", "")})
	client.timeout = timeoutOrDefault(config.Timeout)

	if !config.Since.IsZero() {
		client.since = config.Since
	}

	return client, nil
}

// NewBinanceClientWithAPI creates a BinanceClient around an existing API client.
func NewBinanceClientWithAPI(api BinanceAPIClient) *BinanceClient {
	return &BinanceClient{
		apiClient: api,
		timeout:   DefaultTimeout,
		since:     binanceDefaultSince,
		now:       time.Now,
	}
}

// Name implements Provider.
func (c *BinanceClient) Name() ProviderType {
	return ProviderBinance
}

// Fetch implements Provider. It pages through the klines endpoint until the end time is reached.
func (c *BinanceClient) Fetch(ctx context.Context, symbol string) (types.PriceSeries, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endTimeMillis := c.now().UnixMilli()
	currentStartTime := c.since.UnixMilli()

	var bars []types.PriceBar

	for currentStartTime < endTimeMillis {
		klines, err := c.apiClient.NewKlinesService().
			Symbol(symbol).
			Interval(binanceDailyInterval).
			StartTime(currentStartTime).
			EndTime(endTimeMillis).
			Limit(binancePageSize).
			Do(ctx)
		if err != nil {
			var apiErr *common.APIError
			if errors.As(err, &apiErr) && apiErr.Code == binanceInvalidSymbol {
				return types.PriceSeries{}, unavailableError(ProviderBinance, symbol, apiErr.Message)
			}

			return types.PriceSeries{}, transportError(ProviderBinance, symbol, err)
		}

		bars = append(bars, klinesToBars(klines)...)

		if len(klines) < binancePageSize {
			break
		}

		// Next page starts right after the close of the last kline.
		currentStartTime = klines[len(klines)-1].CloseTime + 1
	}

	series := types.NewPriceSeries(types.OHLCVFields, bars)
	if series.IsEmpty() {
		return types.PriceSeries{}, unavailableError(ProviderBinance, symbol, "no daily klines")
	}

	return series, nil
}

// klinesToBars converts Binance klines into bars stamped with the UTC open date.
func klinesToBars(klines []*binance.Kline) []types.PriceBar {
	bars := make([]types.PriceBar, 0, len(klines))

	for _, k := range klines {
		bars = append(bars, types.PriceBar{
			Date:          time.UnixMilli(k.OpenTime).UTC(),
			Open:          parseNumber(k.Open),
			High:          parseNumber(k.High),
			Low:           parseNumber(k.Low),
			Close:         parseNumber(k.Close),
			Volume:        parseNumber(k.Volume),
			AdjustedClose: optional.None[float64](),
		})
	}

	return bars
}

