package provider

import (
	"context"
	"time"

	"github.com/moznion/go-optional"
	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"

	"github.com/rxtech-lab/argo-research/internal/types"
)

// PolygonAggsIterator is the subset of the polygon aggregates iterator used by PolygonClient.
type PolygonAggsIterator interface {
	Next() bool
	Item() models.Agg
	Err() error
}

// PolygonAPIClient is the subset of the polygon REST client used by PolygonClient.
type PolygonAPIClient interface {
	ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) PolygonAggsIterator
}

type polygonRESTClient struct {
	client *polygon.Client
}

func (c *polygonRESTClient) ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) PolygonAggsIterator {
	return c.client.ListAggs(ctx, params, options...)
}

// polygonDefaultSince is used when PolygonConfig.Since is unset.
var polygonDefaultSince = time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)

// polygonMarketZone is the zone in which polygon daily bars are stamped.
var polygonMarketZone = mustLoadLocation("America/New_York")

// PolygonClient downloads split-adjusted daily aggregates from Polygon.io.
type PolygonClient struct {
	apiClient PolygonAPIClient
	timeout   time.Duration
	since     time.Time
	now       func() time.Time
}

// NewPolygonClient creates a Polygon.io client.
func NewPolygonClient(config PolygonConfig) (*PolygonClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client := NewPolygonClientWithAPI(&polygonRESTClient{client: polygon.New(config.ApiKey)})
	client.timeout = timeoutOrDefault(config.Timeout)

	if !config.Since.IsZero() {
		client.since = config.Since
	}

	return client, nil
}

// NewPolygonClientWithAPI creates a PolygonClient around an existing API client.
func NewPolygonClientWithAPI(api PolygonAPIClient) *PolygonClient {
	return &PolygonClient{
		apiClient: api,
		timeout:   DefaultTimeout,
		since:     polygonDefaultSince,
		now:       time.Now,
	}
}

// Name implements Provider.
func (c *PolygonClient) Name() ProviderType {
	return ProviderPolygon
}

// Fetch implements Provider.
func (c *PolygonClient) Fetch(ctx context.Context, symbol string) (types.PriceSeries, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     symbol,
		Multiplier: 1,
		Timespan:   models.Day,
		From:       models.Millis(c.since),
		To:         models.Millis(c.now()),
	}.WithAdjusted(true).WithLimit(50000)

	iter := c.apiClient.ListAggs(ctx, params)

	var bars []types.PriceBar

	for iter.Next() {
		agg := iter.Item()
		bars = append(bars, types.PriceBar{
			Date:          time.Time(agg.Timestamp).In(polygonMarketZone),
			Open:          agg.Open,
			High:          agg.High,
			Low:           agg.Low,
			Close:         agg.Close,
			Volume:        agg.Volume,
			AdjustedClose: optional.None[float64](),
		})
	}

	if err := iter.Err(); err != nil {
		return types.PriceSeries{}, transportError(ProviderPolygon, symbol, err)
	}

	series := types.NewPriceSeries(types.OHLCVFields, bars)
	if series.IsEmpty() {
		return types.PriceSeries{}, unavailableError(ProviderPolygon, symbol, "no daily aggregates")
	}

	return series, nil
}

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}

	return loc
}
