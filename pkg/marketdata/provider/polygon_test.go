package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/polygon-io/client-go/rest/models"
	"github.com/stretchr/testify/suite"

	argoErrors "github.com/rxtech-lab/argo-research/pkg/errors"
)

// mockPolygonAPIClient implements PolygonAPIClient for testing.
type mockPolygonAPIClient struct {
	iterator PolygonAggsIterator
	params   *models.ListAggsParams
}

func (m *mockPolygonAPIClient) ListAggs(_ context.Context, params *models.ListAggsParams, _ ...models.RequestOption) PolygonAggsIterator {
	m.params = params
	return m.iterator
}

// mockPolygonIterator implements PolygonAggsIterator for testing.
type mockPolygonIterator struct {
	aggs  []models.Agg
	index int
	err   error
}

func (m *mockPolygonIterator) Next() bool {
	if m.index < len(m.aggs) {
		m.index++
		return true
	}
	return false
}

func (m *mockPolygonIterator) Item() models.Agg {
	if m.index > 0 && m.index <= len(m.aggs) {
		return m.aggs[m.index-1]
	}
	return models.Agg{}
}

func (m *mockPolygonIterator) Err() error {
	return m.err
}

type PolygonClientTestSuite struct {
	suite.Suite
}

func TestPolygonClientSuite(t *testing.T) {
	suite.Run(t, new(PolygonClientTestSuite))
}

// midnightNewYork returns a polygon daily timestamp for the given date.
func midnightNewYork(y int, m time.Month, d int) models.Millis {
	return models.Millis(time.Date(y, m, d, 0, 0, 0, 0, polygonMarketZone))
}

func (suite *PolygonClientTestSuite) TestNewPolygonClient_ValidApiKey() {
	client, err := NewPolygonClient(PolygonConfig{ApiKey: "test-api-key"})
	suite.NoError(err)
	suite.NotNil(client.apiClient)
	suite.Equal(ProviderPolygon, client.Name())
}

func (suite *PolygonClientTestSuite) TestNewPolygonClient_EmptyApiKey() {
	client, err := NewPolygonClient(PolygonConfig{})
	suite.Error(err)
	suite.Nil(client)
}

func (suite *PolygonClientTestSuite) TestNewPolygonClientWithAPI() {
	mockAPI := &mockPolygonAPIClient{}
	client := NewPolygonClientWithAPI(mockAPI)
	suite.Equal(mockAPI, client.apiClient)
	suite.Equal(polygonDefaultSince, client.since)
}

func (suite *PolygonClientTestSuite) TestFetch() {
	mockIter := &mockPolygonIterator{aggs: []models.Agg{
		{Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 1000, Timestamp: midnightNewYork(2024, 1, 3)},
		{Open: 1.5, High: 2.5, Low: 1, Close: 2, Volume: 2000, Timestamp: midnightNewYork(2024, 1, 2)},
	}}
	mockAPI := &mockPolygonAPIClient{iterator: mockIter}

	series, err := NewPolygonClientWithAPI(mockAPI).Fetch(context.Background(), "AAPL")
	suite.Require().NoError(err)

	suite.Equal([]time.Time{
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
	}, series.Dates())
	suite.Equal(2.0, series.Bars[0].Close)

	suite.Require().NotNil(mockAPI.params)
	suite.Equal("AAPL", mockAPI.params.Ticker)
	suite.Equal(models.Day, mockAPI.params.Timespan)
	suite.Equal(1, mockAPI.params.Multiplier)
}

func (suite *PolygonClientTestSuite) TestFetchIteratorError() {
	mockIter := &mockPolygonIterator{err: errors.New("429 too many requests")}
	mockAPI := &mockPolygonAPIClient{iterator: mockIter}

	_, err := NewPolygonClientWithAPI(mockAPI).Fetch(context.Background(), "AAPL")
	suite.True(argoErrors.HasCode(err, argoErrors.ErrCodeTransportError))
}

func (suite *PolygonClientTestSuite) TestFetchNoAggregates() {
	mockAPI := &mockPolygonAPIClient{iterator: &mockPolygonIterator{}}

	_, err := NewPolygonClientWithAPI(mockAPI).Fetch(context.Background(), "ZZZZ")
	suite.True(argoErrors.HasCode(err, argoErrors.ErrCodeDataUnavailable))
}

func (suite *PolygonClientTestSuite) TestParsePolygonConfig() {
	cfg, err := ParsePolygonConfig(`{"apiKey":"abc"}`)
	suite.Require().NoError(err)
	suite.Equal("abc", cfg.ApiKey)

	_, err = ParsePolygonConfig(`{}`)
	suite.Error(err)

	_, err = ParsePolygonConfig(`not json`)
	suite.Error(err)
}
