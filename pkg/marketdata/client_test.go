package marketdata

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/rxtech-lab/argo-research/internal/config"
	"github.com/rxtech-lab/argo-research/internal/registry"
	"github.com/rxtech-lab/argo-research/internal/types"
	"github.com/rxtech-lab/argo-research/mocks"
	"github.com/rxtech-lab/argo-research/pkg/errors"
	"github.com/rxtech-lab/argo-research/pkg/marketdata/provider"
)

// ClientTestSuite is a test suite for the Client implementation
type ClientTestSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	tempDir  string
	registry *registry.Registry
	stooq    *mocks.MockProvider
	yahoo    *mocks.MockProvider
	client   *Client
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func (suite *ClientTestSuite) SetupTest() {
	suite.ctrl = gomock.NewController(suite.T())

	tempDir, err := os.MkdirTemp("", "marketdata-client-test")
	suite.Require().NoError(err)
	suite.tempDir = tempDir

	suite.registry, err = registry.New([]registry.Asset{
		{Key: "spy", Kind: "etf", Name: "SPDR S&P 500", Identifiers: map[string]string{"stooq": "spy.us", "yahoo": "SPY"}},
		{Key: "novo-b-co", Kind: "equity", Name: "Novo Nordisk B", Identifiers: map[string]string{"yahoo": "NOVO-B.CO"}},
	})
	suite.Require().NoError(err)

	suite.stooq = mocks.NewMockProvider(suite.ctrl)
	suite.stooq.EXPECT().Name().Return(provider.ProviderStooq).AnyTimes()
	suite.yahoo = mocks.NewMockProvider(suite.ctrl)
	suite.yahoo.EXPECT().Name().Return(provider.ProviderYahoo).AnyTimes()

	suite.client, err = NewClientWithProviders(suite.clientConfig(), suite.registry, []provider.Provider{suite.stooq, suite.yahoo}, nil)
	suite.Require().NoError(err)
}

func (suite *ClientTestSuite) TearDownTest() {
	suite.ctrl.Finish()
	os.RemoveAll(suite.tempDir)
}

func (suite *ClientTestSuite) clientConfig() ClientConfig {
	return ClientConfig{
		RawPricesDir:  filepath.Join(suite.tempDir, "raw_prices"),
		CanonicalPath: filepath.Join(suite.tempDir, "canonical", "ohlcv.parquet"),
		Priority:      []provider.ProviderType{provider.ProviderStooq, provider.ProviderYahoo},
		Concurrency:   1,
		Stooq:         nil,
		Yahoo:         nil,
		Polygon:       nil,
		Binance:       nil,
	}
}

func (suite *ClientTestSuite) expectUniverse() {
	suite.stooq.EXPECT().Fetch(gomock.Any(), "spy.us").Return(ohlcv(bar(1, 100), bar(2, 101)), nil)
	suite.yahoo.EXPECT().Fetch(gomock.Any(), "NOVO-B.CO").Return(ohlcv(bar(2, 700), bar(3, 710)), nil)
}

func (suite *ClientTestSuite) TestUpdateAll() {
	suite.expectUniverse()

	var progress []string
	suite.client.SetOnProgress(func(_ int, _ int, instrument string) {
		progress = append(progress, instrument)
	})

	used, err := suite.client.UpdateAll(context.Background(), nil)
	suite.Require().NoError(err)

	suite.Equal(map[string]provider.ProviderType{
		"spy":       provider.ProviderStooq,
		"novo-b-co": provider.ProviderYahoo,
	}, used)
	suite.Equal([]string{"spy", "novo-b-co"}, progress)

	raw, err := suite.client.ReadRaw(provider.ProviderYahoo, "novo-b-co")
	suite.Require().NoError(err)
	suite.Equal([]float64{700, 710}, closes(raw.Unwrap()))
}

func (suite *ClientTestSuite) TestUpdateWithExplicitPriority() {
	suite.yahoo.EXPECT().Fetch(gomock.Any(), "SPY").Return(ohlcv(bar(1, 100)), nil)

	used, err := suite.client.Update(context.Background(), []string{"spy"}, []provider.ProviderType{provider.ProviderYahoo})
	suite.Require().NoError(err)
	suite.Equal(provider.ProviderYahoo, used["spy"])
}

func (suite *ClientTestSuite) TestUpdateUnknownInstrument() {
	_, err := suite.client.Update(context.Background(), []string{"nope"}, nil)

	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeDataNotFound))
}

func (suite *ClientTestSuite) TestUpdateStopsAtFirstFailure() {
	suite.stooq.EXPECT().Fetch(gomock.Any(), "spy.us").Return(types.PriceSeries{}, transport())
	suite.yahoo.EXPECT().Fetch(gomock.Any(), "SPY").Return(types.PriceSeries{}, unavailable())

	_, err := suite.client.UpdateAll(context.Background(), nil)

	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeAllProvidersFailed))
}

func (suite *ClientTestSuite) TestExportAndLoad() {
	suite.expectUniverse()

	result, err := suite.client.Export(context.Background(), nil, nil)
	suite.Require().NoError(err)
	suite.Equal(suite.client.CanonicalPath(), result.Path)

	closeTable, err := suite.client.LoadField(types.FieldClose)
	suite.Require().NoError(err)
	suite.Equal([]string{"spy", "novo-b-co"}, closeTable.Columns)
	suite.Equal([]time.Time{day(1), day(2), day(3)}, closeTable.Dates)
	suite.Equal(710.0, closeTable.Get(day(3), "novo-b-co"))

	fields, err := suite.client.Fields()
	suite.Require().NoError(err)
	suite.Equal(types.CanonicalFields, fields)

	dataset, err := suite.client.LoadDataset()
	suite.Require().NoError(err)
	suite.Equal([]string{"spy", "novo-b-co"}, dataset.Instruments)
}

func (suite *ClientTestSuite) TestRebuildStartsFromEmptyCache() {
	// a stale bar that a rebuild must not carry over
	suite.stooq.EXPECT().Fetch(gomock.Any(), "spy.us").Return(ohlcv(bar(9, 1)), nil)
	_, err := suite.client.Update(context.Background(), []string{"spy"}, nil)
	suite.Require().NoError(err)

	suite.expectUniverse()

	result, err := suite.client.Rebuild(context.Background(), nil)
	suite.Require().NoError(err)
	suite.FileExists(result.Path)

	raw, err := suite.client.ReadRaw(provider.ProviderStooq, "spy")
	suite.Require().NoError(err)
	suite.Equal([]float64{100, 101}, closes(raw.Unwrap()))
}

func (suite *ClientTestSuite) TestNewClientRejectsInvalidConfig() {
	cfg := suite.clientConfig()
	cfg.Priority = nil

	_, err := NewClient(cfg, suite.registry, nil)

	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ClientTestSuite) TestNewClientRequiresRegistry() {
	_, err := NewClientWithProviders(suite.clientConfig(), nil, nil, nil)

	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}

func (suite *ClientTestSuite) TestClientConfigFromSettings() {
	settings := &config.Settings{
		DataDir:          suite.tempDir,
		ArtifactsDir:     filepath.Join(suite.tempDir, "artifacts"),
		RegistryPath:     "assets.yaml",
		ProviderPriority: []string{"yahoo", "stooq"},
		PolygonAPIKey:    "",
		StooqBaseURL:     "https://stooq.com",
		YahooBaseURL:     "https://query1.finance.yahoo.com",
		HTTPTimeout:      5 * time.Second,
		Concurrency:      2,
		LogLevel:         "info",
	}

	cfg, err := ClientConfigFromSettings(settings)
	suite.Require().NoError(err)

	suite.Equal([]provider.ProviderType{provider.ProviderYahoo, provider.ProviderStooq}, cfg.Priority)
	suite.Equal(settings.RawPricesDir(), cfg.RawPricesDir)
	suite.Equal(settings.CanonicalPath(), cfg.CanonicalPath)
	suite.Nil(cfg.Polygon)
	suite.Equal(5*time.Second, cfg.Stooq.Timeout)

	settings.PolygonAPIKey = "key"
	cfg, err = ClientConfigFromSettings(settings)
	suite.Require().NoError(err)
	suite.Require().NotNil(cfg.Polygon)
	suite.Equal("key", cfg.Polygon.ApiKey)

	client, err := NewClient(cfg, suite.registry, nil)
	suite.Require().NoError(err)
	suite.NotNil(client.Registry())
}

func (suite *ClientTestSuite) TestClientConfigFromSettingsRejectsUnknownProvider() {
	settings := &config.Settings{ProviderPriority: []string{"bloomberg"}}

	_, err := ClientConfigFromSettings(settings)

	suite.True(errors.HasCode(err, errors.ErrCodeInvalidProvider))
}
