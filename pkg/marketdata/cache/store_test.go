package cache

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-research/internal/types"
	argoErrors "github.com/rxtech-lab/argo-research/pkg/errors"
	"github.com/rxtech-lab/argo-research/pkg/marketdata/provider"
	"github.com/rxtech-lab/argo-research/pkg/marketdata/writer"
)

// failingWriter wraps a real writer and fails on Finalize.
type failingWriter struct {
	writer.ParquetWriter
	finalizeErr error
}

func (w *failingWriter) Finalize() (string, error) {
	return "", w.finalizeErr
}

type StoreTestSuite struct {
	suite.Suite
	tempDir string
	store   *Store
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (suite *StoreTestSuite) SetupTest() {
	tempDir, err := os.MkdirTemp("", "cache-store-test")
	suite.Require().NoError(err)
	suite.tempDir = tempDir
	suite.store = NewStore(filepath.Join(tempDir, "raw_prices"), nil)
}

func (suite *StoreTestSuite) TearDownTest() {
	os.RemoveAll(suite.tempDir)
}

func day(d int) time.Time {
	return time.Date(2024, 2, d, 0, 0, 0, 0, time.UTC)
}

func bar(d int, c float64) types.PriceBar {
	return types.PriceBar{
		Date:          day(d),
		Open:          c - 1,
		High:          c + 1,
		Low:           c - 2,
		Close:         c,
		Volume:        1000,
		AdjustedClose: optional.None[float64](),
	}
}

func (suite *StoreTestSuite) TestPathSanitizesInstrument() {
	path := suite.store.Path(provider.ProviderYahoo, "BTC/USD")
	suite.Equal(filepath.Join(suite.tempDir, "raw_prices", "yahoo", "BTC_USD.parquet"), path)
}

func (suite *StoreTestSuite) TestReadMissingIsNone() {
	series, err := suite.store.Read(provider.ProviderStooq, "SPY")
	suite.NoError(err)
	suite.True(series.IsNone())
	suite.False(suite.store.Exists(provider.ProviderStooq, "SPY"))
}

func (suite *StoreTestSuite) TestWriteThenRead() {
	input := types.PriceSeries{
		Fields: types.OHLCVFields,
		Bars:   []types.PriceBar{bar(3, 30), bar(1, 10), bar(2, 20), bar(3, 31)},
	}
	input.Bars[1].Volume = math.NaN()

	suite.Require().NoError(suite.store.Write(provider.ProviderStooq, "SPY", input))
	suite.True(suite.store.Exists(provider.ProviderStooq, "SPY"))

	got, err := suite.store.Read(provider.ProviderStooq, "SPY")
	suite.Require().NoError(err)
	suite.Require().True(got.IsSome())

	series := got.Unwrap()
	suite.Equal(types.OHLCVFields, series.Fields)
	suite.Equal([]time.Time{day(1), day(2), day(3)}, series.Dates())
	suite.Equal(31.0, series.Bars[2].Close)
	suite.True(math.IsNaN(series.Bars[0].Volume))
	suite.Equal(9.0, series.Bars[0].Open)
}

func (suite *StoreTestSuite) TestAdjustedCloseRoundTrip() {
	b1 := bar(1, 10)
	b1.AdjustedClose = optional.Some(9.0)
	b2 := bar(2, 20)

	input := types.NewPriceSeries(types.CanonicalFields, []types.PriceBar{b1, b2})
	suite.Require().NoError(suite.store.Write(provider.ProviderYahoo, "SPY", input))

	got, err := suite.store.Read(provider.ProviderYahoo, "SPY")
	suite.Require().NoError(err)

	series := got.Unwrap()
	suite.Equal(types.CanonicalFields, series.Fields)
	suite.Equal(9.0, series.Bars[0].AdjustedClose.Unwrap())
	suite.True(series.Bars[1].AdjustedClose.IsNone())
}

func (suite *StoreTestSuite) TestFieldSetIsDiscoveredFromFile() {
	input := types.NewPriceSeries([]types.Field{types.FieldClose}, []types.PriceBar{bar(1, 10)})
	suite.Require().NoError(suite.store.Write(provider.ProviderStooq, "^SPX", input))

	got, err := suite.store.Read(provider.ProviderStooq, "^SPX")
	suite.Require().NoError(err)
	suite.Equal([]types.Field{types.FieldClose}, got.Unwrap().Fields)
	suite.True(math.IsNaN(got.Unwrap().Bars[0].Open))
}

func (suite *StoreTestSuite) TestFailedWriteLeavesPreviousFile() {
	original := types.NewPriceSeries(types.OHLCVFields, []types.PriceBar{bar(1, 10)})
	suite.Require().NoError(suite.store.Write(provider.ProviderStooq, "SPY", original))

	suite.store.newWriter = func(path string) writer.ParquetWriter {
		return &failingWriter{ParquetWriter: writer.NewDuckDBWriter(path), finalizeErr: errors.New("disk full")}
	}

	updated := types.NewPriceSeries(types.OHLCVFields, []types.PriceBar{bar(1, 10), bar(2, 20)})
	err := suite.store.Write(provider.ProviderStooq, "SPY", updated)
	suite.True(argoErrors.HasCode(err, argoErrors.ErrCodeStorageFailed))

	suite.store.newWriter = writer.NewDuckDBWriter
	got, err := suite.store.Read(provider.ProviderStooq, "SPY")
	suite.Require().NoError(err)
	suite.Equal(original.Bars, got.Unwrap().Bars)
}

func (suite *StoreTestSuite) TestClear() {
	suite.Require().NoError(suite.store.Write(provider.ProviderStooq, "SPY", types.NewPriceSeries(nil, []types.PriceBar{bar(1, 1)})))
	suite.Require().NoError(suite.store.Clear())
	suite.NoDirExists(suite.store.Root())
}
