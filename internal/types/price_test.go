package types

import (
	"math"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"
)

type PriceSeriesTestSuite struct {
	suite.Suite
}

func TestPriceSeriesSuite(t *testing.T) {
	suite.Run(t, new(PriceSeriesTestSuite))
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func closeBar(date time.Time, c float64) PriceBar {
	return PriceBar{
		Date:          date,
		Open:          math.NaN(),
		High:          math.NaN(),
		Low:           math.NaN(),
		Close:         c,
		Volume:        math.NaN(),
		AdjustedClose: optional.None[float64](),
	}
}

func (suite *PriceSeriesTestSuite) TestNormalizeSortsAndKeepsLastDuplicate() {
	series := NewPriceSeries([]Field{FieldClose}, []PriceBar{
		closeBar(day(3), 30),
		closeBar(day(1), 10),
		closeBar(day(3), 31),
		closeBar(day(2), 20),
	})

	suite.Equal([]time.Time{day(1), day(2), day(3)}, series.Dates())
	suite.Equal(31.0, series.Bars[2].Close)
}

func (suite *PriceSeriesTestSuite) TestNormalizeDropsBarsWithoutClose() {
	series := NewPriceSeries([]Field{FieldClose}, []PriceBar{
		closeBar(day(1), 10),
		closeBar(day(2), math.NaN()),
	})

	suite.Equal(1, series.Len())
}

func (suite *PriceSeriesTestSuite) TestNormalizeTruncatesTimestamps() {
	series := NewPriceSeries(nil, []PriceBar{
		closeBar(time.Date(2024, 1, 5, 14, 30, 0, 0, time.UTC), 1),
		closeBar(time.Date(2024, 1, 5, 21, 0, 0, 0, time.UTC), 2),
	})

	suite.Equal(1, series.Len())
	suite.Equal(day(5), series.Bars[0].Date)
	suite.Equal(2.0, series.Bars[0].Close)
	suite.Equal([]Field{FieldClose}, series.Fields)
}

func (suite *PriceSeriesTestSuite) TestFieldsAreOrderedCanonically() {
	series := NewPriceSeries([]Field{FieldAdjustedClose, FieldVolume, FieldOpen, FieldVolume}, nil)
	suite.Equal([]Field{FieldOpen, FieldClose, FieldVolume, FieldAdjustedClose}, series.Fields)
	suite.True(series.HasField(FieldAdjustedClose))
	suite.False(series.HasField(FieldHigh))
}

func (suite *PriceSeriesTestSuite) TestValue() {
	bar := closeBar(day(1), 10)
	v, ok := bar.Value(FieldClose)
	suite.True(ok)
	suite.Equal(10.0, v)

	_, ok = bar.Value(FieldOpen)
	suite.False(ok)

	_, ok = bar.Value(FieldAdjustedClose)
	suite.False(ok)

	bar.AdjustedClose = optional.Some(9.5)
	v, ok = bar.Value(FieldAdjustedClose)
	suite.True(ok)
	suite.Equal(9.5, v)
}

func (suite *PriceSeriesTestSuite) TestBetween() {
	series := NewPriceSeries(nil, []PriceBar{closeBar(day(1), 1), closeBar(day(2), 2), closeBar(day(3), 3)})

	sub := series.Between(optional.Some(day(2)), optional.None[time.Time]())
	suite.Equal([]time.Time{day(2), day(3)}, sub.Dates())

	sub = series.Between(optional.None[time.Time](), optional.Some(day(1)))
	suite.Equal([]time.Time{day(1)}, sub.Dates())
}

func (suite *PriceSeriesTestSuite) TestParseField() {
	f, ok := ParseField("adjusted_close")
	suite.True(ok)
	suite.Equal(FieldAdjustedClose, f)

	_, ok = ParseField("Adj Close")
	suite.False(ok)
}
