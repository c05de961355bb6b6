package types

import (
	"math"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"
)

type TableTestSuite struct {
	suite.Suite
}

func TestTableSuite(t *testing.T) {
	suite.Run(t, new(TableTestSuite))
}

func (suite *TableTestSuite) TestNewTableIsAllNaN() {
	table := NewTable([]time.Time{day(1), day(2)}, []string{"A", "B"})
	suite.Equal(2, table.Len())

	for _, row := range table.Values {
		for _, v := range row {
			suite.True(math.IsNaN(v))
		}
	}
}

func (suite *TableTestSuite) TestSortByDateDoesNotMutate() {
	table := NewTable([]time.Time{day(3), day(1), day(2)}, []string{"A"})
	table.Values[0][0] = 3
	table.Values[1][0] = 1
	table.Values[2][0] = 2

	sorted := table.SortByDate()
	col, ok := sorted.Column("A")
	suite.True(ok)
	suite.Equal([]float64{1, 2, 3}, col)
	suite.Equal(day(3), table.Dates[0])
}

func (suite *TableTestSuite) TestSelectFillsUnknownColumns() {
	table := NewTable([]time.Time{day(1)}, []string{"A", "B"})
	table.Values[0][0] = 1
	table.Values[0][1] = 2

	sel := table.Select([]string{"B", "Z"})
	suite.Equal([]string{"B", "Z"}, sel.Columns)
	suite.Equal(2.0, sel.Values[0][0])
	suite.True(math.IsNaN(sel.Values[0][1]))
}

func (suite *TableTestSuite) TestBetweenHeadTail() {
	table := NewTable([]time.Time{day(1), day(2), day(3), day(4)}, []string{"A"})

	suite.Equal([]time.Time{day(2), day(3), day(4)}, table.Between(optional.Some(day(2)), optional.None[time.Time]()).Dates)
	suite.Equal([]time.Time{day(1), day(2)}, table.Head(2).Dates)
	suite.Equal([]time.Time{day(4)}, table.Tail(1).Dates)
	suite.Equal(4, table.Head(10).Len())
}

func (suite *TableTestSuite) TestGet() {
	table := NewTable([]time.Time{day(1)}, []string{"A"})
	table.Values[0][0] = 7

	suite.Equal(7.0, table.Get(day(1), "A"))
	suite.True(math.IsNaN(table.Get(day(2), "A")))
	suite.True(math.IsNaN(table.Get(day(1), "B")))
}

func (suite *TableTestSuite) TestColumnNameRoundTrip() {
	name := ColumnName("BRK.B", FieldAdjustedClose)
	suite.Equal("BRK.B.adjusted_close", name)

	instrument, field, ok := SplitColumnName(name)
	suite.True(ok)
	suite.Equal("BRK.B", instrument)
	suite.Equal(FieldAdjustedClose, field)

	_, _, ok = SplitColumnName("date")
	suite.False(ok)

	_, _, ok = SplitColumnName("SPY.bogus")
	suite.False(ok)
}

func (suite *TableTestSuite) TestCanonicalDatasetInstrument() {
	dates := []time.Time{day(1), day(2)}
	frames := map[Field]Table{}

	for _, f := range CanonicalFields {
		frames[f] = NewTable(dates, []string{"SPY", "QQQ"})
	}

	frames[FieldClose].Values[0][0] = 100
	frames[FieldAdjustedClose].Values[0][0] = 99
	frames[FieldClose].Values[1][1] = 50

	ds := CanonicalDataset{Dates: dates, Instruments: []string{"SPY", "QQQ"}, Frames: frames}
	suite.Equal(CanonicalFields, ds.Fields())

	spy, ok := ds.Instrument("SPY")
	suite.True(ok)
	suite.Equal(1, spy.Len())
	suite.Equal(100.0, spy.Bars[0].Close)
	suite.Equal(99.0, spy.Bars[0].AdjustedClose.Unwrap())

	qqq, ok := ds.Instrument("QQQ")
	suite.True(ok)
	suite.Equal([]time.Time{day(2)}, qqq.Dates())
	suite.True(qqq.Bars[0].AdjustedClose.IsNone())

	_, ok = ds.Instrument("IWM")
	suite.False(ok)
}
