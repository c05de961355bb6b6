package strategy

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-research/internal/types"
	"github.com/rxtech-lab/argo-research/pkg/errors"
)

type StrategyTestSuite struct {
	suite.Suite
}

func TestStrategySuite(t *testing.T) {
	suite.Run(t, new(StrategyTestSuite))
}

func dates(n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
	}

	return out
}

// history builds a table from per-instrument columns of equal length.
func history(columns map[string][]float64, order ...string) types.Table {
	n := len(columns[order[0]])
	t := types.NewTable(dates(n), order)

	for j, name := range order {
		for i, v := range columns[name] {
			t.Values[i][j] = v
		}
	}

	return t
}

func (suite *StrategyTestSuite) TestSMATrendSelectsRisingInstruments() {
	s, err := NewSMATrend(3)
	suite.Require().NoError(err)

	h := history(map[string][]float64{
		"up":   {1, 2, 3},
		"down": {3, 2, 1},
		"flat": {2, 2, 2},
	}, "up", "down", "flat")

	weights, err := s.Weights(h)
	suite.Require().NoError(err)
	suite.Equal(map[string]float64{"up": 1}, weights)
}

func (suite *StrategyTestSuite) TestSMATrendEqualWeights() {
	s, err := NewSMATrend(2)
	suite.Require().NoError(err)

	h := history(map[string][]float64{
		"a": {1, 2},
		"b": {5, 6},
		"c": {9, 1},
		"d": {1, 3},
	}, "a", "b", "c", "d")

	weights, err := s.Weights(h)
	suite.Require().NoError(err)
	suite.Len(weights, 3)

	for _, w := range weights {
		suite.InDelta(1.0/3, w, 1e-12)
	}
}

func (suite *StrategyTestSuite) TestSMATrendNeedsFullWindow() {
	s, err := NewSMATrend(3)
	suite.Require().NoError(err)

	short := history(map[string][]float64{"a": {1, 2}}, "a")
	weights, err := s.Weights(short)
	suite.Require().NoError(err)
	suite.Empty(weights)

	gap := history(map[string][]float64{"a": {1, math.NaN(), 3}}, "a")
	weights, err = s.Weights(gap)
	suite.Require().NoError(err)
	suite.Empty(weights)

	// a gap before the window does not matter
	old := history(map[string][]float64{"a": {math.NaN(), 1, 2, 3}}, "a")
	weights, err = s.Weights(old)
	suite.Require().NoError(err)
	suite.Equal(map[string]float64{"a": 1}, weights)
}

func (suite *StrategyTestSuite) TestSMATrendEmptyHistory() {
	s, err := NewSMATrend(3)
	suite.Require().NoError(err)

	_, err = s.Weights(types.Table{})
	suite.True(errors.HasCode(err, errors.ErrCodeEmptyInput))
}

func (suite *StrategyTestSuite) TestNewSMATrendRejectsBadWindow() {
	_, err := NewSMATrend(0)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}

func (suite *StrategyTestSuite) TestNew() {
	s, err := New(Config{Name: SMATrendName, Window: 50})
	suite.Require().NoError(err)
	suite.Equal(SMATrendName, s.Name())
	suite.Equal(50, s.(*SMATrend).Window())

	_, err = New(Config{Name: "momentum", Window: 50})
	suite.True(errors.HasCode(err, errors.ErrCodeBacktestConfigError))

	_, err = New(Config{Name: SMATrendName, Window: 0})
	suite.True(errors.HasCode(err, errors.ErrCodeBacktestConfigError))
}

func (suite *StrategyTestSuite) TestNames() {
	suite.Equal([]string{"sma_trend"}, Names())
}

func (suite *StrategyTestSuite) TestWeightsByDay() {
	s, err := NewSMATrend(2)
	suite.Require().NoError(err)

	prices := history(map[string][]float64{
		"a": {1, 2, 1, 3},
		"b": {4, 3, 5, 6},
	}, "a", "b")

	weights, err := WeightsByDay(s, prices)
	suite.Require().NoError(err)

	suite.Equal(prices.Dates, weights.Dates)
	suite.Equal([][]float64{
		{0, 0},
		{1, 0},
		{0, 1},
		{0.5, 0.5},
	}, weights.Values)
}

// futureSpy fails when it sees more history than the date it decides for.
type futureSpy struct {
	seen []int
}

func (f *futureSpy) Name() string { return "spy" }

func (f *futureSpy) Weights(history types.Table) (map[string]float64, error) {
	f.seen = append(f.seen, history.Len())

	return map[string]float64{"a": 1, "unknown": 1}, nil
}

func (suite *StrategyTestSuite) TestWeightsByDayUsesGrowingHistory() {
	spy := &futureSpy{}
	prices := history(map[string][]float64{"a": {1, 2, 3}}, "a")

	weights, err := WeightsByDay(spy, prices)
	suite.Require().NoError(err)

	suite.Equal([]int{1, 2, 3}, spy.seen)
	suite.Equal([]string{"a"}, weights.Columns)
	suite.Equal([][]float64{{1}, {1}, {1}}, weights.Values)
}
