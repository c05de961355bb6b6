// Package engine turns a weights matrix into a compounded equity curve.
package engine

import (
	"math"
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-research/internal/logger"
	"github.com/rxtech-lab/argo-research/internal/types"
	"github.com/rxtech-lab/argo-research/pkg/errors"
)

// Options controls a single run.
type Options struct {
	// StartDate drops price history before it. None keeps the full history.
	StartDate optional.Option[time.Time]
}

// EquityCurve is the cumulative portfolio value on each date that realized a return.
// The implicit starting value of 1.0 sits on the date before Dates[0].
type EquityCurve struct {
	Dates  []time.Time
	Values []float64
}

// Len returns the number of points on the curve.
func (c EquityCurve) Len() int {
	return len(c.Dates)
}

// Final returns the last equity value, or None for an empty curve.
func (c EquityCurve) Final() optional.Option[float64] {
	if len(c.Values) == 0 {
		return optional.None[float64]()
	}

	return optional.Some(c.Values[len(c.Values)-1])
}

// Engine runs backtests.
type Engine interface {
	// Run compounds the returns of prices under weights. The weight decided on date t
	// earns the return from t to the next date, never the return of t itself.
	Run(prices, weights types.Table, opts Options) (EquityCurve, error)
}

// VectorizedEngine computes every step as a whole-column operation over the date axis.
// It holds no state and is safe for concurrent use.
type VectorizedEngine struct {
	logger *logger.Logger
}

// NewVectorizedEngine creates an engine. A nil logger disables logging.
func NewVectorizedEngine(log *logger.Logger) *VectorizedEngine {
	return &VectorizedEngine{logger: logger.OrNop(log)}
}

// Run implements Engine.
//
// Prices are sorted by date and truncated to opts.StartDate. Simple returns are taken on
// forward-filled prices so a gap does not erase the move across it. Weights are aligned to
// the price axes with 0 for anything missing, then shifted one date forward. The portfolio
// return on a date is the weighted sum of the instrument returns defined on that date, the
// first date is dropped and the rest is compounded from 1.0. Instruments that only appear
// in weights are ignored.
func (e *VectorizedEngine) Run(prices, weights types.Table, opts Options) (EquityCurve, error) {
	if prices.IsEmpty() {
		return EquityCurve{}, errors.New(errors.ErrCodeEmptyInput, "prices are empty")
	}

	prices = prices.SortByDate()
	if opts.StartDate.IsSome() {
		prices = prices.Between(opts.StartDate, optional.None[time.Time]())
	}

	if prices.IsEmpty() {
		return EquityCurve{}, errors.Newf(errors.ErrCodeEmptyInput, "no prices on or after %s",
			opts.StartDate.Unwrap().Format(time.DateOnly))
	}

	returns := simpleReturns(forwardFill(prices.Values))
	aligned := shiftForward(alignWeights(prices, weights))
	portfolio := portfolioReturns(aligned, returns)

	// the first date has no return
	curve := EquityCurve{
		Dates:  append([]time.Time(nil), prices.Dates[1:]...),
		Values: compound(portfolio[1:]),
	}

	e.logger.Debug("Backtest run complete",
		zap.Int("dates", prices.Len()),
		zap.Int("instruments", len(prices.Columns)),
		zap.Int("points", curve.Len()),
	)

	return curve, nil
}

func forwardFill(values [][]float64) [][]float64 {
	out := make([][]float64, len(values))
	for i, row := range values {
		out[i] = make([]float64, len(row))
		copy(out[i], row)
	}

	for i := 1; i < len(out); i++ {
		for j := range out[i] {
			if math.IsNaN(out[i][j]) {
				out[i][j] = out[i-1][j]
			}
		}
	}

	return out
}

// simpleReturns computes p[t]/p[t-1]-1 per column. Row 0 and any return without two
// prices are NaN.
func simpleReturns(prices [][]float64) [][]float64 {
	out := make([][]float64, len(prices))

	for i := range prices {
		out[i] = make([]float64, len(prices[i]))

		for j := range prices[i] {
			if i == 0 {
				out[i][j] = math.NaN()

				continue
			}

			out[i][j] = prices[i][j]/prices[i-1][j] - 1
		}
	}

	return out
}

// alignWeights reindexes weights onto the dates and columns of prices.
func alignWeights(prices, weights types.Table) [][]float64 {
	rowOf := make(map[time.Time]int, weights.Len())
	for i, d := range weights.Dates {
		rowOf[types.NormalizeDate(d)] = i
	}

	colOf := make([]int, len(prices.Columns))
	for j, c := range prices.Columns {
		colOf[j] = weights.ColumnIndex(c)
	}

	out := make([][]float64, prices.Len())

	for i, d := range prices.Dates {
		out[i] = make([]float64, len(prices.Columns))

		src, ok := rowOf[types.NormalizeDate(d)]
		if !ok {
			continue
		}

		for j, c := range colOf {
			if c < 0 {
				continue
			}

			if w := weights.Values[src][c]; !math.IsNaN(w) {
				out[i][j] = w
			}
		}
	}

	return out
}

// shiftForward moves every row one date later. The first row becomes all zero.
func shiftForward(weights [][]float64) [][]float64 {
	out := make([][]float64, len(weights))
	if len(weights) == 0 {
		return out
	}

	out[0] = make([]float64, len(weights[0]))
	copy(out[1:], weights[:len(weights)-1])

	return out
}

func portfolioReturns(weights, returns [][]float64) []float64 {
	out := make([]float64, len(returns))

	for i := range returns {
		var sum float64

		for j, r := range returns[i] {
			if math.IsNaN(r) || math.IsInf(r, 0) {
				continue
			}

			sum += weights[i][j] * r
		}

		out[i] = sum
	}

	return out
}

func compound(returns []float64) []float64 {
	out := make([]float64, len(returns))
	equity := 1.0

	for i, r := range returns {
		equity *= 1 + r
		out[i] = equity
	}

	return out
}
