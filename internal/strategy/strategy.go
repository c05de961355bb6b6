// Package strategy produces target portfolio weights from price history.
package strategy

import (
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/rxtech-lab/argo-research/internal/types"
	"github.com/rxtech-lab/argo-research/pkg/errors"
)

// Strategy decides target weights from history up to and including the decision date.
type Strategy interface {
	// Name identifies the strategy in run directories and manifests.
	Name() string
	// Weights returns the target weight per instrument for the last date of history.
	// Instruments left out have weight 0. Weights need not sum to 1.
	Weights(history types.Table) (map[string]float64, error)
}

// Config selects and parameterizes a strategy.
type Config struct {
	Name   string `yaml:"name" json:"name" validate:"required,oneof=sma_trend" jsonschema:"enum=sma_trend,default=sma_trend"`
	Window int    `yaml:"window" json:"window" validate:"min=1" jsonschema:"description=Moving average window in trading days,default=200"`
}

// Names lists the strategies New can build.
func Names() []string {
	names := []string{SMATrendName}
	sort.Strings(names)

	return names
}

// New builds the strategy described by config.
func New(config Config) (Strategy, error) {
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeBacktestConfigError, "invalid strategy config", err)
	}

	switch config.Name {
	case SMATrendName:
		return NewSMATrend(config.Window)
	default:
		return nil, errors.Newf(errors.ErrCodeBacktestConfigError, "unknown strategy %q", config.Name)
	}
}

// WeightsByDay evaluates s on every growing prefix of prices and stacks the results into a
// date x instrument weights matrix aligned with prices. The decision for each date only
// sees history up to and including that date. It is quadratic in the number of dates.
func WeightsByDay(s Strategy, prices types.Table) (types.Table, error) {
	prices = prices.SortByDate()
	out := types.NewTable(prices.Dates, prices.Columns)

	for i := range out.Values {
		for j := range out.Values[i] {
			out.Values[i][j] = 0
		}
	}

	for i := range prices.Dates {
		weights, err := s.Weights(prices.Head(i + 1))
		if err != nil {
			return types.Table{}, err
		}

		for instrument, w := range weights {
			if col := out.ColumnIndex(instrument); col >= 0 {
				out.Values[i][col] = w
			}
		}
	}

	return out, nil
}
