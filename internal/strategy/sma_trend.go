package strategy

import (
	"math"

	"github.com/markcheno/go-talib"

	"github.com/rxtech-lab/argo-research/internal/types"
	"github.com/rxtech-lab/argo-research/pkg/errors"
)

// SMATrendName is the registered name of SMATrend.
const SMATrendName = "sma_trend"

// DefaultSMAWindow is the window used when none is configured.
const DefaultSMAWindow = 200

// SMATrend holds every instrument whose latest price is above its simple moving average,
// equally weighted. The average needs a price on each of the last window dates.
type SMATrend struct {
	window int
}

// NewSMATrend creates the strategy.
func NewSMATrend(window int) (*SMATrend, error) {
	if window < 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "window must be positive, got %d", window)
	}

	return &SMATrend{window: window}, nil
}

// Name implements Strategy.
func (s *SMATrend) Name() string {
	return SMATrendName
}

// Window returns the moving average window.
func (s *SMATrend) Window() int {
	return s.window
}

// Weights implements Strategy. It returns an empty map when no instrument qualifies.
func (s *SMATrend) Weights(history types.Table) (map[string]float64, error) {
	if history.IsEmpty() {
		return nil, errors.New(errors.ErrCodeEmptyInput, "price history is empty")
	}

	var selected []string

	for _, instrument := range history.Columns {
		column, _ := history.Column(instrument)
		if s.above(column) {
			selected = append(selected, instrument)
		}
	}

	weights := make(map[string]float64, len(selected))
	for _, instrument := range selected {
		weights[instrument] = 1 / float64(len(selected))
	}

	return weights, nil
}

func (s *SMATrend) above(prices []float64) bool {
	if len(prices) < s.window {
		return false
	}

	window := prices[len(prices)-s.window:]
	for _, p := range window {
		if math.IsNaN(p) {
			return false
		}
	}

	sma := talib.Sma(window, s.window)
	latest := window[len(window)-1]

	return latest > sma[len(sma)-1]
}
