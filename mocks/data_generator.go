package mocks

import (
	"math"
	"math/rand"
	"time"

	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-research/internal/types"
)

// DataGenerator generates realistic daily price history for tests and benchmarks.
type DataGenerator struct {
	rng *rand.Rand
}

// NewDataGenerator creates a new DataGenerator with the given seed.
// Use a fixed seed for reproducible results in tests.
func NewDataGenerator(seed int64) *DataGenerator {
	return &DataGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// GeneratorConfig configures how price history is generated.
type GeneratorConfig struct {
	// StartDate is the first calendar date of the series
	StartDate time.Time
	// Count is the number of bars to generate
	Count int
	// SkipWeekends leaves Saturdays and Sundays out, like an exchange calendar
	SkipWeekends bool
	// InitialPrice is the starting price
	InitialPrice float64
	// Volatility controls price movement (0.01 = 1% typical daily volatility)
	Volatility float64
	// Trend is the drift over the whole series (-0.5 to 0.5 for bearish to bullish)
	Trend float64
	// VolumeBase is the average volume per bar
	VolumeBase float64
	// VolumeVariance is the variance in volume (0.0 to 1.0)
	VolumeVariance float64
	// WithAdjustedClose adds an adjusted close trailing close by a constant dividend factor
	WithAdjustedClose bool
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		StartDate:         time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		Count:             1000,
		SkipWeekends:      true,
		InitialPrice:      100.0,
		Volatility:        0.01,
		Trend:             0.0,
		VolumeBase:        1_000_000,
		VolumeVariance:    0.3,
		WithAdjustedClose: false,
	}
}

// Generate creates a daily price series following a geometric Brownian motion.
func (g *DataGenerator) Generate(config GeneratorConfig) types.PriceSeries {
	bars := make([]types.PriceBar, config.Count)
	currentPrice := config.InitialPrice
	currentDate := types.NormalizeDate(config.StartDate)

	for i := 0; i < config.Count; i++ {
		if config.SkipWeekends {
			currentDate = skipWeekend(currentDate)
		}

		open := currentPrice

		// Box-Muller transform for a standard normal draw
		u1 := g.rng.Float64()
		u2 := g.rng.Float64()
		z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

		drift := config.Trend / float64(config.Count)

		close := open * (1 + config.Volatility*z + drift)
		if close <= 0 {
			close = open * 0.99
		}

		highExtension := math.Abs(g.rng.Float64() * config.Volatility * open * 0.5)
		lowExtension := math.Abs(g.rng.Float64() * config.Volatility * open * 0.5)

		high := math.Max(open, close) + highExtension
		low := math.Min(open, close) - lowExtension
		if low <= 0 {
			low = math.Min(open, close) * 0.99
		}

		volumeVariation := 1.0 + (g.rng.Float64()*2-1)*config.VolumeVariance
		volume := config.VolumeBase * volumeVariation
		if volume < 0 {
			volume = config.VolumeBase * 0.1
		}

		bar := types.PriceBar{
			Date:          currentDate,
			Open:          roundToDecimals(open, 4),
			High:          roundToDecimals(high, 4),
			Low:           roundToDecimals(low, 4),
			Close:         roundToDecimals(close, 4),
			Volume:        math.Round(volume),
			AdjustedClose: optional.None[float64](),
		}

		if config.WithAdjustedClose {
			bar.AdjustedClose = optional.Some(roundToDecimals(close*0.98, 4))
		}

		bars[i] = bar

		currentPrice = close
		currentDate = currentDate.AddDate(0, 0, 1)
	}

	fields := types.OHLCVFields
	if config.WithAdjustedClose {
		fields = types.CanonicalFields
	}

	return types.NewPriceSeries(fields, bars)
}

// GenerateUniverse generates one series per instrument, varying the starting price and
// volatility slightly per instrument.
func (g *DataGenerator) GenerateUniverse(instruments []string, baseConfig GeneratorConfig) map[string]types.PriceSeries {
	out := make(map[string]types.PriceSeries, len(instruments))

	for _, instrument := range instruments {
		config := baseConfig
		config.InitialPrice = baseConfig.InitialPrice * (0.8 + g.rng.Float64()*0.4)
		config.Volatility = baseConfig.Volatility * (0.8 + g.rng.Float64()*0.4)

		out[instrument] = g.Generate(config)
	}

	return out
}

// GenerateCloseTable generates a date x instrument table of closes sharing one calendar.
func (g *DataGenerator) GenerateCloseTable(instruments []string, baseConfig GeneratorConfig) types.Table {
	universe := g.GenerateUniverse(instruments, baseConfig)

	var dates []time.Time
	if len(instruments) > 0 {
		dates = universe[instruments[0]].Dates()
	}

	table := types.NewTable(dates, instruments)

	for j, instrument := range instruments {
		for i, bar := range universe[instrument].Bars {
			table.Values[i][j] = bar.Close
		}
	}

	return table
}

func skipWeekend(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, 2)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	default:
		return d
	}
}

// roundToDecimals rounds a float64 to the specified number of decimal places.
func roundToDecimals(val float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(val*pow) / pow
}
