// Package runner drives one backtest from the canonical dataset to a persisted run directory.
package runner

import (
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-research/internal/backtest/engine"
	"github.com/rxtech-lab/argo-research/internal/backtest/results"
	"github.com/rxtech-lab/argo-research/internal/logger"
	"github.com/rxtech-lab/argo-research/internal/strategy"
	"github.com/rxtech-lab/argo-research/internal/types"
	"github.com/rxtech-lab/argo-research/internal/version"
	"github.com/rxtech-lab/argo-research/pkg/errors"
)

const dateLayout = "2006-01-02"

// FieldLoader loads a date x instrument projection of the canonical dataset.
type FieldLoader interface {
	LoadField(field types.Field) (types.Table, error)
}

// Universe lists the instruments of the given kinds.
type Universe interface {
	ListUniverse(kinds ...string) []string
}

// Config describes one run.
type Config struct {
	Name      string                        `validate:"required"`
	Field     types.Field                   `validate:"required"`
	Kinds     []string                      `validate:"min=1,dive,required"`
	StartDate optional.Option[time.Time]
}

// Summary is what a finished run reports.
type Summary struct {
	Run         results.Run
	Instruments []string
	Start       time.Time
	End         time.Time
	FinalEquity float64
	EquityPath  string
}

// Runner wires the dataset, a strategy, the engine and the results manager together.
type Runner struct {
	loader   FieldLoader
	universe Universe
	engine   engine.Engine
	results  *results.Manager
	logger   *logger.Logger
	now      func() time.Time
}

// NewRunner creates a runner.
func NewRunner(loader FieldLoader, universe Universe, eng engine.Engine, manager *results.Manager, log *logger.Logger) *Runner {
	return &Runner{
		loader:   loader,
		universe: universe,
		engine:   eng,
		results:  manager,
		logger:   logger.OrNop(log),
		now:      time.Now,
	}
}

// Run loads config.Field for the kind-filtered universe, evaluates s day by day, runs the
// engine from config.StartDate and persists the equity curve and a manifest.
func (r *Runner) Run(s strategy.Strategy, config Config) (Summary, error) {
	if err := validator.New().Struct(config); err != nil {
		return Summary{}, errors.Wrap(errors.ErrCodeBacktestConfigError, "invalid backtest config", err)
	}

	table, err := r.loader.LoadField(config.Field)
	if err != nil {
		return Summary{}, err
	}

	instruments := r.present(table, r.universe.ListUniverse(config.Kinds...))
	if len(instruments) == 0 {
		return Summary{}, errors.Newf(errors.ErrCodeEmptyInput, "no instruments of kind %v in the canonical dataset", config.Kinds)
	}

	prices := table.Select(instruments)

	r.logger.Info("Computing weights",
		zap.String("strategy", s.Name()),
		zap.Int("instruments", len(instruments)),
		zap.Int("dates", prices.Len()),
	)

	weights, err := strategy.WeightsByDay(s, prices)
	if err != nil {
		return Summary{}, err
	}

	curve, err := r.engine.Run(prices, weights, engine.Options{StartDate: config.StartDate})
	if err != nil {
		return Summary{}, err
	}

	final := curve.Final()
	if final.IsNone() {
		return Summary{}, errors.New(errors.ErrCodeEmptyInput, "backtest produced an empty equity curve")
	}

	run, err := r.results.MakeRunDir(config.Name)
	if err != nil {
		return Summary{}, err
	}

	path, err := results.SaveEquity(run.Dir, curve)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		Run:         run,
		Instruments: instruments,
		Start:       curve.Dates[0],
		End:         curve.Dates[curve.Len()-1],
		FinalEquity: final.Unwrap(),
		EquityPath:  path,
	}

	if err := results.SaveManifest(run.Dir, r.manifest(s, config, summary)); err != nil {
		return Summary{}, err
	}

	r.logger.Info("Backtest finished",
		zap.String("run_id", run.ID),
		zap.String("path", run.Dir),
		zap.Float64("final_equity", summary.FinalEquity),
	)

	return summary, nil
}

func (r *Runner) present(table types.Table, universe []string) []string {
	instruments := make([]string, 0, len(universe))

	for _, key := range universe {
		if table.ColumnIndex(key) >= 0 {
			instruments = append(instruments, key)
		} else {
			r.logger.Warn("Instrument missing from canonical dataset", zap.String("instrument", key))
		}
	}

	return instruments
}

func (r *Runner) manifest(s strategy.Strategy, config Config, summary Summary) results.Manifest {
	parameters := map[string]string{}
	if sma, ok := s.(*strategy.SMATrend); ok {
		parameters["window"] = strconv.Itoa(sma.Window())
	}

	if config.StartDate.IsSome() {
		parameters["start_date"] = config.StartDate.Unwrap().Format(dateLayout)
	}

	return results.Manifest{
		ID:          summary.Run.ID,
		Name:        config.Name,
		CreatedAt:   r.now().UTC(),
		Strategy:    s.Name(),
		Parameters:  parameters,
		Field:       string(config.Field),
		Instruments: summary.Instruments,
		Start:       summary.Start.Format(dateLayout),
		End:         summary.End.Format(dateLayout),
		FinalEquity: summary.FinalEquity,
		Version:     version.GetVersion(),
	}
}
