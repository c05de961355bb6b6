package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/moznion/go-optional"
	"github.com/urfave/cli/v3"

	"github.com/rxtech-lab/argo-research/internal/app"
	"github.com/rxtech-lab/argo-research/internal/backtest/runner"
	"github.com/rxtech-lab/argo-research/internal/strategy"
	"github.com/rxtech-lab/argo-research/internal/types"
	"github.com/rxtech-lab/argo-research/internal/version"
	"github.com/rxtech-lab/argo-research/pkg/errors"
)

const dateLayout = "2006-01-02"

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	errorStyle = lipgloss.NewStyle().Bold(true)
)

func renderSummary(s runner.Summary) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Row("run", s.Run.Dir).
		Row("instruments", fmt.Sprintf("%d", len(s.Instruments))).
		Row("start", s.Start.Format(dateLayout)).
		Row("end", s.End.Format(dateLayout)).
		Row("final equity", fmt.Sprintf("%.4f", s.FinalEquity))

	return titleStyle.Render("Backtest finished") + "\n" + t.Render()
}

func runAction(_ context.Context, cmd *cli.Command) error {
	env, err := app.Bootstrap(cmd.String("config"), cmd.String("log-level"))
	if err != nil {
		return err
	}
	defer env.Close()

	s, err := strategy.New(strategy.Config{
		Name:   cmd.String("strategy"),
		Window: int(cmd.Int("window")),
	})
	if err != nil {
		return err
	}

	field, ok := types.ParseField(cmd.String("field"))
	if !ok {
		return errors.Newf(errors.ErrCodeFieldNotFound, "unknown field %q", cmd.String("field"))
	}

	summary, err := env.Runner().Run(s, runner.Config{
		Name:      cmd.String("name"),
		Field:     field,
		Kinds:     cmd.StringSlice("kinds"),
		StartDate: optional.Some(cmd.Timestamp("start")),
	})
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	fmt.Println(renderSummary(summary))

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:    "backtest",
		Version: version.GetVersion(),
		Usage:   "Run vectorized backtests on the canonical dataset",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the settings YAML file",
				Sources: cli.EnvVars("ALGO_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override the configured log level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run a strategy and store its equity curve in a new run directory",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "strategy", Aliases: []string{"s"}, Usage: "Strategy name", Value: strategy.SMATrendName},
					&cli.IntFlag{Name: "window", Usage: "Moving average window in trading days", Value: strategy.DefaultSMAWindow},
					&cli.TimestampFlag{
						Name:   "start",
						Usage:  "First date of the backtest in `YYYY-MM-DD` format",
						Value:  time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC),
						Config: cli.TimestampConfig{Layouts: []string{dateLayout}},
					},
					&cli.StringSliceFlag{Name: "kinds", Usage: "Asset kinds forming the universe", Value: []string{"equity", "etf"}},
					&cli.StringFlag{Name: "field", Aliases: []string{"f"}, Usage: "Canonical field to trade on", Value: string(types.FieldAdjustedClose)},
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Run name", Value: "test_run"},
				},
				Action: runAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(errorStyle.Render(err.Error()))
	}
}
