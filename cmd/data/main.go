package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/moznion/go-optional"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	"github.com/rxtech-lab/argo-research/internal/app"
	"github.com/rxtech-lab/argo-research/internal/quality"
	"github.com/rxtech-lab/argo-research/internal/registry"
	"github.com/rxtech-lab/argo-research/internal/types"
	"github.com/rxtech-lab/argo-research/internal/version"
	"github.com/rxtech-lab/argo-research/pkg/errors"
	"github.com/rxtech-lab/argo-research/pkg/marketdata"
	"github.com/rxtech-lab/argo-research/pkg/marketdata/provider"
)

func bootstrap(cmd *cli.Command) (*app.Environment, error) {
	return app.Bootstrap(cmd.String("config"), cmd.String("log-level"))
}

// optionalDate returns the timestamp flag when it was given.
func optionalDate(cmd *cli.Command, name string) optional.Option[time.Time] {
	if !cmd.IsSet(name) {
		return optional.None[time.Time]()
	}

	return optional.Some(cmd.Timestamp(name))
}

func parseField(name string) (types.Field, error) {
	field, ok := types.ParseField(name)
	if !ok {
		return "", errors.Newf(errors.ErrCodeFieldNotFound, "unknown field %q", name)
	}

	return field, nil
}

func priorityFlag(cmd *cli.Command) ([]provider.ProviderType, error) {
	names := cmd.StringSlice("providers")
	if len(names) == 0 {
		return nil, nil
	}

	return provider.ParseProviderTypes(names)
}

// withProgress reports instrument progress on a progress bar sized on the first callback.
func withProgress(client *marketdata.Client, description string) func() {
	var bar *progressbar.ProgressBar

	client.SetOnProgress(func(done, total int, instrument string) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription(description),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
			)
		}

		bar.Describe(fmt.Sprintf("%s %s", description, instrument))
		_ = bar.Set(done)
	})

	return func() {
		if bar != nil {
			_ = bar.Finish()
		}

		client.SetOnProgress(nil)
	}
}

func printAttempts(err error) {
	if out, ok := RenderAttempts(err); ok {
		fmt.Fprintln(os.Stderr, out)
	}
}

func updateAction(ctx context.Context, cmd *cli.Command) error {
	env, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	priority, err := priorityFlag(cmd)
	if err != nil {
		return err
	}

	done := withProgress(env.Client, "updating")
	used, err := env.Client.Update(ctx, cmd.StringSlice("instrument"), priority)
	done()

	if err != nil {
		printAttempts(err)

		return fmt.Errorf("update failed: %w", err)
	}

	fmt.Println(RenderProvidersUsed(used))

	return nil
}

func exportAction(ctx context.Context, cmd *cli.Command) error {
	env, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	priority, err := priorityFlag(cmd)
	if err != nil {
		return err
	}

	done := withProgress(env.Client, "exporting")
	result, err := env.Client.Export(ctx, cmd.StringSlice("instrument"), priority)
	done()

	if err != nil {
		printAttempts(err)

		return fmt.Errorf("export failed: %w", err)
	}

	fmt.Println(RenderProvidersUsed(result.Providers))
	fmt.Printf("Canonical dataset written to %s (%d dates, %d instruments)\n",
		result.Path, len(result.Dataset.Dates), len(result.Dataset.Instruments))

	return nil
}

func rebuildAction(ctx context.Context, cmd *cli.Command) error {
	env, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	priority, err := priorityFlag(cmd)
	if err != nil {
		return err
	}

	done := withProgress(env.Client, "rebuilding")
	result, err := env.Client.Rebuild(ctx, priority)
	done()

	if err != nil {
		printAttempts(err)

		return fmt.Errorf("rebuild failed: %w", err)
	}

	fmt.Println(RenderProvidersUsed(result.Providers))
	fmt.Printf("Canonical dataset rebuilt at %s\n", result.Path)

	return nil
}

func inspectAction(_ context.Context, cmd *cli.Command) error {
	env, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	instrument := cmd.String("instrument")

	var (
		series types.PriceSeries
		title  string
	)

	switch mode := cmd.String("mode"); mode {
	case "raw":
		p, err := provider.ParseProviderType(cmd.String("provider"))
		if err != nil {
			return err
		}

		symbol, err := env.Registry.Identifier(instrument, string(p))
		if err != nil {
			return err
		}

		cached, err := env.Client.ReadRaw(p, instrument)
		if err != nil {
			return err
		}

		if cached.IsNone() {
			return errors.Newf(errors.ErrCodeDataNotFound, "no %s cache for %s, run update first", p, instrument)
		}

		series = cached.Unwrap()
		title = fmt.Sprintf("%s %s (%s cache)", instrument, symbol, p)
	case "canonical":
		dataset, err := env.Client.LoadDataset()
		if err != nil {
			return err
		}

		found, ok := dataset.Instrument(instrument)
		if !ok {
			return errors.Newf(errors.ErrCodeDataNotFound, "instrument %q not in canonical dataset", instrument)
		}

		series = found
		title = fmt.Sprintf("%s (canonical)", instrument)
	default:
		return errors.Newf(errors.ErrCodeInvalidParameter, "unknown mode %q, expected canonical or raw", mode)
	}

	fields := series.Fields
	if !cmd.Bool("ohlcv") {
		field, err := parseField(cmd.String("field"))
		if err != nil {
			return err
		}

		fields = []types.Field{field}
	}

	series = series.Between(optionalDate(cmd, "start"), optionalDate(cmd, "end"))

	if n := int(cmd.Int("head")); n > 0 && n < series.Len() {
		series.Bars = series.Bars[:n]
	}

	if n := int(cmd.Int("tail")); n > 0 && n < series.Len() {
		series.Bars = series.Bars[series.Len()-n:]
	}

	fmt.Println(RenderSeries(title, series, fields))

	return nil
}

func extremesAction(_ context.Context, cmd *cli.Command) error {
	env, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	field, err := parseField(cmd.String("field"))
	if err != nil {
		return err
	}

	prices, err := env.Client.LoadField(field)
	if err != nil {
		return err
	}

	prices = prices.SortByDate().Between(optionalDate(cmd, "start"), optionalDate(cmd, "end"))

	opts := quality.Options{
		Lower:      cmd.Float("lower"),
		Upper:      cmd.Float("upper"),
		SearchFrom: optional.Some(cmd.Timestamp("search-from")),
	}

	reports, err := quality.Scan(prices, cmd.StringSlice("instrument"), opts)
	if err != nil {
		return err
	}

	fmt.Println(RenderExtremes(reports, int(cmd.Int("top")), opts.SearchFrom))

	return nil
}

func providersAction(_ context.Context, _ *cli.Command) error {
	names := marketdata.GetSupportedProviders()
	infos := make([]marketdata.ProviderInfo, 0, len(names))

	for _, name := range names {
		info, err := marketdata.GetProviderInfo(name)
		if err != nil {
			return err
		}

		infos = append(infos, info)
	}

	fmt.Println(RenderProviders(infos))

	return nil
}

func registrySchemaAction(_ context.Context, cmd *cli.Command) error {
	var (
		schema string
		err    error
	)

	if name := cmd.String("provider"); name != "" {
		schema, err = marketdata.GetProviderConfigSchema(name)
	} else {
		schema, err = registry.Schema()
	}

	if err != nil {
		return err
	}

	fmt.Println(schema)

	return nil
}

func dateFlag(name, usage string) *cli.TimestampFlag {
	return &cli.TimestampFlag{
		Name:  name,
		Usage: usage,
		Config: cli.TimestampConfig{
			Layouts: []string{dateLayout},
		},
	}
}

func providersFlag() *cli.StringSliceFlag {
	return &cli.StringSliceFlag{
		Name:    "providers",
		Aliases: []string{"p"},
		Usage:   fmt.Sprintf("Provider priority (any of %s). Defaults to provider_priority", strings.Join(marketdata.GetSupportedProviders(), ", ")),
	}
}

func instrumentFlag(usage string) *cli.StringSliceFlag {
	return &cli.StringSliceFlag{
		Name:    "instrument",
		Aliases: []string{"i"},
		Usage:   usage,
	}
}

func main() {
	searchFrom := quality.DefaultOptions().SearchFrom.Unwrap()

	cmd := &cli.Command{
		Name:    "data",
		Version: version.GetVersion(),
		Usage:   "Maintain the daily price caches and the canonical dataset",
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
				Name:   "update",
				Usage:  "Refresh the raw provider caches",
				Flags:  []cli.Flag{providersFlag(), instrumentFlag("Instrument key to update. Repeat for more. Defaults to the whole registry")},
				Action: updateAction,
			},
			{
				Name:   "export",
				Usage:  "Update every instrument and write the canonical dataset",
				Flags:  []cli.Flag{providersFlag(), instrumentFlag("Instrument key to export. Repeat for more. Defaults to the whole registry")},
				Action: exportAction,
			},
			{
				Name:   "rebuild",
				Usage:  "Delete all caches and the canonical dataset, then export from scratch",
				Flags:  []cli.Flag{providersFlag()},
				Action: rebuildAction,
			},
			{
				Name:  "inspect",
				Usage: "Print the cached or canonical prices of one instrument",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "instrument", Aliases: []string{"i"}, Usage: "Instrument key", Required: true},
					&cli.StringFlag{Name: "mode", Usage: "canonical or raw", Value: "canonical"},
					&cli.StringFlag{Name: "provider", Usage: "Provider cache to read in raw mode", Value: string(provider.ProviderStooq)},
					&cli.StringFlag{Name: "field", Aliases: []string{"f"}, Usage: "Field to print", Value: string(types.FieldAdjustedClose)},
					&cli.BoolFlag{Name: "ohlcv", Usage: "Print every field"},
					dateFlag("start", "First date in `YYYY-MM-DD` format"),
					dateFlag("end", "Last date in `YYYY-MM-DD` format"),
					&cli.IntFlag{Name: "head", Usage: "Only print the first N rows"},
					&cli.IntFlag{Name: "tail", Usage: "Only print the last N rows"},
				},
				Action: inspectAction,
			},
			{
				Name:  "extremes",
				Usage: "Scan the canonical dataset for implausible daily returns",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "field", Aliases: []string{"f"}, Usage: "Field to scan", Value: string(types.FieldAdjustedClose)},
					instrumentFlag("Instrument key to scan. Repeat for more. Defaults to every instrument"),
					dateFlag("start", "First date in `YYYY-MM-DD` format"),
					dateFlag("end", "Last date in `YYYY-MM-DD` format"),
					&cli.FloatFlag{Name: "lower", Usage: "Returns below this are extreme", Value: quality.DefaultOptions().Lower},
					&cli.FloatFlag{Name: "upper", Usage: "Returns above this are extreme", Value: quality.DefaultOptions().Upper},
					&cli.IntFlag{Name: "top", Usage: "Worst and best events to print per instrument", Value: 5},
					&cli.TimestampFlag{
						Name:   "search-from",
						Usage:  "Ignore earlier events when suggesting a clean start",
						Value:  searchFrom,
						Config: cli.TimestampConfig{Layouts: []string{dateLayout}},
					},
				},
				Action: extremesAction,
			},
			{
				Name:   "providers",
				Usage:  "List the supported providers",
				Action: providersAction,
			},
			{
				Name:  "registry-schema",
				Usage: "Print the JSON schema of the instrument registry, or of a provider config",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "provider", Usage: "Print this provider's config schema instead"},
				},
				Action: registrySchemaAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(ErrorStyle.Render(err.Error()))
	}
}
