package marketdata

import (
	"context"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rxtech-lab/argo-research/internal/logger"
	"github.com/rxtech-lab/argo-research/internal/types"
	"github.com/rxtech-lab/argo-research/pkg/errors"
	"github.com/rxtech-lab/argo-research/pkg/marketdata/provider"
	"github.com/rxtech-lab/argo-research/pkg/marketdata/reader"
	"github.com/rxtech-lab/argo-research/pkg/marketdata/writer"
)

const canonicalDateColumn = "date"

// OnProgress is called after each instrument of a build or update completes.
type OnProgress = func(done int, total int, instrument string)

// BuildResult describes a persisted canonical dataset.
type BuildResult struct {
	Dataset types.CanonicalDataset
	Path    string
	// Providers records which provider served each instrument.
	Providers map[string]provider.ProviderType
}

// CanonicalBuilder assembles the canonical multi-instrument dataset and owns its file.
type CanonicalBuilder struct {
	updater     InstrumentUpdater
	path        string
	concurrency int
	logger      *logger.Logger
	newWriter   func(outputPath string) writer.ParquetWriter
	onProgress  OnProgress
}

// NewCanonicalBuilder creates a builder writing to path. concurrency below 2 updates
// instruments one at a time.
func NewCanonicalBuilder(updater InstrumentUpdater, path string, concurrency int, log *logger.Logger) *CanonicalBuilder {
	if concurrency < 1 {
		concurrency = 1
	}

	return &CanonicalBuilder{
		updater:     updater,
		path:        path,
		concurrency: concurrency,
		logger:      logger.OrNop(log),
		newWriter:   writer.NewDuckDBWriter,
		onProgress:  nil,
	}
}

// SetOnProgress registers a progress callback.
func (b *CanonicalBuilder) SetOnProgress(fn OnProgress) {
	b.onProgress = fn
}

// Path returns the location of the canonical dataset.
func (b *CanonicalBuilder) Path() string {
	return b.path
}

// Build updates every instrument of the universe, canonicalizes and outer-joins them and
// persists the result. Any instrument failure aborts the build and leaves the previous
// dataset file untouched.
func (b *CanonicalBuilder) Build(ctx context.Context, universe []string, priority []provider.ProviderType) (BuildResult, error) {
	if len(universe) == 0 {
		return BuildResult{}, errors.New(errors.ErrCodeEmptyInput, "universe is empty")
	}

	canonical := make([]types.PriceSeries, len(universe))
	providers := make(map[string]provider.ProviderType, len(universe))

	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i, instrument := range universe {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			result, err := b.updater.Update(gctx, instrument, priority)
			if err != nil {
				return err
			}

			series, err := Canonicalize(instrument, result.Series)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()

			canonical[i] = series
			providers[instrument] = result.Provider
			done++

			if b.onProgress != nil {
				b.onProgress(done, len(universe), instrument)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return BuildResult{}, err
	}

	dataset := OuterJoin(universe, canonical)

	if err := b.persist(dataset); err != nil {
		return BuildResult{}, err
	}

	b.logger.Info("Exported canonical dataset",
		zap.String("path", b.path),
		zap.Int("instruments", len(universe)),
		zap.Int("dates", len(dataset.Dates)),
	)

	return BuildResult{Dataset: dataset, Path: b.path, Providers: providers}, nil
}

// Canonicalize checks that series carries every OHLCV field and fills adjusted_close
// from close when the source does not provide it.
func Canonicalize(instrument string, series types.PriceSeries) (types.PriceSeries, error) {
	var missing []string

	for _, f := range types.OHLCVFields {
		if !series.HasField(f) {
			missing = append(missing, string(f))
		}
	}

	if len(missing) > 0 {
		return types.PriceSeries{}, errors.Newf(errors.ErrCodeSchemaError,
			"%s is missing required fields: %s", instrument, strings.Join(missing, ", "))
	}

	bars := make([]types.PriceBar, len(series.Bars))
	copy(bars, series.Bars)

	if !series.HasField(types.FieldAdjustedClose) {
		for i := range bars {
			bars[i].AdjustedClose = optional.Some(bars[i].Close)
		}
	}

	return types.PriceSeries{Fields: types.CanonicalFields, Bars: bars}, nil
}

// OuterJoin aligns canonical series on the union of their dates. series[i] belongs to
// instruments[i]. Cells an instrument has no bar for are NaN.
func OuterJoin(instruments []string, series []types.PriceSeries) types.CanonicalDataset {
	seen := make(map[time.Time]bool)

	for _, s := range series {
		for _, bar := range s.Bars {
			seen[bar.Date] = true
		}
	}

	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	rowOf := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		rowOf[d] = i
	}

	frames := make(map[types.Field]types.Table, len(types.CanonicalFields))
	for _, f := range types.CanonicalFields {
		frames[f] = types.NewTable(dates, instruments)
	}

	for col, s := range series {
		for _, bar := range s.Bars {
			row := rowOf[bar.Date]

			for _, f := range types.CanonicalFields {
				v, _ := bar.Value(f)
				frames[f].Values[row][col] = v
			}
		}
	}

	return types.CanonicalDataset{
		Dates:       dates,
		Instruments: append([]string(nil), instruments...),
		Frames:      frames,
	}
}

func (b *CanonicalBuilder) persist(dataset types.CanonicalDataset) (err error) {
	columns := make([]writer.Column, 0, 1+len(dataset.Instruments)*len(types.CanonicalFields))
	columns = append(columns, writer.Column{Name: canonicalDateColumn, Type: writer.ColumnDate})

	for _, instrument := range dataset.Instruments {
		for _, f := range types.CanonicalFields {
			columns = append(columns, writer.Column{Name: types.ColumnName(instrument, f), Type: writer.ColumnDouble})
		}
	}

	w := b.newWriter(b.path)
	if err := w.Initialize(columns); err != nil {
		return errors.Wrap(errors.ErrCodeStorageFailed, "failed to prepare canonical dataset", err)
	}

	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = errors.Wrap(errors.ErrCodeStorageFailed, "failed to close canonical writer", cerr)
		}
	}()

	row := make([]any, len(columns))

	for i, date := range dataset.Dates {
		row[0] = date
		col := 1

		for j := range dataset.Instruments {
			for _, f := range types.CanonicalFields {
				row[col] = dataset.Frames[f].Values[i][j]
				col++
			}
		}

		if err := w.Write(row...); err != nil {
			return errors.Wrap(errors.ErrCodeStorageFailed, "failed to write canonical dataset", err)
		}
	}

	if _, err := w.Finalize(); err != nil {
		return errors.Wrap(errors.ErrCodeStorageFailed, "failed to write canonical dataset", err)
	}

	return nil
}

// canonicalSchema is the parsed column layout of the persisted dataset.
type canonicalSchema struct {
	instruments []string
	fields      []types.Field
	columns     map[types.Field][]string
}

func (b *CanonicalBuilder) open() (*reader.ParquetReader, canonicalSchema, error) {
	r, err := reader.Open(b.path)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeDataNotFound) {
			return nil, canonicalSchema{}, errors.Wrapf(errors.ErrCodeDataNotFound, err,
				"canonical dataset not found at %s, run the export first", b.path)
		}

		return nil, canonicalSchema{}, err
	}

	names, err := r.Columns()
	if err != nil {
		r.Close()

		return nil, canonicalSchema{}, err
	}

	schema := canonicalSchema{instruments: nil, fields: nil, columns: make(map[types.Field][]string)}
	seenInstrument := make(map[string]bool)

	var fields []types.Field

	for _, name := range names {
		instrument, field, ok := types.SplitColumnName(name)
		if !ok {
			continue
		}

		if !seenInstrument[instrument] {
			seenInstrument[instrument] = true
			schema.instruments = append(schema.instruments, instrument)
		}

		fields = append(fields, field)
		schema.columns[field] = append(schema.columns[field], name)
	}

	schema.fields = types.OrderFields(fields)

	return r, schema, nil
}

// Fields lists the fields present in the persisted dataset.
func (b *CanonicalBuilder) Fields() ([]types.Field, error) {
	r, schema, err := b.open()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return schema.fields, nil
}

// Load returns the date x instrument projection of one field of the persisted dataset.
// It fails with ErrCodeDataNotFound when the dataset does not exist and with
// ErrCodeFieldNotFound when the field is not in its schema.
func (b *CanonicalBuilder) Load(field types.Field) (types.Table, error) {
	r, schema, err := b.open()
	if err != nil {
		return types.Table{}, err
	}
	defer r.Close()

	columns, ok := schema.columns[field]
	if !ok {
		available := make([]string, len(schema.fields))
		for i, f := range schema.fields {
			available[i] = string(f)
		}

		return types.Table{}, errors.Newf(errors.ErrCodeFieldNotFound,
			"field %q not in canonical dataset. Available: %s", field, strings.Join(available, ", "))
	}

	dates, values, err := r.ReadFloat64(canonicalDateColumn, columns, reader.Filter{}) //nolint:exhaustruct // whole history
	if err != nil {
		return types.Table{}, err
	}

	instruments := make([]string, len(columns))
	for i, c := range columns {
		instruments[i], _, _ = types.SplitColumnName(c)
	}

	return types.Table{Dates: dates, Columns: instruments, Values: values}, nil
}

// LoadDataset reads every field of the persisted dataset.
func (b *CanonicalBuilder) LoadDataset() (types.CanonicalDataset, error) {
	fields, err := b.Fields()
	if err != nil {
		return types.CanonicalDataset{}, err
	}

	dataset := types.CanonicalDataset{Dates: nil, Instruments: nil, Frames: make(map[types.Field]types.Table, len(fields))}

	for _, f := range fields {
		table, err := b.Load(f)
		if err != nil {
			return types.CanonicalDataset{}, err
		}

		// Every field has a column per instrument, so the tables share their axes.
		table = table.Select(firstNonEmpty(dataset.Instruments, table.Columns))
		dataset.Dates = table.Dates
		dataset.Instruments = table.Columns
		dataset.Frames[f] = table
	}

	return dataset, nil
}

func firstNonEmpty(a, b []string) []string {
	if len(a) > 0 {
		return a
	}

	return b
}

// Remove deletes the persisted dataset if it exists.
func (b *CanonicalBuilder) Remove() error {
	if err := os.Remove(b.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to remove %s", b.path)
	}

	return nil
}

