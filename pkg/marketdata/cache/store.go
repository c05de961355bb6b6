// Package cache persists one Parquet file per (provider, instrument) pair.
package cache

import (
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-research/internal/logger"
	"github.com/rxtech-lab/argo-research/internal/types"
	"github.com/rxtech-lab/argo-research/pkg/errors"
	"github.com/rxtech-lab/argo-research/pkg/marketdata/provider"
	"github.com/rxtech-lab/argo-research/pkg/marketdata/reader"
	"github.com/rxtech-lab/argo-research/pkg/marketdata/writer"
	"github.com/rxtech-lab/argo-research/pkg/utils"
)

const dateColumn = "date"

// Store reads and writes cached price series below a root directory laid out as
// <root>/<provider>/<instrument>.parquet. It does no locking.
type Store struct {
	root      string
	logger    *logger.Logger
	newWriter func(outputPath string) writer.ParquetWriter
}

// NewStore creates a store rooted at root. The directory is created on first write.
func NewStore(root string, log *logger.Logger) *Store {
	return &Store{
		root:      root,
		logger:    logger.OrNop(log),
		newWriter: writer.NewDuckDBWriter,
	}
}

// Root returns the directory holding every provider cache.
func (s *Store) Root() string {
	return s.root
}

// Path returns the cache file for a provider and instrument.
func (s *Store) Path(p provider.ProviderType, instrument string) string {
	return filepath.Join(s.root, utils.SanitizeFileName(string(p)), utils.SanitizeFileName(instrument)+".parquet")
}

// Read loads the cached series. It returns None when nothing is cached.
// Rows without a close are dropped and the result is sorted with one bar per date.
func (s *Store) Read(p provider.ProviderType, instrument string) (optional.Option[types.PriceSeries], error) {
	path := s.Path(p, instrument)

	if !s.Exists(p, instrument) {
		return optional.None[types.PriceSeries](), nil
	}

	r, err := reader.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	columns, err := r.Columns()
	if err != nil {
		return nil, err
	}

	var (
		fields  []types.Field
		hasDate bool
	)

	for _, c := range columns {
		if c == dateColumn {
			hasDate = true

			continue
		}

		if f, ok := types.ParseField(c); ok {
			fields = append(fields, f)
		}
	}

	fields = types.OrderFields(fields)

	if !hasDate || !containsField(fields, types.FieldClose) {
		return nil, errors.Newf(errors.ErrCodeSchemaError, "cache file %s lacks a date or close column", path)
	}

	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}

	//nolint:exhaustruct // no date bounds
	dates, values, err := r.ReadFloat64(dateColumn, names, reader.Filter{NotNull: []string{string(types.FieldClose)}})
	if err != nil {
		return nil, err
	}

	bars := make([]types.PriceBar, len(dates))
	for i, date := range dates {
		bars[i] = barFromRow(date, fields, values[i])
	}

	s.logger.Debug("Read cached prices",
		zap.String("provider", string(p)),
		zap.String("instrument", instrument),
		zap.Int("bars", len(bars)),
	)

	return optional.Some(types.NewPriceSeries(fields, bars)), nil
}

func containsField(fields []types.Field, field types.Field) bool {
	for _, f := range fields {
		if f == field {
			return true
		}
	}

	return false
}

func barFromRow(date time.Time, fields []types.Field, row []float64) types.PriceBar {
	bar := types.PriceBar{
		Date:          date,
		Open:          math.NaN(),
		High:          math.NaN(),
		Low:           math.NaN(),
		Close:         math.NaN(),
		Volume:        math.NaN(),
		AdjustedClose: optional.None[float64](),
	}

	for i, f := range fields {
		v := row[i]

		switch f {
		case types.FieldOpen:
			bar.Open = v
		case types.FieldHigh:
			bar.High = v
		case types.FieldLow:
			bar.Low = v
		case types.FieldClose:
			bar.Close = v
		case types.FieldVolume:
			bar.Volume = v
		case types.FieldAdjustedClose:
			if !math.IsNaN(v) {
				bar.AdjustedClose = optional.Some(v)
			}
		}
	}

	return bar
}

// Write replaces the cached series. The series is sorted and deduplicated first.
// The file is written beside the target and renamed into place, so a failed write
// leaves the previous file untouched.
func (s *Store) Write(p provider.ProviderType, instrument string, series types.PriceSeries) (err error) {
	series = series.Normalize()
	path := s.Path(p, instrument)

	columns := make([]writer.Column, 0, len(series.Fields)+1)
	columns = append(columns, writer.Column{Name: dateColumn, Type: writer.ColumnDate})

	for _, f := range series.Fields {
		columns = append(columns, writer.Column{Name: string(f), Type: writer.ColumnDouble})
	}

	w := s.newWriter(path)
	if err := w.Initialize(columns); err != nil {
		return errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to prepare cache file %s", path)
	}

	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(errors.ErrCodeStorageFailed, cerr, "failed to close cache writer for %s", path)
		}
	}()

	row := make([]any, len(columns))

	for _, bar := range series.Bars {
		row[0] = bar.Date

		for i, f := range series.Fields {
			v, _ := bar.Value(f)
			row[i+1] = v
		}

		if err := w.Write(row...); err != nil {
			return errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to write cache file %s", path)
		}
	}

	if _, err := w.Finalize(); err != nil {
		return errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to write cache file %s", path)
	}

	s.logger.Debug("Wrote cached prices",
		zap.String("provider", string(p)),
		zap.String("instrument", instrument),
		zap.Int("bars", series.Len()),
	)

	return nil
}

// Clear removes every cached file.
func (s *Store) Clear() error {
	if err := os.RemoveAll(s.root); err != nil {
		return errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to remove %s", s.root)
	}

	return nil
}

// Exists reports whether a cache file exists for the pair.
func (s *Store) Exists(p provider.ProviderType, instrument string) bool {
	_, err := os.Stat(s.Path(p, instrument))

	return err == nil
}

