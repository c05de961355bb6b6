// Package reader queries Parquet files through an in-memory DuckDB view.
package reader

import (
	"database/sql"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-research/pkg/errors"
	"github.com/rxtech-lab/argo-research/pkg/utils"
)

const viewName = "parquet_data"

// Filter narrows the rows returned by ReadFloat64.
type Filter struct {
	Start optional.Option[time.Time]
	End   optional.Option[time.Time]
	// NotNull drops rows where any of these columns is NULL.
	NotNull []string
}

// ParquetReader exposes one Parquet file as a queryable view.
type ParquetReader struct {
	db   *sql.DB
	path string
	sq   squirrel.StatementBuilderType
}

// Open creates a reader for the file at path.
// It returns an ErrCodeDataNotFound error when the file does not exist.
func Open(path string) (*ParquetReader, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(errors.ErrCodeDataNotFound, err, "parquet file %s does not exist", path)
		}

		return nil, errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to stat %s", path)
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageFailed, "failed to open DuckDB connection", err)
	}

	// Squirrel doesn't support CREATE VIEW
	query := fmt.Sprintf("CREATE VIEW %s AS SELECT * FROM read_parquet(%s)", viewName, utils.QuoteLiteral(path))
	if _, err := db.Exec(query); err != nil {
		db.Close()

		return nil, errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to read parquet file %s", path)
	}

	return &ParquetReader{
		db:   db,
		path: path,
		sq:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

// Columns returns the column names of the file in schema order.
func (r *ParquetReader) Columns() ([]string, error) {
	query, args, err := r.sq.
		Select("column_name").
		From("information_schema.columns").
		Where(squirrel.Eq{"table_name": viewName}).
		OrderBy("ordinal_position").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build schema query", err)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to read schema of %s", r.path)
	}
	defer rows.Close()

	var columns []string

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan column name", err)
		}

		columns = append(columns, name)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to iterate schema", err)
	}

	return columns, nil
}

// ReadFloat64 returns the date column and the requested numeric columns ordered by date.
// NULL cells are returned as NaN. values[i][j] belongs to dates[i] and columns[j].
func (r *ParquetReader) ReadFloat64(dateColumn string, columns []string, filter Filter) ([]time.Time, [][]float64, error) {
	selected := make([]string, 0, len(columns)+1)
	selected = append(selected, utils.QuoteIdentifier(dateColumn))

	for _, c := range columns {
		selected = append(selected, utils.QuoteIdentifier(c))
	}

	dateCol := utils.QuoteIdentifier(dateColumn)
	builder := r.sq.Select(selected...).From(viewName)

	if filter.Start.IsSome() {
		builder = builder.Where(squirrel.GtOrEq{dateCol: filter.Start.Unwrap()})
	}

	if filter.End.IsSome() {
		builder = builder.Where(squirrel.LtOrEq{dateCol: filter.End.Unwrap()})
	}

	for _, c := range filter.NotNull {
		builder = builder.Where(squirrel.NotEq{utils.QuoteIdentifier(c): nil})
	}

	query, args, err := builder.OrderBy(dateCol).ToSql()
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build select query", err)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, nil, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to query %s", r.path)
	}
	defer rows.Close()

	var (
		dates  []time.Time
		values [][]float64
	)

	for rows.Next() {
		var date time.Time

		cells := make([]sql.NullFloat64, len(columns))
		dest := make([]any, 0, len(columns)+1)
		dest = append(dest, &date)

		for i := range cells {
			dest = append(dest, &cells[i])
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan row", err)
		}

		row := make([]float64, len(columns))
		for i, cell := range cells {
			if cell.Valid {
				row[i] = cell.Float64
			} else {
				row[i] = math.NaN()
			}
		}

		dates = append(dates, date.UTC())
		values = append(values, row)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to iterate rows", err)
	}

	return dates, values, nil
}

// Close releases the DuckDB connection.
func (r *ParquetReader) Close() error {
	return r.db.Close()
}
