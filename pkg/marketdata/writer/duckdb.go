package writer

import (
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/multierr"

	"github.com/rxtech-lab/argo-research/pkg/utils"
)

const tableName = "export_data"

// DuckDBWriter buffers rows in an in-memory DuckDB table and exports them to Parquet.
type DuckDBWriter struct {
	db         *sql.DB
	tx         *sql.Tx
	stmt       *sql.Stmt
	columns    []Column
	outputPath string
}

// NewDuckDBWriter creates a new DuckDBWriter that will write to outputPath.
func NewDuckDBWriter(outputPath string) ParquetWriter {
	return &DuckDBWriter{
		db:         nil,
		tx:         nil,
		stmt:       nil,
		columns:    nil,
		outputPath: outputPath,
	}
}

// Initialize opens an in-memory database, creates the table, begins a transaction
// and prepares the insert statement.
func (w *DuckDBWriter) Initialize(columns []Column) (err error) {
	if len(columns) == 0 {
		return fmt.Errorf("at least one column is required")
	}

	w.db, err = sql.Open("duckdb", ":memory:")
	if err != nil {
		return fmt.Errorf("failed to open DuckDB connection: %w", err)
	}

	defs := make([]string, len(columns))
	names := make([]string, len(columns))
	placeholders := make([]string, len(columns))

	for i, c := range columns {
		defs[i] = utils.QuoteIdentifier(c.Name) + " " + string(c.Type)
		names[i] = utils.QuoteIdentifier(c.Name)
		placeholders[i] = "?"
	}

	_, err = w.db.Exec(fmt.Sprintf("CREATE TABLE %s (%s)", tableName, strings.Join(defs, ", ")))
	if err != nil {
		w.db.Close()
		w.db = nil

		return fmt.Errorf("failed to create table: %w", err)
	}

	w.tx, err = w.db.Begin()
	if err != nil {
		w.db.Close()
		w.db = nil

		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	w.stmt, err = w.tx.Prepare(fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		tableName, strings.Join(names, ", "), strings.Join(placeholders, ", "),
	))
	if err != nil {
		w.tx.Rollback()
		w.db.Close()
		w.tx = nil
		w.db = nil

		return fmt.Errorf("failed to prepare statement: %w", err)
	}

	w.columns = columns

	return nil
}

// Write inserts one row. NaN floats are stored as NULL.
func (w *DuckDBWriter) Write(values ...any) error {
	if w.stmt == nil {
		return fmt.Errorf("writer not initialized or statement is nil")
	}

	if len(values) != len(w.columns) {
		return fmt.Errorf("expected %d values, got %d", len(w.columns), len(values))
	}

	args := make([]any, len(values))
	for i, v := range values {
		args[i] = nullIfNaN(v)
	}

	if _, err := w.stmt.Exec(args...); err != nil {
		return fmt.Errorf("failed to insert row: %w", err)
	}

	return nil
}

func nullIfNaN(v any) any {
	if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return nil
	}

	return v
}

// Finalize commits the transaction and exports the table next to the output path,
// then renames it over the output path. A failed export leaves any previous file untouched.
func (w *DuckDBWriter) Finalize() (outputPath string, err error) {
	if w.tx == nil {
		return "", fmt.Errorf("writer not initialized or transaction is nil")
	}

	if err = w.stmt.Close(); err != nil {
		return "", fmt.Errorf("failed to close statement: %w", err)
	}

	w.stmt = nil

	if err = w.tx.Commit(); err != nil {
		w.tx.Rollback()
		w.tx = nil

		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	w.tx = nil

	dir := filepath.Dir(w.outputPath)
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(w.outputPath), uuid.New().String()))

	_, err = w.db.Exec(fmt.Sprintf("COPY %s TO %s (FORMAT PARQUET)", tableName, utils.QuoteLiteral(tmpPath)))
	if err != nil {
		os.Remove(tmpPath)

		return "", fmt.Errorf("failed to export to Parquet: %w", err)
	}

	if err = os.Rename(tmpPath, w.outputPath); err != nil {
		os.Remove(tmpPath)

		return "", fmt.Errorf("failed to move Parquet file into place: %w", err)
	}

	return w.outputPath, nil
}

// Close releases the statement, transaction and connection.
func (w *DuckDBWriter) Close() error {
	var err error

	if w.stmt != nil {
		err = multierr.Append(err, wrapClose("statement", w.stmt.Close()))
		w.stmt = nil
	}

	// Finalize was not called or failed before commit.
	if w.tx != nil {
		err = multierr.Append(err, wrapClose("transaction", w.tx.Rollback()))
		w.tx = nil
	}

	if w.db != nil {
		err = multierr.Append(err, wrapClose("db connection", w.db.Close()))
		w.db = nil
	}

	return err
}

func wrapClose(what string, err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("failed to close %s: %w", what, err)
}

// GetOutputPath returns the configured output file path.
func (w *DuckDBWriter) GetOutputPath() string {
	return w.outputPath
}
