package writer

// ColumnType is a DuckDB column type supported by the writers.
type ColumnType string

const (
	ColumnDate   ColumnType = "DATE"
	ColumnDouble ColumnType = "DOUBLE"
)

// Column describes one column of the output file.
type Column struct {
	Name string
	Type ColumnType
}

// ParquetWriter defines the interface for writing a columnar table to a Parquet file.
type ParquetWriter interface {
	// Initialize sets up the writer with the output schema.
	Initialize(columns []Column) error
	// Write persists a single row. Values are given in column order.
	Write(values ...any) error
	// Finalize commits the rows and atomically replaces the output file.
	Finalize() (outputPath string, err error)
	// Close releases any resources held by the writer.
	Close() error
	// GetOutputPath returns the configured output file path.
	GetOutputPath() string
}
