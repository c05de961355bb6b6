package types

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/moznion/go-optional"
)

// Table is a date-indexed matrix with one column per instrument.
// Values[row][col] is NaN when the cell has no value.
type Table struct {
	Dates   []time.Time
	Columns []string
	Values  [][]float64
}

// NewTable allocates a table whose cells are all NaN.
func NewTable(dates []time.Time, columns []string) Table {
	values := make([][]float64, len(dates))
	for i := range values {
		row := make([]float64, len(columns))
		for j := range row {
			row[j] = math.NaN()
		}

		values[i] = row
	}

	return Table{
		Dates:   append([]time.Time(nil), dates...),
		Columns: append([]string(nil), columns...),
		Values:  values,
	}
}

// Len returns the number of rows.
func (t Table) Len() int {
	return len(t.Dates)
}

// IsEmpty reports whether the table has no rows or no columns.
func (t Table) IsEmpty() bool {
	return len(t.Dates) == 0 || len(t.Columns) == 0
}

// ColumnIndex returns the position of the column or -1.
func (t Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}

	return -1
}

// Column returns a copy of one column.
func (t Table) Column(name string) ([]float64, bool) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}

	col := make([]float64, len(t.Values))
	for i, row := range t.Values {
		col[i] = row[idx]
	}

	return col, true
}

// Get returns the cell at (date, column), NaN when either is absent.
func (t Table) Get(date time.Time, column string) float64 {
	idx := t.ColumnIndex(column)
	if idx < 0 {
		return math.NaN()
	}

	row := t.rowIndex(NormalizeDate(date))
	if row < 0 {
		return math.NaN()
	}

	return t.Values[row][idx]
}

func (t Table) rowIndex(date time.Time) int {
	for i, d := range t.Dates {
		if d.Equal(date) {
			return i
		}
	}

	return -1
}

// SortByDate returns a copy sorted by date. Rows with equal dates keep their order.
func (t Table) SortByDate() Table {
	order := make([]int, len(t.Dates))
	for i := range order {
		order[i] = i
	}

	sort.SliceStable(order, func(a, b int) bool {
		return t.Dates[order[a]].Before(t.Dates[order[b]])
	})

	out := Table{
		Dates:   make([]time.Time, len(order)),
		Columns: append([]string(nil), t.Columns...),
		Values:  make([][]float64, len(order)),
	}

	for i, src := range order {
		out.Dates[i] = t.Dates[src]
		out.Values[i] = append([]float64(nil), t.Values[src]...)
	}

	return out
}

// Between returns the rows with start <= date <= end. Absent bounds are open.
func (t Table) Between(start, end optional.Option[time.Time]) Table {
	out := Table{Dates: nil, Columns: append([]string(nil), t.Columns...), Values: nil}

	for i, d := range t.Dates {
		if start.IsSome() && d.Before(NormalizeDate(start.Unwrap())) {
			continue
		}

		if end.IsSome() && d.After(NormalizeDate(end.Unwrap())) {
			continue
		}

		out.Dates = append(out.Dates, d)
		out.Values = append(out.Values, append([]float64(nil), t.Values[i]...))
	}

	return out
}

// Head returns the first n rows.
func (t Table) Head(n int) Table {
	if n >= t.Len() || n < 0 {
		return t
	}

	return Table{Dates: t.Dates[:n], Columns: t.Columns, Values: t.Values[:n]}
}

// Tail returns the last n rows.
func (t Table) Tail(n int) Table {
	if n >= t.Len() || n < 0 {
		return t
	}

	return Table{Dates: t.Dates[t.Len()-n:], Columns: t.Columns, Values: t.Values[t.Len()-n:]}
}

// Select projects the table onto the given columns. Unknown columns are filled with NaN.
func (t Table) Select(columns []string) Table {
	out := NewTable(t.Dates, columns)

	for j, c := range columns {
		src := t.ColumnIndex(c)
		if src < 0 {
			continue
		}

		for i := range t.Values {
			out.Values[i][j] = t.Values[i][src]
		}
	}

	return out
}

// ColumnName flattens an (instrument, field) pair into a single column name.
func ColumnName(instrument string, field Field) string {
	return instrument + "." + string(field)
}

// SplitColumnName reverses ColumnName. Fields never contain a dot, so the last dot separates the levels.
func SplitColumnName(name string) (string, Field, bool) {
	idx := strings.LastIndex(name, ".")
	if idx <= 0 {
		return "", "", false
	}

	field, ok := ParseField(name[idx+1:])
	if !ok {
		return "", "", false
	}

	return name[:idx], field, true
}

// CanonicalDataset holds every canonical field of every instrument on a shared date axis.
// Every table in Frames has the same Dates and Columns (the instruments).
type CanonicalDataset struct {
	Dates       []time.Time
	Instruments []string
	Frames      map[Field]Table
}

// Field returns the date x instrument projection of one field.
func (d CanonicalDataset) Field(field Field) (Table, bool) {
	t, ok := d.Frames[field]

	return t, ok
}

// Fields returns the fields present in the dataset in canonical order.
func (d CanonicalDataset) Fields() []Field {
	fields := make([]Field, 0, len(d.Frames))
	for f := range d.Frames {
		fields = append(fields, f)
	}

	return OrderFields(fields)
}

// Instrument returns the bars of one instrument, skipping dates where it has no close.
func (d CanonicalDataset) Instrument(instrument string) (PriceSeries, bool) {
	closes, ok := d.Frames[FieldClose]
	if !ok {
		return PriceSeries{}, false
	}

	col := closes.ColumnIndex(instrument)
	if col < 0 {
		return PriceSeries{}, false
	}

	fields := d.Fields()
	bars := make([]PriceBar, 0, len(d.Dates))

	for i, date := range d.Dates {
		if math.IsNaN(closes.Values[i][col]) {
			continue
		}

		bar := PriceBar{
			Date:          date,
			Open:          d.cell(FieldOpen, i, col),
			High:          d.cell(FieldHigh, i, col),
			Low:           d.cell(FieldLow, i, col),
			Close:         closes.Values[i][col],
			Volume:        d.cell(FieldVolume, i, col),
			AdjustedClose: optional.None[float64](),
		}

		if adj := d.cell(FieldAdjustedClose, i, col); !math.IsNaN(adj) {
			bar.AdjustedClose = optional.Some(adj)
		}

		bars = append(bars, bar)
	}

	return PriceSeries{Fields: fields, Bars: bars}, true
}

func (d CanonicalDataset) cell(field Field, row, col int) float64 {
	t, ok := d.Frames[field]
	if !ok {
		return math.NaN()
	}

	return t.Values[row][col]
}
