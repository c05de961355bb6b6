package types

import (
	"math"
	"sort"
	"time"

	"github.com/moznion/go-optional"
)

// PriceBar is one day of trading for one instrument.
// Open, High, Low and Volume are NaN when the source did not report them.
// Close is always a real number.
type PriceBar struct {
	Date          time.Time
	Open          float64
	High          float64
	Low           float64
	Close         float64
	Volume        float64
	AdjustedClose optional.Option[float64]
}

// Value returns the value of the given field and whether it is present.
func (b PriceBar) Value(field Field) (float64, bool) {
	var v float64

	switch field {
	case FieldOpen:
		v = b.Open
	case FieldHigh:
		v = b.High
	case FieldLow:
		v = b.Low
	case FieldClose:
		v = b.Close
	case FieldVolume:
		v = b.Volume
	case FieldAdjustedClose:
		if b.AdjustedClose.IsNone() {
			return math.NaN(), false
		}

		v = b.AdjustedClose.Unwrap()
	default:
		return math.NaN(), false
	}

	return v, !math.IsNaN(v)
}

// NormalizeDate truncates a timestamp to its calendar date, expressed as UTC midnight.
// The calendar date is taken in the timestamp's own location.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()

	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// PriceSeries is the daily history of one instrument from one provider.
// Fields lists the columns the source provided.
type PriceSeries struct {
	Fields []Field
	Bars   []PriceBar
}

// NewPriceSeries builds a normalized series from raw bars.
func NewPriceSeries(fields []Field, bars []PriceBar) PriceSeries {
	return PriceSeries{Fields: fields, Bars: bars}.Normalize()
}

// Normalize drops bars without a close, truncates dates to calendar days,
// sorts by date and keeps the last occurrence of each date.
// The receiver is left untouched.
func (s PriceSeries) Normalize() PriceSeries {
	bars := make([]PriceBar, 0, len(s.Bars))

	for _, b := range s.Bars {
		if math.IsNaN(b.Close) || math.IsInf(b.Close, 0) {
			continue
		}

		b.Date = NormalizeDate(b.Date)
		bars = append(bars, b)
	}

	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Date.Before(bars[j].Date)
	})

	fields := OrderFields(append([]Field{FieldClose}, s.Fields...))

	return PriceSeries{Fields: fields, Bars: dedupKeepLast(bars)}
}

// dedupKeepLast collapses runs of equal dates in a sorted slice, keeping the last bar.
func dedupKeepLast(bars []PriceBar) []PriceBar {
	out := bars[:0]

	for _, b := range bars {
		if n := len(out); n > 0 && out[n-1].Date.Equal(b.Date) {
			out[n-1] = b

			continue
		}

		out = append(out, b)
	}

	return out
}

// HasField reports whether the source provided the field.
func (s PriceSeries) HasField(field Field) bool {
	for _, f := range s.Fields {
		if f == field {
			return true
		}
	}

	return false
}

// Len returns the number of bars.
func (s PriceSeries) Len() int {
	return len(s.Bars)
}

// IsEmpty reports whether the series has no bars.
func (s PriceSeries) IsEmpty() bool {
	return len(s.Bars) == 0
}

// Dates returns the date axis of the series.
func (s PriceSeries) Dates() []time.Time {
	dates := make([]time.Time, len(s.Bars))
	for i, b := range s.Bars {
		dates[i] = b.Date
	}

	return dates
}

// Between returns the bars with start <= date <= end. Absent bounds are open.
func (s PriceSeries) Between(start, end optional.Option[time.Time]) PriceSeries {
	bars := make([]PriceBar, 0, len(s.Bars))

	for _, b := range s.Bars {
		if start.IsSome() && b.Date.Before(NormalizeDate(start.Unwrap())) {
			continue
		}

		if end.IsSome() && b.Date.After(NormalizeDate(end.Unwrap())) {
			continue
		}

		bars = append(bars, b)
	}

	return PriceSeries{Fields: s.Fields, Bars: bars}
}
