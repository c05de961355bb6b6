// Package quality flags suspicious moves in canonical price history.
package quality

import (
	"math"
	"sort"
	"time"

	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-research/internal/types"
	"github.com/rxtech-lab/argo-research/pkg/errors"
)

// Event is one daily return outside the configured bounds.
type Event struct {
	Date   time.Time
	Return float64
}

// Options bounds the daily returns considered normal.
type Options struct {
	Lower float64
	Upper float64
	// SearchFrom ignores earlier events when suggesting a clean start.
	SearchFrom optional.Option[time.Time]
}

// DefaultOptions flags any day that lost or gained more than half its value.
func DefaultOptions() Options {
	return Options{
		Lower:      -0.5,
		Upper:      0.5,
		SearchFrom: optional.Some(time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
}

// Report summarizes the extreme returns of one instrument.
type Report struct {
	Instrument string
	// Events are in date order.
	Events []Event
}

// Worst returns the most negative event.
func (r Report) Worst() optional.Option[Event] {
	return pick(r.Events, func(a, b Event) bool { return a.Return < b.Return })
}

// Best returns the most positive event.
func (r Report) Best() optional.Option[Event] {
	return pick(r.Events, func(a, b Event) bool { return a.Return > b.Return })
}

// WorstN returns up to n events, most negative first.
func (r Report) WorstN(n int) []Event {
	return topN(r.Events, n, func(a, b Event) bool { return a.Return < b.Return })
}

// BestN returns up to n events, most positive first.
func (r Report) BestN(n int) []Event {
	return topN(r.Events, n, func(a, b Event) bool { return a.Return > b.Return })
}

// FirstExtreme returns the date of the earliest event.
func (r Report) FirstExtreme() optional.Option[time.Time] {
	if len(r.Events) == 0 {
		return optional.None[time.Time]()
	}

	return optional.Some(r.Events[0].Date)
}

// LastExtreme returns the date of the latest event.
func (r Report) LastExtreme() optional.Option[time.Time] {
	if len(r.Events) == 0 {
		return optional.None[time.Time]()
	}

	return optional.Some(r.Events[len(r.Events)-1].Date)
}

// SuggestCleanStart returns the day after the last event on or after searchFrom, the first
// date from which the history has no extremes. None when there is no such event.
func (r Report) SuggestCleanStart(searchFrom optional.Option[time.Time]) optional.Option[time.Time] {
	for i := len(r.Events) - 1; i >= 0; i-- {
		e := r.Events[i]
		if searchFrom.IsSome() && e.Date.Before(types.NormalizeDate(searchFrom.Unwrap())) {
			break
		}

		return optional.Some(e.Date.AddDate(0, 0, 1))
	}

	return optional.None[time.Time]()
}

// FindExtremeReturns scans one price column. Missing prices are dropped first, so a
// return spans the gap between two observed prices.
func FindExtremeReturns(dates []time.Time, prices []float64, lower, upper float64) []Event {
	var (
		events []Event
		prev   = math.NaN()
	)

	for i, p := range prices {
		if math.IsNaN(p) {
			continue
		}

		if !math.IsNaN(prev) {
			r := p/prev - 1
			if r < lower || r > upper {
				events = append(events, Event{Date: dates[i], Return: r})
			}
		}

		prev = p
	}

	return events
}

// Scan reports every instrument of prices, or only the given ones. Instruments without a
// column or without any price are skipped. Reports are ordered by number of events
// descending, then by worst return.
func Scan(prices types.Table, instruments []string, opts Options) ([]Report, error) {
	if opts.Lower >= opts.Upper {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "lower bound %v must be below upper bound %v", opts.Lower, opts.Upper)
	}

	if len(instruments) == 0 {
		instruments = prices.Columns
	}

	prices = prices.SortByDate()
	reports := make([]Report, 0, len(instruments))

	for _, instrument := range instruments {
		column, ok := prices.Column(instrument)
		if !ok || allNaN(column) {
			continue
		}

		reports = append(reports, Report{
			Instrument: instrument,
			Events:     FindExtremeReturns(prices.Dates, column, opts.Lower, opts.Upper),
		})
	}

	sort.SliceStable(reports, func(i, j int) bool {
		if len(reports[i].Events) != len(reports[j].Events) {
			return len(reports[i].Events) > len(reports[j].Events)
		}

		wi, wj := reports[i].Worst(), reports[j].Worst()
		if wi.IsNone() || wj.IsNone() {
			return wi.IsSome()
		}

		return wi.Unwrap().Return < wj.Unwrap().Return
	})

	return reports, nil
}

func allNaN(values []float64) bool {
	for _, v := range values {
		if !math.IsNaN(v) {
			return false
		}
	}

	return true
}

func pick(events []Event, better func(a, b Event) bool) optional.Option[Event] {
	if len(events) == 0 {
		return optional.None[Event]()
	}

	best := events[0]
	for _, e := range events[1:] {
		if better(e, best) {
			best = e
		}
	}

	return optional.Some(best)
}

func topN(events []Event, n int, better func(a, b Event) bool) []Event {
	sorted := append([]Event(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool { return better(sorted[i], sorted[j]) })

	if n >= 0 && n < len(sorted) {
		sorted = sorted[:n]
	}

	return sorted
}
