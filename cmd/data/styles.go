package main

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-research/internal/quality"
	"github.com/rxtech-lab/argo-research/internal/types"
	"github.com/rxtech-lab/argo-research/pkg/errors"
	"github.com/rxtech-lab/argo-research/pkg/marketdata"
	"github.com/rxtech-lab/argo-research/pkg/marketdata/provider"
)

const dateLayout = "2006-01-02"

// Style definitions.
var (
	// TitleStyle for headers.
	TitleStyle = lipgloss.NewStyle().Bold(true)

	// HelpStyle for help text.
	HelpStyle = lipgloss.NewStyle().Faint(true)

	// ErrorStyle for error messages.
	ErrorStyle = lipgloss.NewStyle().Bold(true)

	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}

			return cellStyle
		})
}

// FormatPrice formats a value, printing a dash for missing values.
func FormatPrice(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}

	return fmt.Sprintf("%.4f", v)
}

// FormatPriceWithColor formats a price with indicator based on comparison with previous price.
func FormatPriceWithColor(current, previous float64) string {
	priceStr := FormatPrice(current)

	if previous == 0 || math.IsNaN(previous) || math.IsNaN(current) {
		return priceStr
	}

	if current > previous {
		return priceStr + " ▲"
	} else if current < previous {
		return priceStr + " ▼"
	}

	return priceStr
}

// FormatReturn formats a simple return as a percentage.
func FormatReturn(r float64) string {
	return fmt.Sprintf("%+.2f%%", r*100)
}

// RenderSeries prints the given fields of a series, one row per bar.
// The close column carries an up or down marker against the previous bar.
func RenderSeries(title string, series types.PriceSeries, fields []types.Field) string {
	headers := make([]string, 0, len(fields)+1)
	headers = append(headers, "date")

	for _, f := range fields {
		headers = append(headers, string(f))
	}

	t := newTable(headers...)
	previous := math.NaN()

	for _, bar := range series.Bars {
		row := make([]string, 0, len(headers))
		row = append(row, bar.Date.Format(dateLayout))

		for _, f := range fields {
			v, _ := bar.Value(f)
			if f == types.FieldClose {
				row = append(row, FormatPriceWithColor(v, previous))
			} else {
				row = append(row, FormatPrice(v))
			}
		}

		previous = bar.Close
		t.Row(row...)
	}

	return TitleStyle.Render(title) + "\n" + t.Render() + "\n" +
		HelpStyle.Render(fmt.Sprintf("%d rows", series.Len()))
}

// RenderProvidersUsed prints which provider served each instrument.
func RenderProvidersUsed(used map[string]provider.ProviderType) string {
	keys := make([]string, 0, len(used))
	for k := range used {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	t := newTable("instrument", "provider")
	for _, k := range keys {
		t.Row(k, string(used[k]))
	}

	return t.Render()
}

// RenderProviders prints the provider metadata.
func RenderProviders(infos []marketdata.ProviderInfo) string {
	t := newTable("name", "display name", "auth", "adjusted close", "description")

	for _, info := range infos {
		t.Row(info.Name, info.DisplayName, yesNo(info.RequiresAuth), yesNo(info.AdjustedClose), info.Description)
	}

	return t.Render()
}

// RenderAttempts lists the per-provider failures behind an AllProvidersFailed
// error. It reports false when err carries no attempts.
func RenderAttempts(err error) (string, bool) {
	if !errors.HasCodeInChain(err, errors.ErrCodeAllProvidersFailed) {
		return "", false
	}

	attempts, ok := errors.AsAttempts(err)
	if !ok || attempts.Empty() {
		return "", false
	}

	t := newTable("provider", "symbol", "error")
	for _, a := range attempts.Attempts {
		t.Row(a.Provider, a.Symbol, a.Err.Error())
	}

	return ErrorStyle.Render("All providers failed for "+attempts.Instrument) + "\n" + t.Render(), true
}

// RenderExtremes prints one block per instrument with its worst and best events
// and the suggested clean start.
func RenderExtremes(reports []quality.Report, top int, searchFrom optional.Option[time.Time]) string {
	if len(reports) == 0 {
		return HelpStyle.Render("No extreme returns found.")
	}

	var b strings.Builder

	summary := newTable("instrument", "events", "first", "last", "clean start")
	for _, r := range reports {
		summary.Row(
			r.Instrument,
			fmt.Sprintf("%d", len(r.Events)),
			formatDate(r.FirstExtreme()),
			formatDate(r.LastExtreme()),
			formatDate(r.SuggestCleanStart(searchFrom)),
		)
	}

	b.WriteString(TitleStyle.Render("Extreme returns"))
	b.WriteString("\n")
	b.WriteString(summary.Render())
	b.WriteString("\n")

	for _, r := range reports {
		events := newTable("side", "date", "return")
		for _, e := range r.WorstN(top) {
			events.Row("worst", e.Date.Format(dateLayout), FormatReturn(e.Return))
		}

		for _, e := range r.BestN(top) {
			events.Row("best", e.Date.Format(dateLayout), FormatReturn(e.Return))
		}

		b.WriteString("\n")
		b.WriteString(TitleStyle.Render(r.Instrument))
		b.WriteString("\n")
		b.WriteString(events.Render())
		b.WriteString("\n")
	}

	return b.String()
}

func formatDate(d optional.Option[time.Time]) string {
	if d.IsNone() {
		return "-"
	}

	return d.Unwrap().Format(dateLayout)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}

	return "no"
}
