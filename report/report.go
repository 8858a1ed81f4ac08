// Package report renders simulation summaries for people: currency formatting,
// terminal tables and the chart series derived from the raw loss sample.
package report

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"

	"loan-risk/domain"
)

// DefaultBins is the number of histogram bins shown for a loss sample.
const DefaultBins = 25

var (
	million  = decimal.NewFromInt(1_000_000)
	thousand = decimal.NewFromInt(1_000)
)

// FormatCurrency abbreviates large amounts: $1.23M, $4.5K, $12.
func FormatCurrency(value float64) string {
	d := decimal.NewFromFloat(value)
	switch {
	case d.GreaterThanOrEqual(million):
		return "$" + d.Div(million).StringFixed(2) + "M"
	case d.GreaterThanOrEqual(thousand):
		return "$" + d.Div(thousand).StringFixed(1) + "K"
	default:
		return "$" + d.StringFixed(0)
	}
}

// Tail holds the expected shortfall figures printed under the summary table.
type Tail struct {
	ES95 float64 `json:"es_95"`
	ES99 float64 `json:"es_99"`
}

// WriteTable renders the summary as a two-column table.
func WriteTable(w io.Writer, run domain.SimulationRun, tail *Tail) {
	s := run.Summary

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Portfolio loss simulation")
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
	})
	t.AppendHeader(table.Row{"metric", "value"})
	t.AppendRows([]table.Row{
		{"loans", run.LoanCount},
		{"total exposure", FormatCurrency(run.TotalExposure)},
		{"simulations", s.NumSimulations},
		{"seed", seedLabel(run)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"mean loss", FormatCurrency(s.MeanLoss)},
		{"median loss", FormatCurrency(s.MedianLoss)},
		{"std deviation", FormatCurrency(s.StdLoss)},
		{"min loss", FormatCurrency(s.MinLoss)},
		{"max loss", FormatCurrency(s.MaxLoss)},
		{"VaR 95%", FormatCurrency(s.VaR95)},
		{"VaR 99%", FormatCurrency(s.VaR99)},
	})
	if tail != nil {
		t.AppendSeparator()
		t.AppendRows([]table.Row{
			{"ES 95%", FormatCurrency(tail.ES95)},
			{"ES 99%", FormatCurrency(tail.ES99)},
		})
	}
	t.Render()
}

func seedLabel(run domain.SimulationRun) string {
	if run.Seeded {
		return fmt.Sprintf("%d", run.Seed)
	}
	return fmt.Sprintf("%d (random)", run.Seed)
}

// Bin is one histogram bar.
type Bin struct {
	From  float64 `json:"from"`
	Count int     `json:"count"`
}

// Point is one sampled point of a series.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Charts are the series a front-end plots from a loss sample.
type Charts struct {
	Histogram  []Bin   `json:"histogram"`
	CDF        []Point `json:"cdf"`
	Cumulative []Point `json:"cumulative"`
}

// NewCharts derives every chart series from the sample.
func NewCharts(losses domain.LossSample) Charts {
	return Charts{
		Histogram:  Histogram(losses, DefaultBins),
		CDF:        CDF(losses),
		Cumulative: Cumulative(losses),
	}
}

// Histogram splits [min, max] into equal-width bins. A sample with a single
// distinct value uses a bin width of 1. The maximum lands in the last bin.
func Histogram(losses domain.LossSample, bins int) []Bin {
	if len(losses) == 0 || bins <= 0 {
		return nil
	}
	lo, hi := floats.Min(losses), floats.Max(losses)
	width := (hi - lo) / float64(bins)
	if width == 0 {
		width = 1
	}

	out := make([]Bin, bins)
	for i := range out {
		out[i].From = lo + float64(i)*width
	}
	for _, v := range losses {
		idx := min(int((v-lo)/width), bins-1)
		out[idx].Count++
	}
	return out
}

// CDF samples the empirical distribution at most about 100 times and always
// ends at the largest loss. Y is the cumulative probability in percent.
func CDF(losses domain.LossSample) []Point {
	n := len(losses)
	if n == 0 {
		return nil
	}
	sorted := slices.Clone(losses)
	slices.Sort(sorted)

	step := max(1, n/100)
	out := make([]Point, 0, n/step+1)
	for i := 0; i < n; i += step {
		out = append(out, Point{X: sorted[i], Y: float64(i+1) / float64(n) * 100})
	}
	if (n-1)%step != 0 {
		out = append(out, Point{X: sorted[n-1], Y: 100})
	}
	return out
}

// Cumulative is the running total of losses in trial order, sampled at most
// about 200 times and always ending at the total. X is the 1-based trial number.
func Cumulative(losses domain.LossSample) []Point {
	n := len(losses)
	if n == 0 {
		return nil
	}
	step := max(1, n/200)
	out := make([]Point, 0, n/step+1)
	sum := 0.0
	for i, v := range losses {
		sum += v
		if i%step == 0 || i == n-1 {
			out = append(out, Point{X: float64(i + 1), Y: sum})
		}
	}
	return out
}

// WriteHistogram renders the histogram as a table with a bar per bin.
func WriteHistogram(w io.Writer, bins []Bin) {
	peak := 0
	for _, b := range bins {
		peak = max(peak, b.Count)
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"loss from", "trials", ""})
	for _, b := range bins {
		t.AppendRow(table.Row{FormatCurrency(b.From), b.Count, bar(b.Count, peak, 40)})
	}
	t.Render()
}

func bar(count, peak, width int) string {
	if peak == 0 {
		return ""
	}
	n := count * width / peak
	if n == 0 && count > 0 {
		n = 1
	}
	return strings.Repeat("█", n)
}
