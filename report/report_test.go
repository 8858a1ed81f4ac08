package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-risk/domain"
)

func TestFormatCurrency(t *testing.T) {
	assert.Equal(t, "$0", FormatCurrency(0))
	assert.Equal(t, "$600", FormatCurrency(600))
	assert.Equal(t, "$1.0K", FormatCurrency(1000))
	assert.Equal(t, "$4.5K", FormatCurrency(4520))
	assert.Equal(t, "$1.23M", FormatCurrency(1_234_567))
}

func TestHistogram(t *testing.T) {
	losses := domain.LossSample{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	bins := Histogram(losses, 10)
	require.Len(t, bins, 10)

	total := 0
	for _, b := range bins {
		total += b.Count
	}
	assert.Equal(t, len(losses), total)
	assert.Equal(t, 0.0, bins[0].From)
	assert.Equal(t, 90.0, bins[9].From)
	// 90 and the maximum share the last bin
	assert.Equal(t, 2, bins[9].Count)
}

func TestHistogram_SingleValue(t *testing.T) {
	bins := Histogram(domain.LossSample{600, 600, 600}, DefaultBins)
	require.Len(t, bins, DefaultBins)
	assert.Equal(t, 3, bins[0].Count)
	assert.Equal(t, 601.0, bins[1].From)

	assert.Nil(t, Histogram(nil, DefaultBins))
}

func TestCDF(t *testing.T) {
	points := CDF(domain.LossSample{3, 1, 2, 4})
	require.Len(t, points, 4)
	assert.Equal(t, Point{X: 1, Y: 25}, points[0])
	assert.Equal(t, Point{X: 4, Y: 100}, points[3])

	large := make(domain.LossSample, 1000)
	points = CDF(large)
	require.Len(t, points, 101)
	assert.Equal(t, Point{X: 0, Y: 100}, points[100])

	// the stride skips the largest loss, which is appended
	odd := make(domain.LossSample, 250)
	for i := range odd {
		odd[i] = float64(i)
	}
	points = CDF(odd)
	require.Len(t, points, 126)
	assert.Equal(t, 248.0, points[124].X)
	assert.InDelta(t, 99.6, points[124].Y, 1e-9)
	assert.Equal(t, Point{X: 249, Y: 100}, points[125])
}

func TestCumulative(t *testing.T) {
	points := Cumulative(domain.LossSample{1, 2, 3})
	assert.Equal(t, []Point{{X: 1, Y: 1}, {X: 2, Y: 3}, {X: 3, Y: 6}}, points)

	large := make(domain.LossSample, 1000)
	for i := range large {
		large[i] = 1
	}
	points = Cumulative(large)
	require.Len(t, points, 201)
	assert.Equal(t, Point{X: 996, Y: 996}, points[199])
	assert.Equal(t, Point{X: 1000, Y: 1000}, points[200])

	// no duplicate when the stride already lands on the last trial
	points = Cumulative(append(large, 1))
	require.Len(t, points, 201)
	assert.Equal(t, Point{X: 1001, Y: 1001}, points[200])
}

func TestWriteTable(t *testing.T) {
	run := domain.SimulationRun{
		LoanCount:     1,
		TotalExposure: 1000,
		Seed:          42,
		Seeded:        true,
		Summary: domain.SummaryStatistics{
			NumSimulations: 5,
			MeanLoss:       600,
			MedianLoss:     600,
			MinLoss:        600,
			MaxLoss:        600,
			VaR95:          600,
			VaR99:          600,
		},
	}

	var buf bytes.Buffer
	WriteTable(&buf, run, &Tail{ES95: 600, ES99: 600})
	out := buf.String()
	assert.Contains(t, out, "VaR 95%")
	assert.Contains(t, out, "$600")
	assert.Contains(t, out, "ES 99%")
	assert.Contains(t, out, "42")
	assert.NotContains(t, out, "random")
}

func TestWriteHistogram(t *testing.T) {
	var buf bytes.Buffer
	WriteHistogram(&buf, Histogram(domain.LossSample{0, 0, 100}, 2))
	assert.Contains(t, buf.String(), "█")
	assert.Contains(t, buf.String(), "$50")
}
