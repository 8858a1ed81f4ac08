package simulation

import (
	"math"
	"slices"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"loan-risk/domain"
)

// Confidence levels reported as VaR.
const (
	Level95 = 0.95
	Level99 = 0.99
)

// Summarize reduces a loss sample to its summary statistics. The sample is not
// modified and is copied verbatim into the result.
//
// The median of an even-sized sample is the mean of the two middle values.
// The standard deviation divides by n. VaR at level p is the element at index
// floor(n*p) of the ascending sample, without interpolation.
func Summarize(sample domain.LossSample) (domain.SummaryStatistics, error) {
	n := len(sample)
	if n == 0 {
		return domain.SummaryStatistics{}, errors.Wrap(domain.ErrInvalidInput, "loss sample is empty")
	}

	sorted := sortedCopy(sample)
	mean, std := meanStd(sample)
	// rounding must not push the mean outside the sample range
	mean = max(sorted[0], min(mean, sorted[n-1]))

	return domain.SummaryStatistics{
		NumSimulations: n,
		MeanLoss:       mean,
		MedianLoss:     median(sorted),
		StdLoss:        std,
		MinLoss:        sorted[0],
		MaxLoss:        sorted[n-1],
		VaR95:          sorted[quantileIndex(n, Level95)],
		VaR99:          sorted[quantileIndex(n, Level99)],
		Losses:         slices.Clone(sample),
	}, nil
}

// ExpectedShortfall is the mean of the sorted tail starting at the VaR index
// for the given level.
func ExpectedShortfall(sample domain.LossSample, level float64) (float64, error) {
	n := len(sample)
	if n == 0 {
		return 0, errors.Wrap(domain.ErrInvalidInput, "loss sample is empty")
	}
	if level < 0 || level >= 1 {
		return 0, errors.Wrapf(domain.ErrInvalidInput, "confidence level %v outside [0, 1)", level)
	}
	sorted := sortedCopy(sample)
	tail := sorted[quantileIndex(n, level):]
	es := stat.Mean(tail, nil)
	if math.IsInf(es, 0) {
		es = stat.Mean(downscaled(tail), nil) / overflowScale
	}
	return es, nil
}

// overflowScale is a power of two, so scaling by it is exact.
const overflowScale = 0x1p-600

// meanStd is the population mean and standard deviation. Samples near the
// float64 range overflow the sums and squares, so they are scaled down first
// and the results scaled back.
func meanStd(sample []float64) (float64, float64) {
	mean, variance := stat.PopMeanVariance(sample, nil)
	if finite(mean) && finite(variance) {
		return mean, math.Sqrt(max(variance, 0))
	}
	mean, variance = stat.PopMeanVariance(downscaled(sample), nil)
	return mean / overflowScale, math.Sqrt(max(variance, 0)) / overflowScale
}

func downscaled(xs []float64) []float64 {
	out := make([]float64, len(xs))
	floats.ScaleTo(out, overflowScale, xs)
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// quantileIndex truncates n*level. For level < 1 the result is always below n.
func quantileIndex(n int, level float64) int {
	return int(float64(n) * level)
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return sorted[n/2-1]/2 + sorted[n/2]/2
}

func sortedCopy(sample domain.LossSample) []float64 {
	sorted := slices.Clone([]float64(sample))
	slices.Sort(sorted)
	return sorted
}
