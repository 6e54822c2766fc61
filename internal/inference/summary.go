package inference

import (
	"math"

	"github.com/montanaflynn/stats"

	"gonbs/internal/errors"
)

// NullSummary describes a permutation null distribution.
type NullSummary struct {
	Mean     float64 `json:"mean"`
	StdDev   float64 `json:"std_dev"`
	Skewness float64 `json:"skewness"`
	Min      float64 `json:"min"`
	Median   float64 `json:"median"`
	Max      float64 `json:"max"`
	P95      float64 `json:"p95"`
	P99      float64 `json:"p99"`
}

// Summarize computes moments and nearest-rank upper percentiles of null.
func Summarize(null []float64) (NullSummary, error) {
	var s NullSummary
	if len(null) == 0 {
		return s, errors.InvalidParameter("null distribution is empty")
	}
	data := stats.Float64Data(null)

	var err error
	if s.Mean, err = data.Mean(); err != nil {
		return s, errors.Wrap(err, "null mean")
	}
	if s.StdDev, err = data.StandardDeviation(); err != nil {
		return s, errors.Wrap(err, "null standard deviation")
	}
	if s.Min, err = data.Min(); err != nil {
		return s, errors.Wrap(err, "null minimum")
	}
	if s.Max, err = data.Max(); err != nil {
		return s, errors.Wrap(err, "null maximum")
	}
	if s.Median, err = data.Median(); err != nil {
		return s, errors.Wrap(err, "null median")
	}
	s.Skewness = skewness(null, s.Mean, s.StdDev)
	if s.P95, err = data.PercentileNearestRank(95); err != nil {
		return s, errors.Wrap(err, "null 95th percentile")
	}
	if s.P99, err = data.PercentileNearestRank(99); err != nil {
		return s, errors.Wrap(err, "null 99th percentile")
	}
	return s, nil
}

// skewness is the adjusted Fisher-Pearson coefficient. Degenerate nulls
// (fewer than three values or no spread) report 0.
func skewness(data []float64, mean, stdDev float64) float64 {
	if len(data) < 3 || stdDev == 0 {
		return 0
	}
	n := float64(len(data))
	sum := 0.0
	for _, x := range data {
		d := (x - mean) / stdDev
		sum += d * d * d
	}
	return sum / n * math.Sqrt(n*(n-1)) / (n - 2)
}
