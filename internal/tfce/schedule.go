package tfce

import (
	"math"

	"gonbs/domain/nbs"
	"gonbs/internal/errors"
)

// boundaryEpsilon nudges w/dh upward so weights that are exact multiples of
// dh land in their own bucket despite floating-point division error.
const boundaryEpsilon = 1e-10

// MaxLevels caps the ladder length. The sweep keeps one extent row per
// level, so (max+dh)/dh beyond this is refused rather than allocated.
const MaxLevels = 1 << 20

// Schedule is the uniform threshold ladder 0, dh, 2dh, ... up to max+dh.
// Level 0 is never swept.
type Schedule struct {
	Step  float64
	Count int
}

// NewSchedule covers thresholds from 0 to maxWeight+step inclusive.
//
// Errors: InvalidParameter for a non-finite weight or step, or when the
// ladder would need more than MaxLevels levels.
func NewSchedule(maxWeight, step float64) (Schedule, error) {
	if !(step > 0) || math.IsInf(step, 0) {
		return Schedule{}, errors.InvalidParameter("dh must be positive and finite, got %v", step)
	}
	if math.IsNaN(maxWeight) || math.IsInf(maxWeight, 0) {
		return Schedule{}, errors.InvalidParameter("maximum weight must be finite, got %v", maxWeight)
	}
	levels := math.Floor((maxWeight+step)/step+boundaryEpsilon) + 1
	if math.IsInf(levels, 0) || levels > MaxLevels {
		return Schedule{}, errors.InvalidParameter("dh %v over maximum weight %v needs more than %d threshold levels", step, maxWeight, MaxLevels)
	}
	return Schedule{Step: step, Count: int(levels)}, nil
}

// Value is the threshold at level h.
func (s Schedule) Value(h int) float64 {
	return float64(h) * s.Step
}

// Index is the highest level whose threshold the weight w still meets.
func (s Schedule) Index(w float64) int {
	return int(math.Floor(w/s.Step + boundaryEpsilon))
}

// Contains reports whether a weight is present at level h.
func (s Schedule) Contains(w float64, h int) bool {
	return w > 0 && s.Index(w) >= h
}

type edge struct {
	i, j int
}

// bucketMatrix builds the edge introduction index for the upper triangle of
// img: bucket h lists, in ascending (i,j) order, the edges that first appear
// at level h.
func bucketMatrix(img nbs.Matrix, s Schedule) [][]edge {
	n := img.N
	buckets := make([][]edge, s.Count)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			w := img.At(i, j)
			if !(w > 0) {
				continue
			}
			if h := s.Index(w); h < s.Count {
				buckets[h] = append(buckets[h], edge{i, j})
			}
		}
	}
	return buckets
}
