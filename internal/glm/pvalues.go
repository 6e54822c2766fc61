package glm

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"gonbs/domain/nbs"
)

// PValues converts statistics to parametric p-values: two-sided Student's t
// for t statistics, upper-tail F for F statistics. Non-positive degrees of
// freedom give p = 1 for every entry; a saturated F statistic gives p = 0.
func PValues(stats []float64, kind nbs.TestKind, df1, df2 int) []float64 {
	out := make([]float64, len(stats))
	for i := range out {
		out[i] = 1
	}
	if df2 <= 0 || (!kind.IsT() && df1 <= 0) {
		return out
	}

	if kind.IsT() {
		t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df2)}
		for i, s := range stats {
			out[i] = 2 * t.Survival(math.Abs(s))
		}
		return out
	}

	f := distuv.F{D1: float64(df1), D2: float64(df2)}
	for i, s := range stats {
		switch {
		case s >= math.MaxFloat64:
			out[i] = 0
		case s > 0:
			out[i] = f.Survival(s)
		}
	}
	return out
}

// PValues of the fitted batch.
func (r Result) PValues() []float64 {
	return PValues(r.Statistic, r.Kind, r.DF1, r.DF2)
}
