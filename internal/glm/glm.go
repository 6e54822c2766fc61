// Package glm fits batches of general linear models that share one design
// matrix and reduces each fit to a t or F statistic for a contrast.
package glm

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"gonbs/domain/nbs"
	"gonbs/internal/errors"
)

const (
	betaScale = 1e14
	minStdErr = 1e-15
)

// Result is a fitted batch: one statistic per response column plus the
// degrees of freedom needed to read it against a parametric distribution.
type Result struct {
	Kind      nbs.TestKind
	Statistic []float64
	DF1       int // numerator df; 0 for t statistics
	DF2       int // residual df
}

// Fit returns one statistic per column of d.Y.
func Fit(d nbs.Design) ([]float64, error) {
	res, err := Estimate(d)
	if err != nil {
		return nil, err
	}
	return res.Statistic, nil
}

// Estimate fits every column of d.Y against d.X and computes the statistic
// selected by d.Kind.
//
// Coefficients come from a QR least-squares solve and are rounded
// to 14 decimal places before use. NaN statistics produced by degenerate
// columns are reported as 0, and an F test with no numerator degrees of
// freedom reports 0 for every column. Infinite statistics are clipped to
// ±MaxFloat64.
func Estimate(d nbs.Design) (Result, error) {
	if err := validate(d); err != nil {
		return Result{}, err
	}

	nObs, nPred := d.X.Dims()
	_, nGLM := d.Y.Dims()

	if rank(d.X) < nPred {
		return Result{}, errors.SingularDesign("design matrix is rank deficient (%d observations, %d predictors)", nObs, nPred)
	}

	beta, err := solveQR(d.X, d.Y)
	if err != nil {
		return Result{}, err
	}
	roundBeta(beta)

	var fitted mat.Dense
	fitted.Mul(d.X, beta)
	sse := residualSumSquares(d.Y, &fitted)

	res := Result{Kind: d.Kind, Statistic: make([]float64, nGLM), DF2: nObs - nPred}

	if d.Kind.IsT() {
		c := mat.NewVecDense(nPred, append([]float64(nil), d.Contrast...))
		q, err := contrastVariance(d.X, c)
		if err != nil {
			return Result{}, err
		}
		dfe := float64(nObs - nPred)
		for g := 0; g < nGLM; g++ {
			se := math.Sqrt(sse[g] / dfe * q)
			if se < minStdErr {
				se = minStdErr
			}
			res.Statistic[g] = mat.Dot(c, beta.ColView(g)) / se
		}
	} else {
		ssr := regressionSumSquares(d.Y, &fitted)
		dfe := float64(nObs - nPred)
		// With no numerator degrees of freedom there is nothing to test and
		// the statistic stays 0.
		if len(d.Nuisance) == 0 {
			res.DF1 = nPred - 1
			for g := 0; g < nGLM && res.DF1 > 0; g++ {
				res.Statistic[g] = (ssr[g] / float64(nPred-1)) / (sse[g] / dfe)
			}
		} else {
			ssrRed, v, err := reducedRegression(d)
			if err != nil {
				return Result{}, err
			}
			res.DF1 = v
			for g := 0; g < nGLM && v > 0; g++ {
				res.Statistic[g] = ((ssr[g] - ssrRed[g]) / float64(v)) / (sse[g] / dfe)
			}
		}
	}

	saturate(res.Statistic)
	return res, nil
}

// saturate replaces NaN with 0 and clips ±Inf (a zero residual under a
// non-zero effect) to ±MaxFloat64 so every statistic stays finite.
func saturate(stats []float64) {
	for g, s := range stats {
		switch {
		case math.IsNaN(s):
			stats[g] = 0
		case math.IsInf(s, 1):
			stats[g] = math.MaxFloat64
		case math.IsInf(s, -1):
			stats[g] = -math.MaxFloat64
		}
	}
}

func validate(d nbs.Design) error {
	if d.X == nil || d.Y == nil {
		return errors.ShapeMismatch("design and response matrices are required")
	}
	if !d.Kind.Valid() {
		return errors.InvalidParameter("unknown test kind %q", d.Kind)
	}
	nObs, nPred := d.X.Dims()
	yRows, nGLM := d.Y.Dims()
	if nObs == 0 || nPred == 0 || nGLM == 0 {
		return errors.ShapeMismatch("empty design (%d×%d) or response (%d×%d)", nObs, nPred, yRows, nGLM)
	}
	if yRows != nObs {
		return errors.ShapeMismatch("response has %d rows, design has %d", yRows, nObs)
	}
	if len(d.Contrast) != nPred {
		return errors.ShapeMismatch("contrast has %d entries, design has %d predictors", len(d.Contrast), nPred)
	}
	if nObs < nPred {
		return errors.SingularDesign("%d observations cannot identify %d predictors", nObs, nPred)
	}
	for _, k := range d.Nuisance {
		if k < 0 || k >= nPred {
			return errors.InvalidParameter("nuisance index %d outside [0,%d)", k, nPred)
		}
	}
	return nil
}

// rank counts singular values above the usual max(m,n)·eps·σ_max cut-off.
func rank(a mat.Matrix) int {
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDNone) {
		return 0
	}
	r, c := a.Dims()
	return svd.Rank(float64(max(r, c)) * eps)
}

const eps = 2.220446049250313e-16

func solveQR(x, y *mat.Dense) (*mat.Dense, error) {
	var qr mat.QR
	qr.Factorize(x)
	var beta mat.Dense
	if err := qr.SolveTo(&beta, false, y); err != nil {
		if _, ok := err.(mat.Condition); !ok {
			return nil, errors.SingularDesign("least-squares solve failed: %v", err)
		}
	}
	return &beta, nil
}

func roundBeta(beta *mat.Dense) {
	beta.Apply(func(_, _ int, v float64) float64 {
		return math.Round(v*betaScale) / betaScale
	}, beta)
}

// contrastVariance returns cᵗ(XᵗX)⁻¹c. Ill-conditioning is tolerated once the
// rank check has passed.
func contrastVariance(x *mat.Dense, c *mat.VecDense) (float64, error) {
	var xtx, inv mat.Dense
	xtx.Mul(x.T(), x)
	if err := inv.Inverse(&xtx); err != nil {
		if _, ok := err.(mat.Condition); !ok {
			return 0, errors.SingularDesign("XᵗX is not invertible: %v", err)
		}
	}
	return mat.Inner(c, &inv, c), nil
}

func residualSumSquares(y, fitted *mat.Dense) []float64 {
	rows, cols := y.Dims()
	out := make([]float64, cols)
	for g := 0; g < cols; g++ {
		for i := 0; i < rows; i++ {
			r := y.At(i, g) - fitted.At(i, g)
			out[g] += r * r
		}
	}
	return out
}

// regressionSumSquares measures fitted values against each response
// column's own mean.
func regressionSumSquares(y, fitted *mat.Dense) []float64 {
	rows, cols := y.Dims()
	out := make([]float64, cols)
	for g := 0; g < cols; g++ {
		mean := 0.0
		for i := 0; i < rows; i++ {
			mean += y.At(i, g)
		}
		mean /= float64(rows)
		for i := 0; i < rows; i++ {
			r := fitted.At(i, g) - mean
			out[g] += r * r
		}
	}
	return out
}

// reducedRegression fits the nuisance-only model. The intercept is kept
// unless it makes the reduced design rank deficient, in which case v counts
// every non-zero contrast entry instead of all but one.
func reducedRegression(d nbs.Design) ([]float64, int, error) {
	nObs, _ := d.X.Dims()
	k := len(d.Nuisance)

	withIntercept := mat.NewDense(nObs, k+1, nil)
	for i := 0; i < nObs; i++ {
		withIntercept.Set(i, 0, 1)
		for c, col := range d.Nuisance {
			withIntercept.Set(i, c+1, d.X.At(i, col))
		}
	}

	nonZero := 0
	for _, c := range d.Contrast {
		if c != 0 {
			nonZero++
		}
	}

	reduced := withIntercept
	v := nonZero - 1
	if rank(withIntercept) < k+1 {
		reduced = mat.DenseCopyOf(withIntercept.Slice(0, nObs, 1, k+1))
		v = nonZero
	}

	var svd mat.SVD
	if !svd.Factorize(reduced, mat.SVDThin) {
		return nil, 0, errors.SingularDesign("reduced design has no singular value decomposition")
	}
	rows, cols := reduced.Dims()
	_, nGLM := d.Y.Dims()
	fitted := mat.NewDense(nObs, nGLM, nil)
	if r := svd.Rank(float64(max(rows, cols)) * eps); r > 0 {
		var bRed mat.Dense
		svd.SolveTo(&bRed, d.Y, r)
		fitted.Mul(reduced, &bRed)
	}
	return regressionSumSquares(d.Y, fitted), v, nil
}
