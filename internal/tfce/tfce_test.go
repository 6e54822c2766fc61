package tfce

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gonbs/domain/nbs"
	"gonbs/internal/errors"
)

// randomGraph returns a symmetric matrix with roughly density of its edges
// set to weights in (0, scale].
func randomGraph(seed int64, n int, density, scale float64) nbs.Matrix {
	rng := rand.New(rand.NewSource(seed))
	m := nbs.NewMatrix(n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if rng.Float64() < density {
				m.SetSym(i, j, rng.Float64()*scale+1e-3)
			}
		}
	}
	return m
}

func params(dh, h, e float64) Params {
	p := DefaultParams()
	p.DH, p.H, p.E = dh, h, e
	return p
}

func assertSymmetricZeroDiagonal(t *testing.T, m nbs.Matrix) {
	t.Helper()
	for i := 0; i < m.N; i++ {
		assert.Zero(t, m.At(i, i), "diagonal (%d,%d)", i, i)
		for j := i + 1; j < m.N; j++ {
			assert.Equal(t, m.At(i, j), m.At(j, i), "asymmetric at (%d,%d)", i, j)
		}
	}
}

func TestDenseHandComputedPath(t *testing.T) {
	m := nbs.NewMatrix(3)
	m.SetSym(0, 1, 0.2)
	m.SetSym(1, 2, 0.1)

	out, err := Dense(m, params(0.1, 1, 1))
	require.NoError(t, err)

	// Level 2 holds {0-1} (1 edge); level 1 holds {0-1, 1-2} (2 edges).
	assert.InDelta(t, 2*0.1*0.1+1*0.2*0.1, out.At(0, 1), 1e-12)
	assert.InDelta(t, 2*0.1*0.1, out.At(1, 2), 1e-12)
	assert.Zero(t, out.At(0, 2))
	assertSymmetricZeroDiagonal(t, out)
}

func TestDenseSingleEdge(t *testing.T) {
	m := nbs.NewMatrix(2)
	m.SetSym(0, 1, 0.35)

	out, err := Dense(m, params(0.1, 1, 1))
	require.NoError(t, err)
	assert.InDelta(t, 0.1*0.1*(1+2+3), out.At(0, 1), 1e-12)
}

func TestDenseDoesNotMutateInput(t *testing.T) {
	m := randomGraph(1, 8, 0.5, 3)
	m.Set(2, 2, 5)
	m.SetSym(0, 1, 5000)
	before := m.Clone()

	_, err := Dense(m, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, before.Data, m.Data)
}

func TestDenseIsIdempotent(t *testing.T) {
	m := randomGraph(2, 12, 0.4, 4)
	a, err := Dense(m, DefaultParams())
	require.NoError(t, err)
	b, err := Dense(m, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, a.Data, b.Data)
}

func TestVariantsAreSymmetricWithZeroDiagonal(t *testing.T) {
	for seed := int64(0); seed < 5; seed++ {
		m := randomGraph(seed, 10, 0.5, 3)
		for i := 0; i < m.N; i++ {
			m.Set(i, i, 7)
		}

		dense, err := Dense(m, DefaultParams())
		require.NoError(t, err)
		assertSymmetricZeroDiagonal(t, dense)

		exact, err := Exact(m, DefaultParams())
		require.NoError(t, err)
		assertSymmetricZeroDiagonal(t, exact)

		ref, err := Reference(m, DefaultParams())
		require.NoError(t, err)
		assertSymmetricZeroDiagonal(t, ref)
	}
}

func TestDenseMatchesReference(t *testing.T) {
	cases := []struct {
		name string
		p    Params
	}{
		{"defaults", DefaultParams()},
		{"fine step", params(0.05, 2, 0.5)},
		{"node extent", func() Params { p := params(0.1, 2, 1); p.Extent = ExtentNodes; return p }()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for seed := int64(10); seed < 16; seed++ {
				m := randomGraph(seed, 14, 0.3, 3)
				dense, err := Dense(m, tc.p)
				require.NoError(t, err)
				ref, err := Reference(m, tc.p)
				require.NoError(t, err)
				for k := range dense.Data {
					assert.InEpsilon(t, ref.Data[k]+1, dense.Data[k]+1, 1e-6, "entry %d", k)
				}
			}
		})
	}
}

func TestDenseMatchesReferenceOnBucketTies(t *testing.T) {
	// Several edges land in the same bucket, including exact multiples of dh.
	m := nbs.NewMatrix(5)
	m.SetSym(0, 1, 0.3)
	m.SetSym(1, 2, 0.3)
	m.SetSym(2, 3, 0.3)
	m.SetSym(3, 4, 0.35)
	m.SetSym(0, 4, 0.2)

	dense, err := Dense(m, params(0.1, 2, 0.5))
	require.NoError(t, err)
	ref, err := Reference(m, params(0.1, 2, 0.5))
	require.NoError(t, err)
	assert.Equal(t, ref.Data, dense.Data)
}

func TestExactHandComputedPath(t *testing.T) {
	m := nbs.NewMatrix(3)
	m.SetSym(0, 1, 0.2)
	m.SetSym(1, 2, 0.1)

	out, err := Exact(m, params(0, 1, 1))
	require.NoError(t, err)

	// Edge 0-1: ∫0^0.1 2t dt + ∫0.1^0.2 t dt; edge 1-2: ∫0^0.1 2t dt.
	assert.InDelta(t, 0.025, out.At(0, 1), 1e-12)
	assert.InDelta(t, 0.01, out.At(1, 2), 1e-12)
	assert.InDelta(t, 0.025, out.At(1, 0), 1e-12)
}

func TestExactConvergesToDense(t *testing.T) {
	// Weights stay well above the coarsest step so every edge is swept.
	m := randomGraph(42, 9, 0.5, 2)
	for k, w := range m.Data {
		if w > 0 {
			m.Data[k] = w + 0.5
		}
	}
	p := params(0, 3, 0.4)
	exact, err := Exact(m, p)
	require.NoError(t, err)

	prevErr := math.Inf(1)
	for _, dh := range []float64{0.1, 0.01, 0.001} {
		p.DH = dh
		dense, err := Dense(m, p)
		require.NoError(t, err)

		worst := 0.0
		for k, want := range exact.Data {
			if want == 0 {
				assert.Zero(t, dense.Data[k])
				continue
			}
			rel := math.Abs(dense.Data[k]-want) / want
			worst = math.Max(worst, rel)
		}
		assert.Less(t, worst, prevErr, "dh=%v should be closer than the coarser step", dh)
		prevErr = worst
	}
	assert.Less(t, prevErr, 0.02)
}

func TestExactRejectsDivergentHeight(t *testing.T) {
	_, err := Exact(nbs.NewMatrix(2), params(0, -1, 0.5))
	assert.True(t, errors.HasCode(err, errors.CodeInvalidParameter))
}

func TestMonotonicInEdgeWeight(t *testing.T) {
	base := randomGraph(7, 10, 0.4, 2)
	i, j := 2, 5
	prev := -1.0
	for _, w := range []float64{0.15, 0.4, 0.9, 1.3, 2.2, 3.5} {
		m := base.Clone()
		m.SetSym(i, j, w)

		dense, err := Dense(m, DefaultParams())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, dense.At(i, j), prev, "weight %v", w)
		prev = dense.At(i, j)

		exact, err := Exact(m, DefaultParams())
		require.NoError(t, err)
		assert.Greater(t, exact.At(i, j), 0.0)
	}
}

func TestClampPolicy(t *testing.T) {
	saturated := nbs.NewMatrix(2)
	saturated.SetSym(0, 1, 2000)
	capped := nbs.NewMatrix(2)
	capped.SetSym(0, 1, 100)

	p := params(1, 1, 1)
	a, err := Exact(saturated, p)
	require.NoError(t, err)
	b, err := Exact(capped, p)
	require.NoError(t, err)
	assert.Equal(t, b.Data, a.Data)

	p.Clamp.Enabled = false
	c, err := Exact(saturated, p)
	require.NoError(t, err)
	assert.Greater(t, c.At(0, 1), a.At(0, 1))

	assert.Equal(t, 1000.0, DefaultClamp().Apply(1000))
	assert.Equal(t, 100.0, DefaultClamp().Apply(1000.5))
}

func TestParameterErrors(t *testing.T) {
	_, err := Dense(nbs.Matrix{N: 3, Data: make([]float64, 6)}, DefaultParams())
	assert.True(t, errors.HasCode(err, errors.CodeShapeMismatch))

	_, err = Dense(nbs.NewMatrix(3), params(-0.1, 3, 0.4))
	assert.True(t, errors.HasCode(err, errors.CodeInvalidParameter))

	_, err = Reference(nbs.NewMatrix(3), params(0, 3, 0.4))
	assert.True(t, errors.HasCode(err, errors.CodeInvalidParameter))

	_, err = Dense(nbs.NewMatrix(3), params(0.1, math.NaN(), 0.4))
	assert.True(t, errors.HasCode(err, errors.CodeInvalidParameter))

	_, err = Sparse(nbs.EdgeList{}, 0, DefaultParams())
	assert.True(t, errors.HasCode(err, errors.CodeInvalidParameter))
}

func TestEmptyGraph(t *testing.T) {
	out, err := Dense(nbs.NewMatrix(4), DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, make([]float64, 16), out.Data)

	exact, err := Exact(nbs.NewMatrix(4), DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, make([]float64, 16), exact.Data)
}

func TestSparseMatchesDenseNodeScores(t *testing.T) {
	m := randomGraph(3, 12, 0.35, 3)
	p := params(0.1, 2, 0.5)

	var el nbs.EdgeList
	for i := 0; i < m.N; i++ {
		for j := 0; j < m.N; j++ {
			if i != j && m.At(i, j) > 0 {
				el.I = append(el.I, i)
				el.J = append(el.J, j)
				el.V = append(el.V, m.At(i, j))
			}
		}
	}

	sparse, err := Sparse(el, m.N, p)
	require.NoError(t, err)
	nodes, err := DenseNodes(m, p)
	require.NoError(t, err)
	dense, err := Dense(m, p)
	require.NoError(t, err)

	for v := 0; v < m.N; v++ {
		assert.InDelta(t, nodes[v], sparse[v], 1e-12, "node %d", v)
		best := 0.0
		for u := 0; u < m.N; u++ {
			best = math.Max(best, dense.At(v, u))
		}
		assert.InDelta(t, best, sparse[v], 1e-9, "node %d", v)
	}
}

func TestSparseNodeExtent(t *testing.T) {
	el := nbs.EdgeList{
		I: []int{0, 1, 1},
		J: []int{1, 2, 0},
		V: []float64{0.2, 0.1, 9.0}, // reversed duplicate of 0-1 is ignored
	}
	p := params(0.1, 1, 1)
	p.Extent = ExtentNodes

	scores, err := Sparse(el, 4, p)
	require.NoError(t, err)
	assert.InDelta(t, 3*0.1*0.1+2*0.2*0.1, scores[0], 1e-12)
	assert.InDelta(t, 3*0.1*0.1+2*0.2*0.1, scores[1], 1e-12)
	assert.InDelta(t, 3*0.1*0.1, scores[2], 1e-12)
	assert.Zero(t, scores[3])
}

func TestSparseValidatesIndices(t *testing.T) {
	el := nbs.EdgeList{I: []int{0}, J: []int{4}, V: []float64{1}}
	_, err := Sparse(el, 3, DefaultParams())
	assert.True(t, errors.HasCode(err, errors.CodeInvalidParameter))

	el = nbs.EdgeList{I: []int{0}, J: []int{1}, V: nil}
	_, err = Sparse(el, 3, DefaultParams())
	assert.True(t, errors.HasCode(err, errors.CodeShapeMismatch))
}

func TestReferenceAdjacencyChain(t *testing.T) {
	values := []float64{0.3, 0.3, 0, 0.2}
	neighbors := [][]int{{1}, {0, 2}, {1, 3}, {2}}

	out, err := ReferenceAdjacency(values, neighbors, params(0.1, 1, 1))
	require.NoError(t, err)
	assert.InDelta(t, 2*(0.1+0.2+0.3)*0.1, out[0], 1e-12)
	assert.InDelta(t, out[0], out[1], 1e-15)
	assert.Zero(t, out[2])
	assert.InDelta(t, (0.1+0.2)*0.1, out[3], 1e-12)
}

func TestReferenceAdjacencyErrors(t *testing.T) {
	_, err := ReferenceAdjacency([]float64{1, 2}, [][]int{{1}}, DefaultParams())
	assert.True(t, errors.HasCode(err, errors.CodeShapeMismatch))

	_, err = ReferenceAdjacency([]float64{1, 2}, [][]int{{1}, {2}}, DefaultParams())
	assert.True(t, errors.HasCode(err, errors.CodeInvalidParameter))
}

func TestNewEnhancer(t *testing.T) {
	m := randomGraph(5, 6, 0.6, 2)
	for _, method := range []Method{MethodDense, MethodExact, MethodReference, MethodNone, ""} {
		enh, err := NewEnhancer(method, DefaultParams())
		require.NoError(t, err)
		out, err := enh.Enhance(m)
		require.NoError(t, err)
		assertSymmetricZeroDiagonal(t, out)
	}

	_, err := NewEnhancer("bogus", DefaultParams())
	assert.True(t, errors.HasCode(err, errors.CodeInvalidParameter))
}

func TestSchedule(t *testing.T) {
	s, err := NewSchedule(1.0, 0.1)
	require.NoError(t, err)
	assert.Equal(t, 12, s.Count)
	assert.Equal(t, 3, s.Index(0.3))
	assert.Equal(t, 10, s.Index(1.0))
	assert.True(t, s.Contains(0.3, 3))
	assert.False(t, s.Contains(0.29, 3))
	assert.False(t, s.Contains(0, 0))
}

func TestScheduleBounds(t *testing.T) {
	_, err := NewSchedule(1, 1e-300)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidParameter))

	_, err = NewSchedule(100, 1e-8)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidParameter))

	_, err = NewSchedule(math.Inf(1), 0.1)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidParameter))

	_, err = NewSchedule(math.MaxFloat64, math.MaxFloat64)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidParameter))

	s, err := NewSchedule(0, 1e-300)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Count)

	s, err = NewSchedule(1, 1.0/(MaxLevels-2))
	require.NoError(t, err)
	assert.LessOrEqual(t, s.Count, MaxLevels)
}

func TestTinyStepIsRejected(t *testing.T) {
	m := nbs.NewMatrix(2)
	m.SetSym(0, 1, 1)
	p := params(1e-300, 1, 1)

	_, err := Dense(m, p)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidParameter))
	_, err = DenseNodes(m, p)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidParameter))
	_, err = Reference(m, p)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidParameter))

	el := nbs.EdgeList{I: []int{0}, J: []int{1}, V: []float64{1}}
	_, err = Sparse(el, 2, p)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidParameter))

	_, err = ReferenceAdjacency([]float64{1, 1}, [][]int{{1}, {0}}, p)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidParameter))
}

func TestInfiniteWeights(t *testing.T) {
	m := nbs.NewMatrix(3)
	m.SetSym(0, 1, math.Inf(1))
	m.SetSym(1, 2, 0.5)

	unclamped := params(0.1, 1, 1)
	unclamped.Clamp.Enabled = false

	_, err := Dense(m, unclamped)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidParameter))
	_, err = Exact(m, unclamped)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidParameter))

	el := nbs.EdgeList{I: []int{0}, J: []int{1}, V: []float64{math.Inf(1)}}
	_, err = Sparse(el, 2, unclamped)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidParameter))

	_, err = ReferenceAdjacency([]float64{math.NaN(), 1}, [][]int{{1}, {0}}, unclamped)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidParameter))

	// The default clamp rewrites +Inf like any other saturated weight.
	clamped, err := Dense(m, params(0.1, 1, 1))
	require.NoError(t, err)
	capped := m.Clone()
	capped.SetSym(0, 1, 100)
	want, err := Dense(capped, params(0.1, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, want.Data, clamped.Data)
}
