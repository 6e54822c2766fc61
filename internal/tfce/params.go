package tfce

import (
	"math"

	"gonbs/domain/nbs"
	"gonbs/internal/errors"
)

// Extent selects how the size of a supporting cluster is measured.
type Extent int

const (
	// ExtentEdges measures a cluster by the number of edges it holds.
	ExtentEdges Extent = iota
	// ExtentNodes measures a cluster by the number of nodes touched by its edges.
	ExtentNodes
)

// ClampPolicy replaces saturated inputs before the sweep. Weights strictly
// above Ceiling are rewritten to Replacement.
type ClampPolicy struct {
	Enabled     bool
	Ceiling     float64
	Replacement float64
}

// DefaultClamp rewrites anything above 1000 to 100.
func DefaultClamp() ClampPolicy {
	return ClampPolicy{Enabled: true, Ceiling: 1000, Replacement: 100}
}

// Apply returns the clamped weight.
func (c ClampPolicy) Apply(w float64) float64 {
	if c.Enabled && w > c.Ceiling {
		return c.Replacement
	}
	return w
}

// Params configures every sweep variant. DH is ignored by Exact.
type Params struct {
	DH     float64
	H      float64
	E      float64
	Clamp  ClampPolicy
	Extent Extent
}

// DefaultParams returns dh=0.1, H=3, E=0.4 with the default clamp.
func DefaultParams() Params {
	return Params{
		DH:    0.1,
		H:     3.0,
		E:     0.4,
		Clamp: DefaultClamp(),
	}
}

func (p Params) validate(needStep bool) error {
	if needStep && (!(p.DH > 0) || math.IsInf(p.DH, 0)) {
		return errors.InvalidParameter("dh must be positive and finite, got %v", p.DH)
	}
	if math.IsNaN(p.H) || math.IsInf(p.H, 0) {
		return errors.InvalidParameter("H must be finite, got %v", p.H)
	}
	if math.IsNaN(p.E) || math.IsInf(p.E, 0) {
		return errors.InvalidParameter("E must be finite, got %v", p.E)
	}
	if p.Extent != ExtentEdges && p.Extent != ExtentNodes {
		return errors.InvalidParameter("unknown cluster extent %d", p.Extent)
	}
	return nil
}

// preprocess copies m, clamps it and zeroes the diagonal. The caller's
// buffer is never modified. Off-diagonal weights must be finite once clamped.
func preprocess(m nbs.Matrix, clamp ClampPolicy) (nbs.Matrix, error) {
	if err := m.Validate(); err != nil {
		return nbs.Matrix{}, err
	}
	img := m.Clone()
	for k, w := range img.Data {
		w = clamp.Apply(w)
		if (math.IsNaN(w) || math.IsInf(w, 0)) && k/img.N != k%img.N {
			return nbs.Matrix{}, errors.InvalidParameter("weight (%d,%d) is not finite: %v", k/img.N, k%img.N, m.Data[k])
		}
		img.Data[k] = w
	}
	for i := 0; i < img.N; i++ {
		img.Set(i, i, 0)
	}
	return img, nil
}

// maxUpper returns the largest upper-triangle weight, never below zero.
func maxUpper(m nbs.Matrix) float64 {
	best := 0.0
	for i := 0; i < m.N; i++ {
		for j := i + 1; j < m.N; j++ {
			if w := m.At(i, j); w > best {
				best = w
			}
		}
	}
	return best
}

// extentOf measures the cluster owning node n. A cluster without edges has
// extent 0 under both measures.
func extentOf(f clusterView, n int, extent Extent) int {
	edges := f.NodeEdgeCount(n)
	if edges == 0 {
		return 0
	}
	if extent == ExtentNodes {
		return f.NodeNodeCount(n)
	}
	return edges
}

type clusterView interface {
	NodeEdgeCount(n int) int
	NodeNodeCount(n int) int
}
