package inference

import (
	"context"

	"gonbs/domain/nbs"
	"gonbs/internal/cluster"
	"gonbs/internal/errors"
)

// ComponentResult is the output of max-component inference.
type ComponentResult struct {
	PValues   nbs.Matrix  `json:"pvalues"`
	Statistic nbs.Matrix  `json:"statistic"`
	Null      []float64   `json:"null"`
	Summary   NullSummary `json:"summary"`
}

// MaxComponentPValues runs cluster-size inference on binary adjacency
// matrices. Every edge of an observed component with at least two nodes is
// scored with that component's edge count. Each replicate contributes the
// edge count of its largest component, floored at 1, to the null
// distribution. An edge's p-value is the fraction of null samples at least as
// large as its score; edges outside any component get 1.
func MaxComponentPValues(ctx context.Context, observed nbs.Matrix, bank []nbs.Matrix, opts Options) (ComponentResult, error) {
	if err := observed.Validate(); err != nil {
		return ComponentResult{}, err
	}
	k := len(bank)
	if k == 0 {
		return ComponentResult{}, errors.InvalidParameter("permutation bank is empty")
	}
	n := observed.N
	for p, m := range bank {
		if err := m.Validate(); err != nil {
			return ComponentResult{}, errors.Wrapf(err, "permutation %d", p)
		}
		if m.N != n {
			return ComponentResult{}, errors.ShapeMismatch("permutation %d has %d nodes, observed has %d", p, m.N, n)
		}
	}

	statistic := componentStatistic(observed)

	partial := make([][]float64, numChunks(k, opts))
	err := forEachChunk(ctx, k, opts, func(ctx context.Context, chunk, lo, hi int) error {
		samples := make([]float64, 0, hi-lo)
		for p := lo; p < hi; p++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			largest := cluster.LargestEdgeCount(cluster.Components(n, cluster.Positive(bank[p])))
			samples = append(samples, float64(max(largest, 1)))
		}
		partial[chunk] = samples
		return nil
	})
	if err != nil {
		return ComponentResult{}, err
	}

	null := make([]float64, 0, k)
	for _, samples := range partial {
		null = append(null, samples...)
	}

	pvalues := nbs.NewMatrix(n)
	for idx, s := range statistic.Data {
		pvalues.Data[idx] = exceedance(null, s)
	}

	summary, err := Summarize(null)
	if err != nil {
		return ComponentResult{}, err
	}
	return ComponentResult{PValues: pvalues, Statistic: statistic, Null: null, Summary: summary}, nil
}

// componentStatistic labels every edge of a multi-node component with the
// component's edge count.
func componentStatistic(m nbs.Matrix) nbs.Matrix {
	n := m.N
	out := nbs.NewMatrix(n)
	owner := make([]int, n)
	for i := range owner {
		owner[i] = -1
	}
	comps := cluster.Components(n, cluster.Positive(m))
	for c, comp := range comps {
		for _, v := range comp.Nodes {
			owner[v] = c
		}
	}
	for i := 0; i < n; i++ {
		if owner[i] < 0 {
			continue
		}
		for j := i + 1; j < n; j++ {
			if m.At(i, j) > 0 {
				out.SetSym(i, j, float64(comps[owner[i]].Edges))
			}
		}
	}
	return out
}

// exceedance is #(null ≥ s)/K for a positive statistic and 1 otherwise.
func exceedance(null []float64, s float64) float64 {
	if !(s > 0) {
		return 1
	}
	count := 0
	for _, v := range null {
		if v >= s {
			count++
		}
	}
	return min(float64(count)/float64(len(null)), 1)
}
