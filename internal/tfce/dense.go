package tfce

import (
	"math"

	"gonbs/domain/nbs"
	"gonbs/internal/cluster"
)

// sweep runs the incremental union-find pass shared by the discretized
// variants. Levels are processed from the strongest bucket down to level 1;
// after each level the extent of every node's cluster is recorded. The
// recorded extents are then integrated from level 1 upward, and visit is
// called once per level with the running per-node score, which only grows.
func sweep(n int, sched Schedule, buckets [][]edge, p Params, visit func(h int, score []float64)) {
	forest := cluster.NewForest(n)
	extents := make([][]int, sched.Count)

	for h := sched.Count - 1; h >= 1; h-- {
		for _, e := range buckets[h] {
			forest.Link(e.i, e.j)
		}
		level := make([]int, n)
		for v := 0; v < n; v++ {
			level[v] = extentOf(forest, v, p.Extent)
		}
		extents[h] = level
	}

	score := make([]float64, n)
	for h := 1; h < sched.Count; h++ {
		th := sched.Value(h)
		for v, size := range extents[h] {
			if size > 0 {
				score[v] += math.Pow(float64(size), p.E) * math.Pow(th, p.H) * p.DH
			}
		}
		visit(h, score)
	}
}

// Dense computes the discretized TFCE transform of a weighted graph. Every
// edge present at some threshold receives the accumulated score of its lower
// endpoint at the level where the edge enters the sweep; all other entries,
// including the diagonal, are zero. The output is symmetric.
//
// Errors: ShapeMismatch for a non-square buffer, InvalidParameter for a
// non-positive dh, non-finite H/E, an infinite weight that survives the
// clamp, or a ladder longer than MaxLevels.
func Dense(m nbs.Matrix, p Params) (nbs.Matrix, error) {
	if err := p.validate(true); err != nil {
		return nbs.Matrix{}, err
	}
	img, err := preprocess(m, p.Clamp)
	if err != nil {
		return nbs.Matrix{}, err
	}

	sched, err := NewSchedule(maxUpper(img), p.DH)
	if err != nil {
		return nbs.Matrix{}, err
	}
	buckets := bucketMatrix(img, sched)
	out := nbs.NewMatrix(img.N)

	sweep(img.N, sched, buckets, p, func(h int, score []float64) {
		for _, e := range buckets[h] {
			out.SetSym(e.i, e.j, score[e.i])
		}
	})
	return out, nil
}

// DenseNodes runs the same sweep as Dense and returns the final per-node score.
func DenseNodes(m nbs.Matrix, p Params) ([]float64, error) {
	if err := p.validate(true); err != nil {
		return nil, err
	}
	img, err := preprocess(m, p.Clamp)
	if err != nil {
		return nil, err
	}

	sched, err := NewSchedule(maxUpper(img), p.DH)
	if err != nil {
		return nil, err
	}
	buckets := bucketMatrix(img, sched)
	final := make([]float64, img.N)
	sweep(img.N, sched, buckets, p, func(h int, score []float64) {
		if h == sched.Count-1 {
			copy(final, score)
		}
	})
	return final, nil
}
