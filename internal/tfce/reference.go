package tfce

import (
	"math"

	"gonbs/domain/nbs"
	"gonbs/internal/cluster"
	"gonbs/internal/errors"
)

// Reference computes the same transform as Dense by brute force: at every
// level h ≥ 1 it rebuilds the connected components of the edges present at
// that level with a breadth-first search and adds edgeCount^E·th^H·dh to each
// present edge. Level membership uses the same Schedule.Index predicate as the
// incremental sweep, so the two agree exactly on boundary weights.
//
// Complexity: O(levels · N²). Intended for cross-checking.
func Reference(m nbs.Matrix, p Params) (nbs.Matrix, error) {
	if err := p.validate(true); err != nil {
		return nbs.Matrix{}, err
	}
	img, err := preprocess(m, p.Clamp)
	if err != nil {
		return nbs.Matrix{}, err
	}

	n := img.N
	sched, err := NewSchedule(maxUpper(img), p.DH)
	if err != nil {
		return nbs.Matrix{}, err
	}
	level := make([]int, n*n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			level[i*n+j] = -1
			if w := img.At(i, j); w > 0 {
				level[i*n+j] = sched.Index(w)
			}
		}
	}

	out := nbs.NewMatrix(n)
	extent := make([]int, n)
	for h := 1; h < sched.Count; h++ {
		th := sched.Value(h)
		present := func(i, j int) bool { return level[i*n+j] >= h }

		for v := range extent {
			extent[v] = 0
		}
		for _, comp := range cluster.Components(n, present) {
			size := comp.Edges
			if p.Extent == ExtentNodes {
				size = len(comp.Nodes)
			}
			for _, v := range comp.Nodes {
				extent[v] = size
			}
		}

		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				if present(i, j) && extent[i] > 0 {
					contribution := math.Pow(float64(extent[i]), p.E) * math.Pow(th, p.H) * p.DH
					out.Data[i*n+j] += contribution
					out.Data[j*n+i] += contribution
				}
			}
		}
	}
	return out, nil
}

// ReferenceAdjacency sweeps per-element values over a precomputed neighbor
// list instead of a dense matrix. At each level, elements at or above the
// threshold form clusters through their neighbor lists; every member gains
// clusterSize^E·th^H, where size is the number of elements. The accumulated
// sums are scaled by dh once at the end. neighbors holds 0-based indices.
func ReferenceAdjacency(values []float64, neighbors [][]int, p Params) ([]float64, error) {
	if err := p.validate(true); err != nil {
		return nil, err
	}
	n := len(values)
	if len(neighbors) != n {
		return nil, errors.ShapeMismatch("neighbor list has %d entries for %d elements", len(neighbors), n)
	}
	for v, nb := range neighbors {
		for _, u := range nb {
			if u < 0 || u >= n {
				return nil, errors.InvalidParameter("element %d lists neighbor %d outside [0,%d)", v, u, n)
			}
		}
	}

	sched := Schedule{Step: p.DH}
	level := make([]int, n)
	maxV := 0.0
	for v, x := range values {
		x = p.Clamp.Apply(x)
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, errors.InvalidParameter("element %d has non-finite value %v", v, values[v])
		}
		level[v] = -1
		if x > 0 {
			level[v] = sched.Index(x)
		}
		if x > maxV {
			maxV = x
		}
	}
	sched, err := NewSchedule(maxV, p.DH)
	if err != nil {
		return nil, err
	}

	sums := make([]float64, n)
	visited := make([]bool, n)
	queue := make([]int, 0, n)
	members := make([]int, 0, n)

	for h := 1; h < sched.Count; h++ {
		th := sched.Value(h)
		for v := range visited {
			visited[v] = false
		}
		for start := 0; start < n; start++ {
			if visited[start] || level[start] < h {
				continue
			}
			visited[start] = true
			queue = append(queue[:0], start)
			members = append(members[:0], start)
			for head := 0; head < len(queue); head++ {
				for _, u := range neighbors[queue[head]] {
					if !visited[u] && level[u] >= h {
						visited[u] = true
						queue = append(queue, u)
						members = append(members, u)
					}
				}
			}
			contribution := math.Pow(float64(len(members)), p.E) * math.Pow(th, p.H)
			for _, v := range members {
				sums[v] += contribution
			}
		}
	}

	for v := range sums {
		sums[v] *= p.DH
	}
	return sums, nil
}
