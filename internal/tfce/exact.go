package tfce

import (
	"math"
	"sort"

	"gonbs/domain/nbs"
	"gonbs/internal/cluster"
	"gonbs/internal/errors"
)

// Exact integrates the TFCE transform in closed form instead of on a dh
// grid. Distinct positive weights w_1 > w_2 > ... > w_K are visited in
// descending order; after the edges of weight w_k join the forest, every
// active edge gains
//
//	extent^E · (w_k^(H+1) − w_{k+1}^(H+1)) / (H+1),   w_{K+1} = 0
//
// which is the exact integral of extent^E·t^H over (w_{k+1}, w_k]. DH in p is
// ignored. H must be greater than -1 for the integral to converge at zero.
func Exact(m nbs.Matrix, p Params) (nbs.Matrix, error) {
	if err := p.validate(false); err != nil {
		return nbs.Matrix{}, err
	}
	if p.H <= -1 {
		return nbs.Matrix{}, errors.InvalidParameter("H must be greater than -1 for exact integration, got %v", p.H)
	}
	img, err := preprocess(m, p.Clamp)
	if err != nil {
		return nbs.Matrix{}, err
	}

	n := img.N
	var edges []edge
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if img.At(i, j) > 0 {
				edges = append(edges, edge{i, j})
			}
		}
	}
	sort.SliceStable(edges, func(a, b int) bool {
		return img.At(edges[a].i, edges[a].j) > img.At(edges[b].i, edges[b].j)
	})

	out := nbs.NewMatrix(n)
	forest := cluster.NewForest(n)
	active := make([]edge, 0, len(edges))
	hp1 := p.H + 1

	for start := 0; start < len(edges); {
		w := img.At(edges[start].i, edges[start].j)
		end := start
		for end < len(edges) && img.At(edges[end].i, edges[end].j) == w {
			forest.Link(edges[end].i, edges[end].j)
			active = append(active, edges[end])
			end++
		}

		next := 0.0
		if end < len(edges) {
			next = img.At(edges[end].i, edges[end].j)
		}
		band := (math.Pow(w, hp1) - math.Pow(next, hp1)) / hp1

		for _, e := range active {
			size := extentOf(forest, e.i, p.Extent)
			contribution := math.Pow(float64(size), p.E) * band
			out.Data[e.i*n+e.j] += contribution
			out.Data[e.j*n+e.i] += contribution
		}
		start = end
	}
	return out, nil
}
