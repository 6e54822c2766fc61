package cluster

import (
	"gonbs/internal/errors"
)

// SparseSizes assigns every node the node count of its connected component,
// given an edge list of 0-based (I[k], J[k]) pairs over n nodes. Edges are
// consumed online: each one either joins two untouched nodes, extends a
// cluster, or merges two clusters (smaller into larger). Nodes never touched
// by an edge keep size 0; a self loop on an untouched node yields size 1.
func SparseSizes(I, J []int, n int) ([]int, error) {
	if n <= 0 {
		return nil, errors.InvalidParameter("number of nodes must be positive, got %d", n)
	}
	if len(I) != len(J) {
		return nil, errors.ShapeMismatch("I and J must have the same number of elements (%d vs %d)", len(I), len(J))
	}

	forest := NewForest(n)
	touched := make([]bool, n)
	for k := range I {
		i, j := I[k], J[k]
		if i < 0 || i >= n || j < 0 || j >= n {
			return nil, errors.InvalidParameter("edge %d (%d,%d) out of range for %d nodes", k, i, j, n)
		}
		touched[i] = true
		touched[j] = true
		forest.Link(i, j)
	}

	sizes := make([]int, n)
	for v := 0; v < n; v++ {
		if touched[v] {
			sizes[v] = forest.NodeNodeCount(v)
		}
	}
	return sizes, nil
}
