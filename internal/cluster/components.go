package cluster

import (
	"gonbs/domain/nbs"
)

// Component is one connected component found by Components.
type Component struct {
	Nodes []int // in BFS discovery order
	Edges int   // undirected edges inside the component
}

// EdgePredicate reports whether the undirected edge {i,j} (i < j) is present.
type EdgePredicate func(i, j int) bool

// Positive is the predicate for binary adjacency: upper-triangle weight > 0.
func Positive(m nbs.Matrix) EdgePredicate {
	return func(i, j int) bool {
		return m.Data[i*m.N+j] > 0
	}
}

// Components runs a breadth-first search from every unvisited node and
// returns the components that contain at least one edge, in order of their
// lowest node. Isolated nodes are skipped.
//
// Complexity: O(n²) per call since neighbors are scanned densely.
func Components(n int, present EdgePredicate) []Component {
	visited := make([]bool, n)
	queue := make([]int, 0, n)
	var out []Component

	for start := 0; start < n; start++ {
		if visited[start] {
			continue
		}
		visited[start] = true
		queue = append(queue[:0], start)
		comp := Component{Nodes: []int{start}}

		for head := 0; head < len(queue); head++ {
			node := queue[head]
			for nb := 0; nb < n; nb++ {
				if nb == node || !present(min(node, nb), max(node, nb)) {
					continue
				}
				if node < nb {
					comp.Edges++
				}
				if !visited[nb] {
					visited[nb] = true
					queue = append(queue, nb)
					comp.Nodes = append(comp.Nodes, nb)
				}
			}
		}

		if len(comp.Nodes) > 1 {
			out = append(out, comp)
		}
	}
	return out
}

// LargestEdgeCount returns the maximum Edges over comps, or 0 when empty.
func LargestEdgeCount(comps []Component) int {
	best := 0
	for _, c := range comps {
		if c.Edges > best {
			best = c.Edges
		}
	}
	return best
}
