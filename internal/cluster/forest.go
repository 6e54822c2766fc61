// Package cluster holds the union-find and connected-component primitives
// shared by the threshold sweeps and the permutation engines.
package cluster

// Forest is an index-based union-find over the nodes {0..n-1}. Every cluster
// keeps an explicit member list so a merge can relabel the absorbed nodes
// directly; there is no parent chasing, so Find is a single slice lookup.
//
// Cluster ids are the ids of the singleton clusters the forest starts with.
// A cluster that has been absorbed keeps its id but becomes inactive.
type Forest struct {
	label     []int
	members   [][]int
	nodeCount []int
	edgeCount []int
	active    []bool
}

// NewForest creates n singleton clusters: one node, zero edges, active.
func NewForest(n int) *Forest {
	f := &Forest{
		label:     make([]int, n),
		members:   make([][]int, n),
		nodeCount: make([]int, n),
		edgeCount: make([]int, n),
		active:    make([]bool, n),
	}
	for i := 0; i < n; i++ {
		f.label[i] = i
		f.members[i] = []int{i}
		f.nodeCount[i] = 1
		f.active[i] = true
	}
	return f
}

// Len returns the number of nodes.
func (f *Forest) Len() int {
	return len(f.label)
}

// Find returns the id of the cluster that currently owns node n.
func (f *Forest) Find(n int) int {
	return f.label[n]
}

// Link adds the edge {i,j}. When the endpoints sit in different clusters the
// cluster with fewer nodes is absorbed into the other one; on equal node
// counts the cluster of i survives. The survivor's edge count becomes the sum
// of both edge counts plus the new edge. When the endpoints already share a
// cluster only its edge count grows. Link returns the surviving cluster id and
// whether a merge happened.
func (f *Forest) Link(i, j int) (int, bool) {
	ci, cj := f.label[i], f.label[j]
	if ci == cj {
		f.edgeCount[ci]++
		return ci, false
	}

	target, absorbed := ci, cj
	if f.nodeCount[cj] > f.nodeCount[ci] {
		target, absorbed = cj, ci
	}

	for _, n := range f.members[absorbed] {
		f.label[n] = target
	}
	f.members[target] = append(f.members[target], f.members[absorbed]...)
	f.nodeCount[target] += f.nodeCount[absorbed]
	f.edgeCount[target] += f.edgeCount[absorbed] + 1

	f.members[absorbed] = nil
	f.nodeCount[absorbed] = 0
	f.edgeCount[absorbed] = 0
	f.active[absorbed] = false

	return target, true
}

// Active reports whether cluster c still exists.
func (f *Forest) Active(c int) bool {
	return f.active[c]
}

// NodeCount returns the number of nodes in cluster c.
func (f *Forest) NodeCount(c int) int {
	return f.nodeCount[c]
}

// EdgeCount returns the number of edges accumulated by cluster c.
func (f *Forest) EdgeCount(c int) int {
	return f.edgeCount[c]
}

// Members returns the nodes of cluster c. The slice is owned by the forest.
func (f *Forest) Members(c int) []int {
	return f.members[c]
}

// NodeEdgeCount is EdgeCount(Find(n)).
func (f *Forest) NodeEdgeCount(n int) int {
	return f.edgeCount[f.label[n]]
}

// NodeNodeCount is NodeCount(Find(n)).
func (f *Forest) NodeNodeCount(n int) int {
	return f.nodeCount[f.label[n]]
}
