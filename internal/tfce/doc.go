// Package tfce implements threshold-free cluster enhancement for weighted
// graphs.
//
// The transform replaces every edge weight with the integral, over all
// thresholds t below it, of extent(t)^E · t^H, where extent(t) is the size of
// the connected cluster supporting the edge once all edges weaker than t are
// removed. Three variants share one union-find forest:
//
//   - Dense and DenseNodes discretize t on a dh grid and sweep the grid from
//     the strongest level down, merging clusters as edges enter.
//   - Sparse runs the same sweep on a coordinate edge list and returns
//     per-node scores.
//   - Exact integrates between consecutive distinct weights in closed form.
//
// Reference and ReferenceAdjacency rebuild components from scratch at every
// level and exist to cross-check the incremental sweeps.
//
// All variants copy their input, clamp saturated weights according to
// ClampPolicy and zero the diagonal before sweeping.
package tfce
