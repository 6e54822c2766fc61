package tfce

import (
	"math"

	"gonbs/domain/nbs"
	"gonbs/internal/errors"
)

// Sparse is the coordinate-format variant of Dense: it never materializes an
// N×N matrix and returns one accumulated score per node. Each unordered pair
// is taken once (first occurrence wins); diagonal entries and non-positive
// weights are ignored. Indices are 0-based.
func Sparse(el nbs.EdgeList, numNodes int, p Params) ([]float64, error) {
	if numNodes <= 0 {
		return nil, errors.InvalidParameter("num_nodes must be positive, got %d", numNodes)
	}
	if err := p.validate(true); err != nil {
		return nil, err
	}
	if len(el.V) != len(el.I) {
		return nil, errors.ShapeMismatch("I, J and V must have equal lengths (got %d, %d, %d)", len(el.I), len(el.J), len(el.V))
	}
	if err := el.Validate(numNodes); err != nil {
		return nil, err
	}

	type pair struct{ i, j int }
	seen := make(map[pair]struct{}, el.Len())
	kept := make([]edge, 0, el.Len())
	weights := make([]float64, 0, el.Len())
	maxW := 0.0

	for k := 0; k < el.Len(); k++ {
		i, j := el.I[k], el.J[k]
		if i == j {
			continue
		}
		if i > j {
			i, j = j, i
		}
		key := pair{i, j}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		w := p.Clamp.Apply(el.V[k])
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, errors.InvalidParameter("edge (%d,%d) has non-finite weight %v", i, j, el.V[k])
		}
		if !(w > 0) {
			continue
		}
		kept = append(kept, edge{i, j})
		weights = append(weights, w)
		if w > maxW {
			maxW = w
		}
	}

	sched, err := NewSchedule(maxW, p.DH)
	if err != nil {
		return nil, err
	}
	buckets := make([][]edge, sched.Count)
	for k, e := range kept {
		if h := sched.Index(weights[k]); h < sched.Count {
			buckets[h] = append(buckets[h], e)
		}
	}

	final := make([]float64, numNodes)
	sweep(numNodes, sched, buckets, p, func(h int, score []float64) {
		if h == sched.Count-1 {
			copy(final, score)
		}
	})
	return final, nil
}
