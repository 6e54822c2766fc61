package nbs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"gonbs/internal/errors"
)

// EdgeList is a sparse coordinate (I,J,V) edge list with 0-based node indices.
type EdgeList struct {
	I []int
	J []int
	V []float64
}

// Len returns the number of coordinate entries.
func (e EdgeList) Len() int {
	return len(e.I)
}

// Validate checks parallel lengths and that every index is in [0, numNodes).
func (e EdgeList) Validate(numNodes int) error {
	if len(e.I) != len(e.J) || (e.V != nil && len(e.V) != len(e.I)) {
		return errors.ShapeMismatch("I, J and V must have equal lengths (got %d, %d, %d)", len(e.I), len(e.J), len(e.V))
	}
	for k := range e.I {
		if e.I[k] < 0 || e.I[k] >= numNodes || e.J[k] < 0 || e.J[k] >= numNodes {
			return errors.InvalidParameter("edge %d (%d,%d) out of range for %d nodes", k, e.I[k], e.J[k], numNodes)
		}
	}
	return nil
}

// TestKind selects the GLM statistic.
type TestKind string

const (
	TestOneSample TestKind = "onesample"
	TestTTest     TestKind = "ttest"
	TestFTest     TestKind = "ftest"
)

// IsT reports whether the kind yields a t-statistic.
func (k TestKind) IsT() bool {
	return k == TestOneSample || k == TestTTest
}

// Valid reports whether the kind is known.
func (k TestKind) Valid() bool {
	return k.IsT() || k == TestFTest
}

// Design bundles the inputs of one batch of GLMs sharing a design matrix.
// X is observations × predictors, Y is observations × GLM instances.
// Nuisance holds 0-based predictor indices and is only used by F-tests.
type Design struct {
	X        *mat.Dense
	Y        *mat.Dense
	Contrast []float64
	Kind     TestKind
	Nuisance []int
}

// PermutationBank holds K precomputed null replicates, each with the same
// length and ordering as the observed statistic. It is never mutated.
type PermutationBank struct {
	Replicates [][]float64
}

// K returns the number of replicates.
func (b PermutationBank) K() int {
	return len(b.Replicates)
}

// Validate checks every replicate has length n.
func (b PermutationBank) Validate(n int) error {
	for k, r := range b.Replicates {
		if len(r) != n {
			return errors.ShapeMismatch("permutation %d has %d entries, expected %d", k, len(r), n)
		}
	}
	return nil
}

// BankFromColumns builds a bank from a column-major length×k buffer, the
// layout used when permutations are the columns of one matrix.
func BankFromColumns(flat []float64, length, k int) (PermutationBank, error) {
	if length < 0 || k < 0 || len(flat) != length*k {
		return PermutationBank{}, errors.ShapeMismatch("permutation buffer has %d entries, expected %d×%d", len(flat), length, k)
	}
	reps := make([][]float64, k)
	for p := 0; p < k; p++ {
		reps[p] = flat[p*length : (p+1)*length : (p+1)*length]
	}
	return PermutationBank{Replicates: reps}, nil
}

// RunKind names the operation recorded by a Run.
type RunKind string

const (
	RunGLM          RunKind = "glm"
	RunTFCE         RunKind = "tfce"
	RunClusters     RunKind = "clusters"
	RunNetwork      RunKind = "network_pvalues"
	RunMaxComponent RunKind = "max_component_pvalues"
	RunPipeline     RunKind = "pipeline"
)

// Run is the persisted record of one computation.
type Run struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	Kind       RunKind         `json:"kind" db:"kind"`
	Params     json.RawMessage `json:"params" db:"params"`
	Result     json.RawMessage `json:"result" db:"result"`
	DurationMS int64           `json:"duration_ms" db:"duration_ms"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// NewRun stamps a fresh Run with a random ID.
func NewRun(kind RunKind, params, result interface{}, took time.Duration) (*Run, error) {
	p, err := json.Marshal(params)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal run params")
	}
	r, err := json.Marshal(result)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal run result")
	}
	return &Run{
		ID:         uuid.New(),
		Kind:       kind,
		Params:     p,
		Result:     r,
		DurationMS: took.Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}, nil
}
