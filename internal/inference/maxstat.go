package inference

import (
	"context"
	"math"

	"gonbs/domain/nbs"
	"gonbs/internal/errors"
)

// MaxStatisticPValues controls FWER over edges with the maximum statistic:
// replicate k contributes max(replicate k) to the null distribution, and each
// observed entry is compared against that distribution. Entries that are not
// positive get p = 1. The null samples are returned alongside the p-values.
func MaxStatisticPValues(ctx context.Context, observed []float64, bank nbs.PermutationBank, opts Options) ([]float64, []float64, error) {
	k := bank.K()
	if k == 0 {
		return nil, nil, errors.InvalidParameter("permutation bank is empty")
	}
	if err := bank.Validate(len(observed)); err != nil {
		return nil, nil, err
	}

	null := make([]float64, k)
	err := forEachChunk(ctx, k, opts, func(ctx context.Context, _, lo, hi int) error {
		for p := lo; p < hi; p++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			best := math.Inf(-1)
			for _, v := range bank.Replicates[p] {
				if v > best {
					best = v
				}
			}
			null[p] = best
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	pvalues := make([]float64, len(observed))
	for e, s := range observed {
		pvalues[e] = exceedance(null, s)
	}
	return pvalues, null, nil
}
