package inference

import (
	"context"
	"sort"

	"gonbs/domain/nbs"
	"gonbs/internal/errors"
)

// NetworkResult holds one entry per labelled sub-network, ordered by label.
type NetworkResult struct {
	Labels      []int     `json:"labels"`
	Observed    []float64 `json:"observed"`
	Uncorrected []float64 `json:"uncorrected"`
	FWER        []float64 `json:"fwer"`
	FDR         []bool    `json:"fdr"`
}

// NetworkPValues runs network-constrained inference. Edge statistics are
// summed within each non-zero label, both for the observed vector and for
// every replicate in bank. The uncorrected p-value of a network is the
// fraction of replicates whose summed statistic is at least the observed sum.
// FWER is Bonferroni over the number of networks; FDR flags networks that
// pass the Simes step-up test at alpha.
func NetworkPValues(ctx context.Context, stats []float64, bank nbs.PermutationBank, labels []int, alpha float64, opts Options) (NetworkResult, error) {
	if !(alpha > 0 && alpha <= 1) {
		return NetworkResult{}, errors.InvalidParameter("alpha must be in (0,1], got %v", alpha)
	}
	if len(labels) != len(stats) {
		return NetworkResult{}, errors.ShapeMismatch("%d labels for %d edge statistics", len(labels), len(stats))
	}
	k := bank.K()
	if k == 0 {
		return NetworkResult{}, errors.InvalidParameter("permutation bank is empty")
	}
	if err := bank.Validate(len(stats)); err != nil {
		return NetworkResult{}, err
	}

	index := make(map[int]int)
	var networks []int
	for _, l := range labels {
		if l == 0 {
			continue
		}
		if _, ok := index[l]; !ok {
			index[l] = 0
			networks = append(networks, l)
		}
	}
	sort.Ints(networks)
	for i, l := range networks {
		index[l] = i
	}

	slot := make([]int, len(labels))
	for e, l := range labels {
		slot[e] = -1
		if l != 0 {
			slot[e] = index[l]
		}
	}

	m := len(networks)
	observed := sumByNetwork(stats, slot, make([]float64, m))

	partial := make([][]int, numChunks(k, opts))
	err := forEachChunk(ctx, k, opts, func(ctx context.Context, chunk, lo, hi int) error {
		counts := make([]int, m)
		scratch := make([]float64, m)
		for p := lo; p < hi; p++ {
			if p%64 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			sums := sumByNetwork(bank.Replicates[p], slot, scratch)
			for n := range sums {
				if sums[n] >= observed[n] {
					counts[n]++
				}
			}
		}
		partial[chunk] = counts
		return nil
	})
	if err != nil {
		return NetworkResult{}, err
	}

	uncorrected := make([]float64, m)
	for _, counts := range partial {
		for n, c := range counts {
			uncorrected[n] += float64(c)
		}
	}
	for n := range uncorrected {
		uncorrected[n] /= float64(k)
	}

	return NetworkResult{
		Labels:      networks,
		Observed:    observed,
		Uncorrected: uncorrected,
		FWER:        Bonferroni(uncorrected, m),
		FDR:         SimesFDR(uncorrected, alpha),
	}, nil
}

func sumByNetwork(values []float64, slot []int, out []float64) []float64 {
	for n := range out {
		out[n] = 0
	}
	for e, s := range slot {
		if s >= 0 {
			out[s] += values[e]
		}
	}
	return out
}

// Bonferroni multiplies every p-value by m and caps the result at 1.
func Bonferroni(p []float64, m int) []float64 {
	out := make([]float64, len(p))
	for i, v := range p {
		out[i] = min(v*float64(m), 1)
	}
	return out
}

// SimesFDR walks the p-values in ascending order and flags each one while
// p_(j) ≤ (j+1)/m·alpha holds. The walk stops at the first failure, so the
// flagged set is always a prefix of the sorted order.
func SimesFDR(p []float64, alpha float64) []bool {
	m := len(p)
	order := make([]int, m)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return p[order[a]] < p[order[b]] })

	out := make([]bool, m)
	for j, i := range order {
		if p[i] > float64(j+1)/float64(m)*alpha {
			break
		}
		out[i] = true
	}
	return out
}
