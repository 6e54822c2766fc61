package inference

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Options tunes the permutation worker pool.
type Options struct {
	// Workers caps concurrent goroutines. Zero or negative uses GOMAXPROCS.
	Workers int
}

func (o Options) workers(k int) int {
	w := o.Workers
	if w <= 0 {
		w = runtime.GOMAXPROCS(0)
	}
	if w > k {
		w = k
	}
	if w < 1 {
		w = 1
	}
	return w
}

// forEachChunk splits the replicate range [0,k) into one contiguous chunk per
// worker and calls fn(ctx, chunk, lo, hi) for each. It returns the number of
// chunks so callers can size per-chunk result slots before merging.
func forEachChunk(ctx context.Context, k int, opts Options, fn func(ctx context.Context, chunk, lo, hi int) error) error {
	workers := opts.workers(k)
	size := (k + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for chunk, lo := 0, 0; lo < k; chunk, lo = chunk+1, lo+size {
		chunk, lo, hi := chunk, lo, min(lo+size, k)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, chunk, lo, hi)
		})
	}
	return g.Wait()
}

// ForEachReplicate calls fn once for every replicate index in [0,k) on the
// same bounded pool the p-value engines use. Indices within a chunk run in
// ascending order on one goroutine.
func ForEachReplicate(ctx context.Context, k int, opts Options, fn func(ctx context.Context, p int) error) error {
	if k <= 0 {
		return nil
	}
	return forEachChunk(ctx, k, opts, func(ctx context.Context, _, lo, hi int) error {
		for p := lo; p < hi; p++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
}

// numChunks mirrors the chunking used by forEachChunk.
func numChunks(k int, opts Options) int {
	workers := opts.workers(k)
	size := (k + workers - 1) / workers
	return (k + size - 1) / size
}
