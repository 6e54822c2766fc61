// Package inference turns observed statistics and a bank of permutation
// replicates into family-wise and false-discovery corrected p-values.
//
// Every permutation is independent of the others, so the replicate loop is
// split into contiguous chunks and run on an errgroup. Workers only read the
// bank and keep their own scratch buffers; per-chunk counts and null samples
// are merged after the group finishes, which keeps results identical for any
// worker count.
package inference
