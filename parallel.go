package qtransport

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// blockSize is the number of mesh points handled by one task. It is fixed so
// that block-wise reductions are independent of the worker count.
const blockSize = 64

// numBlocks returns the number of blocks needed to cover n points.
func numBlocks(n int) int {
	return (n + blockSize - 1) / blockSize
}

// workerCount returns w, or GOMAXPROCS when w < 1.
func workerCount(w int) int {
	if w < 1 {
		return runtime.GOMAXPROCS(0)
	}
	return w
}

// sweep calls fn once per block of [0, n) on at most workers goroutines.
// fn receives the block index and the half-open point range [lo, hi), and must
// only write to storage owned by that block. The first error (including the
// context error on cancellation) is returned once every started task is done.
func sweep(ctx context.Context, n, workers int, fn func(ctx context.Context, block, lo, hi int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount(workers))
	for b := 0; b < numBlocks(n); b++ {
		lo := b * blockSize
		hi := min(lo+blockSize, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, b, lo, hi)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
