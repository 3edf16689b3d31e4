package qtransport

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSweepCoversEveryPoint(t *testing.T) {
	for _, n := range []int{0, 1, blockSize - 1, blockSize, 5*blockSize + 3} {
		for _, workers := range []int{0, 1, 3} {
			hits := make([]int32, n)
			var calls int32
			err := sweep(context.Background(), n, workers, func(_ context.Context, block, lo, hi int) error {
				atomic.AddInt32(&calls, 1)
				if lo != block*blockSize || hi > n || hi <= lo {
					return errors.New("bad block bounds")
				}
				for i := lo; i < hi; i++ {
					atomic.AddInt32(&hits[i], 1)
				}
				return nil
			})
			require.NoError(t, err)
			require.EqualValues(t, numBlocks(n), calls)
			for i, h := range hits {
				if h != 1 {
					t.Fatalf("n = %d, workers = %d: point %d visited %d times", n, workers, i, h)
				}
			}
		}
	}
}

func TestSweepErrors(t *testing.T) {
	boom := errors.New("boom")
	err := sweep(context.Background(), 10*blockSize, 2, func(_ context.Context, block, _, _ int) error {
		if block == 3 {
			return boom
		}
		return nil
	})
	require.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls int32
	err = sweep(ctx, 10*blockSize, 2, func(context.Context, int, int, int) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, calls)
}

func TestNumBlocks(t *testing.T) {
	require.Equal(t, 0, numBlocks(0))
	require.Equal(t, 1, numBlocks(1))
	require.Equal(t, 1, numBlocks(blockSize))
	require.Equal(t, 2, numBlocks(blockSize+1))
	require.Equal(t, 3, workerCount(3))
	require.Positive(t, workerCount(0))
}
