package reflow

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// RewrapLineFunc computes the wrap plan for one logical line.
type RewrapLineFunc func(idx int) WrapPlan

// RewrapBatches runs rewrap over every logical line named by batches,
// writing results into a pre-indexed scratch slice. Large batch sets
// fan out across runtime.GOMAXPROCS(0) workers; small ones run
// single-threaded, per spec §4.2 ("Large batches may be split across
// parallel workers (available_parallelism) ... a single-threaded path
// is used for small batches").
func RewrapBatches(ctx context.Context, batches []Batch, total int, rewrap RewrapLineFunc) ([]WrapPlan, error) {
	plans := make([]WrapPlan, total)

	totalLines := 0
	for _, b := range batches {
		totalLines += b.Len()
	}
	if totalLines <= MaxBatchSize {
		for _, b := range batches {
			for i := b.StartIndex; i < b.EndIndex; i++ {
				plans[i] = rewrap(i)
			}
		}
		return plans, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, b := range batches {
		b := b
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			for i := b.StartIndex; i < b.EndIndex; i++ {
				plans[i] = rewrap(i)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return plans, nil
}
