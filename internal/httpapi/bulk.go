package httpapi

import (
	"context"

	"golang.org/x/sync/errgroup"

	"modelhub/pkg/types"
)

// bulkParallelism bounds concurrent upstream sub-requests per bulk
// operation so one big batch cannot monopolize the daemon.
const bulkParallelism = 4

// settleAll runs fn for every model in parallel and waits for all of them.
// Sub-requests are independent: one failure never aborts the batch, it is
// recorded per item instead.
func settleAll(ctx context.Context, models []string, fn func(ctx context.Context, model string) error) (completed int, failed []types.BulkFailure) {
	results := make([]error, len(models))
	var g errgroup.Group
	g.SetLimit(bulkParallelism)
	for i, m := range models {
		i, m := i, m
		g.Go(func() error {
			results[i] = fn(ctx, m)
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range results {
		if err != nil {
			failed = append(failed, types.BulkFailure{Model: models[i], Error: err.Error()})
			continue
		}
		completed++
	}
	return completed, failed
}
