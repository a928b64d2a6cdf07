package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// ChartWaitResult splits the awaited chart ids by outcome, in request order.
type ChartWaitResult struct {
	Loaded []string
	Failed []string
}

// waitForCharts waits for each chart id in batches of batchSize. Every wait in a
// batch runs to completion, so one slow chart never cuts its siblings short.
func waitForCharts(ctx context.Context, session Session, ids []string, batchSize int, pause, timeout time.Duration, onFailure func(id string, err error)) (ChartWaitResult, error) {
	if batchSize <= 0 {
		batchSize = 1
	}
	loaded := make([]bool, len(ids))

	for start := 0; start < len(ids); start += batchSize {
		if start > 0 {
			if err := sleep(ctx, pause); err != nil {
				return ChartWaitResult{}, err
			}
		}
		end := min(start+batchSize, len(ids))

		// A chart that times out only lands in Failed; the group errors when ctx itself is done.
		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				waitCtx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()
				err := session.WaitFor(waitCtx, CSSForID(ids[i]))
				if err == nil {
					loaded[i] = true
					return nil
				}
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				if onFailure != nil {
					onFailure(ids[i], err)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return ChartWaitResult{}, err
		}
	}

	var result ChartWaitResult
	for i, id := range ids {
		if loaded[i] {
			result.Loaded = append(result.Loaded, id)
		} else {
			result.Failed = append(result.Failed, id)
		}
	}
	return result, nil
}

// meetsThreshold reports whether loaded/total reaches percent, in integer arithmetic.
func meetsThreshold(loaded, total, percent int) bool {
	if total == 0 {
		return true
	}
	return loaded*100 >= total*percent
}
