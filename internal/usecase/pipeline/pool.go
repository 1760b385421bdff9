package pipeline

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/docscan/internal/domain/unit"
)

// unitFunc processes one task; it must return a terminal or routed result.
type unitFunc func(ctx context.Context, t unit.Task) unit.Result

// runPool runs fn over tasks with at most limit in flight and calls done for
// each result as it completes. A failing unit never cancels its siblings.
// Tasks not started before ctx is done are reported as skipped.
func runPool(ctx context.Context, tasks []unit.Task, limit int, fn unitFunc, done func(unit.Result)) {
	if len(tasks) == 0 {
		return
	}
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(limit, 1))

	var mu sync.Mutex
	for _, t := range tasks {
		g.Go(func() error {
			res := runUnit(gCtx, t, fn)
			mu.Lock()
			defer mu.Unlock()
			done(res)
			return nil
		})
	}
	_ = g.Wait()
}

// runUnit isolates one unit: panics become failed results and a cancelled
// context skips the work entirely.
func runUnit(ctx context.Context, t unit.Task, fn unitFunc) (res unit.Result) {
	if err := ctx.Err(); err != nil {
		return unit.NewSkipped(t, err)
	}
	defer func() {
		if r := recover(); r != nil {
			res = unit.NewFailed(t, fmt.Errorf("panic: %v", r))
		}
	}()
	return fn(ctx, t)
}
