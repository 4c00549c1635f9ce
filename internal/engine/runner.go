package engine

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/the-proof-must-flow/internal/common"
	"github.com/Veraticus/the-proof-must-flow/internal/model"
)

// task is one named check bound to its input.
type task struct {
	run  func(ctx context.Context) model.CheckResult
	name string
}

// runChecks runs every task concurrently. Checks share no mutable state, so
// each writes only its own slot.
func runChecks(ctx context.Context, tasks []task) map[string]model.CheckResult {
	results := make([]model.CheckResult, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, t := range tasks {
		g.Go(func() error {
			results[i] = safeRun(gctx, t)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]model.CheckResult, len(tasks))
	for i, t := range tasks {
		out[t.name] = results[i]
	}
	return out
}

// safeRun converts a panicking check into a zero score.
func safeRun(ctx context.Context, t task) (result model.CheckResult) {
	defer func() {
		if r := recover(); r != nil {
			common.LogError(fmt.Errorf("%v", r), "Check panicked", common.Fields{"check": t.name})
			result = model.CheckResult{
				Score:    0.0,
				Comments: []string{fmt.Sprintf("An error occurred while running %s: %v", t.name, r)},
			}
		}
	}()
	return t.run(ctx)
}
