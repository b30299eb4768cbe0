package viewopt

import (
	"context"
	"fmt"
	"time"
)

// Run executes the main coverage loop: filter the live cloud, then
// optimize the camera pose over it. Failed cycles are retried from the top.
func Run(ctx context.Context, r *Robot) error {
	r.logger.Info("Starting coverage loop")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Shutting down")
			return nil
		case <-time.After(time.Duration(r.cfg.PollPeriodMs) * time.Millisecond):
		}

		if err := runCycle(ctx, r); err != nil {
			r.logger.Errorf("Cycle failed: %v", err)
			r.logger.Info("Retrying full cycle...")
			continue
		}

		r.state.CyclesProcessed++
		r.logger.Infof("Cycle %d completed", r.state.CyclesProcessed)
	}
}

// runCycle executes a single filter-then-optimize cycle.
func runCycle(ctx context.Context, r *Robot) error {
	r.resetState()

	steps := []struct {
		name string
		fn   func(context.Context, *Robot) error
	}{
		{"Filter", FilterOnce},
		{"OptimizeCoverage", OptimizeCoverage},
	}

	for _, step := range steps {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		r.logger.Infof("=== %s ===", step.name)
		if err := step.fn(ctx, r); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}

	return nil
}
