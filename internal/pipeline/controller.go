package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Controller runs a task through the pipeline stages in order. A stage
// error aborts the run; later stages do not execute.
type Controller struct {
	stages []Stage
	logger *slog.Logger
}

// NewController builds a controller over the given stages, executed in
// the order supplied.
func NewController(logger *slog.Logger, stages ...Stage) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{stages: stages, logger: logger}
}

// Run executes all stages against a fresh state for the task. The
// state is returned even on failure so callers can inspect how far the
// run progressed.
func (c *Controller) Run(ctx context.Context, task string) (*State, error) {
	state := NewState(task)
	start := time.Now()

	for _, stage := range c.stages {
		if err := ctx.Err(); err != nil {
			return state, err
		}

		stageStart := time.Now()
		c.logger.Debug("stage starting", "stage", stage.Name())

		if err := stage.Execute(ctx, state); err != nil {
			c.logger.Error("stage failed",
				"stage", stage.Name(),
				"elapsed", time.Since(stageStart),
				"error", err)
			return state, fmt.Errorf("stage %s: %w", stage.Name(), err)
		}

		state.markStage(stage.Name(), time.Since(stageStart))
		c.logger.Debug("stage complete",
			"stage", stage.Name(),
			"elapsed", time.Since(stageStart))
	}

	state.Metadata["total_duration_ms"] = time.Since(start).Milliseconds()
	return state, nil
}
