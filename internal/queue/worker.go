package queue

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

func (q *Queue) HandleSweepTask(ctx context.Context, task *asynq.Task) error {
	report, err := q.sweeper.Run(ctx)
	if err != nil {
		return err
	}

	if report.Failed > 0 {
		slog.Warn("sweep finished with post errors",
			"run_id", report.RunID,
			"failed", report.Failed)
	}
	return nil
}

// ErrorHandler logs tasks that fail for good.
func ErrorHandler(ctx context.Context, task *asynq.Task, err error) {
	slog.Error("task failed", "type", task.Type(), "error", err)
}
