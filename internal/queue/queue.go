package queue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// NewSweepTask builds a sweep task. The payload is always empty: asynq derives
// the uniqueness key from queue, type and payload, so every trigger maps to
// the same key and at most one sweep is pending within timeout. Sweeps are
// never retried.
func NewSweepTask(timeout time.Duration) *asynq.Task {
	return asynq.NewTask(
		TaskTypeSweepScheduledPosts,
		nil,
		asynq.MaxRetry(0),
		asynq.Timeout(timeout),
		asynq.Unique(timeout),
		asynq.Queue("default"),
	)
}

// EnqueueSweep asks the worker to run a sweep. It reports false without an
// error when a sweep is already pending. source is only logged.
func EnqueueSweep(ctx context.Context, enqueuer Enqueuer, source string, timeout time.Duration) (bool, error) {
	info, err := enqueuer.EnqueueContext(ctx, NewSweepTask(timeout))
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			slog.Info("sweep already pending", "source", source)
			return false, nil
		}
		slog.Error("unable to enqueue sweep", "source", source, "error", err)
		return false, err
	}

	slog.Info("sweep enqueued", "source", source, "task_id", info.ID)
	return true, nil
}
