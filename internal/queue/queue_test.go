package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	job "github.com/maheshrc27/crosspost/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	if f.err != nil {
		return nil, f.err
	}
	return &asynq.TaskInfo{ID: "task-1", Type: task.Type()}, nil
}

type fakeSweeper struct {
	runs   int
	report *job.Report
	err    error
}

func (f *fakeSweeper) Run(ctx context.Context) (*job.Report, error) {
	f.runs++
	return f.report, f.err
}

func TestNewSweepTask_PayloadIsConstant(t *testing.T) {
	first := NewSweepTask(time.Minute)
	second := NewSweepTask(time.Minute)

	assert.Equal(t, TaskTypeSweepScheduledPosts, first.Type())
	assert.Equal(t, first.Payload(), second.Payload())
}

func TestEnqueueSweep(t *testing.T) {
	tests := []struct {
		name         string
		enqueueErr   error
		wantEnqueued bool
		wantErr      bool
	}{
		{name: "enqueued", wantEnqueued: true},
		{name: "already pending", enqueueErr: asynq.ErrDuplicateTask},
		{name: "redis down", enqueueErr: errors.New("dial tcp: connection refused"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enqueuer := &fakeEnqueuer{err: tt.enqueueErr}

			enqueued, err := EnqueueSweep(context.Background(), enqueuer, "test", time.Minute)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantEnqueued, enqueued)
			require.Len(t, enqueuer.tasks, 1)
			assert.Equal(t, TaskTypeSweepScheduledPosts, enqueuer.tasks[0].Type())
		})
	}
}

func TestEnqueueSweep_CollapsesPendingTriggers(t *testing.T) {
	mr := miniredis.RunT(t)
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()

	enqueued, err := EnqueueSweep(ctx, client, "cron", time.Minute)
	require.NoError(t, err)
	assert.True(t, enqueued)

	enqueued, err = EnqueueSweep(ctx, client, "cli", time.Minute)
	require.NoError(t, err)
	assert.False(t, enqueued, "a second trigger while a sweep is pending must not queue another")

	mr.FastForward(2 * time.Minute)

	enqueued, err = EnqueueSweep(ctx, client, "cron", time.Minute)
	require.NoError(t, err)
	assert.True(t, enqueued, "the key expires with the timeout")
}

func TestHandleSweepTask(t *testing.T) {
	sweeper := &fakeSweeper{report: &job.Report{RunID: "r", Due: 2, Processed: 1, Failed: 1}}
	q := NewQueue(sweeper)

	require.NoError(t, q.HandleSweepTask(context.Background(), NewSweepTask(time.Minute)))
	assert.Equal(t, 1, sweeper.runs)
}

func TestHandleSweepTask_SelectionError(t *testing.T) {
	sweeper := &fakeSweeper{report: &job.Report{}, err: errors.New("find due posts: timeout")}
	q := NewQueue(sweeper)

	assert.Error(t, q.HandleSweepTask(context.Background(), NewSweepTask(time.Minute)))
	assert.Equal(t, 1, sweeper.runs)
}

func TestDispatcher(t *testing.T) {
	_, err := NewDispatcher(&fakeEnqueuer{}, "every now and then", time.Minute)
	assert.Error(t, err)

	enqueuer := &fakeEnqueuer{}
	d, err := NewDispatcher(enqueuer, "@every 1m", time.Minute)
	require.NoError(t, err)

	d.Dispatch()
	d.Dispatch()
	assert.Len(t, enqueuer.tasks, 2)
}
