package queue

import (
	"context"

	job "github.com/maheshrc27/crosspost/internal/jobs"
)

// Sweeper runs one pass over the posts that are due.
type Sweeper interface {
	Run(ctx context.Context) (*job.Report, error)
}

type Queue struct {
	sweeper Sweeper
}

func NewQueue(sweeper Sweeper) *Queue {
	return &Queue{sweeper: sweeper}
}

const TaskTypeSweepScheduledPosts = "posts:publish-scheduled"
