package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maheshrc27/crosspost/internal/lock"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/publisher"
	"github.com/maheshrc27/crosspost/internal/telemetry"
)

// Store is the persistence the sweep needs. GetPostStatus returns an empty
// status when the post no longer exists.
type Store interface {
	FindDuePosts(ctx context.Context, now time.Time) ([]*models.Post, error)
	GetAssociations(ctx context.Context, postID int64) ([]*models.PostPlatform, error)
	UpdateAssociationStatus(ctx context.Context, postID, platformID int64, status models.PlatformStatus) error
	UpdatePostStatus(ctx context.Context, postID int64, status models.PostStatus) error
	GetPostStatus(ctx context.Context, postID int64) (models.PostStatus, error)
}

type PostPublisher interface {
	Publish(ctx context.Context, post *models.Post, platform *models.Platform) publisher.Outcome
}

type AttemptRecorder interface {
	Create(ctx context.Context, attempt *models.PublishAttempt) (int64, error)
}

// StatusPolicy decides the post status once every platform has been tried.
type StatusPolicy string

const (
	// PolicyUnconditional marks the post published regardless of outcomes.
	PolicyUnconditional StatusPolicy = "unconditional"
	// PolicyRequireSuccess marks the post failed unless a platform accepted it.
	PolicyRequireSuccess StatusPolicy = "require-success"
)

func ParseStatusPolicy(s string) StatusPolicy {
	if StatusPolicy(s) == PolicyRequireSuccess {
		return PolicyRequireSuccess
	}
	return PolicyUnconditional
}

const (
	defaultConcurrency = 10
	defaultLockTTL     = 2 * time.Minute
)

// Options configures a sweep. The post lock is renewed to LockTTL before each
// platform attempt; LockTTL is raised to twice AttemptTimeout when it would
// not cover a single attempt.
type Options struct {
	Concurrency    int
	LockTTL        time.Duration
	AttemptTimeout time.Duration
	Policy         StatusPolicy
	Locker         lock.Locker
	Attempts       AttemptRecorder
	Metrics        *telemetry.Metrics
}

type PublishScheduledJob struct {
	store       Store
	publisher   PostPublisher
	attempts    AttemptRecorder
	locker      lock.Locker
	metrics     *telemetry.Metrics
	policy      StatusPolicy
	concurrency int
	lockTTL     time.Duration
	now         func() time.Time
}

func NewPublishScheduledJob(store Store, pub PostPublisher, opts Options) *PublishScheduledJob {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultLockTTL
	}
	if opts.LockTTL < 2*opts.AttemptTimeout {
		opts.LockTTL = 2 * opts.AttemptTimeout
	}
	if opts.Policy == "" {
		opts.Policy = PolicyUnconditional
	}
	return &PublishScheduledJob{
		store:       store,
		publisher:   pub,
		attempts:    opts.Attempts,
		locker:      opts.Locker,
		metrics:     opts.Metrics,
		policy:      opts.Policy,
		concurrency: opts.Concurrency,
		lockTTL:     opts.LockTTL,
		now:         time.Now,
	}
}

type Report struct {
	RunID     string
	Due       int
	Processed int
	Skipped   int
	Failed    int
	Errors    map[int64]error
}

// Run performs one sweep over the posts due at the current time. Errors while
// processing a single post are collected in the report; only a failure to
// select due posts is returned.
func (j *PublishScheduledJob) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:  uuid.NewString(),
		Errors: make(map[int64]error),
	}

	posts, err := j.store.FindDuePosts(ctx, j.now())
	if err != nil {
		slog.Error("unable to load due posts", "run_id", report.RunID, "error", err)
		return report, fmt.Errorf("find due posts: %w", err)
	}
	report.Due = len(posts)

	if len(posts) == 0 {
		slog.Info("no scheduled posts due for publishing", "run_id", report.RunID)
		j.metrics.RecordSweep(ctx, 0, 0, 0)
		return report, nil
	}

	slog.Info("processing scheduled posts", "run_id", report.RunID, "count", len(posts))

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	semaphore := make(chan struct{}, j.concurrency)

	for _, post := range posts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(post *models.Post) {
			defer wg.Done()
			defer func() { <-semaphore }()

			processed, err := j.processPost(ctx, report.RunID, post)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.Failed++
				report.Errors[post.ID] = err
				slog.Error("error publishing post", "run_id", report.RunID, "post_id", post.ID, "error", err)
			case processed:
				report.Processed++
			default:
				report.Skipped++
			}
		}(post)
	}
	wg.Wait()

	j.metrics.RecordSweep(ctx, report.Due, report.Processed, report.Failed)
	slog.Info("finished scheduled post sweep",
		"run_id", report.RunID,
		"due", report.Due,
		"processed", report.Processed,
		"skipped", report.Skipped,
		"failed", report.Failed)

	return report, nil
}

func (j *PublishScheduledJob) processPost(ctx context.Context, runID string, post *models.Post) (processed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			processed = false
			err = fmt.Errorf("panic while processing post %d: %v", post.ID, r)
		}
	}()

	var lease lock.Lease
	if j.locker != nil {
		var ok bool
		lease, ok, err = j.locker.TryLock(ctx, fmt.Sprintf("post:%d", post.ID), j.lockTTL)
		if err != nil {
			return false, fmt.Errorf("acquire post lock: %w", err)
		}
		if !ok {
			slog.Info("post is locked by another sweep, skipping", "run_id", runID, "post_id", post.ID)
			return false, nil
		}
		defer lease.Release()
	}

	status, err := j.store.GetPostStatus(ctx, post.ID)
	if err != nil {
		return false, fmt.Errorf("reload post status: %w", err)
	}
	if status != models.PostStatusScheduled {
		slog.Info("post is no longer scheduled, skipping", "run_id", runID, "post_id", post.ID, "status", status)
		return false, nil
	}

	associations, err := j.store.GetAssociations(ctx, post.ID)
	if err != nil {
		return false, fmt.Errorf("load platforms: %w", err)
	}

	published := 0
	for _, assoc := range associations {
		if assoc.Platform == nil {
			return false, fmt.Errorf("platform %d not loaded for post %d", assoc.PlatformID, post.ID)
		}

		// Left over from an interrupted sweep; never publish twice.
		if assoc.PlatformStatus == models.PlatformStatusPublished {
			published++
			continue
		}

		if lease != nil {
			if err := lease.Extend(ctx, j.lockTTL); err != nil {
				return false, fmt.Errorf("renew post lock before platform %d: %w", assoc.PlatformID, err)
			}
		}

		outcome := j.publisher.Publish(ctx, post, assoc.Platform)

		platformStatus := models.PlatformStatusFailed
		if outcome.OK() {
			platformStatus = models.PlatformStatusPublished
			published++
		}

		if err := j.store.UpdateAssociationStatus(ctx, post.ID, assoc.PlatformID, platformStatus); err != nil {
			return false, fmt.Errorf("update status for platform %d: %w", assoc.PlatformID, err)
		}

		j.recordAttempt(ctx, runID, post.ID, assoc.PlatformID, outcome)
	}

	postStatus := j.finalStatus(published)
	if err := j.store.UpdatePostStatus(ctx, post.ID, postStatus); err != nil {
		return false, fmt.Errorf("update post status: %w", err)
	}

	slog.Info("processed scheduled post",
		"run_id", runID,
		"post_id", post.ID,
		"title", post.Title,
		"status", postStatus,
		"platforms", len(associations),
		"published", published)

	return true, nil
}

func (j *PublishScheduledJob) finalStatus(published int) models.PostStatus {
	if j.policy == PolicyRequireSuccess && published == 0 {
		return models.PostStatusFailed
	}
	return models.PostStatusPublished
}

func (j *PublishScheduledJob) recordAttempt(ctx context.Context, runID string, postID, platformID int64, outcome publisher.Outcome) {
	if j.attempts == nil {
		return
	}
	attempt := &models.PublishAttempt{
		PostID:     postID,
		PlatformID: platformID,
		RunID:      runID,
		Outcome:    string(outcome),
		Message:    describeOutcome(outcome),
	}
	if _, err := j.attempts.Create(ctx, attempt); err != nil {
		slog.Error("unable to record publish attempt", "post_id", postID, "platform_id", platformID, "error", err)
	}
}

func describeOutcome(o publisher.Outcome) string {
	switch o {
	case publisher.OutcomePublished:
		return ""
	case publisher.OutcomeValidationFailed:
		return "content does not meet platform requirements"
	case publisher.OutcomeTimeout:
		return "platform did not respond in time"
	default:
		return "platform rejected the post"
	}
}
