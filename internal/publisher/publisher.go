package publisher

import (
	"context"
	"log/slog"
	"time"

	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/telemetry"
	"github.com/maheshrc27/crosspost/internal/validation"
)

const DefaultTimeout = 10 * time.Second

// Transport makes one publish attempt against a platform and reports whether
// it succeeded. Implementations must not retry.
type Transport interface {
	Attempt(ctx context.Context, post *models.Post, platform *models.Platform) bool
}

type TransportFunc func(ctx context.Context, post *models.Post, platform *models.Platform) bool

func (f TransportFunc) Attempt(ctx context.Context, post *models.Post, platform *models.Platform) bool {
	return f(ctx, post, platform)
}

type Outcome string

const (
	OutcomePublished        Outcome = "published"
	OutcomeValidationFailed Outcome = "validation_failed"
	OutcomeRejected         Outcome = "rejected"
	OutcomeTimeout          Outcome = "timeout"
)

func (o Outcome) OK() bool {
	return o == OutcomePublished
}

type Publisher struct {
	transport Transport
	timeout   time.Duration
	metrics   *telemetry.Metrics
}

func NewPublisher(transport Transport, timeout time.Duration, metrics *telemetry.Metrics) *Publisher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Publisher{
		transport: transport,
		timeout:   timeout,
		metrics:   metrics,
	}
}

// Publish validates post against the platform rules and, if it passes, makes
// a single attempt through the transport.
func (p *Publisher) Publish(ctx context.Context, post *models.Post, platform *models.Platform) Outcome {
	start := time.Now()
	outcome := p.publish(ctx, post, platform)
	p.metrics.RecordPublishAttempt(ctx, string(validation.ParseType(platform.Type)), string(outcome), time.Since(start).Seconds())
	return outcome
}

func (p *Publisher) publish(ctx context.Context, post *models.Post, platform *models.Platform) Outcome {
	slog.Info("attempting to publish post",
		"post_id", post.ID, "platform", platform.Name, "platform_type", platform.Type)

	if err := validation.Check(post.Content, post.HasImage(), platform.Type); err != nil {
		slog.Warn("post failed platform validation",
			"post_id", post.ID, "platform_type", platform.Type, "error", err)
		return OutcomeValidationFailed
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	result := make(chan bool, 1)
	go func() {
		result <- p.transport.Attempt(ctx, post, platform)
	}()

	select {
	case ok := <-result:
		if !ok {
			slog.Error("failed to publish post", "post_id", post.ID, "platform", platform.Name)
			return OutcomeRejected
		}
		slog.Info("published post", "post_id", post.ID, "platform", platform.Name)
		return OutcomePublished
	case <-ctx.Done():
		slog.Error("publish attempt timed out",
			"post_id", post.ID, "platform", platform.Name, "timeout", p.timeout)
		return OutcomeTimeout
	}
}
