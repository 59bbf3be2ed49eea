package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the instruments recorded by the publish pipeline. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	PublishAttempts     metric.Int64Counter
	PublishDuration     metric.Float64Histogram
	SweepRuns           metric.Int64Counter
	PostsProcessed      metric.Int64Counter
	PostErrors          metric.Int64Counter
	CircuitBreakerState metric.Int64Counter
}

func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("crosspost")

	publishAttempts, err := meter.Int64Counter(
		"publisher.attempts.total",
		metric.WithDescription("Publish attempts by platform type and outcome"),
	)
	if err != nil {
		return nil, err
	}

	publishDuration, err := meter.Float64Histogram(
		"publisher.attempt.duration",
		metric.WithDescription("Publish attempt duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	sweepRuns, err := meter.Int64Counter(
		"sweep.runs.total",
		metric.WithDescription("Scheduled post sweeps executed"),
	)
	if err != nil {
		return nil, err
	}

	postsProcessed, err := meter.Int64Counter(
		"sweep.posts.processed",
		metric.WithDescription("Due posts that completed processing"),
	)
	if err != nil {
		return nil, err
	}

	postErrors, err := meter.Int64Counter(
		"sweep.posts.errors",
		metric.WithDescription("Due posts abandoned because of an error"),
	)
	if err != nil {
		return nil, err
	}

	circuitBreakerState, err := meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state changes"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		PublishAttempts:     publishAttempts,
		PublishDuration:     publishDuration,
		SweepRuns:           sweepRuns,
		PostsProcessed:      postsProcessed,
		PostErrors:          postErrors,
		CircuitBreakerState: circuitBreakerState,
	}, nil
}

func (m *Metrics) RecordPublishAttempt(ctx context.Context, platformType, outcome string, seconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("platform.type", platformType),
		attribute.String("publish.outcome", outcome),
	)
	m.PublishAttempts.Add(ctx, 1, attrs)
	m.PublishDuration.Record(ctx, seconds, attrs)
}

func (m *Metrics) RecordSweep(ctx context.Context, due, processed, failed int) {
	if m == nil {
		return
	}
	m.SweepRuns.Add(ctx, 1, metric.WithAttributes(attribute.Int("sweep.due", due)))
	m.PostsProcessed.Add(ctx, int64(processed))
	m.PostErrors.Add(ctx, int64(failed))
}

func (m *Metrics) RecordCircuitBreakerState(name, state string) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("breaker", name),
		attribute.String("state", state),
	))
}
