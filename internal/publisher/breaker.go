package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/telemetry"
	"github.com/sony/gobreaker"
)

var errAttemptFailed = errors.New("publish attempt failed")

// BreakerTransport short-circuits attempts to a platform whose recent
// attempts have mostly failed. An open breaker counts as a failed attempt.
type BreakerTransport struct {
	next     Transport
	metrics  *telemetry.Metrics
	mu       sync.Mutex
	breakers map[int64]*gobreaker.CircuitBreaker
}

func NewBreakerTransport(next Transport, metrics *telemetry.Metrics) *BreakerTransport {
	return &BreakerTransport{
		next:     next,
		metrics:  metrics,
		breakers: make(map[int64]*gobreaker.CircuitBreaker),
	}
}

func (t *BreakerTransport) breaker(platform *models.Platform) *gobreaker.CircuitBreaker {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cb, ok := t.breakers[platform.ID]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        fmt.Sprintf("platform:%d:%s", platform.ID, platform.Type),
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.8
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			t.metrics.RecordCircuitBreakerState(name, to.String())
		},
	})
	t.breakers[platform.ID] = cb
	return cb
}

func (t *BreakerTransport) Attempt(ctx context.Context, post *models.Post, platform *models.Platform) bool {
	_, err := t.breaker(platform).Execute(func() (interface{}, error) {
		if !t.next.Attempt(ctx, post, platform) {
			return nil, errAttemptFailed
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		slog.Warn("skipping publish attempt, circuit open", "post_id", post.ID, "platform", platform.Name)
	}
	return err == nil
}
