package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMetrics(t *testing.T) {
	m, err := InitMetrics()
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.NotPanics(t, func() {
		m.RecordPublishAttempt(context.Background(), "twitter", "published", 0.01)
		m.RecordSweep(context.Background(), 3, 2, 1)
		m.RecordCircuitBreakerState("twitter", "open")
	})
}

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordPublishAttempt(context.Background(), "twitter", "failed", 0)
		m.RecordSweep(context.Background(), 0, 0, 0)
		m.RecordCircuitBreakerState("x", "closed")
	})
}
