package publisher

import (
	"context"
	"math/rand"

	"github.com/maheshrc27/crosspost/internal/models"
)

const DefaultSuccessRate = 0.95

// SimulatedTransport stands in for the platform APIs: each attempt succeeds
// with probability successRate.
type SimulatedTransport struct {
	successRate float64
	draw        func() float64
}

func NewSimulatedTransport(successRate float64) *SimulatedTransport {
	if successRate < 0 || successRate > 1 {
		successRate = DefaultSuccessRate
	}
	return &SimulatedTransport{
		successRate: successRate,
		draw:        rand.Float64,
	}
}

func (t *SimulatedTransport) Attempt(ctx context.Context, post *models.Post, platform *models.Platform) bool {
	if ctx.Err() != nil {
		return false
	}
	return t.draw() < t.successRate
}
