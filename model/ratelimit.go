package model

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited throttles Generate calls of a wrapped Model with a token
// bucket shared by all callers.
type RateLimited struct {
	next    Model
	limiter *rate.Limiter
}

// NewRateLimited allows perSecond calls per second with the given burst.
// A burst below 1 is raised to 1.
func NewRateLimited(next Model, perSecond float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Generate waits for a token, then delegates. Waiting honors ctx.
func (m *RateLimited) Generate(ctx context.Context, req Request) (Response, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return Response{}, fmt.Errorf("rate limit: %w", err)
	}
	return m.next.Generate(ctx, req)
}

// Info implements Model.
func (m *RateLimited) Info() Info { return m.next.Info() }
