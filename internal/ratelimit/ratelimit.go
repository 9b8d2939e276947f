// Package ratelimit provides a wrapper around golang.org/x/time/rate.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter wraps rate.Limiter with weight-aware waiting. Exchange endpoints
// consume a documented request weight against a per-minute budget, so one
// call may cost several tokens.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a new rate limiter.
// weightPerMinute specifies the total request weight allowed per minute.
func New(weightPerMinute int) *Limiter {
	// Convert weight per minute to rate per second
	rps := float64(weightPerMinute) / 60.0
	burst := weightPerMinute / 10 // Allow burst of 10% of the budget
	if burst < 1 {
		burst = 1
	}

	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Wait blocks until one unit of weight is available or the context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// WaitWeight blocks until weight units are available. Weights larger than
// the burst would never be satisfied, so they are clamped.
func (l *Limiter) WaitWeight(ctx context.Context, weight int) error {
	if weight < 1 {
		weight = 1
	}
	if b := l.limiter.Burst(); weight > b {
		weight = b
	}
	return l.limiter.WaitN(ctx, weight)
}

// Allow reports whether an event may happen now.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// Tokens returns the current number of available tokens.
func (l *Limiter) Tokens() float64 {
	return l.limiter.Tokens()
}

// SetLimit updates the weight budget.
func (l *Limiter) SetLimit(weightPerMinute int) {
	rps := float64(weightPerMinute) / 60.0
	l.limiter.SetLimit(rate.Limit(rps))
}
