// Package ratelimit implements a fixed-window request counter keyed by an
// arbitrary string (network address, account identifier, ...).
//
// It is a best-effort throttle for credential guessing, not a precise
// quota system: a race around window rollover letting an extra attempt
// through is acceptable.
package ratelimit

import (
	"context"
	"time"
)

type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Store is the counter backend. The in-process MemoryStore suffices for a
// single instance; multi-instance deployments plug in RedisStore so all
// instances share one window per key.
type Store interface {
	// Increment bumps the counter for key, starting a fresh window of the
	// given duration when none is active, and returns the attempt count
	// within the current window together with the window end.
	Increment(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)
}

type Limiter struct {
	store Store
}

func New(store Store) *Limiter {
	return &Limiter{store: store}
}

// Check records one attempt for key and reports whether it is within the
// allowed budget for the current window.
func (l *Limiter) Check(ctx context.Context, key string, window time.Duration, maxAttempts int) (Result, error) {
	count, resetAt, err := l.store.Increment(ctx, key, window)
	if err != nil {
		return Result{}, err
	}

	if count > int64(maxAttempts) {
		return Result{
			Allowed:   false,
			Remaining: 0,
			ResetAt:   resetAt,
		}, nil
	}

	return Result{
		Allowed:   true,
		Remaining: maxAttempts - int(count),
		ResetAt:   resetAt,
	}, nil
}
