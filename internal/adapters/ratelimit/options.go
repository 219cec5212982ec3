package ratelimit

import (
	"context"
	"time"
)

// Option applies a configuration option to the TokenBucket.
type Option func(*TokenBucket)

// WithClock replaces the wall-clock source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(b *TokenBucket) {
		if now != nil {
			b.now = now
		}
	}
}

// WithSleep replaces the suspension primitive. Intended for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(b *TokenBucket) {
		if sleep != nil {
			b.sleep = sleep
		}
	}
}
