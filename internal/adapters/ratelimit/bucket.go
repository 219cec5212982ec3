// Package ratelimit bounds the outbound request rate to the hiscore source.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/varrock/clogboard/pkg/metrics"
)

// TokenBucket admits at most burst requests instantly and refills at a
// fixed per-minute rate. Refill is computed lazily from elapsed wall-clock
// time on each Acquire; there is no background timer.
type TokenBucket struct {
	mu     sync.Mutex
	rate   float64 // tokens per second
	burst  int
	tokens int
	last   time.Time // refill watermark

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a full bucket admitting perMinute requests/minute with the
// given burst ceiling.
func New(perMinute, burst int, opts ...Option) *TokenBucket {
	if perMinute <= 0 {
		perMinute = 1
	}
	if burst <= 0 {
		burst = 1
	}
	b := &TokenBucket{
		rate:   float64(perMinute) / 60.0,
		burst:  burst,
		tokens: burst,
		now:    time.Now,
		sleep:  sleepContext,
	}

	for _, opt := range opts {
		opt(b)
	}

	b.last = b.now()
	return b
}

// Acquire consumes one token, suspending the caller until one is
// available or ctx is done. Access is serialized so concurrent callers
// never spend the same token twice.
func (b *TokenBucket) Acquire(ctx context.Context) error {
	for {
		b.mu.Lock()
		b.refill()
		if b.tokens >= 1 {
			b.tokens--
			b.mu.Unlock()
			return nil
		}
		// Time until the next token becomes available.
		wait := time.Duration(float64(time.Second) / b.rate)
		b.mu.Unlock()

		metrics.RecordRateLimitWait()
		if err := b.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Drain zeroes the bucket. Used when the source answers 429: locally
// accumulated budget is no longer trustworthy.
func (b *TokenBucket) Drain() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = 0
	b.last = b.now()
}

// Available reports the token count after a lazy refill.
func (b *TokenBucket) Available() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	return b.tokens
}

// refill credits floor(elapsed*rate) tokens up to the burst ceiling.
// Must be called with b.mu held. The watermark only advances by the time
// worth of whole tokens credited, so fractional progress is never lost.
func (b *TokenBucket) refill() {
	now := b.now()
	elapsed := now.Sub(b.last).Seconds()
	if elapsed <= 0 {
		return
	}
	credit := int(elapsed * b.rate)
	if credit <= 0 {
		return
	}
	b.tokens += credit
	if b.tokens >= b.burst {
		b.tokens = b.burst
		b.last = now
		return
	}
	b.last = b.last.Add(time.Duration(float64(credit) / b.rate * float64(time.Second)))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
