package hiscore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/varrock/clogboard/internal/domain/score"
	"github.com/varrock/clogboard/pkg/logger"
	"github.com/varrock/clogboard/pkg/metrics"
)

// Default fetcher configuration constants.
const (
	defaultQueueSize      = 64
	defaultMaxRetries     = 2
	defaultBackoffInitial = 2 * time.Second
)

// LookupClient issues one hiscore lookup.
type LookupClient interface {
	Lookup(ctx context.Context, player string) (score.Result, error)
}

// TokenSource admits outbound requests.
type TokenSource interface {
	Acquire(ctx context.Context) error
	Drain()
}

// Fetcher funnels all lookups through a bounded queue drained by a single
// consumer, so token admission and retry policy are applied centrally no
// matter how many callers fan in.
type Fetcher struct {
	client LookupClient
	bucket TokenSource
	cache  *Cache

	queueSize      int
	maxRetries     int
	backoffInitial time.Duration

	requests chan request
	log      logger.Logger
}

type request struct {
	player string
	reply  chan outcome
}

type outcome struct {
	result score.Result
	err    error
}

// NewFetcher creates a Fetcher; call Start before GetOrFetch.
func NewFetcher(client LookupClient, bucket TokenSource, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:         client,
		bucket:         bucket,
		queueSize:      defaultQueueSize,
		maxRetries:     defaultMaxRetries,
		backoffInitial: defaultBackoffInitial,
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.cache == nil {
		f.cache = NewCache(defaultCacheTTL)
	}
	if f.log == nil {
		f.log = logger.Get().Named("hiscore")
	}
	f.requests = make(chan request, f.queueSize)

	return f
}

// Start runs the consumer loop until ctx is canceled.
func (f *Fetcher) Start(ctx context.Context) {
	go f.consume(ctx)
}

// GetOrFetch returns the collection log result for player, serving from the
// cache unless bypass is set or the entry expired. Only successful results
// are cached.
func (f *Fetcher) GetOrFetch(ctx context.Context, player string, bypass bool) (score.Result, error) {
	if !bypass {
		if r, ok := f.cache.Get(player); ok {
			metrics.RecordCacheHit()
			f.log.Debug(ctx, "cache hit", logger.String("player", player))
			return r, nil
		}
	}
	metrics.RecordCacheMiss()

	req := request{player: player, reply: make(chan outcome, 1)}
	select {
	case <-ctx.Done():
		return score.Result{}, ctx.Err()
	case f.requests <- req:
	}

	select {
	case <-ctx.Done():
		return score.Result{}, ctx.Err()
	case out := <-req.reply:
		return out.result, out.err
	}
}

func (f *Fetcher) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-f.requests:
			out := f.fetchWithRetry(ctx, req.player)
			if out.err == nil {
				f.cache.Put(req.player, out.result)
			}
			// Reply channel is buffered; an abandoned caller never blocks us.
			req.reply <- out
		}
	}
}

// fetchWithRetry performs one lookup with token admission, exponential
// backoff on transient failures (2s, 4s, ...), and cooperative cooldown on
// 429 answers (advisory wait +1s, bucket drained).
func (f *Fetcher) fetchWithRetry(ctx context.Context, player string) outcome {
	operation := func() (score.Result, error) {
		if err := f.bucket.Acquire(ctx); err != nil {
			return score.Result{}, backoff.Permanent(err)
		}

		metrics.RecordFetch()
		start := time.Now()
		res, err := f.client.Lookup(ctx, player)
		metrics.RecordFetchLatency(time.Since(start).Seconds())
		if err == nil {
			return res, nil
		}

		var rl *RateLimitError
		switch {
		case errors.As(err, &rl):
			metrics.RecordFetchError("rate_limited")
			metrics.RecordRateLimitCooldown()
			f.bucket.Drain()
			f.log.Warn(ctx, "rate limited by hiscore source",
				logger.String("player", player),
				logger.Duration("retry_after", rl.RetryAfter),
			)
			return score.Result{}, backoff.RetryAfter(int(rl.RetryAfter.Seconds()) + 1)
		case IsTransient(err):
			metrics.RecordFetchError("transient")
			metrics.RecordFetchRetry()
			f.log.Debug(ctx, "transient lookup failure",
				logger.String("player", player), logger.Error(err))
			return score.Result{}, err
		default:
			metrics.RecordFetchError("permanent")
			return score.Result{}, backoff.Permanent(err)
		}
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = f.backoffInitial
	policy.RandomizationFactor = 0
	policy.Multiplier = 2

	res, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(f.maxRetries+1)),
	)
	if err != nil {
		if IsTransient(err) {
			err = fmt.Errorf("%w: %v", ErrRetriesExhausted, err)
		}
		return outcome{err: err}
	}
	return outcome{result: res}
}
