package hiscore

import (
	"net/http"
	"time"

	"github.com/varrock/clogboard/pkg/logger"
)

// ClientOption applies a configuration option to the Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds a single lookup.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// CacheOption applies a configuration option to the Cache.
type CacheOption func(*Cache)

// WithCacheClock replaces the wall-clock source. Intended for tests.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// Option applies a configuration option to the Fetcher.
type Option func(*Fetcher)

// WithCache sets the result cache.
func WithCache(cache *Cache) Option {
	return func(f *Fetcher) {
		if cache != nil {
			f.cache = cache
		}
	}
}

// WithQueueSize bounds the pending lookup queue.
func WithQueueSize(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.queueSize = n
		}
	}
}

// WithMaxRetries caps retry attempts after a transient failure.
func WithMaxRetries(n int) Option {
	return func(f *Fetcher) {
		if n >= 0 {
			f.maxRetries = n
		}
	}
}

// WithBackoffInitialInterval sets the first retry delay. Intended for tests;
// production keeps the 2s default so delays run 2s, 4s, ...
func WithBackoffInitialInterval(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.backoffInitial = d
		}
	}
}

// WithLogger sets a custom logger for the Fetcher.
func WithLogger(log logger.Logger) Option {
	return func(f *Fetcher) {
		if log != nil {
			f.log = log
		}
	}
}
