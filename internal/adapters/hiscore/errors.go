package hiscore

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel kinds for lookup errors.
var (
	// ErrTransient marks failures worth retrying: timeouts, 5xx answers,
	// malformed payloads.
	ErrTransient = errors.New("transient hiscore failure")

	// ErrPermanent marks failures that will not heal on retry. The source's
	// contract never produces these today; reserved for malformed player
	// keys and unexpected 4xx answers.
	ErrPermanent = errors.New("permanent hiscore failure")

	// ErrRetriesExhausted is returned once the retry budget is spent.
	ErrRetriesExhausted = errors.New("hiscore retries exhausted")
)

// RateLimitError reports a 429 answer and the advisory cooldown.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("hiscore rate limited, retry after %s", e.RetryAfter)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
