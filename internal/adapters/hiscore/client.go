// Package hiscore fetches collection log totals from the OSRS hiscores API.
//
// The package layers three concerns: a plain HTTP client (Client), a
// short-TTL memo of successful lookups (Cache), and a Fetcher that
// serializes all lookups behind one consumer so admission control and
// retry policy apply no matter how many callers fan in.
package hiscore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/varrock/clogboard/internal/domain/score"
)

// collectionLogActivityID identifies the "Collections Logged" entry in the
// activities list of the hiscore payload.
const collectionLogActivityID = 18

// defaultRetryAfter is assumed when a 429 carries no usable Retry-After.
const defaultRetryAfter = 60 * time.Second

const maxBodyBytes = 1 << 20

// Client issues single hiscore lookups.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client for the given lookup endpoint. The player name
// is appended to baseURL as-is (the endpoint ends in "?player=").
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type activity struct {
	ID    int `json:"id"`
	Score int `json:"score"`
	Rank  int `json:"rank"`
}

type hiscorePayload struct {
	Activities []activity `json:"activities"`
}

// Lookup fetches the collection log total for one player. A payload without
// the collection log activity is not an error: the player has no measurable
// total and the below-floor sentinel is returned.
func (c *Client) Lookup(ctx context.Context, player string) (score.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+url.QueryEscape(player), nil)
	if err != nil {
		return score.Result{}, fmt.Errorf("%w: build request: %v", ErrPermanent, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts and connection failures are worth retrying.
		return score.Result{}, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// Parsed below.
	case resp.StatusCode == http.StatusTooManyRequests:
		return score.Result{}, &RateLimitError{RetryAfter: retryAfter(resp)}
	case resp.StatusCode >= http.StatusInternalServerError:
		return score.Result{}, fmt.Errorf("%w: status %d", ErrTransient, resp.StatusCode)
	default:
		return score.Result{}, fmt.Errorf("%w: status %d", ErrPermanent, resp.StatusCode)
	}

	var payload hiscorePayload
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&payload); err != nil {
		return score.Result{}, fmt.Errorf("%w: decode payload: %v", ErrTransient, err)
	}

	for _, a := range payload.Activities {
		if a.ID == collectionLogActivityID {
			return score.Result{Total: score.FromRaw(a.Score), SourceRank: a.Rank}, nil
		}
	}

	// No collection log entry: below the visibility floor.
	return score.Result{Total: score.BelowFloor(), SourceRank: -1}, nil
}

// retryAfter reads the advisory cooldown from a 429 answer.
func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return defaultRetryAfter
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return defaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}
