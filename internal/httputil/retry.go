// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across stages.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/orcid2taxid/internal/logging"
)

// RetryBaseDelay controls the base duration for exponential backoff.
// Tests override this to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

const defaultMaxRetries = 3

// MaxRetryAfter caps how long a server's Retry-After can stall a retry.
var MaxRetryAfter = 2 * time.Minute

// ErrRetriesExhausted is returned when every attempt failed with a
// transport error.
var ErrRetriesExhausted = errors.New("retries exhausted")

// Retryable reports whether a response status is worth retrying:
// HTTP 429 and any 5xx.
func Retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// DoWithRetry executes an HTTP request and retries transient failures with
// exponential backoff. Transient means a transport error, HTTP 429, or a
// 5xx status. The delay starts at RetryBaseDelay and doubles each attempt;
// a longer Retry-After on a 429 or 503 response takes precedence, up to
// MaxRetryAfter.
//
// When maxRetries is 0 the default (3) is used. Before each retry the
// response body is drained and closed. If the context is cancelled during
// a backoff wait the function returns ctx.Err(). After exhausting retries
// the last retryable response is returned so the caller can inspect it;
// if the last attempt failed at the transport level the error wraps
// ErrRetriesExhausted.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if client == nil {
		client = http.DefaultClient
	}
	log := logging.FromContext(ctx)

	for attempt := 0; ; attempt++ {
		var serverDelay time.Duration
		attemptReq := req.Clone(ctx)
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewinding request body: %w", err)
			}
			attemptReq.Body = body
		}
		resp, err := client.Do(attemptReq)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if attempt >= maxRetries {
				return nil, fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, attempt+1, err)
			}
		} else {
			if !Retryable(resp.StatusCode) || attempt >= maxRetries {
				return resp, nil
			}
			serverDelay = retryAfter(resp, time.Now())
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		backoff := time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
		if serverDelay > backoff {
			backoff = serverDelay
		}
		log.Debug().
			Str("url", req.URL.Redacted()).
			Dur("backoff", backoff).
			Int("attempt", attempt+1).
			Int("max_retries", maxRetries).
			Msg("transient HTTP failure, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// retryAfter reads the Retry-After header of a 429 or 503 response, in
// either delta-seconds or HTTP-date form. It returns 0 when absent or
// unparseable.
func retryAfter(resp *http.Response, now time.Time) time.Duration {
	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusServiceUnavailable {
		return 0
	}
	v := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if v == "" {
		return 0
	}
	var d time.Duration
	if secs, err := strconv.Atoi(v); err == nil {
		d = time.Duration(secs) * time.Second
	} else if t, err := http.ParseTime(v); err == nil {
		d = t.Sub(now)
	}
	if d < 0 {
		return 0
	}
	return min(d, MaxRetryAfter)
}
