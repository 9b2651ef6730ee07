// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// DefaultRequestsPerMinute is the outbound ceiling used when none is configured.
const DefaultRequestsPerMinute = 100

// Limiter is a requests-per-minute gate shared by every caller that talks
// to a quota-limited service. Callers queue in Wait rather than burst.
// A nil *Limiter never blocks.
type Limiter struct {
	lim *rate.Limiter
}

// NewLimiter creates a limiter allowing rpm requests per minute. A
// non-positive rpm uses DefaultRequestsPerMinute.
func NewLimiter(rpm int) *Limiter {
	if rpm <= 0 {
		rpm = DefaultRequestsPerMinute
	}
	return &Limiter{lim: rate.NewLimiter(perMinute(rpm), 1)}
}

// SetRate changes the ceiling for all holders of this limiter. A
// non-positive rpm leaves the current rate unchanged.
func (l *Limiter) SetRate(rpm int) {
	if l == nil || rpm <= 0 {
		return
	}
	l.lim.SetLimit(perMinute(rpm))
}

// RequestsPerMinute returns the current ceiling.
func (l *Limiter) RequestsPerMinute() int {
	if l == nil {
		return 0
	}
	return int(float64(l.lim.Limit())*60 + 0.5)
}

// Wait blocks until one request may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return ctx.Err()
	}
	return l.lim.Wait(ctx)
}

// Client returns a copy of c whose every outbound request, retries
// included, first waits on l. A nil l returns c unchanged; a nil c wraps
// http.DefaultClient.
func (l *Limiter) Client(c *http.Client) *http.Client {
	if c == nil {
		c = http.DefaultClient
	}
	if l == nil {
		return c
	}
	base := c.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	limited := *c
	limited.Transport = &limitedTransport{lim: l, base: base}
	return &limited
}

type limitedTransport struct {
	lim  *Limiter
	base http.RoundTripper
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.lim.Wait(req.Context()); err != nil {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, err
	}
	return t.base.RoundTrip(req)
}

func perMinute(rpm int) rate.Limit {
	return rate.Every(time.Minute / time.Duration(rpm))
}
