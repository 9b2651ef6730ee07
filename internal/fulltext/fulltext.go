// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fulltext obtains the plain text of a publication from open-access
// repositories. Providers are tried in order; when none can deliver text the
// caller receives ErrTextUnavailable and falls back to title and abstract.
package fulltext

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/orcid2taxid/internal/httputil"
	"github.com/pdiddy/orcid2taxid/internal/logging"
	"github.com/pdiddy/orcid2taxid/pkg/types"
)

// ErrTextUnavailable is returned when no provider can supply full text.
var ErrTextUnavailable = errors.New("full text unavailable")

// defaultMaxBytes caps a downloaded document (50 MiB).
const defaultMaxBytes = 50 << 20

// Provider returns the plain text of one publication.
type Provider interface {
	Name() string
	FullText(ctx context.Context, r types.PublicationRecord) (string, error)
}

// Chain tries each provider in order and returns the first non-empty text.
type Chain []Provider

// Name returns "chain".
func (c Chain) Name() string { return "chain" }

// FullText returns the first successful provider's text. Provider
// failures are collected into a single error wrapping ErrTextUnavailable;
// cancellation is returned as-is.
func (c Chain) FullText(ctx context.Context, r types.PublicationRecord) (string, error) {
	log := logging.FromContext(ctx)
	var reasons []string
	for _, p := range c {
		text, err := p.FullText(ctx, r)
		if err == nil && strings.TrimSpace(text) != "" {
			log.Debug().Str("provider", p.Name()).Str("publication", r.Ref()).Int("chars", len(text)).Msg("full text obtained")
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if err == nil {
			err = errors.New("empty document")
		}
		reasons = append(reasons, p.Name()+": "+err.Error())
	}
	if len(reasons) == 0 {
		return "", ErrTextUnavailable
	}
	return "", fmt.Errorf("%w: %s", ErrTextUnavailable, strings.Join(reasons, "; "))
}

// download fetches url and returns at most maxBytes of the body. A 404
// response, an oversized body or exceeding cfg.Timeout maps to
// ErrTextUnavailable.
func download(parent context.Context, client *http.Client, url, accept string, cfg types.HTTPConfig, maxBytes int64) ([]byte, error) {
	ctx := parent
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, cfg.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "orcid2taxid/0.1"
	}
	req.Header.Set("User-Agent", ua)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, cfg.MaxRetries)
	if err != nil {
		if parent.Err() != nil {
			return nil, parent.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrTextUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d from %s", ErrTextUnavailable, resp.StatusCode, url)
	}

	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		if parent.Err() != nil {
			return nil, parent.Err()
		}
		return nil, fmt.Errorf("%w: reading %s: %v", ErrTextUnavailable, url, err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: document exceeds %d bytes", ErrTextUnavailable, maxBytes)
	}
	return data, nil
}
