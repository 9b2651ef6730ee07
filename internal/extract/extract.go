// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract finds the organisms a publication reports working with.
// Each publication goes through two tiers in strict order: a full-text tier
// that runs scientific-name detection over the complete article, and an
// abstract-only tier that asks an extraction oracle to read the title and
// abstract. The second tier runs only when the first is unavailable or
// finds nothing.
package extract

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pdiddy/orcid2taxid/internal/fulltext"
	"github.com/pdiddy/orcid2taxid/internal/httputil"
	"github.com/pdiddy/orcid2taxid/internal/logging"
	"github.com/pdiddy/orcid2taxid/internal/names"
	"github.com/pdiddy/orcid2taxid/internal/watchlist"
	"github.com/pdiddy/orcid2taxid/pkg/types"
)

// ErrExtraction marks an oracle failure: timeout, transport error or a
// malformed response.
var ErrExtraction = errors.New("extraction failed")

const defaultMaxRetries = 3

// Extractor runs the two-tier strategy for one publication at a time. It
// holds no per-publication state and is safe for concurrent use when its
// collaborators are.
type Extractor struct {
	// FullText supplies article text. Nil disables the full-text tier.
	FullText fulltext.Provider

	// Finder detects scientific names in full text. Nil disables the
	// full-text tier.
	Finder Finder

	// Oracle reads title and abstract. Nil makes the abstract tier fail.
	Oracle Oracle

	// Watchlist flags organisms of concern. Nil flags nothing.
	Watchlist *watchlist.Watchlist

	// Limiter paces oracle calls. It is shared with the taxonomy resolver.
	Limiter *httputil.Limiter

	// MaxRetries bounds oracle retries (default 3).
	MaxRetries int

	// OracleTimeout bounds a single oracle call. Zero means no limit
	// beyond the caller's context.
	OracleTimeout time.Duration

	// Backoff is the base delay between oracle retries, doubling each
	// attempt (default 1s).
	Backoff time.Duration
}

// Extract returns the organism list for r. Failures of either tier are
// recorded on the list rather than returned; the error is non-nil only
// when ctx is cancelled, in which case the list must be discarded.
func (e *Extractor) Extract(ctx context.Context, r types.PublicationRecord) (types.OrganismList, error) {
	log := logging.FromContext(ctx).With().Str("publication", r.Ref()).Logger()
	list := types.OrganismList{
		Publication: r.Ref(),
		Title:       r.Title,
		Date:        r.Date,
		Mentions:    []types.OrganismMention{},
		Status:      types.StatusOK,
	}

	if e.FullText != nil && e.Finder != nil && r.FullTextAvailable {
		list.Tiers = append(list.Tiers, types.MethodFullText)
		mentions, err := e.fullTextTier(ctx, r)
		if ctx.Err() != nil {
			return types.OrganismList{}, ctx.Err()
		}
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("full-text tier unavailable, falling back to abstract")
		case len(mentions) == 0:
			log.Info().Msg("full-text tier found no organisms, falling back to abstract")
		default:
			list.Mentions = mentions
			return list, nil
		}
	}

	list.Tiers = append(list.Tiers, types.MethodAbstractOnly)
	mentions, err := e.abstractTier(ctx, r)
	if ctx.Err() != nil {
		return types.OrganismList{}, ctx.Err()
	}
	if err != nil {
		log.Warn().Err(err).Msg("extraction failed")
		list.Status = types.StatusExtractionFailed
		list.Error = err.Error()
		return list, nil
	}
	list.Mentions = mentions
	return list, nil
}

// fullTextTier fetches the article, detects names and normalizes them.
func (e *Extractor) fullTextTier(ctx context.Context, r types.PublicationRecord) ([]types.OrganismMention, error) {
	text, err := e.FullText.FullText(ctx, r)
	if err != nil {
		return nil, err
	}
	found, err := e.Finder.Find(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("detecting names: %w", err)
	}

	// Genera spelled out anywhere in the text resolve "E. coli" style
	// abbreviations.
	var genera []string
	for _, f := range found {
		if g := names.Genus(f.Name); g != "" {
			genera = append(genera, g)
		}
	}

	seen := make(map[string]bool)
	var mentions []types.OrganismMention
	for _, f := range found {
		raw := f.Verbatim
		if raw == "" {
			raw = f.Name
		}
		searchable := names.Canonical(names.ExpandAbbreviation(f.Name, genera))
		key := names.Key(searchable)
		if key == "" || seen[key] {
			continue
		}
		_, listed := e.Watchlist.Match(searchable)
		// Bare genus names are too coarse unless the genus itself is listed.
		if f.Cardinality < 2 && !listed {
			continue
		}
		seen[key] = true
		mentions = append(mentions, types.OrganismMention{
			Name:           strings.TrimSpace(raw),
			SearchableName: searchable,
			Publication:    r.Ref(),
			Method:         types.MethodFullText,
			WorkType:       types.WorkUndetermined,
			Evidence:       snippet(text, f.Start, f.End),
			Confidence:     oddsConfidence(f.OddsLog10),
			Watchlisted:    listed,
		})
	}
	return mentions, nil
}

// abstractTier asks the oracle about the title and abstract.
func (e *Extractor) abstractTier(ctx context.Context, r types.PublicationRecord) ([]types.OrganismMention, error) {
	if e.Oracle == nil {
		return nil, fmt.Errorf("%w: no extraction oracle configured", ErrExtraction)
	}
	text := strings.TrimSpace(r.Title + "\n\n" + r.Abstract)
	if text == "" {
		return nil, fmt.Errorf("%w: publication has no title or abstract", ErrExtraction)
	}

	maxRetries := e.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	candidates, err := e.callWithRetry(ctx, text, maxRetries)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	mentions := []types.OrganismMention{}
	for _, c := range candidates {
		searchable := names.Canonical(c.SearchableName)
		if searchable == "" {
			searchable = names.Canonical(c.Name)
		}
		key := names.Key(searchable)
		if seen[key] {
			continue
		}
		seen[key] = true
		_, listed := e.Watchlist.Match(searchable)
		if !listed {
			_, listed = e.Watchlist.Match(c.Name)
		}
		mentions = append(mentions, types.OrganismMention{
			Name:           strings.TrimSpace(c.Name),
			SearchableName: searchable,
			Publication:    r.Ref(),
			Method:         types.MethodAbstractOnly,
			WorkType:       c.workType(),
			Evidence:       truncateRunes(strings.TrimSpace(c.Evidence), types.MaxEvidenceLen),
			Confidence:     c.Confidence,
			Watchlisted:    listed || c.OnList,
		})
	}
	return mentions, nil
}

// backoffBase is the default Backoff. Tests override this to avoid real
// sleeps.
var backoffBase = time.Second

// callWithRetry calls the oracle with exponential backoff. A response that
// fails validation counts as a failed attempt.
func (e *Extractor) callWithRetry(ctx context.Context, text string, maxRetries int) ([]Candidate, error) {
	watch := e.Watchlist.Names()
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			base := e.Backoff
			if base <= 0 {
				base = backoffBase
			}
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * base
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
		if err := e.Limiter.Wait(ctx); err != nil {
			return nil, err
		}

		candidates, err := e.callOnce(ctx, text, watch)
		if err == nil {
			if err = validate(candidates); err == nil {
				return candidates, nil
			}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logging.FromContext(ctx).Debug().Err(err).Int("attempt", attempt+1).Msg("oracle call failed")
		lastErr = err
	}
	return nil, fmt.Errorf("%w: after %d retries: %v", ErrExtraction, maxRetries, lastErr)
}

func (e *Extractor) callOnce(ctx context.Context, text string, watch []string) ([]Candidate, error) {
	if e.OracleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.OracleTimeout)
		defer cancel()
	}
	return e.Oracle.Extract(ctx, text, watch)
}

// validate checks every candidate: non-empty name, a known work type and
// confidence in [0,1].
func validate(candidates []Candidate) error {
	var problems []string
	for i, c := range candidates {
		if strings.TrimSpace(c.Name) == "" && strings.TrimSpace(c.SearchableName) == "" {
			problems = append(problems, fmt.Sprintf("candidate %d: empty name", i))
			continue
		}
		if c.workType() == "" {
			problems = append(problems, fmt.Sprintf("candidate %d: invalid work type %q", i, c.WorkType))
			continue
		}
		if c.Confidence < 0 || c.Confidence > 1 {
			problems = append(problems, fmt.Sprintf("candidate %d: confidence %f out of range [0,1]", i, c.Confidence))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid oracle response: %s", strings.Join(problems, "; "))
	}
	return nil
}

// oddsConfidence converts a log10 Bayes odds into a probability. Zero odds
// (no Bayes estimate) yields 0.5.
func oddsConfidence(oddsLog10 float64) float64 {
	odds := math.Pow(10, oddsLog10)
	return math.Round(odds/(1+odds)*1000) / 1000
}

// snippet returns the sentence-sized window of text around [start, end),
// bounded to MaxEvidenceLen runes. Offsets are in runes.
func snippet(text string, start, end int) string {
	rs := []rune(text)
	if start < 0 || end > len(rs) || start >= end {
		return ""
	}
	width := types.MaxEvidenceLen
	pad := (width - (end - start)) / 2
	if pad < 0 {
		pad = 0
	}
	from := max(0, start-pad)
	to := min(len(rs), from+width)
	return truncateRunes(strings.Join(strings.Fields(string(rs[from:to])), " "), width)
}

func truncateRunes(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n])
}
