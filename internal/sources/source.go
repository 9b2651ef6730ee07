// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sources fetches a researcher's publication records from
// literature catalogs. Each catalog is an Adapter; FetchAll queries them
// concurrently and keeps a failed adapter from contributing anything.
package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/pdiddy/orcid2taxid/internal/httputil"
	"github.com/pdiddy/orcid2taxid/internal/logging"
	"github.com/pdiddy/orcid2taxid/pkg/types"
)

var (
	// ErrSourceUnavailable marks an adapter that could not complete its
	// fetch. It is never fatal on its own.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrNotFound is returned when the registry has no such researcher.
	ErrNotFound = errors.New("researcher not found")
)

const defaultUserAgent = "orcid2taxid/0.1 (+https://github.com/pdiddy/orcid2taxid)"

// Adapter fetches publication records from a single catalog. Fetch has no
// side effects beyond the remote query and may be called again to restart.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, q Query) ([]types.PublicationRecord, error)
}

// IdentityFetcher resolves a researcher identifier to the registry's
// view of that researcher.
type IdentityFetcher interface {
	FetchIdentity(ctx context.Context, orcid string) (types.ResearcherIdentity, error)
}

// Query holds the fetch constraints shared by every adapter.
type Query struct {
	// ORCID is the researcher identifier.
	ORCID string

	// Name is the researcher's display name, used by catalogs that cannot
	// search by identifier.
	Name string

	// MaxResults caps the records returned by one adapter.
	MaxResults int

	DateFrom time.Time
	DateTo   time.Time
}

// limit returns q.MaxResults bounded to [1, max], using def when unset.
func (q Query) limit(def, max int) int {
	n := q.MaxResults
	if n <= 0 {
		n = def
	}
	if n > max {
		n = max
	}
	return n
}

// inRange reports whether t satisfies the date constraints. Undated
// records pass.
func (q Query) inRange(t time.Time) bool {
	if t.IsZero() {
		return true
	}
	if !q.DateFrom.IsZero() && t.Before(q.DateFrom) {
		return false
	}
	if !q.DateTo.IsZero() && t.After(q.DateTo) {
		return false
	}
	return true
}

// SourceError records one adapter's failure.
type SourceError struct {
	Source string
	Err    error
}

func (e SourceError) Error() string { return e.Source + ": " + e.Err.Error() }

func (e SourceError) Unwrap() error { return e.Err }

// FetchOutput holds the combined records of all successful adapters.
type FetchOutput struct {
	Records []types.PublicationRecord
	Errors  []SourceError
}

// AllFailed reports whether no adapter succeeded.
func (o FetchOutput) AllFailed(adapters int) bool {
	return adapters > 0 && len(o.Errors) >= adapters
}

// FetchAll fans the query out to every adapter concurrently. Each adapter
// runs under its own timeout; an adapter that errors contributes no
// records and is reported in Errors wrapped with ErrSourceUnavailable.
// Records are returned grouped in adapter order.
func FetchAll(ctx context.Context, adapters []Adapter, q Query, cfg types.SourceConfig) FetchOutput {
	type adapterResult struct {
		records []types.PublicationRecord
		err     error
	}

	results := make([]adapterResult, len(adapters))
	var wg sync.WaitGroup

	for i, a := range adapters {
		wg.Add(1)
		go func(i int, a Adapter) {
			defer wg.Done()
			actx := ctx
			if cfg.Timeout > 0 {
				var cancel context.CancelFunc
				actx, cancel = context.WithTimeout(ctx, cfg.Timeout)
				defer cancel()
			}
			records, err := a.Fetch(actx, q)
			results[i] = adapterResult{records: records, err: err}
		}(i, a)
	}
	wg.Wait()

	log := logging.FromContext(ctx)
	var out FetchOutput
	for i, r := range results {
		name := adapters[i].Name()
		if r.err != nil {
			err := r.err
			if !errors.Is(err, ErrSourceUnavailable) {
				err = fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
			}
			out.Errors = append(out.Errors, SourceError{Source: name, Err: err})
			log.Warn().Str("source", name).Err(r.err).Msg("source failed, continuing without it")
			continue
		}
		log.Info().Str("source", name).Int("records", len(r.records)).Msg("source fetched")
		out.Records = append(out.Records, r.records...)
	}
	return out
}

// statusError reports a non-200 response.
type statusError struct {
	api  string
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s API returned HTTP %d", e.api, e.code)
}

// getJSON performs a GET with retry and decodes the JSON body into v.
// HTTP 404 maps to ErrNotFound, exhausted transient failures to
// ErrSourceUnavailable.
func getJSON(ctx context.Context, client *http.Client, api, reqURL string, header http.Header, cfg types.HTTPConfig, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	for k, vals := range header {
		for _, val := range vals {
			req.Header.Add(k, val)
		}
	}
	req.Header.Set("User-Agent", userAgent(cfg))

	resp, err := httputil.DoWithRetry(ctx, client, req, cfg.MaxRetries)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s API request: %v", ErrSourceUnavailable, api, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %w", ErrNotFound, &statusError{api: api, code: resp.StatusCode})
	case httputil.Retryable(resp.StatusCode):
		return fmt.Errorf("%w: %w", ErrSourceUnavailable, &statusError{api: api, code: resp.StatusCode})
	case resp.StatusCode != http.StatusOK:
		return &statusError{api: api, code: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("parsing %s response: %w", api, err)
	}
	return nil
}

func userAgent(cfg types.HTTPConfig) string {
	if cfg.UserAgent != "" {
		return cfg.UserAgent
	}
	return defaultUserAgent
}

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// stripTags removes HTML/JATS markup and collapses whitespace.
func stripTags(s string) string {
	return strings.Join(strings.Fields(tagPattern.ReplaceAllString(s, " ")), " ")
}

// parseDate accepts "2006-01-02", "2006-01" and "2006".
func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// dateFromParts builds a date from year, month and day, where month and
// day may be zero.
func dateFromParts(year, month, day int) time.Time {
	if year <= 0 {
		return time.Time{}
	}
	if month <= 0 || month > 12 {
		month = 1
	}
	if day <= 0 || day > 31 {
		day = 1
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// Names lists every adapter this package provides, in priority order.
var Names = []string{"orcid", "europepmc", "openalex", "crossref", "semantic_scholar", "arxiv"}

// New builds the adapters named in cfg.Enabled, or all of them when the
// list is empty. The registry adapter is returned separately as well,
// since it also serves researcher identities.
func New(cfg types.SourceConfig, client *http.Client) ([]Adapter, *ORCIDAdapter, error) {
	enabled := cfg.Enabled
	if len(enabled) == 0 {
		enabled = Names
	}

	registry := &ORCIDAdapter{Client: client, Config: cfg.HTTPConfig}
	var adapters []Adapter
	for _, name := range enabled {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "orcid":
			adapters = append(adapters, registry)
		case "europepmc":
			adapters = append(adapters, &EuropePMCAdapter{Client: client, Config: cfg.HTTPConfig})
		case "openalex":
			adapters = append(adapters, &OpenAlexAdapter{Client: client, Config: cfg.HTTPConfig, Email: cfg.Email})
		case "crossref":
			adapters = append(adapters, &CrossrefAdapter{Client: client, Config: cfg.HTTPConfig, Email: cfg.Email})
		case "semantic_scholar":
			adapters = append(adapters, &SemanticScholarAdapter{Client: client, Config: cfg.HTTPConfig, APIKey: cfg.SemanticScholarAPIKey})
		case "arxiv":
			adapters = append(adapters, &ArxivAdapter{Client: client, Config: cfg.HTTPConfig})
		default:
			return nil, nil, fmt.Errorf("unknown source %q (valid: %s)", name, strings.Join(Names, ", "))
		}
	}
	return adapters, registry, nil
}
