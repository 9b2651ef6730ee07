// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/orcid2taxid/internal/httputil"
	"github.com/pdiddy/orcid2taxid/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// ArxivAdapter searches arXiv by author name. arXiv has no researcher
// identifiers, so its records are name-based candidates that rely on
// authorship verification downstream.
type ArxivAdapter struct {
	Client *http.Client
	Config types.HTTPConfig
}

// Name returns the adapter identifier.
func (a *ArxivAdapter) Name() string { return "arxiv" }

// Fetch searches arXiv for q.Name. Without a name there is nothing to
// search and Fetch returns no records.
func (a *ArxivAdapter) Fetch(ctx context.Context, q Query) ([]types.PublicationRecord, error) {
	query := buildArxivQuery(q.Name)
	if query == "" {
		return nil, nil
	}

	params := url.Values{
		"search_query": {query},
		"start":        {"0"},
		"max_results":  {fmt.Sprintf("%d", q.limit(50, 500))},
		"sortBy":       {"submittedDate"},
		"sortOrder":    {"descending"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, arxivAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent(a.Config))

	resp, err := httputil.DoWithRetry(ctx, a.Client, req, a.Config.MaxRetries)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: arXiv API request: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, &statusError{api: "arXiv", code: resp.StatusCode})
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}

	var records []types.PublicationRecord
	for _, entry := range feed.Entries {
		arxivID := extractArxivID(entry.ID)
		if arxivID == "" {
			continue
		}
		r := types.PublicationRecord{
			Source:            a.Name(),
			Sources:           []string{a.Name()},
			Title:             strings.Join(strings.Fields(entry.Title), " "),
			Abstract:          strings.TrimSpace(entry.Summary),
			Venue:             "arXiv",
			FullTextAvailable: true,
			FullTextURL:       "https://arxiv.org/pdf/" + arxivID,
		}
		r.AddID(types.Identifier{Scheme: types.SchemeArxiv, Value: arxivID})
		if doi := types.NormalizeDOI(entry.DOI); doi != "" {
			r.AddID(types.Identifier{Scheme: types.SchemeDOI, Value: doi})
		}
		if t, parseErr := time.Parse(time.RFC3339, entry.Published); parseErr == nil {
			r.Date = t
		}
		if !q.inRange(r.Date) {
			continue
		}
		for _, au := range entry.Authors {
			author := types.Author{Name: strings.TrimSpace(au.Name)}
			if au.Affiliation != "" {
				author.Affiliations = []string{au.Affiliation}
			}
			r.Authors = append(r.Authors, author)
		}
		records = append(records, r)
	}
	return records, nil
}

// buildArxivQuery builds an exact-phrase author query.
func buildArxivQuery(name string) string {
	name = strings.Join(strings.Fields(strings.ReplaceAll(name, `"`, "")), " ")
	if name == "" {
		return ""
	}
	return fmt.Sprintf(`au:"%s"`, name)
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID        string        `xml:"id"`
	Title     string        `xml:"title"`
	Summary   string        `xml:"summary"`
	Published string        `xml:"published"`
	DOI       string        `xml:"http://arxiv.org/schemas/atom doi"`
	Authors   []arxivAuthor `xml:"author"`
}

type arxivAuthor struct {
	Name        string `xml:"name"`
	Affiliation string `xml:"http://arxiv.org/schemas/atom affiliation"`
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" → "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := idURL[idx+len(prefix):]

	// Strip version suffix (e.g. "v1", "v2").
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}
