// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/orcid2taxid/internal/names"
	"github.com/pdiddy/orcid2taxid/pkg/types"
)

// semanticAPIBase is the Semantic Scholar Graph API root. Declared as a var
// so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1"

const (
	semanticAuthorFields = "name,affiliations,paperCount"
	semanticPaperFields  = "title,abstract,authors,externalIds,year,publicationDate,venue,openAccessPdf"

	// semanticMaxAuthors bounds how many same-name author profiles are read.
	semanticMaxAuthors = 3
)

// SemanticScholarAdapter finds author profiles matching the researcher's
// name and returns their papers. Like arXiv it is name-based.
type SemanticScholarAdapter struct {
	Client *http.Client
	Config types.HTTPConfig
	APIKey string
}

// Name returns the adapter identifier.
func (a *SemanticScholarAdapter) Name() string { return "semantic_scholar" }

// Fetch searches for author profiles named q.Name and collects their papers.
func (a *SemanticScholarAdapter) Fetch(ctx context.Context, q Query) ([]types.PublicationRecord, error) {
	if strings.TrimSpace(q.Name) == "" {
		return nil, nil
	}
	max := q.limit(100, 1000)

	params := url.Values{
		"query":  {q.Name},
		"fields": {semanticAuthorFields},
		"limit":  {"10"},
	}
	var authors semanticAuthorSearch
	if err := a.get(ctx, "/author/search?"+params.Encode(), &authors); err != nil {
		return nil, err
	}

	target := names.ParsePerson(q.Name)
	var records []types.PublicationRecord
	matched := 0
	for _, au := range authors.Data {
		if matched >= semanticMaxAuthors || len(records) >= max {
			break
		}
		if names.Compare(target, names.ParsePerson(au.Name)) == names.NoMatch {
			continue
		}
		matched++

		pparams := url.Values{
			"fields": {semanticPaperFields},
			"limit":  {strconv.Itoa(max - len(records))},
		}
		var papers semanticPaperList
		if err := a.get(ctx, "/author/"+url.PathEscape(au.AuthorID)+"/papers?"+pparams.Encode(), &papers); err != nil {
			return nil, err
		}
		for _, p := range papers.Data {
			r := a.convert(p, au)
			if q.inRange(r.Date) {
				records = append(records, r)
			}
		}
	}
	return records, nil
}

func (a *SemanticScholarAdapter) get(ctx context.Context, path string, v any) error {
	var header http.Header
	if a.APIKey != "" {
		header = http.Header{"x-api-key": {a.APIKey}}
	}
	return getJSON(ctx, a.Client, "Semantic Scholar", semanticAPIBase+path, header, a.Config, v)
}

// convert maps a paper to a record. The profile's affiliations are
// attached to the matching author entry, since paper author lists carry
// none.
func (a *SemanticScholarAdapter) convert(p semanticPaper, profile semanticAuthor) types.PublicationRecord {
	r := types.PublicationRecord{
		Source:   a.Name(),
		Sources:  []string{a.Name()},
		Title:    strings.TrimSpace(p.Title),
		Abstract: p.Abstract,
		Venue:    p.Venue,
	}
	if p.PublicationDate != "" {
		r.Date = parseDate(p.PublicationDate)
	} else if p.Year > 0 {
		r.Date = time.Date(p.Year, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	ext := p.ExternalIDs
	if doi := types.NormalizeDOI(ext.DOI); doi != "" {
		r.AddID(types.Identifier{Scheme: types.SchemeDOI, Value: doi})
	}
	r.AddID(types.Identifier{Scheme: types.SchemeArxiv, Value: strings.ToLower(ext.ArXiv)})
	r.AddID(types.Identifier{Scheme: types.SchemePMID, Value: ext.PubMed})
	if ext.PubMedCentral != "" {
		pmc := strings.ToUpper(ext.PubMedCentral)
		if !strings.HasPrefix(pmc, "PMC") {
			pmc = "PMC" + pmc
		}
		r.AddID(types.Identifier{Scheme: types.SchemePMCID, Value: pmc})
	}
	r.AddID(types.Identifier{Scheme: types.SchemeS2, Value: p.PaperID})

	if p.OpenAccessPDF != nil && p.OpenAccessPDF.URL != "" {
		r.FullTextURL = p.OpenAccessPDF.URL
		r.FullTextAvailable = true
	}

	for _, au := range p.Authors {
		author := types.Author{Name: au.Name}
		if au.AuthorID != "" && au.AuthorID == profile.AuthorID {
			author.Affiliations = profile.Affiliations
		}
		r.Authors = append(r.Authors, author)
	}
	return r
}

// Semantic Scholar API JSON structures.
type semanticAuthorSearch struct {
	Total int              `json:"total"`
	Data  []semanticAuthor `json:"data"`
}

type semanticPaperList struct {
	Data []semanticPaper `json:"data"`
}

type semanticPaper struct {
	PaperID         string              `json:"paperId"`
	Title           string              `json:"title"`
	Abstract        string              `json:"abstract"`
	Year            int                 `json:"year"`
	PublicationDate string              `json:"publicationDate"`
	Venue           string              `json:"venue"`
	Authors         []semanticAuthor    `json:"authors"`
	ExternalIDs     semanticExternalIDs `json:"externalIds"`
	OpenAccessPDF   *struct {
		URL string `json:"url"`
	} `json:"openAccessPdf"`
}

type semanticAuthor struct {
	AuthorID     string   `json:"authorId"`
	Name         string   `json:"name"`
	Affiliations []string `json:"affiliations"`
}

type semanticExternalIDs struct {
	DOI           string `json:"DOI"`
	ArXiv         string `json:"ArXiv"`
	PubMed        string `json:"PubMed"`
	PubMedCentral string `json:"PubMedCentral"`
	CorpusID      int    `json:"CorpusId"`
}
