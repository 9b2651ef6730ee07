// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/orcid2taxid/pkg/types"
)

// openAlexWorksBase is the OpenAlex Works endpoint. Declared as a var so
// tests can substitute an httptest server.
var openAlexWorksBase = "https://api.openalex.org/works"

// OpenAlexAdapter queries OpenAlex for works whose authorships carry the
// researcher's ORCID.
type OpenAlexAdapter struct {
	Client *http.Client
	Config types.HTTPConfig
	// Email is sent as mailto parameter for polite pool access.
	Email string
}

// Name returns the adapter identifier.
func (a *OpenAlexAdapter) Name() string { return "openalex" }

// Fetch returns the works OpenAlex attributes to q.ORCID.
func (a *OpenAlexAdapter) Fetch(ctx context.Context, q Query) ([]types.PublicationRecord, error) {
	filters := []string{"author.orcid:https://orcid.org/" + q.ORCID}
	if !q.DateFrom.IsZero() {
		filters = append(filters, "from_publication_date:"+q.DateFrom.Format("2006-01-02"))
	}
	if !q.DateTo.IsZero() {
		filters = append(filters, "to_publication_date:"+q.DateTo.Format("2006-01-02"))
	}

	params := url.Values{
		"filter":   {strings.Join(filters, ",")},
		"per_page": {fmt.Sprintf("%d", q.limit(100, 200))},
		"page":     {"1"},
	}
	if a.Email != "" {
		params.Set("mailto", a.Email)
	}
	reqURL := openAlexWorksBase + "?" + params.Encode()

	var oar openAlexResponse
	if err := getJSON(ctx, a.Client, "OpenAlex", reqURL, nil, a.Config, &oar); err != nil {
		return nil, err
	}

	records := make([]types.PublicationRecord, 0, len(oar.Results))
	for _, work := range oar.Results {
		records = append(records, a.convert(work))
	}
	return records, nil
}

func (a *OpenAlexAdapter) convert(work openAlexWork) types.PublicationRecord {
	r := types.PublicationRecord{
		Source:   a.Name(),
		Sources:  []string{a.Name()},
		Title:    strings.TrimSpace(work.Title),
		Abstract: reconstructAbstract(work.AbstractInvertedIndex),
	}

	if work.PublicationDate != "" {
		r.Date = parseDate(work.PublicationDate)
	} else if work.PublicationYear > 0 {
		r.Date = time.Date(work.PublicationYear, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	if doi := types.NormalizeDOI(work.DOI); doi != "" {
		r.AddID(types.Identifier{Scheme: types.SchemeDOI, Value: doi})
	}
	r.AddID(types.Identifier{Scheme: types.SchemePMID, Value: lastPathSegment(work.IDs.PMID)})
	r.AddID(types.Identifier{Scheme: types.SchemePMCID, Value: strings.ToUpper(lastPathSegment(work.IDs.PMCID))})
	r.AddID(types.Identifier{Scheme: types.SchemeOpenAlex, Value: lastPathSegment(work.ID)})

	if work.PrimaryLocation != nil && work.PrimaryLocation.Source != nil {
		r.Venue = work.PrimaryLocation.Source.DisplayName
	}
	if work.BestOALocation != nil && work.BestOALocation.PDFURL != "" {
		r.FullTextURL = work.BestOALocation.PDFURL
		r.FullTextAvailable = true
	}

	for _, authorship := range work.Authorships {
		if authorship.Author.DisplayName == "" {
			continue
		}
		author := types.Author{
			Name:  authorship.Author.DisplayName,
			ORCID: types.NormalizeORCID(authorship.Author.ORCID),
		}
		for _, inst := range authorship.Institutions {
			author.Affiliations = append(author.Affiliations, inst.DisplayName)
		}
		author.Affiliations = append(author.Affiliations, authorship.RawAffiliationStrings...)
		r.Authors = append(r.Authors, author)
	}
	return r
}

// lastPathSegment returns the final "/"-separated element of an OpenAlex
// URL-style identifier ("https://pubmed.ncbi.nlm.nih.gov/123" → "123").
func lastPathSegment(s string) string {
	s = strings.TrimRight(s, "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// reconstructAbstract converts OpenAlex's abstract_inverted_index back to
// plain text. The inverted index maps each word to a list of positions
// where that word appears.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

// OpenAlex API JSON structures.
type openAlexResponse struct {
	Meta    openAlexMeta   `json:"meta"`
	Results []openAlexWork `json:"results"`
}

type openAlexMeta struct {
	Count   int `json:"count"`
	PerPage int `json:"per_page"`
	Page    int `json:"page"`
}

type openAlexWork struct {
	ID                    string               `json:"id"`
	Title                 string               `json:"title"`
	DOI                   string               `json:"doi"`
	PublicationDate       string               `json:"publication_date"`
	PublicationYear       int                  `json:"publication_year"`
	IDs                   openAlexIDs          `json:"ids"`
	Authorships           []openAlexAuthorship `json:"authorships"`
	AbstractInvertedIndex map[string][]int     `json:"abstract_inverted_index"`
	PrimaryLocation       *openAlexLocation    `json:"primary_location"`
	BestOALocation        *openAlexLocation    `json:"best_oa_location"`
}

type openAlexIDs struct {
	PMID  string `json:"pmid"`
	PMCID string `json:"pmcid"`
}

type openAlexAuthorship struct {
	Author                openAlexAuthor        `json:"author"`
	Institutions          []openAlexInstitution `json:"institutions"`
	RawAffiliationStrings []string              `json:"raw_affiliation_strings"`
}

type openAlexAuthor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	ORCID       string `json:"orcid"`
}

type openAlexInstitution struct {
	DisplayName string `json:"display_name"`
}

type openAlexLocation struct {
	PDFURL string `json:"pdf_url"`
	Source *struct {
		DisplayName string `json:"display_name"`
	} `json:"source"`
}
