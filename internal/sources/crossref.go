// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pdiddy/orcid2taxid/pkg/types"
)

// crossrefWorksBase is the Crossref Works endpoint. Declared as a var so
// tests can substitute an httptest server.
var crossrefWorksBase = "https://api.crossref.org/works"

// CrossrefAdapter queries Crossref for works deposited with the
// researcher's ORCID.
type CrossrefAdapter struct {
	Client *http.Client
	Config types.HTTPConfig
	// Email is sent as mailto parameter for polite pool access.
	Email string
}

// Name returns the adapter identifier.
func (a *CrossrefAdapter) Name() string { return "crossref" }

// Fetch returns the works whose deposited metadata carries q.ORCID.
func (a *CrossrefAdapter) Fetch(ctx context.Context, q Query) ([]types.PublicationRecord, error) {
	filters := []string{"orcid:" + q.ORCID}
	if !q.DateFrom.IsZero() {
		filters = append(filters, "from-pub-date:"+q.DateFrom.Format("2006-01-02"))
	}
	if !q.DateTo.IsZero() {
		filters = append(filters, "until-pub-date:"+q.DateTo.Format("2006-01-02"))
	}

	params := url.Values{
		"filter": {strings.Join(filters, ",")},
		"rows":   {fmt.Sprintf("%d", q.limit(100, 1000))},
	}
	if a.Email != "" {
		params.Set("mailto", a.Email)
	}
	reqURL := crossrefWorksBase + "?" + params.Encode()

	var cr crossrefResponse
	if err := getJSON(ctx, a.Client, "Crossref", reqURL, nil, a.Config, &cr); err != nil {
		return nil, err
	}

	records := make([]types.PublicationRecord, 0, len(cr.Message.Items))
	for _, item := range cr.Message.Items {
		r := types.PublicationRecord{
			Source:   a.Name(),
			Sources:  []string{a.Name()},
			Title:    firstNonEmpty(item.Title),
			Abstract: stripTags(item.Abstract),
			Venue:    firstNonEmpty(item.ContainerTitle),
			Date:     item.Issued.date(),
		}
		if doi := types.NormalizeDOI(item.DOI); doi != "" {
			r.AddID(types.Identifier{Scheme: types.SchemeDOI, Value: doi})
		}
		for _, au := range item.Author {
			author := types.Author{
				Name:  strings.TrimSpace(au.Given + " " + au.Family),
				ORCID: types.NormalizeORCID(au.ORCID),
			}
			if author.Name == "" {
				author.Name = au.Name
			}
			for _, aff := range au.Affiliation {
				author.Affiliations = append(author.Affiliations, aff.Name)
			}
			r.Authors = append(r.Authors, author)
		}
		records = append(records, r)
	}
	return records, nil
}

func firstNonEmpty(vals []string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// Crossref API JSON structures.
type crossrefResponse struct {
	Status  string `json:"status"`
	Message struct {
		Items []crossrefItem `json:"items"`
	} `json:"message"`
}

type crossrefItem struct {
	DOI            string           `json:"DOI"`
	Title          []string         `json:"title"`
	ContainerTitle []string         `json:"container-title"`
	Abstract       string           `json:"abstract"`
	Issued         crossrefDate     `json:"issued"`
	Author         []crossrefAuthor `json:"author"`
}

type crossrefAuthor struct {
	Given       string `json:"given"`
	Family      string `json:"family"`
	Name        string `json:"name"`
	ORCID       string `json:"ORCID"`
	Affiliation []struct {
		Name string `json:"name"`
	} `json:"affiliation"`
}

type crossrefDate struct {
	DateParts [][]int `json:"date-parts"`
}

// date reads the first date-parts entry, [year, month, day] with month
// and day optional.
func (d crossrefDate) date() time.Time {
	if len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 {
		return time.Time{}
	}
	var p [3]int
	copy(p[:], d.DateParts[0])
	return dateFromParts(p[0], p[1], p[2])
}
