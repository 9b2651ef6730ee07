// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/orcid2taxid/pkg/types"
)

// europePMCSearchBase is the Europe PMC REST search endpoint. Declared as a
// var so tests can substitute an httptest server.
var europePMCSearchBase = "https://www.ebi.ac.uk/europepmc/webservices/rest/search"

// EuropePMCAdapter queries Europe PMC for works linked to the researcher's
// ORCID.
type EuropePMCAdapter struct {
	Client *http.Client
	Config types.HTTPConfig
}

// Name returns the adapter identifier.
func (a *EuropePMCAdapter) Name() string { return "europepmc" }

// Fetch returns the works Europe PMC associates with q.ORCID.
func (a *EuropePMCAdapter) Fetch(ctx context.Context, q Query) ([]types.PublicationRecord, error) {
	params := url.Values{
		"query":      {buildEuropePMCQuery(q)},
		"resultType": {"core"},
		"pageSize":   {fmt.Sprintf("%d", q.limit(100, 1000))},
		"format":     {"json"},
	}
	reqURL := europePMCSearchBase + "?" + params.Encode()

	var resp europePMCResponse
	if err := getJSON(ctx, a.Client, "Europe PMC", reqURL, nil, a.Config, &resp); err != nil {
		return nil, err
	}

	var records []types.PublicationRecord
	for _, res := range resp.ResultList.Result {
		r := types.PublicationRecord{
			Source:   a.Name(),
			Sources:  []string{a.Name()},
			Title:    strings.TrimSpace(res.Title),
			Abstract: stripTags(res.AbstractText),
			Date:     parseDate(res.FirstPublicationDate),
			Venue:    res.JournalInfo.Journal.Title,
		}
		if doi := types.NormalizeDOI(res.DOI); doi != "" {
			r.AddID(types.Identifier{Scheme: types.SchemeDOI, Value: doi})
		}
		r.AddID(types.Identifier{Scheme: types.SchemePMID, Value: res.PMID})
		r.AddID(types.Identifier{Scheme: types.SchemePMCID, Value: strings.ToUpper(res.PMCID)})

		r.FullTextAvailable = res.PMCID != "" && (res.IsOpenAccess == "Y" || res.InEPMC == "Y")
		for _, u := range res.FullTextURLList.FullTextURL {
			if u.DocumentStyle == "pdf" && u.AvailabilityCode == "OA" {
				r.FullTextURL = u.URL
				r.FullTextAvailable = true
				break
			}
		}

		for _, au := range res.AuthorList.Author {
			author := types.Author{Name: au.FullName}
			if author.Name == "" {
				author.Name = strings.TrimSpace(au.FirstName + " " + au.LastName)
			}
			if au.AuthorID != nil && strings.EqualFold(au.AuthorID.Type, "ORCID") {
				author.ORCID = types.NormalizeORCID(au.AuthorID.Value)
			}
			for _, aff := range au.AuthorAffiliationDetailsList.AuthorAffiliation {
				if aff.Affiliation != "" {
					author.Affiliations = append(author.Affiliations, aff.Affiliation)
				}
			}
			r.Authors = append(r.Authors, author)
		}
		records = append(records, r)
	}
	return records, nil
}

// buildEuropePMCQuery builds the search expression for an ORCID with an
// optional first-publication date range.
func buildEuropePMCQuery(q Query) string {
	query := fmt.Sprintf(`AUTHORID:"%s"`, q.ORCID)
	if q.DateFrom.IsZero() && q.DateTo.IsZero() {
		return query
	}
	from, to := "1800-01-01", "2999-12-31"
	if !q.DateFrom.IsZero() {
		from = q.DateFrom.Format("2006-01-02")
	}
	if !q.DateTo.IsZero() {
		to = q.DateTo.Format("2006-01-02")
	}
	return fmt.Sprintf("%s AND FIRST_PDATE:[%s TO %s]", query, from, to)
}

// Europe PMC API JSON structures.
type europePMCResponse struct {
	HitCount   int `json:"hitCount"`
	ResultList struct {
		Result []europePMCResult `json:"result"`
	} `json:"resultList"`
}

type europePMCResult struct {
	ID                   string `json:"id"`
	PMID                 string `json:"pmid"`
	PMCID                string `json:"pmcid"`
	DOI                  string `json:"doi"`
	Title                string `json:"title"`
	AbstractText         string `json:"abstractText"`
	FirstPublicationDate string `json:"firstPublicationDate"`
	IsOpenAccess         string `json:"isOpenAccess"`
	InEPMC               string `json:"inEPMC"`
	JournalInfo          struct {
		Journal struct {
			Title string `json:"title"`
		} `json:"journal"`
	} `json:"journalInfo"`
	AuthorList struct {
		Author []europePMCAuthor `json:"author"`
	} `json:"authorList"`
	FullTextURLList struct {
		FullTextURL []struct {
			Availability     string `json:"availability"`
			AvailabilityCode string `json:"availabilityCode"`
			DocumentStyle    string `json:"documentStyle"`
			URL              string `json:"url"`
		} `json:"fullTextUrl"`
	} `json:"fullTextUrlList"`
}

type europePMCAuthor struct {
	FullName  string `json:"fullName"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	AuthorID  *struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"authorId"`
	AuthorAffiliationDetailsList struct {
		AuthorAffiliation []struct {
			Affiliation string `json:"affiliation"`
		} `json:"authorAffiliation"`
	} `json:"authorAffiliationDetailsList"`
}
