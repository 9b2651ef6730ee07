// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/orcid2taxid/pkg/types"
)

const sampleEuropePMCJSON = `{
  "hitCount": 2,
  "resultList": {"result": [
    {
      "id": "31415926",
      "pmid": "31415926",
      "pmcid": "PMC7000001",
      "doi": "10.1000/XYZ",
      "title": "Phage therapy in mice",
      "abstractText": "<h4>Background</h4>We infected <i>Mus musculus</i> with <i>E. coli</i>.",
      "firstPublicationDate": "2020-05-12",
      "isOpenAccess": "Y",
      "inEPMC": "Y",
      "journalInfo": {"journal": {"title": "Journal of Phage Biology"}},
      "authorList": {"author": [
        {"fullName": "Smith JA", "firstName": "John A", "lastName": "Smith",
         "authorId": {"type": "ORCID", "value": "0000-0002-1825-0097"},
         "authorAffiliationDetailsList": {"authorAffiliation": [{"affiliation": "University of Example"}]}},
        {"firstName": "Jane", "lastName": "Doe"}
      ]}
    },
    {
      "id": "PPR1",
      "title": "A preprint without identifiers",
      "firstPublicationDate": "2021",
      "fullTextUrlList": {"fullTextUrl": [
        {"availabilityCode": "S", "documentStyle": "html", "url": "https://example.org/sub.html"},
        {"availabilityCode": "OA", "documentStyle": "pdf", "url": "https://example.org/open.pdf"}
      ]}
    }
  ]}
}`

func TestEuropePMCAdapter_Fetch(t *testing.T) {
	var lastURL string
	ts := jsonServer(t, http.StatusOK, sampleEuropePMCJSON, &lastURL)
	old := europePMCSearchBase
	europePMCSearchBase = ts.URL
	defer func() { europePMCSearchBase = old }()

	a := &EuropePMCAdapter{Client: ts.Client()}
	records, err := a.Fetch(context.Background(), Query{ORCID: testORCID, MaxResults: 25})
	require.NoError(t, err)
	require.Len(t, records, 2)

	u, err := url.Parse(lastURL)
	require.NoError(t, err)
	assert.Equal(t, `AUTHORID:"`+testORCID+`"`, u.Query().Get("query"))
	assert.Equal(t, "25", u.Query().Get("pageSize"))
	assert.Equal(t, "core", u.Query().Get("resultType"))

	r := records[0]
	assert.Equal(t, "europepmc", r.Source)
	assert.Equal(t, "10.1000/xyz", r.ID(types.SchemeDOI))
	assert.Equal(t, "31415926", r.ID(types.SchemePMID))
	assert.Equal(t, "PMC7000001", r.ID(types.SchemePMCID))
	assert.Equal(t, "Background We infected Mus musculus with E. coli .", r.Abstract)
	assert.Equal(t, time.Date(2020, 5, 12, 0, 0, 0, 0, time.UTC), r.Date)
	assert.Equal(t, "Journal of Phage Biology", r.Venue)
	assert.True(t, r.FullTextAvailable)
	require.Len(t, r.Authors, 2)
	assert.Equal(t, "Smith JA", r.Authors[0].Name)
	assert.Equal(t, testORCID, r.Authors[0].ORCID)
	assert.Equal(t, []string{"University of Example"}, r.Authors[0].Affiliations)
	assert.Equal(t, "Jane Doe", r.Authors[1].Name)

	pre := records[1]
	assert.Empty(t, pre.StrongIDs())
	assert.True(t, pre.FullTextAvailable)
	assert.Equal(t, "https://example.org/open.pdf", pre.FullTextURL)
}

func TestBuildEuropePMCQuery(t *testing.T) {
	from := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		q    Query
		want string
	}{
		{"no range", Query{ORCID: testORCID}, `AUTHORID:"` + testORCID + `"`},
		{"both bounds", Query{ORCID: testORCID, DateFrom: from, DateTo: to}, `AUTHORID:"` + testORCID + `" AND FIRST_PDATE:[2015-01-01 TO 2020-12-31]`},
		{"from only", Query{ORCID: testORCID, DateFrom: from}, `AUTHORID:"` + testORCID + `" AND FIRST_PDATE:[2015-01-01 TO 2999-12-31]`},
		{"to only", Query{ORCID: testORCID, DateTo: to}, `AUTHORID:"` + testORCID + `" AND FIRST_PDATE:[1800-01-01 TO 2020-12-31]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildEuropePMCQuery(tt.q))
		})
	}
}
