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

// --- reconstructAbstract ---

func TestReconstructAbstract(t *testing.T) {
	tests := []struct {
		name  string
		index map[string][]int
		want  string
	}{
		{
			name:  "empty map",
			index: map[string][]int{},
			want:  "",
		},
		{
			name:  "nil map",
			index: nil,
			want:  "",
		},
		{
			name:  "single word",
			index: map[string][]int{"hello": {0}},
			want:  "hello",
		},
		{
			name: "words with shared positions",
			index: map[string][]int{
				"the":     {0, 4},
				"phage":   {1},
				"lysed":   {2},
				"all":     {3},
				"strains": {5},
			},
			want: "the phage lysed all the strains",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reconstructAbstract(tt.index)
			if got != tt.want {
				t.Errorf("reconstructAbstract() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLastPathSegment(t *testing.T) {
	tests := map[string]string{
		"https://pubmed.ncbi.nlm.nih.gov/31415926":              "31415926",
		"https://www.ncbi.nlm.nih.gov/pmc/articles/PMC7000001/": "PMC7000001",
		"W2741809807": "W2741809807",
		"":            "",
	}
	for in, want := range tests {
		if got := lastPathSegment(in); got != want {
			t.Errorf("lastPathSegment(%q) = %q, want %q", in, got, want)
		}
	}
}

// --- Mock OpenAlex server ---

const sampleOpenAlexJSON = `{
  "meta": {"count": 2, "per_page": 100, "page": 1},
  "results": [
    {
      "id": "https://openalex.org/W100",
      "title": "Phage therapy in mice",
      "doi": "https://doi.org/10.1000/XYZ",
      "publication_date": "2020-05-12",
      "publication_year": 2020,
      "ids": {"pmid": "https://pubmed.ncbi.nlm.nih.gov/31415926", "pmcid": "https://www.ncbi.nlm.nih.gov/pmc/articles/pmc7000001"},
      "authorships": [
        {"author": {"id": "A1", "display_name": "John A. Smith", "orcid": "https://orcid.org/0000-0002-1825-0097"},
         "institutions": [{"display_name": "University of Example"}],
         "raw_affiliation_strings": ["Dept. of Microbiology, University of Example"]},
        {"author": {"id": "A2", "display_name": ""}}
      ],
      "abstract_inverted_index": {"We": [0], "infected": [1], "mice": [2]},
      "primary_location": {"source": {"display_name": "Journal of Phage Biology"}},
      "best_oa_location": {"pdf_url": "https://example.org/phage.pdf"}
    },
    {
      "id": "https://openalex.org/W200",
      "title": "Undated note",
      "publication_year": 2019
    }
  ]
}`

func TestOpenAlexAdapter_Fetch(t *testing.T) {
	var lastURL string
	ts := jsonServer(t, http.StatusOK, sampleOpenAlexJSON, &lastURL)
	old := openAlexWorksBase
	openAlexWorksBase = ts.URL
	defer func() { openAlexWorksBase = old }()

	a := &OpenAlexAdapter{Client: ts.Client(), Email: "curator@example.org"}
	q := Query{ORCID: testORCID, DateFrom: time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)}
	records, err := a.Fetch(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, records, 2)

	u, err := url.Parse(lastURL)
	require.NoError(t, err)
	assert.Equal(t, "author.orcid:https://orcid.org/"+testORCID+",from_publication_date:2010-01-01", u.Query().Get("filter"))
	assert.Equal(t, "curator@example.org", u.Query().Get("mailto"))

	r := records[0]
	assert.Equal(t, "openalex", r.Source)
	assert.Equal(t, "10.1000/xyz", r.ID(types.SchemeDOI))
	assert.Equal(t, "31415926", r.ID(types.SchemePMID))
	assert.Equal(t, "PMC7000001", r.ID(types.SchemePMCID))
	assert.Equal(t, "W100", r.ID(types.SchemeOpenAlex))
	assert.Equal(t, "We infected mice", r.Abstract)
	assert.Equal(t, "Journal of Phage Biology", r.Venue)
	assert.True(t, r.FullTextAvailable)
	assert.Equal(t, "https://example.org/phage.pdf", r.FullTextURL)
	require.Len(t, r.Authors, 1, "authorships without a display name are dropped")
	assert.Equal(t, testORCID, r.Authors[0].ORCID)
	assert.Equal(t, []string{"University of Example", "Dept. of Microbiology, University of Example"}, r.Authors[0].Affiliations)

	assert.Equal(t, time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC), records[1].Date)
	assert.False(t, records[1].FullTextAvailable)
}

func TestOpenAlexAdapter_ServerError(t *testing.T) {
	ts := jsonServer(t, http.StatusServiceUnavailable, "", nil)
	old := openAlexWorksBase
	openAlexWorksBase = ts.URL
	defer func() { openAlexWorksBase = old }()

	a := &OpenAlexAdapter{Client: ts.Client(), Config: types.HTTPConfig{MaxRetries: 1}}
	_, err := a.Fetch(context.Background(), Query{ORCID: testORCID})
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}
