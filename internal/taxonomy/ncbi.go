// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package taxonomy

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/pdiddy/orcid2taxid/internal/httputil"
	"github.com/pdiddy/orcid2taxid/internal/names"
	"github.com/pdiddy/orcid2taxid/pkg/types"
)

// eutilsBase is the NCBI E-utilities base URL. Package-level var for test
// substitution.
var eutilsBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

const (
	toolName             = "orcid2taxid"
	defaultMaxCandidates = 5
)

// NCBIClient searches the NCBI taxonomy database with esearch and fetches
// candidate details with esummary. Config.Timeout bounds one Search.
type NCBIClient struct {
	Client *http.Client
	Config types.TaxonomyConfig

	// Limiter paces every E-utilities request, retries included. It is
	// shared with the extraction oracle.
	Limiter *httputil.Limiter

	// MaxCandidates caps the taxa considered per name (default 5).
	MaxCandidates int
}

type esearchResponse struct {
	Result struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
		Error  string   `json:"ERROR"`
	} `json:"esearchresult"`
}

type esummaryDoc struct {
	UID            string `json:"uid"`
	Rank           string `json:"rank"`
	ScientificName string `json:"scientificname"`
	CommonName     string `json:"commonname"`
	GenBankName    string `json:"genbankcommonname"`
	Error          string `json:"error"`
}

// Search returns up to MaxCandidates taxa for name in the order NCBI
// ranks them.
func (n *NCBIClient) Search(ctx context.Context, name string) ([]Candidate, error) {
	limit := n.MaxCandidates
	if limit <= 0 {
		limit = defaultMaxCandidates
	}
	if n.Config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.Config.Timeout)
		defer cancel()
	}

	params := n.params()
	params.Set("term", name)
	params.Set("retmax", strconv.Itoa(limit))
	var search esearchResponse
	if err := n.get(ctx, "esearch", params, &search); err != nil {
		return nil, err
	}
	if search.Result.Error != "" {
		return nil, fmt.Errorf("%w: esearch: %s", ErrLookup, search.Result.Error)
	}
	if len(search.Result.IDList) == 0 {
		return []Candidate{}, nil
	}

	params = n.params()
	params.Set("id", strings.Join(search.Result.IDList, ","))
	var summary struct {
		Result map[string]json.RawMessage `json:"result"`
	}
	if err := n.get(ctx, "esummary", params, &summary); err != nil {
		return nil, err
	}

	query := names.Fold(name)
	out := make([]Candidate, 0, len(search.Result.IDList))
	for _, id := range search.Result.IDList {
		raw, ok := summary.Result[id]
		if !ok {
			continue
		}
		var doc esummaryDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("%w: parsing esummary record %s: %v", ErrLookup, id, err)
		}
		taxID, err := strconv.Atoi(id)
		if err != nil || doc.Error != "" {
			continue
		}
		common := doc.CommonName
		if common == "" {
			common = doc.GenBankName
		}
		out = append(out, Candidate{
			TaxonID:        taxID,
			ScientificName: doc.ScientificName,
			CommonName:     common,
			Rank:           doc.Rank,
			Score:          math.Max(similarity(query, doc.ScientificName), similarity(query, common)),
		})
	}
	return out, nil
}

func (n *NCBIClient) params() url.Values {
	v := url.Values{}
	v.Set("db", "taxonomy")
	v.Set("retmode", "json")
	v.Set("tool", toolName)
	if n.Config.Email != "" {
		v.Set("email", n.Config.Email)
	}
	if n.Config.APIKey != "" {
		v.Set("api_key", n.Config.APIKey)
	}
	return v
}

func (n *NCBIClient) get(ctx context.Context, endpoint string, params url.Values, v any) error {
	reqURL := eutilsBase + "/" + endpoint + ".fcgi?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if n.Config.UserAgent != "" {
		req.Header.Set("User-Agent", n.Config.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, n.Limiter.Client(n.Client), req, n.Config.MaxRetries)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %s: %w", ErrLookup, endpoint, ctx.Err())
		}
		return fmt.Errorf("%w: %s: %v", ErrLookup, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned HTTP %d", ErrLookup, endpoint, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: parsing %s response: %v", ErrLookup, endpoint, err)
	}
	return nil
}

// similarity is the normalized edit-distance similarity of two names after
// folding, rounded to three decimals.
func similarity(folded, other string) float64 {
	b := names.Fold(other)
	if folded == "" || b == "" {
		return 0
	}
	longest := max(len([]rune(folded)), len([]rune(b)))
	d := levenshtein.ComputeDistance(folded, b)
	return math.Round((1-float64(d)/float64(longest))*1000) / 1000
}
