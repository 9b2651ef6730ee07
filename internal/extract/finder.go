// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pdiddy/orcid2taxid/internal/httputil"
	"github.com/pdiddy/orcid2taxid/pkg/types"
)

// Finder detects scientific names in free text.
type Finder interface {
	Find(ctx context.Context, text string) ([]Found, error)
}

// Found is one scientific name detected in a text. Start and End are rune
// offsets of the verbatim occurrence.
type Found struct {
	Verbatim    string
	Name        string
	Cardinality int
	OddsLog10   float64
	Start       int
	End         int
}

// gnfinderURL is the Global Names finder endpoint. Package-level var for
// test substitution.
var gnfinderURL = "https://finder.globalnames.org/api/v1/find"

// GNFinder detects names with the Global Names finder service.
type GNFinder struct {
	// URL overrides the finder endpoint.
	URL    string
	Client *http.Client
	Config types.HTTPConfig
}

type gnfinderRequest struct {
	Text        string `json:"text"`
	UniqueNames bool   `json:"uniqueNames"`
	NoBayes     bool   `json:"noBayes"`
}

type gnfinderResponse struct {
	Names []struct {
		Verbatim    string  `json:"verbatim"`
		Name        string  `json:"name"`
		Cardinality int     `json:"cardinality"`
		OddsLog10   float64 `json:"oddsLog10"`
		Start       int     `json:"start"`
		End         int     `json:"end"`
	} `json:"names"`
}

// Find posts text to the finder and returns every detected name.
// Config.Timeout bounds the call, retries included.
func (f *GNFinder) Find(ctx context.Context, text string) ([]Found, error) {
	if f.Config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Config.Timeout)
		defer cancel()
	}
	body, err := json.Marshal(gnfinderRequest{Text: text, UniqueNames: false})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	endpoint := f.URL
	if endpoint == "" {
		endpoint = gnfinderURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if f.Config.UserAgent != "" {
		req.Header.Set("User-Agent", f.Config.UserAgent)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, req, f.Config.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("calling name finder: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("name finder returned %d: %s", resp.StatusCode, string(msg))
	}

	var gr gnfinderResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("decoding name finder response: %w", err)
	}
	out := make([]Found, 0, len(gr.Names))
	for _, n := range gr.Names {
		out = append(out, Found{
			Verbatim:    n.Verbatim,
			Name:        n.Name,
			Cardinality: n.Cardinality,
			OddsLog10:   n.OddsLog10,
			Start:       n.Start,
			End:         n.End,
		})
	}
	return out, nil
}
