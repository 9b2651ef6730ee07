// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pdiddy/orcid2taxid/pkg/types"
)

// Oracle reads the title and abstract of a publication and proposes the
// organisms it works with. Implementations must honor ctx cancellation.
type Oracle interface {
	Extract(ctx context.Context, text string, watchlist []string) ([]Candidate, error)
}

// Candidate is one organism proposed by an oracle, before validation.
type Candidate struct {
	Name           string  `json:"original_name"`
	SearchableName string  `json:"searchable_name"`
	OnList         bool    `json:"on_list"`
	WorkType       string  `json:"work_type"`
	Evidence       string  `json:"evidence"`
	Confidence     float64 `json:"confidence"`
}

// oracleResponse is the JSON object an oracle is asked to return.
type oracleResponse struct {
	Organisms        []Candidate `json:"organisms"`
	Justification    string      `json:"justification"`
	NoOrganismsFound bool        `json:"no_organisms_found"`
}

// workType maps the oracle's free-form label onto the fixed work types.
// It returns "" for labels it cannot place.
func (c Candidate) workType() types.WorkType {
	w := strings.ToLower(strings.TrimSpace(c.WorkType))
	switch {
	case w == "":
		return types.WorkUndetermined
	case strings.Contains(w, "wet"):
		return types.WorkWetLab
	case strings.Contains(w, "comput"), strings.Contains(w, "in silico"):
		return types.WorkComputational
	case strings.Contains(w, "undetermined"), strings.Contains(w, "unknown"):
		return types.WorkUndetermined
	}
	return ""
}

// decodeCandidates parses an oracle reply. Models sometimes wrap the JSON
// object in a Markdown fence or a sentence, so only the outermost braces
// are decoded.
func decodeCandidates(reply string) ([]Candidate, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in oracle reply")
	}
	var resp oracleResponse
	if err := json.Unmarshal([]byte(reply[start:end+1]), &resp); err != nil {
		return nil, fmt.Errorf("parsing oracle reply JSON: %w", err)
	}
	if resp.NoOrganismsFound {
		return []Candidate{}, nil
	}
	if resp.Organisms == nil {
		return []Candidate{}, nil
	}
	return resp.Organisms, nil
}

// Default models per oracle provider.
const (
	DefaultClaudeModel = "claude-sonnet-4-5"
	DefaultGeminiModel = "gemini-2.0-flash"
)

// NewOracle builds the oracle backend named by cfg.Provider ("claude" when
// empty). It returns nil without error when no API key is configured; the
// abstract tier then marks publications as failed.
func NewOracle(cfg types.AIConfig, client *http.Client) (Oracle, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case "", "claude", "anthropic":
		if cfg.APIKey == "" {
			return nil, nil
		}
		model := cfg.Model
		if model == "" {
			model = DefaultClaudeModel
		}
		return &ClaudeBackend{APIKey: cfg.APIKey, Model: model, Client: client}, nil
	case "gemini", "google":
		if cfg.APIKey == "" {
			return nil, nil
		}
		model := cfg.Model
		if model == "" {
			model = DefaultGeminiModel
		}
		return &GeminiBackend{APIKey: cfg.APIKey, Model: model}, nil
	}
	return nil, fmt.Errorf("unknown oracle provider %q (valid: claude, gemini)", cfg.Provider)
}
