// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"text/template"
)

// extractionPromptTmpl is the prompt sent to the oracle for each
// publication. It asks for organisms the authors worked with, not ones
// merely cited.
var extractionPromptTmpl = template.Must(template.New("extraction").Parse(`You are a microbiology literature curator. Read the following title and abstract and list every organism the authors themselves worked with, either at the bench or computationally.

For each organism, report:
- original_name: the name exactly as written in the text
- searchable_name: the standardized binomial scientific name suitable for a taxonomy lookup (expand abbreviations such as "E. coli" to "Escherichia coli"; use the species for strains and serovars)
- on_list: true if the organism appears on the watch-list below
- work_type: "wet_lab" if the organism was handled experimentally, "computational" if only its data was analyzed, "undetermined" otherwise
- evidence: a short quote from the text supporting the work type
- confidence: a float between 0.0 and 1.0

Ignore organisms that are only mentioned as background or cited from other work. Ignore the study host (humans) unless it is the subject of the work.

Watch-list:
{{range .Watchlist}}- {{.}}
{{end}}
Respond with a JSON object with an "organisms" array, a "justification" string and a "no_organisms_found" boolean. Do not include any text outside the JSON object.

Example response:
{"organisms": [{"original_name": "E. coli K-12", "searchable_name": "Escherichia coli", "on_list": false, "work_type": "wet_lab", "evidence": "E. coli K-12 cultures were grown", "confidence": 0.9}], "justification": "Cultures were grown by the authors.", "no_organisms_found": false}

Text:
{{.Text}}
`))

// claudeAPIURL is the Claude API endpoint. Package-level var for test substitution.
var claudeAPIURL = "https://api.anthropic.com/v1/messages"

// ClaudeBackend asks the Claude API for the organisms in a title and abstract.
type ClaudeBackend struct {
	APIKey string
	Model  string
	Client *http.Client
}

// claudeRequest is the request body for the Claude Messages API.
type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Messages  []claudeMessage `json:"messages"`
}

// claudeMessage is a single message in the Claude API conversation.
type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// claudeResponse is the response body from the Claude Messages API.
type claudeResponse struct {
	Content []claudeContent `json:"content"`
}

// claudeContent is a content block in the Claude API response.
type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Extract calls the Claude API with the extraction prompt for one publication.
func (c *ClaudeBackend) Extract(ctx context.Context, text string, watchlist []string) ([]Candidate, error) {
	prompt, err := renderPrompt(text, watchlist)
	if err != nil {
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}

	reqBody := claudeRequest{
		Model:     c.Model,
		MaxTokens: 4096,
		Messages: []claudeMessage{
			{Role: "user", Content: prompt},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claudeAPIURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("Claude API returned %d: %s", resp.StatusCode, string(body))
	}

	var cResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return nil, fmt.Errorf("decoding Claude response: %w", err)
	}

	for _, block := range cResp.Content {
		if block.Type != "text" {
			continue
		}
		return decodeCandidates(block.Text)
	}

	return nil, fmt.Errorf("no text content in Claude API response")
}

// renderPrompt executes the extraction prompt template.
func renderPrompt(text string, watchlist []string) (string, error) {
	var buf bytes.Buffer
	data := struct {
		Text      string
		Watchlist []string
	}{Text: text, Watchlist: watchlist}
	if err := extractionPromptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
