// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// GeminiBackend asks a Gemini model for the organisms in a title and abstract.
type GeminiBackend struct {
	APIKey string
	Model  string
}

// Extract renders the extraction prompt and requests a JSON reply.
func (g *GeminiBackend) Extract(ctx context.Context, text string, watchlist []string) ([]Candidate, error) {
	if g.APIKey == "" {
		return nil, errors.New("gemini: API key is not set")
	}
	prompt, err := renderPrompt(text, watchlist)
	if err != nil {
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}

	resp, err := client.Models.GenerateContent(ctx, g.Model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("calling Gemini API: %w", err)
	}
	reply := resp.Text()
	if reply == "" {
		return nil, errors.New("Gemini API returned empty content")
	}
	return decodeCandidates(reply)
}
