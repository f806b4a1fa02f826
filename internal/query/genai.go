package query

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GenAIGenerator implements Generator on the Gemini API.
type GenAIGenerator struct {
	client *genai.Client
	model  string
}

// NewGenAIGenerator creates a Gemini-backed generator. baseURL overrides the
// API endpoint when non-empty.
func NewGenAIGenerator(ctx context.Context, apiKey, model, baseURL string) (*GenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("genai: API key not configured")
	}
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &GenAIGenerator{client: client, model: model}, nil
}

// Generate asks the model for a JSON response conforming to schema.
func (g *GenAIGenerator) Generate(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
