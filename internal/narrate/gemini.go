package narrate

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/franz/music-journeys/internal/util"
)

// DefaultModel is used when no model is configured
const DefaultModel = "gemini-2.5-pro"

// Gemini generates text with the Gemini API
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini API client for the given key and model
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: gemini api key is not set", util.ErrInvalidConfig)
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

// Generate sends the prompt as a single user turn and returns the text answer
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", util.ErrRemoteRequest, g.model, err)
	}
	if resp == nil {
		return "", fmt.Errorf("%w: empty response from %s", util.ErrRemoteRequest, g.model)
	}
	return resp.Text(), nil
}
