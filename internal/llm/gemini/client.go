// Package gemini implements llm.Client on the Google GenAI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"resume-optimizer/internal/llm"
)

const defaultModel = "gemini-2.5-flash"

// Client wraps the Gemini generate-content endpoint.
type Client struct {
	client *genai.Client
	model  string
}

// NewClient constructs a Gemini client for the API-key backend.
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Client{client: client, model: model}, nil
}

// Complete sends the prompt and returns the concatenated candidate text.
func (c *Client) Complete(ctx context.Context, input llm.CompleteInput) (string, error) {
	var cfg *genai.GenerateContentConfig
	if strings.TrimSpace(input.System) != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: input.System}}},
		}
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(input.Prompt), cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", &llm.APIError{Provider: llm.ProviderGemini, StatusCode: apiErr.Code, Message: apiErr.Message}
		}
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	var b strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(text)
		}
	}

	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", fmt.Errorf("gemini response empty content")
	}
	return out, nil
}

var _ llm.Client = (*Client)(nil)
