// Package anthropic implements llm.Client on the official SDK. The API has
// no JSON response mode, so JSON-only instructions ride in the prompt and
// callers run tolerant decoding on the output.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"resume-optimizer/internal/llm"
	"resume-optimizer/internal/shared/telemetry"
)

const defaultMaxTokens = 4096

// Client wraps the Anthropic messages endpoint.
type Client struct {
	client sdk.Client
	model  sdk.Model
}

// NewClient constructs an Anthropic client.
func NewClient(apiKey, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for Anthropic")
	}
	return &Client{
		client: sdk.NewClient(option.WithAPIKey(apiKey)),
		model:  sdk.Model(model),
	}, nil
}

// Complete sends one message exchange and returns the concatenated text
// blocks of the reply.
func (c *Client) Complete(ctx context.Context, input llm.CompleteInput) (string, error) {
	maxTokens := int64(input.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := sdk.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(input.Prompt)),
		},
	}
	if strings.TrimSpace(input.System) != "" {
		params.System = []sdk.TextBlockParam{{Text: input.System}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic message: %w", err)
	}

	telemetry.Debug("llm.usage", map[string]any{
		"model":         string(c.model),
		"op":            input.Op,
		"input_tokens":  resp.Usage.InputTokens,
		"output_tokens": resp.Usage.OutputTokens,
	})

	var b strings.Builder
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(sdk.TextBlock); ok {
			b.WriteString(text.Text)
		}
	}

	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", fmt.Errorf("anthropic response empty content")
	}
	return out, nil
}

var _ llm.Client = (*Client)(nil)
