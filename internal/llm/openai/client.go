// Package openai implements llm.Client and llm.Embedder against the OpenAI
// HTTP API. The client is hand-rolled: two endpoints with stable JSON shapes
// do not justify an SDK dependency.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"resume-optimizer/internal/llm"
	"resume-optimizer/internal/shared/telemetry"
)

const (
	defaultBaseURL        = "https://api.openai.com/v1"
	defaultEmbeddingModel = "text-embedding-3-small"
)

// Client talks to the chat-completions and embeddings endpoints.
type Client struct {
	apiKey         string
	model          string
	embeddingModel string
	baseURL        string
	httpClient     *http.Client
}

// NewClient constructs an OpenAI client. The request timeout defaults to
// 120s and can be overridden with OPENAI_TIMEOUT_SECONDS.
func NewClient(apiKey, model, embeddingModel string) (*Client, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for OpenAI")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if strings.TrimSpace(embeddingModel) == "" {
		embeddingModel = defaultEmbeddingModel
	}
	timeout := 120 * time.Second
	if raw := strings.TrimSpace(os.Getenv("OPENAI_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return &Client{
		apiKey:         apiKey,
		model:          model,
		embeddingModel: embeddingModel,
		baseURL:        defaultBaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float32        `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type apiErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *apiErrorBody `json:"error,omitempty"`
}

// Complete sends one chat-completion request and returns the message text.
func (c *Client) Complete(ctx context.Context, input llm.CompleteInput) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if strings.TrimSpace(input.System) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: input.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: input.Prompt})

	reqBody := chatRequest{
		Model:    c.model,
		Messages: messages,
	}
	if input.MaxTokens > 0 {
		reqBody.MaxTokens = input.MaxTokens
	}
	if input.JSON {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	temp := float32(0)
	if !isGPT5(c.model) {
		reqBody.Temperature = &temp
	}

	body, status, err := c.post(ctx, "/chat/completions", reqBody)
	if err != nil {
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		if status >= 400 {
			return "", &llm.APIError{Provider: llm.ProviderOpenAI, StatusCode: status, Message: strings.TrimSpace(string(body))}
		}
		return "", fmt.Errorf("openai response parse: %w", err)
	}
	if parsed.Error != nil {
		return "", &llm.APIError{Provider: llm.ProviderOpenAI, StatusCode: status, Message: fmt.Sprintf("%s (%s)", parsed.Error.Message, parsed.Error.Type)}
	}
	if status >= 400 {
		return "", &llm.APIError{Provider: llm.ProviderOpenAI, StatusCode: status, Message: strings.TrimSpace(string(body))}
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai response missing choices")
	}

	logUsage(c.model, input.Op, parsed.Usage)

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("openai response empty content")
	}
	return content, nil
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Error *apiErrorBody `json:"error,omitempty"`
}

// Embed returns the embedding vector for the text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	reqBody := embeddingRequest{
		Model: c.embeddingModel,
		Input: []string{text},
	}

	body, status, err := c.post(ctx, "/embeddings", reqBody)
	if err != nil {
		return nil, err
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		if status >= 400 {
			return nil, &llm.APIError{Provider: llm.ProviderOpenAI, StatusCode: status, Message: strings.TrimSpace(string(body))}
		}
		return nil, fmt.Errorf("openai embedding parse: %w", err)
	}
	if parsed.Error != nil {
		return nil, &llm.APIError{Provider: llm.ProviderOpenAI, StatusCode: status, Message: fmt.Sprintf("%s (%s)", parsed.Error.Message, parsed.Error.Type)}
	}
	if status >= 400 {
		return nil, &llm.APIError{Provider: llm.ProviderOpenAI, StatusCode: status, Message: strings.TrimSpace(string(body))}
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("openai embedding response empty")
	}
	return parsed.Data[0].Embedding, nil
}

func (c *Client) post(ctx context.Context, path string, reqBody any) ([]byte, int, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return nil, 0, fmt.Errorf("openai request timeout: %w", err)
		}
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

func logUsage(model, op string, usage *struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}) {
	if usage == nil {
		return
	}
	telemetry.Debug("llm.usage", map[string]any{
		"model":             model,
		"op":                op,
		"prompt_tokens":     usage.PromptTokens,
		"completion_tokens": usage.CompletionTokens,
		"total_tokens":      usage.TotalTokens,
	})
}

func isGPT5(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "gpt-5")
}

var (
	_ llm.Client   = (*Client)(nil)
	_ llm.Embedder = (*Client)(nil)
)
