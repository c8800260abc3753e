// Package llm defines the provider-neutral text generation and embedding
// clients consumed by the analysis adapters and the rewrite validator.
// Provider implementations live in subpackages; wrap them with
// WithResilience before handing them to callers.
package llm

import (
	"context"
	"fmt"
)

// Provider names accepted by configuration.
const (
	ProviderPlaceholder = "placeholder"
	ProviderOpenAI      = "openai"
	ProviderAnthropic   = "anthropic"
	ProviderGemini      = "gemini"
)

// Logical operations. Used to partition circuit breakers and to key the
// placeholder provider's canned responses.
const (
	OpParseResume   = "parse_resume"
	OpGapAnalysis   = "gap_analysis"
	OpProjectReview = "project_review"
	OpRewriteSpan   = "rewrite_span"
	OpEmbed         = "embed"
)

// CompleteInput carries one completion request. Op names the logical
// operation; JSON asks the provider for a JSON-only response where the API
// supports enforcing it.
type CompleteInput struct {
	Op        string
	System    string
	Prompt    string
	MaxTokens int
	JSON      bool
}

// Client produces text completions.
type Client interface {
	Complete(ctx context.Context, input CompleteInput) (string, error)
}

// Embedder turns text into a numeric vector for similarity scoring.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// APIError is a failure reported by a provider API, as opposed to a
// transport error. The status code drives retry classification.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api status %d: %s", e.Provider, e.StatusCode, e.Message)
}
