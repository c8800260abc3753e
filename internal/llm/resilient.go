package llm

import (
	"context"
	"errors"
	"net/http"

	"resume-optimizer/internal/resilience"
	"resume-optimizer/internal/shared/metrics"
)

// Classify maps provider errors onto the retry policy. Rate limits, server
// errors and transport failures are retryable; auth and request-shape
// failures are permanent and stay invisible to the circuit breaker.
func Classify(err error) resilience.ErrorClassification {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests,
			apiErr.StatusCode == http.StatusRequestTimeout,
			apiErr.StatusCode >= 500:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		default:
			return resilience.ErrorClassification{}
		}
	}

	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}

// ResilientClient decorates a Client with the shared retry and breaker
// policy and counts every generation call.
type ResilientClient struct {
	provider string
	inner    Client
	exec     *resilience.Executor
}

// WithResilience wraps a provider client. The provider name labels metrics
// and prefixes breaker operation names.
func WithResilience(provider string, inner Client, exec *resilience.Executor) *ResilientClient {
	return &ResilientClient{provider: provider, inner: inner, exec: exec}
}

func (c *ResilientClient) Complete(ctx context.Context, input CompleteInput) (string, error) {
	metrics.IncGenerationCall(c.provider)

	op := input.Op
	if op == "" {
		op = "complete"
	}

	var out string
	err := c.exec.Execute(ctx, c.provider+"."+op, func(ctx context.Context) error {
		var callErr error
		out, callErr = c.inner.Complete(ctx, input)
		return callErr
	}, Classify)
	if err != nil {
		return "", err
	}
	return out, nil
}

// ResilientEmbedder decorates an Embedder the same way.
type ResilientEmbedder struct {
	provider string
	inner    Embedder
	exec     *resilience.Executor
}

// WithEmbedderResilience wraps a provider embedder.
func WithEmbedderResilience(provider string, inner Embedder, exec *resilience.Executor) *ResilientEmbedder {
	return &ResilientEmbedder{provider: provider, inner: inner, exec: exec}
}

func (e *ResilientEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	var out []float64
	err := e.exec.Execute(ctx, e.provider+"."+OpEmbed, func(ctx context.Context) error {
		var callErr error
		out, callErr = e.inner.Embed(ctx, text)
		return callErr
	}, Classify)
	if err != nil {
		return nil, err
	}
	return out, nil
}

var (
	_ Client   = (*ResilientClient)(nil)
	_ Embedder = (*ResilientEmbedder)(nil)
)
