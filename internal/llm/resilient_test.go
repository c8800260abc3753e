package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"resume-optimizer/internal/resilience"
)

type flakyClient struct {
	failures int
	calls    int
}

func (c *flakyClient) Complete(ctx context.Context, input CompleteInput) (string, error) {
	c.calls++
	if c.calls <= c.failures {
		return "", &APIError{Provider: "test", StatusCode: http.StatusInternalServerError, Message: "boom"}
	}
	return "rewritten text", nil
}

func fastExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2.0,
		BreakerEnabled:      false,
	})
}

func TestResilientClientRetriesServerErrors(t *testing.T) {
	inner := &flakyClient{failures: 2}
	client := WithResilience("test", inner, fastExecutor())

	out, err := client.Complete(context.Background(), CompleteInput{Op: OpRewriteSpan, Prompt: "p"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "rewritten text" {
		t.Fatalf("unexpected output %q", out)
	}
	if inner.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", inner.calls)
	}
}

type permanentClient struct {
	calls int
}

func (c *permanentClient) Complete(ctx context.Context, input CompleteInput) (string, error) {
	c.calls++
	return "", &APIError{Provider: "test", StatusCode: http.StatusUnauthorized, Message: "bad key"}
}

func TestResilientClientStopsOnPermanentError(t *testing.T) {
	inner := &permanentClient{}
	client := WithResilience("test", inner, fastExecutor())

	_, err := client.Complete(context.Background(), CompleteInput{Op: OpGapAnalysis, Prompt: "p"})
	if err == nil {
		t.Fatal("expected error")
	}
	if inner.calls != 1 {
		t.Fatalf("expected a single call for auth failure, got %d", inner.calls)
	}
}

type flakyEmbedder struct {
	calls int
}

func (e *flakyEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	e.calls++
	if e.calls == 1 {
		return nil, errors.New("connection reset")
	}
	return []float64{1, 0}, nil
}

func TestResilientEmbedderRetriesTransportErrors(t *testing.T) {
	inner := &flakyEmbedder{}
	embedder := WithEmbedderResilience("test", inner, fastExecutor())

	vec, err := embedder.Embed(context.Background(), "golang")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 2 || vec[0] != 1 {
		t.Fatalf("unexpected vector %v", vec)
	}
	if inner.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", inner.calls)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		recorded  bool
	}{
		{name: "rate limit", err: &APIError{StatusCode: http.StatusTooManyRequests}, retryable: true, recorded: true},
		{name: "server error", err: &APIError{StatusCode: http.StatusBadGateway}, retryable: true, recorded: true},
		{name: "auth", err: &APIError{StatusCode: http.StatusUnauthorized}, retryable: false, recorded: false},
		{name: "bad request", err: &APIError{StatusCode: http.StatusBadRequest}, retryable: false, recorded: false},
		{name: "transport", err: errors.New("connection refused"), retryable: true, recorded: true},
		{name: "canceled", err: context.Canceled, retryable: false, recorded: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			verdict := Classify(tt.err)
			if verdict.Retryable != tt.retryable || verdict.RecordFailure != tt.recorded {
				t.Fatalf("Classify(%v) = %+v, want retryable=%v recorded=%v", tt.err, verdict, tt.retryable, tt.recorded)
			}
		})
	}
}
