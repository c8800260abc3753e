// Package rewrite gates machine-generated text rewrites: a rewrite may only
// replace original resume content after passing semantic-similarity,
// fabricated-term and metric-preservation checks.
package rewrite

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// Verdict is the outcome of validating one candidate rewrite.
type Verdict string

const (
	VerdictAccept Verdict = "accept"
	VerdictRetry  Verdict = "retry"
	VerdictReject Verdict = "reject"
)

// Similarity thresholds. The retry pass is stricter so marginal rewrites do
// not oscillate into acceptance.
const (
	DefaultSimilarityThreshold = 0.70
	RetrySimilarityThreshold   = 0.75
)

// ValidationVerdict reports every check performed on a candidate rewrite.
type ValidationVerdict struct {
	Accepted           bool     `json:"accepted"`
	SemanticSimilarity float64  `json:"semanticSimilarity"`
	HasFabricatedTerms bool     `json:"hasFabricatedTerms"`
	FabricatedTerms    []string `json:"fabricatedTerms,omitempty"`
	MetricsPreserved   bool     `json:"metricsPreserved"`
	MissingMetrics     []string `json:"missingMetrics,omitempty"`
	Verdict            Verdict  `json:"verdict"`
	Reason             string   `json:"reason,omitempty"`
}

// Embedder turns a text span into a numeric vector. Implementations are
// external providers and may fail.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Validator decides whether a generated rewrite may replace an original
// span. It never rejects outright; reject is reserved for callers that have
// exhausted their retries.
type Validator struct {
	embedder Embedder
	vocab    *Vocabulary
}

// NewValidator builds a Validator over a per-run vocabulary.
func NewValidator(embedder Embedder, vocab *Vocabulary) *Validator {
	return &Validator{embedder: embedder, vocab: vocab}
}

// Validate checks candidate against original at the given similarity
// threshold. threshold <= 0 selects DefaultSimilarityThreshold.
func (v *Validator) Validate(ctx context.Context, original, candidate string, threshold float64) (ValidationVerdict, error) {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}

	origVec, err := v.embedder.Embed(ctx, original)
	if err != nil {
		return ValidationVerdict{}, fmt.Errorf("embed original: %w", err)
	}
	candVec, err := v.embedder.Embed(ctx, candidate)
	if err != nil {
		return ValidationVerdict{}, fmt.Errorf("embed candidate: %w", err)
	}
	similarity := CosineSimilarity(origVec, candVec)

	missing := MissingMetrics(original, candidate)
	fabricated := FabricatedTerms(candidate, v.vocab)

	verdict := ValidationVerdict{
		SemanticSimilarity: similarity,
		HasFabricatedTerms: len(fabricated) > 0,
		FabricatedTerms:    fabricated,
		MetricsPreserved:   len(missing) == 0,
		MissingMetrics:     missing,
	}

	lowSimilarity := similarity < threshold
	switch {
	case verdict.HasFabricatedTerms:
		verdict.Verdict = VerdictRetry
		verdict.Reason = "fabricated terms: " + strings.Join(fabricated, ", ")
	case lowSimilarity && !verdict.MetricsPreserved:
		verdict.Verdict = VerdictRetry
		verdict.Reason = fmt.Sprintf("similarity %.2f below threshold %.2f and missing metrics: %s",
			similarity, threshold, strings.Join(missing, ", "))
	case lowSimilarity:
		verdict.Verdict = VerdictRetry
		verdict.Reason = fmt.Sprintf("similarity %.2f below threshold %.2f", similarity, threshold)
	case !verdict.MetricsPreserved:
		verdict.Verdict = VerdictRetry
		verdict.Reason = "missing metrics: " + strings.Join(missing, ", ")
	default:
		verdict.Verdict = VerdictAccept
		verdict.Accepted = true
	}
	return verdict, nil
}

// CosineSimilarity returns the cosine of the angle between two vectors, or 0
// when either vector is empty or zero.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
