package rewrite

import (
	"context"
	"fmt"
	"strings"

	"resume-optimizer/internal/shared/metrics"
)

// Bounded generation budget per span: one initial candidate plus two
// corrective retries. The cap keeps worst-case latency and provider cost
// bounded per document and is not a tunable.
const (
	MaxRetries         = 2
	MaxGenerationCalls = MaxRetries + 1
)

// GenerateFunc produces a candidate rewrite. correctivePrompt is empty on the
// first call; attempt counts from 0.
type GenerateFunc func(ctx context.Context, correctivePrompt string, attempt int) (string, error)

// ValidateFunc checks a candidate against the original at a threshold.
// (*Validator).Validate satisfies it.
type ValidateFunc func(ctx context.Context, original, candidate string, threshold float64) (ValidationVerdict, error)

// Fallback names what ValidateWithRetry returned when no candidate was
// accepted.
type Fallback string

const (
	FallbackNone          Fallback = ""
	FallbackOriginal      Fallback = "original"
	FallbackLastCandidate Fallback = "last_candidate"
)

// RetryResult is the outcome of driving generation through validation.
type RetryResult struct {
	Text            string
	Accepted        bool
	Fallback        Fallback
	Verdicts        []ValidationVerdict
	GenerationCalls int
}

// ValidateWithRetry obtains a candidate, validates it, and on a retry verdict
// regenerates with a corrective prompt at the stricter threshold, at most
// MaxRetries times. A reject verdict fails immediately and falls back to the
// original span. Exhausted retries fall back to the last candidate when its
// verdict was retry (still salvageable), or to the original if any verdict
// was reject. The result text is never an unvalidated rewrite presented as
// accepted.
func ValidateWithRetry(ctx context.Context, original string, generate GenerateFunc, validate ValidateFunc) (RetryResult, error) {
	result := RetryResult{}

	candidate, err := generate(ctx, "", 0)
	if err != nil {
		return result, fmt.Errorf("generate candidate: %w", err)
	}
	result.GenerationCalls++

	verdict, err := validate(ctx, original, candidate, DefaultSimilarityThreshold)
	if err != nil {
		return result, fmt.Errorf("validate candidate: %w", err)
	}
	result.Verdicts = append(result.Verdicts, verdict)
	metrics.IncRewriteVerdict(string(verdict.Verdict))

	threshold := DefaultSimilarityThreshold
	sawReject := false
	retries := 0
	for {
		switch verdict.Verdict {
		case VerdictAccept:
			result.Text = candidate
			result.Accepted = true
			return result, nil
		case VerdictReject:
			result.Text = original
			result.Fallback = FallbackOriginal
			return result, nil
		}

		if retries >= MaxRetries {
			break
		}
		retries++

		candidate, err = generate(ctx, correctivePrompt(verdict, threshold), retries)
		if err != nil {
			return result, fmt.Errorf("generate candidate (retry %d): %w", retries, err)
		}
		result.GenerationCalls++

		threshold = RetrySimilarityThreshold
		verdict, err = validate(ctx, original, candidate, threshold)
		if err != nil {
			return result, fmt.Errorf("validate candidate (retry %d): %w", retries, err)
		}
		result.Verdicts = append(result.Verdicts, verdict)
		metrics.IncRewriteVerdict(string(verdict.Verdict))
		if verdict.Verdict == VerdictReject {
			sawReject = true
		}
	}

	if sawReject {
		result.Text = original
		result.Fallback = FallbackOriginal
		return result, nil
	}
	result.Text = candidate
	result.Fallback = FallbackLastCandidate
	return result, nil
}

// correctivePrompt turns a failed verdict into explicit instructions for the
// next generation attempt. threshold is the one the verdict was judged at.
func correctivePrompt(v ValidationVerdict, threshold float64) string {
	var b strings.Builder
	b.WriteString("The previous rewrite was not accepted. Produce a corrected rewrite of the same text.\n")
	if v.HasFabricatedTerms {
		b.WriteString("Remove these terms; they do not appear in the source material: ")
		b.WriteString(strings.Join(v.FabricatedTerms, ", "))
		b.WriteString(".\n")
	}
	if !v.MetricsPreserved {
		b.WriteString("Reproduce these figures exactly as written in the original: ")
		b.WriteString(strings.Join(v.MissingMetrics, ", "))
		b.WriteString(".\n")
	}
	if v.SemanticSimilarity < threshold {
		b.WriteString("Stay closer to the original meaning; do not change what the text claims.\n")
	}
	b.WriteString("Do not invent tools, technologies, metrics, or achievements.")
	return b.String()
}
