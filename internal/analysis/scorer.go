package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"resume-optimizer/internal/llm"
	"resume-optimizer/internal/pipeline"
	"resume-optimizer/resume/model"
)

// Scorer rates a document against requirements via one LLM call.
type Scorer struct {
	client llm.Client
}

// NewScorer builds the LLM-backed scorer.
func NewScorer(client llm.Client) *Scorer {
	return &Scorer{client: client}
}

func (s *Scorer) Score(ctx context.Context, doc model.Document, requirements string) (pipeline.AnalysisReport, error) {
	raw, err := s.client.Complete(ctx, llm.CompleteInput{
		Op:     llm.OpGapAnalysis,
		System: llm.GapAnalysisPrompt(),
		Prompt: fmt.Sprintf("Resume:\n%s\n\nJob Requirements:\n%s", doc.PlainText(), requirements),
		JSON:   true,
	})
	if err != nil {
		return pipeline.AnalysisReport{}, wrapLLMError(llm.OpGapAnalysis, err)
	}

	report, err := decodeAnalysisReport(raw)
	if err != nil {
		return pipeline.AnalysisReport{}, pipeline.WrapError(pipeline.CategoryParsing, llm.OpGapAnalysis, err)
	}
	return report, nil
}

func decodeAnalysisReport(raw string) (pipeline.AnalysisReport, error) {
	payload, err := extractJSONObject(raw)
	if err != nil {
		return pipeline.AnalysisReport{}, err
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return pipeline.AnalysisReport{}, err
	}

	report := pipeline.AnalysisReport{
		OverallScore: clampScore(coerceFloat(data["overallScore"])),
		MissingTerms: coerceStringSlice(data["missingTerms"]),
		Issues:       coerceStringSlice(data["issues"]),
	}

	if items, ok := data["breakdown"].([]any); ok {
		for _, item := range items {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			name := coerceString(entry["name"])
			if name == "" {
				continue
			}
			report.Breakdown = append(report.Breakdown, pipeline.ScoreComponent{
				Name:   name,
				Score:  clampScore(coerceFloat(entry["score"])),
				Weight: clampWeight(coerceFloat(entry["weight"])),
			})
		}
	}
	return report, nil
}

func clampScore(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

func clampWeight(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

var _ pipeline.Scorer = (*Scorer)(nil)
