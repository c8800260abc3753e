package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"resume-optimizer/internal/llm"
	"resume-optimizer/internal/pipeline"
	"resume-optimizer/resume/model"
)

// ProjectAnalyzer judges project suitability via one LLM call. Documents
// without projects short-circuit to an empty report.
type ProjectAnalyzer struct {
	client llm.Client
}

// NewProjectAnalyzer builds the LLM-backed project analyzer.
func NewProjectAnalyzer(client llm.Client) *ProjectAnalyzer {
	return &ProjectAnalyzer{client: client}
}

func (a *ProjectAnalyzer) AnalyzeProjects(ctx context.Context, doc model.Document, requirements string) (pipeline.ProjectReport, error) {
	if len(doc.Projects) == 0 {
		return pipeline.ProjectReport{}, nil
	}

	projectsJSON, err := json.MarshalIndent(doc.Projects, "", "  ")
	if err != nil {
		return pipeline.ProjectReport{}, pipeline.WrapError(pipeline.CategoryParsing, llm.OpProjectReview, err)
	}

	prompt := fmt.Sprintf("Projects:\n%s\n\nResume skills: %s\n\nJob Requirements:\n%s",
		projectsJSON, strings.Join(doc.Skills, ", "), requirements)

	raw, err := a.client.Complete(ctx, llm.CompleteInput{
		Op:     llm.OpProjectReview,
		System: llm.ProjectReviewPrompt(),
		Prompt: prompt,
		JSON:   true,
	})
	if err != nil {
		return pipeline.ProjectReport{}, wrapLLMError(llm.OpProjectReview, err)
	}

	report, err := decodeProjectReport(raw, doc.Projects)
	if err != nil {
		return pipeline.ProjectReport{}, pipeline.WrapError(pipeline.CategoryParsing, llm.OpProjectReview, err)
	}
	return report, nil
}

// decodeProjectReport tolerantly decodes verdicts, clamping indexes to the
// actual project list and backfilling missing names from it.
func decodeProjectReport(raw string, projects []model.Project) (pipeline.ProjectReport, error) {
	payload, err := extractJSONObject(raw)
	if err != nil {
		return pipeline.ProjectReport{}, err
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return pipeline.ProjectReport{}, err
	}

	items, ok := data["verdicts"].([]any)
	if !ok {
		return pipeline.ProjectReport{}, fmt.Errorf("response missing verdicts")
	}

	var report pipeline.ProjectReport
	for pos, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}

		index := pos
		if v := coerceFloat(entry["index"]); !math.IsNaN(v) && int(v) >= 0 && int(v) < len(projects) {
			index = int(v)
		}
		if index >= len(projects) {
			continue
		}

		verdict := pipeline.ProjectVerdict{
			Index:    index,
			Name:     coerceString(entry["name"]),
			Suitable: coerceBool(entry["suitable"]),
			Reason:   coerceString(entry["reason"]),
		}
		if verdict.Name == "" {
			verdict.Name = projects[index].Name
		}
		if replacement := decodeReplacement(entry["suggestedReplacement"]); replacement != nil && !verdict.Suitable {
			verdict.SuggestedReplacement = replacement
		}
		report.Verdicts = append(report.Verdicts, verdict)
	}
	return report, nil
}

func decodeReplacement(v any) *model.Project {
	entry, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	project := model.Project{
		Name:         coerceString(entry["name"]),
		Description:  coerceString(entry["description"]),
		Technologies: coerceStringSlice(entry["technologies"]),
		Bullets:      coerceStringSlice(entry["bullets"]),
	}
	if project.Name == "" && project.Description == "" {
		return nil
	}
	return &project
}

var _ pipeline.ProjectAnalyzer = (*ProjectAnalyzer)(nil)
