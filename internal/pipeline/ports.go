package pipeline

import (
	"context"

	"resume-optimizer/resume/model"
)

// The controller consumes these capabilities as ports. Implementations live
// outside the package, are stateless and safe for concurrent use across
// sessions, and surface failures as categorized errors where they can
// (see WrapError); free-text errors are categorized heuristically.

// SourceInput is the raw material for ParseResume: either file bytes or
// already-extracted text.
type SourceInput struct {
	Filename string `json:"filename,omitempty"`
	Data     []byte `json:"data,omitempty"`
	Text     string `json:"text,omitempty"`
}

// Parser turns a raw upload into a structured document plus its raw text.
type Parser interface {
	Parse(ctx context.Context, source SourceInput) (model.Document, string, error)
}

// ScoreComponent is one weighted slice of an analysis score.
type ScoreComponent struct {
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
}

// AnalysisReport is the scorer's verdict on a document against the
// requirements text.
type AnalysisReport struct {
	OverallScore float64          `json:"overallScore"`
	Breakdown    []ScoreComponent `json:"breakdown,omitempty"`
	MissingTerms []string         `json:"missingTerms,omitempty"`
	Issues       []string         `json:"issues,omitempty"`
}

// Scorer rates a document against requirements.
type Scorer interface {
	Score(ctx context.Context, doc model.Document, requirements string) (AnalysisReport, error)
}

// ProjectVerdict is the suitability call for one project, with an optional
// suggested replacement when the project does not serve the target role.
type ProjectVerdict struct {
	Index                int            `json:"index"`
	Name                 string         `json:"name"`
	Suitable             bool           `json:"suitable"`
	Reason               string         `json:"reason,omitempty"`
	SuggestedReplacement *model.Project `json:"suggestedReplacement,omitempty"`
}

// ProjectReport aggregates per-project verdicts.
type ProjectReport struct {
	Verdicts []ProjectVerdict `json:"verdicts"`
}

// Suggestions returns the verdicts that propose a replacement.
func (r ProjectReport) Suggestions() []ProjectVerdict {
	var out []ProjectVerdict
	for _, v := range r.Verdicts {
		if !v.Suitable && v.SuggestedReplacement != nil {
			out = append(out, v)
		}
	}
	return out
}

// ProjectAnalyzer judges how well each project supports the target role.
type ProjectAnalyzer interface {
	AnalyzeProjects(ctx context.Context, doc model.Document, requirements string) (ProjectReport, error)
}

// RewriteRequest carries everything a generator needs to propose a rewrite
// of one span. Corrective is empty on the first attempt.
type RewriteRequest struct {
	Original     string
	SpanLabel    string
	TargetRole   string
	Requirements string
	Corrective   string
	Attempt      int
}

// Generator produces candidate rewrites of single spans.
type Generator interface {
	GenerateRewrite(ctx context.Context, req RewriteRequest) (string, error)
}

// ArtifactStore persists a rendered output document. Optional; the
// OutputDocument stage skips storage when none is configured.
type ArtifactStore interface {
	SaveArtifact(ctx context.Context, name string, data []byte) (string, error)
}
