package llm

import _ "embed"

var (
	//go:embed prompts/parse_resume.txt
	parseResumePrompt string
	//go:embed prompts/gap_analysis.txt
	gapAnalysisPrompt string
	//go:embed prompts/project_review.txt
	projectReviewPrompt string
	//go:embed prompts/rewrite_span.txt
	rewriteSpanPrompt string
)

// ParseResumePrompt returns the template that turns raw resume text into
// structured document JSON.
func ParseResumePrompt() string {
	return parseResumePrompt
}

// GapAnalysisPrompt returns the template that scores a document against
// requirements text.
func GapAnalysisPrompt() string {
	return gapAnalysisPrompt
}

// ProjectReviewPrompt returns the template that judges project suitability
// for the target role.
func ProjectReviewPrompt() string {
	return projectReviewPrompt
}

// RewriteSpanPrompt returns the template that rewrites one span of resume
// text.
func RewriteSpanPrompt() string {
	return rewriteSpanPrompt
}
