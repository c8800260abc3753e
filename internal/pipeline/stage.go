package pipeline

import "fmt"

// Stage identifies one step of the optimization workflow. The eight stages
// form a strictly linear chain; there is no branching.
type Stage string

const (
	StageParseResume          Stage = "parse_resume"
	StageAnalyzeRequirements  Stage = "analyze_against_requirements"
	StageMissingSectionsInput Stage = "missing_sections_input"
	StageProjectAnalysis      Stage = "project_analysis"
	StageReAnalysis           Stage = "re_analysis"
	StageContentRewriting     Stage = "content_rewriting"
	StageFinalOptimization    Stage = "final_optimization"
	StageOutputDocument       Stage = "output_document"

	// StageComplete is the terminal marker; it is not an executable stage.
	StageComplete Stage = "complete"
)

var stageOrder = []Stage{
	StageParseResume,
	StageAnalyzeRequirements,
	StageMissingSectionsInput,
	StageProjectAnalysis,
	StageReAnalysis,
	StageContentRewriting,
	StageFinalOptimization,
	StageOutputDocument,
}

// stageWeights drive progress reporting and must sum to 100.
var stageWeights = map[Stage]int{
	StageParseResume:          10,
	StageAnalyzeRequirements:  15,
	StageMissingSectionsInput: 10,
	StageProjectAnalysis:      15,
	StageReAnalysis:           10,
	StageContentRewriting:     20,
	StageFinalOptimization:    12,
	StageOutputDocument:       8,
}

// Stages returns the executable stages in order.
func Stages() []Stage {
	out := make([]Stage, len(stageOrder))
	copy(out, stageOrder)
	return out
}

// Valid reports whether s is one of the executable stages.
func (s Stage) Valid() bool {
	return s.Order() >= 0
}

// Order returns the zero-based position of s, or -1 for unknown stages and
// the terminal marker.
func (s Stage) Order() int {
	for i, stage := range stageOrder {
		if stage == s {
			return i
		}
	}
	return -1
}

// Next returns the following stage, or false at the end of the chain.
func (s Stage) Next() (Stage, bool) {
	i := s.Order()
	if i < 0 || i+1 >= len(stageOrder) {
		return "", false
	}
	return stageOrder[i+1], true
}

// Prev returns the preceding stage, or false at the start of the chain.
func (s Stage) Prev() (Stage, bool) {
	i := s.Order()
	if i <= 0 {
		return "", false
	}
	return stageOrder[i-1], true
}

// Weight returns the progress weight of s.
func (s Stage) Weight() int {
	return stageWeights[s]
}

// ParseStage converts a wire value into a Stage.
func ParseStage(value string) (Stage, error) {
	s := Stage(value)
	if !s.Valid() {
		return "", fmt.Errorf("unknown stage %q", value)
	}
	return s, nil
}
