package optimizations

import (
	"time"

	"resume-optimizer/internal/pipeline"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Project policies stand in for the interactive project-decisions pause on
// headless runs.
const (
	PolicyApplyAll = "apply_all"
	PolicySkip     = "skip"
)

// Optimization is one headless optimization run over a stored document.
// SectionInputs pre-answers the missing-sections pause; runs that hit a
// pause with nothing pre-supplied fail instead of waiting.
type Optimization struct {
	ID            string                  `json:"id"`
	UserID        string                  `json:"userId"`
	DocumentID    string                  `json:"documentId"`
	TargetRole    string                  `json:"targetRole"`
	Requirements  string                  `json:"requirements"`
	SectionInputs *pipeline.SectionsInput `json:"sectionInputs,omitempty"`
	ProjectPolicy string                  `json:"projectPolicy"`
	Status        string                  `json:"status"`
	Report        map[string]any          `json:"report,omitempty"`
	ResultKey     string                  `json:"resultKey,omitempty"`
	ErrorMessage  string                  `json:"errorMessage,omitempty"`
	CreatedAt     time.Time               `json:"createdAt"`
	StartedAt     *time.Time              `json:"startedAt,omitempty"`
	CompletedAt   *time.Time              `json:"completedAt,omitempty"`
}

// Terminal reports whether the run has finished, successfully or not.
func (o Optimization) Terminal() bool {
	return o.Status == StatusCompleted || o.Status == StatusFailed
}

// ValidPolicy reports whether p names a known project policy.
func ValidPolicy(p string) bool {
	return p == PolicyApplyAll || p == PolicySkip
}
