package optimizations

import (
	"time"

	"resume-optimizer/internal/pipeline"
)

type createOptimizationRequest struct {
	DocumentID    string                  `json:"documentId"`
	Requirements  string                  `json:"requirements"`
	TargetRole    string                  `json:"targetRole"`
	SectionInputs *pipeline.SectionsInput `json:"sectionInputs"`
	ProjectPolicy string                  `json:"projectPolicy"`
}

// OptimizationResponse is the API view of a run. The report is only present
// once the run completed; ErrorMessage only once it failed.
type OptimizationResponse struct {
	OptimizationID string         `json:"optimizationId"`
	DocumentID     string         `json:"documentId"`
	TargetRole     string         `json:"targetRole,omitempty"`
	ProjectPolicy  string         `json:"projectPolicy"`
	Status         string         `json:"status"`
	Report         map[string]any `json:"report,omitempty"`
	ErrorMessage   string         `json:"errorMessage,omitempty"`
	ArtifactReady  bool           `json:"artifactReady"`
	CreatedAt      time.Time      `json:"createdAt"`
	StartedAt      *time.Time     `json:"startedAt,omitempty"`
	CompletedAt    *time.Time     `json:"completedAt,omitempty"`
}

func toResponse(o Optimization) OptimizationResponse {
	return OptimizationResponse{
		OptimizationID: o.ID,
		DocumentID:     o.DocumentID,
		TargetRole:     o.TargetRole,
		ProjectPolicy:  o.ProjectPolicy,
		Status:         o.Status,
		Report:         o.Report,
		ErrorMessage:   o.ErrorMessage,
		ArtifactReady:  o.Status == StatusCompleted && o.ResultKey != "",
		CreatedAt:      o.CreatedAt,
		StartedAt:      o.StartedAt,
		CompletedAt:    o.CompletedAt,
	}
}

func toResponses(list []Optimization) []OptimizationResponse {
	out := make([]OptimizationResponse, 0, len(list))
	for _, o := range list {
		out = append(out, toResponse(o))
	}
	return out
}
