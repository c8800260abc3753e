package sessions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"resume-optimizer/internal/documents"
	"resume-optimizer/internal/pipeline"
	"resume-optimizer/internal/shared/metrics"
	"resume-optimizer/internal/shared/telemetry"
	"resume-optimizer/resume/render"
)

// Service contains the business logic for interactive optimization
// sessions: creating them from a document or raw text, driving the
// controller, and rendering downloads.
type Service struct {
	Manager *Manager
	Collab  pipeline.Collaborators
	Docs    *documents.Service
}

// CreateParams describe a new session. Exactly one of DocumentID or Text
// provides the source resume; DocumentID wins when both are set.
type CreateParams struct {
	DocumentID   string
	Text         string
	Requirements string
	TargetRole   string
}

// Create builds a session and registers it with the manager.
func (s *Service) Create(ctx context.Context, userID string, p CreateParams) (pipeline.State, error) {
	if strings.TrimSpace(p.Requirements) == "" {
		return pipeline.State{}, fmt.Errorf("%w: requirements are required", ErrInvalidInput)
	}

	var source *pipeline.SourceInput
	switch {
	case strings.TrimSpace(p.DocumentID) != "":
		if s.Docs == nil {
			return pipeline.State{}, fmt.Errorf("%w: document uploads are not enabled", ErrInvalidInput)
		}
		doc, text, err := s.Docs.SourceText(ctx, userID, p.DocumentID)
		if err != nil {
			return pipeline.State{}, err
		}
		source = &pipeline.SourceInput{Filename: doc.FileName, Text: text}
	case strings.TrimSpace(p.Text) != "":
		source = &pipeline.SourceInput{Text: p.Text}
	default:
		return pipeline.State{}, fmt.Errorf("%w: documentId or text is required", ErrInvalidInput)
	}

	sess := pipeline.NewSession(userID, p.Requirements, p.TargetRole, source)
	ctrl := pipeline.NewController(sess, s.Collab)
	s.Manager.Put(ctrl)

	telemetry.Info("session.created", map[string]any{
		"session_id":  sess.ID(),
		"user_id":     userID,
		"target_role": p.TargetRole,
		"from_doc":    p.DocumentID != "",
	})
	return ctrl.GetState(), nil
}

// List returns state snapshots of the user's live sessions.
func (s *Service) List(userID string) []pipeline.State {
	ctrls := s.Manager.ListByUser(userID)
	out := make([]pipeline.State, 0, len(ctrls))
	for _, ctrl := range ctrls {
		out = append(out, ctrl.GetState())
	}
	return out
}

// State returns the current state snapshot of a session.
func (s *Service) State(userID, sessionID string) (pipeline.State, error) {
	ctrl, err := s.get(userID, sessionID)
	if err != nil {
		return pipeline.State{}, err
	}
	return ctrl.GetState(), nil
}

// Progress returns the aggregate progress of a session.
func (s *Service) Progress(userID, sessionID string) (pipeline.Progress, error) {
	ctrl, err := s.get(userID, sessionID)
	if err != nil {
		return pipeline.Progress{}, err
	}
	return ctrl.GetProgress(), nil
}

// ExecuteStep runs one stage of the session. An empty stageName means the
// session's current stage.
func (s *Service) ExecuteStep(ctx context.Context, userID, sessionID, stageName string, input *pipeline.StepInput) (pipeline.StepResult, error) {
	ctrl, err := s.get(userID, sessionID)
	if err != nil {
		return pipeline.StepResult{}, err
	}

	stage, err := s.resolveStage(ctrl, stageName, input)
	if err != nil {
		return pipeline.StepResult{}, err
	}

	start := time.Now()
	result, err := ctrl.ExecuteStep(ctx, stage, input)
	if err != nil {
		return pipeline.StepResult{}, err
	}
	observeStep(result, time.Since(start))
	return result, nil
}

// observeStep feeds one step outcome into the metrics registry.
func observeStep(result pipeline.StepResult, elapsed time.Duration) {
	stage := string(result.Stage)
	status := "completed"
	switch {
	case result.Err != nil:
		status = "failed"
	case result.UserInputRequired:
		status = "paused"
	}
	metrics.IncStep(stage, status)
	metrics.ObserveStepDuration(stage, elapsed.Seconds())
	metrics.AddStepRetries(stage, result.RetryCount)
}

// RecordInput stores a user payload for a paused stage. An empty stageName
// targets the stage that requested input, falling back to the current one.
func (s *Service) RecordInput(userID, sessionID, stageName string, input pipeline.StepInput) (pipeline.State, error) {
	ctrl, err := s.get(userID, sessionID)
	if err != nil {
		return pipeline.State{}, err
	}

	stage, err := s.resolveStage(ctrl, stageName, &input)
	if err != nil {
		return pipeline.State{}, err
	}
	if err := ctrl.RecordInput(stage, input); err != nil {
		return pipeline.State{}, err
	}
	return ctrl.GetState(), nil
}

// Rollback moves the session back one stage.
func (s *Service) Rollback(userID, sessionID string) (pipeline.State, error) {
	ctrl, err := s.get(userID, sessionID)
	if err != nil {
		return pipeline.State{}, err
	}
	if err := ctrl.RollbackToPreviousStep(); err != nil {
		return pipeline.State{}, err
	}
	return ctrl.GetState(), nil
}

// Version returns the nth document snapshot of a session.
func (s *Service) Version(userID, sessionID string, n int) (pipeline.DocumentVersion, error) {
	ctrl, err := s.get(userID, sessionID)
	if err != nil {
		return pipeline.DocumentVersion{}, err
	}
	return ctrl.DocumentVersion(n)
}

// DownloadLatest renders the newest document snapshot as a DOCX file.
func (s *Service) DownloadLatest(userID, sessionID string) (string, []byte, error) {
	ctrl, err := s.get(userID, sessionID)
	if err != nil {
		return "", nil, err
	}

	version, ok := ctrl.LatestVersion()
	if !ok {
		return "", nil, ErrNoVersions
	}
	data, err := render.Build(version.Document)
	if err != nil {
		return "", nil, fmt.Errorf("render docx: %w", err)
	}
	return fmt.Sprintf("resume-v%d.docx", version.Number), data, nil
}

// Delete removes a session from the manager.
func (s *Service) Delete(userID, sessionID string) error {
	if _, err := s.get(userID, sessionID); err != nil {
		return err
	}
	s.Manager.Remove(sessionID)
	return nil
}

// get loads a controller and enforces ownership. Foreign sessions read as
// not found so session IDs stay unguessable.
func (s *Service) get(userID, sessionID string) (*pipeline.Controller, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}
	ctrl, ok := s.Manager.Get(sessionID)
	if !ok {
		return nil, ErrNotFound
	}
	if ctrl.Session().UserID() != userID {
		return nil, ErrNotFound
	}
	return ctrl, nil
}

// resolveStage picks the stage to act on. Explicit names win; otherwise a
// pending input request names the stage, then the session's current one.
func (s *Service) resolveStage(ctrl *pipeline.Controller, stageName string, input *pipeline.StepInput) (pipeline.Stage, error) {
	if stageName != "" {
		stage, err := pipeline.ParseStage(stageName)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return stage, nil
	}

	state := ctrl.GetState()
	if input != nil && state.InputRequest != nil && state.InputRequest.Kind == input.Kind {
		return state.InputRequest.Stage, nil
	}
	if state.Complete {
		return "", pipeline.ErrSessionComplete
	}
	return state.CurrentStage, nil
}
