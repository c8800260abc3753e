package optimizations

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"resume-optimizer/internal/documents"
	"resume-optimizer/internal/pipeline"
	"resume-optimizer/internal/queue"
	"resume-optimizer/internal/shared/metrics"
	"resume-optimizer/internal/shared/storage/object"
	"resume-optimizer/internal/shared/telemetry"
	"resume-optimizer/internal/shared/util"
)

const (
	docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

	// maxRunSteps bounds the drive loop. A clean run needs nine executions
	// (eight stages plus one resume per pause); the headroom absorbs resumed
	// pauses without letting a wedged session spin forever.
	maxRunSteps = 24
)

// Service runs the whole pipeline headlessly over stored documents. Runs are
// queued rows; a worker (or an inline goroutine when no queue is configured)
// drives each one to a terminal status.
type Service struct {
	Repo   Repo
	Docs   *documents.Service
	Store  object.ObjectStore
	Queue  queue.Client
	Collab pipeline.Collaborators
}

// CreateParams carries everything a headless run needs up front, including
// answers for pauses the pipeline may hit.
type CreateParams struct {
	DocumentID    string
	Requirements  string
	TargetRole    string
	SectionInputs *pipeline.SectionsInput
	ProjectPolicy string
}

// Create enqueues a new optimization run. With a queue configured the
// message goes to the broker for a worker to pick up; otherwise processing
// starts on a background goroutine, like document analysis used to work
// before the worker existed.
func (s *Service) Create(ctx context.Context, userID string, p CreateParams) (Optimization, error) {
	userID = strings.TrimSpace(userID)
	documentID := strings.TrimSpace(p.DocumentID)
	requirements := strings.TrimSpace(p.Requirements)
	if userID == "" {
		return Optimization{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if documentID == "" {
		return Optimization{}, fmt.Errorf("%w: document id is required", ErrInvalidInput)
	}
	if requirements == "" {
		return Optimization{}, fmt.Errorf("%w: requirements text is required", ErrInvalidInput)
	}
	policy := strings.TrimSpace(p.ProjectPolicy)
	if policy == "" {
		policy = PolicyApplyAll
	}
	if !ValidPolicy(policy) {
		return Optimization{}, fmt.Errorf("%w: unknown project policy %q", ErrInvalidInput, p.ProjectPolicy)
	}

	// Verify ownership before queueing so a bad document ID fails the
	// request, not the run.
	if _, err := s.Docs.Get(ctx, userID, documentID); err != nil {
		return Optimization{}, err
	}

	opt := Optimization{
		ID:            uuid.NewString(),
		UserID:        userID,
		DocumentID:    documentID,
		TargetRole:    strings.TrimSpace(p.TargetRole),
		Requirements:  requirements,
		SectionInputs: p.SectionInputs,
		ProjectPolicy: policy,
		Status:        StatusQueued,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.Repo.Create(ctx, opt); err != nil {
		return Optimization{}, err
	}

	telemetry.Info("optimization.created", map[string]any{
		"request_id":      requestIDFromContext(ctx),
		"user_id":         userID,
		"document_id":     documentID,
		"optimization_id": opt.ID,
		"project_policy":  policy,
	})

	if s.Queue != nil {
		msg := queue.Message{
			OptimizationID: opt.ID,
			RequestID:      requestIDFromContext(ctx),
			EnqueuedAt:     time.Now().UTC().Format(time.RFC3339),
			Version:        1,
		}
		err := s.Queue.Send(ctx, msg)
		if err == nil {
			return opt, nil
		}
		telemetry.Warn("optimization.enqueue_failed", map[string]any{
			"optimization_id": opt.ID,
			"error":           err.Error(),
		})
		// fall back to inline processing so the run still happens
	}

	go s.processAsync(backgroundWithRequestID(ctx), opt.ID)

	return opt, nil
}

// Get returns a run scoped to its owner.
func (s *Service) Get(ctx context.Context, userID, optimizationID string) (Optimization, error) {
	if userID == "" || optimizationID == "" {
		return Optimization{}, fmt.Errorf("%w: user id and optimization id are required", ErrInvalidInput)
	}
	return s.Repo.GetForUser(ctx, userID, optimizationID)
}

// List returns a user's runs newest-first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Optimization, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

// OpenArtifact streams the rendered document of a completed run. The caller
// closes the body.
func (s *Service) OpenArtifact(ctx context.Context, userID, optimizationID string) (Optimization, io.ReadCloser, error) {
	opt, err := s.Get(ctx, userID, optimizationID)
	if err != nil {
		return Optimization{}, nil, err
	}
	if opt.Status != StatusCompleted || opt.ResultKey == "" {
		return Optimization{}, nil, ErrNotReady
	}
	if s.Store == nil {
		return Optimization{}, nil, errors.New("object store is not configured")
	}
	body, err := s.Store.Open(ctx, opt.ResultKey)
	if err != nil {
		return Optimization{}, nil, fmt.Errorf("open artifact %s: %w", opt.ResultKey, err)
	}
	return opt, body, nil
}

func (s *Service) processAsync(ctx context.Context, optimizationID string) {
	defer func() {
		if r := recover(); r != nil {
			s.failRun(ctx, Optimization{ID: optimizationID}, pipeline.CategoryValidation, fmt.Errorf("panic: %v", r), nil)
		}
	}()
	if err := s.Process(ctx, optimizationID); err != nil {
		// No queue redelivery on the inline path, so a pre-marking error is
		// final here.
		s.failRun(ctx, Optimization{ID: optimizationID}, pipeline.Categorize(err), err, nil)
	}
}

// Process drives one run to a terminal status. It returns an error only
// while nothing has been recorded yet, so a redelivered queue message can
// retry; once the row is marked processing every outcome, success or
// failure, lands on the row and Process returns nil.
func (s *Service) Process(ctx context.Context, optimizationID string) error {
	opt, err := s.Repo.GetByID(ctx, optimizationID)
	if err != nil {
		return fmt.Errorf("optimization lookup id=%s: %w", optimizationID, err)
	}
	if opt.Terminal() {
		telemetry.Info("optimization.skip_terminal", map[string]any{
			"request_id":      requestIDFromContext(ctx),
			"optimization_id": opt.ID,
			"status":          opt.Status,
		})
		return nil
	}

	startedAt := time.Now().UTC()
	if err := s.Repo.MarkProcessing(ctx, opt.ID, startedAt); err != nil {
		return fmt.Errorf("mark processing id=%s: %w", opt.ID, err)
	}
	telemetry.Info("optimization.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"user_id":           opt.UserID,
		"document_id":       opt.DocumentID,
		"optimization_id":   opt.ID,
		"status":            StatusProcessing,
		"status_transition": "queued->processing",
	})

	s.runPipeline(ctx, opt, startedAt)
	return nil
}

func (s *Service) runPipeline(ctx context.Context, opt Optimization, startedAt time.Time) {
	if s.Docs == nil {
		s.failRun(ctx, opt, pipeline.CategoryValidation, errors.New("document service is not configured"), &startedAt)
		return
	}
	doc, text, err := s.Docs.SourceText(ctx, opt.UserID, opt.DocumentID)
	if err != nil {
		s.failRun(ctx, opt, pipeline.Categorize(err), fmt.Errorf("document lookup id=%s: %w", opt.DocumentID, err), &startedAt)
		return
	}

	collab := s.Collab
	if s.Store != nil {
		collab.Artifacts = runArtifacts{store: s.Store, userID: opt.UserID}
	}
	sess := pipeline.NewSession(opt.UserID, opt.Requirements, opt.TargetRole, &pipeline.SourceInput{
		Filename: doc.FileName,
		Text:     text,
	})
	ctrl := pipeline.NewController(sess, collab)

	report := map[string]any{}
	var output pipeline.OutputResult
	haveOutput := false
	supplied := map[pipeline.Stage]bool{}

	for steps := 0; ; steps++ {
		if steps >= maxRunSteps {
			s.failRun(ctx, opt, pipeline.CategoryValidation, fmt.Errorf("run exceeded %d steps without completing", maxRunSteps), &startedAt)
			return
		}
		state := ctrl.GetState()
		if state.Complete {
			break
		}

		var input *pipeline.StepInput
		if state.AwaitingInput && state.InputRequest != nil {
			input = resolvePauseInput(opt, state.InputRequest)
			if input == nil {
				s.failRun(ctx, opt, pipeline.CategoryValidation,
					fmt.Errorf("stage %s requires user input and none was pre-supplied", state.InputRequest.Stage), &startedAt)
				return
			}
			if supplied[state.InputRequest.Stage] {
				s.failRun(ctx, opt, pipeline.CategoryValidation,
					fmt.Errorf("stage %s paused again after input was supplied", state.InputRequest.Stage), &startedAt)
				return
			}
			supplied[state.InputRequest.Stage] = true
		}

		stepStart := time.Now()
		result, err := ctrl.ExecuteStep(ctx, state.CurrentStage, input)
		if err != nil {
			s.failRun(ctx, opt, pipeline.Categorize(err), fmt.Errorf("execute %s: %w", state.CurrentStage, err), &startedAt)
			return
		}
		observeStep(result, time.Since(stepStart))
		if result.Err != nil {
			s.failRun(ctx, opt, result.Err.Category, errors.New(result.Err.Message), &startedAt)
			return
		}
		captureReport(report, result)
		if out, ok := result.Data.(pipeline.OutputResult); ok {
			output = out
			haveOutput = true
		}
	}

	finishReport(report, ctrl)

	artifactKey := ""
	if haveOutput {
		artifactKey = output.ArtifactKey
	}

	completedAt := time.Now().UTC()
	if err := s.Repo.Complete(ctx, opt.ID, report, artifactKey, completedAt); err != nil {
		s.failRun(ctx, opt, pipeline.Categorize(err), fmt.Errorf("set optimization result failed: %w", err), &startedAt)
		return
	}
	metrics.IncOptimization("completed")
	telemetry.Info("optimization.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"user_id":           opt.UserID,
		"document_id":       opt.DocumentID,
		"optimization_id":   opt.ID,
		"status":            StatusCompleted,
		"status_transition": "processing->completed",
		"duration_ms":       durationMs(&startedAt, &completedAt),
		"artifact_key":      artifactKey,
	})
}

// resolvePauseInput answers a pause from the pre-supplied run parameters.
// A nil return means the run has no answer and must fail.
func resolvePauseInput(opt Optimization, req *pipeline.InputRequest) *pipeline.StepInput {
	switch req.Kind {
	case pipeline.InputSections:
		if opt.SectionInputs == nil {
			return nil
		}
		return &pipeline.StepInput{Kind: pipeline.InputSections, Sections: opt.SectionInputs}
	case pipeline.InputProjectDecisions:
		decisions := &pipeline.ProjectDecisionsInput{AcceptedIndexes: []int{}}
		if opt.ProjectPolicy != PolicySkip {
			for _, v := range req.Suggestions {
				decisions.AcceptedIndexes = append(decisions.AcceptedIndexes, v.Index)
			}
		}
		return &pipeline.StepInput{Kind: pipeline.InputProjectDecisions, Projects: decisions}
	}
	return nil
}

func captureReport(report map[string]any, result pipeline.StepResult) {
	switch data := result.Data.(type) {
	case pipeline.ParseResult:
		report["parse"] = data
	case pipeline.AnalysisReport:
		report["analysis"] = data
	case pipeline.SectionsResult:
		report["sections"] = data
	case pipeline.ProjectsResult:
		// keep the post-decision version, not the pause preview
		if !result.UserInputRequired {
			report["projects"] = data
		}
	case pipeline.ReAnalysisReport:
		report["reanalysis"] = data
	case pipeline.RewritingReport:
		// span texts stay out of the row; the document versions hold them
		report["rewriting"] = map[string]any{
			"spanCount":     len(data.Spans),
			"acceptedCount": data.AcceptedCount,
			"fallbackCount": data.FallbackCount,
		}
	case pipeline.FinalizeResult:
		report["finalization"] = data
	case pipeline.OutputResult:
		report["output"] = data
	}
}

func finishReport(report map[string]any, ctrl *pipeline.Controller) {
	state := ctrl.GetState()
	var log []string
	for n := 1; n <= state.VersionCount; n++ {
		v, err := ctrl.DocumentVersion(n)
		if err != nil {
			continue
		}
		for _, change := range v.Changes {
			log = append(log, fmt.Sprintf("v%d: %s", v.Number, change))
		}
	}
	if len(log) > 0 {
		report["changeLog"] = log
	}
	if latest, ok := ctrl.LatestVersion(); ok {
		report["finalDocument"] = latest.Document
		report["finalVersion"] = latest.Number
	}
}

func (s *Service) failRun(ctx context.Context, opt Optimization, category pipeline.Category, err error, startedAt *time.Time) {
	msg := fmt.Sprintf("%s: %s", category, sanitizeError(err))
	completedAt := time.Now().UTC()
	if updateErr := s.Repo.Fail(context.Background(), opt.ID, msg, completedAt); updateErr != nil {
		telemetry.Error("optimization.fail_update", map[string]any{
			"optimization_id": opt.ID,
			"error":           updateErr.Error(),
			"original_error":  sanitizeError(err),
		})
	}
	metrics.IncOptimization("failed")
	telemetry.Info("optimization.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"user_id":           opt.UserID,
		"document_id":       opt.DocumentID,
		"optimization_id":   opt.ID,
		"status":            StatusFailed,
		"status_transition": "processing->failed",
		"category":          string(category),
		"duration_ms":       durationMs(startedAt, &completedAt),
	})
}

func durationMs(startedAt, completedAt *time.Time) float64 {
	if startedAt == nil || completedAt == nil {
		return 0
	}
	return float64(completedAt.Sub(*startedAt).Microseconds()) / 1000.0
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}

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

// runArtifacts satisfies pipeline.ArtifactStore for a single run, keying
// artifacts under the owner's hashed user prefix.
type runArtifacts struct {
	store  object.ObjectStore
	userID string
}

func (a runArtifacts) SaveArtifact(ctx context.Context, name string, data []byte) (string, error) {
	key := path.Join("artifacts", util.HashUserKey(a.userID), name)
	if _, err := a.store.SaveWithKey(ctx, key, docxContentType, bytes.NewReader(data)); err != nil {
		return "", err
	}
	return key, nil
}
