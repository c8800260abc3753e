// Package pipeline implements the session-scoped optimization workflow: a
// strictly linear eight-stage state machine with pause points for user
// input, bounded failure recovery, and an immutable arena of document
// snapshots. It is an in-process orchestration library; transports wrap it
// elsewhere.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Collaborators are the external capabilities a controller drives. Parser,
// Scorer, Projects, Embedder and Generator are required; Artifacts is
// optional.
type Collaborators struct {
	Parser    Parser
	Scorer    Scorer
	Projects  ProjectAnalyzer
	Embedder  Embedder
	Generator Generator
	Artifacts ArtifactStore
}

// Embedder mirrors rewrite.Embedder; declared here so Collaborators reads as
// one set of ports.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// StepError describes an exhausted failure: its category, the recovery
// notice and the fallback options the caller should surface.
type StepError struct {
	Category        Category `json:"category"`
	Message         string   `json:"message"`
	Notice          string   `json:"notice"`
	FallbackOptions []string `json:"fallbackOptions,omitempty"`
}

// InputRequest tells the caller what a paused stage needs before it can
// resume.
type InputRequest struct {
	Stage           Stage            `json:"stage"`
	Kind            InputKind        `json:"kind"`
	Message         string           `json:"message"`
	MissingSections []string         `json:"missingSections,omitempty"`
	Suggestions     []ProjectVerdict `json:"suggestions,omitempty"`
}

// StepResult is the outcome of one ExecuteStep call.
type StepResult struct {
	Success           bool          `json:"success"`
	Stage             Stage         `json:"stage"`
	Data              any           `json:"data,omitempty"`
	Err               *StepError    `json:"error,omitempty"`
	NextStage         *Stage        `json:"nextStage,omitempty"`
	Progress          *Progress     `json:"progressUpdate,omitempty"`
	UserInputRequired bool          `json:"userInputRequired,omitempty"`
	InputRequest      *InputRequest `json:"inputRequest,omitempty"`
	RetryCount        int           `json:"retryCount,omitempty"`
}

// StepSummary is the read-only view of a StepAttempt exposed through State.
type StepSummary struct {
	Stage      Stage      `json:"stage"`
	Status     StepStatus `json:"status"`
	RetryCount int        `json:"retryCount"`
	StartTime  time.Time  `json:"startTime"`
	EndTime    *time.Time `json:"endTime,omitempty"`
	Error      string     `json:"errorMessage,omitempty"`
}

// State is the caller-facing snapshot of a session.
type State struct {
	SessionID     string        `json:"sessionId"`
	UserID        string        `json:"userId"`
	TargetRole    string        `json:"targetRole,omitempty"`
	CurrentStage  Stage         `json:"currentStage"`
	Complete      bool          `json:"complete"`
	AwaitingInput bool          `json:"awaitingInput"`
	InputRequest  *InputRequest `json:"inputRequest,omitempty"`
	Steps         []StepSummary `json:"steps"`
	VersionCount  int           `json:"versionCount"`
	RecentErrors  []string      `json:"recentErrors,omitempty"`
	Progress      Progress      `json:"progress"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// StateListener observes committed state mutations.
type StateListener func(State)

// ProgressListener observes progress changes.
type ProgressListener func(Progress)

// Controller executes stages against exactly one Session. Stages run
// strictly sequentially per session; concurrent ExecuteStep calls fail fast
// with ErrStepInFlight. Distinct sessions share nothing and may run
// concurrently.
type Controller struct {
	mu      sync.Mutex
	session *Session
	collab  Collaborators

	stateListeners    []StateListener
	progressListeners []ProgressListener
}

// NewController wires a controller around a session.
func NewController(session *Session, collab Collaborators) *Controller {
	return &Controller{session: session, collab: collab}
}

// Session returns the controlled session.
func (c *Controller) Session() *Session { return c.session }

// OnStateChange registers a synchronous state listener. Listeners run after
// each committed mutation, in registration order, on the executing
// goroutine.
func (c *Controller) OnStateChange(fn StateListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateListeners = append(c.stateListeners, fn)
}

// OnProgressChange registers a synchronous progress listener.
func (c *Controller) OnProgressChange(fn ProgressListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progressListeners = append(c.progressListeners, fn)
}

// GetState snapshots the session for the caller.
func (c *Controller) GetState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// GetProgress reports weighted completion.
func (c *Controller) GetProgress() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.progressLocked()
}

// DocumentVersion returns snapshot n (1-based).
func (c *Controller) DocumentVersion(n int) (DocumentVersion, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 1 || n > len(c.session.versions) {
		return DocumentVersion{}, fmt.Errorf("%w: %d", ErrNoSuchVersion, n)
	}
	v := c.session.versions[n-1]
	v.Document = v.Document.Clone()
	return v, nil
}

// LatestVersion returns the newest snapshot, if any.
func (c *Controller) LatestVersion() (DocumentVersion, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.session.versions) == 0 {
		return DocumentVersion{}, false
	}
	v := c.session.versions[len(c.session.versions)-1]
	v.Document = v.Document.Clone()
	return v, true
}

// RecordInput stores a user payload for a stage so a paused stage can resume
// on its next execution.
func (c *Controller) RecordInput(stage Stage, input StepInput) error {
	if !stage.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStage, stage)
	}
	c.mu.Lock()
	c.session.recordInput(stage, input)
	if c.session.pendingInput != nil && c.session.pendingInput.Stage == stage {
		c.session.pendingInput = nil
	}
	state := c.stateLocked()
	listeners := append([]StateListener(nil), c.stateListeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(state)
	}
	return nil
}

// ExecuteStep runs one stage. Stage failures never propagate: they are
// retried per the category's recovery strategy and, once exhausted, returned
// as a failed StepResult with an ErrorRecord trail. The returned error is
// reserved for contract misuse (unknown stage, completed session, re-entrant
// call).
func (c *Controller) ExecuteStep(ctx context.Context, stage Stage, input *StepInput) (StepResult, error) {
	if !stage.Valid() {
		return StepResult{}, fmt.Errorf("%w: %q", ErrUnknownStage, stage)
	}

	c.mu.Lock()
	if c.session.complete {
		c.mu.Unlock()
		return StepResult{}, ErrSessionComplete
	}
	if c.session.executing {
		c.mu.Unlock()
		return StepResult{}, ErrStepInFlight
	}
	c.session.executing = true
	if input != nil {
		c.session.recordInput(stage, *input)
	}
	attemptIndex := len(c.session.stepHistory)
	c.session.appendAttempt(stage)
	progressBefore := c.session.progressLocked()
	startState := c.stateLocked()
	stateListeners := append([]StateListener(nil), c.stateListeners...)
	progressListeners := append([]ProgressListener(nil), c.progressListeners...)
	c.mu.Unlock()

	for _, fn := range stateListeners {
		fn(startState)
	}

	outcome, stepErr := c.runWithRecovery(ctx, stage, attemptIndex)

	c.mu.Lock()
	attempt := &c.session.stepHistory[attemptIndex]
	now := time.Now().UTC()
	attempt.EndTime = &now

	result := StepResult{Stage: stage}

	switch {
	case stepErr != nil:
		attempt.Status = StatusFailed
		attempt.Error = stepErr.Message
		result.Err = stepErr
	case outcome.inputRequest != nil:
		// paused: the attempt's automated portion is done, the stage holds
		attempt.Status = StatusCompleted
		if outcome.payload != nil {
			attempt.Result = outcome.payload
		} else {
			attempt.Result = outcome.inputRequest
		}
		c.session.pendingInput = outcome.inputRequest
		result.Success = true
		result.UserInputRequired = true
		result.InputRequest = outcome.inputRequest
		result.Data = outcome.payload
	default:
		attempt.Status = StatusCompleted
		attempt.Result = outcome.payload
		result.Success = true
		result.Data = outcome.payload
		if c.session.pendingInput != nil && c.session.pendingInput.Stage == stage {
			c.session.pendingInput = nil
		}
		if outcome.doc != nil {
			c.session.appendVersion(stage, *outcome.doc, outcome.changes)
		}
		if next, ok := stage.Next(); ok {
			c.session.currentStage = next
			result.NextStage = &next
		} else {
			c.session.complete = true
			c.session.currentStage = StageComplete
		}
	}

	result.RetryCount = attempt.RetryCount
	progress := c.session.progressLocked()
	result.Progress = &progress
	endState := c.stateLocked()
	c.session.executing = false
	c.mu.Unlock()

	for _, fn := range stateListeners {
		fn(endState)
	}
	if progress != progressBefore {
		for _, fn := range progressListeners {
			fn(progress)
		}
	}
	return result, nil
}

// RollbackToPreviousStep moves the session back one stage so the user can
// redo a decision. The rolled-back stage's most recent completed attempt is
// removed; document versions are kept for audit.
func (c *Controller) RollbackToPreviousStep() error {
	c.mu.Lock()
	if c.session.executing {
		c.mu.Unlock()
		return ErrStepInFlight
	}

	var target Stage
	if c.session.complete {
		target = stageOrder[len(stageOrder)-1]
	} else {
		prev, ok := c.session.currentStage.Prev()
		if !ok {
			c.mu.Unlock()
			return ErrNothingToRollback
		}
		target = prev
	}

	c.session.dropLastCompleted(target)
	c.session.currentStage = target
	c.session.complete = false
	c.session.pendingInput = nil

	state := c.stateLocked()
	progress := c.session.progressLocked()
	stateListeners := append([]StateListener(nil), c.stateListeners...)
	progressListeners := append([]ProgressListener(nil), c.progressListeners...)
	c.mu.Unlock()

	for _, fn := range stateListeners {
		fn(state)
	}
	for _, fn := range progressListeners {
		fn(progress)
	}
	return nil
}

// runWithRecovery executes the stage logic, retrying per the recovery
// strategy of each failure's category. Every failure lands in the error log;
// the retry count lives on the already-appended attempt.
func (c *Controller) runWithRecovery(ctx context.Context, stage Stage, attemptIndex int) (stageOutcome, *StepError) {
	for {
		outcome, err := c.safeRunStage(ctx, stage)
		if err == nil {
			return outcome, nil
		}

		category := Categorize(err)
		strategy := strategyFor(category)

		c.mu.Lock()
		retry := c.session.stepHistory[attemptIndex].RetryCount
		c.session.logError(ErrorRecord{
			Stage:        stage,
			Timestamp:    time.Now().UTC(),
			Message:      err.Error(),
			RetryAttempt: retry,
		})
		exhausted := retry >= strategy.RetryAttempts
		if !exhausted {
			c.session.stepHistory[attemptIndex].RetryCount = retry + 1
		}
		c.mu.Unlock()

		if exhausted {
			return stageOutcome{}, &StepError{
				Category:        category,
				Message:         err.Error(),
				Notice:          strategy.Notice,
				FallbackOptions: strategy.FallbackOptions,
			}
		}
		if waitErr := waitBackoff(ctx, retry+1); waitErr != nil {
			waitCat := Categorize(waitErr)
			waitStrategy := strategyFor(waitCat)
			return stageOutcome{}, &StepError{
				Category:        waitCat,
				Message:         waitErr.Error(),
				Notice:          waitStrategy.Notice,
				FallbackOptions: waitStrategy.FallbackOptions,
			}
		}
	}
}

// safeRunStage converts collaborator panics into stage errors so the
// attempt always transitions out of running and the session stays usable.
func (c *Controller) safeRunStage(ctx context.Context, stage Stage) (outcome stageOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage %s panicked: %v", stage, r)
		}
	}()
	return c.runStage(ctx, stage)
}

// stateLocked builds the read snapshot. Caller holds the mutex.
func (c *Controller) stateLocked() State {
	s := c.session
	steps := make([]StepSummary, 0, len(s.stepHistory))
	for _, a := range s.stepHistory {
		steps = append(steps, StepSummary{
			Stage:      a.Stage,
			Status:     a.Status,
			RetryCount: a.RetryCount,
			StartTime:  a.StartTime,
			EndTime:    a.EndTime,
			Error:      a.Error,
		})
	}
	return State{
		SessionID:     s.id,
		UserID:        s.userID,
		TargetRole:    s.targetRole,
		CurrentStage:  s.currentStage,
		Complete:      s.complete,
		AwaitingInput: s.pendingInput != nil,
		InputRequest:  s.pendingInput,
		Steps:         steps,
		VersionCount:  len(s.versions),
		RecentErrors:  s.recentErrors(5),
		Progress:      s.progressLocked(),
		CreatedAt:     s.createdAt,
	}
}
