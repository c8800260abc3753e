package pipeline

import (
	"time"

	"github.com/google/uuid"

	"resume-optimizer/internal/rewrite"
	"resume-optimizer/resume/model"
)

// errorLogCap bounds the per-session error ring buffer.
const errorLogCap = 50

// StepStatus is the lifecycle of one StepAttempt.
type StepStatus string

const (
	StatusRunning   StepStatus = "running"
	StatusCompleted StepStatus = "completed"
	StatusFailed    StepStatus = "failed"
)

// StepAttempt records one execution of a stage. A session may hold several
// attempts for the same stage; the last one determines the stage's
// completion status.
type StepAttempt struct {
	Stage      Stage      `json:"stage"`
	StartTime  time.Time  `json:"startTime"`
	EndTime    *time.Time `json:"endTime,omitempty"`
	Status     StepStatus `json:"status"`
	RetryCount int        `json:"retryCount"`
	Result     any        `json:"resultPayload,omitempty"`
	Error      string     `json:"errorMessage,omitempty"`
}

// DocumentVersion is an immutable snapshot of the document. Version numbers
// are 1-based and strictly increasing; snapshots are superseded by appending,
// never edited.
type DocumentVersion struct {
	Number    int            `json:"versionNumber"`
	Stage     Stage          `json:"producingStage"`
	Document  model.Document `json:"document"`
	CreatedAt time.Time      `json:"createdAt"`
	Changes   []string       `json:"changes,omitempty"`
}

// InputKind tags a recorded user input.
type InputKind string

const (
	InputSource           InputKind = "source_document"
	InputSections         InputKind = "missing_sections"
	InputProjectDecisions InputKind = "project_decisions"
)

// SectionsInput carries the user-supplied content for sections the parsed
// document lacked.
type SectionsInput struct {
	Summary    []string           `json:"summary,omitempty"`
	Skills     []string           `json:"skills,omitempty"`
	Experience []model.Experience `json:"experience,omitempty"`
	Education  []model.Education  `json:"education,omitempty"`
}

// ProjectDecisionsInput lists which suggested project replacements the user
// accepted, by project index.
type ProjectDecisionsInput struct {
	AcceptedIndexes []int `json:"acceptedIndexes"`
}

// StepInput is the optional payload passed to ExecuteStep.
type StepInput struct {
	Kind     InputKind              `json:"kind"`
	Source   *SourceInput           `json:"source,omitempty"`
	Sections *SectionsInput         `json:"sections,omitempty"`
	Projects *ProjectDecisionsInput `json:"projects,omitempty"`
}

// Clone deep-copies the input so recorded payloads stay immutable.
func (in StepInput) Clone() StepInput {
	out := StepInput{Kind: in.Kind}
	if in.Source != nil {
		src := *in.Source
		if in.Source.Data != nil {
			src.Data = make([]byte, len(in.Source.Data))
			copy(src.Data, in.Source.Data)
		}
		out.Source = &src
	}
	if in.Sections != nil {
		sec := SectionsInput{}
		sec.Summary = append([]string(nil), in.Sections.Summary...)
		sec.Skills = append([]string(nil), in.Sections.Skills...)
		for _, exp := range in.Sections.Experience {
			exp.Bullets = append([]string(nil), exp.Bullets...)
			sec.Experience = append(sec.Experience, exp)
		}
		sec.Education = append([]model.Education(nil), in.Sections.Education...)
		out.Sections = &sec
	}
	if in.Projects != nil {
		out.Projects = &ProjectDecisionsInput{
			AcceptedIndexes: append([]int(nil), in.Projects.AcceptedIndexes...),
		}
	}
	return out
}

// RecordedInput is the audit copy of a user-supplied payload; paused stages
// re-read the latest one for their stage when they resume.
type RecordedInput struct {
	Stage     Stage     `json:"stage"`
	Timestamp time.Time `json:"timestamp"`
	Kind      InputKind `json:"inputKind"`
	Payload   StepInput `json:"payload"`
}

// ErrorRecord is one entry of the session error log.
type ErrorRecord struct {
	Stage        Stage     `json:"stage"`
	Timestamp    time.Time `json:"timestamp"`
	Message      string    `json:"message"`
	Trace        string    `json:"trace,omitempty"`
	RetryAttempt int       `json:"retryAttemptNumber"`
}

// Session is the per-user execution context of one optimization run. All
// mutation goes through the Controller; Session itself is not safe for
// concurrent use.
type Session struct {
	id           string
	userID       string
	requirements string
	targetRole   string
	createdAt    time.Time

	currentStage Stage
	complete     bool
	stepHistory  []StepAttempt
	versions     []DocumentVersion
	inputs       []RecordedInput
	errorLog     []ErrorRecord

	// per-session re-entrancy flag; guarded by the controller mutex
	executing bool
	// open request of a paused stage, nil otherwise
	pendingInput *InputRequest

	source     *SourceInput
	sourceText string
	vocab      *rewrite.Vocabulary

	analysis      *AnalysisReport
	reanalysis    *AnalysisReport
	projectReport *ProjectReport
}

// NewSession creates a session positioned at the first stage. source may be
// nil when the caller will pass it to ExecuteStep instead.
func NewSession(userID, requirements, targetRole string, source *SourceInput) *Session {
	s := &Session{
		id:           uuid.NewString(),
		userID:       userID,
		requirements: requirements,
		targetRole:   targetRole,
		createdAt:    time.Now().UTC(),
		currentStage: StageParseResume,
	}
	if source != nil {
		cloned := StepInput{Kind: InputSource, Source: source}.Clone()
		s.source = cloned.Source
	}
	return s
}

func (s *Session) ID() string         { return s.id }
func (s *Session) UserID() string     { return s.userID }
func (s *Session) TargetRole() string { return s.targetRole }
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

func (s *Session) appendAttempt(stage Stage) *StepAttempt {
	s.stepHistory = append(s.stepHistory, StepAttempt{
		Stage:     stage,
		StartTime: time.Now().UTC(),
		Status:    StatusRunning,
	})
	return &s.stepHistory[len(s.stepHistory)-1]
}

// appendVersion is the only place version numbers are assigned, which keeps
// them 1-based and strictly increasing even across rollbacks.
func (s *Session) appendVersion(stage Stage, doc model.Document, changes []string) DocumentVersion {
	v := DocumentVersion{
		Number:    len(s.versions) + 1,
		Stage:     stage,
		Document:  doc.Clone(),
		CreatedAt: time.Now().UTC(),
		Changes:   append([]string(nil), changes...),
	}
	s.versions = append(s.versions, v)
	return v
}

func (s *Session) recordInput(stage Stage, input StepInput) {
	s.inputs = append(s.inputs, RecordedInput{
		Stage:     stage,
		Timestamp: time.Now().UTC(),
		Kind:      input.Kind,
		Payload:   input.Clone(),
	})
}

// latestInput returns the most recent recorded input of the given kind for a
// stage.
func (s *Session) latestInput(stage Stage, kind InputKind) *StepInput {
	for i := len(s.inputs) - 1; i >= 0; i-- {
		if s.inputs[i].Stage == stage && s.inputs[i].Kind == kind {
			payload := s.inputs[i].Payload.Clone()
			return &payload
		}
	}
	return nil
}

func (s *Session) logError(rec ErrorRecord) {
	s.errorLog = append(s.errorLog, rec)
	if len(s.errorLog) > errorLogCap {
		s.errorLog = s.errorLog[len(s.errorLog)-errorLogCap:]
	}
}

// recentErrors returns the most recent n error messages, newest last.
func (s *Session) recentErrors(n int) []string {
	if n > len(s.errorLog) {
		n = len(s.errorLog)
	}
	out := make([]string, 0, n)
	for _, rec := range s.errorLog[len(s.errorLog)-n:] {
		out = append(out, rec.Message)
	}
	return out
}

// currentDocument returns the latest snapshot, or an empty document when
// nothing has been parsed yet.
func (s *Session) currentDocument() model.Document {
	if len(s.versions) == 0 {
		return model.Document{}
	}
	return s.versions[len(s.versions)-1].Document.Clone()
}

// attempted reports whether the stage has at least one attempt.
func (s *Session) attempted(stage Stage) bool {
	for _, a := range s.stepHistory {
		if a.Stage == stage {
			return true
		}
	}
	return false
}

// dropLastCompleted removes the most recent completed attempt for a stage so
// the stage reads as not-completed again. Reports whether one was removed.
func (s *Session) dropLastCompleted(stage Stage) bool {
	for i := len(s.stepHistory) - 1; i >= 0; i-- {
		if s.stepHistory[i].Stage == stage && s.stepHistory[i].Status == StatusCompleted {
			s.stepHistory = append(s.stepHistory[:i], s.stepHistory[i+1:]...)
			return true
		}
	}
	return false
}
