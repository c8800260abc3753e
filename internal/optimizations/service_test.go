package optimizations

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"resume-optimizer/internal/analysis"
	"resume-optimizer/internal/documents"
	"resume-optimizer/internal/llm/placeholder"
	"resume-optimizer/internal/pipeline"
	"resume-optimizer/internal/shared/storage/object/local"
	"resume-optimizer/resume/model"
)

const completeResumeText = `John Doe
john.doe@example.com | +1 555 123 4567

Summary
Backend engineer focused on Go services.

Skills
Go, PostgreSQL, Docker, Kubernetes

Experience
Acme Corp, Senior Engineer, 2019 - 2023
- Built payment processing in Go serving 2M requests per day
- Reduced API latency by 40% through query optimization

Projects
Inventory Tracker
- Built with Go and PostgreSQL

Education
State University, BSc Computer Science
`

const gappyResumeText = `Jane Smith
jane@example.com

Skills
Go, Docker

Experience
Beta LLC, Engineer, 2020 - 2024
- Shipped internal tooling used by 30 teams
`

func newTestService(t *testing.T) (*Service, *documents.Service) {
	t.Helper()
	store := local.New(t.TempDir())
	docs := &documents.Service{
		Store:           store,
		Repo:            documents.NewMemoryRepo(),
		StorageProvider: "local",
	}
	svc := &Service{
		Repo:  NewMemoryRepo(),
		Docs:  docs,
		Store: store,
		Collab: pipeline.Collaborators{
			Parser:    analysis.NewHeuristicParser(),
			Scorer:    analysis.NewHeuristicScorer(),
			Projects:  analysis.NewHeuristicProjectAnalyzer(),
			Embedder:  placeholder.NewEmbedder(),
			Generator: analysis.NewHeuristicGenerator(),
		},
	}
	return svc, docs
}

func uploadDoc(t *testing.T, docs *documents.Service, text string) documents.Document {
	t.Helper()
	doc, err := docs.Upload(context.Background(), "user-1", "resume.txt", strings.NewReader(text))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	return doc
}

func seedRun(t *testing.T, svc *Service, opt Optimization) Optimization {
	t.Helper()
	if opt.ID == "" {
		opt.ID = "opt-1"
	}
	if opt.UserID == "" {
		opt.UserID = "user-1"
	}
	if opt.Status == "" {
		opt.Status = StatusQueued
	}
	if opt.ProjectPolicy == "" {
		opt.ProjectPolicy = PolicyApplyAll
	}
	if opt.CreatedAt.IsZero() {
		opt.CreatedAt = time.Now().UTC()
	}
	if err := svc.Repo.Create(context.Background(), opt); err != nil {
		t.Fatalf("create run: %v", err)
	}
	return opt
}

func TestCreateValidation(t *testing.T) {
	svc, docs := newTestService(t)
	ctx := context.Background()
	doc := uploadDoc(t, docs, completeResumeText)

	cases := []struct {
		name   string
		params CreateParams
		want   error
	}{
		{"missing document", CreateParams{Requirements: "Go"}, ErrInvalidInput},
		{"missing requirements", CreateParams{DocumentID: doc.ID}, ErrInvalidInput},
		{"unknown policy", CreateParams{DocumentID: doc.ID, Requirements: "Go", ProjectPolicy: "maybe"}, ErrInvalidInput},
		{"unknown document", CreateParams{DocumentID: "nope", Requirements: "Go"}, documents.ErrNotFound},
	}
	for _, tc := range cases {
		if _, err := svc.Create(ctx, "user-1", tc.params); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestProcessCompletesRun(t *testing.T) {
	svc, docs := newTestService(t)
	ctx := context.Background()
	doc := uploadDoc(t, docs, completeResumeText)

	opt := seedRun(t, svc, Optimization{
		DocumentID:   doc.ID,
		TargetRole:   "Backend Engineer",
		Requirements: "Go, PostgreSQL, Docker",
	})

	if err := svc.Process(ctx, opt.ID); err != nil {
		t.Fatalf("process: %v", err)
	}

	got, err := svc.Repo.GetByID(ctx, opt.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", got.Status, got.ErrorMessage)
	}
	if got.StartedAt == nil || got.CompletedAt == nil {
		t.Fatalf("expected timestamps, got startedAt=%v completedAt=%v", got.StartedAt, got.CompletedAt)
	}
	if got.ResultKey == "" {
		t.Fatalf("expected an artifact key")
	}
	if _, ok := got.Report["analysis"]; !ok {
		t.Fatalf("expected analysis in report, got keys %v", reportKeys(got.Report))
	}
	if _, ok := got.Report["finalDocument"]; !ok {
		t.Fatalf("expected finalDocument in report, got keys %v", reportKeys(got.Report))
	}

	body, err := svc.Store.Open(ctx, got.ResultKey)
	if err != nil {
		t.Fatalf("open artifact: %v", err)
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("PK")) {
		t.Fatalf("expected a zip container, got % x", data[:min(4, len(data))])
	}
}

func TestProcessFailsOnUnansweredPause(t *testing.T) {
	svc, docs := newTestService(t)
	ctx := context.Background()
	doc := uploadDoc(t, docs, gappyResumeText)

	opt := seedRun(t, svc, Optimization{
		DocumentID:   doc.ID,
		Requirements: "Go",
	})

	if err := svc.Process(ctx, opt.ID); err != nil {
		t.Fatalf("process: %v", err)
	}

	got, err := svc.Repo.GetByID(ctx, opt.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if !strings.Contains(got.ErrorMessage, "validation_error") {
		t.Fatalf("expected a validation_error message, got %q", got.ErrorMessage)
	}
	if !strings.Contains(got.ErrorMessage, string(pipeline.StageMissingSectionsInput)) {
		t.Fatalf("expected the paused stage in the message, got %q", got.ErrorMessage)
	}
}

func TestProcessUsesPreSuppliedSections(t *testing.T) {
	svc, docs := newTestService(t)
	ctx := context.Background()
	doc := uploadDoc(t, docs, gappyResumeText)

	opt := seedRun(t, svc, Optimization{
		DocumentID:   doc.ID,
		Requirements: "Go, Docker",
		SectionInputs: &pipeline.SectionsInput{
			Summary: []string{"Engineer with a tooling focus."},
			Education: []model.Education{
				{Institution: "Tech College", Degree: "BSc", Start: "2016", End: "2020"},
			},
		},
	})

	if err := svc.Process(ctx, opt.ID); err != nil {
		t.Fatalf("process: %v", err)
	}

	got, err := svc.Repo.GetByID(ctx, opt.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", got.Status, got.ErrorMessage)
	}
	sections, ok := got.Report["sections"].(pipeline.SectionsResult)
	if !ok {
		t.Fatalf("expected a sections result, got %T", got.Report["sections"])
	}
	if len(sections.AppliedSections) == 0 {
		t.Fatalf("expected applied sections, got %+v", sections)
	}
}

func TestProcessSkipsTerminalRuns(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	opt := seedRun(t, svc, Optimization{
		DocumentID:   "doc-x",
		Requirements: "Go",
		Status:       StatusCompleted,
	})

	if err := svc.Process(ctx, opt.ID); err != nil {
		t.Fatalf("process: %v", err)
	}
	got, err := svc.Repo.GetByID(ctx, opt.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got.StartedAt != nil {
		t.Fatalf("terminal run should not have been re-marked, got startedAt=%v", got.StartedAt)
	}
}

func TestCreateRunsInlineWithoutQueue(t *testing.T) {
	svc, docs := newTestService(t)
	ctx := context.Background()
	doc := uploadDoc(t, docs, completeResumeText)

	opt, err := svc.Create(ctx, "user-1", CreateParams{
		DocumentID:   doc.ID,
		Requirements: "Go, PostgreSQL",
		TargetRole:   "Backend Engineer",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if opt.Status != StatusQueued {
		t.Fatalf("expected queued, got %s", opt.Status)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		got, err := svc.Repo.GetByID(ctx, opt.ID)
		if err != nil {
			t.Fatalf("get run: %v", err)
		}
		if got.Terminal() {
			if got.Status != StatusCompleted {
				t.Fatalf("inline run failed: %s", got.ErrorMessage)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("inline run did not finish, status %s", got.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestOpenArtifact(t *testing.T) {
	svc, docs := newTestService(t)
	ctx := context.Background()
	doc := uploadDoc(t, docs, completeResumeText)

	opt := seedRun(t, svc, Optimization{
		DocumentID:   doc.ID,
		Requirements: "Go",
	})

	if _, _, err := svc.OpenArtifact(ctx, "user-1", opt.ID); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady before processing, got %v", err)
	}

	if err := svc.Process(ctx, opt.ID); err != nil {
		t.Fatalf("process: %v", err)
	}

	got, body, err := svc.OpenArtifact(ctx, "user-1", opt.ID)
	if err != nil {
		t.Fatalf("open artifact: %v", err)
	}
	defer body.Close()
	if got.ResultKey == "" {
		t.Fatalf("expected a result key on the returned run")
	}
	head := make([]byte, 2)
	if _, err := io.ReadFull(body, head); err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(head) != "PK" {
		t.Fatalf("expected zip bytes, got %q", head)
	}

	if _, _, err := svc.OpenArtifact(ctx, "user-2", opt.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a foreign user, got %v", err)
	}
}

func TestResolvePauseInput(t *testing.T) {
	suggestions := []pipeline.ProjectVerdict{
		{Index: 0, Name: "Old Tracker", SuggestedReplacement: &model.Project{Name: "New Tracker", Description: "Rebuilt"}},
		{Index: 2, Name: "Legacy Tool", SuggestedReplacement: &model.Project{Name: "Modern Tool", Description: "Replaced"}},
	}
	projectReq := &pipeline.InputRequest{Kind: pipeline.InputProjectDecisions, Suggestions: suggestions}

	applyAll := resolvePauseInput(Optimization{ProjectPolicy: PolicyApplyAll}, projectReq)
	if applyAll == nil || applyAll.Projects == nil {
		t.Fatalf("expected decisions for apply_all")
	}
	if got := applyAll.Projects.AcceptedIndexes; len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Fatalf("expected indexes [0 2], got %v", got)
	}

	skip := resolvePauseInput(Optimization{ProjectPolicy: PolicySkip}, projectReq)
	if skip == nil || skip.Projects == nil {
		t.Fatalf("expected decisions for skip")
	}
	if len(skip.Projects.AcceptedIndexes) != 0 {
		t.Fatalf("expected no accepted indexes for skip, got %v", skip.Projects.AcceptedIndexes)
	}

	sectionsReq := &pipeline.InputRequest{Kind: pipeline.InputSections, MissingSections: []string{"summary"}}
	if got := resolvePauseInput(Optimization{}, sectionsReq); got != nil {
		t.Fatalf("expected nil without pre-supplied sections, got %+v", got)
	}
	withSections := resolvePauseInput(Optimization{SectionInputs: &pipeline.SectionsInput{Summary: []string{"x"}}}, sectionsReq)
	if withSections == nil || withSections.Sections == nil {
		t.Fatalf("expected sections input to be forwarded")
	}
}

func reportKeys(report map[string]any) []string {
	keys := make([]string, 0, len(report))
	for k := range report {
		keys = append(keys, k)
	}
	return keys
}
