package analysis

import (
	"context"
	"testing"

	"resume-optimizer/internal/pipeline"
	"resume-optimizer/resume/model"
)

const sampleResume = `Jordan Lee
Senior Backend Engineer
Austin, TX
jordan.lee@example.com | (512) 555-0147
github.com/jordanlee

Summary
Backend engineer focused on Go services.

Skills
Go, PostgreSQL, Docker; Kubernetes

Experience
Senior Engineer at Freightwise (2021 - Present)
- Reduced p99 latency by 40% across the ingest API
- Led a team of 4 engineers

Projects
Shipment Tracker - Real-time package tracking service
Technologies: Go, NATS, PostgreSQL
- Processes 2M events per day

Education
University of Texas at Austin, BS Computer Science (2013 - 2017)
`

func TestHeuristicParserStructuresSections(t *testing.T) {
	doc, raw, err := NewHeuristicParser().Parse(context.Background(), pipeline.SourceInput{Text: sampleResume})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if raw != sampleResume {
		t.Fatal("expected raw text preserved")
	}
	if doc.Header.Name != "Jordan Lee" {
		t.Fatalf("unexpected name %q", doc.Header.Name)
	}
	if doc.Header.Title != "Senior Backend Engineer" {
		t.Fatalf("unexpected title %q", doc.Header.Title)
	}
	if doc.Header.Email != "jordan.lee@example.com" {
		t.Fatalf("unexpected email %q", doc.Header.Email)
	}
	if doc.Header.Phone == "" {
		t.Fatal("expected phone extracted")
	}
	if len(doc.Header.Links) != 1 {
		t.Fatalf("expected 1 link, got %v", doc.Header.Links)
	}
	if len(doc.Skills) != 4 {
		t.Fatalf("expected 4 skills, got %v", doc.Skills)
	}

	if len(doc.Experience) != 1 {
		t.Fatalf("expected 1 experience entry, got %d", len(doc.Experience))
	}
	exp := doc.Experience[0]
	if exp.Role != "Senior Engineer" || exp.Company != "Freightwise" {
		t.Fatalf("unexpected experience %q at %q", exp.Role, exp.Company)
	}
	if exp.Start != "2021" || exp.End != "Present" {
		t.Fatalf("unexpected dates %q..%q", exp.Start, exp.End)
	}
	if len(exp.Bullets) != 2 {
		t.Fatalf("expected 2 bullets, got %v", exp.Bullets)
	}

	if len(doc.Projects) != 1 {
		t.Fatalf("expected 1 project, got %d", len(doc.Projects))
	}
	proj := doc.Projects[0]
	if proj.Name != "Shipment Tracker" {
		t.Fatalf("unexpected project name %q", proj.Name)
	}
	if len(proj.Technologies) != 3 {
		t.Fatalf("expected 3 technologies, got %v", proj.Technologies)
	}
	if len(proj.Bullets) != 1 {
		t.Fatalf("expected 1 project bullet, got %v", proj.Bullets)
	}

	if len(doc.Education) != 1 {
		t.Fatalf("expected 1 education entry, got %d", len(doc.Education))
	}
	edu := doc.Education[0]
	if edu.Institution != "University of Texas at Austin" || edu.Degree != "BS Computer Science" {
		t.Fatalf("unexpected education %+v", edu)
	}
	if edu.Start != "2013" || edu.End != "2017" {
		t.Fatalf("unexpected education dates %q..%q", edu.Start, edu.End)
	}
}

func TestHeuristicScorerFlagsMissingTerms(t *testing.T) {
	doc := model.Document{
		Header:     model.Header{Name: "Jordan Lee"},
		Skills:     []string{"Go", "PostgreSQL"},
		Experience: []model.Experience{{Company: "Freightwise", Role: "Engineer", Bullets: []string{"Reduced latency by 40%"}}},
	}

	report, err := NewHeuristicScorer().Score(context.Background(), doc, "PostgreSQL and Kubernetes experience")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if report.OverallScore < 0 || report.OverallScore > 100 {
		t.Fatalf("score out of range: %v", report.OverallScore)
	}
	if len(report.Breakdown) != 4 {
		t.Fatalf("expected 4 breakdown sections, got %d", len(report.Breakdown))
	}

	foundMissing := false
	for _, term := range report.MissingTerms {
		if term == "kubernetes" {
			foundMissing = true
		}
		if term == "postgresql" {
			t.Fatal("postgresql is present and must not be reported missing")
		}
	}
	if !foundMissing {
		t.Fatalf("expected kubernetes in missing terms, got %v", report.MissingTerms)
	}

	foundIssue := false
	for _, issue := range report.Issues {
		if issue == "summary section is empty" {
			foundIssue = true
		}
	}
	if !foundIssue {
		t.Fatalf("expected empty-summary issue, got %v", report.Issues)
	}
}

func TestHeuristicProjectAnalyzerScoresOverlap(t *testing.T) {
	doc := model.Document{
		Header: model.Header{Name: "Jordan"},
		Projects: []model.Project{
			{Name: "Shipment Tracker", Technologies: []string{"Go", "NATS"}},
			{Name: "Recipe Blog", Technologies: []string{"WordPress"}},
		},
	}

	report, err := NewHeuristicProjectAnalyzer().AnalyzeProjects(context.Background(), doc, "Looking for NATS and PostgreSQL experience")
	if err != nil {
		t.Fatalf("AnalyzeProjects: %v", err)
	}
	if len(report.Verdicts) != 2 {
		t.Fatalf("expected 2 verdicts, got %d", len(report.Verdicts))
	}
	if !report.Verdicts[0].Suitable {
		t.Fatalf("expected tracker suitable: %+v", report.Verdicts[0])
	}
	if report.Verdicts[1].Suitable {
		t.Fatalf("expected blog unsuitable: %+v", report.Verdicts[1])
	}
	if report.Verdicts[1].SuggestedReplacement != nil {
		t.Fatal("heuristic analyzer must not invent replacements")
	}
}

func TestHeuristicGeneratorSwapsWeakVerbs(t *testing.T) {
	out, err := NewHeuristicGenerator().GenerateRewrite(context.Background(), pipeline.RewriteRequest{
		Original: "Responsible for managing the billing service",
	})
	if err != nil {
		t.Fatalf("GenerateRewrite: %v", err)
	}
	if out != "Managed the billing service" {
		t.Fatalf("unexpected rewrite %q", out)
	}
}

func TestHeuristicGeneratorReturnsOriginalOnRetry(t *testing.T) {
	out, err := NewHeuristicGenerator().GenerateRewrite(context.Background(), pipeline.RewriteRequest{
		Original:   "Led  migration to  Kubernetes",
		Corrective: "Keep the original meaning.",
		Attempt:    1,
	})
	if err != nil {
		t.Fatalf("GenerateRewrite: %v", err)
	}
	if out != "Led migration to Kubernetes" {
		t.Fatalf("unexpected retry output %q", out)
	}
}
