package pipeline

import (
	"testing"

	"resume-optimizer/resume/model"
)

func TestDedupeSkills(t *testing.T) {
	skills := []string{"Go", "go ", " Go", "Python", "", "PostgreSQL"}
	out, removed := dedupeSkills(skills)
	if removed != 3 {
		t.Fatalf("expected 3 removals, got %d", removed)
	}
	want := []string{"Go", "Python", "PostgreSQL"}
	if len(out) != len(want) {
		t.Fatalf("expected %v, got %v", want, out)
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, out)
		}
	}
}

func TestPrioritizeSkillsMovesMatchesFirst(t *testing.T) {
	skills := []string{"Docker", "Go", "React"}
	out, moved := prioritizeSkills(skills, "Looking for Go and Kubernetes experience")
	if !moved {
		t.Fatalf("expected reorder")
	}
	if out[0] != "Go" {
		t.Fatalf("expected Go first, got %v", out)
	}
	if out[1] != "Docker" || out[2] != "React" {
		t.Fatalf("expected stable order among non-matches, got %v", out)
	}
}

func TestPrioritizeSkillsNoMatches(t *testing.T) {
	skills := []string{"Docker", "Go"}
	out, moved := prioritizeSkills(skills, "frontend design role")
	if moved {
		t.Fatalf("expected no reorder, got %v", out)
	}
}

func TestTrimEmptyLines(t *testing.T) {
	doc := model.Document{
		Summary: []string{"kept", "  ", "also kept"},
		Experience: []model.Experience{
			{Bullets: []string{"", "bullet"}},
		},
		Projects: []model.Project{
			{Bullets: []string{"\t"}},
		},
	}
	removed := trimEmptyLines(&doc)
	if removed != 3 {
		t.Fatalf("expected 3 removed lines, got %d", removed)
	}
	if len(doc.Summary) != 2 || len(doc.Experience[0].Bullets) != 1 || len(doc.Projects[0].Bullets) != 0 {
		t.Fatalf("unexpected document after trim: %+v", doc)
	}
}

func TestSectionsFound(t *testing.T) {
	doc := model.Document{
		Summary:   []string{"line"},
		Skills:    []string{"Go"},
		Education: []model.Education{{Institution: "U"}},
	}
	found := sectionsFound(doc)
	want := map[string]bool{
		model.SectionSummary:   true,
		model.SectionSkills:    true,
		model.SectionEducation: true,
	}
	if len(found) != len(want) {
		t.Fatalf("expected %d sections, got %v", len(want), found)
	}
	for _, name := range found {
		if !want[name] {
			t.Fatalf("unexpected section %q in %v", name, found)
		}
	}
}

func TestVerdictForLooksUpByIndex(t *testing.T) {
	report := ProjectReport{Verdicts: []ProjectVerdict{
		{Index: 0, Name: "A"},
		{Index: 2, Name: "C"},
	}}
	if v := verdictFor(report, 2); v == nil || v.Name != "C" {
		t.Fatalf("expected verdict C, got %+v", v)
	}
	if v := verdictFor(report, 1); v != nil {
		t.Fatalf("expected nil for unknown index, got %+v", v)
	}
}

func TestRewriteSpansCoverDocument(t *testing.T) {
	doc := model.Document{
		Summary: []string{"s1", "s2"},
		Experience: []model.Experience{
			{Bullets: []string{"e1"}},
			{Bullets: []string{"e2", "e3"}},
		},
		Projects: []model.Project{
			{Description: "d1", Bullets: []string{"p1"}},
			{Description: "  "},
		},
	}
	spans := rewriteSpans(&doc)
	// 2 summary + 3 experience bullets + 1 description + 1 project bullet
	if len(spans) != 7 {
		t.Fatalf("expected 7 spans, got %d", len(spans))
	}

	spans[0].set("rewritten")
	if doc.Summary[0] != "rewritten" {
		t.Fatalf("expected setter to write through, got %q", doc.Summary[0])
	}
	if spans[1].get() != "s2" {
		t.Fatalf("expected getter to read current value, got %q", spans[1].get())
	}
}
