package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"resume-optimizer/internal/rewrite"
	"resume-optimizer/resume/model"
	"resume-optimizer/resume/render"
)

// stageOutcome is what stage logic hands back to the controller: an optional
// result payload, an optional updated document (which becomes a new
// version), and an optional pause request.
type stageOutcome struct {
	payload      any
	doc          *model.Document
	changes      []string
	inputRequest *InputRequest
}

// ParseResult summarizes a successful parse.
type ParseResult struct {
	Filename      string   `json:"filename,omitempty"`
	TextLength    int      `json:"textLength"`
	SectionsFound []string `json:"sectionsFound,omitempty"`
}

// SectionsResult summarizes the missing-sections stage.
type SectionsResult struct {
	AppliedSections []string `json:"appliedSections,omitempty"`
	StillMissing    []string `json:"stillMissing,omitempty"`
}

// ProjectsResult summarizes the project-analysis stage.
type ProjectsResult struct {
	Report  ProjectReport `json:"report"`
	Applied int           `json:"applied"`
}

// ReAnalysisReport compares the post-input document against the first
// analysis.
type ReAnalysisReport struct {
	Initial    *AnalysisReport `json:"initial,omitempty"`
	Current    AnalysisReport  `json:"current"`
	ScoreDelta float64         `json:"scoreDelta"`
}

// SpanRewrite is the outcome for one rewritten span.
type SpanRewrite struct {
	Label           string           `json:"label"`
	Original        string           `json:"original"`
	Text            string           `json:"text"`
	Accepted        bool             `json:"accepted"`
	Fallback        rewrite.Fallback `json:"fallback,omitempty"`
	GenerationCalls int              `json:"generationCalls"`
	Reason          string           `json:"reason,omitempty"`
}

// RewritingReport summarizes the content-rewriting stage.
type RewritingReport struct {
	Spans         []SpanRewrite `json:"spans"`
	AcceptedCount int           `json:"acceptedCount"`
	FallbackCount int           `json:"fallbackCount"`
}

// FinalizeResult summarizes the final-optimization stage.
type FinalizeResult struct {
	Changes    []string `json:"changes,omitempty"`
	SkillCount int      `json:"skillCount"`
}

// OutputResult describes the rendered output document.
type OutputResult struct {
	FileName      string `json:"fileName"`
	SizeBytes     int    `json:"sizeBytes"`
	ArtifactKey   string `json:"artifactKey,omitempty"`
	VersionNumber int    `json:"versionNumber"`
}

func (c *Controller) runStage(ctx context.Context, stage Stage) (stageOutcome, error) {
	switch stage {
	case StageParseResume:
		return c.runParseResume(ctx)
	case StageAnalyzeRequirements:
		return c.runAnalyze(ctx)
	case StageMissingSectionsInput:
		return c.runMissingSections(ctx)
	case StageProjectAnalysis:
		return c.runProjectAnalysis(ctx)
	case StageReAnalysis:
		return c.runReAnalysis(ctx)
	case StageContentRewriting:
		return c.runContentRewriting(ctx)
	case StageFinalOptimization:
		return c.runFinalOptimization(ctx)
	case StageOutputDocument:
		return c.runOutputDocument(ctx)
	}
	return stageOutcome{}, fmt.Errorf("%w: %q", ErrUnknownStage, stage)
}

func (c *Controller) runParseResume(ctx context.Context) (stageOutcome, error) {
	c.mu.Lock()
	input := c.session.latestInput(StageParseResume, InputSource)
	seed := c.session.source
	c.mu.Unlock()

	var source SourceInput
	switch {
	case input != nil && input.Source != nil:
		source = *input.Source
	case seed != nil:
		source = *seed
	default:
		return stageOutcome{}, WrapError(CategoryParsing, "parse_resume", errors.New("no source document provided"))
	}

	doc, rawText, err := c.collab.Parser.Parse(ctx, source)
	if err != nil {
		return stageOutcome{}, err
	}

	c.mu.Lock()
	c.session.sourceText = rawText
	// a fresh parse invalidates everything derived from the old document
	c.session.vocab = nil
	c.session.analysis = nil
	c.session.reanalysis = nil
	c.session.projectReport = nil
	c.mu.Unlock()

	found := sectionsFound(doc)
	change := "Parsed source document"
	if source.Filename != "" {
		change = fmt.Sprintf("Parsed source document %q", source.Filename)
	}
	return stageOutcome{
		payload: ParseResult{
			Filename:      source.Filename,
			TextLength:    len(rawText),
			SectionsFound: found,
		},
		doc:     &doc,
		changes: []string{change},
	}, nil
}

func sectionsFound(doc model.Document) []string {
	var found []string
	if len(doc.Summary) > 0 {
		found = append(found, model.SectionSummary)
	}
	if len(doc.Skills) > 0 {
		found = append(found, model.SectionSkills)
	}
	if len(doc.Experience) > 0 {
		found = append(found, model.SectionExperience)
	}
	if len(doc.Projects) > 0 {
		found = append(found, model.SectionProjects)
	}
	if len(doc.Education) > 0 {
		found = append(found, model.SectionEducation)
	}
	return found
}

func (c *Controller) runAnalyze(ctx context.Context) (stageOutcome, error) {
	c.mu.Lock()
	doc := c.session.currentDocument()
	requirements := c.session.requirements
	parsed := len(c.session.versions) > 0
	c.mu.Unlock()

	if !parsed {
		return stageOutcome{}, WrapError(CategoryValidation, "analyze", errors.New("no parsed document to analyze"))
	}

	report, err := c.collab.Scorer.Score(ctx, doc, requirements)
	if err != nil {
		return stageOutcome{}, err
	}

	c.mu.Lock()
	c.session.analysis = &report
	c.mu.Unlock()

	return stageOutcome{payload: report}, nil
}

func (c *Controller) runMissingSections(_ context.Context) (stageOutcome, error) {
	c.mu.Lock()
	doc := c.session.currentDocument()
	input := c.session.latestInput(StageMissingSectionsInput, InputSections)
	c.mu.Unlock()

	missing := doc.MissingSections()
	if input == nil || input.Sections == nil {
		if len(missing) == 0 {
			return stageOutcome{payload: SectionsResult{}}, nil
		}
		return stageOutcome{
			inputRequest: &InputRequest{
				Stage:           StageMissingSectionsInput,
				Kind:            InputSections,
				Message:         "Provide content for the sections the resume is missing.",
				MissingSections: missing,
			},
		}, nil
	}

	sections := input.Sections
	var applied, changes []string
	if len(sections.Summary) > 0 {
		if len(doc.Summary) == 0 {
			changes = append(changes, fmt.Sprintf("Added summary (%d lines)", len(sections.Summary)))
		} else {
			changes = append(changes, "Extended summary with user-provided lines")
		}
		doc.Summary = append(doc.Summary, sections.Summary...)
		applied = append(applied, model.SectionSummary)
	}
	if len(sections.Skills) > 0 {
		doc.Skills = append(doc.Skills, sections.Skills...)
		changes = append(changes, fmt.Sprintf("Added %d skills", len(sections.Skills)))
		applied = append(applied, model.SectionSkills)
	}
	if len(sections.Experience) > 0 {
		doc.Experience = append(doc.Experience, sections.Experience...)
		changes = append(changes, fmt.Sprintf("Added %d experience entries", len(sections.Experience)))
		applied = append(applied, model.SectionExperience)
	}
	if len(sections.Education) > 0 {
		doc.Education = append(doc.Education, sections.Education...)
		changes = append(changes, fmt.Sprintf("Added %d education entries", len(sections.Education)))
		applied = append(applied, model.SectionEducation)
	}

	result := SectionsResult{AppliedSections: applied, StillMissing: doc.MissingSections()}
	if len(changes) == 0 {
		return stageOutcome{payload: result}, nil
	}
	return stageOutcome{payload: result, doc: &doc, changes: changes}, nil
}

func (c *Controller) runProjectAnalysis(ctx context.Context) (stageOutcome, error) {
	c.mu.Lock()
	doc := c.session.currentDocument()
	requirements := c.session.requirements
	cached := c.session.projectReport
	input := c.session.latestInput(StageProjectAnalysis, InputProjectDecisions)
	c.mu.Unlock()

	var report ProjectReport
	if cached != nil && input != nil && input.Projects != nil {
		// resuming with decisions: judge against the report the user saw
		report = *cached
	} else {
		var err error
		report, err = c.collab.Projects.AnalyzeProjects(ctx, doc, requirements)
		if err != nil {
			return stageOutcome{}, err
		}
		c.mu.Lock()
		c.session.projectReport = &report
		c.mu.Unlock()
	}

	suggestions := report.Suggestions()
	if input == nil || input.Projects == nil {
		if len(suggestions) == 0 {
			return stageOutcome{payload: ProjectsResult{Report: report}}, nil
		}
		return stageOutcome{
			payload: ProjectsResult{Report: report},
			inputRequest: &InputRequest{
				Stage:       StageProjectAnalysis,
				Kind:        InputProjectDecisions,
				Message:     "Review the suggested project replacements and choose which to apply.",
				Suggestions: suggestions,
			},
		}, nil
	}

	applied := 0
	var changes []string
	for _, idx := range input.Projects.AcceptedIndexes {
		verdict := verdictFor(report, idx)
		if verdict == nil || verdict.SuggestedReplacement == nil {
			continue
		}
		if idx < 0 || idx >= len(doc.Projects) {
			continue
		}
		old := doc.Projects[idx].Name
		doc.Projects[idx] = *verdict.SuggestedReplacement
		changes = append(changes, fmt.Sprintf("Replaced project %q with %q", old, verdict.SuggestedReplacement.Name))
		applied++
	}

	result := ProjectsResult{Report: report, Applied: applied}
	if applied == 0 {
		return stageOutcome{payload: result}, nil
	}
	return stageOutcome{payload: result, doc: &doc, changes: changes}, nil
}

func verdictFor(report ProjectReport, index int) *ProjectVerdict {
	for i := range report.Verdicts {
		if report.Verdicts[i].Index == index {
			return &report.Verdicts[i]
		}
	}
	return nil
}

func (c *Controller) runReAnalysis(ctx context.Context) (stageOutcome, error) {
	c.mu.Lock()
	doc := c.session.currentDocument()
	requirements := c.session.requirements
	parsed := len(c.session.versions) > 0
	initial := c.session.analysis
	c.mu.Unlock()

	if !parsed {
		return stageOutcome{}, WrapError(CategoryValidation, "re_analysis", errors.New("no parsed document to analyze"))
	}

	report, err := c.collab.Scorer.Score(ctx, doc, requirements)
	if err != nil {
		return stageOutcome{}, err
	}

	c.mu.Lock()
	c.session.reanalysis = &report
	c.mu.Unlock()

	payload := ReAnalysisReport{Initial: initial, Current: report}
	if initial != nil {
		payload.ScoreDelta = report.OverallScore - initial.OverallScore
	}
	return stageOutcome{payload: payload}, nil
}

// spanRef points at one rewritable text span inside a working document.
type spanRef struct {
	label string
	get   func() string
	set   func(string)
}

func rewriteSpans(doc *model.Document) []spanRef {
	var spans []spanRef
	for i := range doc.Summary {
		i := i
		spans = append(spans, spanRef{
			label: fmt.Sprintf("summary[%d]", i),
			get:   func() string { return doc.Summary[i] },
			set:   func(s string) { doc.Summary[i] = s },
		})
	}
	for i := range doc.Experience {
		for j := range doc.Experience[i].Bullets {
			i, j := i, j
			spans = append(spans, spanRef{
				label: fmt.Sprintf("experience[%d].bullets[%d]", i, j),
				get:   func() string { return doc.Experience[i].Bullets[j] },
				set:   func(s string) { doc.Experience[i].Bullets[j] = s },
			})
		}
	}
	for i := range doc.Projects {
		i := i
		if strings.TrimSpace(doc.Projects[i].Description) != "" {
			spans = append(spans, spanRef{
				label: fmt.Sprintf("projects[%d].description", i),
				get:   func() string { return doc.Projects[i].Description },
				set:   func(s string) { doc.Projects[i].Description = s },
			})
		}
		for j := range doc.Projects[i].Bullets {
			j := j
			spans = append(spans, spanRef{
				label: fmt.Sprintf("projects[%d].bullets[%d]", i, j),
				get:   func() string { return doc.Projects[i].Bullets[j] },
				set:   func(s string) { doc.Projects[i].Bullets[j] = s },
			})
		}
	}
	return spans
}

func (c *Controller) runContentRewriting(ctx context.Context) (stageOutcome, error) {
	c.mu.Lock()
	doc := c.session.currentDocument()
	requirements := c.session.requirements
	targetRole := c.session.targetRole
	parsed := len(c.session.versions) > 0
	vocab := c.session.vocab
	if vocab == nil {
		base := c.session.sourceText
		if base == "" {
			base = doc.PlainText()
		}
		vocab = rewrite.BuildVocabulary(base, requirements)
		c.session.vocab = vocab
	}
	c.mu.Unlock()

	if !parsed {
		return stageOutcome{}, WrapError(CategoryValidation, "content_rewriting", errors.New("no parsed document to rewrite"))
	}

	validator := rewrite.NewValidator(c.collab.Embedder, vocab)

	var (
		outcomes  []SpanRewrite
		changes   []string
		accepted  int
		fallbacks int
	)
	for _, span := range rewriteSpans(&doc) {
		original := span.get()
		if strings.TrimSpace(original) == "" {
			continue
		}

		generate := func(ctx context.Context, corrective string, attempt int) (string, error) {
			return c.collab.Generator.GenerateRewrite(ctx, RewriteRequest{
				Original:     original,
				SpanLabel:    span.label,
				TargetRole:   targetRole,
				Requirements: requirements,
				Corrective:   corrective,
				Attempt:      attempt,
			})
		}

		result, err := rewrite.ValidateWithRetry(ctx, original, generate, validator.Validate)
		if err != nil {
			return stageOutcome{}, err
		}

		span.set(resultText(result, original))
		outcome := SpanRewrite{
			Label:           span.label,
			Original:        original,
			Text:            result.Text,
			Accepted:        result.Accepted,
			Fallback:        result.Fallback,
			GenerationCalls: result.GenerationCalls,
		}
		if n := len(result.Verdicts); n > 0 {
			outcome.Reason = result.Verdicts[n-1].Reason
		}
		outcomes = append(outcomes, outcome)

		if result.Accepted && result.Text != original {
			changes = append(changes, "Rewrote "+span.label)
			accepted++
		} else if result.Fallback != rewrite.FallbackNone {
			fallbacks++
		}
	}

	report := RewritingReport{Spans: outcomes, AcceptedCount: accepted, FallbackCount: fallbacks}
	if accepted == 0 {
		return stageOutcome{payload: report}, nil
	}
	return stageOutcome{payload: report, doc: &doc, changes: changes}, nil
}

// resultText keeps only accepted rewrites in the document; fallback
// candidates are surfaced in the report, never silently folded in.
func resultText(result rewrite.RetryResult, original string) string {
	if result.Accepted {
		return result.Text
	}
	return original
}

func (c *Controller) runFinalOptimization(_ context.Context) (stageOutcome, error) {
	c.mu.Lock()
	doc := c.session.currentDocument()
	requirements := c.session.requirements
	parsed := len(c.session.versions) > 0
	c.mu.Unlock()

	if !parsed {
		return stageOutcome{}, WrapError(CategoryValidation, "final_optimization", errors.New("no parsed document to optimize"))
	}

	var changes []string

	deduped, removed := dedupeSkills(doc.Skills)
	if removed > 0 {
		changes = append(changes, fmt.Sprintf("Removed %d duplicate skills", removed))
	}
	reordered, moved := prioritizeSkills(deduped, requirements)
	if moved {
		changes = append(changes, "Prioritized skills matching the target requirements")
	}
	doc.Skills = reordered

	if n := trimEmptyLines(&doc); n > 0 {
		changes = append(changes, fmt.Sprintf("Removed %d empty lines", n))
	}

	result := FinalizeResult{Changes: changes, SkillCount: len(doc.Skills)}
	if len(changes) == 0 {
		return stageOutcome{payload: result}, nil
	}
	return stageOutcome{payload: result, doc: &doc, changes: changes}, nil
}

func dedupeSkills(skills []string) ([]string, int) {
	seen := make(map[string]struct{}, len(skills))
	out := make([]string, 0, len(skills))
	removed := 0
	for _, skill := range skills {
		key := strings.ToLower(strings.TrimSpace(skill))
		if key == "" {
			removed++
			continue
		}
		if _, dup := seen[key]; dup {
			removed++
			continue
		}
		seen[key] = struct{}{}
		out = append(out, strings.TrimSpace(skill))
	}
	return out, removed
}

// prioritizeSkills stable-sorts skills mentioned in the requirements text to
// the front.
func prioritizeSkills(skills []string, requirements string) ([]string, bool) {
	if strings.TrimSpace(requirements) == "" || len(skills) < 2 {
		return skills, false
	}
	req := strings.ToLower(requirements)
	out := append([]string(nil), skills...)
	sort.SliceStable(out, func(i, j int) bool {
		return strings.Contains(req, strings.ToLower(out[i])) && !strings.Contains(req, strings.ToLower(out[j]))
	})
	for i := range out {
		if out[i] != skills[i] {
			return out, true
		}
	}
	return out, false
}

func trimEmptyLines(doc *model.Document) int {
	removed := 0
	clean := func(lines []string) []string {
		out := lines[:0]
		for _, line := range lines {
			if strings.TrimSpace(line) == "" {
				removed++
				continue
			}
			out = append(out, line)
		}
		return out
	}
	doc.Summary = clean(doc.Summary)
	for i := range doc.Experience {
		doc.Experience[i].Bullets = clean(doc.Experience[i].Bullets)
	}
	for i := range doc.Projects {
		doc.Projects[i].Bullets = clean(doc.Projects[i].Bullets)
	}
	return removed
}

func (c *Controller) runOutputDocument(ctx context.Context) (stageOutcome, error) {
	c.mu.Lock()
	sessionID := c.session.id
	versions := len(c.session.versions)
	var doc model.Document
	var versionNo int
	if versions > 0 {
		last := c.session.versions[versions-1]
		doc = last.Document.Clone()
		versionNo = last.Number
	}
	c.mu.Unlock()

	if versions == 0 {
		return stageOutcome{}, WrapError(CategoryValidation, "output_document", errors.New("no document version to render"))
	}

	data, err := render.Build(doc)
	if err != nil {
		return stageOutcome{}, WrapError(CategoryValidation, "render", err)
	}

	fileName := fmt.Sprintf("optimized_resume_%s.docx", shortID(sessionID))
	key := ""
	if c.collab.Artifacts != nil {
		key, err = c.collab.Artifacts.SaveArtifact(ctx, fileName, data)
		if err != nil {
			return stageOutcome{}, err
		}
	}

	return stageOutcome{
		payload: OutputResult{
			FileName:      fileName,
			SizeBytes:     len(data),
			ArtifactKey:   key,
			VersionNumber: versionNo,
		},
	}, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
