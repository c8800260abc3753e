package analysis

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"

	"resume-optimizer/internal/pipeline"
	"resume-optimizer/resume/model"
)

// The heuristic adapters are the deterministic twins of the LLM adapters.
// The placeholder provider wires them in so development and tests run the
// whole pipeline without a network or an API key.

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s().-]{7,}\d`)
	datePattern  = regexp.MustCompile(`(\d{4}(?:-\d{2})?)\s*[-–—]\s*(\d{4}(?:-\d{2})?|[Pp]resent|[Cc]urrent)`)
)

// HeuristicParser structures resume text with a line-oriented section
// scanner: recognized headings switch state, bullets attach to the current
// entry, everything before the first heading is the header zone.
type HeuristicParser struct{}

// NewHeuristicParser returns the deterministic parser.
func NewHeuristicParser() HeuristicParser {
	return HeuristicParser{}
}

func (HeuristicParser) Parse(ctx context.Context, source pipeline.SourceInput) (model.Document, string, error) {
	text, err := sourceText(ctx, source)
	if err != nil {
		return model.Document{}, "", err
	}

	doc := parseHeuristically(text)
	if err := doc.Validate(); err != nil {
		return model.Document{}, "", pipeline.WrapError(pipeline.CategoryParsing, "parse_resume", err)
	}
	return doc, text, nil
}

var sectionHeadings = map[string]string{
	"summary": model.SectionSummary, "profile": model.SectionSummary,
	"professional summary": model.SectionSummary, "objective": model.SectionSummary,
	"about": model.SectionSummary, "about me": model.SectionSummary,

	"skills": model.SectionSkills, "technical skills": model.SectionSkills,
	"technologies": model.SectionSkills, "core competencies": model.SectionSkills,

	"experience": model.SectionExperience, "work experience": model.SectionExperience,
	"professional experience": model.SectionExperience, "employment": model.SectionExperience,
	"employment history": model.SectionExperience, "work history": model.SectionExperience,

	"projects": model.SectionProjects, "personal projects": model.SectionProjects,
	"selected projects": model.SectionProjects, "key projects": model.SectionProjects,

	"education": model.SectionEducation, "academic background": model.SectionEducation,

	"achievements": "achievements", "awards": "achievements",
	"accomplishments": "achievements",

	"certifications": "certifications", "certificates": "certifications",
	"licenses": "certifications",
}

func headingFor(line string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(line), ":"))
	if len(normalized) > 40 {
		return "", false
	}
	section, ok := sectionHeadings[normalized]
	return section, ok
}

func parseHeuristically(text string) model.Document {
	var doc model.Document
	section := ""
	headerLines := 0

	var currentExp *model.Experience
	var currentProj *model.Project

	flushExp := func() {
		if currentExp != nil {
			doc.Experience = append(doc.Experience, *currentExp)
			currentExp = nil
		}
	}
	flushProj := func() {
		if currentProj != nil {
			doc.Projects = append(doc.Projects, *currentProj)
			currentProj = nil
		}
	}

	for _, rawLine := range strings.Split(text, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}

		if next, ok := headingFor(line); ok {
			flushExp()
			flushProj()
			section = next
			continue
		}

		switch section {
		case "":
			parseHeaderLine(&doc, line, &headerLines)
		case model.SectionSummary:
			doc.Summary = append(doc.Summary, line)
		case model.SectionSkills:
			doc.Skills = append(doc.Skills, splitList(line)...)
		case model.SectionExperience:
			if bullet, ok := bulletText(line); ok {
				if currentExp == nil {
					currentExp = &model.Experience{}
				}
				currentExp.Bullets = append(currentExp.Bullets, bullet)
				continue
			}
			flushExp()
			entry := parseExperienceLine(line)
			currentExp = &entry
		case model.SectionProjects:
			if bullet, ok := bulletText(line); ok {
				if currentProj == nil {
					currentProj = &model.Project{}
				}
				currentProj.Bullets = append(currentProj.Bullets, bullet)
				continue
			}
			if techs, ok := technologiesLine(line); ok && currentProj != nil {
				currentProj.Technologies = append(currentProj.Technologies, techs...)
				continue
			}
			flushProj()
			project := parseProjectLine(line)
			currentProj = &project
		case model.SectionEducation:
			if entry, ok := parseEducationLine(line); ok {
				doc.Education = append(doc.Education, entry)
			}
		case "achievements":
			if bullet, ok := bulletText(line); ok {
				doc.Achievements = append(doc.Achievements, bullet)
			} else {
				doc.Achievements = append(doc.Achievements, line)
			}
		case "certifications":
			if bullet, ok := bulletText(line); ok {
				doc.Certifications = append(doc.Certifications, bullet)
			} else {
				doc.Certifications = append(doc.Certifications, line)
			}
		}
	}
	flushExp()
	flushProj()

	if doc.Header.Name == "" {
		doc.Header.Name = firstNonEmptyLine(text)
	}
	return doc
}

func parseHeaderLine(doc *model.Document, line string, plainLines *int) {
	consumed := false
	if email := emailPattern.FindString(line); email != "" && doc.Header.Email == "" {
		doc.Header.Email = email
		consumed = true
	}
	if phone := phonePattern.FindString(line); phone != "" && doc.Header.Phone == "" {
		doc.Header.Phone = strings.TrimSpace(phone)
		consumed = true
	}
	if isLink(line) {
		doc.Header.Links = append(doc.Header.Links, line)
		return
	}
	if consumed {
		return
	}

	switch *plainLines {
	case 0:
		doc.Header.Name = line
	case 1:
		doc.Header.Title = line
	case 2:
		doc.Header.Location = line
	}
	*plainLines++
}

func isLink(line string) bool {
	lower := strings.ToLower(line)
	return strings.Contains(lower, "http://") || strings.Contains(lower, "https://") ||
		strings.Contains(lower, "www.") || strings.Contains(lower, "github.com") ||
		strings.Contains(lower, "linkedin.com")
}

func bulletText(line string) (string, bool) {
	for _, marker := range []string{"- ", "• ", "* ", "– "} {
		if strings.HasPrefix(line, marker) {
			return strings.TrimSpace(strings.TrimPrefix(line, marker)), true
		}
	}
	return "", false
}

func splitList(line string) []string {
	items := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ';' || r == '|' || r == '•'
	})
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseExperienceLine reads "Role at Company (2020 - Present)" and the
// common comma variant "Role, Company, 2020 - 2022".
func parseExperienceLine(line string) model.Experience {
	var entry model.Experience
	line = extractDates(line, &entry.Start, &entry.End)
	line = strings.Trim(strings.TrimSpace(line), "(),|-–—")
	line = strings.TrimSpace(line)

	if idx := strings.Index(line, " at "); idx != -1 {
		entry.Role = strings.TrimSpace(line[:idx])
		entry.Company = strings.TrimSpace(line[idx+len(" at "):])
		return entry
	}
	if parts := strings.SplitN(line, ",", 2); len(parts) == 2 {
		entry.Role = strings.TrimSpace(parts[0])
		entry.Company = strings.Trim(strings.TrimSpace(parts[1]), ",")
		return entry
	}
	entry.Company = line
	return entry
}

func parseProjectLine(line string) model.Project {
	var project model.Project
	if idx := strings.Index(line, " - "); idx != -1 {
		project.Name = strings.TrimSpace(line[:idx])
		project.Description = strings.TrimSpace(line[idx+3:])
		return project
	}
	project.Name = line
	return project
}

func technologiesLine(line string) ([]string, bool) {
	lower := strings.ToLower(line)
	for _, prefix := range []string{"technologies:", "tech:", "stack:", "built with:"} {
		if strings.HasPrefix(lower, prefix) {
			return splitList(line[len(prefix):]), true
		}
	}
	return nil, false
}

func parseEducationLine(line string) (model.Education, bool) {
	var entry model.Education
	line = extractDates(line, &entry.Start, &entry.End)
	line = strings.Trim(strings.TrimSpace(line), "(),|-–—")
	line = strings.TrimSpace(line)
	if line == "" {
		return entry, false
	}

	if parts := strings.SplitN(line, ",", 2); len(parts) == 2 {
		entry.Institution = strings.TrimSpace(parts[0])
		entry.Degree = strings.Trim(strings.TrimSpace(parts[1]), ",")
	} else {
		entry.Institution = line
	}
	return entry, true
}

// extractDates removes the first date range from the line and stores its
// normalized endpoints.
func extractDates(line string, start, end *string) string {
	match := datePattern.FindStringSubmatchIndex(line)
	if match == nil {
		return line
	}
	*start = normalizeDate(line[match[2]:match[3]])
	*end = normalizeDate(line[match[4]:match[5]])
	return line[:match[0]] + line[match[1]:]
}

// HeuristicScorer rates documents by keyword coverage of the requirements
// text across the resume sections.
type HeuristicScorer struct{}

// NewHeuristicScorer returns the deterministic scorer.
func NewHeuristicScorer() HeuristicScorer {
	return HeuristicScorer{}
}

func (HeuristicScorer) Score(ctx context.Context, doc model.Document, requirements string) (pipeline.AnalysisReport, error) {
	if err := ctx.Err(); err != nil {
		return pipeline.AnalysisReport{}, err
	}

	terms := requirementTerms(requirements)

	sections := []struct {
		name   string
		weight float64
		text   string
	}{
		{"skills", 0.40, strings.Join(doc.Skills, " ") + " " + strings.Join(doc.Summary, " ")},
		{"experience", 0.35, experienceText(doc)},
		{"projects", 0.15, projectsText(doc)},
		{"education", 0.10, educationText(doc)},
	}

	var report pipeline.AnalysisReport
	var overall float64
	for _, section := range sections {
		score := coverage(terms, section.text)
		overall += score * section.weight
		report.Breakdown = append(report.Breakdown, pipeline.ScoreComponent{
			Name:   section.name,
			Score:  score,
			Weight: section.weight,
		})
	}
	report.OverallScore = math.Round(overall)

	docText := strings.ToLower(doc.PlainText())
	for _, term := range terms {
		if !strings.Contains(docText, term) {
			report.MissingTerms = append(report.MissingTerms, term)
		}
		if len(report.MissingTerms) >= 10 {
			break
		}
	}

	report.Issues = documentIssues(doc)
	return report, nil
}

func experienceText(doc model.Document) string {
	var b strings.Builder
	for _, exp := range doc.Experience {
		b.WriteString(exp.Company)
		b.WriteString(" ")
		b.WriteString(exp.Role)
		b.WriteString(" ")
		b.WriteString(strings.Join(exp.Bullets, " "))
		b.WriteString(" ")
	}
	return b.String()
}

func projectsText(doc model.Document) string {
	var b strings.Builder
	for _, p := range doc.Projects {
		b.WriteString(p.Name)
		b.WriteString(" ")
		b.WriteString(p.Description)
		b.WriteString(" ")
		b.WriteString(strings.Join(p.Technologies, " "))
		b.WriteString(" ")
		b.WriteString(strings.Join(p.Bullets, " "))
		b.WriteString(" ")
	}
	return b.String()
}

func educationText(doc model.Document) string {
	var b strings.Builder
	for _, edu := range doc.Education {
		b.WriteString(edu.Institution)
		b.WriteString(" ")
		b.WriteString(edu.Degree)
		b.WriteString(" ")
		b.WriteString(edu.Field)
		b.WriteString(" ")
	}
	return b.String()
}

func coverage(terms []string, text string) float64 {
	if len(terms) == 0 {
		return 100
	}
	lower := strings.ToLower(text)
	matched := 0
	for _, term := range terms {
		if strings.Contains(lower, term) {
			matched++
		}
	}
	return math.Round(100 * float64(matched) / float64(len(terms)))
}

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "you": {}, "are": {},
	"our": {}, "will": {}, "have": {}, "has": {}, "this": {}, "that": {},
	"your": {}, "from": {}, "able": {}, "who": {}, "what": {}, "years": {},
	"year": {}, "experience": {}, "work": {}, "working": {}, "knowledge": {},
	"strong": {}, "plus": {}, "must": {}, "should": {}, "required": {},
	"requirements": {}, "preferred": {}, "skills": {}, "ability": {},
	"excellent": {}, "good": {}, "team": {}, "role": {}, "about": {},
}

// requirementTerms extracts lowercase keywords from requirements text,
// dropping stopwords and short tokens, preserving first-seen order.
func requirementTerms(requirements string) []string {
	fields := strings.FieldsFunc(strings.ToLower(requirements), func(r rune) bool {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return false
		case r == '.' || r == '+' || r == '#' || r == '/':
			return false
		}
		return true
	})

	seen := make(map[string]struct{})
	var terms []string
	for _, f := range fields {
		f = strings.Trim(f, "./")
		if len(f) < 3 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		terms = append(terms, f)
	}
	return terms
}

var digitPattern = regexp.MustCompile(`\d`)

func documentIssues(doc model.Document) []string {
	var issues []string
	if len(doc.Summary) == 0 {
		issues = append(issues, "summary section is empty")
	}
	if len(doc.Skills) == 0 {
		issues = append(issues, "skills section is empty")
	}

	bullets := 0
	quantified := 0
	for _, exp := range doc.Experience {
		for _, bullet := range exp.Bullets {
			bullets++
			if digitPattern.MatchString(bullet) {
				quantified++
			}
		}
	}
	if bullets > 0 && quantified == 0 {
		issues = append(issues, "no quantified results in experience bullets")
	}
	if bullets == 0 && len(doc.Experience) > 0 {
		issues = append(issues, "experience entries have no bullets")
	}
	return issues
}

// HeuristicProjectAnalyzer marks a project suitable when it shares any
// keyword with the requirements. It never proposes replacements; inventing
// projects is exactly what the rewrite gate exists to prevent.
type HeuristicProjectAnalyzer struct{}

// NewHeuristicProjectAnalyzer returns the deterministic project analyzer.
func NewHeuristicProjectAnalyzer() HeuristicProjectAnalyzer {
	return HeuristicProjectAnalyzer{}
}

func (HeuristicProjectAnalyzer) AnalyzeProjects(ctx context.Context, doc model.Document, requirements string) (pipeline.ProjectReport, error) {
	if err := ctx.Err(); err != nil {
		return pipeline.ProjectReport{}, err
	}

	terms := requirementTerms(requirements)
	var report pipeline.ProjectReport
	for i, project := range doc.Projects {
		text := strings.ToLower(strings.Join([]string{
			project.Name, project.Description,
			strings.Join(project.Technologies, " "),
			strings.Join(project.Bullets, " "),
		}, " "))

		matched := 0
		for _, term := range terms {
			if strings.Contains(text, term) {
				matched++
			}
		}

		verdict := pipeline.ProjectVerdict{
			Index:    i,
			Name:     project.Name,
			Suitable: matched > 0 || len(terms) == 0,
		}
		if verdict.Suitable {
			verdict.Reason = fmt.Sprintf("matches %d of %d requirement terms", matched, len(terms))
		} else {
			verdict.Reason = "no overlap with the stated requirements"
		}
		report.Verdicts = append(report.Verdicts, verdict)
	}
	return report, nil
}

// HeuristicGenerator strengthens spans with safe lowercase verb swaps.
// Lowercase words never trip the fabricated-term check, numbers are left
// untouched so metrics survive, and near-identity keeps similarity high.
type HeuristicGenerator struct{}

// NewHeuristicGenerator returns the deterministic generator.
func NewHeuristicGenerator() HeuristicGenerator {
	return HeuristicGenerator{}
}

// Ordered longest-first so the specific phrasings win.
var verbSwaps = []struct{ weak, strong string }{
	{"responsible for managing", "managed"},
	{"responsible for overseeing", "oversaw"},
	{"was responsible for", "owned"},
	{"responsible for", "led"},
	{"was involved in", "contributed to"},
	{"participated in", "contributed to"},
	{"duties included", "delivered"},
	{"in charge of", "owned"},
	{"tasked with", "delivered"},
	{"assisted with", "supported"},
	{"assisted in", "supported"},
	{"helped with", "supported"},
	{"worked on", "built"},
	{"worked with", "used"},
}

func (HeuristicGenerator) GenerateRewrite(ctx context.Context, req pipeline.RewriteRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// A corrective retry asks for something closer to the original; the
	// closest deterministic answer is the original itself.
	if req.Attempt > 0 || strings.TrimSpace(req.Corrective) != "" {
		return collapseWhitespace(req.Original), nil
	}

	out := collapseWhitespace(req.Original)
	for _, swap := range verbSwaps {
		out = replaceFold(out, swap.weak, swap.strong)
	}
	return matchLeadingCase(out, req.Original), nil
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// replaceFold replaces every case-insensitive occurrence of old with new.
func replaceFold(s, old, new string) string {
	if old == "" {
		return s
	}
	lower := strings.ToLower(s)
	oldLower := strings.ToLower(old)

	var b strings.Builder
	for {
		idx := strings.Index(lower, oldLower)
		if idx == -1 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:idx])
		b.WriteString(new)
		s = s[idx+len(old):]
		lower = lower[idx+len(old):]
	}
}

// matchLeadingCase uppercases the first rune when the original began with an
// uppercase rune, so a swapped opening verb still reads like a sentence.
func matchLeadingCase(s, original string) string {
	if s == "" || original == "" {
		return s
	}
	origRunes := []rune(original)
	runes := []rune(s)
	if unicode.IsUpper(origRunes[0]) && unicode.IsLower(runes[0]) {
		runes[0] = unicode.ToUpper(runes[0])
		return string(runes)
	}
	return s
}

var (
	_ pipeline.Parser          = HeuristicParser{}
	_ pipeline.Scorer          = HeuristicScorer{}
	_ pipeline.ProjectAnalyzer = HeuristicProjectAnalyzer{}
	_ pipeline.Generator       = HeuristicGenerator{}
)
