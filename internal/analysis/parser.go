package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"resume-optimizer/internal/extract"
	"resume-optimizer/internal/llm"
	"resume-optimizer/internal/pipeline"
	"resume-optimizer/resume/model"
)

// Parser turns raw uploads into structured documents via one LLM call, with
// a single re-ask when the response does not decode.
type Parser struct {
	client llm.Client
}

// NewParser builds the LLM-backed parser.
func NewParser(client llm.Client) *Parser {
	return &Parser{client: client}
}

func (p *Parser) Parse(ctx context.Context, source pipeline.SourceInput) (model.Document, string, error) {
	text, err := sourceText(ctx, source)
	if err != nil {
		return model.Document{}, "", err
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		raw, err := p.client.Complete(ctx, llm.CompleteInput{
			Op:     llm.OpParseResume,
			System: llm.ParseResumePrompt(),
			Prompt: fmt.Sprintf("Resume Text:\n%s", text),
			JSON:   true,
		})
		if err != nil {
			return model.Document{}, "", wrapLLMError(llm.OpParseResume, err)
		}

		payload, err := extractJSONObject(raw)
		if err != nil {
			lastErr = err
			continue
		}

		var doc model.Document
		if err := json.Unmarshal([]byte(payload), &doc); err != nil {
			lastErr = err
			continue
		}

		normalizeDocument(&doc, text)
		if err := doc.Validate(); err != nil {
			lastErr = err
			continue
		}
		return doc, text, nil
	}

	if lastErr == nil {
		lastErr = errors.New("failed to build document")
	}
	return model.Document{}, "", pipeline.WrapError(pipeline.CategoryParsing, llm.OpParseResume, lastErr)
}

// sourceText resolves the input into raw text, extracting file bytes when no
// pre-extracted text is supplied.
func sourceText(ctx context.Context, source pipeline.SourceInput) (string, error) {
	if strings.TrimSpace(source.Text) != "" {
		return source.Text, nil
	}
	if len(source.Data) == 0 {
		return "", pipeline.WrapError(pipeline.CategoryValidation, "resolve_source", errors.New("missing required input: no file data or text"))
	}

	text, err := extract.ExtractTextFromBytes(ctx, source.Data, "", source.Filename)
	if err != nil {
		category := pipeline.CategoryParsing
		if strings.Contains(err.Error(), "unsupported mime") {
			category = pipeline.CategoryFileFormat
		}
		return "", pipeline.WrapError(category, "extract_text", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", pipeline.WrapError(pipeline.CategoryParsing, "extract_text", errors.New("no text in document"))
	}
	return text, nil
}

// wrapLLMError maps provider failures into the recovery taxonomy.
func wrapLLMError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return pipeline.WrapError(pipeline.CategoryTimeout, op, err)
	}

	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401, 403:
			return pipeline.WrapError(pipeline.CategoryAuthentication, op, err)
		case 408:
			return pipeline.WrapError(pipeline.CategoryTimeout, op, err)
		}
	}
	return pipeline.WrapError(pipeline.CategoryNetwork, op, err)
}

var yearPattern = regexp.MustCompile(`\d{4}(-(0[1-9]|1[0-2]))?`)

// normalizeDocument repairs the slack the prompt leaves: missing name falls
// back to the first text line, free-form dates are reduced to something
// Validate accepts.
func normalizeDocument(doc *model.Document, rawText string) {
	doc.Header.Name = strings.TrimSpace(doc.Header.Name)
	if doc.Header.Name == "" {
		doc.Header.Name = firstNonEmptyLine(rawText)
	}

	for i := range doc.Experience {
		doc.Experience[i].Start = normalizeDate(doc.Experience[i].Start)
		doc.Experience[i].End = normalizeDate(doc.Experience[i].End)
	}
	for i := range doc.Education {
		doc.Education[i].Start = normalizeDate(doc.Education[i].Start)
		doc.Education[i].End = normalizeDate(doc.Education[i].End)
	}
}

func normalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return ""
	case strings.EqualFold(raw, "present"), strings.EqualFold(raw, "current"), strings.EqualFold(raw, "now"):
		return "Present"
	}
	// "2021-03" wins over "2021"; a bare year inside "Jan 2021" still matches.
	if match := yearPattern.FindString(raw); match != "" {
		return match
	}
	return ""
}

func firstNonEmptyLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

var _ pipeline.Parser = (*Parser)(nil)
