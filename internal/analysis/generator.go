package analysis

import (
	"context"
	"errors"
	"strings"

	"resume-optimizer/internal/llm"
	"resume-optimizer/internal/pipeline"
)

// Generator produces candidate span rewrites via the LLM. Corrective
// feedback from a failed validation rides in the user prompt on retries.
type Generator struct {
	client llm.Client
}

// NewGenerator builds the LLM-backed span generator.
func NewGenerator(client llm.Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) GenerateRewrite(ctx context.Context, req pipeline.RewriteRequest) (string, error) {
	system := strings.ReplaceAll(llm.RewriteSpanPrompt(), "{{TARGET_ROLE}}", req.TargetRole)

	var b strings.Builder
	if req.SpanLabel != "" {
		b.WriteString("Span: ")
		b.WriteString(req.SpanLabel)
		b.WriteString("\n")
	}
	b.WriteString("Original:\n")
	b.WriteString(req.Original)
	if strings.TrimSpace(req.Requirements) != "" {
		b.WriteString("\n\nJob Requirements:\n")
		b.WriteString(req.Requirements)
	}
	if strings.TrimSpace(req.Corrective) != "" {
		b.WriteString("\n\n")
		b.WriteString(req.Corrective)
	}

	raw, err := g.client.Complete(ctx, llm.CompleteInput{
		Op:     llm.OpRewriteSpan,
		System: system,
		Prompt: b.String(),
	})
	if err != nil {
		return "", wrapLLMError(llm.OpRewriteSpan, err)
	}

	out := cleanRewrite(raw)
	if out == "" {
		return "", pipeline.WrapError(pipeline.CategoryParsing, llm.OpRewriteSpan, errors.New("empty rewrite"))
	}
	return out, nil
}

// cleanRewrite strips the wrapping some models insist on adding around plain
// text output.
func cleanRewrite(raw string) string {
	out := strings.TrimSpace(raw)
	if strings.HasPrefix(out, "```") {
		out = strings.TrimPrefix(out, "```")
		if idx := strings.LastIndex(out, "```"); idx != -1 {
			out = out[:idx]
		}
		out = strings.TrimSpace(out)
	}
	if len(out) >= 2 && out[0] == '"' && out[len(out)-1] == '"' {
		out = out[1 : len(out)-1]
	}
	return strings.TrimSpace(out)
}

var _ pipeline.Generator = (*Generator)(nil)
