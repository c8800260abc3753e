package sessions

import (
	"fmt"

	"resume-optimizer/internal/pipeline"
)

type createSessionRequest struct {
	DocumentID   string `json:"documentId"`
	Text         string `json:"text"`
	Requirements string `json:"requirements"`
	TargetRole   string `json:"targetRole"`
}

// stepInputPayload is the wire shape of a user-supplied stage input. Kind is
// optional when exactly one payload field identifies it; Text is shorthand
// for a plain-text source document.
type stepInputPayload struct {
	Kind     string                          `json:"kind"`
	Text     string                          `json:"text"`
	Source   *pipeline.SourceInput           `json:"source"`
	Sections *pipeline.SectionsInput         `json:"sections"`
	Projects *pipeline.ProjectDecisionsInput `json:"projects"`
}

type executeStepRequest struct {
	Stage string            `json:"stage"`
	Input *stepInputPayload `json:"input"`
}

type recordInputRequest struct {
	Stage string `json:"stage"`
	stepInputPayload
}

func (p *stepInputPayload) toStepInput() (pipeline.StepInput, error) {
	source := p.Source
	if source == nil && p.Text != "" {
		source = &pipeline.SourceInput{Text: p.Text}
	}

	kind := pipeline.InputKind(p.Kind)
	if p.Kind == "" {
		switch {
		case p.Sections != nil:
			kind = pipeline.InputSections
		case p.Projects != nil:
			kind = pipeline.InputProjectDecisions
		case source != nil:
			kind = pipeline.InputSource
		default:
			return pipeline.StepInput{}, fmt.Errorf("%w: input payload is empty", ErrInvalidInput)
		}
	}

	in := pipeline.StepInput{Kind: kind}
	switch kind {
	case pipeline.InputSource:
		if source == nil {
			return pipeline.StepInput{}, fmt.Errorf("%w: source payload is required for kind %s", ErrInvalidInput, kind)
		}
		in.Source = source
	case pipeline.InputSections:
		if p.Sections == nil {
			return pipeline.StepInput{}, fmt.Errorf("%w: sections payload is required for kind %s", ErrInvalidInput, kind)
		}
		in.Sections = p.Sections
	case pipeline.InputProjectDecisions:
		if p.Projects == nil {
			return pipeline.StepInput{}, fmt.Errorf("%w: projects payload is required for kind %s", ErrInvalidInput, kind)
		}
		in.Projects = p.Projects
	default:
		return pipeline.StepInput{}, fmt.Errorf("%w: unknown input kind %q", ErrInvalidInput, p.Kind)
	}
	return in, nil
}
