package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Category is the closed error taxonomy used for recovery lookup.
type Category string

const (
	CategoryAuthentication Category = "authentication_error"
	CategoryFileFormat     Category = "file_format_error"
	CategoryParsing        Category = "parsing_failure"
	CategoryTimeout        Category = "analysis_timeout"
	CategoryNetwork        Category = "network_error"
	CategoryValidation     Category = "validation_error"
)

// Controller contract errors. These are caller mistakes, not stage failures,
// and are the only errors ExecuteStep returns directly.
var (
	ErrUnknownStage      = errors.New("unknown pipeline stage")
	ErrSessionComplete   = errors.New("session already complete")
	ErrStepInFlight      = errors.New("a step is already executing for this session")
	ErrNothingToRollback = errors.New("no previous step to roll back to")
	ErrNoSuchVersion     = errors.New("no such document version")
)

// CategorizedError attaches a taxonomy category at the point an error is
// raised, so categorization does not have to guess from message text.
type CategorizedError struct {
	Category Category
	Op       string
	Err      error
}

func (e *CategorizedError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Category, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Category, e.Op, e.Err)
}

func (e *CategorizedError) Unwrap() error { return e.Err }

// WrapError wraps err with a category. Ports should prefer this over free
// text so Categorize never has to fall back to keyword matching.
func WrapError(category Category, op string, err error) error {
	return &CategorizedError{Category: category, Op: op, Err: err}
}

// categoryKeywords is consulted in order; the first category with a matching
// keyword wins.
var categoryKeywords = []struct {
	category Category
	keywords []string
}{
	{CategoryAuthentication, []string{"auth", "unauthorized", "forbidden", "api key", "credential", "401", "403"}},
	{CategoryFileFormat, []string{"file format", "unsupported format", "invalid format", "corrupt", "not a pdf", "not a docx", "mime"}},
	{CategoryParsing, []string{"pars", "unreadable", "empty document", "no text", "decode", "extract"}},
	{CategoryTimeout, []string{"timeout", "timed out", "deadline exceeded", "too slow"}},
	{CategoryNetwork, []string{"network", "connection", "unreachable", "refused", "dns", "socket", "502", "503", "504"}},
	{CategoryValidation, []string{"validat", "invalid input", "missing required", "fabricat"}},
}

// Categorize maps an error to its taxonomy category. Pure function: typed
// categories win, then keyword matching over the message in fixed priority
// order, then network_error.
func Categorize(err error) Category {
	if err == nil {
		return CategoryNetwork
	}
	var ce *CategorizedError
	if errors.As(err, &ce) {
		return ce.Category
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}

	msg := strings.ToLower(err.Error())
	for _, entry := range categoryKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(msg, kw) {
				return entry.category
			}
		}
	}
	return CategoryNetwork
}
