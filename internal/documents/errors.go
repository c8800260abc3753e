package documents

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrNoTextContent   = errors.New("no text content in document")
)
