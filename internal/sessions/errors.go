package sessions

import "errors"

var (
	ErrNotFound     = errors.New("session not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrNoVersions   = errors.New("no document versions yet")
)
