package optimizations

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrNotReady     = errors.New("optimization has no artifact yet")
)
