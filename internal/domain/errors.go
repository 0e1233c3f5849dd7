package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFilterRange is returned when a filter's date_from exceeds
	// its date_to. Detected before any search executes.
	ErrInvalidFilterRange = errors.New("invalid filter range: date_from after date_to")

	// ErrCorruptState marks persisted index state that could not be read
	// back. Callers recover by starting from an empty index.
	ErrCorruptState = errors.New("corrupt persisted state")

	// ErrBackendUnavailable marks a retrieval backend that is not
	// configured. Lexical search degrades to empty results instead of
	// failing the request.
	ErrBackendUnavailable = errors.New("retrieval backend unavailable")
)

// DimensionMismatchError indicates an embedding whose width differs from
// the configured index dimension. It is raised before any mutation.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}
