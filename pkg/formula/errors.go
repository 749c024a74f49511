package formula

import (
	"errors"
	"fmt"
)

// Error is a compile failure. Pos is the byte offset of Token in the source,
// so an editor can highlight it.
type Error struct {
	Pos     int    `json:"position"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("formula: %s at position %d", e.Message, e.Pos)
	}
	return fmt.Sprintf("formula: %s at position %d (%q)", e.Message, e.Pos, e.Token)
}

// EvaluationError means a record could not be scored at all, as opposed to
// a degenerate result.
type EvaluationError struct {
	Field   string
	Message string
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("formula: evaluate: field %q: %s", e.Field, e.Message)
}

var (
	ErrDuplicateMapping = errors.New("duplicate role mapping")
	ErrInvalidMapping   = errors.New("invalid role mapping")
)
