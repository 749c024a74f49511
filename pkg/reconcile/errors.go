package reconcile

import "errors"

var (
	ErrInvalidKey = errors.New("invalid reconciliation key")
	// ErrVersionConflict is returned by a Store when the row changed since it was read.
	ErrVersionConflict = errors.New("stat record version conflict")
	// ErrContended is returned after repeated version conflicts on one key.
	ErrContended = errors.New("stat record is being updated concurrently")
)
