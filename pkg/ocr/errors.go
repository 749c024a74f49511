package ocr

import "errors"

var (
	// ErrTimeout is returned when recognition exceeds its deadline.
	ErrTimeout = errors.New("ocr timed out")
	// ErrUnavailable is returned when the engine fails or its breaker is open.
	ErrUnavailable = errors.New("ocr engine unavailable")
)
