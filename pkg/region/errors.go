package region

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRegions is returned when Extract is called without any region.
	ErrNoRegions = errors.New("no regions supplied")
	// ErrNilImage is returned when Extract receives no image.
	ErrNilImage = errors.New("no image supplied")
	// ErrCorruptImage wraps decoder failures.
	ErrCorruptImage = errors.New("image could not be decoded")
)

// InvalidRegionError marks a single region as unusable. Other regions in the
// same request are unaffected.
type InvalidRegionError struct {
	Index  int
	Region Region
	Reason string
}

func (e *InvalidRegionError) Error() string {
	return fmt.Sprintf("region %d (%s): %s", e.Index, e.Region, e.Reason)
}
