// Package region crops annotated rectangles out of a screenshot and prepares
// each crop for OCR. Extraction is a pure function of pixel data.
package region

import (
	"fmt"
	"image"
)

// Region is a rectangle in source-image pixel space.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect translates the region into the coordinate space of bounds.
func (r Region) Rect(bounds image.Rectangle) image.Rectangle {
	x0 := bounds.Min.X + r.X
	y0 := bounds.Min.Y + r.Y
	return image.Rect(x0, y0, x0+r.Width, y0+r.Height)
}

func (r Region) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

// Crop is the result for one input region, in input order. Exactly one of
// Image and Err is set.
type Crop struct {
	Index  int
	Region Region
	Image  *image.Gray
	Err    error
}

// OK reports whether the crop is usable.
func (c Crop) OK() bool { return c.Err == nil && c.Image != nil }
