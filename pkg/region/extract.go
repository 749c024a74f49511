package region

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Options tunes the preprocessing chain. The zero value is not useful; start
// from DefaultOptions.
type Options struct {
	// MinSize is the sliver limit: a region whose width or height is at or
	// below it is rejected.
	MinSize int
	// LowPercentile and HighPercentile bound the luminance range that is
	// stretched to full scale. Pixels outside are clipped.
	LowPercentile  float64
	HighPercentile float64
	SharpenSigma   float64
	Threshold      uint8
	// UpscaleMinHeight enlarges shorter crops before thresholding. Zero disables.
	UpscaleMinHeight int
}

func DefaultOptions() Options {
	return Options{
		MinSize:          8,
		LowPercentile:    0.02,
		HighPercentile:   0.98,
		SharpenSigma:     1.0,
		Threshold:        128,
		UpscaleMinHeight: 48,
	}
}

// Extractor applies the crop and preprocessing chain.
type Extractor struct {
	opts Options
}

func NewExtractor(opts Options) *Extractor {
	def := DefaultOptions()
	if opts.MinSize <= 0 {
		opts.MinSize = def.MinSize
	}
	if opts.HighPercentile <= opts.LowPercentile || opts.HighPercentile > 1 || opts.LowPercentile < 0 {
		opts.LowPercentile, opts.HighPercentile = def.LowPercentile, def.HighPercentile
	}
	if opts.Threshold == 0 {
		opts.Threshold = def.Threshold
	}
	return &Extractor{opts: opts}
}

// Extract returns one Crop per region in input order. Only a missing image or
// an empty region list fail the whole call; bad geometry is reported on the
// affected Crop as *InvalidRegionError.
func (e *Extractor) Extract(img image.Image, regions []Region) ([]Crop, error) {
	if img == nil {
		return nil, ErrNilImage
	}
	if len(regions) == 0 {
		return nil, ErrNoRegions
	}
	bounds := img.Bounds()
	out := make([]Crop, len(regions))
	for i, r := range regions {
		out[i] = Crop{Index: i, Region: r}
		if err := e.validate(bounds, i, r); err != nil {
			out[i].Err = err
			continue
		}
		cropped := imaging.Crop(img, r.Rect(bounds))
		out[i].Image = e.Preprocess(cropped)
	}
	return out, nil
}

func (e *Extractor) validate(bounds image.Rectangle, idx int, r Region) error {
	bad := func(reason string) error {
		return &InvalidRegionError{Index: idx, Region: r, Reason: reason}
	}
	switch {
	case r.X < 0 || r.Y < 0:
		return bad("negative origin")
	case r.Width <= e.opts.MinSize || r.Height <= e.opts.MinSize:
		return bad(fmt.Sprintf("smaller than minimum usable size %dpx", e.opts.MinSize))
	case !r.Rect(bounds).In(bounds):
		return bad(fmt.Sprintf("outside image bounds %dx%d", bounds.Dx(), bounds.Dy()))
	}
	return nil
}

// Decode reads any supported screenshot format and applies EXIF orientation.
func Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptImage, err)
	}
	return img, nil
}

// DecodeBytes is Decode over an in-memory blob.
func DecodeBytes(b []byte) (image.Image, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrCorruptImage)
	}
	return Decode(bytes.NewReader(b))
}

// EncodePNG serialises a preprocessed crop for the OCR engine.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
