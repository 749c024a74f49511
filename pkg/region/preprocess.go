package region

import (
	"image"
	"image/color"
	"sort"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/stat"
)

// Preprocess runs grayscale, percentile contrast stretch, sharpen, optional
// upscale and a fixed global threshold. The result holds only 0 and 255.
func (e *Extractor) Preprocess(src image.Image) *image.Gray {
	gray := imaging.Grayscale(src)
	gray = stretchContrast(gray, e.opts.LowPercentile, e.opts.HighPercentile)
	if e.opts.SharpenSigma > 0 {
		gray = imaging.Sharpen(gray, e.opts.SharpenSigma)
	}
	if h := gray.Bounds().Dy(); e.opts.UpscaleMinHeight > 0 && h < e.opts.UpscaleMinHeight {
		gray = imaging.Resize(gray, 0, e.opts.UpscaleMinHeight, imaging.Lanczos)
	}
	return binarize(gray, e.opts.Threshold)
}

// stretchContrast maps the [lo, hi] percentile luminance range onto [0, 255].
// Flat images are returned unchanged.
func stretchContrast(img *image.NRGBA, lowP, highP float64) *image.NRGBA {
	n := len(img.Pix) / 4
	if n == 0 {
		return img
	}
	lum := make([]float64, n)
	for i := 0; i < n; i++ {
		lum[i] = float64(img.Pix[i*4])
	}
	sort.Float64s(lum)
	lo := stat.Quantile(lowP, stat.Empirical, lum, nil)
	hi := stat.Quantile(highP, stat.Empirical, lum, nil)
	if hi-lo < 1 {
		return img
	}
	var lut [256]uint8
	for v := 0; v < 256; v++ {
		s := (float64(v) - lo) * 255 / (hi - lo)
		switch {
		case s < 0:
			s = 0
		case s > 255:
			s = 255
		}
		lut[v] = uint8(s + 0.5)
	}
	out := image.NewNRGBA(img.Rect)
	for i := 0; i < n; i++ {
		v := lut[img.Pix[i*4]]
		out.Pix[i*4] = v
		out.Pix[i*4+1] = v
		out.Pix[i*4+2] = v
		out.Pix[i*4+3] = 255
	}
	return out
}

// binarize performs a simple global threshold. Pixels at or below threshold
// become ink (0), the rest paper (255).
func binarize(img image.Image, threshold uint8) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bb, _ := img.At(x, y).RGBA()
			gray := uint8((r + g + bb) / 3 >> 8)
			var v uint8 = 255
			if gray <= threshold {
				v = 0
			}
			out.SetGray(x-b.Min.X, y-b.Min.Y, color.Gray{Y: v})
		}
	}
	return out
}
