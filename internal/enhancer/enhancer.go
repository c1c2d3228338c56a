package enhancer

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/parallel"
	"github.com/disintegration/imaging"
)

// Luma weights used as the achromatic reference for saturation
const (
	lumaR = 0.2989
	lumaG = 0.5870
	lumaB = 0.1140
)

// ContrastFactor maps a contrast multiplier to the linear factor applied
// around the 128 pivot. The formula expects -255..255 inputs and is fed
// contrast*100, so 0 is neutral and 2.59 is a pole.
func ContrastFactor(contrast float64) float64 {
	c := contrast * 100
	return (259 * (c + 255)) / (255 * (259 - c))
}

// Enhance runs the full pipeline on a non-premultiplied copy of img.
// The result has the same dimensions as img with its origin at (0,0).
func Enhance(img image.Image, params Params) *image.NRGBA {
	out := AdjustColor(imaging.Clone(img), params)
	if params.SharpenEnabled() {
		out = Sharpen(out, params.Sharpness)
	}
	return out
}

// AdjustColor applies brightness, contrast and saturation to every pixel,
// in that order, and clamps the result. Alpha is copied unchanged.
func AdjustColor(src *image.NRGBA, params Params) *image.NRGBA {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	factor := ContrastFactor(params.Contrast)

	parallel.Line(height, func(start, end int) {
		for y := start; y < end; y++ {
			si := src.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			di := dst.PixOffset(0, y)
			for x := 0; x < width; x++ {
				r, g, b := adjustPixel(
					float64(src.Pix[si]),
					float64(src.Pix[si+1]),
					float64(src.Pix[si+2]),
					params, factor,
				)
				dst.Pix[di] = clampChannel(r)
				dst.Pix[di+1] = clampChannel(g)
				dst.Pix[di+2] = clampChannel(b)
				dst.Pix[di+3] = src.Pix[si+3]
				si += 4
				di += 4
			}
		}
	})

	return dst
}

// adjustPixel returns the unclamped channel values after the three stages
func adjustPixel(r, g, b float64, params Params, factor float64) (float64, float64, float64) {
	r *= params.Brightness
	g *= params.Brightness
	b *= params.Brightness

	r = factor*(r-128) + 128
	g = factor*(g-128) + 128
	b = factor*(b-128) + 128

	gray := lumaR*r + lumaG*g + lumaB*b
	r = gray + params.Saturation*(r-gray)
	g = gray + params.Saturation*(g-gray)
	b = gray + params.Saturation*(b-gray)

	return r, g, b
}

// clampChannel converts a channel value to 8 bits: clamped to [0,255],
// NaN to 0, and rounded half to even.
func clampChannel(v float64) uint8 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(math.RoundToEven(v))
}
