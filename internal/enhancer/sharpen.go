package enhancer

import (
	"image"

	"github.com/anthonynsimon/bild/parallel"
)

// sharpenKernel is the 3x3 Laplacian sharpen kernel
var sharpenKernel = [3][3]float64{
	{0, -1, 0},
	{-1, 5, -1},
	{0, -1, 0},
}

// Sharpen convolves src with sharpenKernel and blends the result with the
// source as orig + (conv-orig)*(amount-1). Neighbors outside the image are
// sampled from the nearest edge pixel. Alpha is copied unchanged.
//
// Sharpen always convolves; callers decide whether amount warrants it.
func Sharpen(src *image.NRGBA, amount float64) *image.NRGBA {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	blend := amount - 1

	parallel.Line(height, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < width; x++ {
				var r, g, b float64
				for ky := -1; ky <= 1; ky++ {
					for kx := -1; kx <= 1; kx++ {
						wt := sharpenKernel[ky+1][kx+1]
						if wt == 0 {
							continue
						}
						sy := clamp(y+ky, 0, height-1)
						sx := clamp(x+kx, 0, width-1)
						off := src.PixOffset(bounds.Min.X+sx, bounds.Min.Y+sy)
						r += float64(src.Pix[off]) * wt
						g += float64(src.Pix[off+1]) * wt
						b += float64(src.Pix[off+2]) * wt
					}
				}

				si := src.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)
				di := dst.PixOffset(x, y)
				or := float64(src.Pix[si])
				og := float64(src.Pix[si+1])
				ob := float64(src.Pix[si+2])

				dst.Pix[di] = clampChannel(or + (r-or)*blend)
				dst.Pix[di+1] = clampChannel(og + (g-og)*blend)
				dst.Pix[di+2] = clampChannel(ob + (b-ob)*blend)
				dst.Pix[di+3] = src.Pix[si+3]
			}
		}
	})

	return dst
}

// clamp constrains val to [min, max]
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
