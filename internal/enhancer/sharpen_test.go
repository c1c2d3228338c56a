package enhancer

import (
	"image"
	"image/color"
	"testing"
)

func grayImage(width, height int, values []uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := values[y*width+x]
			img.SetNRGBA(x, y, color.NRGBA{v, v, v, 255})
		}
	}
	return img
}

func TestSharpen_EdgeReplicate(t *testing.T) {
	src := grayImage(2, 2, []uint8{
		100, 110,
		90, 100,
	})

	out := Sharpen(src, 1.5)

	expected := []uint8{100, 120, 80, 100}
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			got := out.NRGBAAt(x, y)
			want := expected[y*2+x]
			if got.R != want || got.G != want || got.B != want {
				t.Errorf("pixel (%d,%d): got %v, want gray %d", x, y, got, want)
			}
		}
	}
}

func TestSharpen_SinglePixelUnchanged(t *testing.T) {
	src := singlePixel(color.NRGBA{12, 200, 77, 180})

	for _, amount := range []float64{1.1, 3, 25} {
		got := Sharpen(src, amount).NRGBAAt(0, 0)
		if got != src.NRGBAAt(0, 0) {
			t.Errorf("amount=%v: got %v, want %v", amount, got, src.NRGBAAt(0, 0))
		}
	}
}

func TestSharpen_UniformRegionUnchanged(t *testing.T) {
	// Replicated borders keep a flat image flat; zero padding would darken the edges
	src := createTestImage(3, 3, color.NRGBA{200, 200, 200, 255})

	out := Sharpen(src, 2)

	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			if got := out.NRGBAAt(x, y); got != (color.NRGBA{200, 200, 200, 255}) {
				t.Errorf("pixel (%d,%d): got %v", x, y, got)
			}
		}
	}
}

func TestSharpen_UnitAmountIsIdentity(t *testing.T) {
	src := createPatternImage(9, 7)

	out := Sharpen(src, 1.0)

	for i := range src.Pix {
		if out.Pix[i] != src.Pix[i] {
			t.Fatalf("byte %d changed from %d to %d", i, src.Pix[i], out.Pix[i])
		}
	}
}

func TestSharpen_AlphaPreserved(t *testing.T) {
	src := createPatternImage(6, 6)

	out := Sharpen(src, 4)

	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			if out.NRGBAAt(x, y).A != src.NRGBAAt(x, y).A {
				t.Errorf("alpha changed at (%d,%d)", x, y)
			}
		}
	}
}

func TestSharpen_SubImageOrigin(t *testing.T) {
	full := grayImage(4, 4, []uint8{
		0, 0, 0, 0,
		0, 100, 110, 0,
		0, 90, 100, 0,
		0, 0, 0, 0,
	})
	sub := full.SubImage(image.Rect(1, 1, 3, 3)).(*image.NRGBA)

	out := Sharpen(sub, 1.5)

	if out.Bounds() != image.Rect(0, 0, 2, 2) {
		t.Fatalf("bounds: got %v", out.Bounds())
	}
	// The zero border outside the sub-image must not be sampled
	if got := out.NRGBAAt(1, 0).R; got != 120 {
		t.Errorf("pixel (1,0): got %d, want 120", got)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		val, min, max, expected int
	}{
		{-1, 0, 5, 0},
		{0, 0, 5, 0},
		{3, 0, 5, 3},
		{5, 0, 5, 5},
		{6, 0, 5, 5},
	}

	for _, tt := range tests {
		if got := clamp(tt.val, tt.min, tt.max); got != tt.expected {
			t.Errorf("clamp(%d, %d, %d) = %d, want %d", tt.val, tt.min, tt.max, got, tt.expected)
		}
	}
}
