package alpha

import (
	"fmt"
	"image"
	"image/color"
	"math"
)

// Luma weights for the perceptual difference.
const (
	weightR = 0.299
	weightG = 0.587
	weightB = 0.114
)

// PerceptualAlpha maps a weighted colour difference in [0,1] onto an alpha.
// Small differences are sampling noise, mid-range ones are soft shadow and
// anything above 0.15 is window content.
func PerceptualAlpha(d float64) float64 {
	switch {
	case d <= 0.02:
		return 0
	case d <= 0.08:
		return math.Min(0.5, d*12)
	case d <= 0.15:
		return 0.6 + (d-0.08)*5
	default:
		return 1
	}
}

// Difference returns the luma-weighted absolute difference of two colours,
// normalised to [0,1].
func Difference(a, b color.NRGBA) float64 {
	dr := math.Abs(float64(a.R)-float64(b.R)) / 255
	dg := math.Abs(float64(a.G)-float64(b.G)) / 255
	db := math.Abs(float64(a.B)-float64(b.B)) / 255
	return weightR*dr + weightG*dg + weightB*db
}

// ExtractOverBackground estimates alpha for a capture taken over a single
// known background. The colour channels are copied from withWindow as-is, so
// shadow pixels keep the tint of the background they were captured over.
func ExtractOverBackground(withWindow, background *image.NRGBA) (*image.NRGBA, Stats, error) {
	var stats Stats
	if withWindow == nil || background == nil {
		return nil, stats, fmt.Errorf("extract: nil input buffer")
	}
	if withWindow.Rect.Dx() != background.Rect.Dx() || withWindow.Rect.Dy() != background.Rect.Dy() {
		return nil, stats, fmt.Errorf("extract: size mismatch %dx%d vs %dx%d",
			withWindow.Rect.Dx(), withWindow.Rect.Dy(), background.Rect.Dx(), background.Rect.Dy())
	}

	w, h := withWindow.Rect.Dx(), withWindow.Rect.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		sRow := withWindow.Pix[y*withWindow.Stride : y*withWindow.Stride+w*4]
		bRow := background.Pix[y*background.Stride : y*background.Stride+w*4]
		oRow := out.Pix[y*out.Stride : y*out.Stride+w*4]
		for x := 0; x < w*4; x += 4 {
			s := color.NRGBA{R: sRow[x], G: sRow[x+1], B: sRow[x+2], A: 255}
			b := color.NRGBA{R: bRow[x], G: bRow[x+1], B: bRow[x+2], A: 255}
			a := quant(PerceptualAlpha(Difference(s, b)))
			if a == 0 {
				oRow[x], oRow[x+1], oRow[x+2], oRow[x+3] = 0, 0, 0, 0
			} else {
				oRow[x], oRow[x+1], oRow[x+2], oRow[x+3] = s.R, s.G, s.B, a
			}
			stats.count(a)
		}
	}

	return out, stats, nil
}

// Solid returns a w x h buffer filled with c at full opacity.
func Solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, 255
	}
	return img
}
