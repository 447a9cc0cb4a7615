// Package alpha recovers straight-alpha pixels from captures of the same
// screen region composited over known solid backdrops.
package alpha

import (
	"fmt"
	"image"
	"image/color"
	"math"
)

// MinAlpha is the alpha at or below which a pixel is treated as fully
// transparent; dividing by smaller values only amplifies sampling noise.
const MinAlpha = 0.001

// Stats summarises an unmix or extraction run.
type Stats struct {
	Pixels      int
	Transparent int
	Opaque      int
	Partial     int
}

func (s *Stats) count(a uint8) {
	s.Pixels++
	switch a {
	case 0:
		s.Transparent++
	case 255:
		s.Opaque++
	default:
		s.Partial++
	}
}

// Pixel is a straight-alpha colour in [0,1] per component.
type Pixel struct {
	R, G, B, A float64
}

// UnmixPixel recovers colour and alpha of one pixel from its composite over
// black (b*) and over white (w*). Inputs are normalised to [0,1].
func UnmixPixel(br, bg, bb, wr, wg, wb float64) Pixel {
	ar := 1 - (wr - br)
	ag := 1 - (wg - bg)
	ab := 1 - (wb - bb)
	a := clamp01((ar + ag + ab) / 3)
	if a <= MinAlpha {
		return Pixel{}
	}
	return Pixel{
		R: clamp01(br / a),
		G: clamp01(bg / a),
		B: clamp01(bb / a),
		A: a,
	}
}

// Unmix combines a capture over black and a capture over white of the same
// rectangle into one straight-alpha image.
func Unmix(black, white *image.NRGBA) (*image.NRGBA, Stats, error) {
	var stats Stats
	if black == nil || white == nil {
		return nil, stats, fmt.Errorf("unmix: nil input buffer")
	}
	if black.Rect.Dx() != white.Rect.Dx() || black.Rect.Dy() != white.Rect.Dy() {
		return nil, stats, fmt.Errorf("unmix: size mismatch %dx%d vs %dx%d",
			black.Rect.Dx(), black.Rect.Dy(), white.Rect.Dx(), white.Rect.Dy())
	}

	w, h := black.Rect.Dx(), black.Rect.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		bRow := black.Pix[y*black.Stride : y*black.Stride+w*4]
		wRow := white.Pix[y*white.Stride : y*white.Stride+w*4]
		oRow := out.Pix[y*out.Stride : y*out.Stride+w*4]
		for x := 0; x < w*4; x += 4 {
			p := UnmixPixel(
				norm(bRow[x]), norm(bRow[x+1]), norm(bRow[x+2]),
				norm(wRow[x]), norm(wRow[x+1]), norm(wRow[x+2]),
			)
			c := p.NRGBA()
			oRow[x], oRow[x+1], oRow[x+2], oRow[x+3] = c.R, c.G, c.B, c.A
			stats.count(c.A)
		}
	}

	return out, stats, nil
}

// NRGBA quantises the pixel to 8 bits per channel with rounding.
func (p Pixel) NRGBA() color.NRGBA {
	if p.A <= MinAlpha {
		return color.NRGBA{}
	}
	return color.NRGBA{R: quant(p.R), G: quant(p.G), B: quant(p.B), A: quant(p.A)}
}

func norm(v uint8) float64 {
	return float64(v) / 255
}

func quant(v float64) uint8 {
	return uint8(math.Round(clamp01(v) * 255))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
