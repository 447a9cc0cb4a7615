package capture

import (
	"image"
)

// Sampler reads the composited desktop. Samples are fully opaque.
type Sampler interface {
	// Name returns a human-readable name for this sampler
	Name() string

	// Sample returns the pixels of rect (screen coordinates) as composited
	// on screen, with alpha forced to 255. An empty rect is an error.
	Sample(rect image.Rectangle) (*image.NRGBA, error)

	// Close releases resources held by the sampler
	Close() error
}

// opaqueFromRGBA copies an opaque RGBA capture into a zero-origin NRGBA buffer
func opaqueFromRGBA(src *image.RGBA) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	w := b.Dx() * 4
	for y := 0; y < b.Dy(); y++ {
		s := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
		d := dst.Pix[y*dst.Stride : y*dst.Stride+w]
		for x := 0; x < w; x += 4 {
			d[x], d[x+1], d[x+2], d[x+3] = s[x], s[x+1], s[x+2], 255
		}
	}
	return dst
}

// opaqueBlack returns a zero-origin w×h buffer of opaque black, the value
// samplers report for pixels outside the desktop
func opaqueBlack(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	return img
}
