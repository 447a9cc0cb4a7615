package output

import (
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/tiff"
)

// Format is an output image encoding
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
	BMP  Format = "bmp"
	GIF  Format = "gif"
	TIFF Format = "tiff"
)

// DefaultJPEGQuality is used when no quality is configured
const DefaultJPEGQuality = 95

// ParseFormat accepts a format name or a file extension, with or without the dot
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".") {
	case "png":
		return PNG, nil
	case "jpg", "jpeg":
		return JPEG, nil
	case "bmp":
		return BMP, nil
	case "gif":
		return GIF, nil
	case "tif", "tiff":
		return TIFF, nil
	default:
		return "", fmt.Errorf("unsupported format %q (use: png, jpeg, bmp, gif, tiff)", s)
	}
}

// FormatFromPath picks the format from the file extension, falling back to PNG
func FormatFromPath(path string) Format {
	f, err := ParseFormat(filepath.Ext(path))
	if err != nil {
		return PNG
	}
	return f
}

// Extension returns the file extension including the dot
func (f Format) Extension() string {
	switch f {
	case JPEG:
		return ".jpg"
	case "":
		return ".png"
	default:
		return "." + string(f)
	}
}

// ContentType returns the MIME type
func (f Format) ContentType() string {
	switch f {
	case JPEG:
		return "image/jpeg"
	case BMP:
		return "image/bmp"
	case GIF:
		return "image/gif"
	case TIFF:
		return "image/tiff"
	default:
		return "image/png"
	}
}

// SupportsAlpha reports whether the encoding keeps the alpha channel
func (f Format) SupportsAlpha() bool {
	return f != JPEG && f != GIF
}

// Encode writes img to w. Formats without alpha get the image flattened
// over white first.
func Encode(w io.Writer, img *image.NRGBA, f Format, quality int) error {
	switch f {
	case PNG, "":
		enc := png.Encoder{CompressionLevel: png.DefaultCompression}
		return enc.Encode(w, img)
	case JPEG:
		if quality <= 0 || quality > 100 {
			quality = DefaultJPEGQuality
		}
		return jpeg.Encode(w, Flatten(img, color.White), &jpeg.Options{Quality: quality})
	case BMP:
		return bmp.Encode(w, img)
	case GIF:
		return gif.Encode(w, Flatten(img, color.White), &gif.Options{NumColors: 256})
	case TIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	default:
		return fmt.Errorf("unsupported format %q", f)
	}
}

// Flatten composites img over a solid background
func Flatten(img image.Image, bg color.Color) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, xdraw.Src)
	xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Over)
	return dst
}
