package capture

import (
	"image"
	"image/color"
	"testing"

	"github.com/godbus/dbus/v5"
)

func TestParseResponse(t *testing.T) {
	results, err := parseResponse([]interface{}{uint32(0), map[string]dbus.Variant{
		"uri": dbus.MakeVariant("file:///tmp/Screenshot.png"),
	}})
	if err != nil {
		t.Fatalf("parseResponse() error = %v", err)
	}
	if got := results["uri"].Value().(string); got != "file:///tmp/Screenshot.png" {
		t.Fatalf("uri = %q", got)
	}

	if _, err := parseResponse([]interface{}{uint32(1), map[string]dbus.Variant{}}); err == nil {
		t.Fatalf("denied response should fail")
	}
	if _, err := parseResponse([]interface{}{uint32(0)}); err == nil {
		t.Fatalf("short response should fail")
	}
}

func TestFileFromURI(t *testing.T) {
	got, err := fileFromURI("file:///home/me/Pictures/Screenshot%20from%202024.png")
	if err != nil || got != "/home/me/Pictures/Screenshot from 2024.png" {
		t.Fatalf("fileFromURI() = %q, %v", got, err)
	}
	if _, err := fileFromURI("https://example.com/a.png"); err == nil {
		t.Fatalf("non-file uri should fail")
	}
}

func TestCropOpaque(t *testing.T) {
	full := image.NewRGBA(image.Rect(0, 0, 100, 80))
	full.Set(20, 10, color.RGBA{R: 9, G: 8, B: 7, A: 255})

	got := cropOpaque(full, image.Rect(20, 10, 30, 15))
	if got.Rect != image.Rect(0, 0, 10, 5) {
		t.Fatalf("bounds = %v", got.Rect)
	}
	if c := got.NRGBAAt(0, 0); c != (color.NRGBA{R: 9, G: 8, B: 7, A: 255}) {
		t.Fatalf("pixel = %+v", c)
	}
	if c := got.NRGBAAt(5, 2); c.A != 255 {
		t.Fatalf("alpha = %d, want forced opaque", c.A)
	}
}

func TestCropOpaquePartlyOffScreen(t *testing.T) {
	full := image.NewRGBA(image.Rect(0, 0, 1920, 1080))
	red := color.RGBA{R: 200, A: 255}
	full.Set(0, 0, red)
	full.Set(1919, 1079, red)

	rect := UniformMargins(50).Grow(image.Rect(0, 0, 1920, 1080))
	got := cropOpaque(full, rect)
	if got.Rect != image.Rect(0, 0, 2020, 1180) {
		t.Fatalf("bounds = %v, want 2020x1180", got.Rect)
	}

	black := color.NRGBA{A: 255}
	if c := got.NRGBAAt(0, 0); c != black {
		t.Fatalf("off-screen corner = %+v, want opaque black", c)
	}
	if c := got.NRGBAAt(2019, 1179); c != black {
		t.Fatalf("off-screen corner = %+v, want opaque black", c)
	}
	if c := got.NRGBAAt(50, 50); c != (color.NRGBA{R: 200, A: 255}) {
		t.Fatalf("desktop origin = %+v", c)
	}
	if c := got.NRGBAAt(1969, 1129); c != (color.NRGBA{R: 200, A: 255}) {
		t.Fatalf("desktop far corner = %+v", c)
	}
}

func TestCropOpaqueEntirelyOffScreen(t *testing.T) {
	full := image.NewRGBA(image.Rect(0, 0, 100, 80))
	got := cropOpaque(full, image.Rect(200, 200, 210, 205))
	if got.Rect != image.Rect(0, 0, 10, 5) {
		t.Fatalf("bounds = %v", got.Rect)
	}
	for i := 0; i < len(got.Pix); i += 4 {
		if got.Pix[i] != 0 || got.Pix[i+3] != 255 {
			t.Fatalf("pixel %d = %v, want opaque black", i/4, got.Pix[i:i+4])
		}
	}
}
