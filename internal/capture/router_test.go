package capture

import (
	"errors"
	"image"
	"testing"
)

type stubSampler struct {
	name   string
	closed bool
}

func (s *stubSampler) Name() string { return s.name }

func (s *stubSampler) Close() error {
	s.closed = true
	return nil
}

func (s *stubSampler) Sample(rect image.Rectangle) (*image.NRGBA, error) {
	return image.NewNRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy())), nil
}

func newTestRouter(t *testing.T, mode string, nativeErr, shotErr error) (*Router, *stubSampler, *stubSampler) {
	t.Helper()
	r, err := NewRouter(mode)
	if err != nil {
		t.Fatalf("NewRouter(%q) error = %v", mode, err)
	}
	native := &stubSampler{name: "x11"}
	shot := &stubSampler{name: "screenshot"}
	r.newNative = func() (Sampler, error) {
		if nativeErr != nil {
			return nil, nativeErr
		}
		return native, nil
	}
	r.newScreenshot = func() (Sampler, error) {
		if shotErr != nil {
			return nil, shotErr
		}
		return shot, nil
	}
	r.newPortal = func() (Sampler, error) {
		return &stubSampler{name: "portal"}, nil
	}
	return r, native, shot
}

func TestRouterPrefersNative(t *testing.T) {
	r, native, _ := newTestRouter(t, SamplerAuto, nil, nil)
	if _, err := r.Sample(image.Rect(0, 0, 4, 4)); err != nil {
		t.Fatalf("Sample() error = %v", err)
	}
	if r.Name() != "x11" {
		t.Fatalf("Name() = %q, want x11", r.Name())
	}
	if err := r.Close(); err != nil || !native.closed {
		t.Fatalf("Close() = %v, closed = %v", err, native.closed)
	}
}

func TestRouterFallsBackToScreenshot(t *testing.T) {
	r, _, _ := newTestRouter(t, SamplerAuto, errors.New("no X"), nil)
	if err := r.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if r.Name() != "screenshot" {
		t.Fatalf("Name() = %q, want screenshot", r.Name())
	}
}

func TestRouterNativeModeDoesNotFallBack(t *testing.T) {
	r, _, _ := newTestRouter(t, SamplerNative, errors.New("no X"), nil)
	if err := r.Start(); err == nil {
		t.Fatalf("Start() should fail when native is unavailable")
	}
	_, err := r.Sample(image.Rect(0, 0, 1, 1))
	if !errors.Is(err, ErrCaptureFailed) {
		t.Fatalf("Sample() err = %v, want ErrCaptureFailed", err)
	}
}

func TestRouterScreenshotModeSkipsNative(t *testing.T) {
	r, _, _ := newTestRouter(t, SamplerScreenshot, nil, nil)
	r.newNative = func() (Sampler, error) {
		t.Fatalf("native constructor called in screenshot mode")
		return nil, nil
	}
	if err := r.Start(); err != nil || r.Name() != "screenshot" {
		t.Fatalf("Start() = %v, Name() = %q", err, r.Name())
	}
}

func TestRouterPortalModeIsExplicit(t *testing.T) {
	r, _, _ := newTestRouter(t, SamplerPortal, nil, nil)
	if err := r.Start(); err != nil || r.Name() != "portal" {
		t.Fatalf("Start() = %v, Name() = %q", err, r.Name())
	}

	r, _, _ = newTestRouter(t, SamplerAuto, errors.New("no X"), errors.New("no displays"))
	if err := r.Start(); err == nil {
		t.Fatalf("auto mode should not fall back to the portal")
	}
}

func TestNewRouterRejectsUnknownMode(t *testing.T) {
	if _, err := NewRouter("pipewire"); err == nil {
		t.Fatalf("NewRouter should reject unknown modes")
	}
	r, err := NewRouter("")
	if err != nil || r.mode != SamplerAuto {
		t.Fatalf("empty mode = %v, %v, want auto", r, err)
	}
}

func TestOpaqueFromRGBA(t *testing.T) {
	src := image.NewRGBA(image.Rect(10, 20, 13, 22))
	for i := range src.Pix {
		src.Pix[i] = uint8(i)
	}
	dst := opaqueFromRGBA(src)
	if dst.Rect != image.Rect(0, 0, 3, 2) {
		t.Fatalf("bounds = %v", dst.Rect)
	}
	for i := 0; i < len(dst.Pix); i += 4 {
		if dst.Pix[i] != src.Pix[i] || dst.Pix[i+3] != 255 {
			t.Fatalf("pixel %d = %v", i/4, dst.Pix[i:i+4])
		}
	}
}
