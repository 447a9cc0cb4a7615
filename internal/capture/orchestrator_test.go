package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bryanchriswhite/shadowcap/internal/backdrop"
	"github.com/bryanchriswhite/shadowcap/internal/window"
	"github.com/bryanchriswhite/shadowcap/internal/window/windowtest"
)

// fakeFactory records backdrop colours and tracks live surfaces
type fakeFactory struct {
	mu        sync.Mutex
	colors    []color.NRGBA
	rects     []image.Rectangle
	live      int
	destroyed int
	current   color.NRGBA

	createErr  error
	destroyErr error
}

type fakeSurface struct {
	f *fakeFactory
}

func (s *fakeSurface) Destroy(time.Duration) error {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	s.f.live--
	s.f.destroyed++
	return s.f.destroyErr
}

func (f *fakeFactory) Create(ctx context.Context, rect image.Rectangle, c color.NRGBA, _ time.Duration) (backdrop.Surface, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.colors = append(f.colors, c)
	f.rects = append(f.rects, rect)
	f.current = c
	f.live++
	return &fakeSurface{f: f}, nil
}

func (f *fakeFactory) backdrop() color.NRGBA {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// fakeSampler composites a translucent window over the current backdrop.
// Inside content the window colour is drawn at contentAlpha; elsewhere
// the backdrop shows through.
type fakeSampler struct {
	factory      *fakeFactory
	content      image.Rectangle
	contentColor color.NRGBA
	contentAlpha float64

	err   error
	rects []image.Rectangle
}

func (s *fakeSampler) Name() string { return "fake" }

func (s *fakeSampler) Close() error { return nil }

func (s *fakeSampler) Sample(rect image.Rectangle) (*image.NRGBA, error) {
	s.rects = append(s.rects, rect)
	if s.err != nil {
		return nil, s.err
	}
	bg := s.factory.backdrop()
	img := image.NewNRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			c := bg
			if image.Pt(x, y).In(s.content) {
				c = over(s.contentColor, s.contentAlpha, bg)
			}
			c.A = 255
			img.SetNRGBA(x-rect.Min.X, y-rect.Min.Y, c)
		}
	}
	return img, nil
}

func over(fg color.NRGBA, a float64, bg color.NRGBA) color.NRGBA {
	mix := func(f, b uint8) uint8 {
		return uint8(float64(f)*a + float64(b)*(1-a) + 0.5)
	}
	return color.NRGBA{R: mix(fg.R, bg.R), G: mix(fg.G, bg.G), B: mix(fg.B, bg.B), A: 255}
}

type harness struct {
	be      *windowtest.Backend
	factory *fakeFactory
	sampler *fakeSampler
	orch    *Orchestrator
	events  []Event
	sleeps  []time.Duration
}

func newHarness(t *testing.T, windows ...*windowtest.Window) *harness {
	t.Helper()
	h := &harness{be: windowtest.New(windows...), factory: &fakeFactory{}}
	h.sampler = &fakeSampler{factory: h.factory, contentColor: color.NRGBA{R: 200, G: 100, B: 50, A: 255}, contentAlpha: 1}

	h.orch = NewOrchestrator(window.NewManager(h.be, nil), h.factory, h.sampler, DefaultTiming())
	h.orch.SetParkCursor(false)
	h.orch.SetObserver(func(e Event) { h.events = append(h.events, e) })
	h.orch.sleep = func(ctx context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return ctx.Err()
	}
	return h
}

func (h *harness) stages() []Stage {
	out := make([]Stage, len(h.events))
	for i, e := range h.events {
		out[i] = e.Stage
	}
	return out
}

func (h *harness) hasStage(s Stage) bool {
	for _, e := range h.events {
		if e.Stage == s {
			return true
		}
	}
	return false
}

func term() *windowtest.Window {
	return &windowtest.Window{
		Handle:  7,
		Class:   "Term",
		Title:   "zsh",
		Rect:    image.Rect(100, 100, 500, 400),
		Visible: true,
	}
}

func TestCaptureNotFoundHasNoSideEffects(t *testing.T) {
	h := newHarness(t, term())

	_, err := h.orch.Capture(context.Background(), window.Selector{Title: "missing"}, DefaultOptions())
	if !errors.Is(err, ErrWindowNotFound) {
		t.Fatalf("err = %v, want ErrWindowNotFound", err)
	}
	if ExitCode(err) != ExitWindowNotFound {
		t.Fatalf("exit code = %d, want %d", ExitCode(err), ExitWindowNotFound)
	}
	if calls := h.be.Calls(); len(calls) != 0 {
		t.Fatalf("unexpected backend calls: %v", calls)
	}
	if len(h.factory.colors) != 0 {
		t.Fatalf("backdrops created for missing window: %v", h.factory.colors)
	}
	if !h.hasStage(StageFailed) {
		t.Fatalf("stages = %v, want failed", h.stages())
	}
}

func TestCaptureOpaqueWithMargins(t *testing.T) {
	h := newHarness(t, term())
	opts := DefaultOptions()
	opts.Background = Background{Mode: Opaque, Color: color.NRGBA{R: 255, G: 255, B: 255, A: 255}}

	img, err := h.orch.Capture(context.Background(), window.Selector{Title: "zsh"}, opts)
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if img.Rect != image.Rect(0, 0, 500, 400) {
		t.Fatalf("bounds = %v, want 500x400", img.Rect)
	}
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 255 {
			t.Fatalf("pixel %d alpha = %d, want opaque", i/4, img.Pix[i])
		}
	}
	if len(h.factory.colors) != 1 {
		t.Fatalf("backdrops = %d, want 1", len(h.factory.colors))
	}
	if want := image.Rect(50, 50, 550, 450); h.sampler.rects[0] != want {
		t.Fatalf("sampled %v, want %v", h.sampler.rects[0], want)
	}
	if h.factory.live != 0 {
		t.Fatalf("%d surfaces left alive", h.factory.live)
	}
}

func TestCaptureTransparentRecoversAlpha(t *testing.T) {
	h := newHarness(t, term())
	h.sampler.content = image.Rect(100, 100, 500, 400)
	h.sampler.contentAlpha = 0.5

	img, err := h.orch.Capture(context.Background(), window.Selector{Class: "Term"}, DefaultOptions())
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}

	if got := h.factory.colors; len(got) != 2 || got[0] != black || got[1] != white {
		t.Fatalf("backdrop colours = %v, want black then white", got)
	}

	// margin area is pure backdrop
	if got := img.NRGBAAt(10, 10); got != (color.NRGBA{}) {
		t.Fatalf("margin pixel = %+v, want transparent", got)
	}

	got := img.NRGBAAt(250, 200)
	if absDiff(got.A, 128) > 2 || absDiff(got.R, 200) > 3 || absDiff(got.G, 100) > 3 || absDiff(got.B, 50) > 3 {
		t.Fatalf("content pixel = %+v, want about {200 100 50 128}", got)
	}
	if !h.hasStage(StageUnmixed) || !h.hasStage(StageDone) {
		t.Fatalf("stages = %v", h.stages())
	}
}

func TestCaptureKeyedBackground(t *testing.T) {
	h := newHarness(t, term())
	h.sampler.content = image.Rect(100, 100, 500, 400)
	opts := DefaultOptions()
	opts.Background = Background{Mode: Keyed, Color: DefaultKeyColor}

	img, err := h.orch.Capture(context.Background(), window.Selector{Title: "zsh"}, opts)
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if len(h.factory.colors) != 1 || h.factory.colors[0] != DefaultKeyColor {
		t.Fatalf("backdrop colours = %v", h.factory.colors)
	}
	if got := img.NRGBAAt(0, 0); got.A != 0 {
		t.Fatalf("key pixel = %+v, want transparent", got)
	}
	if got := img.NRGBAAt(250, 200); got != (color.NRGBA{R: 200, G: 100, B: 50, A: 255}) {
		t.Fatalf("content pixel = %+v", got)
	}
}

func TestCaptureResizeProducesExactSize(t *testing.T) {
	h := newHarness(t, term())
	opts := Options{
		Margins:    UniformMargins(10),
		Resize:     &Size{Width: 200, Height: 150},
		Background: Background{Mode: Opaque, Color: black},
	}

	img, err := h.orch.Capture(context.Background(), window.Selector{Title: "zsh"}, opts)
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if img.Rect.Dx() != 200 || img.Rect.Dy() != 150 {
		t.Fatalf("output = %v, want 200x150", img.Rect)
	}

	calls := strings.Join(h.be.Calls(), "; ")
	if !strings.Contains(calls, "resize 180x130") {
		t.Fatalf("calls = %s, want resize 180x130", calls)
	}
	if !strings.HasSuffix(calls, "setbounds (100,100)-(500,400)") {
		t.Fatalf("calls = %s, want geometry restored last", calls)
	}
	if got := h.be.Window(7).Rect; got != image.Rect(100, 100, 500, 400) {
		t.Fatalf("window rect after capture = %v", got)
	}
	if !h.hasStage(StageResized) || !h.hasStage(StageRestored) {
		t.Fatalf("stages = %v", h.stages())
	}
}

func TestCaptureResizeCorrectsForFrameBorder(t *testing.T) {
	w := term()
	w.FrameInset = 7
	h := newHarness(t, w)
	opts := Options{
		Margins:    UniformMargins(10),
		Resize:     &Size{Width: 200, Height: 150},
		Background: Background{Mode: Opaque, Color: black},
	}

	img, err := h.orch.Capture(context.Background(), window.Selector{Title: "zsh"}, opts)
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if img.Rect.Dx() != 200 || img.Rect.Dy() != 150 {
		t.Fatalf("output = %v, want 200x150", img.Rect)
	}

	calls := h.be.Calls()
	var resizes []string
	for _, c := range calls {
		if strings.HasPrefix(c, "resize ") {
			resizes = append(resizes, c)
		}
	}
	want := []string{"resize 180x130", "resize 194x144"}
	if fmt.Sprint(resizes) != fmt.Sprint(want) {
		t.Fatalf("resizes = %v, want %v", resizes, want)
	}
}

func TestCaptureMarginsExceedResize(t *testing.T) {
	h := newHarness(t, term())
	opts := Options{
		Margins: UniformMargins(100),
		Resize:  &Size{Width: 200, Height: 150},
	}

	_, err := h.orch.Capture(context.Background(), window.Selector{Title: "zsh"}, opts)
	if !errors.Is(err, ErrInvalidDimensions) {
		t.Fatalf("err = %v, want ErrInvalidDimensions", err)
	}
	if ExitCode(err) != ExitInvalidDimensions {
		t.Fatalf("exit code = %d", ExitCode(err))
	}
	for _, c := range h.be.Calls() {
		if strings.HasPrefix(c, "resize") || strings.HasPrefix(c, "setbounds") {
			t.Fatalf("window mutated before validation: %v", h.be.Calls())
		}
	}
}

func TestCaptureNegativeMargins(t *testing.T) {
	h := newHarness(t, term())
	opts := DefaultOptions()
	opts.Margins = Margins{Left: -1}

	_, err := h.orch.Capture(context.Background(), window.Selector{Title: "zsh"}, opts)
	if !errors.Is(err, ErrInvalidDimensions) {
		t.Fatalf("err = %v, want ErrInvalidDimensions", err)
	}
	if calls := h.be.Calls(); len(calls) != 0 {
		t.Fatalf("window touched before validation: %v", calls)
	}

	_, err = h.orch.Capture(context.Background(), window.Selector{Title: "missing"}, opts)
	if !errors.Is(err, ErrWindowNotFound) {
		t.Fatalf("missing window err = %v, want ErrWindowNotFound", err)
	}
}

func TestCaptureRestoresGeometryOnFailure(t *testing.T) {
	h := newHarness(t, term())
	h.sampler.err = errors.New("display went away")
	opts := Options{
		Margins: UniformMargins(10),
		Resize:  &Size{Width: 300, Height: 300},
	}

	_, err := h.orch.Capture(context.Background(), window.Selector{Title: "zsh"}, opts)
	if !errors.Is(err, ErrCaptureFailed) {
		t.Fatalf("err = %v, want ErrCaptureFailed", err)
	}
	if ExitCode(err) != ExitCaptureFailed {
		t.Fatalf("exit code = %d", ExitCode(err))
	}
	if got := h.be.Window(7).Rect; got != image.Rect(100, 100, 500, 400) {
		t.Fatalf("window rect = %v, want original", got)
	}
	if h.factory.live != 0 || h.factory.destroyed != 1 {
		t.Fatalf("live = %d destroyed = %d, want surface torn down", h.factory.live, h.factory.destroyed)
	}
}

func TestCaptureRestoreFailureIsNotReturned(t *testing.T) {
	h := newHarness(t, term())
	h.be.SetBoundsErr = errors.New("window manager refused")
	opts := Options{
		Margins:    UniformMargins(10),
		Resize:     &Size{Width: 300, Height: 300},
		Background: Background{Mode: Opaque, Color: black},
	}

	if _, err := h.orch.Capture(context.Background(), window.Selector{Title: "zsh"}, opts); err != nil {
		t.Fatalf("Capture() error = %v, want restore failure to be logged only", err)
	}
	if h.hasStage(StageRestored) {
		t.Fatalf("restored stage emitted for failed restore")
	}
}

func TestCaptureRestoresMinimizedWindow(t *testing.T) {
	w := term()
	w.Minimized = true
	h := newHarness(t, w)
	opts := DefaultOptions()
	opts.Background = Background{Mode: Opaque, Color: black}

	if _, err := h.orch.Capture(context.Background(), window.Selector{Title: "zsh"}, opts); err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	calls := h.be.Calls()
	if len(calls) < 2 || calls[0] != "restore" || calls[1] != "activate" {
		t.Fatalf("calls = %v, want restore then activate", calls)
	}
	if h.sleeps[0] != DefaultTiming().RestoreSettle {
		t.Fatalf("first sleep = %v, want restore settle", h.sleeps[0])
	}
}

func TestCaptureWindowStaysHidden(t *testing.T) {
	w := term()
	w.Visible = false
	w.StayHidden = true
	h := newHarness(t, w)

	_, err := h.orch.Capture(context.Background(), window.Selector{Handle: 7}, DefaultOptions())
	if !errors.Is(err, ErrWindowNotVisible) {
		t.Fatalf("err = %v, want ErrWindowNotVisible", err)
	}
	if ExitCode(err) != ExitWindowNotVisible {
		t.Fatalf("exit code = %d", ExitCode(err))
	}
	if len(h.factory.colors) != 0 {
		t.Fatalf("backdrop created for hidden window")
	}
}

func TestCaptureSurfaceTimeout(t *testing.T) {
	h := newHarness(t, term())
	h.factory.createErr = fmt.Errorf("x11: %w", backdrop.ErrTimeout)

	_, err := h.orch.Capture(context.Background(), window.Selector{Title: "zsh"}, DefaultOptions())
	if !errors.Is(err, ErrBackgroundSurfaceTimeout) {
		t.Fatalf("err = %v, want ErrBackgroundSurfaceTimeout", err)
	}
	if ExitCode(err) != ExitBackgroundSurfaceTimeout {
		t.Fatalf("exit code = %d", ExitCode(err))
	}
	if len(h.sampler.rects) != 0 {
		t.Fatalf("sampled without a backdrop")
	}
}

func TestCaptureSurfaceLeakIsNotFatal(t *testing.T) {
	h := newHarness(t, term())
	h.factory.destroyErr = backdrop.ErrJoinTimeout
	opts := DefaultOptions()
	opts.Background = Background{Mode: Opaque, Color: black}

	if _, err := h.orch.Capture(context.Background(), window.Selector{Title: "zsh"}, opts); err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
}

func TestCaptureParksCursor(t *testing.T) {
	w := term()
	w.Rect = image.Rect(0, 0, 300, 200)
	h := newHarness(t, w)
	h.orch.SetParkCursor(true)
	if err := h.be.SetCursorPosition(image.Pt(40, 40)); err != nil {
		t.Fatal(err)
	}
	opts := Options{Background: Background{Mode: Opaque, Color: black}}

	if _, err := h.orch.Capture(context.Background(), window.Selector{Title: "zsh"}, opts); err != nil {
		t.Fatalf("Capture() error = %v", err)
	}

	var cursor []string
	for _, c := range h.be.Calls() {
		if strings.HasPrefix(c, "cursor") {
			cursor = append(cursor, c)
		}
	}
	// origin is inside the capture area, so the pointer goes past its corner
	want := []string{"cursor 40,40", "cursor 300,200", "cursor 40,40"}
	if fmt.Sprint(cursor) != fmt.Sprint(want) {
		t.Fatalf("cursor calls = %v, want %v", cursor, want)
	}
}

func TestCaptureCancelled(t *testing.T) {
	h := newHarness(t, term())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.orch.Capture(ctx, window.Selector{Title: "zsh"}, DefaultOptions())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if ExitCode(err) != ExitError {
		t.Fatalf("exit code = %d, want %d", ExitCode(err), ExitError)
	}
}

func TestCaptureStageOrder(t *testing.T) {
	h := newHarness(t, term())
	opts := DefaultOptions()
	opts.Background = Background{Mode: Opaque, Color: black}

	if _, err := h.orch.Capture(context.Background(), window.Selector{Title: "zsh"}, opts); err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	want := []Stage{StageResolved, StageActivated, StageBackdrop, StageSampled, StageDone}
	if fmt.Sprint(h.stages()) != fmt.Sprint(want) {
		t.Fatalf("stages = %v, want %v", h.stages(), want)
	}
	for _, e := range h.events {
		if e.Handle != 7 || e.Title != "zsh" {
			t.Fatalf("event %+v missing window identity", e)
		}
	}
}

func TestSleepContext(t *testing.T) {
	if err := sleepContext(context.Background(), 0); err != nil {
		t.Fatalf("zero sleep error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("cancelled sleep blocked")
	}
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
