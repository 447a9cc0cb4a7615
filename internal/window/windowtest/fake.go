// Package windowtest provides an in-memory window.Backend for tests.
package windowtest

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/bryanchriswhite/shadowcap/internal/window"
)

// Window is one fake top-level window
type Window struct {
	Handle     window.Handle
	Class      string
	Title      string
	Rect       image.Rectangle
	Visible    bool
	Minimized  bool
	Foreground bool

	// FrameInset shrinks Rect on every side to produce the extended frame
	// bounds, like the invisible resize borders on Windows. Negative values
	// grow it, like X11 decorations.
	FrameInset int
	// NoFrameBounds makes ExtendedFrameBounds fail
	NoFrameBounds bool
	// StayHidden makes Restore leave the window hidden
	StayHidden bool
}

// Backend is a scripted window.Backend. Windows are kept topmost first.
type Backend struct {
	mu      sync.Mutex
	windows []*Window
	cursor  image.Point
	calls   []string

	// SetBoundsErr is returned by SetBounds when set
	SetBoundsErr error
	// ResizeErr is returned by Resize when set
	ResizeErr error
}

var _ window.Backend = (*Backend)(nil)

// New creates a fake backend with the given windows, topmost first
func New(windows ...*Window) *Backend {
	return &Backend{windows: windows}
}

// Calls returns the mutating calls made so far, in order
func (b *Backend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// Window returns the fake window with handle h
func (b *Backend) Window(h window.Handle) *Window {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.find(h)
}

func (b *Backend) find(h window.Handle) *Window {
	for _, w := range b.windows {
		if w.Handle == h {
			return w
		}
	}
	return nil
}

func (b *Backend) record(format string, args ...interface{}) {
	b.calls = append(b.calls, fmt.Sprintf(format, args...))
}

func (b *Backend) Name() string { return "fake" }

func (b *Backend) Close() error { return nil }

func (b *Backend) ListWindows() ([]window.Info, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]window.Info, 0, len(b.windows))
	for _, w := range b.windows {
		out = append(out, window.Info{
			Handle:     w.Handle,
			Class:      w.Class,
			Title:      w.Title,
			Visible:    w.Visible,
			Foreground: w.Foreground,
			Minimized:  w.Minimized,
		})
	}
	return out, nil
}

func (b *Backend) FindWindow(class, title string) (window.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if class == "" && title == "" {
		return 0, window.ErrNotFound
	}
	for _, w := range b.windows {
		if class != "" && w.Class != class {
			continue
		}
		if title != "" && w.Title != title {
			continue
		}
		return w.Handle, nil
	}
	return 0, window.ErrNotFound
}

func (b *Backend) IsWindow(h window.Handle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.find(h) != nil
}

func (b *Backend) IsVisible(h window.Handle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	w := b.find(h)
	return w != nil && w.Visible && !w.Minimized
}

func (b *Backend) Restore(h window.Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("restore")
	w := b.find(h)
	if w == nil {
		return window.ErrNotFound
	}
	if !w.StayHidden {
		w.Visible = true
		w.Minimized = false
	}
	return nil
}

func (b *Backend) Activate(h window.Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("activate")
	for _, w := range b.windows {
		w.Foreground = w.Handle == h
	}
	return nil
}

func (b *Backend) WindowRect(h window.Handle) (image.Rectangle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	w := b.find(h)
	if w == nil {
		return image.Rectangle{}, window.ErrNotFound
	}
	return w.Rect, nil
}

func (b *Backend) ExtendedFrameBounds(h window.Handle) (image.Rectangle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	w := b.find(h)
	if w == nil {
		return image.Rectangle{}, window.ErrNotFound
	}
	if w.NoFrameBounds {
		return image.Rectangle{}, errors.New("no frame bounds")
	}
	return w.Rect.Inset(w.FrameInset), nil
}

func (b *Backend) Resize(h window.Handle, width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("resize %dx%d", width, height)
	if b.ResizeErr != nil {
		return b.ResizeErr
	}
	w := b.find(h)
	if w == nil {
		return window.ErrNotFound
	}
	w.Rect.Max = w.Rect.Min.Add(image.Pt(width, height))
	return nil
}

func (b *Backend) SetBounds(h window.Handle, r image.Rectangle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("setbounds %v", r)
	if b.SetBoundsErr != nil {
		return b.SetBoundsErr
	}
	w := b.find(h)
	if w == nil {
		return window.ErrNotFound
	}
	w.Rect = r
	return nil
}

func (b *Backend) PresentAbove(h window.Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("present")
	for i, w := range b.windows {
		if w.Handle == h {
			copy(b.windows[1:i+1], b.windows[:i])
			b.windows[0] = w
			return nil
		}
	}
	return window.ErrNotFound
}

func (b *Backend) CursorPosition() (image.Point, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cursor, nil
}

func (b *Backend) SetCursorPosition(p image.Point) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("cursor %d,%d", p.X, p.Y)
	b.cursor = p
	return nil
}
