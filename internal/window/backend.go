package window

import (
	"errors"
	"image"
)

// Handle is an opaque platform window identity (X11 window id, HWND).
type Handle uintptr

var (
	// ErrNotFound is returned when no window matches a selector
	ErrNotFound = errors.New("window not found")
	// ErrUnsupportedPlatform is returned by NewBackend on hosts without a backend
	ErrUnsupportedPlatform = errors.New("window capture is not supported on this platform")
)

// Info is the raw per-window state reported by a Backend
type Info struct {
	Handle     Handle
	Class      string
	Title      string
	Visible    bool
	Foreground bool
	Minimized  bool
}

// Backend defines the platform window operations the capture flow depends on.
// Rectangles are in device pixels, screen coordinates.
type Backend interface {
	// Name returns the backend name (e.g., "x11", "win32")
	Name() string

	// Close releases the display connection
	Close() error

	// ListWindows returns all top-level windows in host z-order, topmost first
	ListWindows() ([]Info, error)

	// FindWindow returns the first top-level window matching class and/or title
	// exactly. An empty argument matches anything.
	FindWindow(class, title string) (Handle, error)

	IsWindow(h Handle) bool

	// IsVisible reports whether the window is shown and not minimized
	IsVisible(h Handle) bool

	Restore(h Handle) error

	// Activate brings the window to the foreground
	Activate(h Handle) error

	// WindowRect returns the window's own geometry in screen coordinates:
	// the client area on X11, the outer window rect on Win32
	WindowRect(h Handle) (image.Rectangle, error)

	// ExtendedFrameBounds returns the visible frame of the window, excluding
	// invisible resize borders and including server-side decorations
	ExtendedFrameBounds(h Handle) (image.Rectangle, error)

	// Resize sets the outer size without moving, restacking or activating
	Resize(h Handle, width, height int) error

	// SetBounds moves and resizes the window so that WindowRect afterwards
	// reports r. It accepts exactly what WindowRect returned.
	SetBounds(h Handle, r image.Rectangle) error

	// PresentAbove raises the window to the top of the stack without
	// giving it input focus
	PresentAbove(h Handle) error

	CursorPosition() (image.Point, error)
	SetCursorPosition(p image.Point) error
}
