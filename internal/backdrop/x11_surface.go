//go:build linux

package backdrop

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/shadowcap/internal/logger"
)

// WindowClass is set on every backdrop window so enumeration can skip them
const WindowClass = "ShadowcapBackdrop"

type x11Factory struct{}

// NewFactory returns the backdrop factory for this host
func NewFactory() (Factory, error) {
	return x11Factory{}, nil
}

func (x11Factory) Create(ctx context.Context, rect image.Rectangle, c color.NRGBA, readyTimeout time.Duration) (Surface, error) {
	if rect.Empty() {
		return nil, fmt.Errorf("empty backdrop rect %v", rect)
	}

	// Each surface gets its own connection so its event loop never competes
	// with the backend's request/reply traffic.
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	h := &x11Host{conn: conn, rect: rect, pixel: pixel(c)}
	s, err := start(ctx, h, readyTimeout)
	if err != nil {
		return nil, err
	}

	logger.WithComponent("backdrop").Debug().
		Uint32("window_id", uint32(h.window())).
		Str("rect", rect.String()).
		Msg("X11 backdrop ready")
	return s, nil
}

type x11Host struct {
	conn  *xgb.Conn
	rect  image.Rectangle
	pixel uint32

	mu       sync.Mutex
	win      xproto.Window
	stopping bool
	closed   bool
}

func (h *x11Host) window() xproto.Window {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.win
}

func (h *x11Host) run(ready func()) error {
	defer h.shutdown()

	screen := xproto.Setup(h.conn).DefaultScreen(h.conn)

	wid, err := xproto.NewWindowId(h.conn)
	if err != nil {
		return fmt.Errorf("failed to create window ID: %w", err)
	}

	// Override-redirect keeps the window manager from decorating, focusing
	// or restacking the backdrop.
	mask := uint32(xproto.CwBackPixel | xproto.CwOverrideRedirect | xproto.CwEventMask)
	values := []uint32{
		h.pixel,
		1,
		xproto.EventMaskExposure | xproto.EventMaskStructureNotify,
	}

	err = xproto.CreateWindowChecked(
		h.conn,
		screen.RootDepth,
		wid,
		screen.Root,
		int16(h.rect.Min.X), int16(h.rect.Min.Y),
		uint16(h.rect.Dx()), uint16(h.rect.Dy()),
		0, // border width
		xproto.WindowClassInputOutput,
		screen.RootVisual,
		mask,
		values,
	).Check()
	if err != nil {
		return fmt.Errorf("failed to create window: %w", err)
	}

	h.mu.Lock()
	h.win = wid
	stopping := h.stopping
	h.mu.Unlock()
	if stopping {
		xproto.DestroyWindow(h.conn, wid)
		return nil
	}

	if err := h.setWindowClass("shadowcap", WindowClass); err != nil {
		logger.WithComponent("backdrop").Warn().
			Err(err).
			Msg("Failed to set window class")
	}

	if err := xproto.MapWindowChecked(h.conn, wid).Check(); err != nil {
		return fmt.Errorf("failed to map window: %w", err)
	}

	for {
		ev, xerr := h.conn.WaitForEvent()
		if ev == nil && xerr == nil {
			// connection closed
			return nil
		}
		if xerr != nil {
			logger.WithComponent("backdrop").Debug().
				Str("error", xerr.Error()).
				Msg("X11 error on backdrop connection")
			continue
		}

		switch e := ev.(type) {
		case xproto.ExposeEvent:
			if e.Window == wid && e.Count == 0 {
				xproto.ClearArea(h.conn, false, wid, 0, 0, 0, 0)
				h.conn.Sync()
				ready()
			}
		case xproto.DestroyNotifyEvent:
			if e.Window == wid {
				return nil
			}
		}
	}
}

// close destroys the window; the loop sees DestroyNotify and exits. Before
// the window exists it only flags the loop to stop once creation returns.
func (h *x11Host) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	if h.win == 0 {
		h.stopping = true
		return
	}
	xproto.DestroyWindow(h.conn, h.win)
	h.conn.Sync()
}

func (h *x11Host) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		h.closed = true
		h.conn.Close()
	}
}

// setWindowClass sets WM_CLASS (instance\0class\0)
func (h *x11Host) setWindowClass(instance, class string) error {
	classStr := instance + "\x00" + class + "\x00"
	return xproto.ChangePropertyChecked(
		h.conn,
		xproto.PropModeReplace,
		h.win,
		xproto.AtomWmClass,
		xproto.AtomString,
		8,
		uint32(len(classStr)),
		[]byte(classStr),
	).Check()
}
