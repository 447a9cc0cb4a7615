//go:build linux

package window

import (
	"fmt"
	"image"
	"strings"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xwindow"
	"github.com/bryanchriswhite/shadowcap/internal/logger"
)

const stateHidden = "_NET_WM_STATE_HIDDEN"

// sourcePager marks _NET_MOVERESIZE_WINDOW requests as direct user actions
const sourcePager = 2

var moveresize = ewmh.MoveresizeWindowExtra

// X11Backend implements the Backend interface using X11 and EWMH
type X11Backend struct {
	xu   *xgbutil.XUtil
	root xproto.Window
}

var _ Backend = (*X11Backend)(nil)

// NewBackend opens the platform backend for this host
func NewBackend() (Backend, error) {
	return NewX11Backend()
}

// NewX11Backend creates a new X11 backend
func NewX11Backend() (*X11Backend, error) {
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	return &X11Backend{
		xu:   xu,
		root: xu.RootWin(),
	}, nil
}

// Close closes the X11 connection
func (b *X11Backend) Close() error {
	b.xu.Conn().Close()
	return nil
}

// Name returns the backend name
func (b *X11Backend) Name() string {
	return "x11"
}

// XUtil returns the underlying connection (shared with the X11 sampler)
func (b *X11Backend) XUtil() *xgbutil.XUtil {
	return b.xu
}

// ListWindows returns managed client windows topmost first, using
// _NET_CLIENT_LIST_STACKING with _NET_CLIENT_LIST and QueryTree fallbacks
func (b *X11Backend) ListWindows() ([]Info, error) {
	log := logger.WithComponent("x11-backend")

	clients, err := b.stackedClients()
	if err != nil {
		log.Debug().Err(err).Msg("ListWindows: EWMH failed, falling back to QueryTree")
		tree, qerr := xproto.QueryTree(b.xu.Conn(), b.root).Reply()
		if qerr != nil {
			log.Error().Err(qerr).Msg("ListWindows: QueryTree fallback failed")
			return nil, qerr
		}
		// QueryTree children are bottom-to-top
		clients = reversed(tree.Children)
	}

	active, _ := ewmh.ActiveWindowGet(b.xu)

	windows := make([]Info, 0, len(clients))
	for _, win := range clients {
		attrs, err := xproto.GetWindowAttributes(b.xu.Conn(), win).Reply()
		if err != nil {
			log.Debug().Uint32("winID", uint32(win)).Err(err).Msg("ListWindows: window vanished")
			continue
		}
		if attrs.OverrideRedirect {
			continue
		}

		hidden := b.hasState(win, stateHidden)
		windows = append(windows, Info{
			Handle:     Handle(win),
			Class:      b.windowClass(win),
			Title:      b.windowTitle(win),
			Visible:    attrs.MapState == xproto.MapStateViewable || hidden,
			Foreground: win == active,
			Minimized:  hidden,
		})
	}

	log.Debug().Int("count", len(windows)).Msg("ListWindows: enumerated clients")
	return windows, nil
}

func (b *X11Backend) stackedClients() ([]xproto.Window, error) {
	clients, err := ewmh.ClientListStackingGet(b.xu)
	if err != nil || len(clients) == 0 {
		clients, err = ewmh.ClientListGet(b.xu)
		if err != nil {
			return nil, fmt.Errorf("failed to get _NET_CLIENT_LIST: %w", err)
		}
	}
	if len(clients) == 0 {
		return nil, fmt.Errorf("_NET_CLIENT_LIST is empty")
	}
	// both lists are in bottom-to-top order
	return reversed(clients), nil
}

func reversed(in []xproto.Window) []xproto.Window {
	out := make([]xproto.Window, len(in))
	for i, w := range in {
		out[len(in)-1-i] = w
	}
	return out
}

// FindWindow returns the topmost client matching class and title exactly
func (b *X11Backend) FindWindow(class, title string) (Handle, error) {
	windows, err := b.ListWindows()
	if err != nil {
		return 0, err
	}
	for _, w := range windows {
		if class != "" && w.Class != class {
			continue
		}
		if title != "" && w.Title != title {
			continue
		}
		return w.Handle, nil
	}
	return 0, ErrNotFound
}

// IsWindow reports whether the id still refers to an existing window
func (b *X11Backend) IsWindow(h Handle) bool {
	if h == 0 {
		return false
	}
	_, err := xproto.GetWindowAttributes(b.xu.Conn(), xproto.Window(h)).Reply()
	return err == nil
}

// IsVisible reports whether the window is mapped, viewable and not iconified
func (b *X11Backend) IsVisible(h Handle) bool {
	win := xproto.Window(h)
	attrs, err := xproto.GetWindowAttributes(b.xu.Conn(), win).Reply()
	if err != nil {
		return false
	}
	return attrs.MapState == xproto.MapStateViewable && !b.hasState(win, stateHidden)
}

// Restore maps and de-iconifies the window
func (b *X11Backend) Restore(h Handle) error {
	win := xproto.Window(h)
	if err := xproto.MapWindowChecked(b.xu.Conn(), win).Check(); err != nil {
		return fmt.Errorf("failed to map window: %w", err)
	}
	if err := ewmh.WmStateReq(b.xu, win, ewmh.StateRemove, stateHidden); err != nil {
		logger.WithComponent("x11-backend").Debug().Err(err).Msg("Restore: _NET_WM_STATE request failed")
	}
	return ewmh.ActiveWindowReq(b.xu, win)
}

// Activate asks the window manager to focus and raise the window
func (b *X11Backend) Activate(h Handle) error {
	if err := ewmh.ActiveWindowReq(b.xu, xproto.Window(h)); err != nil {
		return fmt.Errorf("failed to activate window: %w", err)
	}
	return nil
}

// WindowRect returns the client area in root coordinates
func (b *X11Backend) WindowRect(h Handle) (image.Rectangle, error) {
	win := xproto.Window(h)
	geom, err := xproto.GetGeometry(b.xu.Conn(), xproto.Drawable(win)).Reply()
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("failed to get geometry: %w", err)
	}

	translate, err := xproto.TranslateCoordinates(b.xu.Conn(), win, b.root, 0, 0).Reply()
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("failed to translate coordinates: %w", err)
	}

	x, y := int(translate.DstX), int(translate.DstY)
	return image.Rect(x, y, x+int(geom.Width), y+int(geom.Height)), nil
}

// ExtendedFrameBounds returns the client area grown by _NET_FRAME_EXTENTS
func (b *X11Backend) ExtendedFrameBounds(h Handle) (image.Rectangle, error) {
	rect, err := b.WindowRect(h)
	if err != nil {
		return image.Rectangle{}, err
	}

	extents, err := ewmh.FrameExtentsGet(b.xu, xproto.Window(h))
	if err != nil {
		// No frame extents available (undecorated or no EWMH support)
		return rect, nil
	}

	return image.Rect(
		rect.Min.X-int(extents.Left),
		rect.Min.Y-int(extents.Top),
		rect.Max.X+int(extents.Right),
		rect.Max.Y+int(extents.Bottom),
	), nil
}

// Resize changes the client size without touching position or stacking
func (b *X11Backend) Resize(h Handle, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid size %dx%d", width, height)
	}
	err := xproto.ConfigureWindowChecked(
		b.xu.Conn(),
		xproto.Window(h),
		xproto.ConfigWindowWidth|xproto.ConfigWindowHeight,
		[]uint32{uint32(width), uint32(height)},
	).Check()
	if err != nil {
		return fmt.Errorf("failed to resize window: %w", err)
	}
	return nil
}

// SetBounds moves and resizes the window so its client area lands on r, the
// same coordinates WindowRect reports. Static gravity makes the window manager
// place the client rather than the frame's outer corner.
func (b *X11Backend) SetBounds(h Handle, r image.Rectangle) error {
	win := xproto.Window(h)
	err := moveresize(b.xu, win, r.Min.X, r.Min.Y, r.Dx(), r.Dy(),
		xproto.GravityStatic, sourcePager, true, true)
	if err != nil {
		logger.WithComponent("x11-backend").Debug().Err(err).Msg("SetBounds: EWMH moveresize failed, using ConfigureWindow")
		xwindow.New(b.xu, win).MoveResize(r.Min.X, r.Min.Y, r.Dx(), r.Dy())
	}
	return nil
}

// PresentAbove restacks the window's frame to the top without focusing it
func (b *X11Backend) PresentAbove(h Handle) error {
	win := xproto.Window(h)
	if err := ewmh.RestackWindow(b.xu, win); err == nil {
		return nil
	}

	frame, err := b.topLevel(win)
	if err != nil {
		return err
	}
	err = xproto.ConfigureWindowChecked(
		b.xu.Conn(),
		frame,
		xproto.ConfigWindowStackMode,
		[]uint32{xproto.StackModeAbove},
	).Check()
	if err != nil {
		return fmt.Errorf("failed to raise window: %w", err)
	}
	return nil
}

// topLevel walks up to the direct child of root, which is the WM frame for
// reparented clients
func (b *X11Backend) topLevel(win xproto.Window) (xproto.Window, error) {
	for {
		tree, err := xproto.QueryTree(b.xu.Conn(), win).Reply()
		if err != nil {
			return 0, fmt.Errorf("failed to query tree: %w", err)
		}
		if tree.Parent == b.root || tree.Parent == 0 {
			return win, nil
		}
		win = tree.Parent
	}
}

// CursorPosition returns the pointer position in root coordinates
func (b *X11Backend) CursorPosition() (image.Point, error) {
	reply, err := xproto.QueryPointer(b.xu.Conn(), b.root).Reply()
	if err != nil {
		return image.Point{}, fmt.Errorf("failed to query pointer: %w", err)
	}
	return image.Pt(int(reply.RootX), int(reply.RootY)), nil
}

// SetCursorPosition warps the pointer to p in root coordinates
func (b *X11Backend) SetCursorPosition(p image.Point) error {
	return xproto.WarpPointerChecked(b.xu.Conn(), 0, b.root, 0, 0, 0, 0, int16(p.X), int16(p.Y)).Check()
}

func (b *X11Backend) hasState(win xproto.Window, state string) bool {
	states, err := ewmh.WmStateGet(b.xu, win)
	if err != nil {
		return false
	}
	for _, s := range states {
		if s == state {
			return true
		}
	}
	return false
}

func (b *X11Backend) windowClass(win xproto.Window) string {
	wmClass, err := icccm.WmClassGet(b.xu, win)
	if err != nil {
		return ""
	}
	if c := strings.TrimSpace(wmClass.Class); c != "" {
		return c
	}
	return strings.TrimSpace(wmClass.Instance)
}

func (b *X11Backend) windowTitle(win xproto.Window) string {
	title, err := ewmh.WmNameGet(b.xu, win)
	if err == nil && strings.TrimSpace(title) != "" {
		return title
	}

	title, err = icccm.WmNameGet(b.xu, win)
	if err == nil {
		return title
	}
	return ""
}
