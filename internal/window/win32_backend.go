//go:build windows

package window

import (
	"fmt"
	"image"
	"sync"
	"unsafe"

	"github.com/bryanchriswhite/shadowcap/internal/logger"
	"github.com/lxn/win"
	"golang.org/x/sys/windows"
)

var (
	user32                    = windows.NewLazySystemDLL("user32.dll")
	dwmapi                    = windows.NewLazySystemDLL("dwmapi.dll")
	procEnumWindows           = user32.NewProc("EnumWindows")
	procGetClassNameW         = user32.NewProc("GetClassNameW")
	procGetWindowTextW        = user32.NewProc("GetWindowTextW")
	procIsWindow              = user32.NewProc("IsWindow")
	procIsIconic              = user32.NewProc("IsIconic")
	procDwmGetWindowAttribute = dwmapi.NewProc("DwmGetWindowAttribute")
)

const (
	dwmwaExtendedFrameBounds = 9
	maxNameLen               = 256
)

// Win32Backend implements the Backend interface with user32 and DWM
type Win32Backend struct{}

var _ Backend = (*Win32Backend)(nil)

// NewBackend opens the platform backend for this host
func NewBackend() (Backend, error) {
	return &Win32Backend{}, nil
}

// Name returns the backend name
func (b *Win32Backend) Name() string {
	return "win32"
}

// Close is a no-op; user32 needs no connection
func (b *Win32Backend) Close() error {
	return nil
}

// ListWindows walks EnumWindows, which reports top-level windows in z-order
func (b *Win32Backend) ListWindows() ([]Info, error) {
	foreground := win.GetForegroundWindow()
	list := make([]Info, 0, 64)

	enumMu.Lock()
	defer enumMu.Unlock()
	enumTarget = func(hwnd win.HWND) {
		list = append(list, Info{
			Handle:     Handle(hwnd),
			Class:      className(hwnd),
			Title:      windowText(hwnd),
			Visible:    win.IsWindowVisible(hwnd),
			Foreground: hwnd == foreground,
			Minimized:  isIconic(hwnd),
		})
	}

	ret, _, err := procEnumWindows.Call(enumProc, 0)
	if ret == 0 {
		return nil, fmt.Errorf("EnumWindows failed: %w", err)
	}
	return list, nil
}

// The runtime caps the number of callbacks, so one is shared and EnumWindows
// calls are serialised.
var (
	enumMu     sync.Mutex
	enumTarget func(win.HWND)
	enumProc   = windows.NewCallback(func(hwnd uintptr, _ uintptr) uintptr {
		enumTarget(win.HWND(hwnd))
		return 1
	})
)

func className(hwnd win.HWND) string {
	buf := make([]uint16, maxNameLen)
	procGetClassNameW.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	return windows.UTF16ToString(buf)
}

func windowText(hwnd win.HWND) string {
	buf := make([]uint16, maxNameLen)
	procGetWindowTextW.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	return windows.UTF16ToString(buf)
}

func isIconic(hwnd win.HWND) bool {
	ret, _, _ := procIsIconic.Call(uintptr(hwnd))
	return ret != 0
}

// FindWindow wraps user32 FindWindowW; empty arguments are wildcards
func (b *Win32Backend) FindWindow(class, title string) (Handle, error) {
	var classPtr, titlePtr *uint16
	var err error
	if class != "" {
		if classPtr, err = windows.UTF16PtrFromString(class); err != nil {
			return 0, err
		}
	}
	if title != "" {
		if titlePtr, err = windows.UTF16PtrFromString(title); err != nil {
			return 0, err
		}
	}

	hwnd := win.FindWindow(classPtr, titlePtr)
	if hwnd == 0 {
		return 0, ErrNotFound
	}
	return Handle(hwnd), nil
}

func (b *Win32Backend) IsWindow(h Handle) bool {
	ret, _, _ := procIsWindow.Call(uintptr(h))
	return ret != 0
}

func (b *Win32Backend) IsVisible(h Handle) bool {
	hwnd := win.HWND(h)
	return win.IsWindowVisible(hwnd) && !isIconic(hwnd)
}

func (b *Win32Backend) Restore(h Handle) error {
	win.ShowWindow(win.HWND(h), win.SW_RESTORE)
	return nil
}

// Activate calls SetForegroundWindow. Windows may refuse the request when the
// caller does not own the foreground; that is logged, not returned.
func (b *Win32Backend) Activate(h Handle) error {
	if !win.SetForegroundWindow(win.HWND(h)) {
		logger.WithComponent("win32-backend").Debug().
			Uint64("handle", uint64(h)).
			Msg("SetForegroundWindow refused")
	}
	return nil
}

func (b *Win32Backend) WindowRect(h Handle) (image.Rectangle, error) {
	var r win.RECT
	if !win.GetWindowRect(win.HWND(h), &r) {
		return image.Rectangle{}, fmt.Errorf("GetWindowRect failed for 0x%x", uintptr(h))
	}
	return rectFrom(r), nil
}

// ExtendedFrameBounds asks DWM for the visible frame, which excludes the
// invisible resize borders GetWindowRect includes
func (b *Win32Backend) ExtendedFrameBounds(h Handle) (image.Rectangle, error) {
	if err := procDwmGetWindowAttribute.Find(); err != nil {
		return image.Rectangle{}, err
	}
	var r win.RECT
	hr, _, _ := procDwmGetWindowAttribute.Call(
		uintptr(h),
		dwmwaExtendedFrameBounds,
		uintptr(unsafe.Pointer(&r)),
		unsafe.Sizeof(r),
	)
	if hr != 0 {
		return image.Rectangle{}, fmt.Errorf("DwmGetWindowAttribute failed: 0x%x", hr)
	}
	return rectFrom(r), nil
}

func (b *Win32Backend) Resize(h Handle, width, height int) error {
	ok := win.SetWindowPos(win.HWND(h), 0, 0, 0, int32(width), int32(height),
		win.SWP_NOMOVE|win.SWP_NOZORDER|win.SWP_NOACTIVATE)
	if !ok {
		return fmt.Errorf("SetWindowPos resize failed")
	}
	return nil
}

func (b *Win32Backend) SetBounds(h Handle, r image.Rectangle) error {
	ok := win.SetWindowPos(win.HWND(h), 0, int32(r.Min.X), int32(r.Min.Y), int32(r.Dx()), int32(r.Dy()),
		win.SWP_NOZORDER|win.SWP_NOACTIVATE)
	if !ok {
		return fmt.Errorf("SetWindowPos failed")
	}
	return nil
}

// PresentAbove places the window on top of the stack and repaints it
// without activating it
func (b *Win32Backend) PresentAbove(h Handle) error {
	hwnd := win.HWND(h)
	win.SetWindowPos(hwnd, win.HWND_TOP, 0, 0, 0, 0,
		win.SWP_NOMOVE|win.SWP_NOSIZE|win.SWP_NOACTIVATE)
	win.ShowWindow(hwnd, win.SW_SHOWNOACTIVATE)
	win.UpdateWindow(hwnd)
	return nil
}

func (b *Win32Backend) CursorPosition() (image.Point, error) {
	var p win.POINT
	if !win.GetCursorPos(&p) {
		return image.Point{}, fmt.Errorf("GetCursorPos failed")
	}
	return image.Pt(int(p.X), int(p.Y)), nil
}

func (b *Win32Backend) SetCursorPosition(p image.Point) error {
	if !win.SetCursorPos(int32(p.X), int32(p.Y)) {
		return fmt.Errorf("SetCursorPos failed")
	}
	return nil
}

func rectFrom(r win.RECT) image.Rectangle {
	return image.Rect(int(r.Left), int(r.Top), int(r.Right), int(r.Bottom))
}
