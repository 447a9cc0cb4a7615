//go:build windows

package backdrop

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"github.com/bryanchriswhite/shadowcap/internal/logger"
	"github.com/lxn/win"
	"golang.org/x/sys/windows"
)

var (
	gdi32                = windows.NewLazySystemDLL("gdi32.dll")
	procCreateSolidBrush = gdi32.NewProc("CreateSolidBrush")
	procDeleteObject     = gdi32.NewProc("DeleteObject")

	// one window procedure serves every backdrop class
	backdropWndProc = windows.NewCallback(func(hwnd win.HWND, msg uint32, wParam, lParam uintptr) uintptr {
		switch msg {
		case win.WM_CLOSE:
			win.DestroyWindow(hwnd)
			return 0
		case win.WM_DESTROY:
			win.PostQuitMessage(0)
			return 0
		}
		return win.DefWindowProc(hwnd, msg, wParam, lParam)
	})
)

const wsExNoActivate = 0x08000000

type win32Factory struct{}

// NewFactory returns the backdrop factory for this host
func NewFactory() (Factory, error) {
	return win32Factory{}, nil
}

func (win32Factory) Create(ctx context.Context, rect image.Rectangle, c color.NRGBA, readyTimeout time.Duration) (Surface, error) {
	if rect.Empty() {
		return nil, fmt.Errorf("empty backdrop rect %v", rect)
	}

	h := &win32Host{rect: rect, color: c}
	s, err := start(ctx, h, readyTimeout)
	if err != nil {
		return nil, err
	}

	logger.WithComponent("backdrop").Debug().
		Str("rect", rect.String()).
		Msg("Win32 backdrop ready")
	return s, nil
}

type win32Host struct {
	rect  image.Rectangle
	color color.NRGBA

	mu       sync.Mutex
	hwnd     win.HWND
	stopping bool
}

// colorref packs c as a GDI COLORREF (0x00BBGGRR)
func colorref(c color.NRGBA) uintptr {
	return uintptr(c.R) | uintptr(c.G)<<8 | uintptr(c.B)<<16
}

func (h *win32Host) run(ready func()) error {
	// window messages are delivered to the creating thread
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	hInstance := win.GetModuleHandle(nil)

	brush, _, _ := procCreateSolidBrush.Call(colorref(h.color))
	if brush == 0 {
		return fmt.Errorf("CreateSolidBrush failed")
	}
	defer procDeleteObject.Call(brush)

	// a unique class per surface carries its own background brush
	className, err := windows.UTF16PtrFromString(fmt.Sprintf("ShadowcapBackdrop_%d", time.Now().UnixNano()))
	if err != nil {
		return err
	}

	wc := win.WNDCLASSEX{
		CbSize:        uint32(unsafe.Sizeof(win.WNDCLASSEX{})),
		LpfnWndProc:   backdropWndProc,
		HInstance:     hInstance,
		HbrBackground: win.HBRUSH(brush),
		LpszClassName: className,
	}
	if win.RegisterClassEx(&wc) == 0 {
		return fmt.Errorf("RegisterClassEx failed")
	}
	defer win.UnregisterClass(className)

	hwnd := win.CreateWindowEx(
		win.WS_EX_TOOLWINDOW|wsExNoActivate,
		className,
		nil,
		win.WS_POPUP|win.WS_VISIBLE,
		int32(h.rect.Min.X), int32(h.rect.Min.Y),
		int32(h.rect.Dx()), int32(h.rect.Dy()),
		0, 0, hInstance, nil,
	)
	if hwnd == 0 {
		return fmt.Errorf("CreateWindowEx failed")
	}

	h.mu.Lock()
	h.hwnd = hwnd
	stopping := h.stopping
	h.mu.Unlock()
	if stopping {
		win.DestroyWindow(hwnd)
	} else {
		win.ShowWindow(hwnd, win.SW_SHOWNOACTIVATE)
		win.UpdateWindow(hwnd)
		ready()
	}

	var msg win.MSG
	for {
		switch win.GetMessage(&msg, 0, 0, 0) {
		case 0:
			return nil
		case -1:
			return fmt.Errorf("GetMessage failed")
		}
		win.TranslateMessage(&msg)
		win.DispatchMessage(&msg)
	}
}

func (h *win32Host) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.hwnd == 0 {
		h.stopping = true
		return
	}
	win.PostMessage(h.hwnd, win.WM_CLOSE, 0, 0)
}
