//go:build linux

package capture

import (
	"fmt"
	"image"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/shadowcap/internal/logger"
)

// X11Sampler reads the root window with GetImage
type X11Sampler struct {
	conn   *xgb.Conn
	root   xproto.Window
	screen *xproto.ScreenInfo
	mu     sync.Mutex
}

// NewX11Sampler creates a new X11 sampler
func NewX11Sampler() (*X11Sampler, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	return &X11Sampler{
		conn:   conn,
		root:   screen.Root,
		screen: screen,
	}, nil
}

// Name returns the sampler name
func (s *X11Sampler) Name() string {
	return "x11"
}

// Close closes the X11 connection
func (s *X11Sampler) Close() error {
	s.conn.Close()
	return nil
}

// Sample reads rect from the root window. Parts of rect outside the root
// window read as opaque black.
func (s *X11Sampler) Sample(rect image.Rectangle) (*image.NRGBA, error) {
	if rect.Empty() {
		return nil, fmt.Errorf("%w: empty rect %v", ErrCaptureFailed, rect)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	geom, err := xproto.GetGeometry(s.conn, xproto.Drawable(s.root)).Reply()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get root geometry: %v", ErrCaptureFailed, err)
	}
	root := image.Rect(0, 0, int(geom.Width), int(geom.Height))

	dst := opaqueBlack(rect.Dx(), rect.Dy())
	visible := rect.Intersect(root)
	if visible.Empty() {
		logger.WithComponent("sampler").Debug().
			Str("rect", rect.String()).
			Str("root", root.String()).
			Msg("Rect entirely off screen")
		return dst, nil
	}

	reply, err := xproto.GetImage(
		s.conn,
		xproto.ImageFormatZPixmap,
		xproto.Drawable(s.root),
		int16(visible.Min.X), int16(visible.Min.Y),
		uint16(visible.Dx()), uint16(visible.Dy()),
		0xffffffff, // plane mask
	).Reply()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get image: %v", ErrCaptureFailed, err)
	}

	logger.WithComponent("sampler").Debug().
		Str("rect", rect.String()).
		Str("visible", visible.String()).
		Int("bytes", len(reply.Data)).
		Uint8("depth", reply.Depth).
		Msg("Root image received")

	if err := blitBGRX(dst, visible.Sub(rect.Min), reply.Data, int(s.screen.RootDepth)); err != nil {
		return nil, err
	}
	return dst, nil
}

// blitBGRX writes 32bpp BGRx ZPixmap data covering at into dst as opaque pixels
func blitBGRX(dst *image.NRGBA, at image.Rectangle, data []byte, depth int) error {
	if depth != 24 && depth != 32 {
		return fmt.Errorf("%w: unsupported colour depth %d", ErrCaptureFailed, depth)
	}
	width, height := at.Dx(), at.Dy()
	if len(data) < width*height*4 {
		return fmt.Errorf("%w: short image data (%d bytes for %dx%d)", ErrCaptureFailed, len(data), width, height)
	}

	for y := 0; y < height; y++ {
		src := data[y*width*4 : (y+1)*width*4]
		d := dst.Pix[dst.PixOffset(at.Min.X, at.Min.Y+y):]
		for x := 0; x < width*4; x += 4 {
			// BGRA to RGBA
			d[x], d[x+1], d[x+2], d[x+3] = src[x+2], src[x+1], src[x], 255
		}
	}
	return nil
}
