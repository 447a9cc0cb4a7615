package capture

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"net/url"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bryanchriswhite/shadowcap/internal/logger"
	"github.com/godbus/dbus/v5"
)

// Portal D-Bus constants
const (
	portalService   = "org.freedesktop.portal.Desktop"
	portalPath      = "/org/freedesktop/portal/desktop"
	screenshotIface = "org.freedesktop.portal.Screenshot"
	requestIface    = "org.freedesktop.portal.Request"
)

// PortalSampler reads the screen through the xdg-desktop-portal Screenshot
// interface. The compositor renders the image itself, so shadows are present
// even where X11 GetImage cannot see them. Each sample is a full-desktop
// screenshot cropped to the rect, which makes it slow.
type PortalSampler struct {
	conn    *dbus.Conn
	mu      sync.Mutex
	timeout time.Duration
	seq     atomic.Uint64
}

// NewPortalSampler connects to the session bus
func NewPortalSampler() (*PortalSampler, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	var version uint32
	obj := conn.Object(portalService, portalPath)
	v, err := obj.GetProperty(screenshotIface + ".version")
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("screenshot portal not available: %w", err)
	}
	v.Store(&version)
	logger.WithComponent("portal").Debug().Uint32("version", version).Msg("Screenshot portal found")

	return &PortalSampler{conn: conn, timeout: 30 * time.Second}, nil
}

func (p *PortalSampler) Name() string {
	return "portal"
}

func (p *PortalSampler) Close() error {
	return p.conn.Close()
}

func (p *PortalSampler) Sample(rect image.Rectangle) (*image.NRGBA, error) {
	if rect.Empty() {
		return nil, fmt.Errorf("%w: empty rect %v", ErrCaptureFailed, rect)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	token := fmt.Sprintf("shadowcap%d_%d", os.Getpid(), p.seq.Add(1))
	results, err := p.request(screenshotIface+".Screenshot", token, "", map[string]dbus.Variant{
		"handle_token": dbus.MakeVariant(token),
		"interactive":  dbus.MakeVariant(false),
		"modal":        dbus.MakeVariant(false),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}

	uri, ok := results["uri"]
	if !ok {
		return nil, fmt.Errorf("%w: portal response has no uri", ErrCaptureFailed)
	}
	s, _ := uri.Value().(string)
	path, err := fileFromURI(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}
	// the portal writes into the user's pictures folder
	defer os.Remove(path)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}
	defer f.Close()

	full, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode portal screenshot: %v", ErrCaptureFailed, err)
	}
	return cropOpaque(full, rect), nil
}

// request calls a portal method and waits for its Request.Response signal
func (p *PortalSampler) request(method, token string, args ...interface{}) (map[string]dbus.Variant, error) {
	log := logger.WithComponent("portal")
	obj := p.conn.Object(portalService, portalPath)

	// Set up response channel BEFORE making the call
	responseChan := make(chan *dbus.Signal, 10)

	matchRule := fmt.Sprintf("type='signal',interface='%s',member='Response'", requestIface)
	if err := p.conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, matchRule).Err; err != nil {
		log.Warn().Err(err).Msg("Failed to add match rule")
	}

	p.conn.Signal(responseChan)
	defer p.conn.RemoveSignal(responseChan)

	var requestPath dbus.ObjectPath
	if err := obj.Call(method, 0, args...).Store(&requestPath); err != nil {
		return nil, fmt.Errorf("%s call failed: %w", method, err)
	}
	log.Debug().Str("request_path", string(requestPath)).Str("token", token).Msg("Waiting for portal response")

	timeout := time.After(p.timeout)
	for {
		select {
		case <-timeout:
			return nil, fmt.Errorf("timeout waiting for %s response", method)
		case sig := <-responseChan:
			if sig.Path != requestPath || sig.Name != requestIface+".Response" {
				continue
			}
			return parseResponse(sig.Body)
		}
	}
}

// parseResponse decodes the (u response, a{sv} results) body of a Response signal
func parseResponse(body []interface{}) (map[string]dbus.Variant, error) {
	if len(body) < 2 {
		return nil, fmt.Errorf("invalid response")
	}
	code, ok := body[0].(uint32)
	if !ok {
		return nil, fmt.Errorf("invalid response code %T", body[0])
	}
	if code != 0 {
		return nil, fmt.Errorf("portal request denied (code %d)", code)
	}
	results, ok := body[1].(map[string]dbus.Variant)
	if !ok {
		return nil, fmt.Errorf("invalid response results %T", body[1])
	}
	return results, nil
}

func fileFromURI(s string) (string, error) {
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid screenshot uri %q: %w", s, err)
	}
	if u.Scheme != "file" || u.Path == "" {
		return "", fmt.Errorf("unsupported screenshot uri %q", s)
	}
	return u.Path, nil
}

// cropOpaque copies rect (desktop coordinates) out of a full-desktop image.
// Parts of rect outside the desktop read as opaque black.
func cropOpaque(full image.Image, rect image.Rectangle) *image.NRGBA {
	dst := opaqueBlack(rect.Dx(), rect.Dy())
	visible := rect.Intersect(full.Bounds())
	if visible.Empty() {
		return dst
	}
	draw.Draw(dst, visible.Sub(rect.Min), full, visible.Min, draw.Src)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 255
	}
	return dst
}
