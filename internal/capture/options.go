package capture

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"

	"github.com/bryanchriswhite/shadowcap/internal/config"
	"github.com/bryanchriswhite/shadowcap/internal/logger"
)

// DefaultMargin is the default padding on each side, wide enough for the
// Windows 11 and common X11 compositor drop shadows
const DefaultMargin = 50

// Margins is extra capture area around the window frame, in pixels
type Margins struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// UniformMargins returns n on every side
func UniformMargins(n int) Margins {
	return Margins{Left: n, Top: n, Right: n, Bottom: n}
}

// Horizontal returns Left+Right
func (m Margins) Horizontal() int { return m.Left + m.Right }

// Vertical returns Top+Bottom
func (m Margins) Vertical() int { return m.Top + m.Bottom }

// Grow expands r by the margins
func (m Margins) Grow(r image.Rectangle) image.Rectangle {
	return image.Rect(r.Min.X-m.Left, r.Min.Y-m.Top, r.Max.X+m.Right, r.Max.Y+m.Bottom)
}

func (m Margins) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", m.Left, m.Top, m.Right, m.Bottom)
}

// ParseMargins parses "N" or "L,T,R,B". All values must be non-negative.
func ParseMargins(s string) (Margins, error) {
	parts := strings.Split(s, ",")
	vals := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v < 0 {
			return Margins{}, fmt.Errorf("invalid margin %q", p)
		}
		vals[i] = v
	}

	switch len(vals) {
	case 1:
		return UniformMargins(vals[0]), nil
	case 4:
		return Margins{Left: vals[0], Top: vals[1], Right: vals[2], Bottom: vals[3]}, nil
	default:
		return Margins{}, fmt.Errorf("invalid margins %q (use: N or left,top,right,bottom)", s)
	}
}

// Size is a width and height in pixels
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// ParseSize parses "WxH" with positive integers
func ParseSize(s string) (Size, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "x")
	if len(parts) != 2 {
		return Size{}, fmt.Errorf("invalid size %q (use: widthxheight, e.g. 1920x1080)", s)
	}
	w, errW := strconv.Atoi(parts[0])
	h, errH := strconv.Atoi(parts[1])
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return Size{}, fmt.Errorf("invalid size %q: width and height must be positive numbers", s)
	}
	return Size{Width: w, Height: h}, nil
}

// Mode selects how the backdrop is used
type Mode int

const (
	// Transparent captures over black and white and recovers alpha
	Transparent Mode = iota
	// Opaque captures once over a solid colour
	Opaque
	// Keyed captures once over a solid colour and estimates alpha from the
	// difference to that colour
	Keyed
)

func (m Mode) String() string {
	switch m {
	case Transparent:
		return "transparent"
	case Opaque:
		return "opaque"
	case Keyed:
		return "keyed"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// DefaultKeyColor is the backdrop for keyed captures when none is given
var DefaultKeyColor = color.NRGBA{R: 255, G: 0, B: 255, A: 255}

// Background is the backdrop policy of a capture
type Background struct {
	Mode  Mode
	Color color.NRGBA
}

func (b Background) String() string {
	switch b.Mode {
	case Transparent:
		return "transparent"
	case Keyed:
		return "keyed:" + hexColor(b.Color)
	default:
		return hexColor(b.Color)
	}
}

// ParseBackground parses transparent, black, white, #RRGGBB or
// keyed[:#RRGGBB]. Empty means transparent.
func ParseBackground(s string) (Background, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case v == "" || v == "transparent":
		return Background{Mode: Transparent}, nil
	case v == "black":
		return Background{Mode: Opaque, Color: color.NRGBA{A: 255}}, nil
	case v == "white":
		return Background{Mode: Opaque, Color: color.NRGBA{R: 255, G: 255, B: 255, A: 255}}, nil
	case v == "keyed":
		return Background{Mode: Keyed, Color: DefaultKeyColor}, nil
	case strings.HasPrefix(v, "keyed:"):
		c, err := ParseHexColor(strings.TrimPrefix(v, "keyed:"))
		if err != nil {
			return Background{}, err
		}
		return Background{Mode: Keyed, Color: c}, nil
	default:
		c, err := ParseHexColor(v)
		if err != nil {
			return Background{}, fmt.Errorf("invalid background %q (use: transparent, black, white, #RRGGBB or keyed[:#RRGGBB])", s)
		}
		return Background{Mode: Opaque, Color: c}, nil
	}
}

// ParseHexColor parses #RRGGBB
func ParseHexColor(s string) (color.NRGBA, error) {
	if len(s) != 7 || s[0] != '#' {
		return color.NRGBA{}, fmt.Errorf("invalid colour %q (use: #RRGGBB)", s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

func hexColor(c color.NRGBA) string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// Options controls one capture
type Options struct {
	Margins    Margins
	Resize     *Size
	Background Background
}

// DefaultOptions returns transparent capture with default margins
func DefaultOptions() Options {
	return Options{Margins: UniformMargins(DefaultMargin)}
}

// OptionsFromConfig builds the default options from the capture config. An
// unusable configured value falls back to its default with a warning.
func OptionsFromConfig(c config.CaptureConfig) Options {
	opts := DefaultOptions()

	m := Margins{Left: c.Margins.Left, Top: c.Margins.Top, Right: c.Margins.Right, Bottom: c.Margins.Bottom}
	if m.Left < 0 || m.Top < 0 || m.Right < 0 || m.Bottom < 0 {
		logger.WithComponent("capture").Warn().
			Str("margins", m.String()).
			Msg("Configured margins are negative, using defaults")
	} else {
		opts.Margins = m
	}

	bg, err := ParseBackground(c.Background)
	if err != nil {
		logger.WithComponent("capture").Warn().Err(err).Msg("Configured background is invalid, using transparent")
	} else {
		opts.Background = bg
	}
	return opts
}
