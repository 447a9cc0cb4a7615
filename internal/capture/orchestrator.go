package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/bryanchriswhite/shadowcap/internal/alpha"
	"github.com/bryanchriswhite/shadowcap/internal/backdrop"
	"github.com/bryanchriswhite/shadowcap/internal/config"
	"github.com/bryanchriswhite/shadowcap/internal/logger"
	"github.com/bryanchriswhite/shadowcap/internal/window"
	"github.com/rs/zerolog"
)

// Timing holds the settle delays and surface wait bounds of a capture.
// Compositors give no paint-complete signal, so each step waits a fixed time.
type Timing struct {
	ForegroundSettle    time.Duration
	RestoreSettle       time.Duration
	ResizeSettle        time.Duration
	BackdropSettle      time.Duration
	PresentSettle       time.Duration
	SurfaceReadyTimeout time.Duration
	SurfaceJoinTimeout  time.Duration
}

// DefaultTiming returns the stock delays
func DefaultTiming() Timing {
	return TimingFromConfig(config.Defaults().Timing)
}

// TimingFromConfig converts the configured timing section
func TimingFromConfig(c config.TimingConfig) Timing {
	return Timing{
		ForegroundSettle:    c.ForegroundSettle,
		RestoreSettle:       c.RestoreSettle,
		ResizeSettle:        c.ResizeSettle,
		BackdropSettle:      c.BackdropSettle,
		PresentSettle:       c.PresentSettle,
		SurfaceReadyTimeout: c.SurfaceReadyTimeout,
		SurfaceJoinTimeout:  c.SurfaceJoinTimeout,
	}
}

var (
	black = color.NRGBA{A: 255}
	white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

// Orchestrator runs one capture at a time against a window backend, a
// backdrop factory and a screen sampler. Callers serialise Capture calls.
type Orchestrator struct {
	windows  *window.Manager
	backend  window.Backend
	surfaces backdrop.Factory
	sampler  Sampler
	timing   Timing

	parkCursor bool
	observer   Observer

	sleep func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator creates a capture orchestrator
func NewOrchestrator(windows *window.Manager, surfaces backdrop.Factory, sampler Sampler, timing Timing) *Orchestrator {
	return &Orchestrator{
		windows:    windows,
		backend:    windows.Backend(),
		surfaces:   surfaces,
		sampler:    sampler,
		timing:     timing,
		parkCursor: true,
		sleep:      sleepContext,
	}
}

// SetObserver sets the stage event observer
func (o *Orchestrator) SetObserver(obs Observer) {
	o.observer = obs
}

// SetParkCursor controls whether the pointer is moved out of the capture
// area during each pass
func (o *Orchestrator) SetParkCursor(park bool) {
	o.parkCursor = park
}

// run carries the per-capture state shared by the steps
type run struct {
	o       *Orchestrator
	ctx     context.Context
	log     zerolog.Logger
	start   time.Time
	desc    window.Descriptor
	handle  window.Handle
	margins Margins
}

func (r *run) emit(stage Stage, rect image.Rectangle, pass, msg string) {
	r.log.Debug().
		Str("stage", string(stage)).
		Str("rect", rect.String()).
		Str("pass", pass).
		Dur("elapsed", time.Since(r.start)).
		Msg(msg)

	if r.o.observer == nil {
		return
	}
	r.o.observer(Event{
		Stage:   stage,
		Handle:  r.handle,
		Title:   r.desc.Title,
		Rect:    rect,
		Pass:    pass,
		Message: msg,
		Elapsed: time.Since(r.start),
		Time:    time.Now(),
	})
}

// Capture captures the window selected by sel. On success the image is
// exactly the window's frame bounds grown by the margins, or exactly
// opts.Resize when set. The window's original geometry is restored on
// every exit path once it has been changed.
func (o *Orchestrator) Capture(ctx context.Context, sel window.Selector, opts Options) (*image.NRGBA, error) {
	r := &run{
		o:       o,
		ctx:     ctx,
		log:     logger.WithComponent("capture").With().Str("selector", sel.String()).Logger(),
		start:   time.Now(),
		margins: opts.Margins,
	}

	img, err := r.capture(sel, opts)
	if err != nil {
		r.emit(StageFailed, image.Rectangle{}, "", err.Error())
		return nil, err
	}

	r.emit(StageDone, img.Rect, "", "Capture complete")
	return img, nil
}

func (r *run) capture(sel window.Selector, opts Options) (img *image.NRGBA, err error) {
	o := r.o
	m := opts.Margins

	desc, err := o.windows.Find(sel)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrWindowNotFound, sel)
	}
	r.desc = desc
	r.handle = desc.Handle
	r.log = r.log.With().Uint64("handle", uint64(desc.Handle)).Logger()
	r.emit(StageResolved, image.Rectangle{}, "", "Window resolved")

	if m.Left < 0 || m.Top < 0 || m.Right < 0 || m.Bottom < 0 {
		return nil, fmt.Errorf("%w: negative margins %s", ErrInvalidDimensions, m)
	}
	var target Size
	if opts.Resize != nil {
		target = Size{Width: opts.Resize.Width - m.Horizontal(), Height: opts.Resize.Height - m.Vertical()}
		if target.Width <= 0 || target.Height <= 0 {
			return nil, fmt.Errorf("%w: resize %s minus margins %s leaves %s",
				ErrInvalidDimensions, opts.Resize, m, target)
		}
	}

	if err := r.ensureVisible(); err != nil {
		return nil, err
	}

	if opts.Resize != nil {
		original, err := o.backend.WindowRect(r.handle)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read window rect: %v", ErrCaptureFailed, err)
		}
		defer r.restore(original)

		if err := r.resize(target); err != nil {
			return nil, err
		}
	}

	rect, err := r.captureRect()
	if err != nil {
		return nil, err
	}

	switch opts.Background.Mode {
	case Opaque:
		return r.pass(rect, opts.Background.Color, "opaque")

	case Keyed:
		shot, err := r.pass(rect, opts.Background.Color, "keyed")
		if err != nil {
			return nil, err
		}
		bg := alpha.Solid(rect.Dx(), rect.Dy(), opts.Background.Color)
		out, stats, err := alpha.ExtractOverBackground(shot, bg)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
		}
		r.emitStats(rect, stats)
		return out, nil

	default:
		overBlack, err := r.pass(rect, black, "black")
		if err != nil {
			return nil, err
		}
		overWhite, err := r.pass(rect, white, "white")
		if err != nil {
			return nil, err
		}
		out, stats, err := alpha.Unmix(overBlack, overWhite)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
		}
		r.emitStats(rect, stats)
		return out, nil
	}
}

func (r *run) emitStats(rect image.Rectangle, stats alpha.Stats) {
	r.emit(StageUnmixed, rect, "", fmt.Sprintf("Alpha recovered: %d opaque, %d partial, %d transparent",
		stats.Opaque, stats.Partial, stats.Transparent))
}

// ensureVisible restores hidden windows and brings the target to the front
func (r *run) ensureVisible() error {
	o := r.o
	h := r.handle

	if !o.backend.IsVisible(h) {
		if err := o.backend.Restore(h); err != nil {
			r.log.Debug().Err(err).Msg("Restore request failed")
		}
		if err := o.backend.Activate(h); err != nil {
			r.log.Debug().Err(err).Msg("Activate request failed")
		}
		if err := o.sleep(r.ctx, o.timing.RestoreSettle); err != nil {
			return err
		}
		if !o.backend.IsVisible(h) {
			return fmt.Errorf("%w: %s", ErrWindowNotVisible, r.desc.Label())
		}
	} else {
		if err := o.backend.Activate(h); err != nil {
			r.log.Debug().Err(err).Msg("Activate request failed")
		}
		if err := o.sleep(r.ctx, o.timing.ForegroundSettle); err != nil {
			return err
		}
	}

	r.emit(StageActivated, image.Rectangle{}, "", "Window in foreground")
	return nil
}

// resize sets the window size so its frame bounds equal target. Where the
// frame differs from the window rect (invisible borders, decorations) one
// corrective resize absorbs the difference.
func (r *run) resize(target Size) error {
	o := r.o
	h := r.handle

	if err := o.backend.Resize(h, target.Width, target.Height); err != nil {
		return fmt.Errorf("%w: resize failed: %v", ErrCaptureFailed, err)
	}
	if err := o.sleep(r.ctx, o.timing.ResizeSettle); err != nil {
		return err
	}

	frame, err := o.backend.ExtendedFrameBounds(h)
	if err == nil && (frame.Dx() != target.Width || frame.Dy() != target.Height) {
		win, werr := o.backend.WindowRect(h)
		if werr == nil {
			w := win.Dx() + target.Width - frame.Dx()
			ht := win.Dy() + target.Height - frame.Dy()
			if w > 0 && ht > 0 {
				r.log.Debug().
					Str("frame", frame.String()).
					Str("window", win.String()).
					Int("width", w).
					Int("height", ht).
					Msg("Correcting for frame border")
				if err := o.backend.Resize(h, w, ht); err != nil {
					return fmt.Errorf("%w: resize failed: %v", ErrCaptureFailed, err)
				}
				if err := o.sleep(r.ctx, o.timing.ResizeSettle); err != nil {
					return err
				}
			}
		}
	}

	r.emit(StageResized, image.Rectangle{}, "", fmt.Sprintf("Window resized to %s", target))
	return nil
}

// restore puts the window back where it was. Failures are logged only.
func (r *run) restore(original image.Rectangle) {
	if err := r.o.backend.SetBounds(r.handle, original); err != nil {
		r.log.Warn().Err(err).Str("rect", original.String()).Msg("Failed to restore window geometry")
		return
	}
	r.emit(StageRestored, original, "", "Window geometry restored")
}

// captureRect is the frame bounds (window rect if unavailable) grown by the margins
func (r *run) captureRect() (image.Rectangle, error) {
	o := r.o
	bounds, err := o.backend.ExtendedFrameBounds(r.handle)
	if err != nil || bounds.Empty() {
		bounds, err = o.backend.WindowRect(r.handle)
		if err != nil {
			return image.Rectangle{}, fmt.Errorf("%w: failed to read window rect: %v", ErrCaptureFailed, err)
		}
	}

	rect := r.margins.Grow(bounds)
	if rect.Empty() {
		return image.Rectangle{}, fmt.Errorf("%w: capture rect %v is empty", ErrInvalidDimensions, rect)
	}
	return rect, nil
}

// pass samples rect once with the target presented over a backdrop of c
func (r *run) pass(rect image.Rectangle, c color.NRGBA, name string) (*image.NRGBA, error) {
	o := r.o
	h := r.handle

	if o.parkCursor {
		if orig, err := o.backend.CursorPosition(); err == nil {
			if err := o.backend.SetCursorPosition(parkPoint(rect)); err != nil {
				r.log.Debug().Err(err).Msg("Failed to park cursor")
			}
			defer func() {
				if err := o.backend.SetCursorPosition(orig); err != nil {
					r.log.Debug().Err(err).Msg("Failed to restore cursor")
				}
			}()
		}
	}

	surface, err := o.surfaces.Create(r.ctx, rect, c, o.timing.SurfaceReadyTimeout)
	if err != nil {
		if errors.Is(err, backdrop.ErrTimeout) {
			return nil, fmt.Errorf("%w: %v", ErrBackgroundSurfaceTimeout, err)
		}
		if ctxErr := r.ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: backdrop: %v", ErrCaptureFailed, err)
	}
	defer func() {
		if err := surface.Destroy(o.timing.SurfaceJoinTimeout); err != nil {
			r.log.Warn().Err(err).Str("pass", name).Msg("Backdrop surface leaked")
		}
	}()
	r.emit(StageBackdrop, rect, name, "Backdrop shown")

	if err := o.sleep(r.ctx, o.timing.BackdropSettle); err != nil {
		return nil, err
	}

	if err := o.backend.PresentAbove(h); err != nil {
		r.log.Debug().Err(err).Msg("Failed to present window above backdrop")
	}

	if err := o.sleep(r.ctx, o.timing.PresentSettle); err != nil {
		return nil, err
	}

	img, err := o.sampler.Sample(rect)
	if err != nil {
		if errors.Is(err, ErrCaptureFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}
	if img.Rect.Dx() != rect.Dx() || img.Rect.Dy() != rect.Dy() {
		return nil, fmt.Errorf("%w: sampler returned %dx%d for %dx%d",
			ErrCaptureFailed, img.Rect.Dx(), img.Rect.Dy(), rect.Dx(), rect.Dy())
	}

	r.emit(StageSampled, rect, name, "Pass sampled")
	return img, nil
}

// parkPoint is the screen origin unless that lies inside rect, in which case
// it is the pixel just past rect's bottom-right corner
func parkPoint(rect image.Rectangle) image.Point {
	p := image.Point{}
	if p.In(rect) {
		p = rect.Max
	}
	return p
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
