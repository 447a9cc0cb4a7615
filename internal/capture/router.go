package capture

import (
	"fmt"
	"image"
	"sync"

	"github.com/bryanchriswhite/shadowcap/internal/logger"
)

// Sampler selection modes
const (
	SamplerAuto       = "auto"
	SamplerNative     = "native"
	SamplerScreenshot = "screenshot"
	SamplerPortal     = "portal"
)

// Router picks a Sampler by configured mode and availability and forwards
// samples to it
type Router struct {
	mode    string
	active  Sampler
	mu      sync.RWMutex
	started bool

	// constructors are swappable for tests
	newNative     func() (Sampler, error)
	newScreenshot func() (Sampler, error)
	newPortal     func() (Sampler, error)
}

// NewRouter creates a sampler router for mode (auto, native, screenshot or
// portal). The portal is only used when asked for by name.
func NewRouter(mode string) (*Router, error) {
	switch mode {
	case "":
		mode = SamplerAuto
	case SamplerAuto, SamplerNative, SamplerScreenshot, SamplerPortal:
	default:
		return nil, fmt.Errorf("unknown sampler mode %q (use: auto, native, screenshot, portal)", mode)
	}
	return &Router{
		mode:      mode,
		newNative: newNativeSampler,
		newScreenshot: func() (Sampler, error) {
			return NewScreenshotSampler()
		},
		newPortal: func() (Sampler, error) {
			return NewPortalSampler()
		},
	}, nil
}

// Start initializes the selected sampler
func (r *Router) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	log := logger.WithComponent("sampler-router")

	if r.mode == SamplerPortal {
		portal, err := r.newPortal()
		if err != nil {
			return fmt.Errorf("portal sampler not available: %w", err)
		}
		r.active = portal
		r.started = true
		log.Info().Str("sampler", portal.Name()).Msg("Portal sampler initialized")
		return nil
	}

	if r.mode != SamplerScreenshot {
		native, err := r.newNative()
		if err == nil {
			r.active = native
			r.started = true
			log.Info().Str("sampler", native.Name()).Msg("Native sampler initialized")
			return nil
		}
		if r.mode == SamplerNative {
			return fmt.Errorf("native sampler not available: %w", err)
		}
		log.Warn().Err(err).Msg("Native sampler not available")
	}

	shot, err := r.newScreenshot()
	if err != nil {
		return fmt.Errorf("no samplers available: %w", err)
	}
	r.active = shot
	r.started = true
	log.Info().Str("sampler", shot.Name()).Msg("Screenshot sampler initialized")
	return nil
}

// Name returns the active sampler's name
func (r *Router) Name() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.active == nil {
		return "router(" + r.mode + ")"
	}
	return r.active.Name()
}

// Sample forwards to the active sampler, starting it on first use
func (r *Router) Sample(rect image.Rectangle) (*image.NRGBA, error) {
	if err := r.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}

	r.mu.RLock()
	active := r.active
	r.mu.RUnlock()

	return active.Sample(rect)
}

// Close stops the active sampler
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	if r.active != nil {
		err = r.active.Close()
		r.active = nil
	}
	r.started = false
	return err
}
