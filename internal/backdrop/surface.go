// Package backdrop shows short-lived solid-colour surfaces behind a window so
// the compositor draws its shadow over a known background.
package backdrop

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/bryanchriswhite/shadowcap/internal/logger"
)

var (
	// ErrTimeout is returned when a surface does not become ready in time
	ErrTimeout = errors.New("backdrop surface was not ready in time")
	// ErrJoinTimeout is returned when a surface's event loop does not exit in time
	ErrJoinTimeout = errors.New("backdrop surface event loop did not exit in time")
)

// Surface is one live backdrop. It must be destroyed exactly once.
type Surface interface {
	// Destroy asks the surface to close and waits up to joinTimeout for its
	// event loop to exit
	Destroy(joinTimeout time.Duration) error
}

// Factory creates backdrop surfaces
type Factory interface {
	// Create shows a borderless, non-activating surface covering rect filled
	// with c and waits up to readyTimeout for its first paint
	Create(ctx context.Context, rect image.Rectangle, c color.NRGBA, readyTimeout time.Duration) (Surface, error)
}

// host is the platform side of a surface: run owns the OS window and blocks
// in its event loop; close may be called from any goroutine.
type host interface {
	run(ready func()) error
	close()
}

type surface struct {
	h    host
	done chan struct{}
	err  error
	once sync.Once
}

// start runs h on its own goroutine and waits for it to report ready
func start(ctx context.Context, h host, readyTimeout time.Duration) (*surface, error) {
	log := logger.WithComponent("backdrop")

	s := &surface{h: h, done: make(chan struct{})}
	ready := make(chan struct{})
	var readyOnce sync.Once

	go func() {
		defer close(s.done)
		s.err = h.run(func() {
			readyOnce.Do(func() { close(ready) })
		})
	}()

	timer := time.NewTimer(readyTimeout)
	defer timer.Stop()

	select {
	case <-ready:
		return s, nil
	case <-s.done:
		if s.err != nil {
			return nil, fmt.Errorf("backdrop surface failed: %w", s.err)
		}
		return nil, errors.New("backdrop surface exited before it was ready")
	case <-timer.C:
		if err := s.Destroy(readyTimeout); err != nil {
			log.Warn().Err(err).Msg("Backdrop surface leaked after ready timeout")
		}
		return nil, fmt.Errorf("%w (%s)", ErrTimeout, readyTimeout)
	case <-ctx.Done():
		if err := s.Destroy(readyTimeout); err != nil {
			log.Warn().Err(err).Msg("Backdrop surface leaked after cancellation")
		}
		return nil, ctx.Err()
	}
}

func (s *surface) Destroy(joinTimeout time.Duration) error {
	s.once.Do(s.h.close)

	timer := time.NewTimer(joinTimeout)
	defer timer.Stop()

	select {
	case <-s.done:
		return nil
	case <-timer.C:
		return ErrJoinTimeout
	}
}

// pixel packs c as 0x00RRGGBB, the layout of a TrueColor X11 pixel
func pixel(c color.NRGBA) uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}
