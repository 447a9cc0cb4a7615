package capture

import (
	"errors"

	"github.com/bryanchriswhite/shadowcap/internal/backdrop"
	"github.com/bryanchriswhite/shadowcap/internal/window"
)

// Capture failures. Each maps to its own process exit code.
var (
	ErrWindowNotFound           = errors.New("window not found")
	ErrWindowNotVisible         = errors.New("window is not visible")
	ErrInvalidDimensions        = errors.New("invalid capture dimensions")
	ErrBackgroundSurfaceTimeout = errors.New("background surface did not become ready")
	ErrCaptureFailed            = errors.New("screen capture failed")
)

// Process exit codes
const (
	ExitOK                       = 0
	ExitError                    = 1
	ExitWindowNotFound           = 2
	ExitWindowNotVisible         = 3
	ExitInvalidDimensions        = 4
	ExitBackgroundSurfaceTimeout = 5
	ExitCaptureFailed            = 6
)

// ExitCode maps an error returned by a capture to a process exit code
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrWindowNotFound), errors.Is(err, window.ErrNotFound):
		return ExitWindowNotFound
	case errors.Is(err, ErrWindowNotVisible):
		return ExitWindowNotVisible
	case errors.Is(err, ErrInvalidDimensions):
		return ExitInvalidDimensions
	case errors.Is(err, ErrBackgroundSurfaceTimeout), errors.Is(err, backdrop.ErrTimeout):
		return ExitBackgroundSurfaceTimeout
	case errors.Is(err, ErrCaptureFailed):
		return ExitCaptureFailed
	default:
		return ExitError
	}
}
