package capture

import (
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

// ScreenshotSampler reads the screen through kbinani/screenshot, which uses
// GDI BitBlt on Windows and X11 shared memory on Linux
type ScreenshotSampler struct{}

// NewScreenshotSampler creates a portable sampler
func NewScreenshotSampler() (*ScreenshotSampler, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return nil, fmt.Errorf("no active displays")
	}
	return &ScreenshotSampler{}, nil
}

func (s *ScreenshotSampler) Name() string {
	return "screenshot"
}

func (s *ScreenshotSampler) Close() error {
	return nil
}

func (s *ScreenshotSampler) Sample(rect image.Rectangle) (*image.NRGBA, error) {
	if rect.Empty() {
		return nil, fmt.Errorf("%w: empty rect %v", ErrCaptureFailed, rect)
	}
	img, err := screenshot.CaptureRect(rect)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}
	return opaqueFromRGBA(img), nil
}
