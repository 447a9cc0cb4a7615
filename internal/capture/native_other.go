//go:build !linux

package capture

import "errors"

// GDI BitBlt through kbinani/screenshot is already the native path here.
func newNativeSampler() (Sampler, error) {
	return nil, errors.New("no native sampler on this platform")
}
