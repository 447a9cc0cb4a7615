//go:build !linux && !windows

package backdrop

import "errors"

// NewFactory returns the backdrop factory for this host
func NewFactory() (Factory, error) {
	return nil, errors.New("backdrop surfaces are not supported on this platform")
}
