//go:build !linux && !windows

package window

// NewBackend opens the platform backend for this host
func NewBackend() (Backend, error) {
	return nil, ErrUnsupportedPlatform
}
