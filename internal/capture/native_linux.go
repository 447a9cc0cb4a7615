//go:build linux

package capture

func newNativeSampler() (Sampler, error) {
	return NewX11Sampler()
}
