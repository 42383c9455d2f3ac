//go:build !linux

package gpio

import "errors"

// RealLines is not available on non-Linux platforms.
type RealLines struct{}

// NewRealLines returns an error on non-Linux platforms.
func NewRealLines(chipName string, offsets []int) (*RealLines, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Lines is not implemented on non-Linux platforms.
func (r *RealLines) Lines() []Line {
	return nil
}

// Close is not implemented on non-Linux platforms.
func (r *RealLines) Close() error {
	return nil
}
