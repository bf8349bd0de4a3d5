//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealButton is not available on non-Linux platforms.
type RealButton struct{}

// NewRealButton returns an error on non-Linux platforms.
func NewRealButton(pin int) (*RealButton, error) {
	return nil, errUnsupported
}

// Pressed is not implemented on non-Linux platforms.
func (b *RealButton) Pressed() (bool, error) {
	return false, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (b *RealButton) Close() error {
	return nil
}

// RealLight is not available on non-Linux platforms.
type RealLight struct{}

// NewRealLight returns an error on non-Linux platforms.
func NewRealLight(pinRed, pinGreen int) (*RealLight, error) {
	return nil, errUnsupported
}

// Set is not implemented on non-Linux platforms.
func (l *RealLight) Set(red, green bool) error {
	return errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (l *RealLight) Close() error {
	return nil
}
