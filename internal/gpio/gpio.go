// Package gpio provides the test button input and the status light output
// with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Button reads the momentary test switch.
type Button interface {
	// Pressed returns the raw (undebounced) switch level; true = pressed.
	Pressed() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Light drives the bi-color status LED. Orange is both colors on.
type Light interface {
	// Set switches the red and green elements.
	Set(red, green bool) error

	// Close turns the light off and releases GPIO resources.
	Close() error
}

// Default pin definitions (BCM numbering)
const (
	DefaultPinButton = 16
	DefaultPinRed    = 23
	DefaultPinGreen  = 17
)
