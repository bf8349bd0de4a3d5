//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

const chipName = "gpiochip0"

// RealButton reads the test switch from actual hardware using Linux GPIO character device.
type RealButton struct {
	line *gpiocdev.Line
}

// NewRealButton requests the switch line as an input with pull-down.
// The switch pulls the line high while pressed.
func NewRealButton(pin int) (*RealButton, error) {
	line, err := gpiocdev.RequestLine(chipName, pin, gpiocdev.AsInput, gpiocdev.WithPullDown)
	if err != nil {
		return nil, fmt.Errorf("request button pin %d: %w", pin, err)
	}
	return &RealButton{line: line}, nil
}

// Pressed returns true while the line is high.
func (b *RealButton) Pressed() (bool, error) {
	v, err := b.line.Value()
	if err != nil {
		return false, fmt.Errorf("read button pin: %w", err)
	}
	return v == 1, nil
}

// Close releases the line.
// Reconfigures it to input with pull-down (matching Pi boot defaults) before
// closing to ensure clean state for system shutdown/reboot.
func (b *RealButton) Close() error {
	if b.line == nil {
		return nil
	}
	var errs []error
	if err := b.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure button pin: %w", err))
	}
	if err := b.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close button pin: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealLight drives the two LED elements as outputs.
type RealLight struct {
	red   *gpiocdev.Line
	green *gpiocdev.Line
}

// NewRealLight requests both LED lines as outputs, initially off.
func NewRealLight(pinRed, pinGreen int) (*RealLight, error) {
	red, err := gpiocdev.RequestLine(chipName, pinRed, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request red pin %d: %w", pinRed, err)
	}

	green, err := gpiocdev.RequestLine(chipName, pinGreen, gpiocdev.AsOutput(0))
	if err != nil {
		red.Close()
		return nil, fmt.Errorf("request green pin %d: %w", pinGreen, err)
	}

	return &RealLight{red: red, green: green}, nil
}

// Set writes both LED elements.
func (l *RealLight) Set(red, green bool) error {
	if err := l.red.SetValue(boolToLevel(red)); err != nil {
		return fmt.Errorf("write red pin: %w", err)
	}
	if err := l.green.SetValue(boolToLevel(green)); err != nil {
		return fmt.Errorf("write green pin: %w", err)
	}
	return nil
}

// Close turns both elements off and returns the pins to inputs with
// pull-down so the LED stays dark across reboot.
func (l *RealLight) Close() error {
	var errs []error
	for name, line := range map[string]*gpiocdev.Line{"red": l.red, "green": l.green} {
		if line == nil {
			continue
		}
		if err := line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("switch off %s pin: %w", name, err))
		}
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", name, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", name, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func boolToLevel(on bool) int {
	if on {
		return 1
	}
	return 0
}
