package gpio

import (
	"errors"
	"sync"
)

// FakeButton is a test double that returns scripted switch levels.
type FakeButton struct {
	mu sync.Mutex

	// Samples contains scripted levels to return.
	// Each call to Pressed() consumes the next sample.
	Samples []bool

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Pressed()
	ReadError error
}

// NewFakeButton creates a FakeButton with the given samples.
func NewFakeButton(samples []bool) *FakeButton {
	return &FakeButton{Samples: samples}
}

// Pressed returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeButton) Pressed() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ReadError != nil {
		return false, f.ReadError
	}

	if len(f.Samples) == 0 {
		return false, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	return sample, nil
}

// Close marks the button as closed.
func (f *FakeButton) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// Reset resets the button to the beginning of samples.
func (f *FakeButton) Reset() {
	f.mu.Lock()
	f.index = 0
	f.Closed = false
	f.mu.Unlock()
}

// Level is one written LED state.
type Level struct {
	Red   bool
	Green bool
}

// FakeLight records every level written to it.
type FakeLight struct {
	mu       sync.Mutex
	writes   []Level
	closed   bool
	setError error
}

// NewFakeLight creates a FakeLight.
func NewFakeLight() *FakeLight {
	return &FakeLight{}
}

// Set records the level, or returns the configured error.
func (f *FakeLight) Set(red, green bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setError != nil {
		return f.setError
	}
	f.writes = append(f.writes, Level{Red: red, Green: green})
	return nil
}

// SetError makes subsequent Set calls fail with err (nil clears it).
func (f *FakeLight) SetError(err error) {
	f.mu.Lock()
	f.setError = err
	f.mu.Unlock()
}

// Writes returns a copy of all recorded levels.
func (f *FakeLight) Writes() []Level {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Level(nil), f.writes...)
}

// Last returns the most recent level and whether any was written.
func (f *FakeLight) Last() (Level, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.writes) == 0 {
		return Level{}, false
	}
	return f.writes[len(f.writes)-1], true
}

// Close marks the light as closed.
func (f *FakeLight) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (f *FakeLight) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
