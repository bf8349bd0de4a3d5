package mqtt

import (
	"sync"

	"github.com/sweeney/network-status/internal/scheduler"
)

// FakePublisher records published events for test assertions.
// Fields may be read directly once the publishing goroutines have stopped;
// use the accessor methods while they run.
type FakePublisher struct {
	mu sync.Mutex

	// Cycles contains all cycles that were published.
	Cycles []scheduler.Cycle

	// CyclePayloads contains the JSON payloads for cycles.
	CyclePayloads [][]byte

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, will be returned by PublishCycle.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishCycle records the cycle.
func (f *FakePublisher) PublishCycle(c scheduler.Cycle) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatCyclePayload(c)
	if err != nil {
		return err
	}
	f.Cycles = append(f.Cycles, c)
	f.CyclePayloads = append(f.CyclePayloads, payload)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// CycleCount returns the number of published cycles.
func (f *FakePublisher) CycleCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Cycles)
}

// EventNames returns the Event field of every published system event, in order.
func (f *FakePublisher) EventNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.SystemEvents))
	for i, e := range f.SystemEvents {
		names[i] = e.Event
	}
	return names
}

// Reset clears recorded events.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Cycles = nil
	f.CyclePayloads = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
