// Package input polls the test button and turns completed holds into
// manual cycle requests.
package input

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sweeney/network-status/internal/gpio"
	"github.com/sweeney/network-status/internal/logic"
)

// PollInterval is the button sampling period. A new level must persist for
// one interval before it is accepted.
const PollInterval = 25 * time.Millisecond

// HoldSink receives classified holds. Submit must not block.
type HoldSink interface {
	Submit(kind logic.HoldKind)
}

// SinkFunc adapts a function to HoldSink.
type SinkFunc func(kind logic.HoldKind)

// Submit calls f.
func (f SinkFunc) Submit(kind logic.HoldKind) { f(kind) }

// Monitor samples a Button and forwards holds to a HoldSink.
type Monitor struct {
	button gpio.Button
	sink   HoldSink
	now    func() time.Time

	mu       sync.Mutex
	detector *logic.HoldDetector

	errLog rate.Sometimes
}

// NewMonitor creates a monitor debouncing over one poll interval.
func NewMonitor(button gpio.Button, sink HoldSink, now func() time.Time) *Monitor {
	return &Monitor{
		button:   button,
		sink:     sink,
		now:      now,
		detector: logic.NewHoldDetector(PollInterval),
		errLog:   rate.Sometimes{First: 3, Interval: time.Minute},
	}
}

// Run samples the button on every tick until ctx is canceled.
func (m *Monitor) Run(ctx context.Context, tick <-chan time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			m.Sample()
		}
	}
}

// Sample reads the button once and forwards a completed hold, if any.
// Read errors skip the sample.
func (m *Monitor) Sample() logic.HoldKind {
	pressed, err := m.button.Pressed()
	if err != nil {
		m.errLog.Do(func() { log.Printf("input: read button: %v", err) })
		return logic.HoldNone
	}

	m.mu.Lock()
	wasBaselined := m.detector.IsBaselined()
	kind := m.detector.Process(pressed, m.now())
	baselined := m.detector.IsBaselined()
	held := m.detector.IsPressed()
	m.mu.Unlock()

	if !wasBaselined && baselined && held {
		log.Printf("input: button held at startup, ignoring until released")
	}
	if kind != logic.HoldNone {
		log.Printf("input: %s hold", kind)
		m.sink.Submit(kind)
	}
	return kind
}

// Counts returns the number of holds classified since startup.
func (m *Monitor) Counts() logic.HoldCounts {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detector.Counts()
}
