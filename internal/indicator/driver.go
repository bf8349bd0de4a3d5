// Package indicator renders the derived indicator state on the status light.
package indicator

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sweeney/network-status/internal/gpio"
	"github.com/sweeney/network-status/internal/logic"
)

// RenderInterval is the refresh period; half the fastest blink phase.
const RenderInterval = 50 * time.Millisecond

// LampTestDuration is how long both colors stay lit at startup.
const LampTestDuration = time.Second

// MinRunningTime is how long the light stays orange after a cycle starts,
// so that short cycles remain visible.
const MinRunningTime = time.Second

// Source yields the indicator state for an instant.
type Source interface {
	Indicator(now time.Time) logic.IndicatorState
}

// Driver polls a Source and writes LED levels to a Light when they change.
type Driver struct {
	light  gpio.Light
	source Source
	now    func() time.Time

	// OnChange, if set, is called from the render goroutine on every state
	// transition.
	OnChange func(state logic.IndicatorState)

	mu        sync.Mutex
	state     logic.IndicatorState
	level     gpio.Level
	written   bool
	startedAt time.Time

	errLog rate.Sometimes
}

// NewDriver creates a driver.
func NewDriver(light gpio.Light, source Source, now func() time.Time) *Driver {
	return &Driver{
		light:  light,
		source: source,
		now:    now,
		errLog: rate.Sometimes{First: 3, Interval: time.Minute},
	}
}

// LampTest lights both colors for d, then switches the light off.
func (d *Driver) LampTest(ctx context.Context, dur time.Duration) error {
	if err := d.write(gpio.Level{Red: true, Green: true}); err != nil {
		return err
	}
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
	return d.write(gpio.Level{})
}

// Run renders on every tick until ctx is canceled, then switches the light off.
func (d *Driver) Run(ctx context.Context, tick <-chan time.Time) error {
	d.Render()
	for {
		select {
		case <-ctx.Done():
			if err := d.write(gpio.Level{}); err != nil {
				log.Printf("indicator: switch off: %v", err)
			}
			return nil
		case <-tick:
			d.Render()
		}
	}
}

// CycleStarted records the start of a cycle. Render shows Orange until
// MinRunningTime has passed, even if the cycle has already finished.
func (d *Driver) CycleStarted(at time.Time) {
	d.mu.Lock()
	d.startedAt = at
	d.mu.Unlock()
}

// Render computes the current state and updates the light. Write errors are
// logged and retried on the next render.
func (d *Driver) Render() logic.IndicatorState {
	now := d.now()
	state := d.source.Indicator(now)

	d.mu.Lock()
	if !d.startedAt.IsZero() && now.Before(d.startedAt.Add(MinRunningTime)) {
		state = logic.Orange
	}
	prev := d.state
	d.state = state
	d.mu.Unlock()

	red, green := logic.Lights(state, now)
	if state != prev {
		log.Printf("indicator: %s", state)
		if d.OnChange != nil {
			d.OnChange(state)
		}
	}

	if err := d.write(gpio.Level{Red: red, Green: green}); err != nil {
		d.errLog.Do(func() { log.Printf("indicator: set light: %v", err) })
	}
	return state
}

// State returns the most recently rendered state.
func (d *Driver) State() logic.IndicatorState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// write sets the light unless it already shows lv.
func (d *Driver) write(lv gpio.Level) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.written && d.level == lv {
		return nil
	}
	if err := d.light.Set(lv.Red, lv.Green); err != nil {
		d.written = false
		return err
	}
	d.level = lv
	d.written = true
	return nil
}
