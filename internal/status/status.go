// Package status provides a thread-safe status tracker for the network-status
// daemon. It is read by the HTTP handlers and the MQTT system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/network-status/internal/logic"
	"github.com/sweeney/network-status/internal/scheduler"
)

// NetworkInfo contains the host's own network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
	PinButton   int
	PinRed      int
	PinGreen    int
}

// Failures counts failed observations in each lookback window.
type Failures struct {
	Hour int
	Day  int
	Week int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Indicator     logic.IndicatorState
	Run           logic.RunState
	Pending       logic.HoldKind
	LastCycle     *scheduler.Cycle
	Cycles        int
	FailedCycles  int
	Holds         logic.HoldCounts
	Failures      Failures
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Run:       logic.Idle,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// SetIndicator records the rendered indicator state together with the
// scheduler state that produced it.
func (t *Tracker) SetIndicator(state logic.IndicatorState, run logic.RunState, pending logic.HoldKind) {
	t.mu.Lock()
	t.snap.Indicator = state
	t.snap.Run = run
	t.snap.Pending = pending
	t.mu.Unlock()
}

// SetRunState records the scheduler state.
func (t *Tracker) SetRunState(run logic.RunState, pending logic.HoldKind) {
	t.mu.Lock()
	t.snap.Run = run
	t.snap.Pending = pending
	t.mu.Unlock()
}

// RecordCycle stores a completed cycle and the current window failure counts.
func (t *Tracker) RecordCycle(c scheduler.Cycle, failures Failures) {
	c.Observations = append([]logic.Observation(nil), c.Observations...)

	t.mu.Lock()
	t.snap.LastCycle = &c
	t.snap.Cycles++
	if c.Failed() {
		t.snap.FailedCycles++
	}
	t.snap.Failures = failures
	t.mu.Unlock()
}

// SetFailures refreshes the window failure counts.
func (t *Tracker) SetFailures(failures Failures) {
	t.mu.Lock()
	t.snap.Failures = failures
	t.mu.Unlock()
}

// SetHoldCounts sets the number of classified button holds.
func (t *Tracker) SetHoldCounts(counts logic.HoldCounts) {
	t.mu.Lock()
	t.snap.Holds = counts
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
