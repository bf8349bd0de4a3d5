// Package logic contains the pure decision logic of the network status daemon:
// hold debouncing and classification, indicator state aggregation and the
// mapping of indicator states to LED levels.
// This package has NO external dependencies (no GPIO, MQTT, network or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// Outcome is the result of a single check.
type Outcome string

const (
	OutcomePass Outcome = "PASS"
	OutcomeFail Outcome = "FAIL"
)

// OutcomeOf converts a boolean check result to an Outcome.
func OutcomeOf(ok bool) Outcome {
	if ok {
		return OutcomePass
	}
	return OutcomeFail
}

// Observation is one recorded check result. Immutable once recorded.
type Observation struct {
	Target    string
	Check     string
	Outcome   Outcome
	Timestamp time.Time
	Latency   time.Duration // zero when the check does not measure latency
	Detail    string        // human readable detail, e.g. error text or address
}

// Failed reports whether the observation is a failure.
func (o Observation) Failed() bool {
	return o.Outcome == OutcomeFail
}

// RunState tells whether a test cycle is currently executing.
type RunState string

const (
	Idle    RunState = "IDLE"
	Running RunState = "RUNNING"
)

// HoldKind classifies one press-and-release of the test button.
type HoldKind string

const (
	HoldNone  HoldKind = ""
	HoldShort HoldKind = "SHORT"
	HoldLong  HoldKind = "LONG"
)

// IndicatorState is the derived state shown on the status light.
type IndicatorState string

const (
	SolidGreen       IndicatorState = "SOLID_GREEN"
	DailyBlinkGreen  IndicatorState = "DAILY_BLINK_GREEN"
	HourlyBlinkGreen IndicatorState = "HOURLY_BLINK_GREEN"
	FastBlinkGreen   IndicatorState = "FAST_BLINK_GREEN"
	SolidRed         IndicatorState = "SOLID_RED"
	Off              IndicatorState = "OFF"
	Orange           IndicatorState = "ORANGE"
)

// AllIndicatorStates lists every indicator state in precedence order, highest first.
var AllIndicatorStates = []IndicatorState{
	Orange,
	Off,
	SolidRed,
	FastBlinkGreen,
	HourlyBlinkGreen,
	DailyBlinkGreen,
	SolidGreen,
}

// Lookback windows used by the aggregator.
const (
	Hour = time.Hour
	Day  = 24 * Hour
	Week = 7 * Day
)

// Hold classification thresholds.
const (
	MinHold  = 100 * time.Millisecond
	LongHold = 3 * time.Second
)
