package logic

import "time"

// History is the read side of the observation history used by Aggregate.
type History interface {
	// HasFailureSince reports whether any failure was recorded at or after t.
	HasFailureSince(t time.Time) bool
	// LastCycleOutcome returns the outcome of the most recently completed cycle.
	LastCycleOutcome() Outcome
}

// Aggregate derives the indicator state. The first matching rule wins:
// a running cycle, then a pending manual trigger, then the last cycle's
// outcome, then the most recent lookback window that contains a failure.
func Aggregate(run RunState, pending HoldKind, h History, now time.Time) IndicatorState {
	switch {
	case run == Running:
		return Orange
	case pending != HoldNone:
		return Off
	case h.LastCycleOutcome() == OutcomeFail:
		return SolidRed
	case h.HasFailureSince(now.Add(-Hour)):
		return FastBlinkGreen
	case h.HasFailureSince(now.Add(-Day)):
		return HourlyBlinkGreen
	case h.HasFailureSince(now.Add(-Week)):
		return DailyBlinkGreen
	default:
		return SolidGreen
	}
}

// Lights returns the red and green LED levels for a state at instant t.
// Blinking states are derived from wall-clock time so that every caller
// renders the same phase.
func Lights(state IndicatorState, t time.Time) (red, green bool) {
	tenths := t.Round(100*time.Millisecond).UnixMilli() / 100
	switch state {
	case SolidGreen:
		return false, true
	case FastBlinkGreen:
		return false, tenths%2 != 0
	case HourlyBlinkGreen:
		return false, t.Round(time.Second).Unix()%2 != 0
	case DailyBlinkGreen:
		return false, tenths%20 != 0
	case SolidRed:
		return true, false
	case Orange:
		return true, true
	default:
		return false, false
	}
}
