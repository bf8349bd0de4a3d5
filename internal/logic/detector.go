package logic

import "time"

// level is the debounced level of the button line.
type level int

const (
	levelUnknown level = iota
	levelReleased
	levelPressed
)

// HoldDetector debounces raw button samples and classifies each completed
// press-and-release as a hold. Not safe for concurrent use.
type HoldDetector struct {
	debounceDuration time.Duration

	stable       level
	pending      level
	pendingSince time.Time
	baselined    bool

	// pressedAt is the time of the first raw sample of the current press.
	// Zero when the press started before the baseline was established.
	pressedAt time.Time

	counts HoldCounts
}

// HoldCounts tracks the number of classified holds since startup.
type HoldCounts struct {
	Short   int
	Long    int
	Ignored int
}

// NewHoldDetector creates a detector that requires the raw signal to stay at a
// new level for debounceDuration before the stable level changes.
func NewHoldDetector(debounceDuration time.Duration) *HoldDetector {
	return &HoldDetector{debounceDuration: debounceDuration}
}

// Process takes one raw sample and returns the hold completed by it, if any.
// A hold is only reported on the debounced release edge, so its duration is
// known at classification time.
func (d *HoldDetector) Process(pressed bool, now time.Time) HoldKind {
	sample := levelReleased
	if pressed {
		sample = levelPressed
	}

	// First time seeing the line
	if !d.baselined {
		if d.pending != sample {
			d.pending = sample
			d.pendingSince = now
			return HoldNone
		}
		if now.Sub(d.pendingSince) >= d.debounceDuration {
			d.stable = sample
			d.baselined = true
			d.pending = levelUnknown
		}
		return HoldNone
	}

	if sample == d.stable {
		d.pending = levelUnknown
		return HoldNone
	}

	if d.pending != sample {
		d.pending = sample
		d.pendingSince = now
		return HoldNone
	}

	if now.Sub(d.pendingSince) < d.debounceDuration {
		return HoldNone
	}

	d.stable = sample
	d.pending = levelUnknown
	edge := d.pendingSince

	if sample == levelPressed {
		d.pressedAt = edge
		return HoldNone
	}

	// Release edge
	if d.pressedAt.IsZero() {
		return HoldNone
	}
	kind := ClassifyHold(edge.Sub(d.pressedAt))
	d.pressedAt = time.Time{}

	switch kind {
	case HoldShort:
		d.counts.Short++
	case HoldLong:
		d.counts.Long++
	default:
		d.counts.Ignored++
	}
	return kind
}

// ClassifyHold maps a hold duration to a HoldKind.
func ClassifyHold(d time.Duration) HoldKind {
	switch {
	case d < MinHold:
		return HoldNone
	case d < LongHold:
		return HoldShort
	default:
		return HoldLong
	}
}

// IsBaselined returns whether the detector has established the initial level.
func (d *HoldDetector) IsBaselined() bool {
	return d.baselined
}

// IsPressed reports whether the debounced level is pressed.
func (d *HoldDetector) IsPressed() bool {
	return d.stable == levelPressed
}

// Counts returns a copy of the hold counters.
func (d *HoldDetector) Counts() HoldCounts {
	return d.counts
}
