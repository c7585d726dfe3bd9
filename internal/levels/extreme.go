package levels

import (
	"math"

	"breakout-systemv1/internal/model"
)

// ExtremeTracker maintains the most adverse price reached since the active
// breakout began. While a bullish cycle is pending it tracks the lowest low
// (the bullish floor, non-increasing); while a bearish cycle is pending it
// tracks the highest high (the bearish ceiling, non-decreasing). The opposite
// value stays frozen. Both clear only on a full reset.
//
// Using the worst extreme since breakout onset, not the breakout bar's own
// extreme, sizes stops for the adverse drift that usually precedes a
// confirmed retest.
type ExtremeTracker struct {
	active model.Direction // "" = not tracking

	bullishFloor   float64
	bearishCeiling float64
	floorSet       bool
	ceilingSet     bool
}

// NewExtremeTracker returns a tracker with both extremes unset.
func NewExtremeTracker() *ExtremeTracker {
	return &ExtremeTracker{}
}

// Track starts (or switches) tracking for the given breakout direction.
// The extreme for the new direction restarts unset; the opposite is frozen.
func (t *ExtremeTracker) Track(d model.Direction) {
	t.active = d
	switch d {
	case model.DirectionBuy:
		t.bullishFloor = 0
		t.floorSet = false
	case model.DirectionSell:
		t.bearishCeiling = 0
		t.ceilingSet = false
	}
}

// Active returns the direction currently being tracked ("" if none).
func (t *ExtremeTracker) Active() model.Direction {
	return t.active
}

// Update feeds one bar. No-op unless a direction is active.
func (t *ExtremeTracker) Update(bar model.Bar) {
	switch t.active {
	case model.DirectionBuy:
		if !t.floorSet {
			t.bullishFloor = math.Inf(1)
			t.floorSet = true
		}
		if bar.Low < t.bullishFloor {
			t.bullishFloor = bar.Low
		}
	case model.DirectionSell:
		if !t.ceilingSet {
			t.bearishCeiling = math.Inf(-1)
			t.ceilingSet = true
		}
		if bar.High > t.bearishCeiling {
			t.bearishCeiling = bar.High
		}
	}
}

// BullishFloor returns the lowest low since the bullish breakout began.
func (t *ExtremeTracker) BullishFloor() (float64, bool) {
	if !t.floorSet || math.IsInf(t.bullishFloor, 1) {
		return 0, false
	}
	return t.bullishFloor, true
}

// BearishCeiling returns the highest high since the bearish breakout began.
func (t *ExtremeTracker) BearishCeiling() (float64, bool) {
	if !t.ceilingSet || math.IsInf(t.bearishCeiling, -1) {
		return 0, false
	}
	return t.bearishCeiling, true
}

// Reset clears both extremes and stops tracking. Called only on an explicit
// full state-machine reset.
func (t *ExtremeTracker) Reset() {
	t.active = ""
	t.bullishFloor = 0
	t.bearishCeiling = 0
	t.floorSet = false
	t.ceilingSet = false
}
