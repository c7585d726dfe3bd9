// Package machine implements the breakout/retest/bounce state machine: the
// sole stateful decision point of the signal engine. It consumes one
// completed bar at a time plus the reference-level and running-extreme
// trackers, transitions among eleven states, and occasionally emits a Signal.
package machine

import (
	"time"

	"breakout-systemv1/internal/model"
)

// State enumerates the machine's states. WAITING is initial; there is no
// terminal state — the machine runs for the life of the process.
type State int

const (
	Waiting State = iota
	BullishBreakoutSeen
	BearishBreakoutSeen
	AwaitingBullishRetest
	AwaitingBearishRetest
	AwaitingBullishConfirmation
	AwaitingBearishConfirmation
	NearHighLevel
	NearLowLevel
	BounceFromHigh
	BounceFromLow
)

var stateNames = [...]string{
	"WAITING",
	"BULLISH_BREAKOUT_SEEN",
	"BEARISH_BREAKOUT_SEEN",
	"AWAITING_BULLISH_RETEST",
	"AWAITING_BEARISH_RETEST",
	"AWAITING_BULLISH_CONFIRMATION",
	"AWAITING_BEARISH_CONFIRMATION",
	"NEAR_HIGH_LEVEL",
	"NEAR_LOW_LEVEL",
	"BOUNCE_FROM_HIGH",
	"BOUNCE_FROM_LOW",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// IsBounce reports whether s is one of the two bounce states.
func (s State) IsBounce() bool {
	return s == BounceFromHigh || s == BounceFromLow
}

// IsConfirmation reports whether s is one of the two confirmation states.
func (s State) IsConfirmation() bool {
	return s == AwaitingBullishConfirmation || s == AwaitingBearishConfirmation
}

// brokenLevel remembers the last level broken and in which direction. The
// retest-proximity guard only arms for a level previously broken the opposite
// way of the current approach.
type brokenLevel struct {
	Direction model.Direction
	Level     float64
}

// Context is the machine's sole mutable entity. Created once in WAITING,
// mutated exactly once per bar, owned by its Machine, never shared.
type Context struct {
	State             State
	BreakoutDirection model.Direction // "" when no cycle is active
	BreakoutLevel     float64         // reference level the active cycle broke
	BarsSinceBreakout int
	BounceDirection   model.Direction // direction of the implied bounce signal
	SwingStop         model.StopReference

	// favorableExtreme is the best price reached in the breakout direction
	// since onset, excluding the bar under evaluation. The confirmation
	// predicate compares the evaluated close against it.
	favorableExtreme float64

	// resumeState is where a resolved bounce falls back to: WAITING, or the
	// confirmation state the bounce interrupted.
	resumeState State

	lastBroken brokenLevel
	lastBarTS  time.Time
}
