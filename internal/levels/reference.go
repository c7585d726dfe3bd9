// Package levels provides the two trackers feeding the breakout state machine:
// the reference-level tracker (prior session's high/low) and the
// running-extreme tracker (worst price reached since a breakout began).
package levels

import (
	"log"
	"time"

	"breakout-systemv1/internal/model"
	"breakout-systemv1/internal/session"
)

// ReferenceLevel holds the prior session's high and low. Immutable within a
// session; recomputed only on a session boundary.
type ReferenceLevel struct {
	SessionHigh float64   `json:"session_high"`
	SessionLow  float64   `json:"session_low"`
	AsOf        time.Time `json:"as_of"` // session ID the levels were taken from
}

// Set reports whether the levels are usable. Zero levels would corrupt
// downstream comparisons, so unset levels mean "skip this bar".
func (r ReferenceLevel) Set() bool {
	return r.SessionHigh > 0 && r.SessionLow > 0
}

// ReferenceTracker accumulates the current session's high/low and promotes
// them to the cached ReferenceLevel when a new session starts. If a boundary
// fires with no accumulated history, the previous levels are retained.
type ReferenceTracker struct {
	cached ReferenceLevel

	accSession time.Time // session ID being accumulated
	accHigh    float64
	accLow     float64
	accBars    int

	lastTS time.Time
}

// NewReferenceTracker creates an empty tracker. Levels stay unset until a
// full prior session has been observed or Seed is called.
func NewReferenceTracker() *ReferenceTracker {
	return &ReferenceTracker{}
}

// Seed preloads historical bars (oldest first) so levels are available at
// startup without waiting a full session. Bars from the most recent complete
// session in the input become the cached reference.
func (t *ReferenceTracker) Seed(bars []model.Bar) {
	for _, b := range bars {
		if b.Valid() {
			t.Update(b)
		}
	}
	// Promote whatever was accumulated last: at startup the newest seeded
	// session is treated as complete.
	if n := t.accBars; n > 0 {
		t.cached = ReferenceLevel{SessionHigh: t.accHigh, SessionLow: t.accLow, AsOf: t.accSession}
		t.accBars = 0
		log.Printf("[levels] seeded reference from %d-bar session %s: high=%.2f low=%.2f",
			n, t.accSession.Format("2006-01-02"), t.cached.SessionHigh, t.cached.SessionLow)
	}
}

// Update feeds one completed bar. Returns the current reference levels and
// whether this bar started a new session.
func (t *ReferenceTracker) Update(bar model.Bar) (ReferenceLevel, bool) {
	boundary := session.IsBoundary(t.lastTS, bar.TS)
	t.lastTS = bar.TS

	if boundary {
		if t.accBars > 0 {
			t.cached = ReferenceLevel{SessionHigh: t.accHigh, SessionLow: t.accLow, AsOf: t.accSession}
		}
		// else: no history for the session that just ended — retain previous
		// levels rather than emit zeros.
		t.accSession = session.ID(bar.TS)
		t.accHigh = bar.High
		t.accLow = bar.Low
		t.accBars = 1
		return t.cached, true
	}

	if t.accBars == 0 {
		t.accSession = session.ID(bar.TS)
		t.accHigh = bar.High
		t.accLow = bar.Low
		t.accBars = 1
		return t.cached, false
	}

	if bar.High > t.accHigh {
		t.accHigh = bar.High
	}
	if bar.Low < t.accLow {
		t.accLow = bar.Low
	}
	t.accBars++
	return t.cached, false
}

// Levels returns the cached prior-session levels.
func (t *ReferenceTracker) Levels() ReferenceLevel {
	return t.cached
}
