package machine

import (
	"time"

	"github.com/google/uuid"

	"breakout-systemv1/internal/levels"
	"breakout-systemv1/internal/model"
)

// Config holds the static thresholds of the state machine.
type Config struct {
	// BreakoutMargin is the fixed offset a close must exceed a reference
	// level by to count as a breakout. Distinct from ProximityThreshold.
	BreakoutMargin float64

	// ProximityThreshold defines "near" a level for bounce and retest checks.
	ProximityThreshold float64

	// LookbackBars is the WAITING-state breakout scan depth. Default 10.
	LookbackBars int
}

func (c *Config) defaults() {
	if c.LookbackBars <= 0 {
		c.LookbackBars = 10
	}
}

// Machine is the per-(instrument, timeframe) breakout/retest/bounce state
// machine. It is strictly bar-synchronous and must never be shared across
// pairs or called concurrently.
type Machine struct {
	cfg      Config
	token    string
	exchange string
	tf       int

	ctx Context
	ext *levels.ExtremeTracker

	history        []model.Bar // most recent first
	lastCycleEndTS time.Time   // breakout scan ignores bars at or before this

	events []model.StateTransitionEvent // rebuilt each OnBar
}

// New creates a machine in WAITING for one (instrument, timeframe) pair.
// The machine owns the running-extreme tracker for its pair.
func New(cfg Config, exchange, token string, tf int) *Machine {
	cfg.defaults()
	return &Machine{
		cfg:      cfg,
		token:    token,
		exchange: exchange,
		tf:       tf,
		ext:      levels.NewExtremeTracker(),
		history:  make([]model.Bar, 0, cfg.LookbackBars+2),
	}
}

// State returns the current state.
func (m *Machine) State() State { return m.ctx.State }

// Context returns a copy of the mutable context, for inspection only.
func (m *Machine) Context() Context { return m.ctx }

// Extremes returns the machine's running-extreme tracker.
func (m *Machine) Extremes() *levels.ExtremeTracker { return m.ext }

// OnBar evaluates one completed bar against the given reference levels.
// Returns an emitted signal (nil for most bars) and the state transitions
// that occurred. The events slice is reused on the next call.
//
// Evaluation order is fixed: bounce guard, retest-proximity guard, then the
// state-specific transition. A replayed or out-of-order bar is a no-op.
func (m *Machine) OnBar(bar model.Bar, ref levels.ReferenceLevel) (*model.Signal, []model.StateTransitionEvent) {
	m.events = m.events[:0]

	if !bar.Valid() {
		return nil, nil
	}
	if !m.ctx.lastBarTS.IsZero() && !bar.TS.After(m.ctx.lastBarTS) {
		// Already processed — idempotent skip, never a double transition.
		return nil, nil
	}
	m.ctx.lastBarTS = bar.TS

	// A bounce the caller never resolved falls back before anything else.
	if m.ctx.State.IsBounce() {
		m.resolveBounce(bar.TS, "unresolved bounce auto-reset")
	}

	m.pushHistory(bar)

	if !ref.Set() {
		// No usable session levels: skip this bar, retain prior state.
		return nil, m.events
	}

	m.ext.Update(bar)
	if m.ctx.BreakoutDirection != "" {
		m.ctx.BarsSinceBreakout++
	}

	var sig *model.Signal
	if !bar.ZeroRange() {
		sig = m.evaluate(bar, ref)
	}

	m.updateFavorable(bar)
	return sig, m.events
}

// Resolve completes a pending bounce after the validator and risk calculator
// have acted on its implied signal. The machine falls back to WAITING, or to
// the confirmation state the bounce interrupted. Accepted and rejected
// signals resolve identically: rejection is never retried.
func (m *Machine) Resolve(ts time.Time) []model.StateTransitionEvent {
	if !m.ctx.State.IsBounce() {
		return nil
	}
	m.events = m.events[:0]
	m.resolveBounce(ts, "bounce resolved")
	return m.events
}

// Reset performs a full reset to WAITING, clearing the cycle and both
// running extremes. Called by the owner on session boundaries.
func (m *Machine) Reset(ts time.Time, reason string) []model.StateTransitionEvent {
	m.events = m.events[:0]
	if m.ctx.State != Waiting || m.ctx.BreakoutDirection != "" {
		m.fullReset(ts, reason)
	}
	// Session levels are about to change: a break of the old levels no
	// longer arms the retest-proximity guard.
	m.ctx.lastBroken = brokenLevel{}
	m.history = m.history[:0]
	return m.events
}

// ── per-bar evaluation ──

func (m *Machine) evaluate(bar model.Bar, ref levels.ReferenceLevel) *model.Signal {
	// 1. Bounce check — highest priority, so a strong rejection candle is
	// never missed while the machine is busy elsewhere.
	if sig := m.bounceGuard(bar, ref); sig != nil {
		return sig
	}

	// 2. Retest-proximity check, armed only from WAITING and only for a
	// level previously broken the opposite way.
	if m.ctx.State == Waiting && m.nearGuard(bar, ref) {
		return nil
	}

	// 3. State-specific transition.
	switch m.ctx.State {
	case Waiting:
		if dir, ok := m.scanBreakout(ref); ok {
			m.startCycle(dir, ref, bar, "breakout close beyond session level")
		}

	case BullishBreakoutSeen:
		if m.preempt(bar, ref) {
			return nil
		}
		if bar.Close > m.ctx.BreakoutLevel+m.cfg.BreakoutMargin {
			m.setState(AwaitingBullishRetest, "second confirming close beyond level", bar.TS)
		}

	case BearishBreakoutSeen:
		if m.preempt(bar, ref) {
			return nil
		}
		if bar.Close < m.ctx.BreakoutLevel-m.cfg.BreakoutMargin {
			m.setState(AwaitingBearishRetest, "second confirming close beyond level", bar.TS)
		}

	case AwaitingBullishRetest:
		if m.preempt(bar, ref) {
			return nil
		}
		// Retest compares the close for both directions; see DESIGN.md.
		if bar.Close <= m.ctx.BreakoutLevel {
			if floor, ok := m.ext.BullishFloor(); ok {
				m.ctx.SwingStop = model.FromBullishCycle(floor)
				m.setState(AwaitingBullishConfirmation, "close back across broken level", bar.TS)
			}
		}

	case AwaitingBearishRetest:
		if m.preempt(bar, ref) {
			return nil
		}
		if bar.Close >= m.ctx.BreakoutLevel {
			if ceil, ok := m.ext.BearishCeiling(); ok {
				m.ctx.SwingStop = model.FromBearishCycle(ceil)
				m.setState(AwaitingBearishConfirmation, "close back across broken level", bar.TS)
			}
		}

	case AwaitingBullishConfirmation:
		if m.preempt(bar, ref) {
			return nil
		}
		if m.ctx.favorableExtreme > 0 && bar.Close > m.ctx.favorableExtreme && bar.Close > bar.Open {
			sig := m.newSignal(model.DirectionBuy, bar, m.ctx.SwingStop,
				AwaitingBullishConfirmation, "momentum close beyond running high")
			m.fullReset(bar.TS, "signal emitted")
			return sig
		}

	case AwaitingBearishConfirmation:
		if m.preempt(bar, ref) {
			return nil
		}
		if m.ctx.favorableExtreme > 0 && bar.Close < m.ctx.favorableExtreme && bar.Close < bar.Open {
			sig := m.newSignal(model.DirectionSell, bar, m.ctx.SwingStop,
				AwaitingBearishConfirmation, "momentum close beyond running low")
			m.fullReset(bar.TS, "signal emitted")
			return sig
		}

	case NearHighLevel, NearLowLevel:
		// Fresh breakout wins over lingering near a level. The bounce test
		// for these states already ran in the priority guard above.
		if bar.Close > ref.SessionHigh+m.cfg.BreakoutMargin {
			m.startCycle(model.DirectionBuy, ref, bar, "fresh breakout from near-level")
		} else if bar.Close < ref.SessionLow-m.cfg.BreakoutMargin {
			m.startCycle(model.DirectionSell, ref, bar, "fresh breakout from near-level")
		}
	}

	return nil
}

// bounceGuard fires when the bar touched within the proximity threshold of a
// session level and closed back away by at least that threshold. Entering a
// bounce state implies a signal immediately.
func (m *Machine) bounceGuard(bar model.Bar, ref levels.ReferenceLevel) *model.Signal {
	prox := m.cfg.ProximityThreshold

	fromHigh := bar.High >= ref.SessionHigh-prox && bar.Close <= ref.SessionHigh-prox
	fromLow := bar.Low <= ref.SessionLow+prox && bar.Close >= ref.SessionLow+prox

	if fromHigh && fromLow {
		// A single bar swept both levels: keep the side the close rejected
		// harder from.
		mid := (ref.SessionHigh + ref.SessionLow) / 2
		fromHigh = bar.Close < mid
		fromLow = !fromHigh
	}

	switch {
	case fromHigh:
		return m.enterBounce(BounceFromHigh, model.DirectionSell,
			model.FromBounceHigh(bar.High), bar, "rejection at session high")
	case fromLow:
		return m.enterBounce(BounceFromLow, model.DirectionBuy,
			model.FromBounceLow(bar.Low), bar, "rejection at session low")
	}
	return nil
}

func (m *Machine) enterBounce(to State, dir model.Direction, stop model.StopReference, bar model.Bar, reason string) *model.Signal {
	m.ctx.resumeState = Waiting
	if m.ctx.State.IsConfirmation() {
		m.ctx.resumeState = m.ctx.State
	}
	m.ctx.BounceDirection = dir
	m.setState(to, reason, bar.TS)
	return m.newSignal(dir, bar, stop, to, reason)
}

// nearGuard moves WAITING to a NEAR_* state when the close comes within the
// proximity threshold of a level that was previously broken the opposite way.
func (m *Machine) nearGuard(bar model.Bar, ref levels.ReferenceLevel) bool {
	prox := m.cfg.ProximityThreshold

	if abs(ref.SessionHigh-bar.Close) <= prox && m.ctx.lastBroken.Direction == model.DirectionBuy {
		m.setState(NearHighLevel, "close near previously broken session high", bar.TS)
		return true
	}
	if abs(bar.Close-ref.SessionLow) <= prox && m.ctx.lastBroken.Direction == model.DirectionSell {
		m.setState(NearLowLevel, "close near previously broken session low", bar.TS)
		return true
	}
	return false
}

// scanBreakout looks back over the recent history for a close beyond a
// session level by the breakout margin. Bars from before the last cycle
// completed are ignored so a finished cycle cannot re-trigger off stale bars.
func (m *Machine) scanBreakout(ref levels.ReferenceLevel) (model.Direction, bool) {
	n := m.cfg.LookbackBars
	if n > len(m.history) {
		n = len(m.history)
	}
	for i := 0; i < n; i++ {
		b := m.history[i]
		if !b.TS.After(m.lastCycleEndTS) {
			break
		}
		if b.ZeroRange() {
			continue
		}
		if b.Close > ref.SessionHigh+m.cfg.BreakoutMargin {
			return model.DirectionBuy, true
		}
		if b.Close < ref.SessionLow-m.cfg.BreakoutMargin {
			return model.DirectionSell, true
		}
	}
	return "", false
}

// preempt abandons the active cycle when a fresh opposite-direction breakout
// closes on the current bar. The opposite cycle restarts immediately; retest
// progress and the swing stop are discarded.
func (m *Machine) preempt(bar model.Bar, ref levels.ReferenceLevel) bool {
	switch m.ctx.BreakoutDirection {
	case model.DirectionBuy:
		if bar.Close < ref.SessionLow-m.cfg.BreakoutMargin {
			m.startCycle(model.DirectionSell, ref, bar, "opposite breakout pre-empts bullish cycle")
			return true
		}
	case model.DirectionSell:
		if bar.Close > ref.SessionHigh+m.cfg.BreakoutMargin {
			m.startCycle(model.DirectionBuy, ref, bar, "opposite breakout pre-empts bearish cycle")
			return true
		}
	}
	return false
}

// startCycle records a new breakout cycle and moves to the matching
// *_BREAKOUT_SEEN state. Any previous cycle state is discarded.
func (m *Machine) startCycle(dir model.Direction, ref levels.ReferenceLevel, bar model.Bar, reason string) {
	level := ref.SessionHigh
	to := BullishBreakoutSeen
	if dir == model.DirectionSell {
		level = ref.SessionLow
		to = BearishBreakoutSeen
	}

	m.ctx.BreakoutDirection = dir
	m.ctx.BreakoutLevel = level
	m.ctx.BarsSinceBreakout = 0
	m.ctx.SwingStop = model.StopReference{}
	m.ctx.BounceDirection = ""
	m.ctx.favorableExtreme = 0
	m.ctx.lastBroken = brokenLevel{Direction: dir, Level: level}

	m.ext.Reset()
	m.ext.Track(dir)
	m.ext.Update(bar)

	m.setState(to, reason, bar.TS)
}

func (m *Machine) resolveBounce(ts time.Time, reason string) {
	if m.ctx.resumeState.IsConfirmation() {
		resume := m.ctx.resumeState
		m.ctx.BounceDirection = ""
		m.ctx.resumeState = Waiting
		m.setState(resume, reason+" — resuming retest cycle", ts)
		return
	}
	m.fullReset(ts, reason)
}

// fullReset is the explicit full state-machine reset: back to WAITING with
// both running extremes cleared. lastBroken survives so the retest-proximity
// guard can still arm for the level this cycle broke.
func (m *Machine) fullReset(ts time.Time, reason string) {
	m.ext.Reset()
	m.ctx.BreakoutDirection = ""
	m.ctx.BreakoutLevel = 0
	m.ctx.BarsSinceBreakout = 0
	m.ctx.SwingStop = model.StopReference{}
	m.ctx.BounceDirection = ""
	m.ctx.favorableExtreme = 0
	m.ctx.resumeState = Waiting
	m.lastCycleEndTS = ts
	m.setState(Waiting, reason, ts)
}

// updateFavorable folds the evaluated bar into the best-price-so-far for the
// active cycle, after the confirmation predicate has already run. The
// confirmation close therefore always compares against prior bars only.
func (m *Machine) updateFavorable(bar model.Bar) {
	switch m.ctx.BreakoutDirection {
	case model.DirectionBuy:
		if m.ctx.favorableExtreme == 0 || bar.High > m.ctx.favorableExtreme {
			m.ctx.favorableExtreme = bar.High
		}
	case model.DirectionSell:
		if m.ctx.favorableExtreme == 0 || bar.Low < m.ctx.favorableExtreme {
			m.ctx.favorableExtreme = bar.Low
		}
	}
}

func (m *Machine) pushHistory(bar model.Bar) {
	m.history = append(m.history, model.Bar{})
	copy(m.history[1:], m.history)
	m.history[0] = bar
	if max := m.cfg.LookbackBars + 2; len(m.history) > max {
		m.history = m.history[:max]
	}
}

func (m *Machine) setState(to State, reason string, ts time.Time) {
	from := m.ctx.State
	if from == to {
		return
	}
	m.ctx.State = to
	m.events = append(m.events, model.StateTransitionEvent{
		Token:    m.token,
		Exchange: m.exchange,
		TF:       m.tf,
		From:     from.String(),
		To:       to.String(),
		Reason:   reason,
		TS:       ts,
	})
}

func (m *Machine) newSignal(dir model.Direction, bar model.Bar, stop model.StopReference, created State, reason string) *model.Signal {
	return &model.Signal{
		ID:             uuid.NewString(),
		Token:          m.token,
		Exchange:       m.exchange,
		TF:             m.tf,
		Direction:      dir,
		EntryPriceHint: bar.Close,
		StopReference:  stop,
		CreatedInState: created.String(),
		Reason:         reason,
		TS:             bar.TS,
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
