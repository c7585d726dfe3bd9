package engine

import (
	"breakout-systemv1/internal/levels"
	"breakout-systemv1/internal/machine"
	"breakout-systemv1/internal/model"
)

// Runner owns the full per-(instrument, timeframe) evaluation state: the
// reference-level tracker, the state machine (which owns the running-extreme
// tracker), and a short window of recent bars for the confirmation validator.
// A Runner is only ever touched by the engine's single bar loop.
type Runner struct {
	key      string
	exchange string
	token    string
	tf       int

	ref    *levels.ReferenceTracker
	mach   *machine.Machine
	recent []model.Bar // newest first, capped window
}

func newRunner(cfg machine.Config, exchange, token string, tf int, window int) *Runner {
	b := model.Bar{Token: token, Exchange: exchange, TF: tf}
	return &Runner{
		key:      b.Key(),
		exchange: exchange,
		token:    token,
		tf:       tf,
		ref:      levels.NewReferenceTracker(),
		mach:     machine.New(cfg, exchange, token, tf),
		recent:   make([]model.Bar, 0, window),
	}
}

// Key returns the runner's pair key ("exchange:token:{TF}s").
func (r *Runner) Key() string { return r.key }

// State returns the machine's current state.
func (r *Runner) State() machine.State { return r.mach.State() }

// Levels returns the current cached reference levels.
func (r *Runner) Levels() levels.ReferenceLevel { return r.ref.Levels() }

// Seed preloads historical bars (oldest first) so reference levels and the
// validator window are populated before the first live bar.
func (r *Runner) Seed(bars []model.Bar) {
	r.ref.Seed(bars)
	for _, b := range bars {
		if b.Valid() {
			r.push(b)
		}
	}
}

func (r *Runner) push(bar model.Bar) {
	if cap(r.recent) == 0 {
		return
	}
	if len(r.recent) < cap(r.recent) {
		r.recent = append(r.recent, model.Bar{})
	}
	copy(r.recent[1:], r.recent)
	r.recent[0] = bar
}
