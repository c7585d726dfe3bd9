// Package engine wires the signal pipeline together: bars in, orders out.
//
// One Engine consumes a single bar channel and routes each completed bar to
// the Runner for its (instrument, timeframe) pair. Signals emitted by a
// runner's state machine pass through the confirmation validator, the
// account-level limits, and the risk calculator before reaching the order
// gateway. Every stage can drop the signal; a dropped signal is never
// retried.
package engine

import (
	"context"
	"log"
	"log/slog"
	"sync"
	"time"

	"breakout-systemv1/internal/confirm"
	"breakout-systemv1/internal/execution"
	"breakout-systemv1/internal/levels"
	"breakout-systemv1/internal/logger"
	"breakout-systemv1/internal/machine"
	"breakout-systemv1/internal/metrics"
	"breakout-systemv1/internal/model"
	"breakout-systemv1/internal/notification"
	"breakout-systemv1/internal/risk"
)

// Config holds engine-level settings.
type Config struct {
	Machine machine.Config

	// MaxTrackedSignals caps signals with live orders per pair. Further
	// signals from that pair are dropped (stage "inflight") until a slot is
	// released; other pairs are unaffected. Default 1.
	MaxTrackedSignals int

	// ValidatorWindow is how many recent bars each runner keeps for the
	// confirmation validator. Default 20.
	ValidatorWindow int

	// AutoRelease frees the in-flight slot immediately after a successful
	// submission. Used by the paper gateway, which fills instantly.
	AutoRelease bool
}

func (c *Config) defaults() {
	if c.MaxTrackedSignals <= 0 {
		c.MaxTrackedSignals = 1
	}
	if c.ValidatorWindow <= 0 {
		c.ValidatorWindow = 20
	}
}

// EventPublisher is the port through which the engine streams signals,
// transitions, and session levels to downstream consumers. Implementations
// must be fire-and-forget: the bar loop never waits on them.
type EventPublisher interface {
	PublishSignal(ctx context.Context, sig model.Signal)
	PublishTransition(ctx context.Context, ev model.StateTransitionEvent)
	PublishLevels(ctx context.Context, pairKey string, ref levels.ReferenceLevel)
}

// Sinks are the optional side-effect targets of the pipeline. Any of them
// may be nil; the pipeline works the same without them.
type Sinks struct {
	Publisher EventPublisher
	Journal   *execution.Journal
	Notifier  notification.Notifier
	Metrics   *metrics.Metrics
	Health    *metrics.HealthStatus
}

// Engine routes bars to per-pair runners and drives the signal pipeline.
type Engine struct {
	cfg       Config
	validator confirm.Validator
	account   *risk.Account
	calc      *risk.Calculator
	gateway   execution.OrderGateway
	sinks     Sinks

	runners map[string]*Runner

	mu             sync.Mutex
	inflight       map[string]string // signal ID → pair key of its live order
	inflightByPair map[string]int
}

// New creates an Engine. validator, account, calc, and gateway are required.
func New(cfg Config, validator confirm.Validator, account *risk.Account, calc *risk.Calculator, gateway execution.OrderGateway, sinks Sinks) *Engine {
	cfg.defaults()
	return &Engine{
		cfg:       cfg,
		validator: validator,
		account:   account,
		calc:      calc,
		gateway:   gateway,
		sinks:     sinks,
		runners:        make(map[string]*Runner),
		inflight:       make(map[string]string),
		inflightByPair: make(map[string]int),
	}
}

// Register creates (or returns) the runner for a pair. Must be called before
// Run for every pair the engine should evaluate; bars for unknown pairs are
// skipped.
func (e *Engine) Register(exchange, token string, tf int) *Runner {
	r := newRunner(e.cfg.Machine, exchange, token, tf, e.cfg.ValidatorWindow)
	if existing, ok := e.runners[r.key]; ok {
		return existing
	}
	e.runners[r.key] = r
	log.Printf("[engine] registered pair %s", r.key)
	return r
}

// Pairs returns the registered pair keys.
func (e *Engine) Pairs() []string {
	keys := make([]string, 0, len(e.runners))
	for k := range e.runners {
		keys = append(keys, k)
	}
	return keys
}

// Run consumes completed bars until ctx is cancelled or barCh is closed.
// Single goroutine: all runner state is confined to this loop.
func (e *Engine) Run(ctx context.Context, barCh <-chan model.Bar) {
	for {
		select {
		case <-ctx.Done():
			return
		case bar, ok := <-barCh:
			if !ok {
				return
			}
			e.OnBar(ctx, bar)
		}
	}
}

// OnBar evaluates one completed bar. Exposed for replay and tests; live use
// goes through Run.
func (e *Engine) OnBar(ctx context.Context, bar model.Bar) {
	m := e.sinks.Metrics
	if m != nil {
		m.BarsTotal.Inc()
	}
	if e.sinks.Health != nil {
		e.sinks.Health.SetLastBarTime(bar.TS)
	}

	if !bar.Valid() {
		if m != nil {
			m.BarsSkipped.WithLabelValues("invalid").Inc()
		}
		return
	}

	r, ok := e.runners[bar.Key()]
	if !ok {
		if m != nil {
			m.BarsSkipped.WithLabelValues("unknown_pair").Inc()
		}
		return
	}

	start := time.Now()

	ref, boundary := r.ref.Update(bar)
	if boundary {
		e.onSessionBoundary(ctx, r, bar)
		ref = r.ref.Levels()
	}
	if !ref.Set() && m != nil {
		m.BarsSkipped.WithLabelValues("no_levels").Inc()
	}

	sig, events := r.mach.OnBar(bar, ref)
	e.emitTransitions(ctx, r, events)

	r.push(bar)

	if sig != nil {
		e.processSignal(ctx, r, *sig)
		// A bounce signal leaves the machine parked in its bounce state
		// until the pipeline has consumed it.
		if r.mach.State().IsBounce() {
			e.emitTransitions(ctx, r, r.mach.Resolve(bar.TS))
		}
	}

	if m != nil {
		m.EvalDur.Observe(time.Since(start).Seconds())
		m.MachineState.WithLabelValues(r.key).Set(float64(r.mach.State()))
	}
}

func (e *Engine) onSessionBoundary(ctx context.Context, r *Runner, bar model.Bar) {
	log.Printf("[engine] %s session boundary at %s", r.key, bar.TS.Format(time.RFC3339))
	e.emitTransitions(ctx, r, r.mach.Reset(bar.TS, "session boundary"))
	e.account.ResetDaily()

	if e.sinks.Metrics != nil {
		e.sinks.Metrics.SessionBoundaries.Inc()
	}
	if e.sinks.Publisher != nil {
		e.sinks.Publisher.PublishLevels(ctx, r.key, r.ref.Levels())
	}
}

func (e *Engine) emitTransitions(ctx context.Context, r *Runner, events []model.StateTransitionEvent) {
	for _, ev := range events {
		log.Printf("[engine] %s %s -> %s (%s)", r.key, ev.From, ev.To, ev.Reason)
		if e.sinks.Metrics != nil {
			e.sinks.Metrics.TransitionsTotal.WithLabelValues(ev.From, ev.To).Inc()
		}
		if e.sinks.Publisher != nil {
			e.sinks.Publisher.PublishTransition(ctx, ev)
		}
	}
}

// processSignal runs one signal through validate → limits → size → submit.
func (e *Engine) processSignal(ctx context.Context, r *Runner, sig model.Signal) {
	ctx = logger.WithSignalID(ctx, sig.ID)
	slog.Info("signal emitted",
		append(logger.LogWithSignal(ctx),
			slog.String("pair", r.key),
			slog.String("direction", string(sig.Direction)),
			slog.String("state", sig.CreatedInState),
			slog.Float64("entry_hint", sig.EntryPriceHint))...)

	m := e.sinks.Metrics
	if m != nil {
		m.SignalsEmitted.WithLabelValues(string(sig.Direction), sig.CreatedInState).Inc()
	}
	if e.sinks.Publisher != nil {
		e.sinks.Publisher.PublishSignal(ctx, sig)
	}

	if !e.acquireSlot(r.key, sig.ID) {
		e.reject(sig, "inflight", "tracked signal cap reached for pair", 0)
		return
	}

	verdict, err := e.validator.Validate(ctx, sig, r.recent)
	if err != nil {
		e.releaseSlot(sig.ID)
		e.reject(sig, "confirm", "validator error: "+err.Error(), 0)
		return
	}
	if !verdict.Accepted {
		e.releaseSlot(sig.ID)
		e.reject(sig, "confirm", verdict.Reason, verdict.Confidence)
		return
	}

	if ok, reason := e.account.CanTrade(); !ok {
		e.releaseSlot(sig.ID)
		e.reject(sig, "limits", reason, verdict.Confidence)
		return
	}

	req, err := e.calc.Build(sig)
	if err != nil {
		e.releaseSlot(sig.ID)
		e.reject(sig, "risk", err.Error(), verdict.Confidence)
		return
	}

	e.journalSignal(sig, "ACCEPTED", verdict.Confidence)
	e.submit(ctx, sig, req, verdict.Confidence)
}

func (e *Engine) submit(ctx context.Context, sig model.Signal, req model.OrderRequest, confidence float64) {
	m := e.sinks.Metrics
	if m != nil {
		m.OrdersSubmitted.Inc()
	}

	res, err := e.gateway.Submit(ctx, req)
	if e.sinks.Journal != nil {
		if jerr := e.sinks.Journal.RecordOrder(res); jerr != nil {
			log.Printf("[engine] journal order failed: %v", jerr)
		}
	}

	if err != nil {
		e.releaseSlot(sig.ID)
		if m != nil {
			m.OrderFailures.Inc()
		}
		log.Printf("[engine] order for signal %s failed: %v", sig.ID, err)
		e.notify(ctx, notification.OrderFailureAlert(req, err.Error()))
		return
	}

	e.account.PositionOpened()
	log.Printf("[engine] order %s placed: %s %s vol=%.2f sl=%.2f tp=%.2f",
		res.OrderID, req.Direction, req.Token, req.Volume, req.StopLoss, req.TakeProfit)
	e.notify(ctx, notification.SignalAlert(sig, "ACCEPTED", confidence))

	if e.cfg.AutoRelease {
		e.Release(sig.ID, 0)
	}
}

// Release frees the in-flight slot for a signal whose position has closed,
// crediting the realized P&L to the account.
func (e *Engine) Release(signalID string, pnl float64) {
	if e.releaseSlot(signalID) {
		e.account.PositionClosed(pnl)
	}
}

func (e *Engine) acquireSlot(pairKey, signalID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inflightByPair[pairKey] >= e.cfg.MaxTrackedSignals {
		return false
	}
	e.inflight[signalID] = pairKey
	e.inflightByPair[pairKey]++
	return true
}

func (e *Engine) releaseSlot(signalID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	pairKey, ok := e.inflight[signalID]
	if !ok {
		return false
	}
	delete(e.inflight, signalID)
	if e.inflightByPair[pairKey]--; e.inflightByPair[pairKey] <= 0 {
		delete(e.inflightByPair, pairKey)
	}
	return true
}

func (e *Engine) reject(sig model.Signal, stage, reason string, confidence float64) {
	log.Printf("[engine] signal %s dropped at %s: %s", sig.ID, stage, reason)
	if e.sinks.Metrics != nil {
		e.sinks.Metrics.SignalsRejected.WithLabelValues(stage).Inc()
	}
	e.journalSignal(sig, "REJECTED_"+stage+": "+reason, confidence)
}

func (e *Engine) journalSignal(sig model.Signal, verdict string, confidence float64) {
	if e.sinks.Journal == nil {
		return
	}
	if err := e.sinks.Journal.RecordSignal(sig, verdict, confidence); err != nil {
		log.Printf("[engine] journal signal failed: %v", err)
	}
}

func (e *Engine) notify(ctx context.Context, alert notification.Alert) {
	if e.sinks.Notifier == nil {
		return
	}
	if err := e.sinks.Notifier.Send(ctx, alert); err != nil {
		log.Printf("[engine] notify failed: %v", err)
	}
}
