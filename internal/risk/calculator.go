// Package risk turns accepted signals into sized orders and enforces
// account-level limits.
package risk

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"breakout-systemv1/internal/model"
)

// Rejection reasons. A rejected signal is dropped, never retried — the
// machine has already advanced, so the same invalid signal cannot be
// re-derived forever.
var (
	ErrStopDistance = errors.New("risk: non-positive stop distance")
	ErrZeroSize     = errors.New("risk: position size rounds to zero")
)

// BrokerConstraints clamp the computed volume to what the broker accepts.
type BrokerConstraints struct {
	MinVolume  float64 // smallest order the broker accepts
	MaxVolume  float64 // largest order the broker accepts
	VolumeStep float64 // volume granularity (lot step)

	// PerUnitRiskValue is the account-currency value of a one-point adverse
	// move per unit of volume (contract point value; 1.0 for cash equities).
	PerUnitRiskValue float64
}

func (b *BrokerConstraints) defaults() {
	if b.VolumeStep <= 0 {
		b.VolumeStep = 1
	}
	if b.MinVolume <= 0 {
		b.MinVolume = b.VolumeStep
	}
	if b.MaxVolume <= 0 {
		b.MaxVolume = math.MaxFloat64
	}
	if b.PerUnitRiskValue <= 0 {
		b.PerUnitRiskValue = 1
	}
}

// Config holds the risk calculator parameters.
type Config struct {
	StopLossBuffer  float64 // distance added beyond the stop reference
	RiskRewardRatio float64 // e.g. 2.0
	RiskPercent     float64 // percent of equity risked per trade, e.g. 1.0
	Broker          BrokerConstraints
}

// EquitySource supplies the current account equity.
type EquitySource interface {
	Equity() float64
}

// Calculator derives stop-loss, take-profit, and position size from a signal.
type Calculator struct {
	cfg    Config
	equity EquitySource
}

// NewCalculator creates a Calculator. equity must not be nil.
func NewCalculator(cfg Config, equity EquitySource) *Calculator {
	cfg.Broker.defaults()
	if cfg.RiskRewardRatio <= 0 {
		cfg.RiskRewardRatio = 2.0
	}
	if cfg.RiskPercent <= 0 {
		cfg.RiskPercent = 1.0
	}
	return &Calculator{cfg: cfg, equity: equity}
}

// Build sizes an order for the signal. The signal is consumed exactly once;
// on error it is dropped and the caller carries on with the next bar.
func (c *Calculator) Build(sig model.Signal) (model.OrderRequest, error) {
	if !sig.StopReference.Set() {
		return model.OrderRequest{}, fmt.Errorf("risk: signal %s has no stop reference", sig.ID)
	}

	entry := sig.EntryPriceHint
	buf := c.cfg.StopLossBuffer

	var stop, dist float64
	switch sig.Direction {
	case model.DirectionBuy:
		stop = sig.StopReference.Price - buf
		dist = entry - stop
	case model.DirectionSell:
		stop = sig.StopReference.Price + buf
		dist = stop - entry
	default:
		return model.OrderRequest{}, fmt.Errorf("risk: unknown direction %q", sig.Direction)
	}

	if dist <= 0 {
		return model.OrderRequest{}, fmt.Errorf("%w: entry=%.4f stop=%.4f", ErrStopDistance, entry, stop)
	}

	var tp float64
	if sig.Direction == model.DirectionBuy {
		tp = entry + c.cfg.RiskRewardRatio*dist
	} else {
		tp = entry - c.cfg.RiskRewardRatio*dist
	}

	riskAmount := c.equity.Equity() * c.cfg.RiskPercent / 100.0
	raw := riskAmount / (dist * c.cfg.Broker.PerUnitRiskValue)

	// Clamp to broker min/max/step.
	vol := math.Floor(raw/c.cfg.Broker.VolumeStep) * c.cfg.Broker.VolumeStep
	if vol > c.cfg.Broker.MaxVolume {
		vol = c.cfg.Broker.MaxVolume
	}
	if vol < c.cfg.Broker.MinVolume {
		return model.OrderRequest{}, fmt.Errorf("%w: raw=%.6f step=%.4f min=%.4f",
			ErrZeroSize, raw, c.cfg.Broker.VolumeStep, c.cfg.Broker.MinVolume)
	}

	return model.OrderRequest{
		ID:         uuid.NewString(),
		SignalID:   sig.ID,
		Token:      sig.Token,
		Exchange:   sig.Exchange,
		Direction:  sig.Direction,
		Volume:     vol,
		Entry:      0, // market order at the next tick
		StopLoss:   stop,
		TakeProfit: tp,
		TS:         time.Now().UTC(),
	}, nil
}
