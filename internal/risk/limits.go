package risk

import (
	"log"
	"sync"
)

// Limits defines configurable account-level risk thresholds.
type Limits struct {
	MaxOpenPositions int     `json:"max_open_positions"`
	MaxDailyLoss     float64 `json:"max_daily_loss"`   // account currency
	MaxDrawdownPct   float64 `json:"max_drawdown_pct"` // 0–100
}

// DefaultLimits returns conservative defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxOpenPositions: 3,
		MaxDailyLoss:     5000,
		MaxDrawdownPct:   5.0,
	}
}

// Account tracks equity and validates new orders against the limits. Safe for
// concurrent use: many pair runners may share one Account.
type Account struct {
	mu     sync.RWMutex
	limits Limits

	equity     float64
	peakEquity float64
	dailyPnL   float64
	openCount  int
}

// NewAccount creates an Account with the given limits and starting equity.
func NewAccount(limits Limits, initialEquity float64) *Account {
	return &Account{
		limits:     limits,
		equity:     initialEquity,
		peakEquity: initialEquity,
	}
}

// Equity returns the current account equity.
func (a *Account) Equity() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.equity
}

// CanTrade checks whether a new order would violate any limit.
// Returns true if allowed, otherwise false with a reason.
func (a *Account) CanTrade() (bool, string) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.openCount >= a.limits.MaxOpenPositions {
		return false, "max open positions reached"
	}
	if a.dailyPnL < -a.limits.MaxDailyLoss {
		return false, "max daily loss reached"
	}
	if a.peakEquity > 0 {
		drawdown := (a.peakEquity - a.equity) / a.peakEquity * 100
		if drawdown > a.limits.MaxDrawdownPct {
			return false, "max drawdown exceeded"
		}
	}
	return true, ""
}

// PositionOpened records a submitted order occupying an open slot.
func (a *Account) PositionOpened() {
	a.mu.Lock()
	a.openCount++
	a.mu.Unlock()
}

// PositionClosed records a closed position with its realized P&L.
func (a *Account) PositionClosed(pnl float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.openCount > 0 {
		a.openCount--
	}
	a.dailyPnL += pnl
	a.equity += pnl
	if a.equity > a.peakEquity {
		a.peakEquity = a.equity
	}
	log.Printf("[risk] daily P&L: %.2f, equity: %.2f, peak: %.2f", a.dailyPnL, a.equity, a.peakEquity)
}

// ResetDaily resets the daily P&L counter (call at session open).
func (a *Account) ResetDaily() {
	a.mu.Lock()
	a.dailyPnL = 0
	a.mu.Unlock()
}

// Status returns a snapshot for health reporting.
func (a *Account) Status() map[string]interface{} {
	a.mu.RLock()
	defer a.mu.RUnlock()

	drawdown := 0.0
	if a.peakEquity > 0 {
		drawdown = (a.peakEquity - a.equity) / a.peakEquity * 100
	}
	return map[string]interface{}{
		"equity":       a.equity,
		"peak_equity":  a.peakEquity,
		"daily_pnl":    a.dailyPnL,
		"open_count":   a.openCount,
		"drawdown_pct": drawdown,
		"limits":       a.limits,
	}
}
