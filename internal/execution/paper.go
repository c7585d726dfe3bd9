package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"breakout-systemv1/internal/model"
)

// Fill represents a simulated order fill.
type Fill struct {
	OrderID   string             `json:"order_id"`
	Request   model.OrderRequest `json:"request"`
	FillPrice float64            `json:"fill_price"`
	FilledAt  time.Time          `json:"filled_at"`
	Slippage  float64            `json:"slippage"` // simulated adverse slippage
}

// PaperGateway simulates order execution without real broker calls.
// Useful for backtesting and paper trading.
type PaperGateway struct {
	mu       sync.RWMutex
	fills    []Fill
	orderSeq int64

	// Simulation parameters
	slippageBps float64 // basis points of adverse slippage (e.g., 5 = 0.05%)

	// MarkPrice supplies the current price for fills; falls back to the
	// order's stop-derived entry hint when nil.
	MarkPrice func(exchange, token string) (float64, bool)
}

// NewPaperGateway creates a paper trading gateway.
// slippageBps controls simulated slippage in basis points.
func NewPaperGateway(slippageBps float64) *PaperGateway {
	return &PaperGateway{
		fills:       make([]Fill, 0, 1000),
		slippageBps: slippageBps,
	}
}

// Submit fills the order immediately at the mark price plus slippage.
func (p *PaperGateway) Submit(ctx context.Context, req model.OrderRequest) (OrderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.orderSeq++
	orderID := fmt.Sprintf("PAPER-%d", p.orderSeq)

	price := req.Entry
	if p.MarkPrice != nil {
		if mark, ok := p.MarkPrice(req.Exchange, req.Token); ok {
			price = mark
		}
	}
	if price <= 0 {
		// Market order with no mark available: fill between stop and target.
		price = (req.StopLoss + req.TakeProfit) / 2
	}

	slip := price * p.slippageBps / 10000
	if req.Direction == model.DirectionBuy {
		price += slip
	} else {
		price -= slip
	}

	p.fills = append(p.fills, Fill{
		OrderID:   orderID,
		Request:   req,
		FillPrice: price,
		FilledAt:  time.Now().UTC(),
		Slippage:  slip,
	})

	return OrderResult{
		OrderID: orderID,
		Status:  StatusPlaced,
		Message: fmt.Sprintf("paper fill at %.4f", price),
		Request: req,
	}, nil
}

// Fills returns a snapshot of all fills.
func (p *PaperGateway) Fills() []Fill {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cp := make([]Fill, len(p.fills))
	copy(cp, p.fills)
	return cp
}
