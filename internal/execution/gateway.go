// Package execution hands sized orders to a broker. The engine's own state
// has already reset by the time execution is attempted — the machine's
// responsibility ends at signal emission, so a gateway failure is reported
// upward and never touches machine state.
package execution

import (
	"context"

	"breakout-systemv1/internal/model"
)

// Order statuses.
const (
	StatusPlaced   = "PLACED"
	StatusRejected = "REJECTED"
	StatusError    = "ERROR"
)

// OrderResult represents the outcome of an order submission.
type OrderResult struct {
	OrderID string             `json:"order_id"`
	Status  string             `json:"status"` // PLACED, REJECTED, ERROR
	Message string             `json:"message"`
	Request model.OrderRequest `json:"request"`
}

// OrderGateway executes accepted order requests. A gateway shared across
// pairs must be concurrency-safe.
type OrderGateway interface {
	// Submit places the order. The returned error covers transport-level
	// failure; broker-level rejection comes back in OrderResult.Status.
	Submit(ctx context.Context, req model.OrderRequest) (OrderResult, error)
}
