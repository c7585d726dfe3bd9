package execution

import (
	"context"
	"log"

	"breakout-systemv1/internal/model"
	"breakout-systemv1/pkg/brokerconnect"
)

// BrokerGateway submits orders through the live broker API. One re-login is
// attempted on an expired session; beyond that the failure is reported
// upward — the machine's state has already reset and is unaffected.
type BrokerGateway struct {
	client *brokerconnect.Client
}

// NewBrokerGateway wraps a logged-in brokerconnect client.
func NewBrokerGateway(client *brokerconnect.Client) *BrokerGateway {
	return &BrokerGateway{client: client}
}

// Submit places the order with the broker.
func (g *BrokerGateway) Submit(ctx context.Context, req model.OrderRequest) (OrderResult, error) {
	orderID, err := g.client.PlaceOrder(ctx, req)
	if err == brokerconnect.ErrNotLoggedIn {
		log.Printf("[executor] session missing, re-logging in")
		if err = g.client.Login(ctx); err == nil {
			orderID, err = g.client.PlaceOrder(ctx, req)
		}
	}
	if err != nil {
		return OrderResult{
			Status:  StatusError,
			Message: err.Error(),
			Request: req,
		}, err
	}
	return OrderResult{
		OrderID: orderID,
		Status:  StatusPlaced,
		Request: req,
	}, nil
}
