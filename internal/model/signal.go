package model

import (
	"encoding/json"
	"time"
)

// Direction is the trade direction of a signal or order.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// Opposite returns the other trade direction.
func (d Direction) Opposite() Direction {
	if d == DirectionBuy {
		return DirectionSell
	}
	return DirectionBuy
}

// StopOrigin tags which kind of cycle produced a stop reference, so a price
// that is sometimes a swing low and sometimes a swing high is never ambiguous.
type StopOrigin string

const (
	StopFromBullishCycle StopOrigin = "BULLISH_CYCLE"
	StopFromBearishCycle StopOrigin = "BEARISH_CYCLE"
	StopFromBounceHigh   StopOrigin = "BOUNCE_HIGH"
	StopFromBounceLow    StopOrigin = "BOUNCE_LOW"
)

// StopReference is a tagged stop anchor price.
type StopReference struct {
	Price  float64    `json:"price"`
	Origin StopOrigin `json:"origin"`
}

// FromBullishCycle tags a swing low captured during a bullish retest cycle.
func FromBullishCycle(price float64) StopReference {
	return StopReference{Price: price, Origin: StopFromBullishCycle}
}

// FromBearishCycle tags a swing high captured during a bearish retest cycle.
func FromBearishCycle(price float64) StopReference {
	return StopReference{Price: price, Origin: StopFromBearishCycle}
}

// FromBounceHigh tags the rejection high of a bounce off the session high.
func FromBounceHigh(price float64) StopReference {
	return StopReference{Price: price, Origin: StopFromBounceHigh}
}

// FromBounceLow tags the rejection low of a bounce off the session low.
func FromBounceLow(price float64) StopReference {
	return StopReference{Price: price, Origin: StopFromBounceLow}
}

// Set reports whether the reference carries a usable price.
func (r StopReference) Set() bool {
	return r.Price > 0 && r.Origin != ""
}

// Signal is a directional trade candidate emitted by the state machine.
// Immutable once emitted; consumed exactly once by the risk calculator.
type Signal struct {
	ID             string        `json:"id"` // uuid, assigned at emission
	Token          string        `json:"token"`
	Exchange       string        `json:"exchange"`
	TF             int           `json:"tf"`
	Direction      Direction     `json:"direction"`
	EntryPriceHint float64       `json:"entry_price_hint"`
	StopReference  StopReference `json:"stop_reference"`
	CreatedInState string        `json:"created_in_state"`
	Reason         string        `json:"reason"`
	TS             time.Time     `json:"ts"` // timestamp of the bar that produced it
}

// Key returns "exchange:token:{TF}s".
func (s *Signal) Key() string {
	return s.Exchange + ":" + s.Token + ":" + itoa(s.TF) + "s"
}

// StreamKey returns the Redis stream key: "signal:{exchange}:{token}:{TF}s".
func (s *Signal) StreamKey() string {
	return "signal:" + s.Exchange + ":" + s.Token + ":" + itoa(s.TF) + "s"
}

// JSON returns the JSON-encoded signal.
func (s *Signal) JSON() []byte {
	out, _ := json.Marshal(s)
	return out
}

// OrderRequest is a fully sized order derived from an accepted signal,
// handed to the order gateway.
type OrderRequest struct {
	ID         string    `json:"id"`
	SignalID   string    `json:"signal_id"`
	Token      string    `json:"token"`
	Exchange   string    `json:"exchange"`
	Direction  Direction `json:"direction"`
	Volume     float64   `json:"volume"`
	Entry      float64   `json:"entry"` // 0 = market
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	TS         time.Time `json:"ts"`
}

// JSON returns the JSON-encoded order request.
func (o *OrderRequest) JSON() []byte {
	out, _ := json.Marshal(o)
	return out
}
