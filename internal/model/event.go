package model

import (
	"encoding/json"
	"time"
)

// StateTransitionEvent records a single state machine transition for
// observability and testing. From/To are state names owned by the machine.
type StateTransitionEvent struct {
	Token    string    `json:"token"`
	Exchange string    `json:"exchange"`
	TF       int       `json:"tf"`
	From     string    `json:"from"`
	To       string    `json:"to"`
	Reason   string    `json:"reason"`
	TS       time.Time `json:"ts"` // timestamp of the bar that triggered it
}

// StreamKey returns the Redis stream key: "transition:{exchange}:{token}:{TF}s".
func (e *StateTransitionEvent) StreamKey() string {
	return "transition:" + e.Exchange + ":" + e.Token + ":" + itoa(e.TF) + "s"
}

// JSON returns the JSON-encoded event.
func (e *StateTransitionEvent) JSON() []byte {
	out, _ := json.Marshal(e)
	return out
}
