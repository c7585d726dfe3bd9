// Package confirm provides the confirmation gate that accepts or vetoes a
// candidate signal before sizing. The engine treats it as a collaborator: a
// rejection drops the signal and the machine's fallback state handles the
// rest — there is no retry loop.
package confirm

import (
	"context"

	"breakout-systemv1/internal/model"
)

// Verdict is the outcome of validating one signal.
type Verdict struct {
	Accepted   bool    `json:"accepted"`
	Confidence float64 `json:"confidence"` // 0–1
	Reason     string  `json:"reason"`
}

// Validator is the pass/fail gate applied to every emitted signal.
// Implementations shared across pairs must be concurrency-safe.
type Validator interface {
	// Validate scores sig given the most recent bars (newest first).
	// An error means the gate itself failed; the signal is then dropped.
	Validate(ctx context.Context, sig model.Signal, recent []model.Bar) (Verdict, error)
}

// AcceptAll passes every signal with a neutral confidence. Used when no
// trained gate is configured, mirroring a disabled ML scorer.
type AcceptAll struct{}

func (AcceptAll) Validate(ctx context.Context, sig model.Signal, recent []model.Bar) (Verdict, error) {
	return Verdict{Accepted: true, Confidence: 0.5, Reason: "no gate configured"}, nil
}
