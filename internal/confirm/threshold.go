package confirm

import (
	"context"
	"fmt"
	"math"

	"breakout-systemv1/internal/model"
)

// ThresholdValidator scores a signal from simple bar features and accepts it
// when the score clears a configurable confidence floor. It is a stand-in
// for a trained model with the same gate semantics.
//
// Features, each normalized to 0–1:
//   - body ratio of the trigger bar in the signal direction
//   - range expansion of the trigger bar vs the recent average range
//   - stop distance relative to the trigger bar range (tighter is better)
type ThresholdValidator struct {
	MinConfidence float64 // accept when score >= this; default 0.55
}

// NewThreshold creates a ThresholdValidator.
func NewThreshold(minConfidence float64) *ThresholdValidator {
	if minConfidence <= 0 {
		minConfidence = 0.55
	}
	return &ThresholdValidator{MinConfidence: minConfidence}
}

func (v *ThresholdValidator) Validate(ctx context.Context, sig model.Signal, recent []model.Bar) (Verdict, error) {
	if len(recent) == 0 {
		// Nothing to score against — pass with neutral confidence rather
		// than veto on missing data.
		return Verdict{Accepted: true, Confidence: 0.5, Reason: "no history to score"}, nil
	}

	trigger := recent[0]
	score := 0.0

	// Body ratio in signal direction.
	if r := trigger.Range(); r > 0 {
		body := trigger.Close - trigger.Open
		if sig.Direction == model.DirectionSell {
			body = -body
		}
		score += 0.4 * clamp01(body/r)
	}

	// Range expansion vs average of the remaining bars.
	var sum float64
	n := 0
	for _, b := range recent[1:] {
		if b.ZeroRange() {
			continue
		}
		sum += b.Range()
		n++
	}
	if n > 0 && sum > 0 {
		avg := sum / float64(n)
		score += 0.35 * clamp01(trigger.Range()/(2*avg))
	} else {
		score += 0.35 * 0.5
	}

	// Stop distance: within ~2 trigger ranges scores well, far stops decay.
	if sig.StopReference.Set() && trigger.Range() > 0 {
		dist := math.Abs(sig.EntryPriceHint - sig.StopReference.Price)
		score += 0.25 * clamp01(2-dist/trigger.Range())
	}

	verdict := Verdict{
		Confidence: clamp01(score),
		Accepted:   score >= v.MinConfidence,
	}
	if verdict.Accepted {
		verdict.Reason = fmt.Sprintf("confidence %.2f >= %.2f", verdict.Confidence, v.MinConfidence)
	} else {
		verdict.Reason = fmt.Sprintf("confidence %.2f below %.2f", verdict.Confidence, v.MinConfidence)
	}
	return verdict, nil
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
