package confirm

import (
	"context"
	"testing"
	"time"

	"breakout-systemv1/internal/model"
)

func tbar(o, h, l, c float64) model.Bar {
	return model.Bar{
		Token: "2885", Exchange: "NSE", TF: 300, TS: time.Now(),
		Open: o, High: h, Low: l, Close: c, Volume: 100,
	}
}

func buySig(entry, stop float64) model.Signal {
	return model.Signal{
		ID: "sig-1", Direction: model.DirectionBuy,
		EntryPriceHint: entry,
		StopReference:  model.FromBullishCycle(stop),
	}
}

func TestThreshold_AcceptsStrongTrigger(t *testing.T) {
	v := NewThreshold(0.55)

	// Full-bodied bullish trigger, expanded range, tight stop.
	recent := []model.Bar{
		tbar(100, 104, 99.9, 104), // trigger: body ≈ range, 4pt range
		tbar(99, 100.5, 98.5, 100),
		tbar(98.5, 100, 98, 99),
		tbar(98, 99.5, 97.5, 98.5),
	}

	verdict, err := v.Validate(context.Background(), buySig(104, 101), recent)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !verdict.Accepted {
		t.Fatalf("expected accept, got %+v", verdict)
	}
	if verdict.Confidence < 0.55 || verdict.Confidence > 1 {
		t.Fatalf("confidence out of range: %.2f", verdict.Confidence)
	}
}

func TestThreshold_RejectsWeakTrigger(t *testing.T) {
	v := NewThreshold(0.55)

	// Doji trigger against the signal direction with a distant stop.
	recent := []model.Bar{
		tbar(100, 101, 99, 99.9), // body against direction, small range
		tbar(99, 103, 95, 100),
		tbar(98, 104, 94, 99),
	}

	verdict, err := v.Validate(context.Background(), buySig(99.9, 80), recent)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if verdict.Accepted {
		t.Fatalf("expected reject, got %+v", verdict)
	}
	if verdict.Reason == "" {
		t.Fatal("rejection must carry a reason")
	}
}

func TestThreshold_NeutralPassOnEmptyHistory(t *testing.T) {
	v := NewThreshold(0.55)

	verdict, err := v.Validate(context.Background(), buySig(100, 98), nil)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !verdict.Accepted || verdict.Confidence != 0.5 {
		t.Fatalf("expected neutral pass, got %+v", verdict)
	}
}

func TestThreshold_SellDirectionBodyScoring(t *testing.T) {
	v := NewThreshold(0.55)

	// Strong bearish trigger bar scores for a SELL signal.
	recent := []model.Bar{
		tbar(104, 104.1, 100, 100.1),
		tbar(105, 106, 104, 105.5),
		tbar(104.5, 105.5, 104, 105),
	}
	sig := model.Signal{
		ID: "sig-2", Direction: model.DirectionSell,
		EntryPriceHint: 100.1,
		StopReference:  model.FromBearishCycle(104.5),
	}

	verdict, err := v.Validate(context.Background(), sig, recent)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !verdict.Accepted {
		t.Fatalf("expected accept for strong bearish trigger, got %+v", verdict)
	}
}

func TestAcceptAll(t *testing.T) {
	v := AcceptAll{}
	verdict, err := v.Validate(context.Background(), buySig(100, 98), nil)
	if err != nil || !verdict.Accepted {
		t.Fatalf("AcceptAll must accept, got %+v err=%v", verdict, err)
	}
}
