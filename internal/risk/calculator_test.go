package risk

import (
	"errors"
	"testing"
	"time"

	"breakout-systemv1/internal/model"
)

type fixedEquity float64

func (f fixedEquity) Equity() float64 { return float64(f) }

func buySignal(entry, stop float64) model.Signal {
	return model.Signal{
		ID: "sig-1", Token: "2885", Exchange: "NSE", TF: 300,
		Direction:      model.DirectionBuy,
		EntryPriceHint: entry,
		StopReference:  model.FromBullishCycle(stop),
		CreatedInState: "AWAITING_BULLISH_CONFIRMATION",
		TS:             time.Now(),
	}
}

func TestCalculator_BuildBuy(t *testing.T) {
	calc := NewCalculator(Config{
		StopLossBuffer:  0.5,
		RiskRewardRatio: 2.0,
		RiskPercent:     1.0,
	}, fixedEquity(100000))

	req, err := calc.Build(buySignal(103, 99.5))
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	// stop = 99.5 - 0.5 = 99, dist = 4, tp = 103 + 2*4 = 111
	if req.StopLoss != 99 {
		t.Fatalf("expected stop=99, got %.2f", req.StopLoss)
	}
	if req.TakeProfit != 111 {
		t.Fatalf("expected tp=111, got %.2f", req.TakeProfit)
	}
	// risk = 1% of 100000 = 1000; volume = floor(1000/4) = 250
	if req.Volume != 250 {
		t.Fatalf("expected volume=250, got %.2f", req.Volume)
	}
	if req.Direction != model.DirectionBuy || req.SignalID != "sig-1" {
		t.Fatalf("unexpected request %+v", req)
	}
	if req.Entry != 0 {
		t.Fatal("entry must be 0 (market order)")
	}
}

func TestCalculator_BuildSell(t *testing.T) {
	calc := NewCalculator(Config{
		StopLossBuffer:  0.5,
		RiskRewardRatio: 1.5,
		RiskPercent:     2.0,
	}, fixedEquity(50000))

	sig := buySignal(88.3, 90.6)
	sig.Direction = model.DirectionSell
	sig.StopReference = model.FromBearishCycle(90.6)

	req, err := calc.Build(sig)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	// stop = 90.6 + 0.5 = 91.1, dist = 2.8, tp = 88.3 - 1.5*2.8 = 84.1
	if req.StopLoss != 91.1 {
		t.Fatalf("expected stop=91.1, got %.4f", req.StopLoss)
	}
	if got := req.TakeProfit; got < 84.09 || got > 84.11 {
		t.Fatalf("expected tp~84.1, got %.4f", got)
	}
	// risk = 2% of 50000 = 1000; volume = floor(1000/2.8) = 357
	if req.Volume != 357 {
		t.Fatalf("expected volume=357, got %.2f", req.Volume)
	}
}

func TestCalculator_RejectsNonPositiveStopDistance(t *testing.T) {
	calc := NewCalculator(Config{StopLossBuffer: 0}, fixedEquity(100000))

	// Stop reference above the buy entry: nonsense geometry.
	_, err := calc.Build(buySignal(99, 103))
	if !errors.Is(err, ErrStopDistance) {
		t.Fatalf("expected ErrStopDistance, got %v", err)
	}
}

func TestCalculator_RejectsVolumeBelowMinimum(t *testing.T) {
	calc := NewCalculator(Config{
		RiskPercent: 1.0,
		Broker:      BrokerConstraints{MinVolume: 50, VolumeStep: 50},
	}, fixedEquity(1000)) // risk 10 per trade

	// dist = 4 → raw volume 2.5 → floors to 0 steps, below min.
	_, err := calc.Build(buySignal(103, 99))
	if !errors.Is(err, ErrZeroSize) {
		t.Fatalf("expected ErrZeroSize, got %v", err)
	}
}

func TestCalculator_ClampsToMaxVolume(t *testing.T) {
	calc := NewCalculator(Config{
		RiskPercent: 10,
		Broker:      BrokerConstraints{MaxVolume: 100},
	}, fixedEquity(1000000))

	req, err := calc.Build(buySignal(103, 99))
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if req.Volume != 100 {
		t.Fatalf("expected clamp to 100, got %.2f", req.Volume)
	}
}

func TestCalculator_VolumeStepRounding(t *testing.T) {
	calc := NewCalculator(Config{
		RiskPercent: 1.0,
		Broker:      BrokerConstraints{VolumeStep: 75, MinVolume: 75},
	}, fixedEquity(100000))

	// raw = 1000/4 = 250 → floor to 75-step = 225
	req, err := calc.Build(buySignal(103, 99))
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if req.Volume != 225 {
		t.Fatalf("expected volume=225, got %.2f", req.Volume)
	}
}

func TestCalculator_MissingStopReference(t *testing.T) {
	calc := NewCalculator(Config{}, fixedEquity(100000))
	sig := buySignal(103, 99)
	sig.StopReference = model.StopReference{}
	if _, err := calc.Build(sig); err == nil {
		t.Fatal("expected error for missing stop reference")
	}
}

func TestAccount_Limits(t *testing.T) {
	acct := NewAccount(Limits{MaxOpenPositions: 2, MaxDailyLoss: 500, MaxDrawdownPct: 50}, 10000)

	if ok, _ := acct.CanTrade(); !ok {
		t.Fatal("fresh account must allow trading")
	}

	acct.PositionOpened()
	acct.PositionOpened()
	if ok, reason := acct.CanTrade(); ok {
		t.Fatalf("expected open-position limit, got ok (reason=%q)", reason)
	}

	acct.PositionClosed(-600)
	if ok, reason := acct.CanTrade(); ok || reason != "max daily loss reached" {
		t.Fatalf("expected daily-loss limit, got ok=%v reason=%q", ok, reason)
	}

	acct.ResetDaily()
	if ok, _ := acct.CanTrade(); !ok {
		t.Fatal("daily reset must clear the loss limit")
	}
	if acct.Equity() != 9400 {
		t.Fatalf("expected equity=9400, got %.2f", acct.Equity())
	}
}
