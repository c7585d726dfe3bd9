package execution

import (
	"context"
	"testing"

	"breakout-systemv1/internal/model"
)

func req(dir model.Direction) model.OrderRequest {
	return model.OrderRequest{
		ID: "ord-1", SignalID: "sig-1", Token: "2885", Exchange: "NSE",
		Direction: dir, Volume: 100, StopLoss: 98.9, TakeProfit: 111.2,
	}
}

func TestPaperGateway_FillsAtMarkPrice(t *testing.T) {
	p := NewPaperGateway(0)
	p.MarkPrice = func(exchange, token string) (float64, bool) { return 103, true }

	res, err := p.Submit(context.Background(), req(model.DirectionBuy))
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if res.Status != StatusPlaced {
		t.Fatalf("expected placed, got %s", res.Status)
	}
	if res.OrderID != "PAPER-1" {
		t.Fatalf("unexpected order id %s", res.OrderID)
	}

	fills := p.Fills()
	if len(fills) != 1 || fills[0].FillPrice != 103 {
		t.Fatalf("expected fill at 103, got %+v", fills)
	}
}

func TestPaperGateway_SlippageIsAdverse(t *testing.T) {
	p := NewPaperGateway(10) // 0.1%
	p.MarkPrice = func(exchange, token string) (float64, bool) { return 100, true }

	p.Submit(context.Background(), req(model.DirectionBuy))
	p.Submit(context.Background(), req(model.DirectionSell))

	fills := p.Fills()
	if fills[0].FillPrice <= 100 {
		t.Fatalf("buy slippage must raise the fill, got %.4f", fills[0].FillPrice)
	}
	if fills[1].FillPrice >= 100 {
		t.Fatalf("sell slippage must lower the fill, got %.4f", fills[1].FillPrice)
	}
}

func TestPaperGateway_FallbackFillBetweenStopAndTarget(t *testing.T) {
	p := NewPaperGateway(0)

	res, err := p.Submit(context.Background(), req(model.DirectionBuy))
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	want := (98.9 + 111.2) / 2
	if got := p.Fills()[0].FillPrice; got != want {
		t.Fatalf("expected fallback fill %.4f, got %.4f (%s)", want, got, res.Message)
	}
}

func TestJournal_RecordsSignalAndOrder(t *testing.T) {
	j, err := NewJournal(t.TempDir() + "/journal.db")
	if err != nil {
		t.Fatalf("journal open failed: %v", err)
	}
	defer j.Close()

	sig := model.Signal{
		ID: "sig-1", Token: "2885", Exchange: "NSE", TF: 300,
		Direction: model.DirectionBuy, EntryPriceHint: 103,
		StopReference:  model.FromBullishCycle(99.4),
		CreatedInState: "AWAITING_BULLISH_CONFIRMATION",
	}
	if err := j.RecordSignal(sig, "ACCEPTED", 0.72); err != nil {
		t.Fatalf("record signal failed: %v", err)
	}

	res := OrderResult{OrderID: "PAPER-1", Status: StatusPlaced, Request: req(model.DirectionBuy)}
	if err := j.RecordOrder(res); err != nil {
		t.Fatalf("record order failed: %v", err)
	}
}
