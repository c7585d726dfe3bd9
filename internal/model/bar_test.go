package model

import (
	"testing"
	"time"
)

func validBar() Bar {
	return Bar{
		Token: "2885", Exchange: "NSE", TF: 300,
		TS:   time.Date(2026, 8, 24, 4, 0, 0, 0, time.UTC),
		Open: 100, High: 102, Low: 99, Close: 101, Volume: 500,
	}
}

func TestBar_Key(t *testing.T) {
	b := validBar()
	if got := b.Key(); got != "NSE:2885:300s" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestBar_Valid(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Bar)
		want   bool
	}{
		{"well-formed", func(b *Bar) {}, true},
		{"zero open", func(b *Bar) { b.Open = 0 }, false},
		{"negative close", func(b *Bar) { b.Close = -1 }, false},
		{"high below low", func(b *Bar) { b.High, b.Low = 99, 102 }, false},
		{"open above high", func(b *Bar) { b.Open = 103 }, false},
		{"close below low", func(b *Bar) { b.Close = 98 }, false},
		{"zero timestamp", func(b *Bar) { b.TS = time.Time{} }, false},
	}
	for _, tc := range cases {
		b := validBar()
		tc.mutate(&b)
		if got := b.Valid(); got != tc.want {
			t.Errorf("%s: Valid() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestBar_ZeroRange(t *testing.T) {
	b := validBar()
	if b.ZeroRange() {
		t.Fatal("ranged bar must not report zero range")
	}
	b.High, b.Low, b.Open, b.Close = 100, 100, 100, 100
	if !b.ZeroRange() {
		t.Fatal("flat bar must report zero range")
	}
	// A flat bar is still valid — it is skipped by predicates, not rejected.
	if !b.Valid() {
		t.Fatal("flat bar must still be valid")
	}
}

func TestSignal_StreamKey(t *testing.T) {
	s := Signal{Token: "2885", Exchange: "NSE", TF: 300}
	if got := s.StreamKey(); got != "signal:NSE:2885:300s" {
		t.Fatalf("unexpected stream key %q", got)
	}
}

func TestStateTransitionEvent_StreamKey(t *testing.T) {
	ev := StateTransitionEvent{Token: "2885", Exchange: "NSE", TF: 60}
	if got := ev.StreamKey(); got != "transition:NSE:2885:60s" {
		t.Fatalf("unexpected stream key %q", got)
	}
}

func TestStopReference_Set(t *testing.T) {
	if (StopReference{}).Set() {
		t.Fatal("zero reference must be unset")
	}
	if !FromBounceHigh(100.2).Set() {
		t.Fatal("tagged reference must be set")
	}
	if FromBullishCycle(99.4).Origin != StopFromBullishCycle {
		t.Fatal("constructor must tag the origin")
	}
}

func TestDirection_Opposite(t *testing.T) {
	if DirectionBuy.Opposite() != DirectionSell || DirectionSell.Opposite() != DirectionBuy {
		t.Fatal("opposite direction mismatch")
	}
}
