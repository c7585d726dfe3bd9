package levels

import (
	"testing"
	"time"

	"breakout-systemv1/internal/model"
)

// sessionBar builds a bar on the given IST day at 9:15 + step*5m.
func sessionBar(day, step int, o, h, l, c float64) model.Bar {
	ist := time.FixedZone("IST", 5*3600+30*60)
	ts := time.Date(2026, 8, 24+day, 9, 15, 0, 0, ist).Add(time.Duration(step) * 5 * time.Minute)
	return model.Bar{
		Token: "2885", Exchange: "NSE", TF: 300, TS: ts,
		Open: o, High: h, Low: l, Close: c, Volume: 100,
	}
}

func TestReferenceTracker_PromotesOnBoundary(t *testing.T) {
	tr := NewReferenceTracker()

	// Day 0: accumulate. Levels stay unset until a full session has passed.
	tr.Update(sessionBar(0, 0, 100, 105, 99, 104))
	tr.Update(sessionBar(0, 1, 104, 108, 103, 107))
	if tr.Levels().Set() {
		t.Fatal("levels must be unset before the first boundary")
	}

	// Day 1: boundary promotes day 0's high/low.
	ref, boundary := tr.Update(sessionBar(1, 0, 107, 109, 106, 108))
	if !boundary {
		t.Fatal("expected session boundary")
	}
	if ref.SessionHigh != 108 || ref.SessionLow != 99 {
		t.Fatalf("expected high=108 low=99, got %+v", ref)
	}

	// Within day 1: levels are immutable.
	ref, boundary = tr.Update(sessionBar(1, 1, 108, 120, 107, 119))
	if boundary || ref.SessionHigh != 108 || ref.SessionLow != 99 {
		t.Fatalf("levels must not change within a session, got %+v", ref)
	}

	// Day 2: boundary promotes day 1's range including the 120 spike.
	ref, _ = tr.Update(sessionBar(2, 0, 119, 121, 118, 120))
	if ref.SessionHigh != 120 || ref.SessionLow != 106 {
		t.Fatalf("expected high=120 low=106, got %+v", ref)
	}
}

func TestReferenceTracker_RetainsLevelsWithoutHistory(t *testing.T) {
	tr := NewReferenceTracker()
	tr.Update(sessionBar(0, 0, 100, 105, 99, 104))
	ref, _ := tr.Update(sessionBar(1, 0, 104, 106, 103, 105))
	if ref.SessionHigh != 105 {
		t.Fatalf("expected promoted high=105, got %+v", ref)
	}

	// Jump straight to day 3: the boundary promotes day 1's single bar, not
	// zeros. (Day 2 produced no bars at all.)
	ref, boundary := tr.Update(sessionBar(3, 0, 105, 107, 104, 106))
	if !boundary || !ref.Set() {
		t.Fatalf("levels must survive an empty session, got %+v", ref)
	}
	if ref.SessionHigh != 106 || ref.SessionLow != 103 {
		t.Fatalf("expected day-1 levels 106/103, got %+v", ref)
	}
}

func TestReferenceTracker_Seed(t *testing.T) {
	tr := NewReferenceTracker()
	tr.Seed([]model.Bar{
		sessionBar(0, 0, 100, 105, 99, 104),
		sessionBar(0, 1, 104, 110, 103, 109),
		sessionBar(1, 0, 109, 112, 108, 111),
		sessionBar(1, 1, 111, 115, 110, 114),
	})

	ref := tr.Levels()
	if !ref.Set() {
		t.Fatal("seed must leave levels set")
	}
	// The newest seeded session (day 1) becomes the reference.
	if ref.SessionHigh != 115 || ref.SessionLow != 108 {
		t.Fatalf("expected high=115 low=108, got %+v", ref)
	}
}

func TestReferenceTracker_SeedSkipsInvalidBars(t *testing.T) {
	tr := NewReferenceTracker()
	tr.Seed([]model.Bar{
		{Token: "2885", Exchange: "NSE", TF: 300}, // zero bar
		sessionBar(0, 0, 100, 105, 99, 104),
	})
	if ref := tr.Levels(); ref.SessionHigh != 105 || ref.SessionLow != 99 {
		t.Fatalf("invalid bars must not pollute the seed, got %+v", ref)
	}
}

func TestExtremeTracker_BullishFloorOnly(t *testing.T) {
	ext := NewExtremeTracker()

	// Not tracking: updates are no-ops.
	ext.Update(sessionBar(0, 0, 100, 105, 99, 104))
	if _, ok := ext.BullishFloor(); ok {
		t.Fatal("floor must be unset before tracking starts")
	}

	ext.Track(model.DirectionBuy)
	ext.Update(sessionBar(0, 1, 104, 106, 101, 105))
	ext.Update(sessionBar(0, 2, 105, 107, 100.5, 106))
	ext.Update(sessionBar(0, 3, 106, 108, 102, 107)) // higher low: floor unchanged

	floor, ok := ext.BullishFloor()
	if !ok || floor != 100.5 {
		t.Fatalf("expected floor=100.5, got %.2f ok=%v", floor, ok)
	}
	if _, ok := ext.BearishCeiling(); ok {
		t.Fatal("ceiling must stay unset during a bullish cycle")
	}
}

func TestExtremeTracker_SwitchFreezesOpposite(t *testing.T) {
	ext := NewExtremeTracker()
	ext.Track(model.DirectionBuy)
	ext.Update(sessionBar(0, 0, 100, 105, 99, 104))

	// Switching to a bearish cycle restarts the ceiling, freezes the floor.
	ext.Track(model.DirectionSell)
	ext.Update(sessionBar(0, 1, 104, 110, 103, 109))

	if floor, ok := ext.BullishFloor(); !ok || floor != 99 {
		t.Fatalf("frozen floor should remain 99, got %.2f ok=%v", floor, ok)
	}
	if ceil, ok := ext.BearishCeiling(); !ok || ceil != 110 {
		t.Fatalf("expected ceiling=110, got %.2f ok=%v", ceil, ok)
	}
}

func TestExtremeTracker_ResetClearsBoth(t *testing.T) {
	ext := NewExtremeTracker()
	ext.Track(model.DirectionBuy)
	ext.Update(sessionBar(0, 0, 100, 105, 99, 104))

	ext.Reset()
	if _, ok := ext.BullishFloor(); ok {
		t.Fatal("reset must clear the floor")
	}
	if ext.Active() != "" {
		t.Fatal("reset must stop tracking")
	}
}
