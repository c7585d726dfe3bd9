package sqlite

import (
	"testing"
	"time"

	"breakout-systemv1/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{DBPath: t.TempDir() + "/bars.db"})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func storeBar(step int, close float64) model.Bar {
	return model.Bar{
		Token: "2885", Exchange: "NSE", TF: 300,
		TS:   time.Date(2026, 8, 24, 4, 0, 0, 0, time.UTC).Add(time.Duration(step) * 5 * time.Minute),
		Open: close - 1, High: close + 1, Low: close - 2, Close: close, Volume: 100,
	}
}

func TestStore_WriteReadRoundTrip(t *testing.T) {
	s := openTestStore(t)

	in := []model.Bar{storeBar(0, 100), storeBar(1, 101), storeBar(2, 102)}
	if err := s.WriteBars(in); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	out, err := s.ReadBars("NSE", "2885", 300, 0)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(out))
	}
	if out[0].Close != 100 || out[2].Close != 102 {
		t.Fatalf("bars out of order: %+v", out)
	}
	if !out[0].TS.Equal(in[0].TS) {
		t.Fatalf("timestamp mismatch: %v vs %v", out[0].TS, in[0].TS)
	}
}

func TestStore_DuplicateBarReplaces(t *testing.T) {
	s := openTestStore(t)

	b := storeBar(0, 100)
	if err := s.WriteBars([]model.Bar{b}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	b.Close = 105
	b.High = 106
	if err := s.WriteBars([]model.Bar{b}); err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}

	out, err := s.ReadBars("NSE", "2885", 300, 0)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(out) != 1 || out[0].Close != 105 {
		t.Fatalf("expected single replaced bar at 105, got %+v", out)
	}
}

func TestStore_AfterTSFilter(t *testing.T) {
	s := openTestStore(t)

	in := []model.Bar{storeBar(0, 100), storeBar(1, 101), storeBar(2, 102)}
	if err := s.WriteBars(in); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	out, err := s.ReadBars("NSE", "2885", 300, in[0].TS.Unix())
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(out) != 2 || out[0].Close != 101 {
		t.Fatalf("afterTS filter wrong: %+v", out)
	}
}

func TestStore_ReadAllBarsFiltersTF(t *testing.T) {
	s := openTestStore(t)

	b60 := storeBar(0, 100)
	b60.TF = 60
	if err := s.WriteBars([]model.Bar{b60, storeBar(0, 200)}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	out, err := s.ReadAllBars(300, 0)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(out) != 1 || out[0].Close != 200 {
		t.Fatalf("expected only the 300s bar, got %+v", out)
	}
}
