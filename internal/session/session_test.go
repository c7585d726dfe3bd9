package session

import (
	"testing"
	"time"
)

func ist(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, IST)
}

func TestIsMarketOpen(t *testing.T) {
	cases := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"weekday mid-session", ist(2026, 8, 24, 11, 0), true}, // Monday
		{"exact open", ist(2026, 8, 24, 9, 15), true},
		{"one minute before open", ist(2026, 8, 24, 9, 14), false},
		{"exact close", ist(2026, 8, 24, 15, 30), false},
		{"one minute before close", ist(2026, 8, 24, 15, 29), true},
		{"saturday", ist(2026, 8, 29, 11, 0), false},
		{"sunday", ist(2026, 8, 30, 11, 0), false},
		{"independence day holiday", ist(2026, 8, 14, 11, 0), true}, // Friday, not a holiday
		{"christmas holiday", ist(2026, 12, 25, 11, 0), false},
	}
	for _, tc := range cases {
		if got := IsMarketOpen(tc.t); got != tc.want {
			t.Errorf("%s: IsMarketOpen(%v) = %v, want %v", tc.name, tc.t, got, tc.want)
		}
	}
}

func TestSessionID_MapsToISTDay(t *testing.T) {
	// 20:00 UTC Monday is 01:30 IST Tuesday — the session is Tuesday's.
	utc := time.Date(2026, 8, 24, 20, 0, 0, 0, time.UTC)
	id := ID(utc)
	if id.Day() != 25 || id.Hour() != 0 {
		t.Fatalf("expected IST midnight of the 25th, got %v", id)
	}
}

func TestIsBoundary(t *testing.T) {
	mon := ist(2026, 8, 24, 10, 0)
	monLater := ist(2026, 8, 24, 14, 0)
	tue := ist(2026, 8, 25, 9, 20)

	if IsBoundary(mon, monLater) {
		t.Fatal("same day must not be a boundary")
	}
	if !IsBoundary(mon, tue) {
		t.Fatal("next day must be a boundary")
	}
	if IsBoundary(time.Time{}, mon) {
		t.Fatal("the very first bar has no boundary")
	}
}

func TestNextOpen_SkipsWeekend(t *testing.T) {
	// Friday after close → Monday 9:15.
	fri := ist(2026, 8, 28, 16, 0)
	next := NextOpen(fri)
	if next.Weekday() != time.Monday || next.Hour() != 9 || next.Minute() != 15 {
		t.Fatalf("expected Monday 9:15, got %v", next)
	}
	if next.Day() != 31 {
		t.Fatalf("expected Aug 31, got %v", next)
	}
}

func TestNextOpen_SameDayBeforeOpen(t *testing.T) {
	early := ist(2026, 8, 24, 8, 0)
	next := NextOpen(early)
	if next.Day() != 24 || next.Hour() != 9 || next.Minute() != 15 {
		t.Fatalf("expected same-day open, got %v", next)
	}
}

func TestNextOpen_SkipsHoliday(t *testing.T) {
	// Dec 24 2026 is a Thursday; Dec 25 is Christmas (Friday) → Monday 28th.
	thu := ist(2026, 12, 24, 16, 0)
	next := NextOpen(thu)
	if next.Month() != time.December || next.Day() != 28 {
		t.Fatalf("expected Dec 28, got %v", next)
	}
}

func TestOpenClose(t *testing.T) {
	mid := ist(2026, 8, 24, 12, 0)
	if o := Open(mid); o.Hour() != 9 || o.Minute() != 15 {
		t.Fatalf("unexpected open %v", o)
	}
	if c := Close(mid); c.Hour() != 15 || c.Minute() != 30 {
		t.Fatalf("unexpected close %v", c)
	}
}
