// Package session provides trading-calendar helpers for the reference-level
// tracker: which session a bar belongs to, and whether a new bar starts a
// fresh session relative to the previous one.
package session

import "time"

// IST is the Indian Standard Time location (UTC+5:30).
var IST = time.FixedZone("IST", 5*3600+30*60)

// Market hours in IST.
const (
	OpenHour    = 9
	OpenMinute  = 15
	CloseHour   = 15
	CloseMinute = 30
)

// IsWeekday returns true if t is Mon–Fri in IST.
func IsWeekday(t time.Time) bool {
	wd := t.In(IST).Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

// IsTradingDay returns true if t is a weekday and not an exchange holiday.
func IsTradingDay(t time.Time) bool {
	ist := t.In(IST)
	return IsWeekday(ist) && !IsHoliday(ist)
}

// IsMarketOpen returns true if t falls within trading hours
// (9:15 AM – 3:30 PM IST, Mon–Fri, excluding holidays).
func IsMarketOpen(t time.Time) bool {
	ist := t.In(IST)
	if !IsTradingDay(ist) {
		return false
	}
	hm := ist.Hour()*60 + ist.Minute()
	return hm >= OpenHour*60+OpenMinute && hm < CloseHour*60+CloseMinute
}

// ID identifies the trading session a timestamp belongs to.
// Sessions map one-to-one to IST calendar days; a session's ID is that
// day's midnight in IST. Bars outside trading hours still belong to the
// calendar day they printed on.
func ID(t time.Time) time.Time {
	ist := t.In(IST)
	return time.Date(ist.Year(), ist.Month(), ist.Day(), 0, 0, 0, 0, IST)
}

// Same reports whether a and b belong to the same trading session.
func Same(a, b time.Time) bool {
	return ID(a).Equal(ID(b))
}

// IsBoundary reports whether cur starts a new session relative to prev.
// A zero prev is not a boundary: the very first bar has no prior session.
func IsBoundary(prev, cur time.Time) bool {
	if prev.IsZero() {
		return false
	}
	return !Same(prev, cur)
}

// Open returns the session open time (9:15 AM IST) for the session t is in.
func Open(t time.Time) time.Time {
	id := ID(t)
	return time.Date(id.Year(), id.Month(), id.Day(), OpenHour, OpenMinute, 0, 0, IST)
}

// Close returns the session close time (3:30 PM IST) for the session t is in.
func Close(t time.Time) time.Time {
	id := ID(t)
	return time.Date(id.Year(), id.Month(), id.Day(), CloseHour, CloseMinute, 0, 0, IST)
}

// StatusString returns a human-readable market status line for logs.
func StatusString(t time.Time) string {
	ist := t.In(IST)
	if IsMarketOpen(ist) {
		return "market open until " + Close(ist).Format("15:04 MST")
	}
	return "market closed, next open " + NextOpen(ist).Format("Mon 15:04 MST")
}

// NextOpen returns the next session open after t, skipping weekends and
// holidays (max 10 days lookahead).
func NextOpen(t time.Time) time.Time {
	ist := t.In(IST)
	todayOpen := Open(ist)
	if ist.Before(todayOpen) && IsTradingDay(ist) {
		return todayOpen
	}
	d := ist.AddDate(0, 0, 1)
	for i := 0; i < 10; i++ {
		if IsTradingDay(d) {
			return Open(d)
		}
		d = d.AddDate(0, 0, 1)
	}
	return Open(ist.AddDate(0, 0, 1))
}
