package model

import (
	"encoding/json"
	"time"
)

// Bar represents a completed OHLC bar for a single instrument and timeframe.
// TF is the bar duration in seconds (e.g., 300 = 5 minutes).
// Prices are float64 in the instrument's quote currency.
type Bar struct {
	Token    string    `json:"token"`
	Exchange string    `json:"exchange"`
	TF       int       `json:"tf"`     // timeframe in seconds
	TS       time.Time `json:"ts"`     // bucket start time (UTC, TF-aligned)
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   int64     `json:"volume"` // cumulative quantity
}

// Key returns a unique key for this bar's pair: "exchange:token:{TF}s".
func (b *Bar) Key() string {
	return b.Exchange + ":" + b.Token + ":" + itoa(b.TF) + "s"
}

// Valid reports whether the bar is usable for evaluation: positive prices
// and a consistent high/low envelope. Invalid bars are skipped, never a crash.
func (b *Bar) Valid() bool {
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return false
	}
	if b.High < b.Low {
		return false
	}
	if b.Open > b.High || b.Open < b.Low || b.Close > b.High || b.Close < b.Low {
		return false
	}
	return !b.TS.IsZero()
}

// ZeroRange reports whether the bar has no price range at all.
// Degenerate bars must not satisfy any breakout/bounce predicate.
func (b *Bar) ZeroRange() bool {
	return b.High == b.Low
}

// Range returns high minus low.
func (b *Bar) Range() float64 {
	return b.High - b.Low
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *Bar) JSON() []byte {
	out, _ := json.Marshal(b)
	return out
}

// itoa is a minimal int-to-string without importing strconv in hot path.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	buf := [20]byte{}
	i := len(buf)
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
