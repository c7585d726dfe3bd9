package model

import "context"

// ── Storage Port Interfaces ──
// These interfaces decouple the binaries from the concrete SQLite store: the
// live loop archives bars through BarWriter, seeding and replay read through
// BarReader.

// BarWriter persists completed bars.
type BarWriter interface {
	// Run reads bars from barCh and writes them.
	// Blocks until ctx is cancelled or barCh is closed.
	Run(ctx context.Context, barCh <-chan Bar)

	// Close releases underlying resources.
	Close() error
}

// BarReader reads historical bars for backfill and replay.
type BarReader interface {
	// ReadBars reads bars for a specific instrument and TF after afterTS (unix).
	ReadBars(exchange, token string, tf int, afterTS int64) ([]Bar, error)

	// ReadAllBars reads all bars for a given timeframe, time-ordered.
	ReadAllBars(tf int, afterTS int64) ([]Bar, error)

	// Close releases underlying resources.
	Close() error
}
