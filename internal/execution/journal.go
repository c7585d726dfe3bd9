package execution

import (
	"database/sql"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"breakout-systemv1/internal/model"
)

// Journal persists emitted signals and submitted orders to SQLite for
// analysis and audit.
type Journal struct {
	mu sync.Mutex
	db *sql.DB

	// Observe, if set, receives the duration of each successful insert.
	Observe func(d time.Duration)
}

// NewJournal opens (or creates) a SQLite journal database.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL")
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS signals (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		signal_id        TEXT NOT NULL,
		token            TEXT NOT NULL,
		exchange         TEXT NOT NULL,
		tf               INTEGER NOT NULL,
		direction        TEXT NOT NULL,
		entry_hint       REAL NOT NULL,
		stop_reference   REAL NOT NULL,
		stop_origin      TEXT NOT NULL,
		created_in_state TEXT NOT NULL,
		reason           TEXT,
		verdict          TEXT,
		confidence       REAL,
		bar_ts           DATETIME NOT NULL,
		created_at       DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS orders (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id    TEXT NOT NULL,
		signal_id   TEXT NOT NULL,
		token       TEXT NOT NULL,
		exchange    TEXT NOT NULL,
		direction   TEXT NOT NULL,
		volume      REAL NOT NULL,
		stop_loss   REAL NOT NULL,
		take_profit REAL NOT NULL,
		status      TEXT NOT NULL,
		message     TEXT,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_signals_pair ON signals(exchange, token, tf);
	CREATE INDEX IF NOT EXISTS idx_orders_signal ON orders(signal_id);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[journal] opened signal journal at %s", dbPath)
	return &Journal{db: db}, nil
}

// RecordSignal persists an emitted signal with its validation verdict.
// verdict is "ACCEPTED", "REJECTED", or a pipeline drop reason.
func (j *Journal) RecordSignal(sig model.Signal, verdict string, confidence float64) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	start := time.Now()
	_, err := j.db.Exec(
		`INSERT INTO signals (signal_id, token, exchange, tf, direction, entry_hint,
			stop_reference, stop_origin, created_in_state, reason, verdict, confidence, bar_ts)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sig.ID, sig.Token, sig.Exchange, sig.TF, string(sig.Direction), sig.EntryPriceHint,
		sig.StopReference.Price, string(sig.StopReference.Origin), sig.CreatedInState,
		sig.Reason, verdict, confidence, sig.TS,
	)
	if err == nil && j.Observe != nil {
		j.Observe(time.Since(start))
	}
	return err
}

// RecordOrder persists a gateway submission outcome.
func (j *Journal) RecordOrder(res OrderResult) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	start := time.Now()
	_, err := j.db.Exec(
		`INSERT INTO orders (order_id, signal_id, token, exchange, direction, volume,
			stop_loss, take_profit, status, message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.OrderID, res.Request.SignalID, res.Request.Token, res.Request.Exchange,
		string(res.Request.Direction), res.Request.Volume,
		res.Request.StopLoss, res.Request.TakeProfit, res.Status, res.Message,
	)
	if err == nil && j.Observe != nil {
		j.Observe(time.Since(start))
	}
	return err
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
