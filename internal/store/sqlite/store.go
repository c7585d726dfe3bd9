// Package sqlite persists completed bars for seeding reference levels at
// startup and for backtest replay.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"breakout-systemv1/internal/model"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// Config configures the SQLite bar store.
type Config struct {
	DBPath string // path to SQLite database file, e.g. "data/bars.db"
}

// Store is a single-writer SQLite bar store with transaction batching.
type Store struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// New opens (or creates) the bar database with WAL mode and schema.
func New(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single-writer connection pool
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			token    TEXT    NOT NULL,
			exchange TEXT    NOT NULL,
			tf       INTEGER NOT NULL,
			ts       INTEGER NOT NULL,
			open     REAL    NOT NULL,
			high     REAL    NOT NULL,
			low      REAL    NOT NULL,
			close    REAL    NOT NULL,
			volume   INTEGER,
			PRIMARY KEY (exchange, token, tf, ts)
		);
		CREATE INDEX IF NOT EXISTS idx_bars_tf_ts ON bars(tf, ts);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened bar store at %s", cfg.DBPath)
	return &Store{db: db}, nil
}

// Run reads bars from barCh and inserts them in batched transactions.
// Flushes every defaultBatchSize bars OR every defaultFlushDelay, whichever
// comes first. Blocks until ctx is cancelled or barCh is closed.
func (s *Store) Run(ctx context.Context, barCh <-chan model.Bar) {
	batch := make([]model.Bar, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := s.WriteBars(batch); err != nil {
			log.Printf("[sqlite] batch insert failed (%d bars): %v", len(batch), err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case b, ok := <-barCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, b)
			if len(batch) >= defaultBatchSize {
				flush()
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(defaultFlushDelay)
			}
		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

// WriteBars inserts a batch of bars in one transaction.
func (s *Store) WriteBars(bars []model.Bar) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO bars (token, exchange, tf, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite prepare: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.Exec(b.Token, b.Exchange, b.TF, b.TS.Unix(),
			b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert: %w", err)
		}
	}
	return tx.Commit()
}

// ReadBars reads bars for one pair after afterTS (unix seconds), time-ordered.
func (s *Store) ReadBars(exchange, token string, tf int, afterTS int64) ([]model.Bar, error) {
	rows, err := s.db.Query(`
		SELECT token, exchange, tf, ts, open, high, low, close, volume
		FROM bars WHERE exchange = ? AND token = ? AND tf = ? AND ts > ?
		ORDER BY ts ASC`, exchange, token, tf, afterTS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query: %w", err)
	}
	defer rows.Close()
	return scanBars(rows)
}

// ReadAllBars reads all bars for a given timeframe, time-ordered.
func (s *Store) ReadAllBars(tf int, afterTS int64) ([]model.Bar, error) {
	rows, err := s.db.Query(`
		SELECT token, exchange, tf, ts, open, high, low, close, volume
		FROM bars WHERE tf = ? AND ts > ?
		ORDER BY ts ASC`, tf, afterTS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query: %w", err)
	}
	defer rows.Close()
	return scanBars(rows)
}

func scanBars(rows *sql.Rows) ([]model.Bar, error) {
	var out []model.Bar
	for rows.Next() {
		var b model.Bar
		var ts int64
		if err := rows.Scan(&b.Token, &b.Exchange, &b.TF, &ts,
			&b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan: %w", err)
		}
		b.TS = time.Unix(ts, 0).UTC()
		out = append(out, b)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
