// Package feed provides bar ingestion for the signal engine: a WebSocket
// client for live completed bars and a SQLite-backed replayer for backtests.
//
// The expected JSON message format on the wire is identical to model.Bar:
//
//	{"token":"2885","exchange":"NSE","tf":300,"ts":"...","open":185.2,...}
package feed

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"time"

	"breakout-systemv1/internal/model"

	"github.com/gorilla/websocket"
)

// WSConfig holds configuration for the WebSocket bar ingest.
type WSConfig struct {
	// URL of the bar WebSocket server, e.g. "ws://localhost:8765/bars"
	URL string

	// ReconnectDelay is the initial delay before reconnection attempts.
	// Defaults to 2 seconds if zero.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential backoff. Defaults to 30s.
	MaxReconnectDelay time.Duration
}

func (c *WSConfig) defaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
}

// WSIngest connects to a plain-JSON WebSocket bar server and pushes
// completed model.Bar values into barCh.
type WSIngest struct {
	cfg WSConfig

	// Optional hook — called each time a reconnection happens.
	OnReconnect func()

	// Optional hook — called for every bar dropped because barCh is full.
	OnDrop func()
}

// NewWS creates a new WSIngest. Returns an error if the URL is unparseable.
func NewWS(cfg WSConfig) (*WSIngest, error) {
	cfg.defaults()
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, err
	}
	return &WSIngest{cfg: cfg}, nil
}

// Start connects to the WebSocket and streams bars into barCh.
// Blocks until ctx is cancelled. Reconnects automatically on disconnect.
func (ing *WSIngest) Start(ctx context.Context, barCh chan<- model.Bar) error {
	delay := ing.cfg.ReconnectDelay

	for {
		// Check context before each attempt
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		err := ing.runOnce(ctx, barCh)
		if err == nil {
			// Context cancelled cleanly
			return nil
		}

		log.Printf("[feed] disconnected (%v), reconnecting in %s...", err, delay)
		if ing.OnReconnect != nil {
			ing.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		// Exponential backoff
		delay *= 2
		if delay > ing.cfg.MaxReconnectDelay {
			delay = ing.cfg.MaxReconnectDelay
		}
	}
}

// runOnce makes a single connection attempt and reads until disconnect or ctx cancel.
func (ing *WSIngest) runOnce(ctx context.Context, barCh chan<- model.Bar) error {
	dialer := websocket.DefaultDialer
	conn, _, err := dialer.DialContext(ctx, ing.cfg.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Printf("[feed] connected to %s", ing.cfg.URL)

	// Async context watcher — closes the connection when ctx is cancelled.
	go func() {
		<-ctx.Done()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			// Check if it's a context cancellation
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}

		var bar model.Bar
		if err := json.Unmarshal(raw, &bar); err != nil {
			log.Printf("[feed] parse error: %v (raw: %s)", err, raw)
			continue
		}

		if bar.Token == "" || bar.TF <= 0 {
			log.Printf("[feed] skipping bar with empty token or bad tf")
			continue
		}

		select {
		case barCh <- bar:
		default:
			log.Println("[feed] barCh full, dropping bar")
			if ing.OnDrop != nil {
				ing.OnDrop()
			}
		}
	}
}
