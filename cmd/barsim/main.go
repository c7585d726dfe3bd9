// cmd/barsim — Demo WebSocket bar server.
// Broadcasts simulated completed OHLC bars for testing the signal engine
// without a real market data feed.
//
// Bar JSON shape is identical to model.Bar:
//
//	{"token":"99926000","exchange":"NSE","tf":60,"ts":"...","open":25660.0,...}
//
// Config (env vars):
//
//	BAR_SERVER_ADDR  — listen address  (default: ":8765")
//	BAR_TOKENS       — comma-separated TOKEN:EXCHANGE pairs (default: "99926000:NSE")
//	BAR_TF           — bar duration in seconds (default: "60")
//	BAR_INTERVAL_MS  — broadcast interval milliseconds (default: "1000")
package main

import (
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"breakout-systemv1/internal/model"
)

// instrument holds per-symbol simulation state.
type instrument struct {
	Token    string
	Exchange string
	Price    float64 // current simulated price
}

// ─── Hub ──────────────────────────────────────────────────────────────────────

type hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]chan []byte)}
}

func (h *hub) register(conn *websocket.Conn) chan []byte {
	ch := make(chan []byte, 256)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

func (h *hub) broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default: // slow client — drop bar
		}
	}
}

// ─── WebSocket handler ────────────────────────────────────────────────────────

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

func wsHandler(h *hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[barsim] upgrade error: %v", err)
			return
		}
		log.Printf("[barsim] client connected: %s", r.RemoteAddr)

		ch := h.register(conn)
		defer func() {
			h.unregister(conn)
			conn.Close()
			log.Printf("[barsim] client disconnected: %s", r.RemoteAddr)
		}()

		// Write pump: sends bar JSON to this client.
		for msg := range ch {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// ─── Bar generator ────────────────────────────────────────────────────────────

// makeBar simulates one completed OHLC bar by random-walking the price
// through a few sub-steps.
func makeBar(ins *instrument, tf int, ts time.Time) model.Bar {
	open := ins.Price
	high, low := open, open
	price := open
	for i := 0; i < 8; i++ {
		pct := (rand.Float64()*0.3 - 0.15) / 100.0
		price += price * pct
		if price > high {
			high = price
		}
		if price < low {
			low = price
		}
	}
	ins.Price = price

	return model.Bar{
		Token:    ins.Token,
		Exchange: ins.Exchange,
		TF:       tf,
		TS:       ts,
		Open:     open,
		High:     high,
		Low:      low,
		Close:    price,
		Volume:   int64(rand.Intn(10000) + 100),
	}
}

func runGenerator(h *hub, instruments []instrument, tf, intervalMs int) {
	ticker := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
	defer ticker.Stop()

	// Bars print at an accelerated clock: each broadcast advances one full
	// TF bucket so session logic downstream sees realistic timestamps.
	ts := time.Now().UTC().Truncate(time.Duration(tf) * time.Second)

	for range ticker.C {
		for i := range instruments {
			bar := makeBar(&instruments[i], tf, ts)
			h.broadcast(bar.JSON())
		}
		ts = ts.Add(time.Duration(tf) * time.Second)
	}
}

// ─── main ─────────────────────────────────────────────────────────────────────

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[barsim] starting demo bar server...")

	addr := envOrDefault("BAR_SERVER_ADDR", ":8765")
	tokensEnv := envOrDefault("BAR_TOKENS", "99926000:NSE")
	tf := envIntOrDefault("BAR_TF", 60)
	intervalMs := envIntOrDefault("BAR_INTERVAL_MS", 1000)

	instruments := parseInstruments(tokensEnv)
	if len(instruments) == 0 {
		log.Fatalf("[barsim] no instruments configured via BAR_TOKENS")
	}
	log.Printf("[barsim] instruments: %+v", instruments)
	log.Printf("[barsim] tf=%ds interval=%dms", tf, intervalMs)

	h := newHub()

	go runGenerator(h, instruments, tf, intervalMs)

	http.HandleFunc("/bars", wsHandler(h))
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"status":"ok","service":"barsim"}`)
	})

	log.Printf("[barsim] listening on %s  (WebSocket: ws://localhost%s/bars)", addr, addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("[barsim] server error: %v", err)
	}
}

// ─── helpers ──────────────────────────────────────────────────────────────────

func parseInstruments(s string) []instrument {
	// Default starting prices
	defaultPrices := map[string]float64{
		"2885":     1850.50, // Reliance
		"1594":     2500.00,
		"99926000": 25660.00, // NIFTY 50 index sim
	}

	var result []instrument
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		seg := strings.SplitN(part, ":", 2)
		if len(seg) != 2 {
			log.Printf("[barsim] skipping invalid token spec: %q", part)
			continue
		}
		token, exchange := strings.TrimSpace(seg[0]), strings.TrimSpace(seg[1])
		price := defaultPrices[token]
		if price == 0 {
			price = 1000.00
		}
		result = append(result, instrument{
			Token:    token,
			Exchange: exchange,
			Price:    price,
		})
	}
	return result
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
