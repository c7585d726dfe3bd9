// Package redis publishes signal-engine events to Redis Streams for
// downstream consumers (dashboards, analytics) and mirrors the latest
// session levels into TTL'd keys. All writes are fire-and-forget and pass
// through a circuit breaker so Redis trouble never stalls the bar loop.
package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"breakout-systemv1/internal/levels"
	"breakout-systemv1/internal/model"
)

const (
	// Stream trimming: a day of 5m signals/transitions plus headroom.
	streamMaxLen     = 10000
	defaultLatestTTL = 30 * time.Minute

	breakerMaxFailures  = 5
	breakerResetTimeout = 10 * time.Second
)

// PublisherConfig configures the Redis publisher.
type PublisherConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Publisher writes signals, state transitions, and session levels to Redis.
type Publisher struct {
	client  *goredis.Client
	breaker *CircuitBreaker

	// Observe, if set, receives the duration of each successful write.
	Observe func(d time.Duration)
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// Breaker returns the circuit breaker, so callers can hook state changes.
func (p *Publisher) Breaker() *CircuitBreaker { return p.breaker }

// New creates a new Publisher and pings the server.
func New(cfg PublisherConfig) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Publisher{
		client:  client,
		breaker: NewCircuitBreaker(breakerMaxFailures, breakerResetTimeout),
	}, nil
}

// PublishSignal appends the signal to its pair's signal stream.
func (p *Publisher) PublishSignal(ctx context.Context, sig model.Signal) {
	p.write(ctx, sig.StreamKey(), sig.JSON())
}

// PublishTransition appends the transition to its pair's transition stream.
func (p *Publisher) PublishTransition(ctx context.Context, ev model.StateTransitionEvent) {
	p.write(ctx, ev.StreamKey(), ev.JSON())
}

// PublishLevels mirrors the current reference levels into a latest-value key.
func (p *Publisher) PublishLevels(ctx context.Context, pairKey string, ref levels.ReferenceLevel) {
	if !ref.Set() {
		return
	}
	start := time.Now()
	err := p.breaker.Execute(func() error {
		val := fmt.Sprintf(`{"session_high":%.6f,"session_low":%.6f,"as_of":%q}`,
			ref.SessionHigh, ref.SessionLow, ref.AsOf.Format(time.RFC3339))
		return p.client.Set(ctx, "levels:latest:"+pairKey, val, defaultLatestTTL).Err()
	})
	p.observe(start, err, "levels "+pairKey)
}

func (p *Publisher) write(ctx context.Context, stream string, payload []byte) {
	start := time.Now()
	err := p.breaker.Execute(func() error {
		return p.client.XAdd(ctx, &goredis.XAddArgs{
			Stream: stream,
			MaxLen: streamMaxLen,
			Approx: true,
			Values: map[string]interface{}{"data": payload},
		}).Err()
	})
	p.observe(start, err, stream)
}

func (p *Publisher) observe(start time.Time, err error, what string) {
	if err != nil {
		if err != ErrCircuitOpen {
			log.Printf("[redis] publish %s failed: %v", what, err)
		}
		return
	}
	if p.Observe != nil {
		p.Observe(time.Since(start))
	}
}

// Close releases the Redis connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}
