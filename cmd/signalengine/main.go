// cmd/signalengine — live breakout/retest/bounce signal engine.
//
// Pipeline:
//
//	[Bar Feed WS] → [Ring Buffer] → [Engine: levels + state machine]
//	                                  → validate → limits → size → gateway
//	                                  → Redis streams / SQLite journal / alerts
//
// Completed bars also fan out to the SQLite bar store for startup seeding
// and backtest replay.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"breakout-systemv1/config"
	"breakout-systemv1/internal/confirm"
	"breakout-systemv1/internal/engine"
	"breakout-systemv1/internal/execution"
	"breakout-systemv1/internal/feed"
	"breakout-systemv1/internal/logger"
	"breakout-systemv1/internal/machine"
	"breakout-systemv1/internal/metrics"
	"breakout-systemv1/internal/model"
	"breakout-systemv1/internal/notification"
	"breakout-systemv1/internal/ringbuf"
	"breakout-systemv1/internal/risk"
	"breakout-systemv1/internal/session"
	redisstore "breakout-systemv1/internal/store/redis"
	sqlitestore "breakout-systemv1/internal/store/sqlite"
	"breakout-systemv1/pkg/brokerconnect"
)

const seedLookback = 3 * 24 * time.Hour

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	logger.Init("signalengine", slog.LevelInfo)
	log.Println("[signalengine] starting...")

	cfg := config.Load()
	instruments := cfg.ParseInstruments()
	tfs := cfg.ParseTFs()
	if len(instruments) == 0 || len(tfs) == 0 {
		log.Fatal("[signalengine] no instruments or timeframes configured")
	}
	log.Printf("[signalengine] %d instruments x %d TFs", len(instruments), len(tfs))

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- SQLite bar store (off hot path) ----
	os.MkdirAll("data", 0o755)
	barStore, err := sqlitestore.New(sqlitestore.Config{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[signalengine] sqlite init failed: %v", err)
	}
	defer barStore.Close()
	health.SetSQLiteOK(true)

	// ---- Signal/order journal ----
	journal, err := execution.NewJournal(cfg.JournalPath)
	if err != nil {
		log.Fatalf("[signalengine] journal init failed: %v", err)
	}
	defer journal.Close()
	journal.Observe = func(d time.Duration) { prom.JournalWriteDur.Observe(d.Seconds()) }

	// ---- Redis publisher (optional) ----
	var publisher *redisstore.Publisher
	publisher, err = redisstore.New(redisstore.PublisherConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Printf("[signalengine] WARNING: redis init failed: %v (continuing without redis)", err)
		publisher = nil
		health.SetRedisConnected(false)
	} else {
		health.SetRedisConnected(true)
		publisher.Observe = func(d time.Duration) { prom.RedisPublishDur.Observe(d.Seconds()) }
		publisher.Breaker().OnStateChange = func(from, to redisstore.State) {
			log.Printf("[signalengine] redis breaker %s -> %s", from, to)
			prom.RedisBreakerState.Set(float64(to))
			if to == redisstore.StateOpen {
				prom.RedisBreakerTrips.Inc()
			}
		}
	}

	// ---- Liveness checks ----
	if publisher != nil {
		health.StartLivenessChecker(ctx, publisher.Client(), barStore.DB(), 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, barStore.DB(), 10*time.Second)
	}

	// ---- Order gateway ----
	gateway, autoRelease := buildGateway(ctx, cfg)

	// ---- Risk: account + calculator ----
	account := risk.NewAccount(risk.DefaultLimits(), cfg.Equity)
	calc := risk.NewCalculator(risk.Config{
		StopLossBuffer:  cfg.StopLossBuffer,
		RiskRewardRatio: cfg.RiskRewardRatio,
		RiskPercent:     cfg.RiskPercent,
		Broker: risk.BrokerConstraints{
			MinVolume:  cfg.MinVolume,
			MaxVolume:  cfg.MaxVolume,
			VolumeStep: cfg.VolumeStep,
		},
	}, account)

	// ---- Engine ----
	sinks := engine.Sinks{
		Journal:  journal,
		Notifier: buildNotifier(cfg),
		Metrics:  prom,
		Health:   health,
	}
	if publisher != nil {
		sinks.Publisher = publisher
	}
	eng := engine.New(engine.Config{
		Machine: machine.Config{
			BreakoutMargin:     cfg.BreakoutMargin,
			ProximityThreshold: cfg.ProximityThreshold,
			LookbackBars:       cfg.LookbackBars,
		},
		MaxTrackedSignals: cfg.MaxTrackedSignals,
		AutoRelease:       autoRelease,
	}, &confirm.ThresholdValidator{MinConfidence: cfg.MinConfidence}, account, calc, gateway, sinks)

	// ---- Register pairs and seed reference levels from history ----
	seedAfter := time.Now().Add(-seedLookback).Unix()
	for _, ins := range instruments {
		for _, tf := range tfs {
			r := eng.Register(ins.Exchange, ins.Token, tf)
			bars, err := barStore.ReadBars(ins.Exchange, ins.Token, tf, seedAfter)
			if err != nil {
				log.Printf("[signalengine] seed read failed for %s: %v", r.Key(), err)
				continue
			}
			r.Seed(bars)
		}
	}
	health.SetPairs(eng.Pairs())

	// ---- Feed → ring buffer → engine ----
	ring := ringbuf.New(8192)
	feedCh := make(chan model.Bar, 4096)
	storeCh := make(chan model.Bar, 4096)

	go archiveBars(ctx, barStore, storeCh)

	ingest, err := feed.NewWS(feed.WSConfig{URL: cfg.FeedWSURL})
	if err != nil {
		log.Fatalf("[signalengine] feed init failed: %v", err)
	}
	ingest.OnReconnect = func() {
		prom.WSReconnects.Inc()
		health.SetWSConnected(false)
	}
	health.SetWSConnected(true)
	go func() {
		if err := ingest.Start(ctx, feedCh); err != nil {
			log.Printf("[signalengine] feed error: %v", err)
		}
	}()

	// Producer: feed channel → ring buffer + store fan-out.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case b, ok := <-feedCh:
				if !ok {
					return
				}
				health.SetWSConnected(true)
				if !ring.Push(b) {
					prom.RingBufOverflow.Inc()
				}
				select {
				case storeCh <- b:
				default:
				}
			}
		}
	}()

	// Consumer: ring buffer → engine (single evaluator goroutine).
	go func() {
		for {
			if ctx.Err() != nil {
				return
			}
			b, ok := ring.Pop()
			if !ok {
				runtime.Gosched()
				time.Sleep(time.Millisecond)
				continue
			}
			eng.OnBar(ctx, b)
		}
	}()

	log.Printf("[signalengine] pipeline ready — %s", session.StatusString(time.Now()))

	// ---- Wait for shutdown ----
	<-sigCh
	log.Println("[signalengine] shutdown signal received, cleaning up...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Stop(shutdownCtx)

	if publisher != nil {
		publisher.Close()
	}
	log.Println("[signalengine] shutdown complete.")
}

// archiveBars drains completed bars into the bar store, off the hot path.
func archiveBars(ctx context.Context, w model.BarWriter, barCh <-chan model.Bar) {
	w.Run(ctx, barCh)
}

// buildGateway returns the configured order gateway. Paper gateways fill
// instantly, so their in-flight slots auto-release.
func buildGateway(ctx context.Context, cfg *config.Config) (execution.OrderGateway, bool) {
	if cfg.Gateway != "broker" {
		log.Println("[signalengine] using paper gateway")
		return execution.NewPaperGateway(5), true
	}

	client := brokerconnect.New(brokerconnect.Config{
		APIKey:     cfg.BrokerAPIKey,
		ClientCode: cfg.BrokerClientCode,
		Password:   cfg.BrokerPassword,
		TOTPSecret: cfg.BrokerTOTPSecret,
	})
	if err := client.Login(ctx); err != nil {
		log.Fatalf("[signalengine] broker login failed: %v", err)
	}
	log.Println("[signalengine] using live broker gateway")
	return execution.NewBrokerGateway(client), false
}

func buildNotifier(cfg *config.Config) notification.Notifier {
	switch {
	case cfg.TelegramBotToken != "" && cfg.TelegramChatID != "":
		log.Println("[signalengine] alerts via telegram")
		return notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
	case cfg.WebhookURL != "":
		log.Println("[signalengine] alerts via webhook")
		return notification.NewWebhookNotifier(cfg.WebhookURL)
	default:
		return notification.NewLogNotifier()
	}
}
