// cmd/backtest replays historical bars from SQLite through the full signal
// pipeline (levels → state machine → validator → risk → paper gateway) to
// evaluate the strategy without live market data.
//
// Usage:
//
//	go run ./cmd/backtest --speed=0 --tf=300 --tokens=NSE:99926000 --from=0
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"breakout-systemv1/internal/confirm"
	"breakout-systemv1/internal/engine"
	"breakout-systemv1/internal/execution"
	"breakout-systemv1/internal/feed"
	"breakout-systemv1/internal/logger"
	"breakout-systemv1/internal/machine"
	"breakout-systemv1/internal/model"
	"breakout-systemv1/internal/risk"
	sqlitestore "breakout-systemv1/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	logger.Init("backtest", slog.LevelWarn)

	// Flags
	speed := flag.Float64("speed", 0, "Playback speed multiplier (0=max, 1=realtime, 100=100x)")
	tfStr := flag.String("tf", "300", "Comma-separated TFs to replay")
	fromTS := flag.Int64("from", 0, "Unix timestamp to start replay from (0=all)")
	dbPath := flag.String("db", "data/bars.db", "Path to SQLite bar database")
	tokens := flag.String("tokens", "NSE:99926000", "Comma-separated EXCHANGE:TOKEN pairs")
	journalPath := flag.String("journal", "", "Optional SQLite journal output path")
	equity := flag.Float64("equity", 100000, "Starting account equity")
	margin := flag.Float64("margin", 0, "Breakout margin")
	prox := flag.Float64("prox", 0.5, "Proximity threshold")
	stopBuf := flag.Float64("stopbuf", 0.25, "Stop-loss buffer")
	rr := flag.Float64("rr", 2.0, "Risk/reward ratio")
	flag.Parse()

	tfs := parseTFs(*tfStr)
	if len(tfs) == 0 {
		log.Fatal("[backtest] no valid TFs specified")
	}

	// Open SQLite bar store
	store, err := sqlitestore.New(sqlitestore.Config{DBPath: *dbPath})
	if err != nil {
		log.Fatalf("[backtest] sqlite open failed: %v", err)
	}
	defer store.Close()

	// Optional journal
	var journal *execution.Journal
	if *journalPath != "" {
		journal, err = execution.NewJournal(*journalPath)
		if err != nil {
			log.Fatalf("[backtest] journal open failed: %v", err)
		}
		defer journal.Close()
	}

	// Build pipeline: account + calculator + paper gateway + engine
	account := risk.NewAccount(risk.DefaultLimits(), *equity)
	calc := risk.NewCalculator(risk.Config{
		StopLossBuffer:  *stopBuf,
		RiskRewardRatio: *rr,
		RiskPercent:     1.0,
	}, account)
	paper := execution.NewPaperGateway(0) // no slippage in backtest

	eng := engine.New(engine.Config{
		Machine: machine.Config{
			BreakoutMargin:     *margin,
			ProximityThreshold: *prox,
		},
		AutoRelease: true,
	}, &confirm.ThresholdValidator{}, account, calc, paper, engine.Sinks{
		Journal: journal,
	})

	for _, pair := range strings.Split(*tokens, ",") {
		seg := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(seg) != 2 {
			continue
		}
		for _, tf := range tfs {
			eng.Register(seg[0], seg[1], tf)
		}
	}

	// Setup context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	// Replay in background
	replayer := feed.NewReplayer(store)
	barCh := make(chan model.Bar, 10000)
	go func() {
		if err := replayer.Run(ctx, tfs, *fromTS, *speed, barCh); err != nil {
			log.Printf("[backtest] replay error: %v", err)
		}
		close(barCh)
	}()

	processed := 0
	for bar := range barCh {
		eng.OnBar(ctx, bar)
		processed++
	}

	// Print summary
	fills := paper.Fills()
	buys, sells := 0, 0
	for _, f := range fills {
		if f.Request.Direction == model.DirectionBuy {
			buys++
		} else {
			sells++
		}
	}

	fmt.Println()
	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║        BACKTEST COMPLETE             ║")
	fmt.Println("╠══════════════════════════════════════╣")
	fmt.Printf("║  Bars processed:    %-16d ║\n", processed)
	fmt.Printf("║  Orders filled:     %-16d ║\n", len(fills))
	fmt.Printf("║  Buys / Sells:      %-16s ║\n", fmt.Sprintf("%d / %d", buys, sells))
	fmt.Printf("║  TFs:               %-16v ║\n", tfs)
	fmt.Println("╚══════════════════════════════════════╝")

	for i, f := range fills {
		if i >= 20 {
			fmt.Printf("  ... and %d more fills\n", len(fills)-20)
			break
		}
		fmt.Printf("  %s %s %s vol=%.0f fill=%.2f sl=%.2f tp=%.2f\n",
			f.FilledAt.Format("2006-01-02 15:04"), f.Request.Direction, f.Request.Token,
			f.Request.Volume, f.FillPrice, f.Request.StopLoss, f.Request.TakeProfit)
	}
}

func parseTFs(s string) []int {
	var tfs []int
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if n, err := strconv.Atoi(p); err == nil && n > 0 {
			tfs = append(tfs, n)
		}
	}
	return tfs
}
