package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Strategy parameters
	BreakoutMargin     float64 // close must clear the level by this much to count as a breakout
	ProximityThreshold float64 // distance that counts as "near" a level
	LookbackBars       int     // breakout scan window

	// Risk parameters
	StopLossBuffer  float64
	RiskRewardRatio float64
	RiskPercent     float64
	Equity          float64
	MinVolume       float64
	MaxVolume       float64
	VolumeStep      float64

	// Signal pipeline
	MaxTrackedSignals int     // in-flight signal cap per (instrument, TF) pair
	MinConfidence     float64 // confirmation validator threshold

	// Feed
	FeedWSURL string

	// Broker credentials (required only when GATEWAY=broker)
	BrokerAPIKey     string
	BrokerClientCode string
	BrokerPassword   string
	BrokerTOTPSecret string
	Gateway          string // "paper" or "broker"

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	JournalPath   string
	MetricsAddr   string

	// Notifications
	TelegramBotToken string
	TelegramChatID   string
	WebhookURL       string

	// Subscription
	SubscribeTokens string

	// Timeframes (comma-separated seconds, e.g. "60,300,900")
	EnabledTFs string
}

// Load reads configuration from the environment with sensible defaults.
// A .env file in the working directory is loaded first if present.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Printf("[config] loaded .env")
	}

	cfg := &Config{
		BreakoutMargin:     getFloat("BREAKOUT_MARGIN", 0),
		ProximityThreshold: getFloat("PROXIMITY_THRESHOLD", 0.5),
		LookbackBars:       getInt("LOOKBACK_BARS", 10),

		StopLossBuffer:  getFloat("STOP_LOSS_BUFFER", 0.25),
		RiskRewardRatio: getFloat("RISK_REWARD_RATIO", 2.0),
		RiskPercent:     getFloat("RISK_PERCENT", 1.0),
		Equity:          getFloat("EQUITY", 100000),
		MinVolume:       getFloat("MIN_VOLUME", 1),
		MaxVolume:       getFloat("MAX_VOLUME", 10000),
		VolumeStep:      getFloat("VOLUME_STEP", 1),

		MaxTrackedSignals: getInt("MAX_TRACKED_SIGNALS", 1),
		MinConfidence:     getFloat("MIN_CONFIDENCE", 0.55),

		FeedWSURL: getEnv("FEED_WS_URL", "ws://localhost:8765/bars"),

		Gateway: getEnv("GATEWAY", "paper"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/bars.db"),
		JournalPath:   getEnv("JOURNAL_PATH", "data/journal.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),

		// Default: NIFTY 50 on NSE_CM
		SubscribeTokens: getEnv("SUBSCRIBE_TOKENS", "1:99926000"),

		// Default TFs: 1m, 5m
		EnabledTFs: getEnv("ENABLED_TFS", "60,300"),
	}

	if cfg.Gateway == "broker" {
		cfg.BrokerAPIKey = mustEnv("BROKER_API_KEY")
		cfg.BrokerClientCode = mustEnv("BROKER_CLIENT_CODE")
		cfg.BrokerPassword = mustEnv("BROKER_PASSWORD")
		cfg.BrokerTOTPSecret = mustEnv("BROKER_TOTP_SECRET")
	}
	return cfg
}

// ParseTFs parses the EnabledTFs string into a slice of timeframe durations in seconds.
func (c *Config) ParseTFs() []int {
	parts := strings.Split(c.EnabledTFs, ",")
	tfs := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			log.Printf("[config] skipping invalid TF value: %q", p)
			continue
		}
		tfs = append(tfs, n)
	}
	return tfs
}

// Instrument is a single (exchange, token) subscription entry.
type Instrument struct {
	Exchange string
	Token    string
}

// ParseInstruments parses SubscribeTokens ("exch:token,exch:token") into
// instrument entries. Malformed entries are logged and skipped.
func (c *Config) ParseInstruments() []Instrument {
	parts := strings.Split(c.SubscribeTokens, ",")
	out := make([]Instrument, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		pair := strings.SplitN(p, ":", 2)
		if len(pair) != 2 || pair[0] == "" || pair[1] == "" {
			log.Printf("[config] skipping invalid instrument entry: %q", p)
			continue
		}
		out = append(out, Instrument{Exchange: pair[0], Token: pair[1]})
	}
	return out
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %g", key, v, fallback)
		return fallback
	}
	return f
}
