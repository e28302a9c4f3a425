package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the trader.
type Config struct {
	Port string

	// Bitget
	BitgetAPIKey     string
	BitgetAPISecret  string
	BitgetPassphrase string
	BitgetBaseURL    string
	MarginCoin       string
	Symbols          []string
	Timeframe        string
	CandleLimit      int

	// Decision loop
	IntervalSeconds int
	SymbolDelayMs   int
	MinAgreement    int
	MinConfidence   float64
	StrategiesPath  string

	// Risk
	MaxOpenPositions int
	RiskPerTradePct  float64
	Leverage         int

	// Execution
	ExecutionEnabled bool
	DryRun           bool
	MockFeed         bool

	// Remote strategy worker
	EnableWorker bool
	WorkerAddr   string

	// Webhook notifications
	WebhookURL       string
	WebhookTimeoutMs int
	WebhookRetries   int

	// Database
	DBPath string

	// Auth / licensing
	JWTSecret     string
	APIPassword   string
	LicenseSecret string
	LicenseToken  string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		BitgetAPIKey:     os.Getenv("BITGET_API_KEY"),
		BitgetAPISecret:  os.Getenv("BITGET_API_SECRET"),
		BitgetPassphrase: os.Getenv("BITGET_PASSPHRASE"),
		BitgetBaseURL:    getEnv("BITGET_BASE_URL", ""),
		MarginCoin:       getEnv("MARGIN_COIN", "USDT"),
		Symbols:          splitAndTrim(getEnv("SYMBOLS", "BTCUSDT,ETHUSDT")),
		Timeframe:        getEnv("TIMEFRAME", "1m"),
		CandleLimit:      getEnvInt("CANDLE_LIMIT", 100),
		IntervalSeconds:  getEnvInt("INTERVAL_SECONDS", 60),
		SymbolDelayMs:    getEnvInt("SYMBOL_DELAY_MS", 500),
		MinAgreement:     getEnvInt("MIN_AGREEMENT", 2),
		MinConfidence:    getEnvFloat("MIN_CONFIDENCE", 60),
		StrategiesPath:   getEnv("STRATEGIES_PATH", "./strategies.yaml"),
		MaxOpenPositions: getEnvInt("MAX_OPEN_POSITIONS", 3),
		RiskPerTradePct:  getEnvFloat("RISK_PER_TRADE_PCT", 5),
		Leverage:         getEnvInt("LEVERAGE", 10),
		ExecutionEnabled: getEnv("EXECUTION_ENABLED", "true") == "true",
		DryRun:           getEnv("DRY_RUN", "false") == "true",
		MockFeed:         getEnv("MOCK_FEED", "false") == "true",
		EnableWorker:     getEnv("ENABLE_WORKER", "false") == "true",
		WorkerAddr:       getEnv("WORKER_ADDR", "localhost:50051"),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),
		WebhookTimeoutMs: getEnvInt("WEBHOOK_TIMEOUT_MS", 5000),
		WebhookRetries:   getEnvInt("WEBHOOK_RETRIES", 3),
		DBPath:           getEnv("DB_PATH", "./data/trader.db"),
		JWTSecret:        getEnv("JWT_SECRET", "dev-secret"),
		APIPassword:      getEnv("API_PASSWORD", ""),
		LicenseSecret:    getEnv("LICENSE_SECRET", ""),
		LicenseToken:     getEnv("LICENSE_TOKEN", ""),
	}

	if cfg.ExecutionEnabled && !cfg.DryRun {
		if cfg.BitgetAPIKey == "" || cfg.BitgetAPISecret == "" || cfg.BitgetPassphrase == "" {
			return nil, errors.New("live execution requires BITGET_API_KEY, BITGET_API_SECRET and BITGET_PASSPHRASE")
		}
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
