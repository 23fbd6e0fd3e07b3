// Package config loads process configuration from the environment, with an
// optional .env file for local runs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries the settings shared by every process.
type Config struct {
	// Instrument
	Symbol string

	// Exchange credentials and environment
	APIKey    string
	APISecret string
	Testnet   bool
	Demo      bool

	// Market data stream
	StreamURL string

	// Storage
	DatabasePath string
	LogDir       string

	// Strategy
	EntryThreshold   float64
	MaxLeverage      float64
	LeverageExponent float64
	WindowDuration   time.Duration

	// Execution
	BufferFactor    float64
	MaxRequotes     int
	RequoteInterval time.Duration
	FillTolerance   float64
	PollInterval    time.Duration

	// Housekeeping
	RetentionDays int

	// Observability
	MetricsAddr    string
	TelegramToken  string
	TelegramChatID string
}

// Load reads configuration from the environment. envFile, when non-empty
// and present, is loaded first; a missing file is not an error so deployed
// processes can rely on real environment variables.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
			}
		}
	}

	cfg := &Config{
		Symbol: getEnv("SYMBOL", "BTCUSDT"),

		APIKey:    os.Getenv("BYBIT_API_KEY"),
		APISecret: os.Getenv("BYBIT_API_SECRET"),
		Testnet:   getEnvBool("BYBIT_TESTNET", false),
		Demo:      getEnvBool("BYBIT_DEMO", false),

		StreamURL: getEnv("STREAM_URL", "wss://stream.bybit.com/v5/public/linear"),

		DatabasePath: getEnv("DATABASE_PATH", "data/ibs_bot.db"),
		LogDir:       getEnv("LOG_DIR", "logs"),

		EntryThreshold:   getEnvFloat("ENTRY_IBS_THRESHOLD", 0.2),
		MaxLeverage:      getEnvFloat("MAX_LEVERAGE", 5),
		LeverageExponent: getEnvFloat("LEVERAGE_EXPONENT", 2),
		WindowDuration:   getEnvDuration("WINDOW_DURATION", time.Hour),

		BufferFactor:    getEnvFloat("BUFFER_FACTOR", 0.98),
		MaxRequotes:     getEnvInt("MAX_REQUOTES", 5),
		RequoteInterval: getEnvDuration("REQUOTE_INTERVAL", 2*time.Second),
		FillTolerance:   getEnvFloat("FILL_TOLERANCE", 0.10),
		PollInterval:    getEnvDuration("POLL_INTERVAL", 5*time.Second),

		RetentionDays: getEnvInt("RETENTION_DAYS", 30),

		MetricsAddr:    getEnv("METRICS_ADDR", ""),
		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID: os.Getenv("TELEGRAM_CHAT_ID"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the processes cannot run with.
func (c *Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("SYMBOL must not be empty")
	}
	if c.BufferFactor <= 0 || c.BufferFactor >= 1 {
		return fmt.Errorf("BUFFER_FACTOR must be in (0, 1), got %v", c.BufferFactor)
	}
	if c.MaxLeverage < 1 {
		return fmt.Errorf("MAX_LEVERAGE must be at least 1, got %v", c.MaxLeverage)
	}
	if c.EntryThreshold <= 0 || c.EntryThreshold > 1 {
		return fmt.Errorf("ENTRY_IBS_THRESHOLD must be in (0, 1], got %v", c.EntryThreshold)
	}
	if c.MaxRequotes < 0 {
		return fmt.Errorf("MAX_REQUOTES must not be negative, got %d", c.MaxRequotes)
	}
	if c.WindowDuration <= 0 {
		return fmt.Errorf("WINDOW_DURATION must be positive, got %v", c.WindowDuration)
	}
	if c.RetentionDays <= 0 {
		return fmt.Errorf("RETENTION_DAYS must be positive, got %d", c.RetentionDays)
	}
	return nil
}

// RequireCredentials fails when the exchange credentials are missing. Only
// processes that sign requests call this; the acquisition process does not.
func (c *Config) RequireCredentials() error {
	if c.APIKey == "" || c.APISecret == "" {
		return fmt.Errorf("BYBIT_API_KEY and BYBIT_API_SECRET must be set")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return v
}
