package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all runtime configuration for the drink exchange server.
type Config struct {
	Port     int
	LogLevel string

	Fee          decimal.Decimal // per-unit transaction fee forming bid/ask
	MaxUndoDepth int             // undo stack cap, 0 = unbounded
	SeedFile     string          // YAML file with initial drinks/users

	AuditDB     string // SQLite path for the trade audit trail, "" = disabled
	TickCron    string // cron expression for auto time advance, "" = disabled
	TickMinutes int64  // simulated minutes per auto tick

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables (after loading a .env
// file when present), applies defaults, and validates values.
func Load() (*Config, error) {
	// A missing .env file is fine; real env vars still apply.
	_ = godotenv.Load()

	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	fee, err := getDecimal("FEE", decimal.NewFromFloat(0.5))
	if err != nil {
		return nil, fmt.Errorf("invalid FEE: %w", err)
	}
	if fee.IsNegative() {
		return nil, fmt.Errorf("invalid FEE: must be non-negative")
	}

	maxUndoDepth, err := getInt("MAX_UNDO_DEPTH", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UNDO_DEPTH: %w", err)
	}
	if maxUndoDepth < 0 {
		return nil, fmt.Errorf("invalid MAX_UNDO_DEPTH: must be non-negative")
	}

	tickMinutes, err := getInt("TICK_MINUTES", 1)
	if err != nil {
		return nil, fmt.Errorf("invalid TICK_MINUTES: %w", err)
	}
	if tickMinutes < 1 {
		return nil, fmt.Errorf("invalid TICK_MINUTES: must be positive")
	}

	readTimeout, err := getDuration("READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := getDuration("WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}

	idleTimeout, err := getDuration("IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid IDLE_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	return &Config{
		Port:            port,
		LogLevel:        logLevel,
		Fee:             fee,
		MaxUndoDepth:    maxUndoDepth,
		SeedFile:        getStr("SEED_FILE", "seed.yaml"),
		AuditDB:         getStr("AUDIT_DB", ""),
		TickCron:        getStr("TICK_CRON", ""),
		TickMinutes:     int64(tickMinutes),
		ReadTimeout:     readTimeout,
		WriteTimeout:    writeTimeout,
		IdleTimeout:     idleTimeout,
		ShutdownTimeout: shutdownTimeout,
	}, nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getDecimal(key string, defaultVal decimal.Decimal) (decimal.Decimal, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return decimal.NewFromString(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
