// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir      string // Base directory for all databases (always absolute)
	Port         int
	LogLevel     string
	LogPretty    bool
	DevMode      bool
	BaseCurrency string // Reporting currency all series are converted into

	// Series normalization
	DailyObsThreshold int // Observations/year above which a series is treated as daily
	MonthlyObsCeiling int // Observations/year above which a monthly series is rejected
	MinOverlapMonths  int // Series with less overlap than this are dropped

	// Statistics cache
	StatsCacheTTL time.Duration

	// Optimizer
	SolverTimeout    time.Duration
	MaxConcentration float64 // Hard cap on any single asset weight
	MinWeight        float64 // Weights below this are zeroed and renormalized

	// Background jobs
	SchedulerEnabled bool
	ReloadSchedule   string // Cron expression (with seconds) for the nightly data reload
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory with fallback logic
	// 1. Check DATA_DIR environment variable
	// 2. If not set, default to ./data
	// 3. Always resolve to absolute path
	// 4. Ensure directory exists
	dataDir := getEnv("DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:           absDataDir,
		Port:              getEnvAsInt("PORT", 8080),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogPretty:         getEnvAsBool("LOG_PRETTY", false),
		DevMode:           getEnvAsBool("DEV_MODE", false),
		BaseCurrency:      getEnv("BASE_CURRENCY", "ILS"),
		DailyObsThreshold: getEnvAsInt("DAILY_OBS_THRESHOLD", 100),
		MonthlyObsCeiling: getEnvAsInt("MONTHLY_OBS_CEILING", 20),
		MinOverlapMonths:  getEnvAsInt("MIN_OVERLAP_MONTHS", 10),
		StatsCacheTTL:     time.Duration(getEnvAsInt("STATS_CACHE_TTL_HOURS", 24)) * time.Hour,
		SolverTimeout:     time.Duration(getEnvAsInt("SOLVER_TIMEOUT_SECONDS", 10)) * time.Second,
		MaxConcentration:  getEnvAsFloat("MAX_CONCENTRATION", 0.40),
		MinWeight:         getEnvAsFloat("MIN_WEIGHT", 0.005),
		SchedulerEnabled:  getEnvAsBool("SCHEDULER_ENABLED", true),
		ReloadSchedule:    getEnv("RELOAD_SCHEDULE", "0 30 2 * * *"),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration describes a feasible pipeline.
// A broken configuration is a fatal startup error, never something to
// limp along with.
func (c *Config) Validate() error {
	if len(c.BaseCurrency) != 3 {
		return fmt.Errorf("base currency must be a 3-letter code, got %q", c.BaseCurrency)
	}

	if c.DailyObsThreshold <= c.MonthlyObsCeiling {
		return fmt.Errorf(
			"daily observation threshold (%d) must exceed the monthly ceiling (%d)",
			c.DailyObsThreshold, c.MonthlyObsCeiling,
		)
	}

	if c.MonthlyObsCeiling < 12 {
		return fmt.Errorf("monthly observation ceiling must allow 12 months/year, got %d", c.MonthlyObsCeiling)
	}

	if c.MinOverlapMonths < 2 {
		return fmt.Errorf("minimum overlap must be at least 2 months, got %d", c.MinOverlapMonths)
	}

	if c.MaxConcentration <= 0 || c.MaxConcentration > 1 {
		return fmt.Errorf("max concentration must be in (0, 1], got %.4f", c.MaxConcentration)
	}

	if c.MinWeight < 0 || c.MinWeight >= c.MaxConcentration {
		return fmt.Errorf(
			"minimum weight %.4f must be non-negative and below the concentration cap %.4f",
			c.MinWeight, c.MaxConcentration,
		)
	}

	if c.SolverTimeout <= 0 {
		return fmt.Errorf("solver timeout must be positive, got %s", c.SolverTimeout)
	}

	if c.SchedulerEnabled && c.ReloadSchedule == "" {
		return fmt.Errorf("reload schedule is required when the scheduler is enabled")
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
