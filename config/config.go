package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the orchestrator
type Config struct {
	Telegram  TelegramConfig
	Storage   StorageConfig
	Scheduler SchedulerConfig
	Batch     BatchConfig
	Monitor   MonitorConfig
	Logging   LoggingConfig
	Service   ServiceConfig
}

// TelegramConfig holds Telegram MTProto configuration
type TelegramConfig struct {
	APIID   int
	APIHash string
}

// StorageConfig holds persisted state configuration
type StorageConfig struct {
	// DataDir contains one JSON document per subsystem plus the default
	// account's credential file.
	DataDir string
}

// SchedulerConfig holds scheduler configuration
type SchedulerConfig struct {
	// TickInterval is the scheduler loop period. The due window equals one
	// tick: schedules stale by more than this are skipped, not backfilled.
	TickInterval time.Duration
}

// BatchConfig holds batch fan-out configuration
type BatchConfig struct {
	// DefaultDelay is the inter-account pause of a batch pass.
	DefaultDelay time.Duration
}

// MonitorConfig holds health monitor configuration
type MonitorConfig struct {
	Enabled  bool
	Interval time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string
}

// ServiceConfig holds service configuration
type ServiceConfig struct {
	Name            string
	Port            string
	ShutdownTimeout time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	apiID, err := strconv.Atoi(getEnv("TELEGRAM_API_ID", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_API_ID: %w", err)
	}

	tick, err := time.ParseDuration(getEnv("SCHEDULER_TICK_INTERVAL", "60s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_TICK_INTERVAL: %w", err)
	}

	batchDelay, err := time.ParseDuration(getEnv("BATCH_DEFAULT_DELAY", "2s"))
	if err != nil {
		return nil, fmt.Errorf("invalid BATCH_DEFAULT_DELAY: %w", err)
	}

	monitorInterval, err := time.ParseDuration(getEnv("MONITOR_INTERVAL", "60s"))
	if err != nil {
		return nil, fmt.Errorf("invalid MONITOR_INTERVAL: %w", err)
	}

	shutdownTimeout, err := time.ParseDuration(getEnv("SERVICE_SHUTDOWN_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVICE_SHUTDOWN_TIMEOUT: %w", err)
	}

	cfg := &Config{
		Telegram: TelegramConfig{
			APIID:   apiID,
			APIHash: getEnv("TELEGRAM_API_HASH", ""),
		},
		Storage: StorageConfig{
			DataDir: getEnv("DATA_DIR", "./accounts"),
		},
		Scheduler: SchedulerConfig{
			TickInterval: tick,
		},
		Batch: BatchConfig{
			DefaultDelay: batchDelay,
		},
		Monitor: MonitorConfig{
			Enabled:  getEnv("MONITOR_ENABLED", "true") == "true",
			Interval: monitorInterval,
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Service: ServiceConfig{
			Name:            getEnv("SERVICE_NAME", "tgfleet"),
			Port:            getEnv("SERVICE_PORT", "8084"),
			ShutdownTimeout: shutdownTimeout,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Telegram.APIID == 0 {
		return fmt.Errorf("TELEGRAM_API_ID is required")
	}

	if c.Telegram.APIHash == "" {
		return fmt.Errorf("TELEGRAM_API_HASH is required")
	}

	if c.Storage.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required")
	}

	if c.Scheduler.TickInterval <= 0 {
		return fmt.Errorf("SCHEDULER_TICK_INTERVAL must be positive")
	}

	return nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
