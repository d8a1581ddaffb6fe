package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"netbill/internal/logger"
)

type Config struct {
	// Storage
	DataDir          string
	LedgerBackend    string
	LedgerFile       string
	LedgerSQLitePath string
	CustomersFile    string
	PartnersFile     string

	// Router (RouterOS API)
	RouterAddress  string
	RouterUsername string
	RouterPassword string
	RouterTimeout  time.Duration
	SuspendProfile string

	// Enforcement and scheduling
	AutoDropDay      int
	AutoDropSchedule string
	AutoGenerateDay  int
	DropWorkers      int

	// Optional distributed ledger lock
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LedgerLockTTL time.Duration

	// Google Sheets export/import
	GoogleSheetURL string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	dataDir := getEnv("DATA_DIR", "data")

	config := &Config{
		DataDir:          dataDir,
		LedgerBackend:    getEnv("LEDGER_BACKEND", "json"),
		LedgerFile:       getEnv("LEDGER_FILE", filepath.Join(dataDir, "payments.json")),
		LedgerSQLitePath: getEnv("LEDGER_SQLITE_PATH", filepath.Join(dataDir, "ledger.db")),
		CustomersFile:    getEnv("CUSTOMERS_FILE", filepath.Join(dataDir, "customers.json")),
		PartnersFile:     getEnv("PARTNERS_FILE", filepath.Join(dataDir, "partners.json")),
		RouterAddress:    getEnv("ROUTER_ADDRESS", ""),
		RouterUsername:   getEnv("ROUTER_USERNAME", "admin"),
		RouterPassword:   getEnv("ROUTER_PASSWORD", ""),
		SuspendProfile:   getEnv("SUSPEND_PROFILE", "isolir"),
		AutoDropSchedule: getEnv("AUTO_DROP_SCHEDULE", "0 0 * * * *"),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		GoogleSheetURL:   getEnv("GOOGLE_SHEET_URL", ""),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:    getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:        getEnv("LOG_OUTPUT", "stderr"),
	}

	var err error
	if config.RouterTimeout, err = getDuration("ROUTER_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if config.LedgerLockTTL, err = getDuration("LEDGER_LOCK_TTL", 30*time.Second); err != nil {
		return nil, err
	}
	if config.AutoDropDay, err = getInt("AUTO_DROP_DAY", 0); err != nil {
		return nil, err
	}
	if config.AutoGenerateDay, err = getInt("AUTO_GENERATE_DAY", 0); err != nil {
		return nil, err
	}
	if config.DropWorkers, err = getInt("DROP_WORKERS", 4); err != nil {
		return nil, err
	}
	if config.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.LedgerBackend != "json" && c.LedgerBackend != "sqlite" {
		return fmt.Errorf("LEDGER_BACKEND must be json or sqlite, got %q", c.LedgerBackend)
	}
	if c.SuspendProfile == "" {
		return fmt.Errorf("SUSPEND_PROFILE must not be empty")
	}
	if c.AutoDropDay < 0 || c.AutoDropDay > 31 {
		return fmt.Errorf("AUTO_DROP_DAY must be between 0 (disabled) and 31")
	}
	if c.AutoGenerateDay < 0 || c.AutoGenerateDay > 28 {
		return fmt.Errorf("AUTO_GENERATE_DAY must be between 0 (disabled) and 28")
	}
	if c.AutoGenerateDay > 0 && c.AutoDropDay > 0 && c.AutoGenerateDay >= c.AutoDropDay {
		return fmt.Errorf("AUTO_GENERATE_DAY (%d) must be before AUTO_DROP_DAY (%d)", c.AutoGenerateDay, c.AutoDropDay)
	}
	if c.DropWorkers < 1 {
		return fmt.Errorf("DROP_WORKERS must be positive")
	}
	if c.RouterTimeout <= 0 {
		return fmt.Errorf("ROUTER_TIMEOUT must be positive")
	}
	return nil
}

// RequireRouter reports whether router credentials are present. Commands that
// talk to the router call it; ledger-only commands do not.
func (c *Config) RequireRouter() error {
	if c.RouterAddress == "" {
		return fmt.Errorf("ROUTER_ADDRESS is required")
	}
	if c.RouterUsername == "" {
		return fmt.Errorf("ROUTER_USERNAME is required")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}
