// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir        string // Base directory for all databases (always absolute)
	LogLevel       string
	Port           int
	DevMode        bool
	Timezone       string
	Location       *time.Location
	HTTPTimeout    time.Duration
	RefreshWorkers int
	RefreshQueue   int
	SnapshotCron   string
	ReconcileCron  string
	FundListCron   string
	CleanupCron    string
	BackupCron     string
	CORSOrigins    []string
	Backup         *BackupConfig
	Heuristics     Heuristics
}

// BackupConfig holds S3-compatible (Cloudflare R2) backup settings.
// Backups are disabled when Bucket is empty.
type BackupConfig struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Retention       int // number of archives to keep
}

// Enabled reports whether backup credentials are configured.
func (b *BackupConfig) Enabled() bool {
	return b != nil && b.Bucket != "" && b.AccessKeyID != "" && b.SecretAccessKey != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("FUNDVAL_DATA_DIR", "./data")

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	timezone := getEnv("FUNDVAL_TIMEZONE", "Asia/Shanghai")
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %w", timezone, err)
	}

	heuristics := DefaultHeuristics()
	heuristics.MaxCalibrationOffset = getEnvAsFloat("FUNDVAL_MAX_CALIBRATION", heuristics.MaxCalibrationOffset)
	heuristics.CalibrationWindowDays = getEnvAsInt("FUNDVAL_CALIBRATION_DAYS", heuristics.CalibrationWindowDays)
	heuristics.ValuationCacheTTL = getEnvAsDuration("FUNDVAL_VALUATION_TTL", heuristics.ValuationCacheTTL)
	heuristics.QuoteCacheTTL = getEnvAsDuration("FUNDVAL_QUOTE_TTL", heuristics.QuoteCacheTTL)
	for _, region := range []string{"CN", "HK", "US"} {
		if dates := getEnvAsList("FUNDVAL_HOLIDAYS_"+region, nil); len(dates) > 0 {
			heuristics = heuristics.WithHolidays(region, dates)
		}
	}

	cfg := &Config{
		DataDir:        absDataDir,
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Port:           getEnvAsInt("FUNDVAL_PORT", 8080),
		DevMode:        getEnvAsBool("DEV_MODE", false),
		Timezone:       timezone,
		Location:       location,
		HTTPTimeout:    getEnvAsDuration("FUNDVAL_HTTP_TIMEOUT", 5*time.Second),
		RefreshWorkers: getEnvAsInt("FUNDVAL_REFRESH_WORKERS", 4),
		RefreshQueue:   getEnvAsInt("FUNDVAL_REFRESH_QUEUE", 64),
		SnapshotCron:   getEnv("FUNDVAL_SNAPSHOT_CRON", "0 5 15 * * MON-FRI"),
		ReconcileCron:  getEnv("FUNDVAL_RECONCILE_CRON", "0 30 21 * * *"),
		FundListCron:   getEnv("FUNDVAL_FUNDLIST_CRON", "0 0 6 * * *"),
		CleanupCron:    getEnv("FUNDVAL_CLEANUP_CRON", "0 0 3 * * *"),
		BackupCron:     getEnv("FUNDVAL_BACKUP_CRON", "0 0 4 * * *"),
		CORSOrigins:    getEnvAsList("FUNDVAL_CORS_ORIGINS", []string{"*"}),
		Backup:         loadBackupConfig(),
		Heuristics:     heuristics,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadBackupConfig() *BackupConfig {
	return &BackupConfig{
		AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		Bucket:          getEnv("R2_BUCKET", ""),
		Retention:       getEnvAsInt("R2_RETENTION", 14),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.RefreshWorkers <= 0 {
		return fmt.Errorf("refresh workers must be positive, got %d", c.RefreshWorkers)
	}
	if c.RefreshQueue <= 0 {
		return fmt.Errorf("refresh queue size must be positive, got %d", c.RefreshQueue)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be positive")
	}
	return c.Heuristics.Validate()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
