package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
)

// Permission modes for SMS_PERMISSION_MODE.
const (
	PermissionModeOperator = "operator"
	PermissionModeGranted  = "granted"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken   string
	AdminTelegramID int64
	DataDir         string
	DatabaseURL     string // optional Postgres mirror of the SMS history
	LogLevel        string
	Environment     string
	SMSCommand      string // empty means dry-run
	SendInterval    time.Duration
	PermissionMode  string
	CronSpecRefresh string
	CronSpecDigest  string // morning digest sent to the operator
	HTTPAddr        string // empty disables the status server
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load does not override variables that are already set.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID")
	if adminIDStr == "" {
		return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is not set")
	}
	cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
	}

	cfg.DataDir = getEnv("DATA_DIR", "./substitute_data")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(getEnv("ENVIRONMENT", "development"))
	cfg.SMSCommand = strings.TrimSpace(os.Getenv("SMS_COMMAND"))

	cfg.SendInterval, err = time.ParseDuration(getEnv("SMS_SEND_INTERVAL", "1s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMS_SEND_INTERVAL: %w", err)
	}
	if cfg.SendInterval < 0 {
		return nil, fmt.Errorf("invalid SMS_SEND_INTERVAL: must not be negative")
	}

	cfg.PermissionMode = strings.ToLower(getEnv("SMS_PERMISSION_MODE", PermissionModeOperator))
	switch cfg.PermissionMode {
	case PermissionModeOperator, PermissionModeGranted:
	default:
		return nil, fmt.Errorf("invalid SMS_PERMISSION_MODE %q: want %q or %q",
			cfg.PermissionMode, PermissionModeOperator, PermissionModeGranted)
	}

	cfg.CronSpecRefresh = getEnv("CRON_SPEC_REFRESH", "*/15 * * * *")
	cfg.CronSpecDigest = getEnv("CRON_SPEC_DIGEST", "0 7 * * 1-5")

	// HTTP_ADDR set to an empty string disables the server.
	if addr, ok := os.LookupEnv("HTTP_ADDR"); ok {
		cfg.HTTPAddr = strings.TrimSpace(addr)
	} else {
		cfg.HTTPAddr = ":8080"
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
