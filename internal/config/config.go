package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	TelegramToken string

	// Bot mode configuration
	WebhookMode bool   // If true, use webhook mode; if false, use polling mode
	WebhookURL  string // URL for webhook (required if WebhookMode is true)

	// Relational store configuration
	DBDriver     string // "postgres" or "sqlite"
	DatabaseURL  string // postgres DSN
	SQLitePath   string
	StoreTimeout time.Duration // bound applied to every store operation
	UseMockDB    bool

	// ClickHouse analytics configuration (optional)
	AnalyticsEnabled   bool
	ClickHouseHost     string
	ClickHousePort     int
	ClickHouseDatabase string
	ClickHouseUser     string
	ClickHousePassword string
	ClickHouseUseTLS   bool

	// Redis counters (optional; disabled when RedisAddr is empty)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	config := &Config{}

	// Telegram Bot Token (required)
	config.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if config.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	// Bot mode configuration
	config.WebhookMode = os.Getenv("WEBHOOK_MODE") == "true"
	if config.WebhookMode {
		config.WebhookURL = os.Getenv("WEBHOOK_URL")
		if config.WebhookURL == "" {
			return nil, fmt.Errorf("WEBHOOK_URL is required when WEBHOOK_MODE is true")
		}
	}

	// Use Mock DB (default: false)
	config.UseMockDB = os.Getenv("USE_MOCK_DB") == "true"

	// Relational store (required unless using the mock)
	if !config.UseMockDB {
		config.DBDriver = os.Getenv("DB_DRIVER")
		if config.DBDriver == "" {
			config.DBDriver = "postgres"
		}
		switch config.DBDriver {
		case "postgres":
			config.DatabaseURL = os.Getenv("DATABASE_URL")
			if config.DatabaseURL == "" {
				return nil, fmt.Errorf("DATABASE_URL is required when DB_DRIVER is postgres")
			}
		case "sqlite":
			config.SQLitePath = os.Getenv("SQLITE_PATH")
			if config.SQLitePath == "" {
				config.SQLitePath = "blindchat.db"
			}
		default:
			return nil, fmt.Errorf("unknown DB_DRIVER: %s (expected postgres or sqlite)", config.DBDriver)
		}
	}

	// Store operation timeout (default: 5s)
	config.StoreTimeout = 5 * time.Second
	if timeoutStr := os.Getenv("STORE_TIMEOUT"); timeoutStr != "" {
		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return nil, fmt.Errorf("invalid STORE_TIMEOUT: %w", err)
		}
		config.StoreTimeout = timeout
	}

	// ClickHouse analytics (optional)
	config.AnalyticsEnabled = os.Getenv("ANALYTICS_ENABLED") == "true"
	if config.AnalyticsEnabled {
		config.ClickHouseHost = os.Getenv("CLICKHOUSE_HOST")
		if config.ClickHouseHost == "" {
			return nil, fmt.Errorf("CLICKHOUSE_HOST is required when ANALYTICS_ENABLED is true")
		}

		portStr := os.Getenv("CLICKHOUSE_PORT")
		if portStr == "" {
			config.ClickHousePort = 9000 // Default ClickHouse native port
		} else {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return nil, fmt.Errorf("invalid CLICKHOUSE_PORT: %w", err)
			}
			config.ClickHousePort = port
		}

		config.ClickHouseDatabase = os.Getenv("CLICKHOUSE_DATABASE")
		if config.ClickHouseDatabase == "" {
			config.ClickHouseDatabase = "default"
		}

		config.ClickHouseUser = os.Getenv("CLICKHOUSE_USER")
		if config.ClickHouseUser == "" {
			config.ClickHouseUser = "default"
		}

		config.ClickHousePassword = os.Getenv("CLICKHOUSE_PASSWORD")
		// Password is optional, can be empty

		config.ClickHouseUseTLS = os.Getenv("CLICKHOUSE_USE_TLS") == "true"
	}

	// Redis (optional)
	config.RedisAddr = os.Getenv("REDIS_ADDR")
	config.RedisPassword = os.Getenv("REDIS_PASSWORD")
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		db, err := strconv.Atoi(dbStr)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		config.RedisDB = db
	}

	return config, nil
}
