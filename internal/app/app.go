package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"blindchat/internal/analytics"
	"blindchat/internal/bot"
	"blindchat/internal/cache"
	"blindchat/internal/config"
	"blindchat/internal/storage"
	"blindchat/internal/storage/gormdb"
	"blindchat/internal/storage/memory"
)

// App represents the application
type App struct {
	config   *config.Config
	logger   *zap.Logger
	db       storage.Storage
	events   analytics.Sink
	counters *cache.Counters
	bot      *bot.Bot
	server   *http.Server
}

// New creates and initializes a new application instance
func New() (*App, error) {
	// Load .env file if it exists
	envLoaded := godotenv.Load() == nil

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	if !envLoaded {
		logger.Info("No .env file found, using system environment variables")
	}

	// Load configuration from environment variables
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	app := &App{config: cfg, logger: logger}

	logger.Info("Starting BlindChat bot...")

	if err := app.initStorage(); err != nil {
		return nil, err
	}
	if err := app.initAnalytics(); err != nil {
		return nil, err
	}
	app.initCache()
	if err := app.initBot(); err != nil {
		return nil, err
	}
	app.initHTTPServer()

	return app, nil
}

// initStorage initializes the relational store
func (a *App) initStorage() error {
	var db storage.Storage
	if a.config.UseMockDB {
		a.logger.Info("Using in-memory store")
		db = memory.New()
	} else {
		dsn := a.config.DatabaseURL
		if a.config.DBDriver == gormdb.DriverSQLite {
			dsn = a.config.SQLitePath
		}
		store, err := gormdb.Open(a.config.DBDriver, dsn, a.config.StoreTimeout, a.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		db = store
	}

	// Initialize database schema
	ctx := context.Background()
	if err := db.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.logger.Info("Database initialized successfully")

	a.db = db
	return nil
}

// initAnalytics wires the ClickHouse event sink when enabled. The bot
// works the same without it; the sink only feeds reporting.
func (a *App) initAnalytics() error {
	if !a.config.AnalyticsEnabled {
		a.events = analytics.Nop{}
		return nil
	}

	tlsStatus := "without TLS"
	if a.config.ClickHouseUseTLS {
		tlsStatus = "with TLS"
	}
	a.logger.Info("Connecting to ClickHouse",
		zap.String("host", a.config.ClickHouseHost),
		zap.Int("port", a.config.ClickHousePort),
		zap.String("database", a.config.ClickHouseDatabase),
		zap.String("user", a.config.ClickHouseUser),
		zap.String("tls", tlsStatus),
	)

	sink, err := analytics.NewClickHouseSink(
		a.config.ClickHouseHost,
		a.config.ClickHousePort,
		a.config.ClickHouseDatabase,
		a.config.ClickHouseUser,
		a.config.ClickHousePassword,
		a.config.ClickHouseUseTLS,
	)
	if err != nil {
		return fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	a.events = sink
	return nil
}

// initCache wires the Redis counters when REDIS_ADDR is set.
func (a *App) initCache() {
	if a.config.RedisAddr == "" {
		return
	}

	counters := cache.New(a.config.RedisAddr, a.config.RedisPassword, a.config.RedisDB, a.logger)
	if err := counters.Ping(context.Background()); err != nil {
		a.logger.Warn("Redis unreachable, counters disabled", zap.Error(err))
		counters.Close()
		return
	}

	a.logger.Info("Redis counters enabled", zap.String("addr", a.config.RedisAddr))
	a.counters = counters
}

// initBot initializes the Telegram bot
func (a *App) initBot() error {
	telegramBot, err := bot.NewBot(a.config.TelegramToken, a.db, a.events, a.counters, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	a.bot = telegramBot
	return nil
}

// initHTTPServer initializes the HTTP server for health checks and webhook
func (a *App) initHTTPServer() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080" // Default port
	}

	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	})

	// Root endpoint
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		mode := "polling"
		if a.config.WebhookMode {
			mode = "webhook"
		}
		fmt.Fprintf(w, "BlindChat bot is running (mode: %s)", mode)
	})

	// Webhook endpoint (only used in webhook mode)
	mux.HandleFunc("/telegram-webhook", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			a.logger.Warn("Failed to decode webhook update", zap.Error(err))
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		// Process update in background to respond quickly to Telegram
		go a.bot.HandleWebhookUpdate(update)

		w.WriteHeader(http.StatusOK)
	})

	a.server = &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Start HTTP server in background
	go func() {
		a.logger.Info("Starting HTTP server", zap.String("port", port))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
}

// Run starts the application and blocks until shutdown
func (a *App) Run() error {
	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start bot in appropriate mode
	if a.config.WebhookMode {
		// Webhook mode: configure webhook and wait for HTTP requests
		a.logger.Info("Starting bot in webhook mode", zap.String("url", a.config.WebhookURL))
		if err := a.bot.StartWebhook(a.config.WebhookURL); err != nil {
			return fmt.Errorf("failed to setup webhook: %w", err)
		}
	} else {
		// Polling mode: actively poll Telegram servers
		go func() {
			if err := a.bot.Start(); err != nil {
				a.logger.Fatal("Failed to start bot", zap.Error(err))
			}
		}()
	}

	// Wait for interrupt signal
	<-sigChan

	a.logger.Info("Shutting down...")
	return a.Shutdown()
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown() error {
	// Shutdown HTTP server gracefully
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("HTTP server shutdown error", zap.Error(err))
	}

	if a.counters != nil {
		if err := a.counters.Close(); err != nil {
			a.logger.Warn("Error closing Redis client", zap.Error(err))
		}
	}
	if err := a.events.Close(); err != nil {
		a.logger.Warn("Error closing analytics sink", zap.Error(err))
	}

	// Close database
	if err := a.db.Close(); err != nil {
		a.logger.Error("Error closing database", zap.Error(err))
		return err
	}

	a.logger.Info("Shutdown complete")
	return nil
}
