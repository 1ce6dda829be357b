// Command migrate manages the ClickHouse analytics schema with goose.
// The relational store migrates itself on startup; only the events
// table lives here.
//
// Usage: migrate [-dir <path>] [up|down|status|version|create <name>]
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
)

func main() {
	migrationsDir := flag.String("dir", "./migrations", "directory holding the goose SQL migrations")
	flag.Parse()

	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using existing environment variables")
	}

	host := getEnv("CLICKHOUSE_HOST", "localhost")
	port := getEnv("CLICKHOUSE_PORT", "9000")
	database := getEnv("CLICKHOUSE_DATABASE", "default")
	user := getEnv("CLICKHOUSE_USER", "default")
	password := getEnv("CLICKHOUSE_PASSWORD", "")
	useTLS := getEnv("CLICKHOUSE_USE_TLS", "false")

	// goose drives the database/sql driver, so the DSN form is used here
	// rather than the native-protocol options the event sink uses.
	dsn := fmt.Sprintf("clickhouse://%s:%s@%s:%s/%s?dial_timeout=10s&max_execution_time=60",
		user, password, host, port, database)
	if useTLS == "true" {
		dsn += "&secure=true"
	}

	db, err := sql.Open("clickhouse", dsn)
	if err != nil {
		log.Fatalf("Failed to connect to ClickHouse: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping ClickHouse: %v", err)
	}

	log.Printf("Connected to ClickHouse at %s:%s", host, port)

	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	if err := goose.SetDialect("clickhouse"); err != nil {
		log.Fatalf("Failed to set dialect: %v", err)
	}

	log.Printf("Running analytics schema migration %q from %s", command, *migrationsDir)
	switch command {
	case "up":
		if err := goose.Up(db, *migrationsDir); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		log.Println("Analytics schema is up to date")
	case "down":
		if err := goose.Down(db, *migrationsDir); err != nil {
			log.Fatalf("Failed to rollback migration: %v", err)
		}
		log.Println("Rollback completed")
	case "status":
		if err := goose.Status(db, *migrationsDir); err != nil {
			log.Fatalf("Failed to get migration status: %v", err)
		}
	case "version":
		version, err := goose.GetDBVersion(db)
		if err != nil {
			log.Fatalf("Failed to get version: %v", err)
		}
		log.Printf("Current migration version: %d", version)
	case "create":
		if flag.NArg() < 2 {
			log.Fatal("Usage: migrate [-dir <path>] create <migration_name>")
		}
		name := flag.Arg(1)
		if err := goose.Create(db, *migrationsDir, name, "sql"); err != nil {
			log.Fatalf("Failed to create migration: %v", err)
		}
		log.Printf("Created migration: %s", name)
	default:
		log.Fatalf("Unknown command: %s. Available commands: up, down, status, version, create", command)
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
