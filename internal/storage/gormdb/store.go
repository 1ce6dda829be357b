// Package gormdb implements storage.Storage on a relational database via
// GORM. Postgres is the production engine; sqlite serves local development
// and tests. Every racy mutation is expressed as a conditional write so
// the database, not the caller, arbitrates concurrent requests.
package gormdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"blindchat/internal/models"
	"blindchat/internal/storage"
)

// DriverPostgres and DriverSQLite are the accepted DB_DRIVER values.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Store struct {
	db      *gorm.DB
	timeout time.Duration
	logger  *zap.Logger
}

// Open connects to the database selected by driver and returns a Store.
// timeout bounds every store operation; zero disables the bound.
func Open(driver, dsn string, timeout time.Duration, logger *zap.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		// Translate engine-specific failures (duplicate keys in
		// particular) into gorm sentinel errors.
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	logger.Info("Connected to database", zap.String("driver", driver))
	return New(db, timeout, logger), nil
}

// New wraps an existing gorm connection. Used by tests with sqlite :memory:.
func New(db *gorm.DB, timeout time.Duration, logger *zap.Logger) *Store {
	return &Store{db: db, timeout: timeout, logger: logger}
}

// Initialize keeps the schema in sync with the models.
func (s *Store) Initialize(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(
		&models.Profile{},
		&models.QueueEntry{},
		&models.Match{},
		&models.MatchParticipant{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// opCtx applies the per-operation timeout.
func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// mapErr converts gorm and context errors into the storage sentinels.
// Anything unclassified is an ErrUnavailable: a failed lookup must not
// masquerade as "not found".
func mapErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return storage.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return storage.ErrAlreadyExists
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%s timed out: %w", op, storage.ErrUnavailable)
	default:
		return fmt.Errorf("%s: %v: %w", op, err, storage.ErrUnavailable)
	}
}
