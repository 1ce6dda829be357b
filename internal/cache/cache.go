// Package cache keeps best-effort Redis counters for the help screen.
// A cache failure is logged and swallowed; the chat path never depends
// on Redis being up.
package cache

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyMatchesTotal  = "blindchat:matches:total"
	keySearchesTotal = "blindchat:searches:total"
)

// Counters wraps a Redis client for the two bot-wide counters.
type Counters struct {
	client *redis.Client
	logger *zap.Logger
}

// New creates a Counters backed by the Redis instance at addr.
func New(addr, password string, db int, logger *zap.Logger) *Counters {
	opts := &redis.Options{Addr: addr}
	if password != "" {
		opts.Password = password
	}
	if db != 0 {
		opts.DB = db
	}
	return &Counters{client: redis.NewClient(opts), logger: logger}
}

// NewWithClient wraps an existing client. Used by tests with miniredis.
func NewWithClient(client *redis.Client, logger *zap.Logger) *Counters {
	return &Counters{client: client, logger: logger}
}

func (c *Counters) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// IncrMatches bumps the matches-served counter.
func (c *Counters) IncrMatches(ctx context.Context) {
	if err := c.client.Incr(ctx, keyMatchesTotal).Err(); err != nil {
		c.logger.Warn("Failed to increment match counter", zap.Error(err))
	}
}

// IncrSearches bumps the searches counter.
func (c *Counters) IncrSearches(ctx context.Context) {
	if err := c.client.Incr(ctx, keySearchesTotal).Err(); err != nil {
		c.logger.Warn("Failed to increment search counter", zap.Error(err))
	}
}

// Totals returns (matches, searches). Missing keys count as zero.
func (c *Counters) Totals(ctx context.Context) (int64, int64, error) {
	matches, err := c.client.Get(ctx, keyMatchesTotal).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, 0, err
	}
	searches, err := c.client.Get(ctx, keySearchesTotal).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, 0, err
	}
	return matches, searches, nil
}

func (c *Counters) Close() error {
	return c.client.Close()
}
