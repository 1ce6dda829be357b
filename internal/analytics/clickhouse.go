package analytics

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// ClickHouseSink appends events to the ClickHouse events table. The table
// itself is managed by the goose migrations in migrations/.
type ClickHouseSink struct {
	conn clickhouse.Conn
}

// NewClickHouseSink opens a native-protocol ClickHouse connection.
func NewClickHouseSink(host string, port int, database, user, password string, useTLS bool) (*ClickHouseSink, error) {
	addr := fmt.Sprintf("%s:%d", host, port)

	options := &clickhouse.Options{
		Addr:     []string{addr},
		Protocol: clickhouse.Native,
		Auth: clickhouse.Auth{
			Database: database,
			Username: user,
			Password: password,
		},
	}
	if useTLS {
		options.TLS = &tls.Config{
			InsecureSkipVerify: false,
		}
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseSink{conn: conn}, nil
}

// Record inserts one event row.
func (s *ClickHouseSink) Record(ctx context.Context, ev Event) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	err := s.conn.Exec(ctx,
		`INSERT INTO events (type, user_id, match_id, created_at) VALUES (?, ?, ?, ?)`,
		ev.Type, ev.UserID, ev.MatchID, at)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

// Close closes the connection.
func (s *ClickHouseSink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
