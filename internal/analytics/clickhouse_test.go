package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clickhouseTC "github.com/testcontainers/testcontainers-go/modules/clickhouse"
)

// setupTestSink creates a test ClickHouse instance using testcontainers
func setupTestSink(t *testing.T) (*ClickHouseSink, func()) {
	ctx := context.Background()

	// Start ClickHouse container
	clickhouseContainer, err := clickhouseTC.Run(ctx,
		"clickhouse/clickhouse-server:24.3.3.102-alpine",
		clickhouseTC.WithUsername("default"),
		clickhouseTC.WithPassword(""),
		clickhouseTC.WithDatabase("default"),
	)
	require.NoError(t, err, "Failed to start ClickHouse container")

	// Get connection details
	host, err := clickhouseContainer.Host(ctx)
	require.NoError(t, err)

	port, err := clickhouseContainer.MappedPort(ctx, "9000/tcp")
	require.NoError(t, err)

	sink, err := NewClickHouseSink(host, port.Int(), "default", "default", "", false)
	require.NoError(t, err, "Failed to connect to ClickHouse")

	// Create the events table the way the goose migration does.
	err = sink.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS events (
			type String,
			user_id Int64,
			match_id UInt64,
			created_at DateTime DEFAULT now()
		) ENGINE = MergeTree()
		ORDER BY (created_at, type)
	`)
	require.NoError(t, err, "Failed to create events table")

	cleanup := func() {
		sink.Close()
		clickhouseContainer.Terminate(ctx)
	}

	return sink, cleanup
}

func TestClickHouseSink_Record(t *testing.T) {
	sink, cleanup := setupTestSink(t)
	defer cleanup()

	ctx := context.Background()

	at := time.Now().UTC().Truncate(time.Second)
	err := sink.Record(ctx, Event{Type: EventMatchCreated, UserID: 42, MatchID: 7, At: at})
	require.NoError(t, err)

	// Zero At is filled in at insert time.
	err = sink.Record(ctx, Event{Type: EventSearch, UserID: 42})
	require.NoError(t, err)

	var count uint64
	row := sink.conn.QueryRow(ctx, `SELECT count() FROM events WHERE user_id = 42`)
	require.NoError(t, row.Scan(&count))
	assert.Equal(t, uint64(2), count)

	var matchID uint64
	var createdAt time.Time
	row = sink.conn.QueryRow(ctx,
		`SELECT match_id, created_at FROM events WHERE type = ?`, EventMatchCreated)
	require.NoError(t, row.Scan(&matchID, &createdAt))
	assert.Equal(t, uint64(7), matchID)
	assert.WithinDuration(t, at, createdAt, time.Second)
}

func TestClickHouseSink_ConcurrentRecords(t *testing.T) {
	sink, cleanup := setupTestSink(t)
	defer cleanup()

	ctx := context.Background()

	numGoroutines := 10
	done := make(chan bool, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(idx int) {
			err := sink.Record(ctx, Event{Type: EventMessageRelayed, UserID: int64(idx), MatchID: 1})
			assert.NoError(t, err)
			done <- true
		}(i)
	}

	for i := 0; i < numGoroutines; i++ {
		<-done
	}

	var count uint64
	row := sink.conn.QueryRow(ctx, `SELECT count() FROM events WHERE type = ?`, EventMessageRelayed)
	require.NoError(t, row.Scan(&count))
	assert.Equal(t, uint64(numGoroutines), count)
}

func TestClickHouseSink_Close(t *testing.T) {
	sink, cleanup := setupTestSink(t)
	defer cleanup()

	err := sink.Close()
	assert.NoError(t, err)
}
