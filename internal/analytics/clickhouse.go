// Package analytics mirrors activity entries into ClickHouse for
// reporting queries. The mirror is append-only, asynchronous and
// non-authoritative; the transactional activity table in MySQL remains
// the source of truth.
package analytics

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseClient wraps a ClickHouse connection for activity analytics
type ClickHouseClient struct {
	conn driver.Conn
}

// ClientConfig holds ClickHouse connection parameters
type ClientConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// NewClickHouseClient creates a new ClickHouse client for activity_events
func NewClickHouseClient(cfg ClientConfig) (*ClickHouseClient, error) {
	options := &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:      5 * time.Second,
		MaxOpenConns:     3,
		MaxIdleConns:     2,
		ConnMaxLifetime:  5 * time.Minute,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	}

	// TLS for non-private networks
	if !isPrivateHost(cfg.Host) {
		options.TLS = &tls.Config{InsecureSkipVerify: true}
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("analytics: failed to open ClickHouse: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("analytics: ClickHouse ping failed: %w", err)
	}

	return &ClickHouseClient{conn: conn}, nil
}

func isPrivateHost(host string) bool {
	if host == "localhost" || host == "127.0.0.1" || host == "host.docker.internal" {
		return true
	}
	return strings.HasPrefix(host, "10.") ||
		strings.HasPrefix(host, "172.") ||
		strings.HasPrefix(host, "192.168.")
}

// Insert appends one row to activity_events
func (c *ClickHouseClient) Insert(ctx context.Context, e Event) error {
	return c.conn.Exec(ctx,
		`INSERT INTO activity_events (activity_id, action, action_by, action_on, collection, item)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ActivityID, e.Action, e.ActionBy, e.ActionOn, e.Collection, e.Item)
}

// ActionCounts returns mutation counts per action since the given time
func (c *ClickHouseClient) ActionCounts(ctx context.Context, since time.Time) (map[string]uint64, error) {
	rows, err := c.conn.Query(ctx,
		`SELECT action, count() FROM activity_events WHERE action_on >= ? GROUP BY action`,
		since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]uint64)
	for rows.Next() {
		var action string
		var count uint64
		if err := rows.Scan(&action, &count); err != nil {
			return nil, err
		}
		counts[action] = count
	}
	return counts, rows.Err()
}

// Event is one mirrored activity entry
type Event struct {
	ActivityID uint64    `json:"activity_id"`
	Action     string    `json:"action"`
	ActionBy   int64     `json:"action_by"`
	ActionOn   time.Time `json:"action_on"`
	Collection string    `json:"collection"`
	Item       string    `json:"item"`
}
