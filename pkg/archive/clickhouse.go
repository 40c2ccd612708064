// Package archive provides optional long-term storage of accepted
// telemetry samples in ClickHouse. The in-memory buffers are bounded and
// process-local; the archive is where history survives eviction and
// restarts. Archiving is best-effort and never blocks the ingest path.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/HatiCode/solwatch/pkg/telemetry"
)

// telemetrySamplesTableSQL creates the archive table.
const telemetrySamplesTableSQL = `
	CREATE TABLE IF NOT EXISTS telemetry_samples (
		timestamp DateTime64(3),
		device_id String,
		voltage Float64,
		temperature Float64,
		humidity Float64,
		panel_angle Float64
	) ENGINE = MergeTree()
	ORDER BY (device_id, timestamp)
	PARTITION BY toYYYYMM(timestamp)
`

// Config holds ClickHouse connection settings.
type Config struct {
	Addr     string
	Database string
	Username string
	Password string
}

// ClickHouse archives samples into the telemetry_samples table.
type ClickHouse struct {
	conn   driver.Conn
	logger *slog.Logger
}

// NewClickHouse connects to ClickHouse and ensures the archive schema
// exists.
func NewClickHouse(cfg Config, logger *slog.Logger) (*ClickHouse, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect to clickhouse: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	if err := conn.Exec(ctx, telemetrySamplesTableSQL); err != nil {
		return nil, fmt.Errorf("create archive table: %w", err)
	}

	logger.Info("connected to ClickHouse archive", "addr", cfg.Addr, "database", cfg.Database)

	return &ClickHouse{conn: conn, logger: logger}, nil
}

// ArchiveSamples inserts a batch of accepted samples. Duplicates from
// redelivered batches are tolerated; the MergeTree ordering keeps reads
// cheap and downstream queries deduplicate by (device_id, timestamp).
func (c *ClickHouse) ArchiveSamples(ctx context.Context, device string, samples []telemetry.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	batch, err := c.conn.PrepareBatch(ctx, `
		INSERT INTO telemetry_samples (timestamp, device_id, voltage, temperature, humidity, panel_angle)
	`)
	if err != nil {
		return fmt.Errorf("prepare archive batch: %w", err)
	}

	for _, s := range samples {
		if err := batch.Append(s.Timestamp, device, s.Voltage, s.Temperature, s.Humidity, s.PanelAngle); err != nil {
			return fmt.Errorf("append sample to archive batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send archive batch: %w", err)
	}
	return nil
}

// Close releases the ClickHouse connection.
func (c *ClickHouse) Close() error {
	return c.conn.Close()
}
