// Package config provides configuration parsing for the analyzer.
//
// It handles command-line flags and environment variables, with flags
// taking precedence. A .env file in the working directory is loaded first
// (godotenv), so container deployments can ship defaults alongside the
// binary. The Config struct covers:
//   - MQTT feed settings (broker, credentials, watched devices)
//   - Buffer capacities (samples, predictions)
//   - Snapshot storage (memory or redis)
//   - Optional ClickHouse archive
//   - HTTP API, logging, and TLS settings
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/HatiCode/solwatch/pkg/tls"
)

// Config holds all analyzer configuration.
type Config struct {
	Listen    string
	LogFormat string
	LogLevel  string

	Storage       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration

	TLS tls.Config

	MQTTBroker   string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string
	Devices      []string

	SampleCapacity     int
	PredictionCapacity int

	// StaleAfter marks served snapshots stale when older than this;
	// typically twice the expected feed cadence.
	StaleAfter time.Duration

	Archive            string
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string
}

// ParseFlags parses command-line flags with environment variable
// fallbacks into a Config. A .env file, when present, is loaded into the
// environment before flags are evaluated.
func ParseFlags() *Config {
	// Missing .env is the normal case; only an explicit file matters.
	_ = godotenv.Load()

	cfg := &Config{}

	flag.StringVar(&cfg.Listen, "listen", getEnv("LISTEN", ":8082"), "HTTP listen address")

	flag.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	flag.StringVar(&cfg.Storage, "storage", getEnv("STORAGE", "memory"), "Snapshot storage backend: memory or redis")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis server address")
	flag.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")
	flag.DurationVar(&cfg.RedisTTL, "redis-ttl", getEnvDuration("REDIS_TTL", 30*time.Minute), "Redis snapshot TTL")

	flag.BoolVar(&cfg.TLS.Enabled, "tls-enabled", getEnvBool("TLS_ENABLED", false), "Enable TLS for HTTP server")
	flag.StringVar(&cfg.TLS.CertFile, "tls-cert-file", getEnv("TLS_CERT_FILE", ""), "TLS certificate file")
	flag.StringVar(&cfg.TLS.KeyFile, "tls-key-file", getEnv("TLS_KEY_FILE", ""), "TLS private key file")
	flag.StringVar(&cfg.TLS.CAFile, "tls-ca-file", getEnv("TLS_CA_FILE", ""), "TLS CA certificate file for client verification")

	flag.StringVar(&cfg.MQTTBroker, "mqtt-broker", getEnv("MQTT_BROKER", "tcp://localhost:1883"), "MQTT broker address")
	flag.StringVar(&cfg.MQTTClientID, "mqtt-client-id", getEnv("MQTT_CLIENT_ID", "solwatch-analyzer"), "MQTT client identifier")
	flag.StringVar(&cfg.MQTTUsername, "mqtt-username", getEnv("MQTT_USERNAME", ""), "MQTT username")
	flag.StringVar(&cfg.MQTTPassword, "mqtt-password", getEnv("MQTT_PASSWORD", ""), "MQTT password")

	var devices string
	flag.StringVar(&devices, "devices", getEnv("DEVICES", ""), "Comma-separated device IDs to watch (empty = discover all)")

	flag.IntVar(&cfg.SampleCapacity, "sample-capacity", getEnvInt("SAMPLE_CAPACITY", 300), "Max buffered samples per device")
	flag.IntVar(&cfg.PredictionCapacity, "prediction-capacity", getEnvInt("PREDICTION_CAPACITY", 500), "Max buffered predictions per device")

	flag.DurationVar(&cfg.StaleAfter, "stale-after", getEnvDuration("STALE_AFTER", 2*time.Minute), "Age past which served snapshots are flagged stale")

	flag.StringVar(&cfg.Archive, "archive", getEnv("ARCHIVE", "none"), "Sample archive backend: none or clickhouse")
	flag.StringVar(&cfg.ClickHouseAddr, "clickhouse-addr", getEnv("CLICKHOUSE_ADDR", "localhost:9000"), "ClickHouse server address")
	flag.StringVar(&cfg.ClickHouseDatabase, "clickhouse-database", getEnv("CLICKHOUSE_DATABASE", "solwatch"), "ClickHouse database name")
	flag.StringVar(&cfg.ClickHouseUsername, "clickhouse-username", getEnv("CLICKHOUSE_USERNAME", "default"), "ClickHouse username")
	flag.StringVar(&cfg.ClickHousePassword, "clickhouse-password", getEnv("CLICKHOUSE_PASSWORD", ""), "ClickHouse password")

	flag.Parse()

	if devices != "" {
		for _, d := range strings.Split(devices, ",") {
			if d = strings.TrimSpace(d); d != "" {
				cfg.Devices = append(cfg.Devices, d)
			}
		}
	}

	return cfg
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("mqtt broker address required")
	}

	switch c.Storage {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown storage backend %q (expected memory or redis)", c.Storage)
	}

	switch c.Archive {
	case "none", "clickhouse":
	default:
		return fmt.Errorf("unknown archive backend %q (expected none or clickhouse)", c.Archive)
	}

	if c.SampleCapacity <= 0 {
		return fmt.Errorf("sample capacity must be positive, got %d", c.SampleCapacity)
	}
	if c.PredictionCapacity <= 0 {
		return fmt.Errorf("prediction capacity must be positive, got %d", c.PredictionCapacity)
	}

	if err := c.TLS.Validate(); err != nil {
		return fmt.Errorf("tls config: %w", err)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}
