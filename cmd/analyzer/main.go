// Command analyzer implements the solwatch telemetry analytics engine.
//
// The analyzer subscribes to the per-device MQTT telemetry feeds, keeps a
// bounded rolling window of samples and predictions per device, and after
// every ingest republishes a derived snapshot: rolling aggregates,
// humidity/voltage correlation, trend change, prediction residuals, and a
// prioritized list of operational recommendations.
//
// The analyzer serves an HTTP API (default :8082) providing:
//   - GET /snapshot/current?device=<id> - Latest derived snapshot
//   - GET /export/current?device=<id>   - Sample history as CSV
//   - GET /devices                      - Tracked devices
//   - GET /healthz                      - Health check endpoint
//   - GET /metrics                      - Prometheus metrics endpoint
//
// Usage:
//
//	analyzer \
//	  -mqtt-broker=tcp://broker:1883 \
//	  -devices=panel-01,panel-02 \
//	  -storage=redis -redis-addr=redis:6379 \
//	  -archive=clickhouse -clickhouse-addr=clickhouse:9000
//
// Environment variables mirror every flag (MQTT_BROKER, DEVICES, STORAGE,
// REDIS_ADDR, ARCHIVE, CLICKHOUSE_ADDR, SAMPLE_CAPACITY, LOG_LEVEL, ...);
// a .env file in the working directory is honored.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HatiCode/solwatch/cmd/analyzer/config"
	"github.com/HatiCode/solwatch/cmd/analyzer/logger"
	"github.com/HatiCode/solwatch/cmd/analyzer/metrics"
	"github.com/HatiCode/solwatch/cmd/analyzer/router"
	"github.com/HatiCode/solwatch/cmd/analyzer/store"
	"github.com/HatiCode/solwatch/pkg/analyzer"
	"github.com/HatiCode/solwatch/pkg/archive"
	"github.com/HatiCode/solwatch/pkg/feed"
	"github.com/HatiCode/solwatch/pkg/httpx"
	solwatchtls "github.com/HatiCode/solwatch/pkg/tls"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg)
	slog.SetDefault(log)

	log.Info("starting solwatch analyzer",
		"version", version,
		"broker", cfg.MQTTBroker,
		"devices", cfg.Devices,
	)

	snapshotStore := store.New(cfg, log)
	if closer, ok := snapshotStore.(interface{ Close() error }); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				log.Error("failed to close store", "error", err)
			}
		}()
	}

	var sampleArchive analyzer.Archiver
	if cfg.Archive == "clickhouse" {
		ch, err := archive.NewClickHouse(archive.Config{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
		}, log)
		if err != nil {
			log.Error("failed to connect to clickhouse archive", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := ch.Close(); err != nil {
				log.Error("failed to close clickhouse archive", "error", err)
			}
		}()
		sampleArchive = ch
	}

	manager := analyzer.NewManager(analyzer.Options{
		SampleCapacity:     cfg.SampleCapacity,
		PredictionCapacity: cfg.PredictionCapacity,
		Store:              snapshotStore,
		Archive:            sampleArchive,
		Logger:             log,
		Metrics:            metrics.New(),
	})
	defer manager.Close()

	subscriber, err := feed.NewSubscriber(feed.Config{
		Broker:   cfg.MQTTBroker,
		ClientID: cfg.MQTTClientID,
		Username: cfg.MQTTUsername,
		Password: cfg.MQTTPassword,
		Devices:  cfg.Devices,
	}, &managerIngestor{manager: manager}, log)
	if err != nil {
		log.Error("failed to start feed subscriber", "error", err)
		os.Exit(1)
	}
	defer subscriber.Close()

	mux := router.SetupRoutes(snapshotStore, manager, cfg.StaleAfter, log)
	handler := httpx.RecoveryMiddleware(log)(httpx.LoggingMiddleware(log)(mux))
	httpServer := httpx.NewServer(cfg.Listen, handler, log)

	serverErr := make(chan error, 1)
	go func() {
		if cfg.TLS.Enabled {
			tlsConfig, err := solwatchtls.NewServerTLSConfig(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.CAFile)
			if err != nil {
				serverErr <- err
				return
			}
			httpServer.SetTLSConfig(tlsConfig)
			serverErr <- httpServer.StartTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
			return
		}
		serverErr <- httpServer.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig)
	case err := <-serverErr:
		if err != nil {
			log.Error("server failed", "error", err)
		}
	}

	log.Info("shutting down")
	subscriber.Close()

	if err := httpServer.Stop(10 * time.Second); err != nil {
		log.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("shutdown complete")
}

// managerIngestor routes feed payloads to the per-device analyzers.
type managerIngestor struct {
	manager *analyzer.Manager
}

func (mi *managerIngestor) Latest(device string, payload []byte) {
	mi.manager.GetOrCreate(device).IngestLatest(context.Background(), payload)
}

func (mi *managerIngestor) Raw(device string, payload []byte) {
	mi.manager.GetOrCreate(device).IngestRaw(context.Background(), payload)
}

func (mi *managerIngestor) Predictions(device string, payload []byte) {
	mi.manager.GetOrCreate(device).IngestPredictions(context.Background(), payload)
}
