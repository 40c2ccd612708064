// Package store selects the snapshot storage backend from configuration.
package store

import (
	"log/slog"
	"os"

	"github.com/HatiCode/solwatch/cmd/analyzer/config"
	"github.com/HatiCode/solwatch/pkg/storage"
)

// New builds the configured storage.Store. Redis connection failures are
// fatal: running with a silently different backend than configured would
// hide snapshots from the other consumers sharing it.
func New(cfg *config.Config, logger *slog.Logger) storage.Store {
	switch cfg.Storage {
	case "redis":
		s, err := storage.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisTTL)
		if err != nil {
			logger.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		logger.Info("using redis snapshot storage", "addr", cfg.RedisAddr, "ttl", cfg.RedisTTL)
		return s
	default:
		logger.Info("using in-memory snapshot storage")
		return storage.NewMemoryStore()
	}
}
