package driveragent

import (
	"context"
	"fmt"

	"courier-driver/internal/general/config"
	"courier-driver/internal/general/kvstore"
	"courier-driver/internal/general/logger"
	"courier-driver/internal/general/postgres"
	"courier-driver/internal/ports"
)

// openStore returns the configured key-value store and its release func.
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (ports.KeyValueStore, func(), error) {
	switch cfg.Storage.Driver {
	case "memory":
		return kvstore.NewMemoryStore(), func() {}, nil

	case "file":
		store, err := kvstore.OpenFileStore(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		log.Info(ctx, "storage_opened", "Using file storage", map[string]any{"path": cfg.Storage.Path})
		return store, func() {}, nil

	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		store, err := postgres.NewKVStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
