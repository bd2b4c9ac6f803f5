package dedup

import (
	"context"
	"fmt"

	"laborx-notifier/internal/config"
)

// OpenStore builds the Store selected by cfg.Backend.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case config.StoreFile, "":
		return NewFileStore(cfg.Path), nil
	case config.StoreRedis:
		return NewRedisStore(ctx, cfg.RedisURL, cfg.RedisKey)
	case config.StorePostgres:
		return NewPostgresStore(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
