package repositories

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"supermock/internal/core/ports"
	"supermock/internal/infrastructure/distributed"
	"supermock/internal/infrastructure/repositories/memory"
	"supermock/internal/infrastructure/repositories/sqlite"
	"supermock/pkg/config"
)

// Factory owns the store and the optional Redis connection.
type Factory struct {
	store       ports.Store
	redisClient *redis.Client
	logger      *zap.SugaredLogger
}

// NewFactory opens the configured store. Redis is optional: when it cannot
// be reached the instance runs standalone.
func NewFactory(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*Factory, error) {
	f := &Factory{logger: logger}

	switch cfg.Storage.Driver {
	case "sqlite":
		store, err := sqlite.Open(ctx, cfg.Storage.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		f.store = store
	default:
		f.store = memory.NewStore()
		logger.Info("using memory store")
	}

	if cfg.Redis.Enabled {
		client, err := distributed.NewRedisClient(ctx,
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, running standalone",
				"error", err,
			)
		} else {
			f.redisClient = client
		}
	}

	return f, nil
}

func (f *Factory) Store() ports.Store {
	return f.store
}

// Redis returns the shared client, or nil when running standalone.
func (f *Factory) Redis() *redis.Client {
	return f.redisClient
}

// Close closes the store and the Redis connection.
func (f *Factory) Close() error {
	var firstErr error
	if f.redisClient != nil {
		if err := f.redisClient.Close(); err != nil {
			firstErr = err
		}
	}
	if err := f.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// HealthCheck checks the store and, when used, Redis.
func (f *Factory) HealthCheck(ctx context.Context) error {
	if err := f.store.HealthCheck(ctx); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if f.redisClient != nil {
		if err := f.redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}
