package monitoring

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"supermock/internal/core/ports"
)

// AddRedisCheck adds a Redis health check
func (h *HealthChecker) AddRedisCheck(client redis.UniversalClient, timeout time.Duration) {
	h.AddCheck("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}, timeout)
}

// AddStoreCheck adds a persistence store health check
func (h *HealthChecker) AddStoreCheck(store ports.Store, timeout time.Duration) {
	h.AddCheck("store", store.HealthCheck, timeout)
}
