package repositories

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supermock/internal/infrastructure/repositories/memory"
	"supermock/internal/infrastructure/repositories/sqlite"
	"supermock/pkg/config"
	"supermock/pkg/logger"
)

func TestFactoryMemory(t *testing.T) {
	cfg := config.DefaultConfig()

	f, err := NewFactory(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)
	defer f.Close()

	assert.IsType(t, &memory.Store{}, f.Store())
	assert.Nil(t, f.Redis())
	assert.NoError(t, f.HealthCheck(context.Background()))
}

func TestFactorySQLite(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.Driver = "sqlite"
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "f.db")

	f, err := NewFactory(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)

	assert.IsType(t, &sqlite.Store{}, f.Store())
	assert.NoError(t, f.HealthCheck(context.Background()))
	assert.NoError(t, f.Close())
}

func TestFactoryRedisUnavailable(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Redis.Enabled = true
	cfg.Redis.Address = "127.0.0.1:1"

	f, err := NewFactory(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)
	defer f.Close()

	assert.Nil(t, f.Redis(), "unreachable redis falls back to standalone")
}
