package cmd

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scenerelay/config"
	"scenerelay/storage/memory"
	redisstorage "scenerelay/storage/redis"
)

func TestOpenGateway(t *testing.T) {
	log := zap.NewNop().Sugar()
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		cfg := config.Default()
		gw, err := openGateway(ctx, cfg, log)
		require.NoError(t, err)
		assert.IsType(t, &memory.Storage{}, gw)
		assert.NoError(t, gw.Close())
	})

	t.Run("redis", func(t *testing.T) {
		mini := miniredis.RunT(t)
		cfg := config.Default()
		cfg.Storage.Type = config.StorageRedis
		cfg.Storage.Redis.URL = "redis://" + mini.Addr()

		gw, err := openGateway(ctx, cfg, log)
		require.NoError(t, err)
		assert.IsType(t, &redisstorage.Storage{}, gw)
		assert.NoError(t, gw.Close())
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := config.Default()
		cfg.Storage.Type = "sqlite"
		_, err := openGateway(ctx, cfg, log)
		assert.ErrorIs(t, err, config.ErrUnknownStorage)
	})
}

func TestRootCommandWiring(t *testing.T) {
	root := NewRootCmd()

	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	assert.Equal(t, "serve", serve.Name())

	down, _, err := root.Find([]string{"migrate", "down"})
	require.NoError(t, err)
	assert.Equal(t, "down", down.Name())

	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestMigrateRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	configPath = ""
	err := migrateWith(nil)
	assert.ErrorContains(t, err, "storage.postgres.url")
}
