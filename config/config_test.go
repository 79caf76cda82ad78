package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, "guest_", cfg.Game.GuestPrefix)
	assert.Equal(t, []string{"Combat"}, cfg.Game.SinglePlayerScenes)
	assert.True(t, cfg.Game.ResetProgressOnDeath)
	assert.Equal(t, StorageMemory, cfg.Storage.Type)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":8080"
  read_timeout: 30s
game:
  single_player_scenes: ["Combat", "Tutorial"]
  reset_progress_on_death: false
storage:
  type: redis
  redis:
    url: redis://cache:6379/1
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 64, cfg.Server.SendQueueSize, "unset fields keep defaults")
	assert.Equal(t, []string{"Combat", "Tutorial"}, cfg.Game.SinglePlayerScenes)
	assert.False(t, cfg.Game.ResetProgressOnDeath)
	assert.Equal(t, StorageRedis, cfg.Storage.Type)
	assert.Equal(t, "redis://cache:6379/1", cfg.Storage.Redis.URL)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SCENERELAY_ADDR", ":9999")
	t.Setenv("SCENERELAY_STORAGE", StoragePostgres)
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/game?sslmode=disable")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, StoragePostgres, cfg.Storage.Type)
	assert.Equal(t, "postgres://u:p@db:5432/game?sslmode=disable", cfg.Storage.Postgres.URL)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		errIs error
	}{
		{name: "unknown storage", body: "storage:\n  type: mongo\n", errIs: ErrUnknownStorage},
		{name: "postgres without url", body: "storage:\n  type: postgres\n"},
		{name: "empty guest prefix", body: "game:\n  guest_prefix: \"\"\n"},
		{name: "invalid yaml", body: "server: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			if tt.errIs != nil {
				assert.ErrorIs(t, err, tt.errIs)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
