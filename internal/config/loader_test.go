package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatrelay.json")

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "file", cfg.Session.Backend)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.NotEmpty(t, cfg.Session.FilePath)
	assert.NotEmpty(t, cfg.Knowledge.Path)
}

func TestLoader_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chatrelay.json")

	content := `{
		"session": {
			"backend": "redis",
			"timeout": "2h",
			"redis": {"addr": "redis.internal:6379"}
		},
		"server": {"port": 8080},
		"data_dir": "` + dir + `"
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Session.Backend)
	assert.Equal(t, 2*time.Hour, cfg.Session.Timeout)
	assert.Equal(t, "redis.internal:6379", cfg.Session.Redis.Addr)
	assert.Equal(t, 8080, cfg.Server.Port)

	// Derived paths land under the configured data dir.
	assert.Equal(t, filepath.Join(dir, "sessions_db.json"), cfg.Session.FilePath)
	assert.Equal(t, filepath.Join(dir, "knowledge.txt"), cfg.Knowledge.Path)
}

func TestLoader_EnvOverridesWithoutFile(t *testing.T) {
	t.Setenv("CHATRELAY_SERVER_PORT", "8080")
	t.Setenv("CHATRELAY_SESSION_BACKEND", "redis")
	t.Setenv("CHATRELAY_SESSION_REDIS_ADDR", "redis.internal:6379")

	path := filepath.Join(t.TempDir(), "chatrelay.json")

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Session.Backend)
	assert.Equal(t, "redis.internal:6379", cfg.Session.Redis.Addr)
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	t.Setenv("CHATRELAY_SERVER_PORT", "8080")

	path := filepath.Join(t.TempDir(), "chatrelay.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server": {"port": 4000}}`), 0644))

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoader_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatrelay.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0644))

	_, err := NewLoader(path).Load()
	assert.Error(t, err)
}

func TestLoader_SaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatrelay.json")
	loader := NewLoader(path)

	cfg := DefaultConfig()
	cfg.Server.Port = 9999
	cfg.Session.Backend = "redis"
	require.NoError(t, loader.Save(cfg))

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, 9999, loaded.Server.Port)
	assert.Equal(t, "redis", loaded.Session.Backend)
}
