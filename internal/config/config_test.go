package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 10, cfg.Dashboard.PageSize)
	assert.Equal(t, 15*time.Second, cfg.Dashboard.HighlightTTL)
	assert.Equal(t, "websocket", cfg.Realtime.Transport)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
}

func TestLoadFile_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  port: 9100
backend:
  endpoint: https://garage.example.com/api
dashboard:
  highlight_ttl: 5s
`)
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "https://garage.example.com/api", cfg.Backend.Endpoint)
	assert.Equal(t, 5*time.Second, cfg.Dashboard.HighlightTTL)
	// untouched keys keep their defaults
	assert.Equal(t, 10, cfg.Dashboard.PageSize)
	assert.Equal(t, path, cfg.ConfigPath)
}

func TestLoadFile_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9100\n"), 0644))

	t.Setenv("WORKSHOP_PORT", "9200")
	t.Setenv("WORKSHOP_API_URL", "http://api.internal/api")
	t.Setenv("WORKSHOP_REALTIME", "mqtt")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9200, cfg.Server.Port)
	assert.Equal(t, "http://api.internal/api", cfg.Backend.Endpoint)
	assert.Equal(t, "mqtt", cfg.Realtime.Transport)
}

func TestLoadFile_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [oops"), 0644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.Server.Port = 9300

	require.NoError(t, cfg.Save(path))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9300, loaded.Server.Port)
}

func TestWriteDefault_KeepsEnvSecretsOut(t *testing.T) {
	t.Setenv("WORKSHOP_IMAGE_HOST_KEY", "img-secret-123")
	t.Setenv("WORKSHOP_PORT", "9400")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefault(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "img-secret-123")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// env still applies when the file is loaded back
	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "img-secret-123", loaded.ImageHost.APIKey)
	assert.Equal(t, 9400, loaded.Server.Port)
}
