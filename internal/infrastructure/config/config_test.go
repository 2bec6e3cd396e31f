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

	assert.Equal(t, "8090", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Bridge.RequestTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("BRIDGE_REQUEST_TIMEOUT", "5s")
	t.Setenv("LOG_DEV", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Bridge.RequestTimeout)
	assert.True(t, cfg.Logging.Development)
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")
	content := `
channels:
  - name: system.info
    timeout: 10s
  - name: storage.set
    enabled: false
  - name: host.heartbeat
    enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	m, err := LoadManifest(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"storage.set"}, m.Disabled())

	timeouts := m.Timeouts()
	assert.Equal(t, 10*time.Second, timeouts["system.info"])
	assert.NotContains(t, timeouts, "storage.set")
}

func TestLoadManifestErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadManifest(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("unnamed channel", func(t *testing.T) {
		path := filepath.Join(dir, "unnamed.yaml")
		require.NoError(t, os.WriteFile(path, []byte("channels:\n  - enabled: false\n"), 0o644))
		_, err := LoadManifest(path)
		assert.Error(t, err)
	})

	t.Run("bad timeout", func(t *testing.T) {
		path := filepath.Join(dir, "badtimeout.yaml")
		require.NoError(t, os.WriteFile(path, []byte("channels:\n  - name: a\n    timeout: soon\n"), 0o644))
		_, err := LoadManifest(path)
		assert.Error(t, err)
	})

	t.Run("bad yaml", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("channels: ["), 0o644))
		_, err := LoadManifest(path)
		assert.Error(t, err)
	})
}
