package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:7410", cfg.Listen)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 8, cfg.Host.PoolSize)
	assert.Equal(t, 64, cfg.Host.QueueSize)

	retention, err := cfg.Retention()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, retention)

	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "axond.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: 127.0.0.1:9000
http_port: 9090
host:
  pool_size: 4
  queue_size: 16
  retention: 90s
rate_limit:
  enabled: true
  requests_per_second: 50
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Listen)
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, 4, cfg.Host.PoolSize)
	assert.Equal(t, 16, cfg.Host.QueueSize)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, float64(50), cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst, "unset fields keep their defaults")

	retention, err := cfg.Retention()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, retention)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("AXON_LISTEN", "127.0.0.1:7777")
	t.Setenv("AXON_POOL_SIZE", "2")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7777", cfg.Listen)
	assert.Equal(t, 2, cfg.Host.PoolSize)
}

func TestValidate_Rejections(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	cfg.Host.Retention = "soon"
	assert.Error(t, cfg.Validate())

	cfg.Host.Retention = "1m"
	cfg.TLS.Enabled = true
	assert.Error(t, cfg.Validate(), "tls without cert/key must fail")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig("/does/not/exist.yaml")
	assert.Error(t, err)
}
