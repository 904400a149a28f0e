package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultIpfsURL, cfg.IpfsURL)
	assert.Equal(t, DefaultLighthouseURL, cfg.LighthouseURL)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Minute, cfg.Timeouts.HealthInterval)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("SNET_DOCSTORE_IPFS_URL", "http://kubo:5001")
	t.Setenv("SNET_DOCSTORE_DEBUG", "true")
	t.Setenv("SNET_DOCSTORE_GATEWAYS", "https://a.example/ipfs/,https://b.example/ipfs/")
	t.Setenv("SNET_DOCSTORE_TIMEOUTS_DIAL", "2s")
	t.Setenv("SNET_DOCSTORE_RETRY_MAX_ATTEMPTS", "7")
	t.Setenv("SNET_DOCSTORE_RETRY_BACKOFF_FACTOR", "1.5")
	t.Setenv("SNET_DOCSTORE_CACHE_CONTENT_TTL", "1h")
	t.Setenv("SNET_DOCSTORE_MAX_CONTENT_BYTES", "1048576")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://kubo:5001", cfg.IpfsURL)
	assert.True(t, cfg.Debug)
	assert.Equal(t, []string{"https://a.example/ipfs/", "https://b.example/ipfs/"}, cfg.Gateways)
	assert.Equal(t, 2*time.Second, cfg.Timeouts.Dial)
	assert.Equal(t, 7, cfg.Retry.MaxAttempts)
	assert.InDelta(t, 1.5, cfg.Retry.BackoffFactor, 1e-9)
	assert.Equal(t, time.Hour, cfg.Cache.ContentTTL)
	assert.Equal(t, 500, cfg.Cache.ContentSize)
	assert.Equal(t, int64(1<<20), cfg.MaxContentBytes)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ipfs_url: http://10.0.0.5:5001
local_repo_path: /var/lib/docstore
gateway_headers:
  authorization: Bearer abc
timeouts:
  health_interval: 15s
`), 0o600))
	t.Setenv("SNET_DOCSTORE_IPFS_URL", "http://override:5001")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://override:5001", cfg.IpfsURL, "environment wins over the file")
	assert.Equal(t, "/var/lib/docstore", cfg.LocalRepoPath)
	assert.Equal(t, "Bearer abc", cfg.GatewayHeaders["authorization"])
	assert.Equal(t, 15*time.Second, cfg.Timeouts.HealthInterval)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	t.Setenv("SNET_DOCSTORE_IPFS_URL", "not a url")
	_, err = Load("")
	require.ErrorContains(t, err, "invalid configuration")
}
