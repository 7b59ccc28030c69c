package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sentinel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadParsesOverridesAndLeavesRestDefault(t *testing.T) {
	path := writeYAML(t, `
worker_id: w1
node_id: n1
lock:
  max_retries: 9
  initial_backoff: 250ms
heartbeat:
  heartbeat_interval: 30s
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "w1", cfg.WorkerID)
	assert.Equal(t, "n1", cfg.NodeID)

	lockCfg, err := cfg.Lock.ToLockConfig()
	require.NoError(t, err)
	assert.Equal(t, 9, lockCfg.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, lockCfg.InitialBackoff)
	assert.Equal(t, 16*time.Second, lockCfg.MaxBackoff, "unset fields should fall back to the component default")

	hbCfg, err := cfg.Heartbeat.ToHeartbeatConfig()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, hbCfg.HeartbeatInterval)
	assert.Equal(t, 3, hbCfg.RetryAttempts, "unset fields should fall back to the component default")
}

func TestLoadRejectsUnparseableDuration(t *testing.T) {
	path := writeYAML(t, `
lock:
  initial_backoff: "not-a-duration"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	_, err = cfg.Lock.ToLockConfig()
	assert.Error(t, err)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestAllDefaultsReturnedWhenSectionOmitted(t *testing.T) {
	path := writeYAML(t, "worker_id: w1\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	balCfg, err := cfg.Balancer.ToBalancerConfig()
	require.NoError(t, err)
	assert.Equal(t, 0.05, balCfg.WeightFloor)
	assert.Equal(t, 0.8, balCfg.WeightCeiling)

	cacheCfg := cfg.Cache.ToCacheConfig()
	assert.Equal(t, 10000, cacheCfg.MaxEntries)
}
