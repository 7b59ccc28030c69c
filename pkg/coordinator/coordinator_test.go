package coordinator

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/task-sentinel/pkg/balancer"
	"github.com/cuemby/task-sentinel/pkg/heartbeat"
	"github.com/cuemby/task-sentinel/pkg/lock"
	"github.com/cuemby/task-sentinel/pkg/memsync"
	"github.com/cuemby/task-sentinel/pkg/registry"
	"github.com/cuemby/task-sentinel/pkg/types"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		WorkerID:     "w1",
		NodeID:       "n1",
		StoreBackend: "bolt",
		BoltPath:     filepath.Join(t.TempDir(), "data"),
		Lock:         lock.DefaultConfig(),
		Heartbeat:    heartbeat.DefaultConfig(),
		Registry:     registry.DefaultConfig(),
		Memsync:      memsync.DefaultConfig(),
		Balancer:     balancer.DefaultConfig(),
	}
}

func TestNewWiresEveryComponent(t *testing.T) {
	c, err := New(testConfig(t))
	require.NoError(t, err)
	assert.NotNil(t, c.Lock)
	assert.NotNil(t, c.Heartbeat)
	assert.NotNil(t, c.Registry)
	assert.NotNil(t, c.Balancer)
	require.NoError(t, c.Stop())
}

func TestStartStopRegisterAndSelectWorker(t *testing.T) {
	c, err := New(testConfig(t))
	require.NoError(t, err)
	c.Start()
	defer func() { require.NoError(t, c.Stop()) }()

	ctx := context.Background()
	w, err := c.Registry.Register(ctx, types.Registration{
		NodeID:             "n1",
		Capabilities:       []string{"build"},
		MaxConcurrentTasks: 4,
	})
	require.NoError(t, err)

	workers := c.Registry.Discover(ctx, registry.Filter{})
	require.Len(t, workers, 1)
	assert.Equal(t, w.ID, workers[0].ID)

	req := types.TaskRequirements{RequiredCapabilities: map[string]struct{}{"build": {}}, Complexity: 1}
	chosen, err := c.Balancer.SelectWorker(req, workers, balancer.StrategyLeastLoaded)
	require.NoError(t, err)
	assert.Equal(t, w.ID, chosen.ID)
}

func TestRejectsUnknownStoreBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.StoreBackend = "carrier-pigeon"
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestNewRequiresRedisAddrForRedisBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.StoreBackend = "redis"
	cfg.RedisAddr = ""
	_, err := New(cfg)
	assert.Error(t, err)
}
