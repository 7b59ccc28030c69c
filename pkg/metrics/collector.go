package metrics

import (
	"context"
	"time"

	"github.com/cuemby/task-sentinel/pkg/lock"
	"github.com/cuemby/task-sentinel/pkg/registry"
)

// Collector polls the Worker Registry and Lock Manager on an interval and
// republishes their own running totals as gauges, rather than incrementing
// counters at every call site.
type Collector struct {
	registry *registry.Registry
	lockMgr  *lock.Manager
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a metrics collector polling reg and lockMgr every 15s.
func NewCollector(reg *registry.Registry, lockMgr *lock.Manager) *Collector {
	return &Collector{
		registry: reg,
		lockMgr:  lockMgr,
		interval: 15 * time.Second,
		stopCh:   make(chan struct{}),
	}
}

// Start begins polling in a background goroutine.
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts polling.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectWorkerMetrics()
	c.collectLockMetrics()
}

func (c *Collector) collectWorkerMetrics() {
	if c.registry == nil {
		return
	}
	workers := c.registry.Discover(context.Background(), registry.Filter{})

	counts := make(map[string]int)
	for _, w := range workers {
		counts[string(w.Health)]++
	}
	for health, count := range counts {
		WorkersTotal.WithLabelValues(health).Set(float64(count))
	}
}

func (c *Collector) collectLockMetrics() {
	if c.lockMgr == nil {
		return
	}
	snap := c.lockMgr.Snapshot()

	LockAcquisitions.Set(float64(snap.TotalAcquisitions))
	LockReleases.Set(float64(snap.TotalReleases))
	LockConflicts.Set(float64(snap.TotalConflicts))
	LockRetries.Set(float64(snap.TotalRetries))
	LockFailures.Set(float64(snap.FailedAcquisitions))
	LockStaleClaimed.Set(float64(snap.StaleLocksClaimed))
	LockMeanAcquisitionMs.Set(snap.MeanAcquisitionMs)
}
