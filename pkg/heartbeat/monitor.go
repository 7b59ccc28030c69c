package heartbeat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cuemby/task-sentinel/pkg/events"
	"github.com/cuemby/task-sentinel/pkg/log"
	"github.com/cuemby/task-sentinel/pkg/memsync"
	"github.com/cuemby/task-sentinel/pkg/metrics"
	"github.com/cuemby/task-sentinel/pkg/ticketstore"
	"github.com/cuemby/task-sentinel/pkg/types"
)

// CapacityFunc reports how much task capacity this worker has free right
// now, for inclusion in the heartbeat payload. A nil func reports zero.
type CapacityFunc func() int

// Monitor is the Heartbeat Monitor: one instance per worker process. It
// implements lock.Registrar so a lock.Manager can tell it which tasks are
// currently held without an import cycle between the two packages.
type Monitor struct {
	cfg      Config
	adapter  ticketstore.Adapter
	sync     *memsync.Synchronizer
	events   *events.Broker
	capacity CapacityFunc
	sampler  *sampler

	mu                  sync.Mutex
	held                map[string]struct{}
	consecutiveFailures int
	lastSuccessAt       time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a Monitor. capacity may be nil.
func New(cfg Config, adapter ticketstore.Adapter, synchronizer *memsync.Synchronizer, broker *events.Broker, capacity CapacityFunc) *Monitor {
	return &Monitor{
		cfg:      cfg,
		adapter:  adapter,
		sync:     synchronizer,
		events:   broker,
		capacity: capacity,
		sampler:  newSampler(),
		held:     make(map[string]struct{}),
		stopCh:   make(chan struct{}),

		lastSuccessAt: time.Now(),
	}
}

// RegisterHeld implements lock.Registrar.
func (m *Monitor) RegisterHeld(taskID string, _ types.LockRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held[taskID] = struct{}{}
}

// DeregisterHeld implements lock.Registrar.
func (m *Monitor) DeregisterHeld(taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, taskID)
}

func (m *Monitor) heldTasks() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	tasks := make([]string, 0, len(m.held))
	for id := range m.held {
		tasks = append(tasks, id)
	}
	return tasks
}

// Start begins the send cycle and the stale-lock sweep, and installs the
// process's termination-signal handler if it hasn't been installed yet.
func (m *Monitor) Start() {
	registerForSignals(m)

	m.wg.Add(2)
	go m.runSendLoop()
	go m.runSweepLoop()
}

// Stop halts both loops and sends one final heartbeat reporting
// unhealthy with an empty task list, per the shutdown contract.
func (m *Monitor) Stop() {
	select {
	case <-m.stopCh:
		return // already stopped
	default:
		close(m.stopCh)
	}
	m.wg.Wait()

	final := types.HeartbeatPayload{
		WorkerID:  m.cfg.WorkerID,
		Timestamp: time.Now(),
		Health:    types.HealthUnhealthy,
		HeldTasks: nil,
	}
	if err := m.sendOnce(context.Background(), final); err != nil {
		log.WithComponent("heartbeat").Warn().Err(err).Msg("final shutdown heartbeat failed")
	}
}

func (m *Monitor) runSendLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sendWithRetry(context.Background())
		case <-m.stopCh:
			return
		}
	}
}

func (m *Monitor) runSweepLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.DetectionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweep(context.Background())
		case <-m.stopCh:
			return
		}
	}
}

// sendWithRetry runs one send cycle, retrying the whole cycle up to
// RetryAttempts times on any destination failure. After exhausting
// retries it records a failure entry and continues — it never crashes
// the process.
func (m *Monitor) sendWithRetry(ctx context.Context) {
	logger := log.WithComponent("heartbeat").With().Str("worker_id", m.cfg.WorkerID).Logger()
	payload := m.buildPayload()
	timer := metrics.NewTimer()

	var lastErr error
	for attempt := 0; attempt <= m.cfg.RetryAttempts; attempt++ {
		if err := m.sendOnce(ctx, payload); err == nil {
			m.mu.Lock()
			m.consecutiveFailures = 0
			m.lastSuccessAt = time.Now()
			m.mu.Unlock()
			timer.ObserveDuration(metrics.HeartbeatSendDuration)
			metrics.HeartbeatSendTotal.WithLabelValues("success").Inc()
			return
		} else {
			lastErr = err
		}
		if attempt < m.cfg.RetryAttempts {
			select {
			case <-time.After(m.cfg.RetryDelay):
			case <-ctx.Done():
				return
			}
		}
	}

	m.mu.Lock()
	m.consecutiveFailures++
	failures := m.consecutiveFailures
	m.mu.Unlock()

	metrics.HeartbeatSendTotal.WithLabelValues("failed").Inc()
	logger.Error().Err(lastErr).Msg("heartbeat send cycle exhausted retries")
	m.recordSendFailure(ctx, lastErr)

	if m.events != nil {
		m.events.Publish(&events.Event{
			Type:     events.EventHeartbeatFailed,
			Message:  fmt.Sprintf("heartbeat send cycle failed: %v", lastErr),
			Metadata: map[string]string{"worker_id": m.cfg.WorkerID},
		})
	}

	if failures >= 3 {
		logger.Error().Int("consecutive_failures", failures).Msg("critical: worker has failed three consecutive heartbeat cycles")
	}
}

func (m *Monitor) buildPayload() types.HeartbeatPayload {
	samp := m.sampler.take()

	m.mu.Lock()
	sinceSuccess := time.Since(m.lastSuccessAt)
	m.mu.Unlock()
	health := classifyLocal(samp, m.cfg, sinceSuccess)

	capacity := 0
	if m.capacity != nil {
		capacity = m.capacity()
	}

	return types.HeartbeatPayload{
		WorkerID:          m.cfg.WorkerID,
		Timestamp:         time.Now(),
		Health:            health,
		HeldTasks:         m.heldTasks(),
		AvailableCapacity: capacity,
		CPUPercent:        samp.cpuPercent,
		MemoryBytes:       samp.memoryBytes,
		Uptime:            samp.uptime,
	}
}

// sendOnce fans payload out to the three destinations concurrently via
// errgroup.Group, launching all three before any result is known, and
// returns the first error encountered, if any.
func (m *Monitor) sendOnce(ctx context.Context, payload types.HeartbeatPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("heartbeat encode payload: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if _, err := m.sync.Write(gctx, heartbeatKey(payload.WorkerID), data, memsync.WriteOptions{}); err != nil {
			return fmt.Errorf("write worker heartbeat: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return m.annotateHeldTasks(gctx, payload)
	})
	g.Go(func() error {
		if _, err := m.sync.Write(gctx, heartbeatMetricsKey(payload.WorkerID, payload.Timestamp), data, memsync.WriteOptions{}); err != nil {
			return fmt.Errorf("write heartbeat metrics record: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func (m *Monitor) annotateHeldTasks(ctx context.Context, payload types.HeartbeatPayload) error {
	for _, taskID := range payload.HeldTasks {
		marker := fmt.Sprintf("heartbeat:%s", payload.Timestamp.Format(time.RFC3339))
		if err := m.adapter.Annotate(ctx, taskID, marker); err != nil {
			return fmt.Errorf("annotate held task %s: %w", taskID, err)
		}
	}
	return nil
}

func (m *Monitor) recordSendFailure(ctx context.Context, cause error) {
	record := map[string]any{
		"worker_id": m.cfg.WorkerID,
		"timestamp": time.Now(),
		"error":     fmt.Sprint(cause),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	if _, err := m.sync.Write(ctx, heartbeatFailuresKey(m.cfg.WorkerID), data, memsync.WriteOptions{}); err != nil {
		log.WithComponent("heartbeat").Warn().Err(err).Msg("failed to record heartbeat failure")
	}
}

// classifyLocal mirrors the registry's heartbeat-age classification,
// applied to this process's own send-cycle success history, with an
// additional CPU-based downgrade to unhealthy regardless of recency.
func classifyLocal(samp sample, cfg Config, sinceLastSuccess time.Duration) types.HealthState {
	if samp.cpuPercent > cfg.CPUUnhealthyPercent {
		return types.HealthUnhealthy
	}
	switch {
	case sinceLastSuccess <= cfg.HealthyThreshold:
		return types.HealthHealthy
	case sinceLastSuccess <= cfg.DegradedThreshold:
		return types.HealthDegraded
	default:
		return types.HealthUnhealthy
	}
}
