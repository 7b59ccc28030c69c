package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/task-sentinel/pkg/events"
	"github.com/cuemby/task-sentinel/pkg/log"
	"github.com/cuemby/task-sentinel/pkg/memstore"
	"github.com/cuemby/task-sentinel/pkg/memsync"
	"github.com/cuemby/task-sentinel/pkg/types"
)

// ErrNotFound is returned when a worker identifier has no registered record.
var ErrNotFound = errors.New("registry: worker not found")

// ErrCapacityRange is returned by UpdateTaskCount when the delta would push
// CurrentTasks outside [0, MaxConcurrentTasks].
var ErrCapacityRange = errors.New("registry: task count out of range")

const workerKeyPrefix = "workers/"
const workerKeySuffix = "/status"

func workerKey(id string) string { return workerKeyPrefix + id + workerKeySuffix }

// workerIDFromKey extracts the worker ID from a workers/{id}/status key,
// or "" if key doesn't match that shape.
func workerIDFromKey(key string) string {
	if !strings.HasPrefix(key, workerKeyPrefix) || !strings.HasSuffix(key, workerKeySuffix) {
		return ""
	}
	return strings.TrimSuffix(strings.TrimPrefix(key, workerKeyPrefix), workerKeySuffix)
}

// Filter narrows Discover/GetForLoadBalancing results.
type Filter struct {
	// Capabilities requires the worker's capability set to be a superset.
	Capabilities []string
	// Health, if non-empty, requires an exact health match.
	Health types.HealthState
	// MinAvailableCapacity requires AvailableCapacity() >= this value.
	MinAvailableCapacity int
}

func (f Filter) matches(w *types.Worker) bool {
	if f.Health != "" && w.Health != f.Health {
		return false
	}
	if w.AvailableCapacity() < f.MinAvailableCapacity {
		return false
	}
	if len(f.Capabilities) > 0 {
		required := make(map[string]struct{}, len(f.Capabilities))
		for _, c := range f.Capabilities {
			required[c] = struct{}{}
		}
		if !w.HasCapabilities(required) {
			return false
		}
	}
	return true
}

// Registry is the Worker Registry: a process-wide service tracking pool
// membership and health, backed by the Memory Synchronizer.
type Registry struct {
	cfg    Config
	sync   *memsync.Synchronizer
	events *events.Broker

	mu      sync.RWMutex
	workers map[string]*types.Worker

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a Registry. Call Start to begin the periodic sweep.
func New(cfg Config, synchronizer *memsync.Synchronizer, broker *events.Broker) *Registry {
	return &Registry{
		cfg:     cfg,
		sync:    synchronizer,
		events:  broker,
		workers: make(map[string]*types.Worker),
		stopCh:  make(chan struct{}),
	}
}

// Start begins the periodic sweep that deregisters workers exceeding
// DegradedThreshold.
func (r *Registry) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.sweep(context.Background())
			case <-r.stopCh:
				return
			}
		}
	}()
}

// Stop halts the periodic sweep.
func (r *Registry) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}

// Register generates a new worker identifier, constructs a worker record,
// stores it under workers/{id}/status, and emits worker.registered.
func (r *Registry) Register(ctx context.Context, reg types.Registration) (*types.Worker, error) {
	id := uuid.NewString()
	caps := make(map[string]struct{}, len(reg.Capabilities))
	for _, c := range reg.Capabilities {
		caps[c] = struct{}{}
	}

	now := time.Now()
	worker := &types.Worker{
		ID:                 id,
		NodeID:             reg.NodeID,
		Capabilities:       caps,
		MaxConcurrentTasks: reg.MaxConcurrentTasks,
		Health:             types.HealthHealthy,
		Status:             types.WorkerOnline,
		LastHeartbeat:      now,
		StartedAt:          now,
	}

	if err := r.persist(ctx, worker); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.workers[id] = worker
	r.mu.Unlock()

	if r.events != nil {
		r.events.Publish(&events.Event{
			Type:     events.EventWorkerRegistered,
			Message:  fmt.Sprintf("worker %s registered", id),
			Metadata: map[string]string{"worker_id": id, "node_id": reg.NodeID},
		})
	}

	log.WithComponent("registry").Info().Str("worker_id", id).Msg("worker registered")
	return cloneWorker(worker), nil
}

// Heartbeat updates the last-heartbeat timestamp and recomputes health.
// Idempotent: calling it repeatedly with no intervening state change just
// refreshes the timestamp.
func (r *Registry) Heartbeat(ctx context.Context, id string) error {
	r.mu.Lock()
	worker, ok := r.workers[id]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	worker.LastHeartbeat = time.Now()
	worker.Health = classify(worker.LastHeartbeat, r.cfg.HealthyThreshold, r.cfg.DegradedThreshold)
	snapshot := cloneWorker(worker)
	r.mu.Unlock()

	return r.persist(ctx, snapshot)
}

// UpdateTaskCount clamps CurrentTasks by delta to [0, MaxConcurrentTasks],
// rejecting writes that would violate the range.
func (r *Registry) UpdateTaskCount(ctx context.Context, id string, delta int) error {
	r.mu.Lock()
	worker, ok := r.workers[id]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}

	next := worker.CurrentTasks + delta
	if next < 0 || next > worker.MaxConcurrentTasks {
		r.mu.Unlock()
		return ErrCapacityRange
	}
	worker.CurrentTasks = next
	if worker.CurrentTasks >= worker.MaxConcurrentTasks {
		worker.Status = types.WorkerOverloaded
	} else if worker.Status == types.WorkerOverloaded {
		worker.Status = types.WorkerOnline
	}
	snapshot := cloneWorker(worker)
	r.mu.Unlock()

	return r.persist(ctx, snapshot)
}

// RecordCompletion folds a task outcome into the worker's running metrics
// and decrements the task count.
func (r *Registry) RecordCompletion(ctx context.Context, id string, success bool, durationMs float64) error {
	r.mu.Lock()
	worker, ok := r.workers[id]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	worker.Metrics.Record(success, durationMs, time.Now())
	if worker.CurrentTasks > 0 {
		worker.CurrentTasks--
	}
	if worker.Status == types.WorkerOverloaded && worker.CurrentTasks < worker.MaxConcurrentTasks {
		worker.Status = types.WorkerOnline
	}
	snapshot := cloneWorker(worker)
	r.mu.Unlock()

	return r.persist(ctx, snapshot)
}

// GetWorker returns the worker record, checking this process's own
// just-written cache first (a record can still be sitting in the Memory
// Synchronizer's unflushed batch buffer, invisible to a backend read) and
// falling through to the shared backend so a worker registered by a
// different process is still found. Health is recomputed from the current
// time rather than trusted from storage.
func (r *Registry) GetWorker(ctx context.Context, id string) (*types.Worker, error) {
	r.mu.RLock()
	worker, ok := r.workers[id]
	var snapshot *types.Worker
	if ok {
		snapshot = cloneWorker(worker)
	}
	r.mu.RUnlock()

	if !ok {
		data, _, err := r.sync.Read(ctx, workerKey(id))
		if err != nil {
			if errors.Is(err, memstore.ErrNotFound) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("registry get %s: %w", id, err)
		}
		var decoded types.Worker
		if err := json.Unmarshal(data, &decoded); err != nil {
			return nil, fmt.Errorf("registry decode %s: %w", id, err)
		}
		snapshot = &decoded
	}

	snapshot.Health = classify(snapshot.LastHeartbeat, r.cfg.HealthyThreshold, r.cfg.DegradedThreshold)
	return snapshot, nil
}

// Discover returns every worker matching filter, merging this process's
// own just-written cache with every workers/{id}/status record visible in
// the shared Memory Synchronizer, so pool membership reflects workers
// registered by any process sharing the backend, not just this one. Health
// is freshly classified against the current time.
func (r *Registry) Discover(ctx context.Context, filter Filter) []*types.Worker {
	merged, err := r.loadAll(ctx)
	if err != nil {
		log.WithComponent("registry").Error().Err(err).Msg("discover: failed to load workers from shared backend, falling back to process-local view")
		merged = make(map[string]*types.Worker)
	}

	r.mu.RLock()
	for id, worker := range r.workers {
		merged[id] = cloneWorker(worker)
	}
	r.mu.RUnlock()

	results := make([]*types.Worker, 0, len(merged))
	for _, worker := range merged {
		snapshot := cloneWorker(worker)
		snapshot.Health = classify(snapshot.LastHeartbeat, r.cfg.HealthyThreshold, r.cfg.DegradedThreshold)
		if filter.matches(snapshot) {
			results = append(results, snapshot)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results
}

// loadAll scans every workers/{id}/status record in the shared backend and
// decodes it, mirroring pkg/heartbeat/sweep.go's Search-then-Read pattern
// for lock records.
func (r *Registry) loadAll(ctx context.Context) (map[string]*types.Worker, error) {
	keys, err := r.sync.Search(ctx, workerKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("registry search: %w", err)
	}

	workers := make(map[string]*types.Worker, len(keys))
	for _, key := range keys {
		id := workerIDFromKey(key)
		if id == "" {
			continue
		}
		data, _, err := r.sync.Read(ctx, key)
		if err != nil {
			if errors.Is(err, memstore.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("registry read %s: %w", key, err)
		}
		var worker types.Worker
		if err := json.Unmarshal(data, &worker); err != nil {
			return nil, fmt.Errorf("registry decode %s: %w", key, err)
		}
		workers[id] = &worker
	}
	return workers, nil
}

// Scored pairs a worker with its load-balancing priority score.
type Scored struct {
	Worker   *types.Worker
	Priority float64
}

// GetForLoadBalancing returns matching workers annotated with a priority
// score in [0, 1], sorted by descending priority (ties broken by worker
// identifier lexicographically).
//
//	priority = 0.5 * availableCapacity/maxConcurrentTasks
//	         + 0.3 * successRate
//	         + 0.2 * min(1, 1/avgDurationSeconds)
func (r *Registry) GetForLoadBalancing(ctx context.Context, filter Filter) []Scored {
	workers := r.Discover(ctx, filter)

	scored := make([]Scored, 0, len(workers))
	for _, w := range workers {
		scored = append(scored, Scored{Worker: w, Priority: priorityScore(w)})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Priority != scored[j].Priority {
			return scored[i].Priority > scored[j].Priority
		}
		return scored[i].Worker.ID < scored[j].Worker.ID
	})
	return scored
}

func priorityScore(w *types.Worker) float64 {
	var capacityTerm float64
	if w.MaxConcurrentTasks > 0 {
		capacityTerm = float64(w.AvailableCapacity()) / float64(w.MaxConcurrentTasks)
	}

	durationSeconds := w.Metrics.AvgDurationMs / 1000
	durationTerm := 1.0
	if durationSeconds > 0 {
		durationTerm = 1 / durationSeconds
		if durationTerm > 1 {
			durationTerm = 1
		}
	}

	return 0.5*capacityTerm + 0.3*w.Metrics.SuccessRate() + 0.2*durationTerm
}

// Deregister removes the worker record and emits worker.deregistered. The
// record may have been written by a different process than this one (e.g.
// the periodic sweep reclaiming a worker discovered via the shared
// backend) and never seen by this instance's own cache, so existence
// falls through to a backend read exactly like GetWorker.
func (r *Registry) Deregister(ctx context.Context, id string) error {
	r.mu.Lock()
	_, knownLocally := r.workers[id]
	delete(r.workers, id)
	r.mu.Unlock()

	if !knownLocally {
		if _, _, err := r.sync.Read(ctx, workerKey(id)); err != nil {
			if errors.Is(err, memstore.ErrNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("registry deregister %s: %w", id, err)
		}
	}

	if err := r.sync.Delete(ctx, workerKey(id)); err != nil && !errors.Is(err, memstore.ErrNotFound) {
		return fmt.Errorf("registry deregister %s: %w", id, err)
	}

	if r.events != nil {
		r.events.Publish(&events.Event{
			Type:     events.EventWorkerDeregistered,
			Message:  fmt.Sprintf("worker %s deregistered", id),
			Metadata: map[string]string{"worker_id": id},
		})
	}
	return nil
}

// sweep discovers every worker visible in the shared backend — not just
// this process's own — and deregisters any exceeding DegradedThreshold.
// Advisory: deregistration only removes the registry record, never any
// held locks (the Heartbeat Monitor's stale-lock sweep owns those).
func (r *Registry) sweep(ctx context.Context) {
	logger := log.WithComponent("registry")

	workers := r.Discover(ctx, Filter{})
	now := time.Now()
	for _, worker := range workers {
		if now.Sub(worker.LastHeartbeat) <= r.cfg.DegradedThreshold {
			continue
		}
		if err := r.Deregister(ctx, worker.ID); err != nil {
			logger.Error().Err(err).Str("worker_id", worker.ID).Msg("sweep failed to deregister stale worker")
			continue
		}
		logger.Info().Str("worker_id", worker.ID).Msg("sweep deregistered unresponsive worker")
	}
}

func (r *Registry) persist(ctx context.Context, worker *types.Worker) error {
	data, err := json.Marshal(worker)
	if err != nil {
		return fmt.Errorf("registry encode %s: %w", worker.ID, err)
	}
	_, err = r.sync.Write(ctx, workerKey(worker.ID), data, memsync.WriteOptions{})
	if err != nil {
		return fmt.Errorf("registry persist %s: %w", worker.ID, err)
	}
	return nil
}

func classify(lastHeartbeat time.Time, healthyThreshold, degradedThreshold time.Duration) types.HealthState {
	elapsed := time.Since(lastHeartbeat)
	switch {
	case elapsed <= healthyThreshold:
		return types.HealthHealthy
	case elapsed <= degradedThreshold:
		return types.HealthDegraded
	default:
		return types.HealthUnhealthy
	}
}

func cloneWorker(w *types.Worker) *types.Worker {
	caps := make(map[string]struct{}, len(w.Capabilities))
	for k := range w.Capabilities {
		caps[k] = struct{}{}
	}
	clone := *w
	clone.Capabilities = caps
	return &clone
}
