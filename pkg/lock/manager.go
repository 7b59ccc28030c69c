package lock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/cuemby/task-sentinel/pkg/events"
	"github.com/cuemby/task-sentinel/pkg/log"
	"github.com/cuemby/task-sentinel/pkg/memsync"
	"github.com/cuemby/task-sentinel/pkg/ticketstore"
	"github.com/cuemby/task-sentinel/pkg/types"
)

func lockKey(taskID string) string { return "tasks/" + taskID + "/lock" }

// Manager is the Lock Manager: per-task acquire/release built on a
// ticketstore.Adapter for the authoritative assignment and a
// memsync.Synchronizer for the shared-memory lock record that the
// Heartbeat Monitor's stale-lock sweep later inspects.
type Manager struct {
	cfg       Config
	adapter   ticketstore.Adapter
	sync      *memsync.Synchronizer
	registrar Registrar
	events    *events.Broker

	metrics metricsHolder
}

// New builds a Manager. registrar may be nil, in which case heartbeat
// hand-off is a no-op (useful in tests or single-shot callers).
func New(cfg Config, adapter ticketstore.Adapter, synchronizer *memsync.Synchronizer, registrar Registrar, broker *events.Broker) *Manager {
	if registrar == nil {
		registrar = noopRegistrar{}
	}
	return &Manager{
		cfg:       cfg,
		adapter:   adapter,
		sync:      synchronizer,
		registrar: registrar,
		events:    broker,
	}
}

// Acquire attempts to claim taskID for opts.WorkerID, following
// opts.Strategy on conflict. It blocks for as long as retries and backoff
// require, respecting ctx cancellation.
func (m *Manager) Acquire(ctx context.Context, taskID string, opts AcquireOptions) Result {
	start := time.Now()
	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = m.cfg.MaxRetries
	}
	logger := log.WithComponent("lock").With().Str("task_id", taskID).Str("worker_id", opts.WorkerID).Logger()

	backoff := m.cfg.InitialBackoff
	retries := 0

	for {
		ticket, err := m.adapter.FetchTicket(ctx, taskID)
		if err != nil && !errors.Is(err, ticketstore.ErrNotFound) {
			if res, done := m.retryOrFail(ctx, taskID, err, &retries, maxRetries, &backoff); done {
				return res
			}
			continue
		}

		if ticket.IsAssigned() {
			switch opts.Strategy {
			case StrategyFailFast:
				m.recordConflict()
				return Result{Reason: ReasonConflict, Retries: retries}
			case StrategyStealStale:
				stolen, err := m.tryStealStale(ctx, taskID, ticket)
				if err != nil {
					logger.Warn().Err(err).Msg("steal-stale check failed, falling back to retry")
				}
				if !stolen {
					if res, done := m.sleepAndRetry(ctx, &retries, maxRetries, &backoff); done {
						return res
					}
					continue
				}
				// Fell through: the stale owner was unassigned, proceed
				// to attempt assignment below.
			default: // StrategyRetry
				if res, done := m.sleepAndRetry(ctx, &retries, maxRetries, &backoff); done {
					return res
				}
				continue
			}
		}

		assigned, err := m.adapter.AssignTicket(ctx, taskID, opts.WorkerID)
		if err != nil {
			if res, done := m.retryOrFail(ctx, taskID, err, &retries, maxRetries, &backoff); done {
				return res
			}
			continue
		}
		if !assigned {
			m.recordConflict()
			if res, done := m.sleepAndRetry(ctx, &retries, maxRetries, &backoff); done {
				return res
			}
			continue
		}

		// Verify: the assign succeeded, but re-read to guard against a
		// race with another caller's concurrent assign.
		verify, err := m.adapter.FetchTicket(ctx, taskID)
		if err != nil || !verify.AssignedTo(opts.WorkerID) {
			m.recordConflict()
			if res, done := m.sleepAndRetry(ctx, &retries, maxRetries, &backoff); done {
				return res
			}
			continue
		}

		record := types.LockRecord{
			TaskID:        taskID,
			WorkerID:      opts.WorkerID,
			NodeID:        opts.NodeID,
			AcquiredAt:    time.Now(),
			LastHeartbeat: time.Now(),
			Complexity:    opts.Complexity,
			EstimatedMs:   0,
			TaskType:      opts.TaskType,
			Priority:      opts.Priority,
		}

		if err := m.writeLockRecord(ctx, record); err != nil {
			return Result{Reason: ReasonNetworkErr, Err: err, Retries: retries}
		}

		annotation, err := json.Marshal(record)
		if err == nil {
			_ = m.adapter.Annotate(ctx, taskID, fmt.Sprintf("acquired:%s", annotation))
		}

		m.registrar.RegisterHeld(taskID, record)

		m.metrics.mu.Lock()
		m.metrics.m.TotalAcquisitions++
		m.metrics.m.recordAcquireDuration(float64(time.Since(start).Milliseconds()))
		m.metrics.mu.Unlock()

		m.publish(events.EventLockAcquired, taskID, opts.WorkerID, "lock acquired")
		logger.Info().Int("retries", retries).Msg("lock acquired")

		return Result{Acquired: true, Record: record, Retries: retries}
	}
}

// Release gives up taskID, provided workerID is still the owner.
func (m *Manager) Release(ctx context.Context, taskID, workerID string) Result {
	m.registrar.DeregisterHeld(taskID)

	ticket, err := m.adapter.FetchTicket(ctx, taskID)
	if err != nil && !errors.Is(err, ticketstore.ErrNotFound) {
		return Result{Reason: ReasonNetworkErr, Err: err}
	}

	if !ticket.IsAssigned() {
		_ = m.sync.Delete(ctx, lockKey(taskID))
		return Result{Acquired: false}
	}
	if !ticket.AssignedTo(workerID) {
		return Result{Reason: ReasonNotOwner}
	}

	if err := m.adapter.UnassignTicket(ctx, taskID, workerID); err != nil {
		return Result{Reason: ReasonNetworkErr, Err: err}
	}

	duration := time.Duration(0)
	if record, _, err := m.sync.Read(ctx, lockKey(taskID)); err == nil {
		var rec types.LockRecord
		if json.Unmarshal(record, &rec) == nil {
			duration = time.Since(rec.AcquiredAt)
		}
	}
	_ = m.adapter.Annotate(ctx, taskID, fmt.Sprintf("released:duration_ms=%d", duration.Milliseconds()))
	_ = m.sync.Delete(ctx, lockKey(taskID))

	m.metrics.mu.Lock()
	m.metrics.m.TotalReleases++
	m.metrics.mu.Unlock()

	m.publish(events.EventLockReleased, taskID, workerID, "lock released")
	log.WithComponent("lock").Info().Str("task_id", taskID).Str("worker_id", workerID).Msg("lock released")

	return Result{Acquired: false}
}

// Snapshot returns a thread-safe point-in-time copy of the manager's
// running counters.
func (m *Manager) Snapshot() Snapshot {
	return m.metrics.snapshot()
}

// GetStatus is the read-only getLockStatus query: it reports taskID's
// current lock state without attempting to acquire, steal, or release
// anything. It checks the ticket store first (the authoritative source
// for whether anyone holds the assignment) and, if assigned, the
// shared-memory lock record for heartbeat-based staleness, mirroring the
// age check tryStealStale performs mid-Acquire.
func (m *Manager) GetStatus(ctx context.Context, taskID string) StatusResult {
	ticket, err := m.adapter.FetchTicket(ctx, taskID)
	if err != nil && !errors.Is(err, ticketstore.ErrNotFound) {
		return StatusResult{State: StateFailed, Err: fmt.Errorf("lock get status %s: %w", taskID, err)}
	}
	if !ticket.IsAssigned() {
		return StatusResult{State: StateUnlocked}
	}

	data, _, err := m.sync.Read(ctx, lockKey(taskID))
	if err != nil {
		// Assigned per the ticket store but the shared-memory record is
		// missing or expired: still locked, just without age detail.
		return StatusResult{State: StateLocked}
	}

	var record types.LockRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return StatusResult{State: StateFailed, Err: fmt.Errorf("lock get status %s: decode record: %w", taskID, err)}
	}

	if time.Since(record.LastHeartbeat) > m.cfg.LockTimeout {
		return StatusResult{State: StateStale, Record: record}
	}
	return StatusResult{State: StateLocked, Record: record}
}

// tryStealStale checks the shared-memory lock record's age against
// LockTimeout and, if stale, unassigns the existing owner so the caller's
// loop can proceed to attempt assignment. It returns false (no error) when
// the lock is not yet stale, in which case the caller should fall back to
// a retry sleep.
func (m *Manager) tryStealStale(ctx context.Context, taskID string, ticket types.TicketState) (bool, error) {
	data, _, err := m.sync.Read(ctx, lockKey(taskID))
	if err != nil {
		// No lock record: nothing to verify age against. Treat
		// conservatively as not-yet-stale and fall back to retry.
		return false, nil
	}

	var record types.LockRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return false, fmt.Errorf("lock decode record for %s: %w", taskID, err)
	}

	if time.Since(record.LastHeartbeat) <= m.cfg.LockTimeout {
		return false, nil
	}

	for _, owner := range ticket.Assignees {
		if err := m.adapter.UnassignTicket(ctx, taskID, owner); err != nil {
			return false, fmt.Errorf("lock steal-stale unassign %s: %w", taskID, err)
		}
	}

	m.metrics.mu.Lock()
	m.metrics.m.StaleLocksClaimed++
	m.metrics.mu.Unlock()

	return true, nil
}

func (m *Manager) writeLockRecord(ctx context.Context, record types.LockRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("lock encode record for %s: %w", record.TaskID, err)
	}
	_, err = m.sync.Write(ctx, lockKey(record.TaskID), data, memsync.WriteOptions{TTL: 2 * m.cfg.LockTimeout})
	if err != nil {
		return fmt.Errorf("lock write record for %s: %w", record.TaskID, err)
	}
	return nil
}

// retryOrFail handles a network-class error: it sleeps (respecting
// rate-limit backoff when the store signals one) and advances retries, or
// returns a terminal failure once maxRetries is exhausted.
func (m *Manager) retryOrFail(ctx context.Context, taskID string, cause error, retries *int, maxRetries int, backoff *time.Duration) (Result, bool) {
	if *retries >= maxRetries {
		m.metrics.mu.Lock()
		m.metrics.m.FailedAcquisitions++
		m.metrics.mu.Unlock()
		return Result{Reason: ReasonNetworkErr, Err: cause, Retries: *retries}, true
	}

	delay := *backoff
	if errors.Is(cause, ticketstore.ErrRateLimited) {
		delay = m.cfg.RateLimitBackoff
	}
	if err := m.sleep(ctx, delay); err != nil {
		return Result{Reason: ReasonNetworkErr, Err: err, Retries: *retries}, true
	}

	*retries++
	m.metrics.mu.Lock()
	m.metrics.m.TotalRetries++
	m.metrics.mu.Unlock()

	*backoff = nextBackoff(*backoff, m.cfg.MaxBackoff)
	return Result{}, false
}

// sleepAndRetry sleeps for the current backoff and advances retries, or
// returns a terminal max-retries failure.
func (m *Manager) sleepAndRetry(ctx context.Context, retries *int, maxRetries int, backoff *time.Duration) (Result, bool) {
	if *retries >= maxRetries {
		m.metrics.mu.Lock()
		m.metrics.m.FailedAcquisitions++
		m.metrics.mu.Unlock()
		return Result{Reason: ReasonMaxRetries, Retries: *retries}, true
	}

	if err := m.sleep(ctx, *backoff); err != nil {
		return Result{Reason: ReasonNetworkErr, Err: err, Retries: *retries}, true
	}

	*retries++
	m.metrics.mu.Lock()
	m.metrics.m.TotalRetries++
	m.metrics.mu.Unlock()

	*backoff = nextBackoff(*backoff, m.cfg.MaxBackoff)
	return Result{}, false
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	if jitter := m.cfg.JitterFraction; jitter > 0 {
		d += time.Duration(rand.Float64() * jitter * float64(d))
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) recordConflict() {
	m.metrics.mu.Lock()
	m.metrics.m.TotalConflicts++
	m.metrics.mu.Unlock()
}

func (m *Manager) publish(eventType events.EventType, taskID, workerID, message string) {
	if m.events == nil {
		return
	}
	m.events.Publish(&events.Event{
		Type:     eventType,
		Message:  message,
		Metadata: map[string]string{"task_id": taskID, "worker_id": workerID},
	})
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
