package heartbeat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuemby/task-sentinel/pkg/events"
	"github.com/cuemby/task-sentinel/pkg/log"
	"github.com/cuemby/task-sentinel/pkg/memsync"
	"github.com/cuemby/task-sentinel/pkg/metrics"
	"github.com/cuemby/task-sentinel/pkg/types"
)

// sweep scans every tasks/{id}/lock record and reclaims ownership from
// workers that have stopped heartbeating. Any worker process may run a
// sweep; the anti-race recheck immediately before acting, combined with
// the ticket store's assignment idempotency, makes concurrent sweeps
// safe — at most one unassign call observes the lock in its original
// state.
func (m *Monitor) sweep(ctx context.Context) {
	logger := log.WithComponent("heartbeat")

	keys, err := m.sync.Search(ctx, lockKeyPrefix)
	if err != nil {
		logger.Error().Err(err).Msg("stale-lock sweep: search failed")
		return
	}

	for _, key := range keys {
		taskID := taskIDFromLockKey(key)
		if taskID == "" {
			continue
		}
		if err := m.sweepOne(ctx, taskID, key); err != nil {
			logger.Error().Err(err).Str("task_id", taskID).Msg("stale-lock sweep: failed to process lock")
		}
	}
}

func (m *Monitor) sweepOne(ctx context.Context, taskID, key string) error {
	data, _, err := m.sync.Read(ctx, key)
	if err != nil {
		return fmt.Errorf("read lock record: %w", err)
	}
	var record types.LockRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return fmt.Errorf("decode lock record: %w", err)
	}

	if !m.isStale(ctx, record) {
		return nil
	}

	// Anti-race guard: re-verify immediately before acting, since time
	// has passed since the initial classification above.
	if !m.isStale(ctx, record) {
		return nil
	}

	staleDuration := m.ownerSilenceDuration(ctx, record)

	if err := m.adapter.UnassignTicket(ctx, taskID, record.WorkerID); err != nil {
		return fmt.Errorf("unassign stale owner: %w", err)
	}
	marker := fmt.Sprintf("stale-recovered:owner=%s:silent_for=%s", record.WorkerID, staleDuration)
	if err := m.adapter.Annotate(ctx, taskID, marker); err != nil {
		log.WithComponent("heartbeat").Warn().Err(err).Str("task_id", taskID).Msg("stale-lock annotation failed (non-fatal)")
	}
	if err := m.sync.Delete(ctx, key); err != nil {
		log.WithComponent("heartbeat").Warn().Err(err).Str("task_id", taskID).Msg("failed to delete stale lock record")
	}

	m.writeRecoveryRecord(ctx, taskID, record.WorkerID, staleDuration)
	metrics.LockRecoveriesTotal.Inc()

	if m.events != nil {
		m.events.Publish(&events.Event{
			Type:     events.EventLockStaleRecovered,
			Message:  fmt.Sprintf("reclaimed stale lock for task %s from worker %s", taskID, record.WorkerID),
			Metadata: map[string]string{"task_id": taskID, "worker_id": record.WorkerID},
		})
	}

	return nil
}

// isStale reports whether record's owner's most recent heartbeat is
// missing or older than StaleThreshold.
func (m *Monitor) isStale(ctx context.Context, record types.LockRecord) bool {
	return m.ownerSilenceDuration(ctx, record) > m.cfg.StaleThreshold
}

// ownerSilenceDuration returns how long it has been since the lock's
// owner last heartbeated, treating a missing heartbeat record as an
// effectively-infinite silence.
func (m *Monitor) ownerSilenceDuration(ctx context.Context, record types.LockRecord) time.Duration {
	data, _, err := m.sync.Read(ctx, heartbeatKey(record.WorkerID))
	if err != nil {
		return time.Duration(1<<63 - 1)
	}
	var payload types.HeartbeatPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return time.Duration(1<<63 - 1)
	}
	return time.Since(payload.Timestamp)
}

func (m *Monitor) writeRecoveryRecord(ctx context.Context, taskID, workerID string, staleDuration time.Duration) {
	record := map[string]any{
		"task_id":        taskID,
		"previous_owner": workerID,
		"stale_duration": staleDuration.String(),
		"timestamp":      time.Now(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	if _, err := m.sync.Write(ctx, lockRecoveryKey(time.Now()), data, memsync.WriteOptions{}); err != nil {
		log.WithComponent("heartbeat").Warn().Err(err).Str("task_id", taskID).Msg("failed to write lock-recovery metric record")
	}
}
