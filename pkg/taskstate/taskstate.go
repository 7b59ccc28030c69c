// Package taskstate implements the programmatic API surface spec.md §6
// assigns to "External consumer": syncTaskState/getTaskState against the
// tasks/{taskId}/state and tasks/{taskId}/progress keys, and the opaque
// advisory acquireTaskLock/releaseTaskLock pair the spec calls out as
// distinct from the primary Lock Manager. None of this goes through the
// ticket store: it is callers (planner, executor, observers) coordinating
// amongst themselves over the shared Memory Synchronizer, not the
// ticket-backed assignment pkg/lock protects.
package taskstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/task-sentinel/pkg/memstore"
	"github.com/cuemby/task-sentinel/pkg/memsync"
)

// ErrNotFound is returned when no state, progress, or advisory lock record
// exists for the given task.
var ErrNotFound = errors.New("taskstate: not found")

// ErrLockHeld is returned by AcquireTaskLock when another holder's lock is
// still live.
var ErrLockHeld = errors.New("taskstate: advisory lock held by another holder")

// ErrNotOwner is returned by ReleaseTaskLock when holderID does not match
// the current owner.
var ErrNotOwner = errors.New("taskstate: not the advisory lock owner")

func stateKey(taskID string) string    { return "tasks/" + taskID + "/state" }
func progressKey(taskID string) string { return "tasks/" + taskID + "/progress" }
func lockKey(taskID string) string     { return "tasks/" + taskID + "/agents/advisory-lock" }

// AdvisoryLock is the record written for an opaque advisory lock. Unlike
// types.LockRecord it carries no task-type or complexity metadata: callers
// attach whatever they need via SyncTaskState instead.
type AdvisoryLock struct {
	HolderID   string    `json:"holder_id"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func (l AdvisoryLock) expired(now time.Time) bool {
	return !l.ExpiresAt.IsZero() && now.After(l.ExpiresAt)
}

// Store is the task-state and advisory-lock surface of the Memory
// Synchronizer: syncTaskState/getTaskState and acquireTaskLock/
// releaseTaskLock. It keeps a process-local cache of its own writes, the
// same way pkg/registry does for worker records, so a syncTaskState
// immediately followed by a getTaskState in the same process sees its own
// write even before the synchronizer's batch buffer flushes.
type Store struct {
	sync *memsync.Synchronizer

	mu       sync.RWMutex
	state    map[string][]byte
	progress map[string][]byte
	locks    map[string]AdvisoryLock
}

// New builds a Store over an already-started memsync.Synchronizer.
func New(synchronizer *memsync.Synchronizer) *Store {
	return &Store{
		sync:     synchronizer,
		state:    make(map[string][]byte),
		progress: make(map[string][]byte),
		locks:    make(map[string]AdvisoryLock),
	}
}

// SyncTaskState writes an opaque, caller-defined state blob for taskID.
// task-sentinel does not interpret the bytes; it only stores and returns
// them.
func (s *Store) SyncTaskState(ctx context.Context, taskID string, state []byte) error {
	if _, err := s.sync.Write(ctx, stateKey(taskID), state, memsync.WriteOptions{}); err != nil {
		return fmt.Errorf("taskstate sync state %s: %w", taskID, err)
	}
	s.mu.Lock()
	s.state[taskID] = state
	s.mu.Unlock()
	return nil
}

// GetTaskState returns the most recently synced state for taskID.
func (s *Store) GetTaskState(ctx context.Context, taskID string) ([]byte, error) {
	s.mu.RLock()
	state, ok := s.state[taskID]
	s.mu.RUnlock()
	if ok {
		return state, nil
	}

	data, _, err := s.sync.Read(ctx, stateKey(taskID))
	if err != nil {
		if errors.Is(err, memstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("taskstate get state %s: %w", taskID, err)
	}
	return data, nil
}

// SyncTaskProgress writes a progress snapshot for taskID under
// tasks/{taskId}/progress, the key layout's dedicated progress slot
// alongside tasks/{taskId}/state.
func (s *Store) SyncTaskProgress(ctx context.Context, taskID string, progress []byte) error {
	if _, err := s.sync.Write(ctx, progressKey(taskID), progress, memsync.WriteOptions{}); err != nil {
		return fmt.Errorf("taskstate sync progress %s: %w", taskID, err)
	}
	s.mu.Lock()
	s.progress[taskID] = progress
	s.mu.Unlock()
	return nil
}

// GetTaskProgress returns the most recently synced progress snapshot for
// taskID.
func (s *Store) GetTaskProgress(ctx context.Context, taskID string) ([]byte, error) {
	s.mu.RLock()
	progress, ok := s.progress[taskID]
	s.mu.RUnlock()
	if ok {
		return progress, nil
	}

	data, _, err := s.sync.Read(ctx, progressKey(taskID))
	if err != nil {
		if errors.Is(err, memstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("taskstate get progress %s: %w", taskID, err)
	}
	return data, nil
}

// AcquireTaskLock claims the opaque advisory lock for taskID on behalf of
// holderID for ttl. It is intentionally not CAS-safe against the ticket
// store the way pkg/lock.Manager.Acquire is: two holders racing a
// just-expired lock can both believe they hold it. That's the
// distinction the spec draws between the primary lock and this one — it
// coordinates cooperating callers, not competing workers contending for a
// task assignment.
func (s *Store) AcquireTaskLock(ctx context.Context, taskID, holderID string, ttl time.Duration) (bool, error) {
	now := time.Now()

	current, err := s.currentLock(ctx, taskID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return false, err
	}
	if err == nil && current.HolderID != holderID && !current.expired(now) {
		return false, ErrLockHeld
	}

	lock := AdvisoryLock{HolderID: holderID, AcquiredAt: now, ExpiresAt: now.Add(ttl)}
	data, err := json.Marshal(lock)
	if err != nil {
		return false, fmt.Errorf("taskstate encode advisory lock %s: %w", taskID, err)
	}
	if _, err := s.sync.Write(ctx, lockKey(taskID), data, memsync.WriteOptions{TTL: ttl}); err != nil {
		return false, fmt.Errorf("taskstate acquire advisory lock %s: %w", taskID, err)
	}

	s.mu.Lock()
	s.locks[taskID] = lock
	s.mu.Unlock()
	return true, nil
}

// ReleaseTaskLock releases the advisory lock for taskID, provided holderID
// currently owns it (or the record has already expired or vanished).
func (s *Store) ReleaseTaskLock(ctx context.Context, taskID, holderID string) error {
	current, err := s.currentLock(ctx, taskID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if current.HolderID != holderID && !current.expired(time.Now()) {
		return ErrNotOwner
	}

	if err := s.sync.Delete(ctx, lockKey(taskID)); err != nil && !errors.Is(err, memstore.ErrNotFound) {
		return fmt.Errorf("taskstate release advisory lock %s: %w", taskID, err)
	}
	s.mu.Lock()
	delete(s.locks, taskID)
	s.mu.Unlock()
	return nil
}

func (s *Store) currentLock(ctx context.Context, taskID string) (AdvisoryLock, error) {
	s.mu.RLock()
	lock, ok := s.locks[taskID]
	s.mu.RUnlock()
	if ok {
		return lock, nil
	}

	data, _, err := s.sync.Read(ctx, lockKey(taskID))
	if err != nil {
		if errors.Is(err, memstore.ErrNotFound) {
			return AdvisoryLock{}, ErrNotFound
		}
		return AdvisoryLock{}, fmt.Errorf("taskstate read advisory lock %s: %w", taskID, err)
	}
	var decoded AdvisoryLock
	if err := json.Unmarshal(data, &decoded); err != nil {
		return AdvisoryLock{}, fmt.Errorf("taskstate decode advisory lock %s: %w", taskID, err)
	}
	return decoded, nil
}
