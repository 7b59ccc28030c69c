package lock

import "github.com/cuemby/task-sentinel/pkg/types"

// Registrar is the handoff surface to the Heartbeat Monitor. The Lock
// Manager depends on this interface rather than importing pkg/heartbeat
// directly, since the monitor's stale-lock sweep in turn depends on the
// Ticket Store Adapter and shared-memory lock records the manager owns —
// a direct import would cycle.
type Registrar interface {
	// RegisterHeld is called once a lock is successfully acquired, so the
	// monitor includes taskID in its heartbeat payload's held-task list.
	RegisterHeld(taskID string, record types.LockRecord)
	// DeregisterHeld is called on release (successful or not-owner), so
	// the monitor stops reporting the task as held.
	DeregisterHeld(taskID string)
}

// noopRegistrar discards registration calls; used when the caller has no
// heartbeat monitor wired in (e.g. tests, or a process that only releases
// locks it never acquired).
type noopRegistrar struct{}

func (noopRegistrar) RegisterHeld(string, types.LockRecord) {}
func (noopRegistrar) DeregisterHeld(string)                 {}
