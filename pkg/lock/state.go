package lock

import "github.com/cuemby/task-sentinel/pkg/types"

// State is a lock's lifecycle state as observed by a caller.
type State string

const (
	StateUnlocked  State = "unlocked"
	StateAcquiring State = "acquiring"
	StateLocked    State = "locked"
	StateConflict  State = "conflict"
	StateStale     State = "stale"
	StateFailed    State = "failed"
)

// Strategy names the behavior Acquire takes when a task is already
// assigned to someone else.
type Strategy string

const (
	// StrategyRetry sleeps for the current backoff and loops.
	StrategyRetry Strategy = "retry"
	// StrategyFailFast returns a conflict failure immediately.
	StrategyFailFast Strategy = "fail-fast"
	// StrategyStealStale reclaims the assignment if its owner's
	// heartbeat is older than LockTimeout, otherwise behaves like retry.
	StrategyStealStale Strategy = "steal-stale"
)

// Reason classifies why Acquire or Release failed.
type Reason string

const (
	ReasonConflict   Reason = "conflict"
	ReasonNotOwner   Reason = "not-owner"
	ReasonMaxRetries Reason = "max-retries"
	ReasonNetworkErr Reason = "network-error"
	ReasonNone       Reason = ""
)

// AcquireOptions parameterizes an Acquire call.
type AcquireOptions struct {
	WorkerID   string
	NodeID     string
	TaskType   string
	Complexity int
	Priority   int
	Strategy   Strategy
	// MaxRetries overrides Config.MaxRetries when non-zero.
	MaxRetries int
}

// Result is the outcome of Acquire: on success Record is populated and
// Reason is empty; on failure Record is the zero value and Reason/Err
// describe why.
type Result struct {
	Acquired bool
	Record   types.LockRecord
	Retries  int
	Reason   Reason
	Err      error
}

// StatusResult is the read-only answer to GetStatus: the lock's current
// state as seen in shared memory, without attempting to acquire or
// release anything.
type StatusResult struct {
	State  State
	Record types.LockRecord
	Err    error
}
