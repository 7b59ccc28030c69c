package heartbeat

import "time"

// Config controls the Heartbeat Monitor's timing and health thresholds.
type Config struct {
	// WorkerID and NodeID identify this process in every payload.
	WorkerID string
	NodeID   string

	// HeartbeatInterval is the send-cycle period.
	HeartbeatInterval time.Duration
	// RetryAttempts bounds how many times a failed send cycle retries.
	RetryAttempts int
	// RetryDelay is the pause between send-cycle retry attempts.
	RetryDelay time.Duration

	// DetectionInterval is the stale-lock sweep period.
	DetectionInterval time.Duration
	// StaleThreshold is how long since a lock owner's last heartbeat
	// before the lock is provisionally considered stale.
	StaleThreshold time.Duration

	// HealthyThreshold/DegradedThreshold classify this worker's own
	// health the same way the registry classifies others', with
	// additional local capacity thresholds layered on top.
	HealthyThreshold  time.Duration
	DegradedThreshold time.Duration
	// CPUUnhealthyPercent marks the worker unhealthy regardless of
	// heartbeat recency once local CPU usage exceeds it.
	CPUUnhealthyPercent float64
}

// DefaultConfig returns the documented defaults. WorkerID/NodeID must
// still be set by the caller.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval:   5 * time.Minute,
		RetryAttempts:       3,
		RetryDelay:          5 * time.Second,
		DetectionInterval:   time.Minute,
		StaleThreshold:      10 * time.Minute,
		HealthyThreshold:    10 * time.Minute,
		DegradedThreshold:   15 * time.Minute,
		CPUUnhealthyPercent: 90,
	}
}
