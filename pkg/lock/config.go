package lock

import "time"

// Config controls the Lock Manager's retry/backoff schedule and lock
// lifetime.
type Config struct {
	// InitialBackoff is the first retry delay on conflict.
	InitialBackoff time.Duration
	// MaxBackoff caps the doubling backoff schedule.
	MaxBackoff time.Duration
	// MaxRetries bounds retry attempts before an acquire fails.
	MaxRetries int
	// RateLimitBackoff is used instead of the doubling schedule when the
	// ticket store surfaces a rate-limit error; still counted against
	// MaxRetries.
	RateLimitBackoff time.Duration
	// LockTimeout is the steal-stale threshold and the basis for the
	// shared-memory lock record's TTL (2 * LockTimeout).
	LockTimeout time.Duration
	// JitterFraction adds up to this fraction of the computed backoff as
	// random jitter. Zero disables jitter.
	JitterFraction float64
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		InitialBackoff:   time.Second,
		MaxBackoff:       16 * time.Second,
		MaxRetries:       5,
		RateLimitBackoff: 60 * time.Second,
		LockTimeout:      5 * time.Minute,
		JitterFraction:   0.2,
	}
}
