package lock

import "sync"

// Metrics accumulates the Lock Manager's running counters. All fields are
// protected by the enclosing metricsHolder's mu; read access goes through
// Snapshot.
type Metrics struct {
	TotalAcquisitions  int64
	TotalReleases      int64
	TotalConflicts     int64
	TotalRetries       int64
	FailedAcquisitions int64
	StaleLocksClaimed  int64
	meanAcquireMs      float64
	acquireSamples     int64
}

func (m *Metrics) recordAcquireDuration(ms float64) {
	m.meanAcquireMs = (m.meanAcquireMs*float64(m.acquireSamples) + ms) / float64(m.acquireSamples+1)
	m.acquireSamples++
}

// Snapshot is a thread-safe point-in-time copy of Metrics.
type Snapshot struct {
	TotalAcquisitions  int64
	TotalReleases      int64
	TotalConflicts     int64
	TotalRetries       int64
	FailedAcquisitions int64
	StaleLocksClaimed  int64
	MeanAcquisitionMs  float64
}

type metricsHolder struct {
	mu sync.Mutex
	m  Metrics
}

func (h *metricsHolder) snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Snapshot{
		TotalAcquisitions:  h.m.TotalAcquisitions,
		TotalReleases:      h.m.TotalReleases,
		TotalConflicts:     h.m.TotalConflicts,
		TotalRetries:       h.m.TotalRetries,
		FailedAcquisitions: h.m.FailedAcquisitions,
		StaleLocksClaimed:  h.m.StaleLocksClaimed,
		MeanAcquisitionMs:  h.m.meanAcquireMs,
	}
}
