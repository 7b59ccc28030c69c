package heartbeat

import (
	"runtime"
	"time"
)

// sample is a local resource snapshot used to build a heartbeat payload
// and to classify this process's own health.
type sample struct {
	cpuPercent  float64
	memoryBytes uint64
	uptime      time.Duration
}

// sampler tracks enough process-local state between calls to derive a CPU
// percentage from cumulative GC pause time, since no third-party sampling
// library is wired into this module (see design notes).
type sampler struct {
	startedAt  time.Time
	lastSample time.Time
	lastPauses uint64
}

func newSampler() *sampler {
	now := time.Now()
	return &sampler{startedAt: now, lastSample: now}
}

func (s *sampler) take() sample {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	now := time.Now()
	elapsed := now.Sub(s.lastSample)

	var cpuPercent float64
	if elapsed > 0 {
		deltaPauses := mem.PauseTotalNs - s.lastPauses
		cpuPercent = float64(deltaPauses) / float64(elapsed.Nanoseconds()) * 100
		if cpuPercent > 100 {
			cpuPercent = 100
		}
	}

	s.lastSample = now
	s.lastPauses = mem.PauseTotalNs

	return sample{
		cpuPercent:  cpuPercent,
		memoryBytes: mem.Alloc,
		uptime:      now.Sub(s.startedAt),
	}
}
