package balancer

import (
	"time"

	"github.com/cuemby/task-sentinel/pkg/types"
)

// capabilityScore scores a worker by specialization overlap (its
// capability set relative to the requirement) divided by its total
// capability count, penalized by current load fraction.
func capabilityScore(requirements types.TaskRequirements, w *types.Worker) float64 {
	if len(w.Capabilities) == 0 {
		return 0
	}
	overlap := 0
	for cap := range requirements.RequiredCapabilities {
		if _, ok := w.Capabilities[cap]; ok {
			overlap++
		}
	}
	specialization := float64(overlap) / float64(len(w.Capabilities))
	return specialization * (1 - w.LoadFraction())
}

// reliability discounts a worker whose most recent failure happened within
// window; otherwise a worker with no failure history is fully reliable.
func reliability(w *types.Worker, window time.Duration, now time.Time) float64 {
	if w.Metrics.LastFailureAt.IsZero() {
		return 1.0
	}
	if now.Sub(w.Metrics.LastFailureAt) < window {
		return 0.0
	}
	return 1.0
}

// performanceScore implements the spec's weighted performance formula.
func performanceScore(w *types.Worker, window time.Duration, now time.Time) float64 {
	successRate := w.Metrics.SuccessRate()
	durationComponent := 1 / (1 + w.Metrics.AvgDurationMs/1000)
	rel := reliability(w, window, now)
	loadComponent := 1 - w.LoadFraction()
	return 0.35*successRate + 0.25*durationComponent + 0.25*rel + 0.15*loadComponent
}

// leastLoadedScore is simply available capacity: higher is better.
func leastLoadedScore(w *types.Worker) float64 {
	return float64(w.AvailableCapacity())
}
