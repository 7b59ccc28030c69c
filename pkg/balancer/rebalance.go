package balancer

import (
	"sort"

	"github.com/cuemby/task-sentinel/pkg/metrics"
	"github.com/cuemby/task-sentinel/pkg/types"
)

// MigrationSuggestion proposes moving load from an overloaded worker to an
// underutilized one. Priority is 10*load of the source worker; callers
// decide whether to act.
type MigrationSuggestion struct {
	From     string
	To       string
	Priority float64
}

// DetectOverload pairs each overloaded worker (load >= LoadThreshold,
// boundary-inclusive) with an underutilized one (load < UnderutilizedThreshold).
// Every overloaded worker gets a suggestion: the underutilized pool is
// ranked by ascending load and cycled through, so a surplus of overloaded
// workers maps many-to-one onto the same best-available target rather than
// being left unpaired.
func (b *Balancer) DetectOverload(workers []*types.Worker) []MigrationSuggestion {
	var overloaded, underutilized []*types.Worker
	for _, w := range workers {
		load := w.LoadFraction()
		switch {
		case load >= b.cfg.LoadThreshold:
			overloaded = append(overloaded, w)
		case load < b.cfg.UnderutilizedThreshold:
			underutilized = append(underutilized, w)
		}
	}
	if len(overloaded) == 0 || len(underutilized) == 0 {
		return nil
	}

	sort.Slice(overloaded, func(i, j int) bool { return overloaded[i].LoadFraction() > overloaded[j].LoadFraction() })
	sort.Slice(underutilized, func(i, j int) bool { return underutilized[i].LoadFraction() < underutilized[j].LoadFraction() })

	suggestions := make([]MigrationSuggestion, 0, len(overloaded))
	for i, w := range overloaded {
		target := underutilized[i%len(underutilized)]
		suggestions = append(suggestions, MigrationSuggestion{
			From:     w.ID,
			To:       target.ID,
			Priority: 10 * w.LoadFraction(),
		})
		metrics.BalancerOverloadedTotal.Inc()
	}
	return suggestions
}

// SuggestMigration reports whether the cluster's load distribution is
// skewed enough to warrant rebalancing: load-fraction variance above
// VarianceThreshold and a busiest-vs-least-busy spread above
// SpreadThreshold. pendingQueue is accepted to match the spec's signature;
// it informs no decision here beyond confirming there is outstanding work
// worth rebalancing for.
func (b *Balancer) SuggestMigration(workers []*types.Worker, pendingQueue []types.TaskRequirements) *MigrationSuggestion {
	if len(workers) < 2 || len(pendingQueue) == 0 {
		return nil
	}

	loads := make([]float64, len(workers))
	mean := 0.0
	for i, w := range workers {
		loads[i] = w.LoadFraction()
		mean += loads[i]
	}
	mean /= float64(len(loads))

	variance := 0.0
	for _, l := range loads {
		variance += (l - mean) * (l - mean)
	}
	variance /= float64(len(loads))

	busiest, leastBusy := workers[0], workers[0]
	for _, w := range workers {
		if w.LoadFraction() > busiest.LoadFraction() {
			busiest = w
		}
		if w.LoadFraction() < leastBusy.LoadFraction() {
			leastBusy = w
		}
	}
	spread := busiest.LoadFraction() - leastBusy.LoadFraction()

	if variance <= b.cfg.VarianceThreshold || spread <= b.cfg.SpreadThreshold {
		return nil
	}

	metrics.BalancerMigrationsSuggested.Inc()
	return &MigrationSuggestion{
		From:     busiest.ID,
		To:       leastBusy.ID,
		Priority: 10 * busiest.LoadFraction(),
	}
}

// queueEntry pairs a task with its best achievable score, so the two travel
// together through the sort below.
type queueEntry struct {
	req   types.TaskRequirements
	score float64
}

// ReorderQueue sorts queue by descending task priority, then descending
// best-candidate score, so the most urgent and most servable tasks surface
// first.
func (b *Balancer) ReorderQueue(queue []types.TaskRequirements, workers []*types.Worker) []types.TaskRequirements {
	entries := make([]queueEntry, len(queue))
	for i, req := range queue {
		best := 0.0
		for _, score := range b.ScoreWorkers(req, workers) {
			if score.Total > best {
				best = score.Total
			}
		}
		entries[i] = queueEntry{req: req, score: best}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].req.Priority != entries[j].req.Priority {
			return entries[i].req.Priority > entries[j].req.Priority
		}
		return entries[i].score > entries[j].score
	})

	reordered := make([]types.TaskRequirements, len(entries))
	for i, e := range entries {
		reordered[i] = e.req
	}
	return reordered
}
