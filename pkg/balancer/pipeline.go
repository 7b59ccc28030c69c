package balancer

import (
	"sort"

	"github.com/cuemby/task-sentinel/pkg/types"
)

// filterCandidates runs steps 1-4 of the selection pipeline: capability
// filter, capacity/overload filter, anti-affinity removal, and an affinity
// soft-sort that stable-sorts preferred workers to the front.
func filterCandidates(requirements types.TaskRequirements, workers []*types.Worker) []*types.Worker {
	anti := toSet(requirements.AntiAffinity)
	affinity := toSet(requirements.Affinity)

	var candidates []*types.Worker
	for _, w := range workers {
		if w.Status == types.WorkerOffline || w.Status == types.WorkerOverloaded {
			continue
		}
		if !w.HasCapabilities(requirements.RequiredCapabilities) {
			continue
		}
		if w.AvailableCapacity() < requirements.Complexity {
			continue
		}
		if _, excluded := anti[w.ID]; excluded {
			continue
		}
		candidates = append(candidates, w)
	}

	if len(affinity) > 0 {
		sort.SliceStable(candidates, func(i, j int) bool {
			_, iPreferred := affinity[candidates[i].ID]
			_, jPreferred := affinity[candidates[j].ID]
			return iPreferred && !jPreferred
		})
	}

	return candidates
}

func toSet(ids []string) map[string]struct{} {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// pickMax returns the candidate with the highest score, breaking ties by
// worker ID lexicographically. Returns nil if candidates is empty.
func pickMax(candidates []*types.Worker, score func(*types.Worker) float64) *types.Worker {
	if len(candidates) == 0 {
		return nil
	}
	best := candidates[0]
	bestScore := score(best)
	for _, w := range candidates[1:] {
		s := score(w)
		if s > bestScore || (s == bestScore && w.ID < best.ID) {
			best = w
			bestScore = s
		}
	}
	return best
}
