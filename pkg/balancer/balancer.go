package balancer

import (
	"errors"
	"sync"
	"time"

	"github.com/cuemby/task-sentinel/pkg/log"
	"github.com/cuemby/task-sentinel/pkg/metrics"
	"github.com/cuemby/task-sentinel/pkg/types"
)

// ErrNoMatch is returned when no candidate worker survives the selection
// pipeline.
var ErrNoMatch = errors.New("balancer: no matching worker")

// outcome accumulates success/failure counts for one strategy, used to
// renormalize adaptive weights.
type outcome struct {
	successes int64
	failures  int64
}

func (o outcome) successRate() float64 {
	total := o.successes + o.failures
	if total == 0 {
		return 0
	}
	return float64(o.successes) / float64(total)
}

// Balancer is the Load Balancer. It holds no worker inventory of its own;
// every selection and scoring call is given the candidate list by its
// caller.
type Balancer struct {
	cfg Config

	mu                  sync.Mutex
	roundRobinIdx       int
	weights             map[Strategy]float64
	outcomes            map[Strategy]*outcome
	lastWeightRecompute time.Time
}

// New builds a Balancer with fresh adaptive weights.
func New(cfg Config) *Balancer {
	b := &Balancer{
		cfg:                 cfg,
		weights:             initialWeights(),
		outcomes:            make(map[Strategy]*outcome, len(baseStrategies)),
		lastWeightRecompute: time.Now(),
	}
	for _, s := range baseStrategies {
		b.outcomes[s] = &outcome{}
	}
	b.publishWeights()
	return b
}

// SelectWorker runs the selection pipeline and delegates to strategy,
// returning ErrNoMatch if no candidate survives filtering.
func (b *Balancer) SelectWorker(requirements types.TaskRequirements, workers []*types.Worker, strategy Strategy) (*types.Worker, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.BalancerSelectionDuration)

	candidates := filterCandidates(requirements, workers)
	if len(candidates) == 0 {
		return nil, ErrNoMatch
	}

	var chosen *types.Worker
	switch strategy {
	case StrategyRoundRobin:
		chosen = b.selectRoundRobin(candidates)
	case StrategyLeastLoaded:
		chosen = pickMax(candidates, leastLoadedScore)
	case StrategyCapabilityBased:
		chosen = pickMax(candidates, func(w *types.Worker) float64 { return capabilityScore(requirements, w) })
	case StrategyPerformanceBased:
		now := time.Now()
		chosen = pickMax(candidates, func(w *types.Worker) float64 {
			return performanceScore(w, b.cfg.ReliabilityWindow, now)
		})
	case StrategyAdaptive:
		chosen = b.selectAdaptive(requirements, candidates)
	default:
		chosen = b.selectRoundRobin(candidates)
	}

	if chosen == nil {
		return nil, ErrNoMatch
	}
	metrics.BalancerSelectionsTotal.WithLabelValues(string(strategy)).Inc()
	log.WithComponent("balancer").Debug().Str("worker_id", chosen.ID).Str("strategy", string(strategy)).Str("task_id", requirements.TaskID).Msg("worker selected")
	return chosen, nil
}

func (b *Balancer) selectRoundRobin(candidates []*types.Worker) *types.Worker {
	b.mu.Lock()
	idx := b.roundRobinIdx % len(candidates)
	b.roundRobinIdx++
	b.mu.Unlock()
	return candidates[idx]
}

// selectAdaptive evaluates the four base strategies, blends their scores by
// the current learned weights, and returns the argmax.
func (b *Balancer) selectAdaptive(requirements types.TaskRequirements, candidates []*types.Worker) *types.Worker {
	now := time.Now()
	b.mu.Lock()
	weights := make(map[Strategy]float64, len(b.weights))
	for k, v := range b.weights {
		weights[k] = v
	}
	b.mu.Unlock()

	return pickMax(candidates, func(w *types.Worker) float64 {
		return weights[StrategyRoundRobin]*roundRobinNormalized(candidates, w)+
			weights[StrategyLeastLoaded]*normalizedLeastLoaded(candidates, w)+
			weights[StrategyCapabilityBased]*capabilityScore(requirements, w)+
			weights[StrategyPerformanceBased]*performanceScore(w, b.cfg.ReliabilityWindow, now)
	})
}

// roundRobinNormalized gives every candidate an equal share, since
// round-robin itself carries no per-worker signal; it contributes to the
// adaptive blend only through its learned weight.
func roundRobinNormalized(candidates []*types.Worker, _ *types.Worker) float64 {
	if len(candidates) == 0 {
		return 0
	}
	return 1.0 / float64(len(candidates))
}

func normalizedLeastLoaded(candidates []*types.Worker, w *types.Worker) float64 {
	maxCap := 0
	for _, c := range candidates {
		if c.AvailableCapacity() > maxCap {
			maxCap = c.AvailableCapacity()
		}
	}
	if maxCap == 0 {
		return 0
	}
	return float64(w.AvailableCapacity()) / float64(maxCap)
}

// WorkerScore is scoreWorkers' diagnostic breakdown for one candidate.
type WorkerScore struct {
	WorkerID    string
	Capacity    float64
	Performance float64
	Affinity    float64
	Reliability float64
	Total       float64
}

// ScoreWorkers returns every filtered candidate annotated with its
// component scores and weighted total, for diagnostic use. It does not
// pick a winner.
func (b *Balancer) ScoreWorkers(requirements types.TaskRequirements, workers []*types.Worker) []WorkerScore {
	candidates := filterCandidates(requirements, workers)
	affinity := toSet(requirements.Affinity)
	now := time.Now()

	scores := make([]WorkerScore, 0, len(candidates))
	for _, w := range candidates {
		capacity := normalizedLeastLoaded(candidates, w)
		perf := performanceScore(w, b.cfg.ReliabilityWindow, now)
		rel := reliability(w, b.cfg.ReliabilityWindow, now)
		aff := 0.0
		if _, ok := affinity[w.ID]; ok {
			aff = 1.0
		}
		total := 0.25*capacity + 0.45*perf + 0.15*aff + 0.15*rel
		scores = append(scores, WorkerScore{
			WorkerID:    w.ID,
			Capacity:    capacity,
			Performance: perf,
			Affinity:    aff,
			Reliability: rel,
			Total:       total,
		})
	}
	return scores
}

// UpdateContext records a task outcome against decidingStrategy and, once
// WeightRecomputeInterval has elapsed, renormalizes the adaptive weights
// over every base strategy's accumulated success rate.
func (b *Balancer) UpdateContext(decidingStrategy Strategy, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.outcomes[decidingStrategy]
	if !ok {
		return
	}
	if success {
		o.successes++
	} else {
		o.failures++
	}

	if time.Since(b.lastWeightRecompute) < b.cfg.WeightRecomputeInterval {
		return
	}
	b.recomputeWeightsLocked()
	b.lastWeightRecompute = time.Now()
}

func (b *Balancer) recomputeWeightsLocked() {
	sum := 0.0
	rates := make(map[Strategy]float64, len(baseStrategies))
	for _, s := range baseStrategies {
		rate := b.outcomes[s].successRate()
		rates[s] = rate
		sum += rate
	}
	if sum == 0 {
		return // no signal yet; keep the current weights
	}

	for _, s := range baseStrategies {
		w := rates[s] / sum
		if w < b.cfg.WeightFloor {
			w = b.cfg.WeightFloor
		}
		if w > b.cfg.WeightCeiling {
			w = b.cfg.WeightCeiling
		}
		b.weights[s] = w
	}
	b.publishWeightsLocked()
}

func (b *Balancer) publishWeights() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.publishWeightsLocked()
}

func (b *Balancer) publishWeightsLocked() {
	for s, w := range b.weights {
		metrics.BalancerStrategyWeight.WithLabelValues(string(s)).Set(w)
	}
}
