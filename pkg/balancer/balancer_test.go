package balancer

import (
	"testing"

	"github.com/cuemby/task-sentinel/pkg/types"
)

func worker(id string, available, max int, status types.WorkerStatus) *types.Worker {
	return &types.Worker{
		ID:                 id,
		MaxConcurrentTasks: max,
		CurrentTasks:       max - available,
		Status:             status,
		Capabilities:       map[string]struct{}{"build": {}},
	}
}

func TestSelectWorkerLeastLoadedPicksMostAvailableCapacity(t *testing.T) {
	b := New(DefaultConfig())
	workers := []*types.Worker{
		worker("w1", 1, 4, types.WorkerOnline),
		worker("w2", 3, 4, types.WorkerOnline),
		worker("w3", 2, 4, types.WorkerOnline),
	}
	req := types.TaskRequirements{RequiredCapabilities: map[string]struct{}{"build": {}}, Complexity: 1}

	chosen, err := b.SelectWorker(req, workers, StrategyLeastLoaded)
	if err != nil {
		t.Fatalf("SelectWorker: %v", err)
	}
	if chosen.ID != "w2" {
		t.Fatalf("chosen = %s, want w2", chosen.ID)
	}
}

func TestSelectWorkerExcludesOfflineAndOverloaded(t *testing.T) {
	b := New(DefaultConfig())
	workers := []*types.Worker{
		worker("w1", 0, 4, types.WorkerOffline),
		worker("w2", 4, 4, types.WorkerOverloaded),
		worker("w3", 1, 4, types.WorkerOnline),
	}
	req := types.TaskRequirements{RequiredCapabilities: map[string]struct{}{"build": {}}, Complexity: 1}

	chosen, err := b.SelectWorker(req, workers, StrategyLeastLoaded)
	if err != nil {
		t.Fatalf("SelectWorker: %v", err)
	}
	if chosen.ID != "w3" {
		t.Fatalf("chosen = %s, want w3", chosen.ID)
	}
}

func TestSelectWorkerRejectsMissingCapability(t *testing.T) {
	b := New(DefaultConfig())
	w := worker("w1", 4, 4, types.WorkerOnline)
	w.Capabilities = map[string]struct{}{"deploy": {}}
	req := types.TaskRequirements{RequiredCapabilities: map[string]struct{}{"build": {}}, Complexity: 1}

	if _, err := b.SelectWorker(req, []*types.Worker{w}, StrategyLeastLoaded); err != ErrNoMatch {
		t.Fatalf("err = %v, want ErrNoMatch", err)
	}
}

func TestSelectWorkerExcludesAntiAffinity(t *testing.T) {
	b := New(DefaultConfig())
	workers := []*types.Worker{
		worker("w1", 4, 4, types.WorkerOnline),
		worker("w2", 1, 4, types.WorkerOnline),
	}
	req := types.TaskRequirements{
		RequiredCapabilities: map[string]struct{}{"build": {}},
		Complexity:           1,
		AntiAffinity:         []string{"w1"},
	}

	chosen, err := b.SelectWorker(req, workers, StrategyLeastLoaded)
	if err != nil {
		t.Fatalf("SelectWorker: %v", err)
	}
	if chosen.ID != "w2" {
		t.Fatalf("chosen = %s, want w2 (w1 excluded by anti-affinity)", chosen.ID)
	}
}

func TestSelectWorkerRoundRobinRotates(t *testing.T) {
	b := New(DefaultConfig())
	workers := []*types.Worker{
		worker("w1", 4, 4, types.WorkerOnline),
		worker("w2", 4, 4, types.WorkerOnline),
	}
	req := types.TaskRequirements{RequiredCapabilities: map[string]struct{}{"build": {}}, Complexity: 1}

	first, _ := b.SelectWorker(req, workers, StrategyRoundRobin)
	second, _ := b.SelectWorker(req, workers, StrategyRoundRobin)
	if first.ID == second.ID {
		t.Fatalf("expected round-robin to rotate, got %s then %s", first.ID, second.ID)
	}
}

func TestSelectWorkerTiesBreakByWorkerID(t *testing.T) {
	b := New(DefaultConfig())
	workers := []*types.Worker{
		worker("zeta", 2, 4, types.WorkerOnline),
		worker("alpha", 2, 4, types.WorkerOnline),
	}
	req := types.TaskRequirements{RequiredCapabilities: map[string]struct{}{"build": {}}, Complexity: 1}

	chosen, err := b.SelectWorker(req, workers, StrategyLeastLoaded)
	if err != nil {
		t.Fatalf("SelectWorker: %v", err)
	}
	if chosen.ID != "alpha" {
		t.Fatalf("chosen = %s, want alpha (lexicographic tie-break)", chosen.ID)
	}
}

func TestScoreWorkersReturnsBreakdownForEveryCandidate(t *testing.T) {
	b := New(DefaultConfig())
	workers := []*types.Worker{
		worker("w1", 2, 4, types.WorkerOnline),
		worker("w2", 1, 4, types.WorkerOnline),
	}
	req := types.TaskRequirements{RequiredCapabilities: map[string]struct{}{"build": {}}, Complexity: 1}

	scores := b.ScoreWorkers(req, workers)
	if len(scores) != 2 {
		t.Fatalf("len(scores) = %d, want 2", len(scores))
	}
}

func TestUpdateContextRecomputesWeightsWithinBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WeightRecomputeInterval = 0
	b := New(cfg)

	for i := 0; i < 20; i++ {
		b.UpdateContext(StrategyRoundRobin, true)
		b.UpdateContext(StrategyLeastLoaded, false)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for s, w := range b.weights {
		if w < cfg.WeightFloor || w > cfg.WeightCeiling {
			t.Fatalf("weight for %s = %f, outside [%f, %f]", s, w, cfg.WeightFloor, cfg.WeightCeiling)
		}
	}
	if b.weights[StrategyRoundRobin] <= b.weights[StrategyLeastLoaded] {
		t.Fatalf("expected round-robin weight to rise above least-loaded after all-success vs all-failure outcomes")
	}
}

func TestDetectOverloadPairsOverloadedWithUnderutilized(t *testing.T) {
	b := New(DefaultConfig())
	workers := []*types.Worker{
		worker("busy", 0, 10, types.WorkerOnline),  // load 1.0
		worker("idle", 9, 10, types.WorkerOnline),  // load 0.1
		worker("mid", 5, 10, types.WorkerOnline),   // load 0.5, neither bucket
	}

	suggestions := b.DetectOverload(workers)
	if len(suggestions) != 1 {
		t.Fatalf("len(suggestions) = %d, want 1", len(suggestions))
	}
	if suggestions[0].From != "busy" || suggestions[0].To != "idle" {
		t.Fatalf("suggestion = %+v, want from busy to idle", suggestions[0])
	}
}

func TestDetectOverloadIsBoundaryInclusive(t *testing.T) {
	b := New(DefaultConfig())
	workers := []*types.Worker{
		worker("exact", 2, 10, types.WorkerOnline), // load 0.8 == LoadThreshold
		worker("idle", 9, 10, types.WorkerOnline),  // load 0.1
	}

	suggestions := b.DetectOverload(workers)
	if len(suggestions) != 1 {
		t.Fatalf("len(suggestions) = %d, want 1 (a worker exactly at LoadThreshold must count as overloaded)", len(suggestions))
	}
	if suggestions[0].From != "exact" {
		t.Fatalf("suggestion = %+v, want from exact", suggestions[0])
	}
}

func TestDetectOverloadPairsEveryOverloadedWorkerOntoSharedTarget(t *testing.T) {
	b := New(DefaultConfig())
	workers := []*types.Worker{
		worker("w1", 0, 10, types.WorkerOnline), // load 1.0
		worker("w2", 1, 10, types.WorkerOnline), // load 0.9
		worker("w3", 9, 10, types.WorkerOnline), // load 0.1, the only underutilized worker
	}

	suggestions := b.DetectOverload(workers)
	if len(suggestions) != 2 {
		t.Fatalf("len(suggestions) = %d, want 2 (one per overloaded worker, not capped to the underutilized count)", len(suggestions))
	}
	for _, s := range suggestions {
		if s.To != "w3" {
			t.Fatalf("suggestion = %+v, want every suggestion targeting w3", s)
		}
	}
	if suggestions[0].From != "w1" || suggestions[1].From != "w2" {
		t.Fatalf("suggestions = %+v, want w1 (busier) before w2", suggestions)
	}
}

func TestSuggestMigrationRequiresSkewAndPendingWork(t *testing.T) {
	b := New(DefaultConfig())
	workers := []*types.Worker{
		worker("busy", 0, 10, types.WorkerOnline),
		worker("idle", 10, 10, types.WorkerOnline),
	}

	if rec := b.SuggestMigration(workers, nil); rec != nil {
		t.Fatalf("expected nil recommendation with no pending queue, got %+v", rec)
	}

	pending := []types.TaskRequirements{{TaskID: "t1"}}
	rec := b.SuggestMigration(workers, pending)
	if rec == nil {
		t.Fatal("expected a migration recommendation given a skewed cluster and pending work")
	}
}

func TestReorderQueueSortsByPriorityThenScore(t *testing.T) {
	b := New(DefaultConfig())
	workers := []*types.Worker{worker("w1", 4, 4, types.WorkerOnline)}
	queue := []types.TaskRequirements{
		{TaskID: "low", Priority: 1},
		{TaskID: "high", Priority: 5},
	}

	reordered := b.ReorderQueue(queue, workers)
	if reordered[0].TaskID != "high" {
		t.Fatalf("reordered[0] = %s, want high (higher priority first)", reordered[0].TaskID)
	}
}
