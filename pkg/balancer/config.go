package balancer

import "time"

// Strategy names one of the five selection rules.
type Strategy string

const (
	StrategyRoundRobin       Strategy = "round-robin"
	StrategyLeastLoaded      Strategy = "least-loaded"
	StrategyCapabilityBased  Strategy = "capability-based"
	StrategyPerformanceBased Strategy = "performance-based"
	StrategyAdaptive         Strategy = "adaptive"
)

// baseStrategies are the four strategies adaptive blends. Order matches the
// initial weight list below.
var baseStrategies = []Strategy{
	StrategyRoundRobin,
	StrategyLeastLoaded,
	StrategyCapabilityBased,
	StrategyPerformanceBased,
}

// Config controls the Load Balancer's thresholds and adaptive-weight
// bounds.
type Config struct {
	// LoadThreshold marks a worker overloaded at or above this load fraction.
	LoadThreshold float64
	// UnderutilizedThreshold marks a worker underutilized below this load
	// fraction.
	UnderutilizedThreshold float64
	// ReliabilityWindow is how recently a worker's last failure must have
	// occurred to discount its performance-based reliability component.
	ReliabilityWindow time.Duration
	// WeightFloor/WeightCeiling bound each adaptive strategy weight.
	WeightFloor   float64
	WeightCeiling float64
	// WeightRecomputeInterval throttles how often adaptive weights are
	// recomputed from accumulated outcome counts.
	WeightRecomputeInterval time.Duration
	// VarianceThreshold and SpreadThreshold gate suggestMigration.
	VarianceThreshold float64
	SpreadThreshold   float64
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		LoadThreshold:           0.8,
		UnderutilizedThreshold:  0.3,
		ReliabilityWindow:       60 * time.Second,
		WeightFloor:             0.05,
		WeightCeiling:           0.8,
		WeightRecomputeInterval: 30 * time.Second,
		VarianceThreshold:       0.1,
		SpreadThreshold:         0.2,
	}
}

// initialWeights returns the adaptive strategy's starting weights, in the
// same order as baseStrategies: round-robin, least-loaded,
// capability-based, performance-based.
func initialWeights() map[Strategy]float64 {
	return map[Strategy]float64{
		StrategyRoundRobin:       0.4,
		StrategyLeastLoaded:      0.3,
		StrategyCapabilityBased:  0.2,
		StrategyPerformanceBased: 0.1,
	}
}
