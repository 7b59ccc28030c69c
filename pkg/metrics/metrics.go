package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Worker registry metrics
	WorkersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sentinel_workers_total",
			Help: "Total number of registered workers by health state",
		},
		[]string{"health"},
	)

	// Lock manager metrics. These mirror the Lock Manager's own running
	// counters (pkg/lock.Snapshot) via periodic polling rather than being
	// incremented at the call site, so they're Gauges set to the latest
	// cumulative total rather than Counters incremented in place.
	LockAcquisitions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_lock_acquisitions",
			Help: "Total number of successful lock acquisitions",
		},
	)

	LockReleases = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_lock_releases",
			Help: "Total number of lock releases",
		},
	)

	LockConflicts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_lock_conflicts",
			Help: "Total number of lock acquisition conflicts",
		},
	)

	LockRetries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_lock_retries",
			Help: "Total number of lock acquisition retries",
		},
	)

	LockFailures = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_lock_failed_acquisitions",
			Help: "Total number of acquisitions that failed permanently",
		},
	)

	LockStaleClaimed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_lock_stale_claimed",
			Help: "Total number of locks reclaimed from a stale owner via steal-stale",
		},
	)

	LockMeanAcquisitionMs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_lock_mean_acquisition_ms",
			Help: "Running mean lock acquisition time in milliseconds",
		},
	)

	// Heartbeat monitor metrics
	HeartbeatSendTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_heartbeat_sends_total",
			Help: "Total number of heartbeat send cycles by outcome",
		},
		[]string{"outcome"},
	)

	HeartbeatSendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentinel_heartbeat_send_duration_seconds",
			Help:    "Time taken to fan a heartbeat out to all destinations",
			Buckets: prometheus.DefBuckets,
		},
	)

	LockRecoveriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_lock_recoveries_total",
			Help: "Total number of stale locks reclaimed by the heartbeat sweep",
		},
	)

	// Memory synchronizer metrics
	MemSyncConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_memsync_conflicts_total",
			Help: "Total number of vector-clock conflicts resolved by the synchronizer",
		},
	)

	MemSyncFlushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentinel_memsync_flush_duration_seconds",
			Help:    "Time taken to flush a batch of pending writes",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Cache metrics
	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	CacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	CacheEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_cache_evictions_total",
			Help: "Total number of entries evicted from the cache",
		},
	)

	// Load balancer metrics
	BalancerSelectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_balancer_selections_total",
			Help: "Total number of worker selections by strategy",
		},
		[]string{"strategy"},
	)

	BalancerSelectionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentinel_balancer_selection_duration_seconds",
			Help:    "Time taken to select a worker for a task",
			Buckets: prometheus.DefBuckets,
		},
	)

	BalancerOverloadedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_balancer_overloaded_workers_total",
			Help: "Total number of times a worker was flagged as overloaded",
		},
	)

	BalancerMigrationsSuggested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_balancer_migrations_suggested_total",
			Help: "Total number of task migrations suggested by the rebalancer",
		},
	)

	BalancerStrategyWeight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sentinel_balancer_adaptive_weight",
			Help: "Current adaptive weight assigned to each underlying strategy",
		},
		[]string{"strategy"},
	)

	// Ticket store / transport metrics
	TicketStoreRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_ticketstore_requests_total",
			Help: "Total number of ticket store operations by method and outcome",
		},
		[]string{"method", "outcome"},
	)

	TicketStoreRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinel_ticketstore_request_duration_seconds",
			Help:    "Ticket store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(WorkersTotal)

	prometheus.MustRegister(LockAcquisitions)
	prometheus.MustRegister(LockReleases)
	prometheus.MustRegister(LockConflicts)
	prometheus.MustRegister(LockRetries)
	prometheus.MustRegister(LockFailures)
	prometheus.MustRegister(LockStaleClaimed)
	prometheus.MustRegister(LockMeanAcquisitionMs)

	prometheus.MustRegister(HeartbeatSendTotal)
	prometheus.MustRegister(HeartbeatSendDuration)
	prometheus.MustRegister(LockRecoveriesTotal)

	prometheus.MustRegister(MemSyncConflictsTotal)
	prometheus.MustRegister(MemSyncFlushDuration)

	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(CacheEvictionsTotal)

	prometheus.MustRegister(BalancerSelectionsTotal)
	prometheus.MustRegister(BalancerSelectionDuration)
	prometheus.MustRegister(BalancerOverloadedTotal)
	prometheus.MustRegister(BalancerMigrationsSuggested)
	prometheus.MustRegister(BalancerStrategyWeight)

	prometheus.MustRegister(TicketStoreRequestsTotal)
	prometheus.MustRegister(TicketStoreRequestDuration)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
