/*
Package metrics provides Prometheus metrics collection and exposition for
the coordination core.

All metrics are registered at package init and exposed over HTTP for
scraping via Handler(), which wraps promhttp.Handler().

# Metric sources

Two different wiring styles are used, deliberately:

  - Components that already keep their own running totals (the Lock
    Manager's Snapshot) are exposed as Gauges, polled periodically by
    Collector rather than incremented at the call site. The component is
    the source of truth; the metric just mirrors it.
  - Everything else (heartbeat sends, cache hits/misses/evictions,
    memory-synchronizer conflicts and flushes, balancer selections,
    ticket store requests) is incremented or observed directly at the
    call site, since no other component tracks those totals.

# Metrics Catalog

Worker Registry:

	sentinel_workers_total{health}            Gauge   workers by health state (healthy/degraded/unhealthy)

Lock Manager (polled from pkg/lock.Snapshot by Collector):

	sentinel_lock_acquisitions                Gauge   successful acquisitions
	sentinel_lock_releases                     Gauge   releases
	sentinel_lock_conflicts                    Gauge   acquisition conflicts
	sentinel_lock_retries                      Gauge   acquisition retries
	sentinel_lock_failed_acquisitions          Gauge   permanently failed acquisitions
	sentinel_lock_stale_claimed                Gauge   locks reclaimed via steal-stale
	sentinel_lock_mean_acquisition_ms          Gauge   running mean acquisition latency

Heartbeat Monitor:

	sentinel_heartbeat_sends_total{outcome}    Counter send cycles by outcome (success/failed)
	sentinel_heartbeat_send_duration_seconds   Histogram fan-out duration
	sentinel_lock_recoveries_total             Counter   stale locks reclaimed by the sweep

Memory Synchronizer:

	sentinel_memsync_conflicts_total           Counter vector-clock conflicts resolved
	sentinel_memsync_flush_duration_seconds    Histogram pending-write batch flush duration

Cache:

	sentinel_cache_hits_total                  Counter
	sentinel_cache_misses_total                Counter
	sentinel_cache_evictions_total             Counter

Load Balancer:

	sentinel_balancer_selections_total{strategy}  Counter selections per strategy
	sentinel_balancer_selection_duration_seconds  Histogram
	sentinel_balancer_overloaded_workers_total    Counter
	sentinel_balancer_migrations_suggested_total  Counter
	sentinel_balancer_adaptive_weight{strategy}   Gauge   current learned weight per strategy

Ticket Store (HTTP adapter):

	sentinel_ticketstore_requests_total{method,outcome}   Counter
	sentinel_ticketstore_request_duration_seconds{method} Histogram

# Usage

	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDuration(metrics.HeartbeatSendDuration)

	metrics.CacheHitsTotal.Inc()

	http.Handle("/metrics", metrics.Handler())

# Collector

Collector polls the Worker Registry and Lock Manager on a ticker and
republishes their totals as gauges:

	c := metrics.NewCollector(reg, lockMgr)
	c.Start()
	defer c.Stop()
*/
package metrics
