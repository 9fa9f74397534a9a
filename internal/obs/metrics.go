package obs

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors cmd/demoserver registers for
// both cores. Cache hit/miss/eviction counters are fed inline through
// cache.WithHooks; the pool throughput counters and the queue/shard
// depth gauges are point-in-time reads rather than discrete events, so
// Sampler polls for those and feeds them in on a ticker.
type Metrics struct {
	Registry *prometheus.Registry

	TasksSubmitted prometheus.Counter
	TasksExecuted  prometheus.Counter
	TasksStolen    prometheus.Counter
	QueueDepth     *prometheus.GaugeVec // labeled by queue: "global" or "worker-<n>"

	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	CacheEvictions prometheus.Counter
	CacheSize      *prometheus.GaugeVec // labeled by shard index
}

// NewMetrics constructs and registers every collector against a fresh
// registry, so cmd/demoserver's /metrics endpoint never leaks into the
// global default registry used by library code elsewhere in the process.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		TasksSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pool_tasks_submitted_total",
			Help: "Total tasks accepted by Pool.Submit.",
		}),
		TasksExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pool_tasks_executed_total",
			Help: "Total tasks that finished running.",
		}),
		TasksStolen: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pool_tasks_stolen_total",
			Help: "Total tasks picked up via work stealing rather than a worker's own queue.",
		}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pool_queue_depth",
			Help: "Current queue length, labeled by queue name.",
		}, []string{"queue"}),

		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total cache Get calls that found a live entry.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total cache Get calls that found nothing or an expired entry.",
		}),
		CacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total entries evicted under LRU pressure from Set.",
		}),
		CacheSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cache_shard_size",
			Help: "Current entry count, labeled by shard index.",
		}, []string{"shard"}),
	}

	reg.MustRegister(
		m.TasksSubmitted, m.TasksExecuted, m.TasksStolen, m.QueueDepth,
		m.CacheHits, m.CacheMisses, m.CacheEvictions, m.CacheSize,
	)
	return m
}
