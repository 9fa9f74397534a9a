package obs

import (
	"context"
	"strconv"
	"time"
)

// Sampler periodically pulls pool and cache state through injected
// closures and feeds it into Metrics' collectors — the counterpart to
// Reporter, which logs the same kind of snapshot instead of exporting
// it. Metrics' cumulative counters (TasksSubmitted/Executed/Stolen)
// mirror pool.Stats' own atomic counters, so Sampler tracks the last
// totals it saw and adds only the delta, the same "total counter fed by
// delta" shape Prometheus counters are meant to be driven by.
type Sampler struct {
	metrics *Metrics

	poolTotals      func() (submitted, executed, stolen int64)
	queueDepths     func() (global int, perWorker []int)
	cacheShardSizes func() []int

	lastSubmitted, lastExecuted, lastStolen int64

	stop chan struct{}
}

// NewSampler builds a Sampler against m. Any closure may be nil if that
// core isn't in play for a given run; Sampler skips the collectors it
// has no source for rather than leaving stale data.
func NewSampler(m *Metrics, poolTotals func() (int64, int64, int64), queueDepths func() (int, []int), cacheShardSizes func() []int) *Sampler {
	return &Sampler{
		metrics:         m,
		poolTotals:      poolTotals,
		queueDepths:     queueDepths,
		cacheShardSizes: cacheShardSizes,
		stop:            make(chan struct{}),
	}
}

// Start runs the sampling loop in its own goroutine until ctx is
// cancelled or Stop is called.
func (s *Sampler) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	go s.loop(ctx, interval)
}

// Stop ends the sampling loop. Safe to call once.
func (s *Sampler) Stop() {
	close(s.stop)
}

func (s *Sampler) loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.sample()
		}
	}
}

func (s *Sampler) sample() {
	if s.poolTotals != nil {
		submitted, executed, stolen := s.poolTotals()
		s.metrics.TasksSubmitted.Add(float64(submitted - s.lastSubmitted))
		s.metrics.TasksExecuted.Add(float64(executed - s.lastExecuted))
		s.metrics.TasksStolen.Add(float64(stolen - s.lastStolen))
		s.lastSubmitted, s.lastExecuted, s.lastStolen = submitted, executed, stolen
	}

	if s.queueDepths != nil {
		global, perWorker := s.queueDepths()
		s.metrics.QueueDepth.WithLabelValues("global").Set(float64(global))
		for i, depth := range perWorker {
			s.metrics.QueueDepth.WithLabelValues("worker-" + strconv.Itoa(i)).Set(float64(depth))
		}
	}

	if s.cacheShardSizes != nil {
		for i, size := range s.cacheShardSizes() {
			s.metrics.CacheSize.WithLabelValues(strconv.Itoa(i)).Set(float64(size))
		}
	}
}
