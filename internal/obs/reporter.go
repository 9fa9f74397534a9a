package obs

import (
	"context"
	"runtime"
	"time"

	"go.uber.org/zap"
)

// Reporter periodically logs pool and cache activity, the same
// "sample a snapshot, log it, repeat" shape as the gateway's original
// PerformanceMonitor, retargeted from HTTP request-per-second tracking
// onto the pool/cache counters this module actually has.
type Reporter struct {
	logger   *zap.Logger
	interval time.Duration

	poolStats  func() (workers int, submitted, executed, stolen int64, working int)
	cacheStats func() (size, capacity int)

	stop chan struct{}
}

// NewReporter builds a Reporter. Either stats func may be nil if that
// core isn't in play for a given run (e.g. a cache-only demo).
func NewReporter(logger *zap.Logger, interval time.Duration, poolStats func() (int, int64, int64, int64, int), cacheStats func() (int, int)) *Reporter {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Reporter{
		logger:     logger,
		interval:   interval,
		poolStats:  poolStats,
		cacheStats: cacheStats,
		stop:       make(chan struct{}),
	}
}

// Start runs the reporting loop in its own goroutine until ctx is
// cancelled or Stop is called.
func (r *Reporter) Start(ctx context.Context) {
	go r.loop(ctx)
	r.logger.Info("stats reporter started", zap.Duration("interval", r.interval))
}

// Stop ends the reporting loop. Safe to call once; a second call would
// panic on the closed channel, matching the original monitor's contract.
func (r *Reporter) Stop() {
	close(r.stop)
	r.logger.Info("stats reporter stopped")
}

func (r *Reporter) loop(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case <-ticker.C:
			r.report()
		}
	}
}

func (r *Reporter) report() {
	fields := []zap.Field{
		zap.Int("goroutines", runtime.NumGoroutine()),
	}

	if r.poolStats != nil {
		workers, submitted, executed, stolen, working := r.poolStats()
		fields = append(fields,
			zap.Int("pool_workers", workers),
			zap.Int64("pool_submitted", submitted),
			zap.Int64("pool_executed", executed),
			zap.Int64("pool_stolen", stolen),
			zap.Int("pool_working", working),
		)
	}

	if r.cacheStats != nil {
		size, capacity := r.cacheStats()
		fields = append(fields,
			zap.Int("cache_size", size),
			zap.Int("cache_capacity", capacity),
		)
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	fields = append(fields,
		zap.Float64("memory_usage_mb", float64(m.Alloc)/1024/1024),
		zap.Uint32("gc_cycles", m.NumGC),
	)

	r.logger.Info("runtime stats", fields...)
}
