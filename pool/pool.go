// Package pool implements a fixed-size worker pool with per-worker local
// queues, a shared global overflow queue, and random-victim work
// stealing. Tasks are plain closures; submission, queueing, stealing, and
// shutdown are all built on goroutines, mutexes, and condition variables —
// there is no lock-free fast path, matching the C ring-buffer design this
// package generalizes.
package pool

import (
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

const (
	// RingBufferSize is the default capacity of the global overflow queue.
	RingBufferSize = 1024
	// LocalQueueSize is the default capacity of each worker's local queue.
	LocalQueueSize = 256
)

var (
	// ErrInvalidArgument is never returned: New clamps a non-positive
	// thread count to 1 instead, and Submit reports a nil Task by
	// returning false. It is declared for interface parity.
	ErrInvalidArgument = errors.New("pool: invalid argument")
	// ErrResourceExhausted is never returned: New always returns a nil
	// error, since Go's allocator does not fail synchronously. The error
	// exists only for interface parity with ErrInvalidArgument.
	ErrResourceExhausted = errors.New("pool: resource exhausted")
)

// Pool owns a fixed set of workers and a shared overflow queue. Create
// with New; submit work with Submit; wind down with Shutdown.
type Pool struct {
	workers []*worker
	global  *ringQueue

	shutdown atomic.Bool

	countMu sync.Mutex
	allIdle *sync.Cond
	working int

	wg           sync.WaitGroup
	shutdownOnce sync.Once

	submitted atomic.Int64
	executed  atomic.Int64
	stolen    atomic.Int64

	logger *zap.Logger

	localQueueSize          int
	globalQueueSizeOverride int
}

// Option configures a Pool at construction time.
type Option func(*Pool)

// WithLogger attaches a zap logger for lifecycle and steal-path logging.
// Hot paths (Submit, task execution) never log — only construction,
// shutdown, and work-stealing events do. A nil logger is replaced with
// zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithGlobalQueueSize overrides the default global overflow queue capacity.
func WithGlobalQueueSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.globalQueueSizeOverride = n
		}
	}
}

// WithLocalQueueSize overrides the default per-worker local queue capacity.
func WithLocalQueueSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.localQueueSize = n
		}
	}
}

func New(numWorkers int, opts ...Option) (*Pool, error) {
	if numWorkers <= 0 {
		numWorkers = 1
	}

	p := &Pool{
		logger:         zap.NewNop(),
		localQueueSize: LocalQueueSize,
	}
	p.allIdle = sync.NewCond(&p.countMu)

	for _, opt := range opts {
		opt(p)
	}

	globalSize := RingBufferSize
	if p.globalQueueSizeOverride > 0 {
		globalSize = p.globalQueueSizeOverride
	}
	p.global = newRingQueue(globalSize, p)

	p.workers = make([]*worker, numWorkers)
	for i := 0; i < numWorkers; i++ {
		p.workers[i] = newWorker(i, p.localQueueSize, p)
	}

	p.wg.Add(numWorkers)
	for _, w := range p.workers {
		go w.run()
	}

	p.logger.Info("pool started", zap.Int("workers", numWorkers))
	return p, nil
}

// Submit enqueues fn for execution. It returns false only if fn is nil or
// the pool is shutting down (checked up front, and again if the submitter had to
// block on the overflow queue's not-full condition). It never blocks
// indefinitely: the bounded wait is released the moment shutdown begins.
func (p *Pool) Submit(fn Task) bool {
	if fn == nil {
		return false
	}
	if p.isShuttingDown() {
		return false
	}

	idx := pickWorkerIndex(len(p.workers))
	if p.workers[idx].local.tryPush(fn) {
		p.submitted.Add(1)
		return true
	}
	if p.global.tryPush(fn) {
		p.submitted.Add(1)
		return true
	}
	if p.global.pushWait(fn) {
		p.submitted.Add(1)
		return true
	}
	return false
}

// Shutdown waits for all submitted work to finish, then tears the pool
// down: flips the shutdown flag, wakes every blocked producer and
// consumer, and joins every worker goroutine. Safe to call on a nil
// *Pool (no-op) and safe to call more than once — later calls observe
// the same already-quiesced state and return immediately.
func (p *Pool) Shutdown() {
	if p == nil {
		return
	}
	p.shutdownOnce.Do(func() {
		p.countMu.Lock()
		for !(p.working == 0 && p.queuesEmptyLocked()) {
			p.allIdle.Wait()
		}
		p.shutdown.Store(true)
		p.countMu.Unlock()

		p.global.wakeAll()
		for _, w := range p.workers {
			w.local.wakeAll()
		}

		p.wg.Wait()
		p.logger.Info("pool shut down",
			zap.Int64("submitted", p.submitted.Load()),
			zap.Int64("executed", p.executed.Load()),
			zap.Int64("stolen", p.stolen.Load()))
	})
}

func (p *Pool) isShuttingDown() bool {
	return p.shutdown.Load()
}

// pickWorkerIndex chooses a uniformly random worker index. Random
// placement keeps submission itself from becoming a contended hot spot
// on any single worker's queue; stealing rebalances load afterward.
func pickWorkerIndex(n int) int {
	if n == 1 {
		return 0
	}
	return rand.IntN(n)
}

// queuesEmptyLocked reports whether the global queue and every worker's
// local queue currently look empty. Must be called with countMu held;
// the per-queue length reads take each queue's own lock internally and
// are never nested under another queue's lock, preserving the "at most
// one queue mutex at a time" invariant.
func (p *Pool) queuesEmptyLocked() bool {
	if p.global.snapshotLen() != 0 {
		return false
	}
	for _, w := range p.workers {
		if w.local.snapshotLen() != 0 {
			return false
		}
	}
	return true
}

// QueueDepths returns a point-in-time snapshot of the global overflow
// queue's length and each worker's local queue length, indexed by worker
// id. Like queuesEmptyLocked, each length is read under that queue's own
// lock, never nested under another queue's lock or under countMu.
func (p *Pool) QueueDepths() (global int, perWorker []int) {
	global = p.global.snapshotLen()
	perWorker = make([]int, len(p.workers))
	for i, w := range p.workers {
		perWorker[i] = w.local.snapshotLen()
	}
	return global, perWorker
}

// Stats is a point-in-time snapshot of pool activity.
type Stats struct {
	Workers   int
	Submitted int64
	Executed  int64
	Stolen    int64
	Working   int
}

func (p *Pool) Stats() Stats {
	p.countMu.Lock()
	working := p.working
	p.countMu.Unlock()
	return Stats{
		Workers:   len(p.workers),
		Submitted: p.submitted.Load(),
		Executed:  p.executed.Load(),
		Stolen:    p.stolen.Load(),
		Working:   working,
	}
}
